package formatter

import (
	"fmt"
	"strings"

	"github.com/alexanderramin/trilium-bot/internal/domain"
)

// FormatChecklist renders a day's checklist with one line per item.
func FormatChecklist(date domain.Date, c *domain.Checklist) string {
	var b strings.Builder
	b.WriteString(Header("Checklist " + date.String()))
	b.WriteString("\n")

	if c.Len() == 0 {
		b.WriteString(Dim("No items."))
		b.WriteString("\n")
		return b.String()
	}

	done := 0
	for _, it := range c.Items {
		box, text := StyleFg.Render("[ ]"), it.Text
		if it.Done {
			done++
			box, text = StyleGreen.Render("[x]"), StyleDone.Render(it.Text)
		}
		fmt.Fprintf(&b, "%s %s %s\n", box, Dim(fmt.Sprintf("#%d", it.ID)), text)
	}
	if len(c.CarriedFrom) > 0 {
		dates := make([]string, len(c.CarriedFrom))
		for i, d := range c.CarriedFrom {
			dates[i] = d.String()
		}
		b.WriteString(Dim("carried from " + strings.Join(dates, ", ")))
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "%s\n", Dim(fmt.Sprintf("%d of %d done", done, c.Len())))
	return b.String()
}
