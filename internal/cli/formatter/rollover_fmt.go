package formatter

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/alexanderramin/trilium-bot/internal/domain"
	"github.com/alexanderramin/trilium-bot/internal/service"
)

// FormatRolloverReport renders the outcome of a rollover pass as a table.
func FormatRolloverReport(r *service.RolloverReport) string {
	var b strings.Builder
	b.WriteString(Header("Rollover " + r.Today.String()))
	b.WriteString("\n")

	if len(r.Chats) == 0 {
		b.WriteString(Dim("No registered chats."))
		b.WriteString("\n")
		return b.String()
	}

	rows := make([][]string, 0, len(r.Chats))
	for _, c := range r.Chats {
		rows = append(rows, []string{
			strconv.FormatInt(c.ChatID, 10),
			joinDates(c.From),
			strconv.Itoa(c.Carried),
			rolloverStatus(c),
		})
	}
	b.WriteString(RenderTable([]string{"CHAT", "FROM", "CARRIED", "STATUS"}, rows))
	fmt.Fprintf(&b, "%s\n", Dim(fmt.Sprintf("%d item(s) carried, %d chat(s) failed", r.Carried(), r.Failed())))
	return b.String()
}

func rolloverStatus(c service.ChatRolloverResult) string {
	switch {
	case c.Err != nil:
		return StyleRed.Render("failed: " + c.Err.Error())
	case c.UpToDate:
		return Dim("up to date")
	case len(c.Malformed) > 0:
		return StyleYellow.Render("ok, malformed: " + joinDates(c.Malformed))
	default:
		return StyleGreen.Render("ok")
	}
}

func joinDates(dates []domain.Date) string {
	s := make([]string, len(dates))
	for i, d := range dates {
		s[i] = d.String()
	}
	return strings.Join(s, ", ")
}
