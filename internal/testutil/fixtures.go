package testutil

import (
	"testing"

	"github.com/alexanderramin/trilium-bot/internal/checklist"
	"github.com/alexanderramin/trilium-bot/internal/domain"
)

// Day fixtures used across packages.
const (
	Yesterday domain.Date = "2026-10-16"
	Today     domain.Date = "2026-10-17"
)

// ItemSpec describes one checklist item of a fixture.
type ItemSpec struct {
	Text string
	Done bool
}

// Todo and Done build ItemSpecs.
func Todo(text string) ItemSpec { return ItemSpec{Text: text} }
func Done(text string) ItemSpec { return ItemSpec{Text: text, Done: true} }

// NewChecklist builds a checklist with the given items in order.
func NewChecklist(t testing.TB, items ...ItemSpec) *domain.Checklist {
	t.Helper()
	c := domain.NewChecklist()
	for _, spec := range items {
		it, err := c.Add(spec.Text)
		if err != nil {
			t.Fatalf("adding fixture item %q: %v", spec.Text, err)
		}
		if spec.Done {
			if _, err := c.Toggle(it.ID); err != nil {
				t.Fatalf("toggling fixture item %q: %v", spec.Text, err)
			}
		}
	}
	return c
}

// EncodeChecklist renders items as day note content.
func EncodeChecklist(t testing.TB, items ...ItemSpec) string {
	t.Helper()
	return checklist.Encode(NewChecklist(t, items...), checklist.Extra{})
}

// Specs converts a checklist back into ItemSpecs for compact assertions.
func Specs(c *domain.Checklist) []ItemSpec {
	out := make([]ItemSpec, 0, c.Len())
	for _, it := range c.Items {
		out = append(out, ItemSpec{Text: it.Text, Done: it.Done})
	}
	return out
}
