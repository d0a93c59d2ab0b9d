package domain

import (
	"fmt"
	"slices"
	"strings"
)

// ChecklistItem is a single TODO entry of a day note.
type ChecklistItem struct {
	ID       int
	Text     string
	Done     bool
	Position int
}

// Checklist is the ordered TODO list carried by a day note. It is a view
// decoded from the note content, never persisted on its own.
type Checklist struct {
	Items []ChecklistItem

	// NextID is the id the next added item receives. Ids are never reused
	// within a day note, even after deletion.
	NextID int

	// CarriedFrom lists the dates whose unfinished items have already been
	// rolled into this checklist.
	CarriedFrom []Date
}

// NewChecklist returns an empty checklist.
func NewChecklist() *Checklist {
	return &Checklist{Items: []ChecklistItem{}, NextID: 1}
}

// Clone returns a deep copy of the checklist.
func (c *Checklist) Clone() *Checklist {
	out := &Checklist{
		Items:  slices.Clone(c.Items),
		NextID: c.NextID,
	}
	if out.Items == nil {
		out.Items = []ChecklistItem{}
	}
	if len(c.CarriedFrom) > 0 {
		out.CarriedFrom = slices.Clone(c.CarriedFrom)
	}
	return out
}

// Len returns the number of items.
func (c *Checklist) Len() int {
	return len(c.Items)
}

// Find returns the index of the item with the given id.
func (c *Checklist) Find(id int) (int, bool) {
	for i := range c.Items {
		if c.Items[i].ID == id {
			return i, true
		}
	}
	return -1, false
}

// Item returns a copy of the item with the given id.
func (c *Checklist) Item(id int) (ChecklistItem, error) {
	i, ok := c.Find(id)
	if !ok {
		return ChecklistItem{}, fmt.Errorf("item %d: %w", id, ErrItemNotFound)
	}
	return c.Items[i], nil
}

// Add appends a new undone item at the end of the list.
func (c *Checklist) Add(text string) (ChecklistItem, error) {
	text, err := ValidateItemText(text)
	if err != nil {
		return ChecklistItem{}, err
	}
	if c.NextID < 1 {
		c.NextID = 1
	}
	item := ChecklistItem{
		ID:       c.NextID,
		Text:     text,
		Position: len(c.Items),
	}
	c.NextID++
	c.Items = append(c.Items, item)
	return item, nil
}

// Toggle flips the done flag of the item.
func (c *Checklist) Toggle(id int) (ChecklistItem, error) {
	i, ok := c.Find(id)
	if !ok {
		return ChecklistItem{}, fmt.Errorf("toggle item %d: %w", id, ErrItemNotFound)
	}
	c.Items[i].Done = !c.Items[i].Done
	return c.Items[i], nil
}

// UpdateText replaces the text of the item, keeping its position and done flag.
func (c *Checklist) UpdateText(id int, text string) (ChecklistItem, error) {
	text, err := ValidateItemText(text)
	if err != nil {
		return ChecklistItem{}, err
	}
	i, ok := c.Find(id)
	if !ok {
		return ChecklistItem{}, fmt.Errorf("update item %d: %w", id, ErrItemNotFound)
	}
	c.Items[i].Text = text
	return c.Items[i], nil
}

// Delete removes the item and closes the gap in positions.
func (c *Checklist) Delete(id int) (ChecklistItem, error) {
	i, ok := c.Find(id)
	if !ok {
		return ChecklistItem{}, fmt.Errorf("delete item %d: %w", id, ErrItemNotFound)
	}
	removed := c.Items[i]
	c.Items = slices.Delete(c.Items, i, i+1)
	c.densify()
	return removed, nil
}

// Undone returns the unfinished items in position order.
func (c *Checklist) Undone() []ChecklistItem {
	var out []ChecklistItem
	for _, it := range c.Items {
		if !it.Done {
			out = append(out, it)
		}
	}
	return out
}

// HasCarried reports whether the rollover from date was already merged.
func (c *Checklist) HasCarried(date Date) bool {
	return slices.Contains(c.CarriedFrom, date)
}

// Carry appends the given items as fresh undone entries and records date
// as merged. Carrying the same date twice is a no-op that returns false.
func (c *Checklist) Carry(date Date, items []ChecklistItem) (bool, error) {
	if c.HasCarried(date) {
		return false, nil
	}
	for _, it := range items {
		if _, err := c.Add(it.Text); err != nil {
			return false, fmt.Errorf("carrying %q from %s: %w", it.Text, date, err)
		}
	}
	c.CarriedFrom = append(c.CarriedFrom, date)
	slices.Sort(c.CarriedFrom)
	return true, nil
}

// Validate checks the structural invariants: unique positive ids below
// NextID, dense positions from zero, non-empty text.
func (c *Checklist) Validate() error {
	seen := make(map[int]struct{}, len(c.Items))
	for i, it := range c.Items {
		if it.ID <= 0 {
			return fmt.Errorf("item at %d has invalid id %d", i, it.ID)
		}
		if _, dup := seen[it.ID]; dup {
			return fmt.Errorf("duplicate item id %d", it.ID)
		}
		seen[it.ID] = struct{}{}
		if it.ID >= c.NextID {
			return fmt.Errorf("item id %d not below next id %d", it.ID, c.NextID)
		}
		if it.Position != i {
			return fmt.Errorf("item %d has position %d, want %d", it.ID, it.Position, i)
		}
		if strings.TrimSpace(it.Text) == "" {
			return fmt.Errorf("item %d has empty text", it.ID)
		}
	}
	return nil
}

func (c *Checklist) densify() {
	for i := range c.Items {
		c.Items[i].Position = i
	}
}

// ValidateItemText trims text and rejects empty input.
func ValidateItemText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("item text must not be empty: %w", ErrValidation)
	}
	return text, nil
}
