package domain

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustAdd(t *testing.T, c *Checklist, texts ...string) {
	t.Helper()
	for _, text := range texts {
		_, err := c.Add(text)
		require.NoError(t, err)
	}
}

func TestChecklistAdd_AppendsAtEnd(t *testing.T) {
	c := NewChecklist()
	mustAdd(t, c, "Buy milk", "Pay bill")

	item, err := c.Add("  Call mom  ")
	require.NoError(t, err)
	assert.Equal(t, 3, item.ID)
	assert.Equal(t, 2, item.Position)
	assert.Equal(t, "Call mom", item.Text)
	assert.False(t, item.Done)
	assert.Equal(t, 4, c.NextID)
}

func TestChecklistAdd_RejectsBlankText(t *testing.T) {
	c := NewChecklist()
	for _, text := range []string{"", "   ", "\n\t"} {
		_, err := c.Add(text)
		assert.ErrorIs(t, err, ErrValidation, "text %q", text)
	}
	assert.Equal(t, 0, c.Len())
	assert.Equal(t, 1, c.NextID)
}

func TestChecklistToggle(t *testing.T) {
	c := NewChecklist()
	mustAdd(t, c, "Buy milk")

	item, err := c.Toggle(1)
	require.NoError(t, err)
	assert.True(t, item.Done)

	item, err = c.Toggle(1)
	require.NoError(t, err)
	assert.False(t, item.Done)

	_, err = c.Toggle(42)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestChecklistUpdateText_KeepsPositionAndDone(t *testing.T) {
	c := NewChecklist()
	mustAdd(t, c, "a", "b", "c")
	_, err := c.Toggle(2)
	require.NoError(t, err)

	item, err := c.UpdateText(2, "bee")
	require.NoError(t, err)
	assert.Equal(t, "bee", item.Text)
	assert.Equal(t, 1, item.Position)
	assert.True(t, item.Done)

	_, err = c.UpdateText(2, " ")
	assert.ErrorIs(t, err, ErrValidation)
	_, err = c.UpdateText(9, "x")
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestChecklistDelete_Redensifies(t *testing.T) {
	c := NewChecklist()
	mustAdd(t, c, "a", "b", "c", "d")

	removed, err := c.Delete(2)
	require.NoError(t, err)
	assert.Equal(t, "b", removed.Text)

	require.Len(t, c.Items, 3)
	for i, it := range c.Items {
		assert.Equal(t, i, it.Position)
	}
	assert.Equal(t, []int{1, 3, 4}, ids(c))

	_, err = c.Delete(2)
	assert.ErrorIs(t, err, ErrItemNotFound)
}

func TestChecklistDelete_NeverReusesIDs(t *testing.T) {
	c := NewChecklist()
	mustAdd(t, c, "a", "b")
	_, err := c.Delete(2)
	require.NoError(t, err)

	item, err := c.Add("c")
	require.NoError(t, err)
	assert.Equal(t, 3, item.ID)
}

func TestChecklistCarry_IsIdempotentPerDate(t *testing.T) {
	c := NewChecklist()
	mustAdd(t, c, "existing")
	carried := []ChecklistItem{{ID: 7, Text: "Buy milk", Position: 0}}

	changed, err := c.Carry("2026-10-16", carried)
	require.NoError(t, err)
	assert.True(t, changed)

	changed, err = c.Carry("2026-10-16", carried)
	require.NoError(t, err)
	assert.False(t, changed)

	require.Len(t, c.Items, 2)
	assert.Equal(t, "Buy milk", c.Items[1].Text)
	assert.Equal(t, 2, c.Items[1].ID)
	assert.Equal(t, 1, c.Items[1].Position)
	assert.Equal(t, []Date{"2026-10-16"}, c.CarriedFrom)
}

func TestChecklistValidate(t *testing.T) {
	c := NewChecklist()
	mustAdd(t, c, "a", "b")
	require.NoError(t, c.Validate())

	dup := c.Clone()
	dup.Items[1].ID = 1
	assert.Error(t, dup.Validate())

	gap := c.Clone()
	gap.Items[1].Position = 5
	assert.Error(t, gap.Validate())

	stale := c.Clone()
	stale.NextID = 2
	assert.Error(t, stale.Validate())
}

func TestChecklistClone_IsDeep(t *testing.T) {
	c := NewChecklist()
	mustAdd(t, c, "a")
	c.CarriedFrom = []Date{"2026-10-01"}

	cp := c.Clone()
	cp.Items[0].Text = "changed"
	cp.CarriedFrom[0] = "2000-01-01"

	assert.Equal(t, "a", c.Items[0].Text)
	assert.Equal(t, Date("2026-10-01"), c.CarriedFrom[0])
}

// TestChecklist_PositionDensityProperty applies random add/delete sequences
// and checks positions stay exactly 0..n-1.
func TestChecklist_PositionDensityProperty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))

	for trial := 0; trial < 200; trial++ {
		c := NewChecklist()
		for step := 0; step < 40; step++ {
			if c.Len() == 0 || rng.Intn(3) > 0 {
				_, err := c.Add(fmt.Sprintf("item-%d-%d", trial, step))
				require.NoError(t, err)
				continue
			}
			victim := c.Items[rng.Intn(c.Len())].ID
			_, err := c.Delete(victim)
			require.NoError(t, err)
		}

		for i, it := range c.Items {
			assert.Equal(t, i, it.Position, "trial %d", trial)
		}
		assert.NoError(t, c.Validate(), "trial %d", trial)
	}
}

func ids(c *Checklist) []int {
	out := make([]int, 0, c.Len())
	for _, it := range c.Items {
		out = append(out, it.ID)
	}
	return out
}
