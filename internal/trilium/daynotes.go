package trilium

import (
	"context"
	"fmt"
	"net/http"

	"github.com/alexanderramin/trilium-bot/internal/domain"
)

// Trilium keeps a single journal, so owner only labels the returned notes.
// Every chat shares the same day note for a date.

func (c *Client) GetOrCreateDayNote(ctx context.Context, owner int64, date domain.Date) (*domain.DayNote, error) {
	var n etapiNote
	err := c.doJSON(ctx, request{method: http.MethodGet, path: "/calendar/days/" + date.String()}, &n)
	if err != nil {
		return nil, fmt.Errorf("getting day note %s: %w", date, err)
	}
	return c.dayNote(ctx, owner, date, &n)
}

func (c *Client) FindDayNote(ctx context.Context, owner int64, date domain.Date) (*domain.DayNote, error) {
	n, err := c.findDayNote(ctx, date)
	if err != nil {
		return nil, err
	}
	return c.dayNote(ctx, owner, date, n)
}

// WriteDayNote compares the note's current revision before replacing its
// content. ETAPI has no conditional write, so a writer landing between the
// comparison and the PUT is not detected.
func (c *Client) WriteDayNote(ctx context.Context, owner int64, date domain.Date, content, expectedRevision string) (string, error) {
	n, err := c.findDayNote(ctx, date)
	if err != nil {
		return "", err
	}
	if n.revision() != expectedRevision {
		return "", fmt.Errorf("day note %s: %w", date, domain.ErrConflict)
	}
	if err := c.putContent(ctx, n.NoteID, content); err != nil {
		return "", fmt.Errorf("writing day note %s: %w", date, err)
	}
	updated, err := c.getNote(ctx, n.NoteID)
	if err != nil {
		return "", fmt.Errorf("reading day note %s after write: %w", date, err)
	}
	c.logger.Debug().Int64("owner", owner).Str("date", date.String()).Str("note_id", n.NoteID).Msg("day note written")
	return updated.revision(), nil
}

func (c *Client) findDayNote(ctx context.Context, date domain.Date) (*etapiNote, error) {
	results, err := c.search(ctx, "#dateNote="+quote(date.String()), 1)
	if err != nil {
		return nil, fmt.Errorf("searching day note %s: %w", date, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("day note %s: %w", date, domain.ErrNotFound)
	}
	return &results[0], nil
}

func (c *Client) dayNote(ctx context.Context, owner int64, date domain.Date, n *etapiNote) (*domain.DayNote, error) {
	content, err := c.getContent(ctx, n.NoteID)
	if err != nil {
		return nil, fmt.Errorf("reading day note %s: %w", date, err)
	}
	return &domain.DayNote{
		Owner:    owner,
		Date:     date,
		NoteID:   n.NoteID,
		Content:  content,
		Revision: n.revision(),
	}, nil
}
