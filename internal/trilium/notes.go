package trilium

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/alexanderramin/trilium-bot/internal/domain"
)

type createNoteRequest struct {
	ParentNoteID string `json:"parentNoteId"`
	Title        string `json:"title"`
	Type         string `json:"type"`
	Content      string `json:"content"`
}

type createAttachmentRequest struct {
	OwnerID  string `json:"ownerId"`
	Role     string `json:"role"`
	Mime     string `json:"mime"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Position int    `json:"position"`
}

type createNoteResponse struct {
	Note etapiNote `json:"note"`
}

func (c *Client) CreateNote(ctx context.Context, parentID, title, content string) (*domain.Note, error) {
	var resp createNoteResponse
	err := c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "/create-note",
		json:   createNoteRequest{ParentNoteID: parentID, Title: title, Type: "text", Content: content},
	}, &resp)
	if err != nil {
		return nil, fmt.Errorf("creating note %q: %w", title, err)
	}
	return &domain.Note{
		ID:        resp.Note.NoteID,
		ParentID:  parentID,
		Title:     resp.Note.Title,
		Content:   content,
		CreatedAt: resp.Note.created(),
	}, nil
}

func (c *Client) GetNote(ctx context.Context, id string) (*domain.Note, error) {
	n, err := c.getNote(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("getting note %s: %w", id, err)
	}
	content, err := c.getContent(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reading note %s: %w", id, err)
	}
	note := toNote(*n)
	note.Content = content
	return note, nil
}

// SearchNotes returns the notes whose title equals title exactly.
func (c *Client) SearchNotes(ctx context.Context, title string) ([]*domain.Note, error) {
	results, err := c.search(ctx, "note.title = "+quote(title), 0)
	if err != nil {
		return nil, fmt.Errorf("searching notes %q: %w", title, err)
	}
	notes := make([]*domain.Note, 0, len(results))
	for _, n := range results {
		notes = append(notes, toNote(n))
	}
	return notes, nil
}

func (c *Client) AppendContent(ctx context.Context, noteID, fragment string) error {
	content, err := c.getContent(ctx, noteID)
	if err != nil {
		return fmt.Errorf("reading note %s: %w", noteID, err)
	}
	if err := c.putContent(ctx, noteID, content+fragment); err != nil {
		return fmt.Errorf("appending to note %s: %w", noteID, err)
	}
	return nil
}

// CreateAttachment creates the attachment record, then uploads its bytes;
// ETAPI only accepts binary content on the content endpoint.
func (c *Client) CreateAttachment(ctx context.Context, ownerNoteID, name, mime string, data []byte) (*domain.Attachment, error) {
	role := "file"
	if strings.HasPrefix(mime, "image/") {
		role = "image"
	}
	var att etapiAttachment
	err := c.doJSON(ctx, request{
		method: http.MethodPost,
		path:   "/attachments",
		json: createAttachmentRequest{
			OwnerID:  ownerNoteID,
			Role:     role,
			Mime:     mime,
			Title:    name,
			Position: 10,
		},
	}, &att)
	if err != nil {
		return nil, fmt.Errorf("creating attachment %q: %w", name, err)
	}

	_, err = c.do(ctx, request{
		method:      http.MethodPut,
		path:        "/attachments/" + url.PathEscape(att.AttachmentID) + "/content",
		body:        data,
		contentType: "application/octet-stream",
	})
	if err != nil {
		return nil, fmt.Errorf("uploading attachment %q: %w", name, err)
	}

	c.logger.Info().Str("note_id", ownerNoteID).Str("attachment_id", att.AttachmentID).Str("mime", mime).Int("size", len(data)).Msg("attachment created")
	return &domain.Attachment{
		ID:          att.AttachmentID,
		OwnerNoteID: ownerNoteID,
		Name:        name,
		MIME:        mime,
		Size:        len(data),
	}, nil
}

func toNote(n etapiNote) *domain.Note {
	note := &domain.Note{ID: n.NoteID, Title: n.Title, CreatedAt: n.created()}
	if len(n.ParentNoteIDs) > 0 {
		note.ParentID = n.ParentNoteIDs[0]
	}
	return note
}
