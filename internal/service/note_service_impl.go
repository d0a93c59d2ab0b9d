package service

import (
	"bytes"
	"context"
	"fmt"
	"html"
	"path"
	"strings"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/domain"
	"github.com/alexanderramin/trilium-bot/internal/repository"
	"github.com/gabriel-vasile/mimetype"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

const (
	// QuickAddTitle is the title of notes created from free text.
	QuickAddTitle = "TG message"

	// DefaultAttachmentParent is the title of the note attachments go to.
	DefaultAttachmentParent = "FromTelegram"
)

type noteService struct {
	notes            repository.NoteRepo
	days             repository.DayNoteRepo
	attachmentParent string
	timeout          time.Duration
	md               goldmark.Markdown
	observer         UseCaseObserver
}

func NewNoteService(
	notes repository.NoteRepo,
	days repository.DayNoteRepo,
	attachmentParent string,
	timeout time.Duration,
	observers ...UseCaseObserver,
) NoteService {
	if attachmentParent == "" {
		attachmentParent = DefaultAttachmentParent
	}
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	return &noteService{
		notes:            notes,
		days:             days,
		attachmentParent: attachmentParent,
		timeout:          timeout,
		md:               goldmark.New(goldmark.WithExtensions(extension.GFM)),
		observer:         useCaseObserverOrNoop(observers),
	}
}

func (s *noteService) QuickAdd(ctx context.Context, owner int64, date domain.Date, text string) (note *domain.Note, err error) {
	defer observe(ctx, s.observer, "quick-add", time.Now(), map[string]any{"owner": owner, "date": date.String()}, &err)

	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("message must not be empty: %w", domain.ErrValidation)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	day, err := s.days.GetOrCreateDayNote(ctx, owner, date)
	if err != nil {
		return nil, classifyStoreError("opening day note", err)
	}
	note, err = s.notes.CreateNote(ctx, day.NoteID, QuickAddTitle, "<p>"+html.EscapeString(text)+"</p>")
	if err != nil {
		return nil, classifyStoreError("creating quick note", err)
	}
	return note, nil
}

func (s *noteService) CreateNote(ctx context.Context, title, markdown string) (note *domain.Note, err error) {
	defer observe(ctx, s.observer, "create-note", time.Now(), nil, &err)

	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("note title must not be empty: %w", domain.ErrValidation)
	}
	body, err := s.renderMarkdown(markdown)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	note, err = s.notes.CreateNote(ctx, domain.RootNoteID, title, body)
	if err != nil {
		return nil, classifyStoreError("creating note", err)
	}
	return note, nil
}

func (s *noteService) CreateAttachment(ctx context.Context, name string, data []byte) (att *domain.Attachment, err error) {
	fields := map[string]any{"size": len(data)}
	defer observe(ctx, s.observer, "create-attachment", time.Now(), fields, &err)

	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("attachment name must not be empty: %w", domain.ErrValidation)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("attachment is empty: %w", domain.ErrValidation)
	}

	mt := mimetype.Detect(data)
	if path.Ext(name) == "" {
		name += mt.Extension()
	}
	fields["mime"] = mt.String()

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	parents, err := s.notes.SearchNotes(ctx, s.attachmentParent)
	if err != nil {
		return nil, classifyStoreError("finding attachment note", err)
	}
	if len(parents) == 0 {
		return nil, fmt.Errorf("attachment note %q: %w", s.attachmentParent, domain.ErrNotFound)
	}
	parent := parents[0]

	att, err = s.notes.CreateAttachment(ctx, parent.ID, name, mt.String(), data)
	if err != nil {
		return nil, classifyStoreError("uploading attachment", err)
	}
	if err := s.notes.AppendContent(ctx, parent.ID, attachmentReference(parent.ID, att)); err != nil {
		return nil, classifyStoreError("linking attachment", err)
	}
	return att, nil
}

func (s *noteService) renderMarkdown(src string) (string, error) {
	var buf bytes.Buffer
	if err := s.md.Convert([]byte(src), &buf); err != nil {
		return "", fmt.Errorf("rendering note body: %w", err)
	}
	return buf.String(), nil
}

// attachmentReference is the HTML appended to the owner note: an inline
// image for pictures, a reference link otherwise.
func attachmentReference(ownerID string, a *domain.Attachment) string {
	name := html.EscapeString(a.Name)
	if strings.HasPrefix(a.MIME, "image/") {
		return fmt.Sprintf(`<p><img src="api/attachments/%s/image/%s" alt="%s"></p>`, a.ID, name, name)
	}
	return fmt.Sprintf(`<p><a class="reference-link" href="#root/%s?viewMode=attachments&amp;attachmentId=%s">%s</a></p>`,
		ownerID, a.ID, name)
}
