package service

import (
	"context"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/domain"
)

// ChecklistView is a checklist as last read or written, with the snapshot
// identifier buttons rendered from it must carry.
type ChecklistView struct {
	Owner     int64
	Date      domain.Date
	Checklist *domain.Checklist
	Snapshot  string

	// Item is the item the operation touched, nil for View.
	Item *domain.ChecklistItem
}

// ChecklistService runs the checklist operations of a chat against its day
// note. Every mutation is a load, mutate, save cycle retried on conflict.
type ChecklistService interface {
	View(ctx context.Context, owner int64, date domain.Date) (*ChecklistView, error)
	Toggle(ctx context.Context, owner int64, date domain.Date, itemID int) (*ChecklistView, error)
	Add(ctx context.Context, owner int64, date domain.Date, text string) (*ChecklistView, error)
	UpdateText(ctx context.Context, owner int64, date domain.Date, itemID int, text string) (*ChecklistView, error)
	Delete(ctx context.Context, owner int64, date domain.Date, itemID int) (*ChecklistView, error)
}

// ChatRolloverResult is the outcome of rolling one chat over.
type ChatRolloverResult struct {
	ChatID int64
	From   []domain.Date
	// Carried counts items appended to today; zero when nothing was
	// pending or the rollover had already been merged.
	Carried int
	// Malformed lists source days whose checklist could not be read. Their
	// items are not carried and the cursor moves past them.
	Malformed []domain.Date
	// UpToDate is set when the chat's cursor already covered yesterday.
	UpToDate bool
	Err      error
}

// RolloverReport summarises one rollover pass.
type RolloverReport struct {
	Today domain.Date
	Chats []ChatRolloverResult
}

// Failed returns the number of chats whose rollover failed.
func (r *RolloverReport) Failed() int {
	n := 0
	for _, c := range r.Chats {
		if c.Err != nil {
			n++
		}
	}
	return n
}

// Carried returns the total number of carried items.
func (r *RolloverReport) Carried() int {
	n := 0
	for _, c := range r.Chats {
		n += c.Carried
	}
	return n
}

type RolloverService interface {
	// Run rolls every registered chat whose cursor is behind the day
	// before now. A failing chat is reported and skipped.
	Run(ctx context.Context, now time.Time) (*RolloverReport, error)

	// RolloverChat rolls a single chat over regardless of its cursor.
	RolloverChat(ctx context.Context, chatID int64, now time.Time) (*ChatRolloverResult, error)
}

type NoteService interface {
	// QuickAdd stores a free-text message as a child of the day note.
	QuickAdd(ctx context.Context, owner int64, date domain.Date, text string) (*domain.Note, error)

	// CreateNote creates a note under the root from a markdown body.
	CreateNote(ctx context.Context, title, markdown string) (*domain.Note, error)

	// CreateAttachment attaches data to the attachment inbox note and links
	// it from the note's content.
	CreateAttachment(ctx context.Context, name string, data []byte) (*domain.Attachment, error)
}

type ChatService interface {
	Register(ctx context.Context, chatID, userID int64) (*domain.Chat, error)
	Settings(ctx context.Context) (domain.Settings, error)
	ToggleQuickAdd(ctx context.Context) (domain.Settings, error)
	SetRolloverEnabled(ctx context.Context, enabled bool) (domain.Settings, error)
	SetRolloverTime(ctx context.Context, clock string) (domain.Settings, error)
}
