package repository

import (
	"context"

	"github.com/alexanderramin/trilium-bot/internal/domain"
)

// DayNoteRepo reads and writes the per-date notes that carry checklists.
// Writes are conditional on the revision returned by the last read.
type DayNoteRepo interface {
	// GetOrCreateDayNote returns the day note, creating an empty one if
	// the date has none yet.
	GetOrCreateDayNote(ctx context.Context, owner int64, date domain.Date) (*domain.DayNote, error)

	// FindDayNote returns the day note or domain.ErrNotFound. It never creates.
	FindDayNote(ctx context.Context, owner int64, date domain.Date) (*domain.DayNote, error)

	// WriteDayNote replaces the note content if its revision still equals
	// expectedRevision and returns the new revision. A stale revision fails
	// with domain.ErrConflict.
	WriteDayNote(ctx context.Context, owner int64, date domain.Date, content, expectedRevision string) (string, error)
}

// NoteRepo covers plain note and attachment creation.
type NoteRepo interface {
	CreateNote(ctx context.Context, parentID, title, content string) (*domain.Note, error)
	GetNote(ctx context.Context, id string) (*domain.Note, error)
	SearchNotes(ctx context.Context, title string) ([]*domain.Note, error)
	AppendContent(ctx context.Context, noteID, fragment string) error
	CreateAttachment(ctx context.Context, ownerNoteID, name, mime string, data []byte) (*domain.Attachment, error)
}

type ChatRepo interface {
	// Register records the chat on first contact; later calls are no-ops
	// that return the stored chat.
	Register(ctx context.Context, chatID, userID int64) (*domain.Chat, error)
	GetByID(ctx context.Context, chatID int64) (*domain.Chat, error)
	List(ctx context.Context) ([]*domain.Chat, error)

	// AdvanceCursor moves the rollover cursor forward to date. It never
	// moves it backwards.
	AdvanceCursor(ctx context.Context, chatID int64, date domain.Date) error
}

type SettingsRepo interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
}
