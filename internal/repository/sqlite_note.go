package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/db"
	"github.com/alexanderramin/trilium-bot/internal/domain"
	"github.com/google/uuid"
)

// SQLiteNoteRepo implements NoteRepo on the local notes and attachments tables.
type SQLiteNoteRepo struct {
	db db.DBTX
}

func NewSQLiteNoteRepo(database db.DBTX) *SQLiteNoteRepo {
	return &SQLiteNoteRepo{db: database}
}

func (r *SQLiteNoteRepo) CreateNote(ctx context.Context, parentID, title, content string) (*domain.Note, error) {
	if parentID == "" {
		parentID = domain.RootNoteID
	}
	now := time.Now().UTC()
	n := &domain.Note{
		ID:        uuid.New().String(),
		ParentID:  parentID,
		Title:     title,
		Content:   content,
		CreatedAt: now,
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO notes (id, parent_id, title, content, revision, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)`,
		n.ID, n.ParentID, n.Title, n.Content, now.Format(time.RFC3339), now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting note: %w", err)
	}
	return n, nil
}

func (r *SQLiteNoteRepo) GetNote(ctx context.Context, id string) (*domain.Note, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT id, COALESCE(parent_id, ''), title, content, created_at FROM notes WHERE id = ?`, id)
	var (
		n         domain.Note
		createdAt string
	)
	if err := row.Scan(&n.ID, &n.ParentID, &n.Title, &n.Content, &createdAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("note %s: %w", id, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scanning note: %w", err)
	}
	n.CreatedAt = parseTime(createdAt)
	return &n, nil
}

// SearchNotes returns notes whose title matches exactly, oldest first.
func (r *SQLiteNoteRepo) SearchNotes(ctx context.Context, title string) ([]*domain.Note, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, COALESCE(parent_id, ''), title, content, created_at FROM notes
		WHERE title = ? ORDER BY created_at, id`, title)
	if err != nil {
		return nil, fmt.Errorf("searching notes: %w", err)
	}
	defer rows.Close()

	var notes []*domain.Note
	for rows.Next() {
		var (
			n         domain.Note
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.ParentID, &n.Title, &n.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning note: %w", err)
		}
		n.CreatedAt = parseTime(createdAt)
		notes = append(notes, &n)
	}
	return notes, rows.Err()
}

func (r *SQLiteNoteRepo) AppendContent(ctx context.Context, noteID, fragment string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE notes SET content = content || ?, revision = revision + 1, updated_at = ? WHERE id = ?`,
		fragment, nowUTC(), noteID)
	if err != nil {
		return fmt.Errorf("appending note content: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("note %s: %w", noteID, domain.ErrNotFound)
	}
	return nil
}

func (r *SQLiteNoteRepo) CreateAttachment(ctx context.Context, ownerNoteID, name, mime string, data []byte) (*domain.Attachment, error) {
	now := time.Now().UTC()
	a := &domain.Attachment{
		ID:          uuid.New().String(),
		OwnerNoteID: ownerNoteID,
		Name:        name,
		MIME:        mime,
		Size:        len(data),
		CreatedAt:   now,
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO attachments (id, owner_note_id, name, mime, data, created_at) VALUES (?, ?, ?, ?, ?, ?)`,
		a.ID, a.OwnerNoteID, a.Name, a.MIME, data, now.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting attachment: %w", err)
	}
	return a, nil
}
