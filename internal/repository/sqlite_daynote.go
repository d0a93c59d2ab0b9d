package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"

	"github.com/alexanderramin/trilium-bot/internal/db"
	"github.com/alexanderramin/trilium-bot/internal/domain"
)

// SQLiteDayNoteRepo stores day notes in the local notes table. The
// revision column is bumped on every write and checked by a conditional
// UPDATE.
type SQLiteDayNoteRepo struct {
	db  db.DBTX
	uow db.UnitOfWork
}

func NewSQLiteDayNoteRepo(database db.DBTX, uow db.UnitOfWork) *SQLiteDayNoteRepo {
	return &SQLiteDayNoteRepo{db: database, uow: uow}
}

const dayNoteSelect = `SELECT d.owner, d.date, n.id, n.content, n.revision
	FROM day_notes d JOIN notes n ON n.id = d.note_id
	WHERE d.owner = ? AND d.date = ?`

func (r *SQLiteDayNoteRepo) GetOrCreateDayNote(ctx context.Context, owner int64, date domain.Date) (*domain.DayNote, error) {
	var note *domain.DayNote
	err := r.uow.WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		id := dayNoteID(owner, date)
		now := nowUTC()
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO notes (id, parent_id, title, content, revision, created_at, updated_at)
			VALUES (?, ?, ?, '', 1, ?, ?)`,
			id, domain.RootNoteID, string(date), now, now,
		); err != nil {
			return fmt.Errorf("inserting day note: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO day_notes (owner, date, note_id) VALUES (?, ?, ?)`,
			owner, string(date), id,
		); err != nil {
			return fmt.Errorf("inserting day note mapping: %w", err)
		}
		var err error
		note, err = scanDayNote(tx.QueryRowContext(ctx, dayNoteSelect, owner, string(date)))
		return err
	})
	if err != nil {
		return nil, err
	}
	return note, nil
}

func (r *SQLiteDayNoteRepo) FindDayNote(ctx context.Context, owner int64, date domain.Date) (*domain.DayNote, error) {
	return scanDayNote(r.db.QueryRowContext(ctx, dayNoteSelect, owner, string(date)))
}

func (r *SQLiteDayNoteRepo) WriteDayNote(ctx context.Context, owner int64, date domain.Date, content, expectedRevision string) (string, error) {
	expected, err := strconv.ParseInt(expectedRevision, 10, 64)
	if err != nil {
		return "", fmt.Errorf("revision %q: %w", expectedRevision, domain.ErrConflict)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE notes SET content = ?, revision = revision + 1, updated_at = ?
		WHERE revision = ? AND id = (SELECT note_id FROM day_notes WHERE owner = ? AND date = ?)`,
		content, nowUTC(), expected, owner, string(date),
	)
	if err != nil {
		return "", fmt.Errorf("writing day note: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", fmt.Errorf("writing day note: %w", err)
	}
	if n == 0 {
		if _, err := r.FindDayNote(ctx, owner, date); err != nil {
			return "", err
		}
		return "", fmt.Errorf("day note %d/%s at revision %s: %w", owner, date, expectedRevision, domain.ErrConflict)
	}
	return formatRevision(expected + 1), nil
}

func scanDayNote(row *sql.Row) (*domain.DayNote, error) {
	var (
		d    domain.DayNote
		date string
		rev  int64
	)
	if err := row.Scan(&d.Owner, &date, &d.NoteID, &d.Content, &rev); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("day note: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scanning day note: %w", err)
	}
	d.Date = domain.Date(date)
	d.Revision = formatRevision(rev)
	return &d, nil
}
