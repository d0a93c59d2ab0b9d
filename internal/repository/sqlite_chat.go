package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexanderramin/trilium-bot/internal/db"
	"github.com/alexanderramin/trilium-bot/internal/domain"
)

// SQLiteChatRepo implements ChatRepo using a SQLite database.
type SQLiteChatRepo struct {
	db db.DBTX
}

func NewSQLiteChatRepo(database db.DBTX) *SQLiteChatRepo {
	return &SQLiteChatRepo{db: database}
}

const chatColumns = `id, user_id, rollover_cursor, created_at, updated_at`

func (r *SQLiteChatRepo) Register(ctx context.Context, chatID, userID int64) (*domain.Chat, error) {
	now := nowUTC()
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO chats (id, user_id, rollover_cursor, created_at, updated_at)
		VALUES (?, ?, NULL, ?, ?) ON CONFLICT(id) DO NOTHING`,
		chatID, userID, now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("registering chat: %w", err)
	}
	return r.GetByID(ctx, chatID)
}

func (r *SQLiteChatRepo) GetByID(ctx context.Context, chatID int64) (*domain.Chat, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+chatColumns+` FROM chats WHERE id = ?`, chatID)
	c, err := scanChat(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("chat %d: %w", chatID, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("scanning chat: %w", err)
	}
	return c, nil
}

func (r *SQLiteChatRepo) List(ctx context.Context) ([]*domain.Chat, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+chatColumns+` FROM chats ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}
	defer rows.Close()

	var chats []*domain.Chat
	for rows.Next() {
		c, err := scanChat(rows.Scan)
		if err != nil {
			return nil, fmt.Errorf("scanning chat: %w", err)
		}
		chats = append(chats, c)
	}
	return chats, rows.Err()
}

func (r *SQLiteChatRepo) AdvanceCursor(ctx context.Context, chatID int64, date domain.Date) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chats SET rollover_cursor = ?, updated_at = ?
		WHERE id = ? AND (rollover_cursor IS NULL OR rollover_cursor < ?)`,
		string(date), nowUTC(), chatID, string(date),
	)
	if err != nil {
		return fmt.Errorf("advancing rollover cursor: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		// Either already at or past date, or the chat is unknown.
		if _, err := r.GetByID(ctx, chatID); err != nil {
			return err
		}
	}
	return nil
}

func scanChat(scan func(dest ...any) error) (*domain.Chat, error) {
	var (
		c                    domain.Chat
		cursor               sql.NullString
		createdAt, updatedAt string
	)
	if err := scan(&c.ID, &c.UserID, &cursor, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	c.RolloverCursor = nullableDate(cursor)
	c.CreatedAt = parseTime(createdAt)
	c.UpdatedAt = parseTime(updatedAt)
	return &c, nil
}
