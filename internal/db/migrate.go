package db

import (
	"database/sql"
	"fmt"
)

// Migrate applies the schema. Every statement is idempotent, so it runs on
// each start.
func Migrate(db *sql.DB) error {
	for i, stmt := range migrations {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	return nil
}

var migrations = []string{
	// Local note store: a tree of notes rooted at 'root'.
	`CREATE TABLE IF NOT EXISTS notes (
		id         TEXT PRIMARY KEY,
		parent_id  TEXT REFERENCES notes(id) ON DELETE CASCADE,
		title      TEXT NOT NULL,
		content    TEXT NOT NULL DEFAULT '',
		revision   INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,

	`INSERT OR IGNORE INTO notes (id, parent_id, title, content, revision, created_at, updated_at)
		VALUES ('root', NULL, 'root', '', 1, strftime('%Y-%m-%dT%H:%M:%SZ','now'), strftime('%Y-%m-%dT%H:%M:%SZ','now'))`,

	`CREATE INDEX IF NOT EXISTS idx_notes_parent ON notes(parent_id)`,
	`CREATE INDEX IF NOT EXISTS idx_notes_title ON notes(title)`,

	`CREATE TABLE IF NOT EXISTS day_notes (
		owner   INTEGER NOT NULL,
		date    TEXT NOT NULL,
		note_id TEXT NOT NULL UNIQUE REFERENCES notes(id) ON DELETE CASCADE,
		PRIMARY KEY (owner, date)
	)`,

	`CREATE TABLE IF NOT EXISTS attachments (
		id            TEXT PRIMARY KEY,
		owner_note_id TEXT NOT NULL REFERENCES notes(id) ON DELETE CASCADE,
		name          TEXT NOT NULL,
		mime          TEXT NOT NULL,
		data          BLOB NOT NULL,
		created_at    TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_attachments_owner ON attachments(owner_note_id)`,

	`CREATE TABLE IF NOT EXISTS chats (
		id              INTEGER PRIMARY KEY,
		user_id         INTEGER NOT NULL,
		rollover_cursor TEXT,
		created_at      TEXT NOT NULL,
		updated_at      TEXT NOT NULL
	)`,

	`CREATE TABLE IF NOT EXISTS settings (
		key        TEXT PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL
	)`,
}
