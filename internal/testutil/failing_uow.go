package testutil

import (
	"context"
	"database/sql"
	"strings"

	"github.com/alexanderramin/trilium-bot/internal/db"
)

// FailingUoW runs transactions like db.SQLiteUnitOfWork but fails the first
// write that targets Table with Err, leaving earlier writes of the same
// transaction to be rolled back. Reads are not affected.
type FailingUoW struct {
	DB    *sql.DB
	Table string
	Err   error
}

func (u *FailingUoW) WithinTx(ctx context.Context, fn func(ctx context.Context, tx db.DBTX) error) error {
	return db.NewSQLiteUnitOfWork(u.DB).WithinTx(ctx, func(ctx context.Context, tx db.DBTX) error {
		return fn(ctx, &failingWrites{DBTX: tx, table: u.Table, err: u.Err})
	})
}

type failingWrites struct {
	db.DBTX
	table string
	err   error
}

func (f *failingWrites) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if writesTo(query, f.table) {
		return nil, f.err
	}
	return f.DBTX.ExecContext(ctx, query, args...)
}

// writesTo reports whether query is an INSERT, UPDATE or DELETE on table.
func writesTo(query, table string) bool {
	fields := strings.Fields(strings.ToLower(query))
	for i, f := range fields {
		if (f == "into" || f == "update" || f == "from") && i+1 < len(fields) && fields[i+1] == table {
			return true
		}
	}
	return false
}
