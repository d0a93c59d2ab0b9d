package repository

import (
	"database/sql"
	"strconv"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/domain"
)

// nowUTC returns the current UTC time formatted as RFC3339.
func nowUTC() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// parseTime parses an RFC3339 column, returning the zero time on failure.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// nullableDate converts a nullable TEXT column into a *domain.Date.
func nullableDate(s sql.NullString) *domain.Date {
	if !s.Valid || s.String == "" {
		return nil
	}
	d := domain.Date(s.String)
	return &d
}

func formatRevision(rev int64) string {
	return strconv.FormatInt(rev, 10)
}

// dayNoteID is the deterministic note id of a local day note, which makes
// concurrent creation of the same day converge on one row.
func dayNoteID(owner int64, date domain.Date) string {
	return "day-" + strconv.FormatInt(owner, 10) + "-" + string(date)
}
