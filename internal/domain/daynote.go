package domain

// DayNote is the note a chat's content for one calendar date lives in.
// Revision is an opaque token used for optimistic concurrency.
type DayNote struct {
	Owner    int64
	Date     Date
	NoteID   string
	Content  string
	Revision string
}
