package domain

import "time"

// RootNoteID is the id of the top of the note hierarchy.
const RootNoteID = "root"

type Note struct {
	ID        string
	ParentID  string
	Title     string
	Content   string
	CreatedAt time.Time
}

type Attachment struct {
	ID          string
	OwnerNoteID string
	Name        string
	MIME        string
	Size        int
	CreatedAt   time.Time
}
