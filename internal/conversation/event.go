package conversation

import "context"

// EventKind tells how an inbound event should be read.
type EventKind int

const (
	EventText EventKind = iota
	EventCommand
	EventButton
	EventFile
)

// Event is one inbound interaction of a chat.
type Event struct {
	ChatID int64
	UserID int64
	Kind   EventKind

	// Text is the message text, or the command name without the slash.
	Text string

	// Args is what follows a command name.
	Args string

	// Token is the payload of a tapped button.
	Token string

	File *File
}

// File is an uploaded document. Its content is fetched on demand.
type File struct {
	Name  string
	Size  int64
	Fetch func(ctx context.Context) ([]byte, error)
}
