package bot

import (
	"context"

	"github.com/alexanderramin/trilium-bot/internal/conversation"
	"github.com/alexanderramin/trilium-bot/internal/domain"
)

// Inbound is an event as delivered by the chat transport.
type Inbound struct {
	Event conversation.Event

	// CallbackID identifies a button tap that must be answered.
	CallbackID string

	// MessageID is the message the tapped button belongs to.
	MessageID int
}

// Command is a bot command advertised to chat clients.
type Command struct {
	Name        string
	Description string
}

// Channel is the chat transport.
type Channel interface {
	// Events streams inbound events until ctx is done, then closes the
	// channel.
	Events(ctx context.Context) (<-chan Inbound, error)

	Send(ctx context.Context, chatID int64, r conversation.Render) error
	Edit(ctx context.Context, chatID int64, messageID int, r conversation.Render) error
	Answer(ctx context.Context, callbackID, notice string) error
	SetCommands(ctx context.Context, cmds []Command) error
}

// Handler turns an event into a render.
type Handler interface {
	Handle(ctx context.Context, ev conversation.Event) conversation.Render
}

// Registrar records chats on first contact.
type Registrar interface {
	Register(ctx context.Context, chatID, userID int64) (*domain.Chat, error)
}
