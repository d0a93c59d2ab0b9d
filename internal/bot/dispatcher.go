package bot

import (
	"context"
	"errors"
	"sync"

	"github.com/alexanderramin/trilium-bot/internal/conversation"
	"github.com/rs/zerolog"
)

const textUnauthorized = "You are not authorized to use this bot."

// Commands are advertised to clients on start.
var Commands = []Command{
	{Name: "start", Description: "Show main menu"},
	{Name: "todo", Description: "Show today's TODO list"},
	{Name: "move", Description: "Move yesterday's unfinished todos to today"},
	{Name: "rollover", Description: "Show or set the daily rollover: on, off or HH:MM"},
	{Name: "cancel", Description: "Cancel the current action"},
	{Name: "id", Description: "Show your Telegram ID"},
}

// Dispatcher reads events from a Channel, checks the sender against the
// admin list and hands each event to the Handler on its own goroutine.
type Dispatcher struct {
	channel  Channel
	handler  Handler
	chats    Registrar
	admins   map[int64]struct{}
	logger   zerolog.Logger
	seen     sync.Map
	inflight sync.WaitGroup
}

func NewDispatcher(channel Channel, handler Handler, chats Registrar, admins []int64, logger zerolog.Logger) *Dispatcher {
	set := make(map[int64]struct{}, len(admins))
	for _, id := range admins {
		set[id] = struct{}{}
	}
	return &Dispatcher{
		channel: channel,
		handler: handler,
		chats:   chats,
		admins:  set,
		logger:  logger.With().Str("component", "bot").Logger(),
	}
}

// Run serves events until ctx is done and the event stream closes, then
// waits for events still being handled.
func (d *Dispatcher) Run(ctx context.Context) error {
	if err := d.channel.SetCommands(ctx, Commands); err != nil {
		d.logger.Warn().Err(err).Msg("registering bot commands failed")
	}

	events, err := d.channel.Events(ctx)
	if err != nil {
		return err
	}
	d.logger.Info().Int("admins", len(d.admins)).Msg("bot started")

	for in := range events {
		d.inflight.Add(1)
		go func(in Inbound) {
			defer d.inflight.Done()
			d.Dispatch(ctx, in)
		}(in)
	}
	d.inflight.Wait()
	d.logger.Info().Msg("bot stopped")

	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

// Dispatch handles a single inbound event and delivers the reply.
func (d *Dispatcher) Dispatch(ctx context.Context, in Inbound) {
	ev := in.Event
	log := d.logger.With().Int64("chat_id", ev.ChatID).Int64("user_id", ev.UserID).Logger()

	if !d.authorized(ev) {
		log.Warn().Msg("rejected unauthorized user")
		d.deliver(ctx, in, conversation.Render{Text: textUnauthorized})
		return
	}
	d.register(ctx, ev)

	r := d.handler.Handle(ctx, ev)
	d.deliver(ctx, in, r)
}

func (d *Dispatcher) authorized(ev conversation.Event) bool {
	if ev.Kind == conversation.EventCommand && ev.Text == "id" {
		return true
	}
	_, ok := d.admins[ev.UserID]
	return ok
}

func (d *Dispatcher) register(ctx context.Context, ev conversation.Event) {
	if _, done := d.seen.Load(ev.ChatID); done {
		return
	}
	if _, err := d.chats.Register(ctx, ev.ChatID, ev.UserID); err != nil {
		// Retried on the next event of the chat.
		d.logger.Error().Err(err).Int64("chat_id", ev.ChatID).Msg("registering chat failed")
		return
	}
	d.seen.Store(ev.ChatID, struct{}{})
}

func (d *Dispatcher) deliver(ctx context.Context, in Inbound, r conversation.Render) {
	chatID := in.Event.ChatID
	var err error
	if in.CallbackID != "" {
		if err := d.channel.Answer(ctx, in.CallbackID, r.Notice); err != nil {
			d.logger.Warn().Err(err).Int64("chat_id", chatID).Msg("answering callback failed")
		}
	}
	switch {
	case r.Text != "" && r.Edit && in.MessageID != 0:
		err = d.channel.Edit(ctx, chatID, in.MessageID, r)
	case r.Text != "":
		err = d.channel.Send(ctx, chatID, r)
	case r.Notice != "" && in.CallbackID == "":
		err = d.channel.Send(ctx, chatID, conversation.Render{Text: r.Notice})
	}
	if err != nil {
		d.logger.Error().Err(err).Int64("chat_id", chatID).Msg("delivering reply failed")
	}
}
