// Package telegram implements the bot's chat transport on the Telegram
// Bot API using long polling.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/bot"
	"github.com/alexanderramin/trilium-bot/internal/conversation"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// MaxDownloadSize is the largest file the Bot API lets bots download.
const MaxDownloadSize = 20 << 20

// Config holds the transport settings.
type Config struct {
	Token string

	// APIEndpoint and FileEndpoint are format strings taking the token and
	// the method or file path. They default to the public Bot API.
	APIEndpoint  string
	FileEndpoint string

	// PollTimeout is the long polling timeout in seconds.
	PollTimeout int

	Client *http.Client
}

// Channel is a bot.Channel backed by the Telegram Bot API.
type Channel struct {
	api          *tgbotapi.BotAPI
	client       *http.Client
	fileEndpoint string
	pollTimeout  int
	logger       zerolog.Logger
}

var _ bot.Channel = (*Channel)(nil)

// New connects to the Bot API and verifies the token.
func New(cfg Config, logger zerolog.Logger) (*Channel, error) {
	if cfg.APIEndpoint == "" {
		cfg.APIEndpoint = tgbotapi.APIEndpoint
	}
	if cfg.FileEndpoint == "" {
		cfg.FileEndpoint = tgbotapi.FileEndpoint
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = 60
	}
	if cfg.Client == nil {
		cfg.Client = &http.Client{Timeout: time.Duration(cfg.PollTimeout+10) * time.Second}
	}
	logger = logger.With().Str("component", "telegram").Logger()
	if err := tgbotapi.SetLogger(botLogger{logger}); err != nil {
		return nil, err
	}

	api, err := tgbotapi.NewBotAPIWithClient(cfg.Token, cfg.APIEndpoint, cfg.Client)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	logger.Info().Str("username", api.Self.UserName).Msg("authorized on telegram")

	return &Channel{
		api:          api,
		client:       cfg.Client,
		fileEndpoint: cfg.FileEndpoint,
		pollTimeout:  cfg.PollTimeout,
		logger:       logger,
	}, nil
}

// Events long-polls for updates until ctx is done.
func (c *Channel) Events(ctx context.Context) (<-chan bot.Inbound, error) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = c.pollTimeout
	u.AllowedUpdates = []string{"message", "callback_query"}
	updates := c.api.GetUpdatesChan(u)

	out := make(chan bot.Inbound)
	go func() {
		defer close(out)
		defer c.api.StopReceivingUpdates()
		for {
			select {
			case <-ctx.Done():
				return
			case upd, ok := <-updates:
				if !ok {
					return
				}
				in, ok := c.inbound(upd)
				if !ok {
					continue
				}
				select {
				case out <- in:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (c *Channel) inbound(upd tgbotapi.Update) (bot.Inbound, bool) {
	if q := upd.CallbackQuery; q != nil {
		if q.Message == nil || q.Message.Chat == nil || q.From == nil {
			return bot.Inbound{}, false
		}
		return bot.Inbound{
			Event: conversation.Event{
				ChatID: q.Message.Chat.ID,
				UserID: q.From.ID,
				Kind:   conversation.EventButton,
				Token:  q.Data,
			},
			CallbackID: q.ID,
			MessageID:  q.Message.MessageID,
		}, true
	}

	msg := upd.Message
	if msg == nil || msg.From == nil || msg.Chat == nil {
		return bot.Inbound{}, false
	}
	ev := conversation.Event{ChatID: msg.Chat.ID, UserID: msg.From.ID}
	switch {
	case msg.IsCommand():
		ev.Kind = conversation.EventCommand
		ev.Text = msg.Command()
		ev.Args = strings.TrimSpace(msg.CommandArguments())
	case msg.Document != nil:
		ev.Kind = conversation.EventFile
		ev.File = c.file(msg.Document.FileID, msg.Document.FileName, msg.Document.FileSize)
	case len(msg.Photo) > 0:
		// Photos arrive in several sizes, largest last.
		p := msg.Photo[len(msg.Photo)-1]
		ev.Kind = conversation.EventFile
		ev.File = c.file(p.FileID, "photo.jpg", p.FileSize)
	default:
		ev.Kind = conversation.EventText
		ev.Text = msg.Text
	}
	return bot.Inbound{Event: ev}, true
}

func (c *Channel) file(fileID, name string, size int) *conversation.File {
	return &conversation.File{
		Name: name,
		Size: int64(size),
		Fetch: func(ctx context.Context) ([]byte, error) {
			return c.download(ctx, fileID)
		},
	}
}

func (c *Channel) download(ctx context.Context, fileID string) ([]byte, error) {
	f, err := c.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return nil, fmt.Errorf("resolving file %s: %w", fileID, err)
	}
	if f.FileSize > MaxDownloadSize {
		return nil, fmt.Errorf("file %s is %d bytes, limit %d", fileID, f.FileSize, MaxDownloadSize)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(c.fileEndpoint, c.api.Token, f.FilePath), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading file %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("downloading file %s: HTTP %d", fileID, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadSize+1))
	if err != nil {
		return nil, fmt.Errorf("downloading file %s: %w", fileID, err)
	}
	if len(data) > MaxDownloadSize {
		return nil, fmt.Errorf("file %s exceeds %d bytes", fileID, MaxDownloadSize)
	}
	return data, nil
}

func (c *Channel) Send(_ context.Context, chatID int64, r conversation.Render) error {
	msg := tgbotapi.NewMessage(chatID, r.Text)
	if kb := keyboard(r.Buttons); kb != nil {
		msg.ReplyMarkup = *kb
	}
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

func (c *Channel) Edit(_ context.Context, chatID int64, messageID int, r conversation.Render) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, r.Text)
	edit.ReplyMarkup = keyboard(r.Buttons)
	if _, err := c.api.Send(edit); err != nil {
		if notModified(err) {
			return nil
		}
		return fmt.Errorf("editing message %d: %w", messageID, err)
	}
	return nil
}

func (c *Channel) Answer(_ context.Context, callbackID, notice string) error {
	if _, err := c.api.Request(tgbotapi.NewCallback(callbackID, notice)); err != nil {
		return fmt.Errorf("answering callback: %w", err)
	}
	return nil
}

func (c *Channel) SetCommands(_ context.Context, cmds []bot.Command) error {
	out := make([]tgbotapi.BotCommand, 0, len(cmds))
	for _, cmd := range cmds {
		out = append(out, tgbotapi.BotCommand{Command: cmd.Name, Description: cmd.Description})
	}
	if _, err := c.api.Request(tgbotapi.NewSetMyCommands(out...)); err != nil {
		return fmt.Errorf("setting commands: %w", err)
	}
	return nil
}

func keyboard(rows [][]conversation.Button) *tgbotapi.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}
	out := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			buttons = append(buttons, tgbotapi.NewInlineKeyboardButtonData(b.Label, b.Token))
		}
		out = append(out, tgbotapi.NewInlineKeyboardRow(buttons...))
	}
	kb := tgbotapi.NewInlineKeyboardMarkup(out...)
	return &kb
}

// notModified reports the Bot API's refusal to edit a message into its
// current content.
func notModified(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "message is not modified")
}

// botLogger routes the library's logging into zerolog.
type botLogger struct {
	logger zerolog.Logger
}

func (l botLogger) Println(v ...interface{}) {
	l.logger.Warn().Msg(strings.TrimSpace(fmt.Sprintln(v...)))
}

func (l botLogger) Printf(format string, v ...interface{}) {
	l.logger.Debug().Msg(strings.TrimSpace(fmt.Sprintf(format, v...)))
}
