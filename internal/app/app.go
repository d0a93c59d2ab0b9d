// Package app wires the bot's stores, services and transports together.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/bot"
	"github.com/alexanderramin/trilium-bot/internal/config"
	"github.com/alexanderramin/trilium-bot/internal/conversation"
	"github.com/alexanderramin/trilium-bot/internal/db"
	"github.com/alexanderramin/trilium-bot/internal/repository"
	"github.com/alexanderramin/trilium-bot/internal/scheduler"
	"github.com/alexanderramin/trilium-bot/internal/service"
	"github.com/alexanderramin/trilium-bot/internal/telegram"
	"github.com/alexanderramin/trilium-bot/internal/trilium"
	"github.com/rs/zerolog"
)

// App holds the long-lived services shared by every command.
type App struct {
	Config   config.Config
	Logger   zerolog.Logger
	Location *time.Location
	Now      func() time.Time

	Store      *service.ChecklistStore
	Checklists service.ChecklistService
	Notes      service.NoteService
	Chats      service.ChatService
	Rollover   service.RolloverService

	database *sql.DB
}

// New opens the local database and builds the services over the
// configured note backend. It does not contact Telegram.
func New(cfg config.Config, logger zerolog.Logger) (*App, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	database, err := db.OpenDB(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	var (
		days  repository.DayNoteRepo
		notes repository.NoteRepo
	)
	switch cfg.Backend {
	case config.BackendTrilium:
		client := trilium.NewClient(cfg.TriliumURL, cfg.TriliumToken, nil, logger)
		days, notes = client, client
	case config.BackendSQLite:
		uow := db.NewSQLiteUnitOfWork(database)
		days = repository.NewSQLiteDayNoteRepo(database, uow)
		notes = repository.NewSQLiteNoteRepo(database)
	default:
		database.Close()
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	chatRepo := repository.NewSQLiteChatRepo(database)
	settingsRepo := repository.NewSQLiteSettingsRepo(database)
	observer := service.NewLogUseCaseObserver(logger)
	store := service.NewChecklistStore(days, cfg.StoreTimeout(), logger)

	logger.Debug().Str("backend", cfg.Backend).Str("db", cfg.DBPath).Str("zone", loc.String()).Msg("services wired")

	return &App{
		Config:     cfg,
		Logger:     logger,
		Location:   loc,
		Now:        time.Now,
		Store:      store,
		Checklists: service.NewChecklistService(store, observer),
		Notes:      service.NewNoteService(notes, days, cfg.AttachmentParent, cfg.StoreTimeout(), observer),
		Chats:      service.NewChatService(chatRepo, settingsRepo, cfg.Settings()),
		Rollover:   service.NewRolloverService(store, chatRepo, logger, observer),
		database:   database,
	}, nil
}

// LocalNow returns the current time in the configured zone.
func (a *App) LocalNow() time.Time {
	return a.Now().In(a.Location)
}

func (a *App) Close() error {
	if a.database == nil {
		return nil
	}
	return a.database.Close()
}

// Serve connects to Telegram and runs the bot and the rollover schedule
// until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	channel, err := telegram.New(telegram.Config{Token: a.Config.TelegramToken}, a.Logger)
	if err != nil {
		return err
	}
	return a.serve(ctx, channel)
}

func (a *App) serve(ctx context.Context, channel bot.Channel) error {
	sched := scheduler.New(a.Rollover, a.Chats, a.Location, a.Logger, scheduler.WithClock(a.Now))
	machine := conversation.NewMachine(conversation.Deps{
		Checklists: a.Checklists,
		Notes:      a.Notes,
		Chats:      a.Chats,
		Rollover:   a.Rollover,
		Reschedule: sched.Reschedule,
		Location:   a.Location,
		Now:        a.Now,
		Logger:     a.Logger,
	})
	dispatcher := bot.NewDispatcher(channel, machine, a.Chats, a.Config.Admins, a.Logger)

	if err := sched.Start(ctx); err != nil {
		return err
	}
	defer sched.Stop()

	return dispatcher.Run(ctx)
}
