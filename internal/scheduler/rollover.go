// Package scheduler triggers the daily checklist rollover.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/domain"
	"github.com/alexanderramin/trilium-bot/internal/service"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrAlreadyRunning is returned when a pass is requested while another is
// still in progress.
var ErrAlreadyRunning = errors.New("rollover pass already running")

// SettingsSource supplies the runtime rollover toggle and time of day.
type SettingsSource interface {
	Settings(ctx context.Context) (domain.Settings, error)
}

// Scheduler runs a rollover pass at startup and then daily at the
// configured time of day.
type Scheduler struct {
	rollover service.RolloverService
	settings SettingsSource
	loc      *time.Location
	now      func() time.Time
	logger   zerolog.Logger

	cron  *cron.Cron
	mu    sync.Mutex // guards entry
	entry cron.EntryID
	ctx   context.Context

	running sync.Mutex
	wg      sync.WaitGroup
}

type Option func(*Scheduler)

// WithClock replaces time.Now for the rollover passes.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

func New(rollover service.RolloverService, settings SettingsSource, loc *time.Location, logger zerolog.Logger, opts ...Option) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	logger = logger.With().Str("component", "scheduler").Logger()
	s := &Scheduler{
		rollover: rollover,
		settings: settings,
		loc:      loc,
		now:      time.Now,
		logger:   logger,
		ctx:      context.Background(),
	}
	for _, opt := range opts {
		opt(s)
	}
	cronLogger := logger
	s.cron = cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cron.PrintfLogger(&cronLogger)),
	)
	return s
}

// CronSpec converts an HH:MM time of day into a daily cron expression.
func CronSpec(clock string) (string, error) {
	hour, minute, err := domain.ParseClock(clock)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%d %d * * *", minute, hour), nil
}

// Start schedules the daily pass and runs a catch-up pass in the
// background. ctx bounds every pass the scheduler starts.
func (s *Scheduler) Start(ctx context.Context) error {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return fmt.Errorf("reading rollover settings: %w", err)
	}
	s.ctx = ctx
	if err := s.schedule(settings.RolloverTime); err != nil {
		return err
	}
	s.cron.Start()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.run("startup")
	}()

	s.logger.Info().
		Str("at", settings.RolloverTime).
		Str("zone", s.loc.String()).
		Time("next", s.Next()).
		Msg("rollover scheduled")
	return nil
}

// Reschedule moves the daily pass to the time of day currently in the
// settings. The previous entry is dropped only once the new one is in
// place.
func (s *Scheduler) Reschedule(ctx context.Context) error {
	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return fmt.Errorf("reading rollover settings: %w", err)
	}
	if err := s.schedule(settings.RolloverTime); err != nil {
		return err
	}
	s.logger.Info().
		Str("at", settings.RolloverTime).
		Time("next", s.Next()).
		Msg("rollover rescheduled")
	return nil
}

func (s *Scheduler) schedule(clock string) error {
	spec, err := CronSpec(clock)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	id, err := s.cron.AddFunc(spec, func() {
		s.run("daily")
	})
	if err != nil {
		return fmt.Errorf("scheduling rollover %q: %w", spec, err)
	}
	if s.entry != 0 {
		s.cron.Remove(s.entry)
	}
	s.entry = id
	return nil
}

// Stop halts the schedule and waits for passes in flight.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.wg.Wait()
	s.logger.Info().Msg("scheduler stopped")
}

// Next returns the next daily activation, or the zero time before Start.
func (s *Scheduler) Next() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron.Entry(s.entry).Next
}

// RunOnce performs one pass now unless rollover is disabled, in which case
// it returns a nil report.
func (s *Scheduler) RunOnce(ctx context.Context) (*service.RolloverReport, error) {
	if !s.running.TryLock() {
		return nil, ErrAlreadyRunning
	}
	defer s.running.Unlock()

	settings, err := s.settings.Settings(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading rollover settings: %w", err)
	}
	if !settings.RolloverEnabled {
		return nil, nil
	}
	return s.rollover.Run(ctx, s.now().In(s.loc))
}

func (s *Scheduler) run(trigger string) {
	report, err := s.RunOnce(s.ctx)
	log := s.logger.With().Str("trigger", trigger).Logger()
	switch {
	case errors.Is(err, ErrAlreadyRunning):
		log.Warn().Msg("previous rollover still running, skipping")
	case err != nil:
		log.Error().Err(err).Msg("rollover pass failed")
	case report == nil:
		log.Info().Msg("rollover disabled, skipping")
	default:
		log.Info().
			Str("today", report.Today.String()).
			Int("chats", len(report.Chats)).
			Int("carried", report.Carried()).
			Int("failed", report.Failed()).
			Msg("rollover pass finished")
	}
}
