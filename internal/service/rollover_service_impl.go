package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/domain"
	"github.com/alexanderramin/trilium-bot/internal/repository"
	"github.com/rs/zerolog"
)

// MaxCatchUpDays bounds how many missed days a single rollover pass
// collects for a chat whose cursor fell behind.
const MaxCatchUpDays = 7

type rolloverService struct {
	store    *ChecklistStore
	chats    repository.ChatRepo
	logger   zerolog.Logger
	observer UseCaseObserver
}

func NewRolloverService(store *ChecklistStore, chats repository.ChatRepo, logger zerolog.Logger, observers ...UseCaseObserver) RolloverService {
	return &rolloverService{
		store:    store,
		chats:    chats,
		logger:   logger.With().Str("component", "rollover").Logger(),
		observer: useCaseObserverOrNoop(observers),
	}
}

func (s *rolloverService) Run(ctx context.Context, now time.Time) (report *RolloverReport, err error) {
	today := domain.DateOf(now)
	yesterday := today.Yesterday()
	fields := map[string]any{"today": today.String()}
	defer observe(ctx, s.observer, "rollover", time.Now(), fields, &err)

	chats, err := s.chats.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing chats: %w", err)
	}

	report = &RolloverReport{Today: today}
	for _, chat := range chats {
		if ctx.Err() != nil {
			return report, ctx.Err()
		}
		if !chat.NeedsRollover(yesterday) {
			report.Chats = append(report.Chats, ChatRolloverResult{ChatID: chat.ID, UpToDate: true})
			continue
		}
		res := s.rollover(ctx, chat, today)
		report.Chats = append(report.Chats, res)
	}
	fields["chats"] = len(report.Chats)
	fields["carried"] = report.Carried()
	fields["failed"] = report.Failed()
	return report, nil
}

func (s *rolloverService) RolloverChat(ctx context.Context, chatID int64, now time.Time) (*ChatRolloverResult, error) {
	chat, err := s.chats.GetByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	res := s.rollover(ctx, chat, domain.DateOf(now))
	if res.Err != nil {
		return &res, res.Err
	}
	return &res, nil
}

// rollover merges the unfinished items of the days after the chat's cursor
// up to yesterday into today, then advances the cursor. Source notes are
// only read. A malformed source day is reported and passed over; any other
// failure leaves the cursor where it was.
func (s *rolloverService) rollover(ctx context.Context, chat *domain.Chat, today domain.Date) ChatRolloverResult {
	res := ChatRolloverResult{ChatID: chat.ID, From: sourceDates(chat.RolloverCursor, today)}
	log := s.logger.With().Int64("chat_id", chat.ID).Str("today", today.String()).Logger()

	type source struct {
		date  domain.Date
		items []domain.ChecklistItem
	}
	var sources []source
	for _, d := range res.From {
		c, err := s.store.Peek(ctx, chat.ID, d)
		if errors.Is(err, domain.ErrMalformedContent) {
			// A broken day is left for the operator; the other days still move.
			res.Malformed = append(res.Malformed, d)
			log.Error().Err(err).Str("from", d.String()).Msg("source day is malformed, left out of rollover")
			continue
		}
		if err != nil {
			res.Err = err
			log.Error().Err(err).Str("from", d.String()).Msg("reading source day failed, chat skipped")
			return res
		}
		if undone := c.Undone(); len(undone) > 0 {
			sources = append(sources, source{date: d, items: undone})
		}
	}

	if len(sources) > 0 {
		carried := 0
		_, err := s.store.Mutate(ctx, chat.ID, today, func(c *domain.Checklist) error {
			carried = 0
			for _, src := range sources {
				ok, err := c.Carry(src.date, src.items)
				if err != nil {
					return err
				}
				if ok {
					carried += len(src.items)
				}
			}
			if carried == 0 {
				return errUnchanged
			}
			return nil
		})
		if err != nil {
			res.Err = err
			log.Error().Err(err).Msg("rollover failed, chat skipped")
			return res
		}
		res.Carried = carried
	}

	yesterday := today.Yesterday()
	if err := s.chats.AdvanceCursor(ctx, chat.ID, yesterday); err != nil {
		// Items are in place and marked as carried; the next pass re-runs
		// this chat without duplicating them.
		res.Err = fmt.Errorf("advancing rollover cursor: %w", err)
		log.Error().Err(err).Msg("rollover cursor not advanced")
		return res
	}
	log.Info().Int("carried", res.Carried).Msg("rollover applied")
	return res
}

// sourceDates lists the days to collect from, oldest first: every day
// after cursor through yesterday, capped at MaxCatchUpDays. A chat that
// never rolled over collects yesterday only.
func sourceDates(cursor *domain.Date, today domain.Date) []domain.Date {
	yesterday := today.Yesterday()
	if cursor == nil || !cursor.Before(yesterday) {
		return []domain.Date{yesterday}
	}
	first := cursor.AddDays(1)
	if floor := today.AddDays(-MaxCatchUpDays); first.Before(floor) {
		first = floor
	}
	var dates []domain.Date
	for d := first; !yesterday.Before(d); d = d.AddDays(1) {
		dates = append(dates, d)
	}
	return dates
}
