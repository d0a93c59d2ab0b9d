package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/alexanderramin/trilium-bot/internal/domain"
	"github.com/alexanderramin/trilium-bot/internal/repository"
)

const (
	settingQuickAdd        = "quick_add"
	settingRolloverEnabled = "rollover_enabled"
	settingRolloverTime    = "rollover_time"
)

type chatService struct {
	chats    repository.ChatRepo
	settings repository.SettingsRepo
	defaults domain.Settings
}

// NewChatService returns a ChatService whose settings fall back to
// defaults until changed at runtime.
func NewChatService(chats repository.ChatRepo, settings repository.SettingsRepo, defaults domain.Settings) ChatService {
	return &chatService{chats: chats, settings: settings, defaults: defaults}
}

func (s *chatService) Register(ctx context.Context, chatID, userID int64) (*domain.Chat, error) {
	return s.chats.Register(ctx, chatID, userID)
}

func (s *chatService) Settings(ctx context.Context) (domain.Settings, error) {
	out := s.defaults
	var err error
	if out.QuickAdd, err = s.boolSetting(ctx, settingQuickAdd, s.defaults.QuickAdd); err != nil {
		return domain.Settings{}, err
	}
	if out.RolloverEnabled, err = s.boolSetting(ctx, settingRolloverEnabled, s.defaults.RolloverEnabled); err != nil {
		return domain.Settings{}, err
	}
	v, err := s.settings.Get(ctx, settingRolloverTime)
	switch {
	case err == nil:
		if _, _, perr := domain.ParseClock(v); perr == nil {
			out.RolloverTime = v
		}
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Settings{}, err
	}
	return out, nil
}

func (s *chatService) ToggleQuickAdd(ctx context.Context) (domain.Settings, error) {
	cur, err := s.Settings(ctx)
	if err != nil {
		return domain.Settings{}, err
	}
	if err := s.settings.Set(ctx, settingQuickAdd, strconv.FormatBool(!cur.QuickAdd)); err != nil {
		return domain.Settings{}, err
	}
	cur.QuickAdd = !cur.QuickAdd
	return cur, nil
}

func (s *chatService) SetRolloverEnabled(ctx context.Context, enabled bool) (domain.Settings, error) {
	if err := s.settings.Set(ctx, settingRolloverEnabled, strconv.FormatBool(enabled)); err != nil {
		return domain.Settings{}, err
	}
	return s.Settings(ctx)
}

// SetRolloverTime stores the daily rollover time of day. A value that is
// not HH:MM fails with domain.ErrValidation.
func (s *chatService) SetRolloverTime(ctx context.Context, clock string) (domain.Settings, error) {
	hour, minute, err := domain.ParseClock(clock)
	if err != nil {
		return domain.Settings{}, fmt.Errorf("%w: %v", domain.ErrValidation, err)
	}
	if err := s.settings.Set(ctx, settingRolloverTime, fmt.Sprintf("%02d:%02d", hour, minute)); err != nil {
		return domain.Settings{}, err
	}
	return s.Settings(ctx)
}

func (s *chatService) boolSetting(ctx context.Context, key string, def bool) (bool, error) {
	v, err := s.settings.Get(ctx, key)
	if errors.Is(err, domain.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return false, err
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("setting %s=%q: %w", key, v, err)
	}
	return b, nil
}
