// Package config loads the bot's settings from the environment and
// command-line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/trilium-bot/internal/domain"
	"github.com/spf13/pflag"
)

// Note store backends.
const (
	BackendTrilium = "trilium"
	BackendSQLite  = "sqlite"
)

// Config holds everything the bot needs to start.
type Config struct {
	TelegramToken string
	TriliumURL    string
	TriliumToken  string
	Admins        []int64

	DBPath  string
	Backend string

	TimeZone         string
	StoreTimeoutMs   int
	RolloverTime     string
	RolloverEnabled  bool
	AttachmentParent string

	LogLevel string
	Env      string
}

// DefaultConfig returns a Config with defaults for everything but the
// credentials and the admin list.
func DefaultConfig() Config {
	return Config{
		DBPath:           defaultDBPath(),
		Backend:          BackendSQLite,
		TimeZone:         "Local",
		StoreTimeoutMs:   10000,
		RolloverTime:     "00:05",
		RolloverEnabled:  true,
		AttachmentParent: "FromTelegram",
		LogLevel:         "info",
		Env:              "production",
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".trilium-bot", "bot.db")
	}
	return filepath.Join(home, ".trilium-bot", "bot.db")
}

// LoadConfig reads configuration from environment variables, falling back
// to defaults for unset values. Unparsable numbers and booleans are
// ignored; an unparsable admin list is an error.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()

	cfg.TelegramToken = os.Getenv("TELEGRAM_BOT_TOKEN")
	cfg.TriliumURL = os.Getenv("TRILIUM_API_URL")
	cfg.TriliumToken = os.Getenv("TRILIUM_ETAPI_TOKEN")
	if cfg.TriliumURL != "" {
		cfg.Backend = BackendTrilium
	}

	if v := os.Getenv("ADMIN_LIST"); v != "" {
		admins, err := ParseAdmins(v)
		if err != nil {
			return cfg, err
		}
		cfg.Admins = admins
	}
	if v := os.Getenv("TRILIUM_BOT_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("TRILIUM_BOT_BACKEND"); v != "" {
		cfg.Backend = strings.ToLower(v)
	}
	if v := os.Getenv("TRILIUM_BOT_TZ"); v != "" {
		cfg.TimeZone = v
	}
	if v := os.Getenv("TRILIUM_BOT_STORE_TIMEOUT_MS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.StoreTimeoutMs = n
		}
	}
	if v := os.Getenv("TRILIUM_BOT_ROLLOVER_TIME"); v != "" {
		cfg.RolloverTime = v
	}
	if v := os.Getenv("TRILIUM_BOT_ROLLOVER_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.RolloverEnabled = b
		}
	}
	if v := os.Getenv("TRILIUM_BOT_ATTACHMENT_PARENT"); v != "" {
		cfg.AttachmentParent = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("ENV"); v != "" {
		cfg.Env = strings.ToLower(v)
	}

	return cfg, nil
}

// ParseAdmins parses a comma-separated list of Telegram user ids.
func ParseAdmins(s string) ([]int64, error) {
	var ids []int64
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		id, err := strconv.ParseInt(field, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ADMIN_LIST entry %q: %w", field, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// BindFlags registers flags that override the loaded values. Call it after
// LoadConfig so the flag defaults show the environment's values.
func (c *Config) BindFlags(fs *pflag.FlagSet) {
	fs.StringVar(&c.TelegramToken, "telegram-token", c.TelegramToken, "Telegram bot token")
	fs.StringVar(&c.TriliumURL, "trilium-url", c.TriliumURL, "Trilium server URL")
	fs.StringVar(&c.TriliumToken, "trilium-token", c.TriliumToken, "Trilium ETAPI token")
	fs.Int64SliceVar(&c.Admins, "admin", c.Admins, "Telegram user id allowed to use the bot (repeatable)")
	fs.StringVar(&c.DBPath, "db", c.DBPath, "path of the local SQLite database")
	fs.StringVar(&c.Backend, "backend", c.Backend, "note store backend: trilium or sqlite")
	fs.StringVar(&c.TimeZone, "tz", c.TimeZone, "IANA time zone that defines calendar days")
	fs.IntVar(&c.StoreTimeoutMs, "store-timeout-ms", c.StoreTimeoutMs, "timeout of one note store call")
	fs.StringVar(&c.RolloverTime, "rollover-time", c.RolloverTime, "daily rollover time (HH:MM)")
	fs.BoolVar(&c.RolloverEnabled, "rollover", c.RolloverEnabled, "run the daily rollover")
	fs.StringVar(&c.AttachmentParent, "attachment-parent", c.AttachmentParent, "title of the note attachments are added to")
	fs.StringVar(&c.LogLevel, "log-level", c.LogLevel, "debug, info, warn or error")
}

// Validate checks the settings needed to serve. Tools that only touch the
// local database use ValidateStore instead.
func (c Config) Validate() error {
	var errs []error
	if c.TelegramToken == "" {
		errs = append(errs, errors.New("TELEGRAM_BOT_TOKEN is required"))
	}
	if len(c.Admins) == 0 {
		errs = append(errs, errors.New("ADMIN_LIST must name at least one user id"))
	}
	if err := c.ValidateStore(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateStore checks the note store and scheduling settings.
func (c Config) ValidateStore() error {
	var errs []error
	switch c.Backend {
	case BackendTrilium:
		if c.TriliumURL == "" {
			errs = append(errs, errors.New("TRILIUM_API_URL is required for the trilium backend"))
		}
		if c.TriliumToken == "" {
			errs = append(errs, errors.New("TRILIUM_ETAPI_TOKEN is required for the trilium backend"))
		}
	case BackendSQLite:
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q (want %s or %s)", c.Backend, BackendTrilium, BackendSQLite))
	}
	if c.DBPath == "" {
		errs = append(errs, errors.New("database path is empty"))
	}
	if _, err := c.Location(); err != nil {
		errs = append(errs, err)
	}
	if _, _, err := domain.ParseClock(c.RolloverTime); err != nil {
		errs = append(errs, err)
	}
	if c.StoreTimeoutMs <= 0 {
		errs = append(errs, fmt.Errorf("store timeout must be positive, got %dms", c.StoreTimeoutMs))
	}
	if c.AttachmentParent == "" {
		errs = append(errs, errors.New("attachment parent title is empty"))
	}
	return errors.Join(errs...)
}

// Location resolves TimeZone; "Local" and "" mean the host zone.
func (c Config) Location() (*time.Location, error) {
	if c.TimeZone == "" || c.TimeZone == "Local" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time zone %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

func (c Config) StoreTimeout() time.Duration {
	return time.Duration(c.StoreTimeoutMs) * time.Millisecond
}

// Settings returns the runtime settings seeded on first start.
func (c Config) Settings() domain.Settings {
	return domain.Settings{
		QuickAdd:        true,
		RolloverEnabled: c.RolloverEnabled,
		RolloverTime:    c.RolloverTime,
	}
}

func (c Config) IsDevelopment() bool {
	return c.Env == "development" || c.Env == "dev"
}
