// Package config reads process configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/PercyTuncar/bot-2026-sub001/internal/db"
	"github.com/PercyTuncar/bot-2026-sub001/internal/groupconfig"
	"github.com/PercyTuncar/bot-2026-sub001/internal/retry"
)

// Config is the bot and CLI configuration.
type Config struct {
	TelegramToken string `env:"TELEGRAM_BOT_TOKEN"`
	Language      string `env:"BOT_LANGUAGE" envDefault:"en"`

	DBDriver      string        `env:"DB_DRIVER" envDefault:"sqlite3"`
	DBPath        string        `env:"DB_PATH" envDefault:"./data/economy.db"`
	DBBusyTimeout time.Duration `env:"DB_BUSY_TIMEOUT" envDefault:"5s"`
	CatalogPath   string        `env:"CATALOG_PATH"`

	WebhookURL        string `env:"WEBHOOK_URL"`
	WebhookListenAddr string `env:"WEBHOOK_LISTEN_ADDR" envDefault:":8080"`
	WebhookSecret     string `env:"WEBHOOK_SECRET"`

	AdminIDs       []int64 `env:"ADMIN_IDS" envSeparator:","`
	LinkedIDSuffix string  `env:"LINKED_ID_SUFFIX" envDefault:"@lid"`

	DefaultMessagesPerPoint      int64  `env:"DEFAULT_MESSAGES_PER_POINT" envDefault:"10"`
	DefaultMaxWarnings           int    `env:"DEFAULT_MAX_WARNINGS" envDefault:"3"`
	DefaultMaxPendingRedemptions int    `env:"DEFAULT_MAX_PENDING_REDEMPTIONS" envDefault:"3"`
	DefaultPointsName            string `env:"DEFAULT_POINTS_NAME" envDefault:"points"`

	TxMaxAttempts uint          `env:"TX_MAX_ATTEMPTS" envDefault:"3"`
	ContactTTL    time.Duration `env:"CONTACT_TTL" envDefault:"720h"`

	LogLevel     string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat    string `env:"LOG_FORMAT" envDefault:"text"`
	OTelEndpoint string `env:"OTEL_ENDPOINT"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load reads dotenv files (a missing file is fine), then the environment.
// Variables already set in the environment win over dotenv values.
func Load(dotenvPaths ...string) (Config, error) {
	if len(dotenvPaths) == 0 {
		dotenvPaths = []string{".env"}
	}
	for _, path := range dotenvPaths {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values the environment parser cannot.
func (c Config) Validate() error {
	switch c.DBDriver {
	case db.DriverMattn, db.DriverModernc:
	default:
		return fmt.Errorf("DB_DRIVER must be %q or %q, got %q", db.DriverMattn, db.DriverModernc, c.DBDriver)
	}
	if strings.TrimSpace(c.DBPath) == "" {
		return fmt.Errorf("DB_PATH is required")
	}
	if c.DefaultMessagesPerPoint <= 0 || c.DefaultMaxWarnings <= 0 || c.DefaultMaxPendingRedemptions <= 0 {
		return fmt.Errorf("group defaults must be positive")
	}
	if c.TxMaxAttempts == 0 {
		return fmt.Errorf("TX_MAX_ATTEMPTS must be at least 1")
	}
	if _, err := parseLevel(c.LogLevel); err != nil {
		return err
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT must be text or json, got %q", c.LogFormat)
	}
	return nil
}

// RequireToken fails when the bot token is missing.
func (c Config) RequireToken() error {
	if strings.TrimSpace(c.TelegramToken) == "" {
		return fmt.Errorf("TELEGRAM_BOT_TOKEN is required")
	}
	return nil
}

func (c Config) DBOptions() db.Options {
	return db.Options{Driver: c.DBDriver, BusyTimeout: c.DBBusyTimeout}
}

func (c Config) GroupDefaults() groupconfig.Defaults {
	return groupconfig.Defaults{
		MessagesPerPoint:      c.DefaultMessagesPerPoint,
		MaxWarnings:           c.DefaultMaxWarnings,
		MaxPendingRedemptions: c.DefaultMaxPendingRedemptions,
		PointsName:            c.DefaultPointsName,
	}
}

func (c Config) RetryPolicy() retry.Policy {
	p := retry.DefaultPolicy()
	p.Attempts = c.TxMaxAttempts
	return p
}

// Logger builds the process logger writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	level, err := parseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	return level, nil
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
