package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrMissingCredentials marks a fatal configuration error: a required
// secret is absent from the environment. Reported before any connection
// attempt.
var ErrMissingCredentials = errors.New("missing required credential")

type Config struct {
	App struct {
		IntervalSeconds int    `toml:"interval_seconds"`
		LogLevel        string `toml:"log_level"`
	} `toml:"app"`

	Instrument struct {
		ExchangeSegment string `toml:"exchange_segment"`
		SecurityID      string `toml:"security_id"`
		DisplayName     string `toml:"display_name"`
	} `toml:"instrument"`

	Feed struct {
		WsURL                 string `toml:"ws_url"`
		InitialBackoffSeconds int    `toml:"initial_backoff_seconds"`
		MaxBackoffSeconds     int    `toml:"max_backoff_seconds"`
	} `toml:"feed"`

	// Credentials come from the environment, never from the config file.
	Dhan struct {
		ClientID    string `toml:"-"`
		AccessToken string `toml:"-"`
	} `toml:"-"`

	Telegram struct {
		BotToken string `toml:"-"`
		ChatID   string `toml:"-"`
	} `toml:"-"`
}

func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	loadEnv(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.IntervalSeconds <= 0 {
		cfg.App.IntervalSeconds = 60
	}
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.Instrument.ExchangeSegment == "" {
		cfg.Instrument.ExchangeSegment = "NSE_EQ"
	}
	if cfg.Instrument.SecurityID == "" {
		cfg.Instrument.SecurityID = "1333"
	}
	if cfg.Instrument.DisplayName == "" {
		cfg.Instrument.DisplayName = "HDFC BANK"
	}
	if cfg.Feed.WsURL == "" {
		cfg.Feed.WsURL = "wss://api-feed.dhan.co"
	}
	if cfg.Feed.InitialBackoffSeconds <= 0 {
		cfg.Feed.InitialBackoffSeconds = 1
	}
	if cfg.Feed.MaxBackoffSeconds <= 0 {
		cfg.Feed.MaxBackoffSeconds = 60
	}
}

func loadEnv(cfg *Config) {
	cfg.Dhan.ClientID = strings.TrimSpace(os.Getenv("DHAN_CLIENT_ID"))
	cfg.Dhan.AccessToken = strings.TrimSpace(os.Getenv("DHAN_ACCESS_TOKEN"))
	cfg.Telegram.BotToken = strings.TrimSpace(os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.Telegram.ChatID = strings.TrimSpace(os.Getenv("TELEGRAM_CHAT_ID"))

	if v := os.Getenv("SEND_INTERVAL_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.App.IntervalSeconds = n
		}
	}
}

func validate(cfg *Config) error {
	for _, c := range []struct{ name, val string }{
		{"DHAN_CLIENT_ID", cfg.Dhan.ClientID},
		{"DHAN_ACCESS_TOKEN", cfg.Dhan.AccessToken},
		{"TELEGRAM_BOT_TOKEN", cfg.Telegram.BotToken},
		{"TELEGRAM_CHAT_ID", cfg.Telegram.ChatID},
	} {
		if c.val == "" {
			return fmt.Errorf("%w: %s", ErrMissingCredentials, c.name)
		}
	}

	if strings.TrimSpace(cfg.Feed.WsURL) == "" {
		return errors.New("feed.ws_url is empty")
	}
	if cfg.Feed.MaxBackoffSeconds < cfg.Feed.InitialBackoffSeconds {
		return errors.New("feed.max_backoff_seconds below initial_backoff_seconds")
	}
	return nil
}

func (c *Config) AlertInterval() time.Duration {
	return time.Duration(c.App.IntervalSeconds) * time.Second
}

func (c *Config) InitialBackoff() time.Duration {
	return time.Duration(c.Feed.InitialBackoffSeconds) * time.Second
}

func (c *Config) MaxBackoff() time.Duration {
	return time.Duration(c.Feed.MaxBackoffSeconds) * time.Second
}
