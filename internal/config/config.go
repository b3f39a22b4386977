// Package config loads the bot's YAML settings with environment overrides,
// plus the per-account exchange credentials that only ever live in the
// environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DefaultListenHost = "0.0.0.0"
	DefaultListenPort = 10000
)

type Config struct {
	Telegram Telegram `yaml:"telegram"`
	Exchange Exchange `yaml:"exchange"`
	LogLevel string   `yaml:"log_level"`
}

type Telegram struct {
	Token      string `yaml:"token"`
	WebhookURL string `yaml:"webhook_url"`
	ListenHost string `yaml:"listen_host"`
	ListenPort int    `yaml:"listen_port"`
}

// ListenAddr is the host:port the HTTP server binds.
func (t Telegram) ListenAddr() string {
	return fmt.Sprintf("%s:%d", t.ListenHost, t.ListenPort)
}

// Exchange tunes the REST client. Zero values defer to the client's own
// defaults.
type Exchange struct {
	BaseURL              string `yaml:"base_url"`
	PoolConnections      int    `yaml:"pool_connections"`
	PoolMaxSize          int    `yaml:"pool_maxsize"`
	ConnectTimeoutMs     int    `yaml:"connect_timeout_ms"`
	ReadTimeoutMs        int    `yaml:"read_timeout_ms"`
	MinRequestIntervalMs int    `yaml:"min_request_interval_ms"`
}

func (e Exchange) ConnectTimeout() time.Duration {
	return time.Duration(e.ConnectTimeoutMs) * time.Millisecond
}

func (e Exchange) ReadTimeout() time.Duration {
	return time.Duration(e.ReadTimeoutMs) * time.Millisecond
}

func (e Exchange) MinRequestInterval() time.Duration {
	return time.Duration(e.MinRequestIntervalMs) * time.Millisecond
}

// Load reads path and overlays environment variables. A missing file is fine;
// the environment alone can configure the bot.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		b, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
			// env-only config
		case err != nil:
			return nil, fmt.Errorf("read config: %w", err)
		default:
			if err := yaml.Unmarshal(b, cfg); err != nil {
				return nil, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("WEBHOOK_URL"); v != "" {
		cfg.Telegram.WebhookURL = v
	}
	if v := os.Getenv("PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Telegram.ListenPort = p
		}
	}
	if v := os.Getenv("DELTA_BASE_URL"); v != "" {
		cfg.Exchange.BaseURL = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Telegram.ListenHost == "" {
		cfg.Telegram.ListenHost = DefaultListenHost
	}
	if cfg.Telegram.ListenPort == 0 {
		cfg.Telegram.ListenPort = DefaultListenPort
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
}

func (c *Config) validate() error {
	var missing []string
	if strings.TrimSpace(c.Telegram.Token) == "" {
		missing = append(missing, "telegram token (TELEGRAM_BOT_TOKEN)")
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing settings: %s", strings.Join(missing, ", "))
	}
	return nil
}
