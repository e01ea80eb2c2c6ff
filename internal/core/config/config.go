package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/vietddude/pulse/internal/core/domain"
)

const (
	DefaultHTTPPort         = 3030
	DefaultStatsIntervalSec = 10

	SourceRPC   = "rpc"
	SourceRedis = "redis"
)

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Network     domain.Network `yaml:"network"`
	BlockHeight uint64         `yaml:"block_height"`
	Server      ServerConfig   `yaml:"server"`
	Telegram    TelegramConfig `yaml:"telegram"`
	Stats       StatsConfig    `yaml:"stats"`
	Source      SourceConfig   `yaml:"source"`
	Logging     LoggingConfig  `yaml:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"http_port"`
}

// TelegramConfig holds notification targets. Notifications are disabled
// unless both a token and at least one chat ID are set.
type TelegramConfig struct {
	Token       string   `yaml:"token"`
	ChatIDs     []string `yaml:"chat_ids"`
	APIEndpoint string   `yaml:"api_endpoint"`
}

// StatsConfig holds the stall watcher settings.
type StatsConfig struct {
	IntervalSec int `yaml:"interval_sec"`
}

// SourceConfig selects and configures the block event source.
type SourceConfig struct {
	Kind         string        `yaml:"kind"` // rpc, redis
	RPCURL       string        `yaml:"rpc_url"`
	PollInterval time.Duration `yaml:"poll_interval"`
	RedisURL     string        `yaml:"redis_url"`
	RedisStream  string        `yaml:"redis_stream"`
	// MaxFailures ends the stream after this many consecutive source errors.
	// Zero retries forever.
	MaxFailures int `yaml:"max_failures"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Filter string `yaml:"filter"` // per-component directives, e.g. "info,consumer=debug"
}

// StatsInterval returns the sampling period.
func (c *AppConfig) StatsInterval() time.Duration {
	return time.Duration(c.Stats.IntervalSec) * time.Second
}

// NotificationsEnabled reports whether Telegram delivery is configured.
func (c *AppConfig) NotificationsEnabled() bool {
	return c.Telegram.Token != "" && len(c.Telegram.ChatIDs) > 0
}

// Validate checks the settings that cannot be defaulted.
func (c *AppConfig) Validate() error {
	if !c.Network.Valid() {
		return fmt.Errorf("%w: network %q (want mainnet, testnet or localnet)", ErrInvalidConfig, c.Network)
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("%w: http port %d out of range", ErrInvalidConfig, c.Server.Port)
	}
	if c.Stats.IntervalSec < 1 {
		return fmt.Errorf("%w: stats interval must be at least 1 second", ErrInvalidConfig)
	}

	switch c.Source.Kind {
	case SourceRPC:
		if c.Source.RPCURL == "" {
			return fmt.Errorf("%w: rpc source requires rpc_url", ErrInvalidConfig)
		}
	case SourceRedis:
		if c.Source.RedisURL == "" {
			return fmt.Errorf("%w: redis source requires redis_url", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unknown source kind %q", ErrInvalidConfig, c.Source.Kind)
	}

	return nil
}
