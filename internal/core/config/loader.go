package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"

	"github.com/vietddude/pulse/internal/core/domain"
)

// Load reads configuration from a YAML file. An empty path returns the
// defaults.
func Load(path string) (*AppConfig, error) {
	var cfg AppConfig

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Expand environment variables in the YAML content
		expandedData := os.ExpandEnv(string(data))
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.ApplyDefaults()
	return &cfg, nil
}

// ApplyDefaults fills zero values. It is safe to call more than once.
func (c *AppConfig) ApplyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = DefaultHTTPPort
	}
	if c.Stats.IntervalSec == 0 {
		c.Stats.IntervalSec = DefaultStatsIntervalSec
	}
	if c.Source.Kind == "" {
		c.Source.Kind = SourceRPC
	}
	if c.Source.PollInterval == 0 {
		c.Source.PollInterval = time.Second
	}
	if c.Source.RedisStream == "" && c.Network != "" {
		c.Source.RedisStream = DefaultRedisStream(c.Network)
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// DefaultRedisStream is the stream name a network's block arrivals are
// published to.
func DefaultRedisStream(network domain.Network) string {
	return "pulse:blocks:" + network.String()
}
