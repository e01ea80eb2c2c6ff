// Package redis implements a block source that reads a Redis stream written
// by the upstream block streamer.
package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vietddude/pulse/internal/core/domain"
	"github.com/vietddude/pulse/internal/infra/source"
)

var _ source.Source = (*Source)(nil)

// Stream entry fields.
const (
	FieldHeight = "height"
	FieldShards = "shards"
)

// Config holds Redis stream settings.
type Config struct {
	URL         string
	Password    string
	Stream      string
	StartHeight uint64
	// Block is how long a single XREAD waits for new entries.
	Block      time.Duration
	BatchSize  int64
	BufferSize int
	// MaxConsecutiveFailures closes the stream after this many failed reads
	// in a row. Zero retries forever.
	MaxConsecutiveFailures int
}

// Source tails a Redis stream from its current end.
type Source struct {
	cfg Config
	rdb *redis.Client
	log *slog.Logger

	mu      sync.Mutex
	err     error
	started bool
}

// New creates a Redis stream source.
func New(cfg Config) (*Source, error) {
	if cfg.Stream == "" {
		return nil, errors.New("redis stream name is required")
	}
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}
	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.Block <= 0 {
		cfg.Block = 2 * time.Second
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = 64
	}

	return &Source{
		cfg: cfg,
		rdb: redis.NewClient(opts),
		log: slog.Default().With("component", "source", "source", "redis"),
	}, nil
}

func (s *Source) Name() string { return "redis" }

// Subscribe checks the connection and starts tailing the stream.
func (s *Source) Subscribe(ctx context.Context) (<-chan domain.BlockEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, errors.New("redis source already subscribed")
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	s.started = true

	events := make(chan domain.BlockEvent, s.cfg.BufferSize)
	go s.tail(ctx, events)
	return events, nil
}

// Err returns the error that closed the stream.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close closes the Redis connection.
func (s *Source) Close() error {
	return s.rdb.Close()
}

func (s *Source) tail(ctx context.Context, events chan<- domain.BlockEvent) {
	defer close(events)

	lastID := "$"
	failures := 0
	s.log.Info("Tailing block stream", "stream", s.cfg.Stream, "start_height", s.cfg.StartHeight)

	for {
		if ctx.Err() != nil {
			return
		}

		streams, err := s.rdb.XRead(ctx, &redis.XReadArgs{
			Streams: []string{s.cfg.Stream, lastID},
			Count:   s.cfg.BatchSize,
			Block:   s.cfg.Block,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			failures++
			if s.cfg.MaxConsecutiveFailures > 0 && failures >= s.cfg.MaxConsecutiveFailures {
				s.fail(fmt.Errorf("giving up after %d consecutive failures: %w", failures, err))
				return
			}
			s.log.Warn("Stream read failed", "error", err, "failures", failures)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}
		failures = 0

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				lastID = msg.ID
				ev, err := ParseEntry(msg.Values)
				if err != nil {
					s.log.Warn("Skipping malformed stream entry", "id", msg.ID, "error", err)
					continue
				}
				if ev.Height < s.cfg.StartHeight {
					continue
				}
				select {
				case <-ctx.Done():
					return
				case events <- ev:
				}
			}
		}
	}
}

func (s *Source) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.log.Error("Block source stopped", "error", err)
}

// ParseEntry converts stream entry fields into a block event. The shards
// field is optional.
func ParseEntry(values map[string]any) (domain.BlockEvent, error) {
	raw, ok := values[FieldHeight]
	if !ok {
		return domain.BlockEvent{}, fmt.Errorf("missing %q field", FieldHeight)
	}
	height, err := parseUint(raw, 64)
	if err != nil {
		return domain.BlockEvent{}, fmt.Errorf("invalid %q: %w", FieldHeight, err)
	}

	var shards uint64
	if raw, ok := values[FieldShards]; ok {
		shards, err = parseUint(raw, 32)
		if err != nil {
			return domain.BlockEvent{}, fmt.Errorf("invalid %q: %w", FieldShards, err)
		}
	}

	return domain.BlockEvent{Height: height, ShardCount: uint32(shards)}, nil
}

func parseUint(v any, bits int) (uint64, error) {
	switch val := v.(type) {
	case string:
		return strconv.ParseUint(val, 10, bits)
	case int64:
		if val < 0 {
			return 0, fmt.Errorf("negative value %d", val)
		}
		return uint64(val), nil
	default:
		return 0, fmt.Errorf("unexpected type %T", v)
	}
}
