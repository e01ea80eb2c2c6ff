// Package rpc implements a block source that polls a JSON-RPC node.
package rpc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/pulse/internal/core/domain"
	"github.com/vietddude/pulse/internal/infra/source"
)

var _ source.Source = (*Source)(nil)

// Config holds the poller settings.
type Config struct {
	URL         string
	StartHeight uint64
	// PollInterval is the wait between head checks once caught up.
	PollInterval time.Duration
	Timeout      time.Duration
	BufferSize   int
	// MaxConsecutiveFailures closes the stream after this many failed calls
	// in a row. Zero retries forever.
	MaxConsecutiveFailures int
	InitialBackoff         time.Duration
	MaxBackoff             time.Duration
}

func (c *Config) applyDefaults() {
	if c.PollInterval <= 0 {
		c.PollInterval = time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.BufferSize <= 0 {
		c.BufferSize = 64
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = time.Second
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = 30 * time.Second
	}
}

// Source walks block heights from StartHeight up to the final head and emits
// one event per existing block.
type Source struct {
	cfg    Config
	client *client
	log    *slog.Logger

	mu      sync.Mutex
	err     error
	started bool
}

// New creates a poller. It does not contact the node until Subscribe.
func New(cfg Config) (*Source, error) {
	if cfg.URL == "" {
		return nil, errors.New("rpc url is required")
	}
	cfg.applyDefaults()

	return &Source{
		cfg:    cfg,
		client: newClient(cfg.URL, cfg.Timeout),
		log:    slog.Default().With("component", "source", "source", "rpc"),
	}, nil
}

func (s *Source) Name() string { return "rpc" }

// Subscribe starts the polling goroutine.
func (s *Source) Subscribe(ctx context.Context) (<-chan domain.BlockEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil, errors.New("rpc source already subscribed")
	}
	s.started = true

	events := make(chan domain.BlockEvent, s.cfg.BufferSize)
	go s.poll(ctx, events)
	return events, nil
}

// Err returns the error that closed the stream.
func (s *Source) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *Source) Close() error { return nil }

func (s *Source) poll(ctx context.Context, events chan<- domain.BlockEvent) {
	defer close(events)

	next := s.cfg.StartHeight
	failures := 0
	backoff := s.cfg.InitialBackoff

	s.log.Info("Polling blocks", "url", s.cfg.URL, "start_height", next)

	for {
		head, err := s.client.finalHeight(ctx)
		if err == nil {
			next, err = s.catchUp(ctx, events, next, head)
		}
		if ctx.Err() != nil {
			return
		}

		wait := s.cfg.PollInterval
		if err != nil {
			failures++
			if s.cfg.MaxConsecutiveFailures > 0 && failures >= s.cfg.MaxConsecutiveFailures {
				s.fail(fmt.Errorf("giving up after %d consecutive failures: %w", failures, err))
				return
			}
			s.log.Warn("Block poll failed", "error", err, "next_height", next, "backoff", backoff)
			wait = backoff
			backoff *= 2
			if backoff > s.cfg.MaxBackoff {
				backoff = s.cfg.MaxBackoff
			}
		} else {
			failures = 0
			backoff = s.cfg.InitialBackoff
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

// catchUp emits every block in [next, head] and returns the next height to
// fetch.
func (s *Source) catchUp(
	ctx context.Context,
	events chan<- domain.BlockEvent,
	next, head uint64,
) (uint64, error) {
	for next <= head {
		blk, err := s.client.blockAt(ctx, next)
		if errors.Is(err, errUnknownBlock) {
			s.log.Debug("Skipping missing height", "height", next)
			next++
			continue
		}
		if err != nil {
			return next, fmt.Errorf("fetch block %d: %w", next, err)
		}

		ev := domain.BlockEvent{
			Height:     blk.Header.Height,
			ShardCount: uint32(len(blk.Chunks)),
		}
		select {
		case <-ctx.Done():
			return next, ctx.Err()
		case events <- ev:
		}
		next++
	}
	return next, nil
}

func (s *Source) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
	s.log.Error("Block source stopped", "error", err)
}
