// Package consumer drains the block event stream into the stats store.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/vietddude/pulse/internal/core/domain"
	"github.com/vietddude/pulse/internal/indexing/metrics"
	"github.com/vietddude/pulse/internal/indexing/stats"
	"github.com/vietddude/pulse/internal/infra/source"
)

// ErrSourceClosed is returned by Run when the stream ends while the consumer
// is still expected to run.
var ErrSourceClosed = errors.New("event source closed")

// Consumer processes one event at a time, in source order. A slow consumer
// leaves backpressure to the source's buffer and never drops events.
type Consumer struct {
	store   *stats.Store
	metrics *metrics.Registry
	log     *slog.Logger
}

// New creates a consumer recording into store.
func New(store *stats.Store, m *metrics.Registry) *Consumer {
	return &Consumer{
		store:   store,
		metrics: m,
		log:     slog.Default().With("component", "consumer"),
	}
}

// Run blocks until ctx is cancelled (returns nil) or the source stream ends
// (returns ErrSourceClosed).
func (c *Consumer) Run(ctx context.Context, src source.Source) error {
	events, err := src.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("failed to subscribe to %s source: %w", src.Name(), err)
	}

	c.metrics.SourceUp.Set(1)
	defer c.metrics.SourceUp.Set(0)
	c.log.Info("Consuming block events", "source", src.Name())

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				if ctx.Err() != nil {
					return nil
				}
				if srcErr := src.Err(); srcErr != nil {
					return fmt.Errorf("%w: %w", ErrSourceClosed, srcErr)
				}
				return ErrSourceClosed
			}
			c.handle(ev)
		}
	}
}

func (c *Consumer) handle(ev domain.BlockEvent) {
	c.store.RecordEvent(ev.Height)
	c.metrics.BlocksIndexed.Inc()
	c.log.Info(fmt.Sprintf("%d / shards %d", ev.Height, ev.ShardCount),
		"height", ev.Height,
		"shards", ev.ShardCount,
	)
}
