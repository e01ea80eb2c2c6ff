// Package source defines the block event stream consumed by pulse.
package source

import (
	"context"

	"github.com/vietddude/pulse/internal/core/domain"
)

// Source delivers an ordered, unbounded stream of block events.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Subscribe starts the stream. The channel is closed when ctx is
	// cancelled or the source gives up.
	Subscribe(ctx context.Context) (<-chan domain.BlockEvent, error)

	// Err returns the reason the stream closed, or nil if it was cancelled.
	Err() error

	// Close releases the source's resources.
	Close() error
}
