// Package notify delivers watcher transitions to chat recipients.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/errgroup"

	"github.com/vietddude/pulse/internal/indexing/metrics"
)

// ErrPermanent marks a delivery error that retrying cannot fix.
var ErrPermanent = errors.New("permanent delivery failure")

// Sender delivers one HTML message to one recipient.
type Sender interface {
	Send(ctx context.Context, recipient string, html string) error
}

// RetryPolicy bounds the delivery attempts for a single recipient.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// DefaultRetryPolicy retries after 1s, 2s, 4s, 8s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  5,
		InitialDelay: 1 * time.Second,
		MaxDelay:     30 * time.Second,
	}
}

// Dispatcher fans a message out to every recipient. Each recipient is retried
// independently and failures are only logged.
type Dispatcher struct {
	sender     Sender
	recipients []string
	policy     RetryPolicy
	metrics    *metrics.Registry
	log        *slog.Logger
}

// NewDispatcher creates a dispatcher. A nil sender or an empty recipient list
// disables delivery.
func NewDispatcher(
	sender Sender,
	recipients []string,
	policy RetryPolicy,
	m *metrics.Registry,
) *Dispatcher {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.InitialDelay <= 0 {
		policy.InitialDelay = time.Second
	}
	if policy.MaxDelay < policy.InitialDelay {
		policy.MaxDelay = policy.InitialDelay
	}

	return &Dispatcher{
		sender:     sender,
		recipients: append([]string(nil), recipients...),
		policy:     policy,
		metrics:    m,
		log:        slog.Default().With("component", "notify"),
	}
}

// Enabled reports whether messages will be delivered anywhere.
func (d *Dispatcher) Enabled() bool {
	return d.sender != nil && len(d.recipients) > 0
}

// Broadcast sends msg to all recipients and returns how many accepted it.
func (d *Dispatcher) Broadcast(ctx context.Context, msg Message) int {
	if !d.Enabled() {
		d.log.Debug("Notifications disabled, dropping message", "kind", msg.Kind)
		return 0
	}

	text := msg.HTML()
	var delivered atomic.Int64
	var g errgroup.Group

	for _, recipient := range d.recipients {
		g.Go(func() error {
			if err := d.deliver(ctx, recipient, text); err != nil {
				d.metrics.Notifications.WithLabelValues(metrics.ResultFailed).Inc()
				d.log.Error("Failed to deliver notification",
					"recipient", recipient,
					"kind", msg.Kind,
					"error", err,
				)
				return nil
			}
			d.metrics.Notifications.WithLabelValues(metrics.ResultDelivered).Inc()
			delivered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	return int(delivered.Load())
}

func (d *Dispatcher) deliver(ctx context.Context, recipient, text string) error {
	backoff := retry.NewExponential(d.policy.InitialDelay)
	backoff = retry.WithCappedDuration(d.policy.MaxDelay, backoff)
	backoff = retry.WithMaxRetries(uint64(d.policy.MaxAttempts-1), backoff)

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		err := d.sender.Send(ctx, recipient, text)
		if err == nil {
			return nil
		}
		if errors.Is(err, ErrPermanent) {
			return err
		}
		d.log.Warn("Notification attempt failed",
			"recipient", recipient,
			"attempt", attempt,
			"max_attempts", d.policy.MaxAttempts,
			"error", err,
		)
		return retry.RetryableError(err)
	})
}
