package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/vietddude/pulse/internal/core/domain"
	"github.com/vietddude/pulse/internal/indexing/metrics"
	"github.com/vietddude/pulse/internal/indexing/stats"
	"github.com/vietddude/pulse/internal/notify"
)

// Broadcaster delivers a message to every configured recipient.
type Broadcaster interface {
	Broadcast(ctx context.Context, msg notify.Message) int
}

// WatcherConfig holds the stall watcher settings.
type WatcherConfig struct {
	Interval time.Duration
	Network  string
	Instance string
}

// StallWatcher samples the stats store on a fixed period and notifies on
// edges of the operating/alerting state machine only.
type StallWatcher struct {
	cfg      WatcherConfig
	store    *stats.Store
	notifier Broadcaster
	metrics  *metrics.Registry
	log      *slog.Logger
	now      func() time.Time

	mu    sync.RWMutex
	state domain.AlertState
	since time.Time
}

// NewStallWatcher creates a watcher in the operating state.
func NewStallWatcher(
	cfg WatcherConfig,
	store *stats.Store,
	notifier Broadcaster,
	m *metrics.Registry,
) *StallWatcher {
	if cfg.Interval <= 0 {
		cfg.Interval = 10 * time.Second
	}
	m.AlertState.Set(0)

	return &StallWatcher{
		cfg:      cfg,
		store:    store,
		notifier: notifier,
		metrics:  m,
		log:      slog.Default().With("component", "watcher"),
		now:      time.Now,
		state:    domain.AlertStateOperating,
		since:    time.Now(),
	}
}

// Run evaluates once per interval until ctx is cancelled.
func (w *StallWatcher) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.cfg.Interval)
	defer ticker.Stop()

	w.log.Info("Stall watcher started", "interval", w.cfg.Interval, "network", w.cfg.Network)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			w.Evaluate(ctx)
		}
	}
}

// Evaluate takes one sample and applies the transition rule. It returns the
// transition and true when the state changed.
func (w *StallWatcher) Evaluate(ctx context.Context) (Transition, bool) {
	count, rate := w.store.SampleAndResetRate(w.cfg.Interval)

	w.mu.Lock()
	from := w.state
	to := NextState(from, rate)
	if to == from {
		w.mu.Unlock()
		w.log.Debug("Sampled block stream", "rate", rate, "processed", count, "state", from)
		return Transition{}, false
	}
	at := w.now()
	w.state = to
	w.since = at
	w.mu.Unlock()

	t := Transition{From: from, To: to, Rate: rate, Count: count, At: at}
	w.record(t)
	w.notify(ctx, t)

	return t, true
}

// State returns the current alert state.
func (w *StallWatcher) State() domain.AlertState {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.state
}

// Report combines the watcher state with a stats snapshot.
func (w *StallWatcher) Report() Report {
	w.mu.RLock()
	state, since := w.state, w.since
	w.mu.RUnlock()

	snap := w.store.Snapshot()
	return Report{
		Status:     state.String(),
		Network:    w.cfg.Network,
		Instance:   w.cfg.Instance,
		Processed:  snap.ProcessedCount,
		LastHeight: snap.LastHeight,
		Rate:       snap.RatePerSecond,
		Since:      since,
	}
}

func (w *StallWatcher) record(t Transition) {
	if t.To == domain.AlertStateAlerting {
		w.metrics.AlertState.Set(1)
		w.log.Warn("Block stream stalled", "rate", t.Rate, "processed", t.Count)
	} else {
		w.metrics.AlertState.Set(0)
		w.log.Info("Block stream recovered", "rate", t.Rate, "processed", t.Count)
	}
	w.metrics.AlertTransitions.WithLabelValues(t.To.String()).Inc()
}

func (w *StallWatcher) notify(ctx context.Context, t Transition) {
	if w.notifier == nil {
		return
	}

	kind := notify.KindResolved
	if t.To == domain.AlertStateAlerting {
		kind = notify.KindAlert
	}

	delivered := w.notifier.Broadcast(ctx, notify.Message{
		Kind:       kind,
		Network:    w.cfg.Network,
		Instance:   w.cfg.Instance,
		Rate:       t.Rate,
		Processed:  t.Count,
		LastHeight: w.store.Snapshot().LastHeight,
		At:         t.At,
	})
	w.log.Debug("Transition notified", "kind", kind, "delivered", delivered)
}
