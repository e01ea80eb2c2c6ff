package consumer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/vietddude/pulse/internal/core/domain"
	"github.com/vietddude/pulse/internal/indexing/metrics"
	"github.com/vietddude/pulse/internal/indexing/stats"
)

// =============================================================================
// Mocks
// =============================================================================

type mockSource struct {
	events       chan domain.BlockEvent
	err          error
	subscribeErr error
}

func newMockSource(buffer int) *mockSource {
	return &mockSource{events: make(chan domain.BlockEvent, buffer)}
}

func (m *mockSource) Name() string { return "mock" }
func (m *mockSource) Subscribe(ctx context.Context) (<-chan domain.BlockEvent, error) {
	if m.subscribeErr != nil {
		return nil, m.subscribeErr
	}
	return m.events, nil
}
func (m *mockSource) Err() error   { return m.err }
func (m *mockSource) Close() error { return nil }

// =============================================================================
// Tests
// =============================================================================

func TestRun_RecordsInOrder(t *testing.T) {
	reg := metrics.NewBare()
	store := stats.NewStore(reg)
	c := New(store, reg)

	src := newMockSource(10)
	for h := uint64(1); h <= 5; h++ {
		src.events <- domain.BlockEvent{Height: h, ShardCount: 4}
	}
	close(src.events)

	err := c.Run(context.Background(), src)
	if !errors.Is(err, ErrSourceClosed) {
		t.Fatalf("expected ErrSourceClosed, got %v", err)
	}

	snap := store.Snapshot()
	if snap.ProcessedCount != 5 {
		t.Errorf("expected 5 processed, got %d", snap.ProcessedCount)
	}
	if snap.LastHeight != 5 {
		t.Errorf("expected last height 5, got %d", snap.LastHeight)
	}
	if got := testutil.ToFloat64(reg.BlocksIndexed); got != 5 {
		t.Errorf("expected blocks indexed 5, got %v", got)
	}
	if got := testutil.ToFloat64(reg.HeightRegressions); got != 0 {
		t.Errorf("in-order stream must not report regressions, got %v", got)
	}
	if got := testutil.ToFloat64(reg.SourceUp); got != 0 {
		t.Errorf("expected source_up 0 after close, got %v", got)
	}
}

func TestRun_WrapsSourceError(t *testing.T) {
	reg := metrics.NewBare()
	c := New(stats.NewStore(reg), reg)

	cause := errors.New("upstream gone")
	src := newMockSource(0)
	src.err = cause
	close(src.events)

	err := c.Run(context.Background(), src)
	if !errors.Is(err, ErrSourceClosed) {
		t.Errorf("expected ErrSourceClosed, got %v", err)
	}
	if !errors.Is(err, cause) {
		t.Errorf("expected wrapped cause, got %v", err)
	}
}

func TestRun_SubscribeFailure(t *testing.T) {
	reg := metrics.NewBare()
	c := New(stats.NewStore(reg), reg)

	src := newMockSource(0)
	src.subscribeErr = errors.New("dial failed")

	err := c.Run(context.Background(), src)
	if err == nil || errors.Is(err, ErrSourceClosed) {
		t.Fatalf("expected subscribe error, got %v", err)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	reg := metrics.NewBare()
	c := New(stats.NewStore(reg), reg)
	src := newMockSource(0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- c.Run(ctx, src)
	}()

	src.events <- domain.BlockEvent{Height: 7, ShardCount: 1}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRun_SourceUpWhileRunning(t *testing.T) {
	reg := metrics.NewBare()
	store := stats.NewStore(reg)
	c := New(store, reg)
	src := newMockSource(0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = c.Run(ctx, src) }()

	// Unbuffered send only completes once Run is receiving.
	src.events <- domain.BlockEvent{Height: 1}

	if got := testutil.ToFloat64(reg.SourceUp); got != 1 {
		t.Errorf("expected source_up 1, got %v", got)
	}
}
