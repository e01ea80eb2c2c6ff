package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/vietddude/pulse/internal/core/config"
	"github.com/vietddude/pulse/internal/indexing/consumer"
	"github.com/vietddude/pulse/internal/indexing/health"
	"github.com/vietddude/pulse/internal/indexing/metrics"
	"github.com/vietddude/pulse/internal/indexing/stats"
	"github.com/vietddude/pulse/internal/infra/source"
	redissource "github.com/vietddude/pulse/internal/infra/source/redis"
	rpcsource "github.com/vietddude/pulse/internal/infra/source/rpc"
	"github.com/vietddude/pulse/internal/notify"
	"github.com/vietddude/pulse/internal/notify/telegram"
)

// Pulse wires the stats store, consumer, stall watcher and HTTP server and
// manages their lifecycle.
type Pulse struct {
	cfg      config.AppConfig
	instance string

	registry   *metrics.Registry
	store      *stats.Store
	consumer   *consumer.Consumer
	watcher    *health.StallWatcher
	server     *health.Server
	dispatcher *notify.Dispatcher
	verifier   interface{ Verify() (string, error) }
	src        source.Source
	log        *slog.Logger

	cancel   context.CancelFunc
	wg       sync.WaitGroup
	done     chan struct{}
	failOnce sync.Once
	err      error
}

// Option customises a Pulse.
type Option func(*options)

type options struct {
	src    source.Source
	sender notify.Sender
	addr   string
	retry  *notify.RetryPolicy
}

// WithSource replaces the source built from the config.
func WithSource(src source.Source) Option {
	return func(o *options) { o.src = src }
}

// WithSender replaces the Telegram sender.
func WithSender(s notify.Sender) Option {
	return func(o *options) { o.sender = s }
}

// WithListenAddr overrides the HTTP listen address.
func WithListenAddr(addr string) Option {
	return func(o *options) { o.addr = addr }
}

// WithRetryPolicy overrides the notification retry policy.
func WithRetryPolicy(p notify.RetryPolicy) Option {
	return func(o *options) { o.retry = &p }
}

// NewPulse creates a Pulse with all dependencies initialized.
func NewPulse(cfg config.AppConfig, opts ...Option) (*Pulse, error) {
	o := options{addr: fmt.Sprintf("0.0.0.0:%d", cfg.Server.Port)}
	for _, opt := range opts {
		opt(&o)
	}

	log := slog.Default().With("component", "control")
	instance := uuid.NewString()

	// 1. Shared state
	registry := metrics.New()
	store := stats.NewStore(registry)

	// 2. Source
	src := o.src
	if src == nil {
		var err error
		src, err = newSource(cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create %s source: %w", cfg.Source.Kind, err)
		}
	}

	// 3. Notifications
	var verifier interface{ Verify() (string, error) }
	sender := o.sender
	if sender == nil && cfg.NotificationsEnabled() {
		tg, err := telegram.New(telegram.Config{
			Token:       cfg.Telegram.Token,
			APIEndpoint: cfg.Telegram.APIEndpoint,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create telegram sender: %w", err)
		}
		sender, verifier = tg, tg
	}
	recipients := cfg.Telegram.ChatIDs
	if !cfg.NotificationsEnabled() && o.sender == nil {
		if cfg.Telegram.Token != "" || len(cfg.Telegram.ChatIDs) > 0 {
			log.Info("Notifications disabled: both a telegram token and chat ids are required")
		}
		recipients = nil
	}
	retry := notify.DefaultRetryPolicy()
	if o.retry != nil {
		retry = *o.retry
	}
	dispatcher := notify.NewDispatcher(sender, recipients, retry, registry)

	// 4. Watcher and exporter
	watcher := health.NewStallWatcher(health.WatcherConfig{
		Interval: cfg.StatsInterval(),
		Network:  cfg.Network.String(),
		Instance: instance,
	}, store, dispatcher, registry)
	server := health.NewServer(o.addr, registry.Gatherer(), watcher)

	return &Pulse{
		cfg:        cfg,
		instance:   instance,
		registry:   registry,
		store:      store,
		consumer:   consumer.New(store, registry),
		watcher:    watcher,
		server:     server,
		dispatcher: dispatcher,
		verifier:   verifier,
		src:        src,
		log:        log,
		done:       make(chan struct{}),
	}, nil
}

func newSource(cfg config.AppConfig) (source.Source, error) {
	switch cfg.Source.Kind {
	case config.SourceRedis:
		return redissource.New(redissource.Config{
			URL:         cfg.Source.RedisURL,
			Stream:      cfg.Source.RedisStream,
			StartHeight: cfg.BlockHeight,

			MaxConsecutiveFailures: cfg.Source.MaxFailures,
		})
	case config.SourceRPC:
		return rpcsource.New(rpcsource.Config{
			URL:          cfg.Source.RPCURL,
			StartHeight:  cfg.BlockHeight,
			PollInterval: cfg.Source.PollInterval,

			MaxConsecutiveFailures: cfg.Source.MaxFailures,
		})
	default:
		return nil, fmt.Errorf("%w: unknown source kind %q", config.ErrInvalidConfig, cfg.Source.Kind)
	}
}

// Start binds the HTTP listener and starts the background loops. A bind
// failure is returned and nothing is left running.
func (p *Pulse) Start(ctx context.Context) (net.Addr, error) {
	addr, err := p.server.Start()
	if err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel

	p.log.Info("Pulse started",
		"network", p.cfg.Network,
		"start_height", p.cfg.BlockHeight,
		"source", p.src.Name(),
		"interval", p.cfg.StatsInterval(),
		"notifications", p.dispatcher.Enabled(),
		"instance", p.instance,
	)

	if p.verifier != nil {
		go func() {
			name, err := p.verifier.Verify()
			if err != nil {
				p.log.Warn("Telegram token check failed", "error", err)
				return
			}
			p.log.Info("Telegram bot ready", "bot", name)
		}()
	}

	p.wg.Add(2)
	go func() {
		defer p.wg.Done()
		if err := p.consumer.Run(runCtx, p.src); err != nil {
			p.fail(err)
		}
	}()
	go func() {
		defer p.wg.Done()
		_ = p.watcher.Run(runCtx)
	}()

	return addr, nil
}

// Done is closed when a background task fails.
func (p *Pulse) Done() <-chan struct{} {
	return p.done
}

// Err returns the failure that closed Done.
func (p *Pulse) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

func (p *Pulse) fail(err error) {
	p.failOnce.Do(func() {
		p.err = err
		p.log.Error("Background task failed", "error", err)
		close(p.done)
	})
}

// Stop cancels the loops, waits for them and shuts the HTTP server down.
func (p *Pulse) Stop(ctx context.Context) error {
	p.log.Info("Stopping Pulse...")

	if p.cancel != nil {
		p.cancel()
	}

	stopped := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(stopped)
	}()

	var errs []error
	select {
	case <-stopped:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for background tasks: %w", ctx.Err()))
	}

	if err := p.server.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stopping http server: %w", err))
	}
	if err := p.src.Close(); err != nil {
		errs = append(errs, fmt.Errorf("closing source: %w", err))
	}

	return errors.Join(errs...)
}

// Instance returns the per-process identifier included in alerts.
func (p *Pulse) Instance() string {
	return p.instance
}
