// Package metrics owns the process-wide Prometheus registry and the pulse
// collectors registered on it.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Notification delivery results.
const (
	ResultDelivered = "delivered"
	ResultFailed    = "failed"
)

// Registry is created once at startup and shared by every component that
// updates or exports metrics.
type Registry struct {
	reg *prometheus.Registry

	// LatestBlock tracks the highest block height seen on the stream
	LatestBlock prometheus.Gauge

	// BlocksIndexed counts every block event consumed
	BlocksIndexed prometheus.Counter

	// ProcessingRate is the blocks/second computed at the last sample
	ProcessingRate prometheus.Gauge

	// AlertState is 1 while the watcher is alerting, 0 otherwise
	AlertState prometheus.Gauge

	// AlertTransitions counts state machine transitions by target state
	AlertTransitions *prometheus.CounterVec

	// HeightRegressions counts events whose height went backwards
	HeightRegressions prometheus.Counter

	// Notifications counts per-recipient delivery outcomes
	Notifications *prometheus.CounterVec

	// SourceUp is 1 while the event source is subscribed
	SourceUp prometheus.Gauge
}

// New creates a registry with the pulse collectors plus the Go runtime and
// process collectors.
func New() *Registry {
	r := NewBare()
	r.reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// NewBare creates a registry holding only the pulse collectors.
func NewBare() *Registry {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Registry{
		reg: reg,
		LatestBlock: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_latest_block",
			Help: "Latest known block height",
		}),
		BlocksIndexed: factory.NewCounter(prometheus.CounterOpts{
			Name: "pulse_blocks_indexed",
			Help: "Number of indexed blocks",
		}),
		ProcessingRate: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_processing_rate",
			Help: "Blocks processed per second over the last sampling interval",
		}),
		AlertState: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_alert_state",
			Help: "Stall watcher state (0 = operating, 1 = alerting)",
		}),
		AlertTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_alert_transitions_total",
				Help: "Total number of stall watcher state transitions",
			},
			[]string{"to"},
		),
		HeightRegressions: factory.NewCounter(prometheus.CounterOpts{
			Name: "pulse_height_regressions_total",
			Help: "Total number of block events whose height was below the last seen height",
		}),
		Notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "pulse_notifications_total",
				Help: "Total number of notification deliveries by result",
			},
			[]string{"result"},
		),
		SourceUp: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pulse_source_up",
			Help: "Whether the block event source is subscribed (1) or not (0)",
		}),
	}
}

// Gatherer returns the registry for exposition.
func (r *Registry) Gatherer() prometheus.Gatherer {
	return r.reg
}

// MustRegister registers additional collectors.
func (r *Registry) MustRegister(cs ...prometheus.Collector) {
	r.reg.MustRegister(cs...)
}
