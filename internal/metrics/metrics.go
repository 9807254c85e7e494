package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the feed daemon.
type Metrics struct {
	registry *prometheus.Registry

	TicksTotal    prometheus.Counter
	PacketsTotal  prometheus.Counter
	UnknownTokens prometheus.Counter
	WSReconnects  prometheus.Counter

	// ConnectionState mirrors the lifecycle state machine
	// (0=disconnected, 1=connecting, 2=connected, 3=reconnecting,
	// 4=backing_off, 5=disposing).
	ConnectionState prometheus.Gauge

	DroppedTicks    *prometheus.CounterVec // labels: shard
	ShardQueueDepth *prometheus.GaugeVec   // labels: shard

	HubDropsTotal *prometheus.CounterVec // labels: stream

	RecorderRowsTotal    prometheus.Counter
	RecorderFlushesTotal prometheus.Counter
	RecorderErrorsTotal  prometheus.Counter
}

// New registers and returns all metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		TicksTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitefeed_ticks_total",
			Help: "Total ticks decoded from the feed",
		}),
		PacketsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitefeed_packets_total",
			Help: "Total binary packets received from the feed",
		}),
		UnknownTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitefeed_unknown_tokens_total",
			Help: "Packets dropped because the token has no active subscription",
		}),
		WSReconnects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitefeed_ws_reconnects_total",
			Help: "Total WebSocket reconnection attempts",
		}),
		ConnectionState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "kitefeed_connection_state",
			Help: "Feed connection lifecycle state",
		}),
		DroppedTicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitefeed_dropped_ticks_total",
			Help: "Ticks shed at shard queue overflow",
		}, []string{"shard"}),
		ShardQueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "kitefeed_shard_queue_depth",
			Help: "Current shard queue occupancy",
		}, []string{"shard"}),
		HubDropsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kitefeed_hub_drops_total",
			Help: "Values dropped by hub streams for slow subscribers",
		}, []string{"stream"}),
		RecorderRowsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitefeed_recorder_rows_total",
			Help: "Tick rows written to the database",
		}),
		RecorderFlushesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitefeed_recorder_flushes_total",
			Help: "Recorder batch flushes",
		}),
		RecorderErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kitefeed_recorder_errors_total",
			Help: "Recorder flush failures",
		}),
	}

	m.registry.MustRegister(
		m.TicksTotal,
		m.PacketsTotal,
		m.UnknownTokens,
		m.WSReconnects,
		m.ConnectionState,
		m.DroppedTicks,
		m.ShardQueueDepth,
		m.HubDropsTotal,
		m.RecorderRowsTotal,
		m.RecorderFlushesTotal,
		m.RecorderErrorsTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the registered metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
