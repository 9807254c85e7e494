package hub

import (
	"context"
	"log/slog"
	"time"

	"github.com/oakfin/kitefeed/internal/model"
)

// ConnectionEventType classifies a connection lifecycle transition.
type ConnectionEventType string

const (
	ConnectionReady ConnectionEventType = "ready"
	ConnectionLost  ConnectionEventType = "lost"
)

// ConnectionEvent is one connection lifecycle transition.
type ConnectionEvent struct {
	Type   ConnectionEventType
	At     time.Time
	Reason string // Populated on ConnectionLost
}

// SessionEventType classifies a trading-session transition.
type SessionEventType string

const (
	SessionOpen  SessionEventType = "open"
	SessionClose SessionEventType = "close"
)

// SessionEvent is one trading-session transition.
type SessionEvent struct {
	Type SessionEventType
	At   time.Time
}

// Config holds hub operator settings.
type Config struct {
	BatchWindow      time.Duration // Windowed-batch flush window
	BatchMaxSize     int           // Windowed-batch item cap
	SampleInterval   time.Duration // Per-symbol sampling interval
	SubscriberBuffer int           // Per-subscriber channel capacity
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		BatchWindow:      100 * time.Millisecond,
		BatchMaxSize:     1000,
		SampleInterval:   150 * time.Millisecond,
		SubscriberBuffer: 4096,
	}
}

// Hub exposes the named streams all consumers read from. It is fed by the
// shard processor and never calls back into the network layers.
type Hub struct {
	cfg    Config
	logger *slog.Logger

	ticks      *Stream[model.Tick]
	lastTick   *Stream[model.Tick]
	batches    *Stream[[]model.Tick]
	sampled    *Stream[model.Tick]
	connection *Stream[ConnectionEvent]
	session    *Stream[SessionEvent]
	instrReady *Stream[time.Time]

	// OnDrop is invoked with the stream name whenever a subscriber delivery
	// is shed. Set before Start.
	OnDrop func(stream string)

	cancel context.CancelFunc
}

// New creates the hub. Operators are not running until Start.
func New(cfg Config, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BatchWindow <= 0 || cfg.BatchMaxSize <= 0 || cfg.SampleInterval <= 0 {
		def := DefaultConfig()
		if cfg.BatchWindow <= 0 {
			cfg.BatchWindow = def.BatchWindow
		}
		if cfg.BatchMaxSize <= 0 {
			cfg.BatchMaxSize = def.BatchMaxSize
		}
		if cfg.SampleInterval <= 0 {
			cfg.SampleInterval = def.SampleInterval
		}
	}
	if cfg.SubscriberBuffer <= 0 {
		cfg.SubscriberBuffer = DefaultConfig().SubscriberBuffer
	}

	return &Hub{
		cfg:    cfg,
		logger: logger,
	}
}

// Start builds the named streams and wires the batch and sample operators.
func (h *Hub) Start(ctx context.Context) error {
	ctx, h.cancel = context.WithCancel(ctx)

	drop := func(stream string) {
		if h.OnDrop != nil {
			h.OnDrop(stream)
		}
	}
	buf := WithBuffer(h.cfg.SubscriberBuffer)

	h.ticks = NewStream[model.Tick]("ticks", buf, WithDropHook(drop))
	h.lastTick = NewStream[model.Tick]("ticks.last", buf, WithDropHook(drop), WithReplay())
	h.connection = NewStream[ConnectionEvent]("connection", WithDropHook(drop), WithReplay())
	h.session = NewStream[SessionEvent]("session", WithDropHook(drop))
	h.instrReady = NewStream[time.Time]("instruments.ready", WithDropHook(drop), WithReplay())

	h.batches = Batch(ctx, h.ticks, h.cfg.BatchWindow, h.cfg.BatchMaxSize, buf, WithDropHook(drop))
	h.sampled = SampleByKey(ctx, h.ticks, h.cfg.SampleInterval, func(t model.Tick) string {
		return t.Symbol
	}, buf, WithDropHook(drop))

	h.logger.Info("distribution hub started",
		"batch_window", h.cfg.BatchWindow,
		"batch_max", h.cfg.BatchMaxSize,
		"sample_interval", h.cfg.SampleInterval,
	)

	return nil
}

// Stop cancels the operators and closes all streams.
func (h *Hub) Stop() {
	if h.cancel != nil {
		h.cancel()
	}
	h.ticks.Close()
	h.lastTick.Close()
	h.connection.Close()
	h.session.Close()
	h.instrReady.Close()
	h.logger.Info("distribution hub stopped")
}

// PublishTick feeds one decoded tick into the hub. The tick is passed by
// value: the pooled instance the processor holds is never retained here.
func (h *Hub) PublishTick(t model.Tick) {
	h.ticks.Publish(t)
	h.lastTick.Publish(t)
}

// PublishConnection publishes a connection lifecycle transition.
func (h *Hub) PublishConnection(ev ConnectionEvent) {
	h.connection.Publish(ev)
}

// PublishSession publishes a trading-session transition.
func (h *Hub) PublishSession(ev SessionEvent) {
	h.session.Publish(ev)
}

// PublishInstrumentsReady signals that the instrument database is loaded.
func (h *Hub) PublishInstrumentsReady(at time.Time) {
	h.instrReady.Publish(at)
}

// Ticks is the raw passthrough tick stream, in shard-delivery order.
func (h *Hub) Ticks() *Stream[model.Tick] { return h.ticks }

// LastTick replays the most recent tick to late subscribers.
func (h *Hub) LastTick() *Stream[model.Tick] { return h.lastTick }

// Batches emits windowed batches of ticks.
func (h *Hub) Batches() *Stream[[]model.Tick] { return h.batches }

// Sampled emits at most one tick per symbol per sampling interval.
func (h *Hub) Sampled() *Stream[model.Tick] { return h.sampled }

// ConnectionEvents carries ready/lost transitions, latest value replayed.
func (h *Hub) ConnectionEvents() *Stream[ConnectionEvent] { return h.connection }

// SessionEvents carries trading-session open/close transitions.
func (h *Hub) SessionEvents() *Stream[SessionEvent] { return h.session }

// InstrumentsReady fires once the instrument database is available.
func (h *Hub) InstrumentsReady() *Stream[time.Time] { return h.instrReady }
