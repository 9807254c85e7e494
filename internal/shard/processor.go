package shard

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/oakfin/kitefeed/internal/hub"
	"github.com/oakfin/kitefeed/internal/model"
)

// Callback receives a decoded tick for a symbol it registered for. The tick
// is pooled: it must not be retained after the callback returns.
type Callback func(*model.Tick)

// Config configures the processor.
type Config struct {
	Count             int           // Number of shards
	QueueCapacity     int           // Bounded capacity per shard queue
	HealthInterval    time.Duration // Queue-depth check period
	DropLogSampleRate int           // Log one drop in this many (avoids log storms)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Count:             4,
		QueueCapacity:     16384,
		HealthInterval:    30 * time.Second,
		DropLogSampleRate: 1000,
	}
}

// Health classifies a shard queue's depth as a fraction of capacity.
type Health string

const (
	HealthNormal   Health = "normal"   // < 60%
	HealthWarning  Health = "warning"  // 60–80%
	HealthCritical Health = "critical" // >= 80%
)

func classify(depth, capacity int) Health {
	pct := depth * 100 / capacity
	switch {
	case pct >= 80:
		return HealthCritical
	case pct >= 60:
		return HealthWarning
	default:
		return HealthNormal
	}
}

// Stats is a read-only snapshot of one shard's queue.
type Stats struct {
	Shard     int
	Depth     int
	Capacity  int
	Dropped   int64
	Processed int64
	Health    Health
}

// shardState is one processing lane.
type shardState struct {
	queue     chan *model.Tick
	dropped   atomic.Int64
	processed atomic.Int64
}

// Processor fans decoded ticks out across N independent worker lanes.
type Processor struct {
	cfg    Config
	logger *slog.Logger
	hub    *hub.Hub

	shards []*shardState
	pool   sync.Pool

	// symbol → callbacks; grow-only, read on every dispatch
	cbMu      sync.RWMutex
	callbacks map[string][]Callback

	// Metrics hooks, set before Start.
	OnDrop      func(shard int)
	OnProcessed func(shard int)

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessor creates the processor. The hub receives a value copy of every
// tick after consumer callbacks have run; it may be nil in tests.
func NewProcessor(cfg Config, h *hub.Hub, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Count < 1 {
		cfg.Count = DefaultConfig().Count
	}
	if cfg.QueueCapacity < 1 {
		cfg.QueueCapacity = DefaultConfig().QueueCapacity
	}
	if cfg.HealthInterval <= 0 {
		cfg.HealthInterval = DefaultConfig().HealthInterval
	}
	if cfg.DropLogSampleRate < 1 {
		cfg.DropLogSampleRate = DefaultConfig().DropLogSampleRate
	}

	p := &Processor{
		cfg:       cfg,
		logger:    logger,
		hub:       h,
		shards:    make([]*shardState, cfg.Count),
		callbacks: make(map[string][]Callback),
	}
	p.pool.New = func() any { return &model.Tick{} }
	for i := range p.shards {
		p.shards[i] = &shardState{queue: make(chan *model.Tick, cfg.QueueCapacity)}
	}
	return p
}

// Start launches one worker per shard plus the health monitor.
func (p *Processor) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	for i := range p.shards {
		p.wg.Add(1)
		go p.worker(i)
	}

	p.wg.Add(1)
	go p.healthLoop()

	p.logger.Info("shard processor started",
		"shards", p.cfg.Count,
		"queue_capacity", p.cfg.QueueCapacity,
	)
	return nil
}

// Stop shuts the workers down, waiting up to ctx's deadline.
func (p *Processor) Stop(ctx context.Context) error {
	p.logger.Info("stopping shard processor")

	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("shard processor stopped")
	case <-ctx.Done():
		p.logger.Warn("shard processor stop timed out")
	}
	return nil
}

// Rent takes a zeroed tick from the pool. Callers hand ownership to Dispatch
// or give it back with Return.
func (p *Processor) Rent() *model.Tick {
	return p.pool.Get().(*model.Tick)
}

// Return recycles a tick. The instance must not be touched afterwards.
func (p *Processor) Return(t *model.Tick) {
	t.Reset()
	p.pool.Put(t)
}

// Register adds a callback for a symbol. Registrations are permanent for the
// life of the process, matching the sticky subscription model.
func (p *Processor) Register(symbol string, cb Callback) {
	p.cbMu.Lock()
	p.callbacks[symbol] = append(p.callbacks[symbol], cb)
	p.cbMu.Unlock()
}

// Dispatch enqueues a tick onto its symbol's shard without blocking. Ownership
// transfers to the processor: on overflow the incoming tick is shed, counted,
// and returned to the pool. Reports whether the tick was accepted.
func (p *Processor) Dispatch(t *model.Tick) bool {
	idx := p.shardFor(t.Symbol)
	s := p.shards[idx]

	select {
	case s.queue <- t:
		return true
	default:
		n := s.dropped.Add(1)
		if p.OnDrop != nil {
			p.OnDrop(idx)
		}
		if (n-1)%int64(p.cfg.DropLogSampleRate) == 0 {
			p.logger.Warn("shard queue full, dropping tick",
				"shard", idx,
				"symbol", t.Symbol,
				"dropped_total", n,
			)
		}
		p.Return(t)
		return false
	}
}

// Stats returns a snapshot of every shard.
func (p *Processor) Stats() []Stats {
	out := make([]Stats, len(p.shards))
	for i, s := range p.shards {
		depth := len(s.queue)
		out[i] = Stats{
			Shard:     i,
			Depth:     depth,
			Capacity:  p.cfg.QueueCapacity,
			Dropped:   s.dropped.Load(),
			Processed: s.processed.Load(),
			Health:    classify(depth, p.cfg.QueueCapacity),
		}
	}
	return out
}

// shardFor maps a symbol to its lane. Stable for the life of the process so a
// symbol's ticks always drain through the same worker.
func (p *Processor) shardFor(symbol string) int {
	h := fnv.New32a()
	h.Write([]byte(symbol))
	return int(h.Sum32() % uint32(len(p.shards)))
}

// worker drains one shard queue.
func (p *Processor) worker(idx int) {
	defer p.wg.Done()
	s := p.shards[idx]

	for {
		select {
		case <-p.ctx.Done():
			return
		case t := <-s.queue:
			p.deliver(idx, t)
		}
	}
}

// deliver invokes callbacks, publishes to the hub, and recycles the tick.
func (p *Processor) deliver(idx int, t *model.Tick) {
	p.cbMu.RLock()
	cbs := p.callbacks[t.Symbol]
	p.cbMu.RUnlock()

	for _, cb := range cbs {
		p.invoke(idx, t, cb)
	}

	if p.hub != nil {
		// Value copy: hub operators buffer their own representation, never
		// the pooled instance.
		p.hub.PublishTick(*t)
	}

	s := p.shards[idx]
	s.processed.Add(1)
	if p.OnProcessed != nil {
		p.OnProcessed(idx)
	}
	p.Return(t)
}

// invoke runs one callback with a panic boundary: a faulting subscriber is
// logged and isolated, the tick still goes back to the pool.
func (p *Processor) invoke(idx int, t *model.Tick, cb Callback) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.Error("subscriber callback panicked",
				"shard", idx,
				"symbol", t.Symbol,
				"panic", r,
			)
		}
	}()
	cb(t)
}

// healthLoop periodically samples queue depths. Diagnostic only: nothing is
// shed or rebalanced based on the classification.
func (p *Processor) healthLoop() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			for _, st := range p.Stats() {
				if st.Health == HealthNormal {
					continue
				}
				p.logger.Warn("shard queue depth elevated",
					"shard", st.Shard,
					"depth", st.Depth,
					"capacity", st.Capacity,
					"health", st.Health,
				)
			}
		}
	}
}
