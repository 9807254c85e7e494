package recorder

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/oakfin/kitefeed/internal/config"
	"github.com/oakfin/kitefeed/internal/metrics"
	"github.com/oakfin/kitefeed/internal/model"
)

// tickStore is the subset of pgxpool.Pool the recorder needs.
type tickStore interface {
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

var tickColumns = []string{
	"received_at", "exchange_ts", "token", "symbol",
	"last_price", "last_quantity", "average_price", "volume",
	"buy_quantity", "sell_quantity",
	"open", "high", "low", "close",
}

// Stats holds recorder counters.
type Stats struct {
	Rows    int64
	Flushes int64
	Errors  int64
}

// Recorder consumes tick batches from the hub and writes them to the ticks table.
type Recorder struct {
	cfg    config.RecorderConfig
	logger *slog.Logger

	input <-chan []model.Tick
	db    tickStore

	batch   []model.Tick
	batchMu sync.Mutex

	flushTicker *time.Ticker

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	stats Stats
	prom  *metrics.Metrics
}

// New creates a Recorder consuming from input. prom may be nil.
func New(cfg config.RecorderConfig, input <-chan []model.Tick, db tickStore, prom *metrics.Metrics, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{
		cfg:    cfg,
		input:  input,
		db:     db,
		prom:   prom,
		logger: logger,
		batch:  make([]model.Tick, 0, cfg.BatchSize),
	}
}

// Start begins consuming batches and writing to the database.
func (r *Recorder) Start(ctx context.Context) error {
	r.ctx, r.cancel = context.WithCancel(ctx)
	r.flushTicker = time.NewTicker(r.cfg.FlushInterval)

	r.wg.Add(1)
	go r.consumeLoop()

	r.wg.Add(1)
	go r.flushLoop()

	r.logger.Info("recorder started",
		"batch_size", r.cfg.BatchSize,
		"flush_interval", r.cfg.FlushInterval,
	)
	return nil
}

// Stop gracefully shuts down the recorder.
func (r *Recorder) Stop(ctx context.Context) error {
	r.logger.Info("stopping recorder")

	if r.cancel != nil {
		r.cancel()
	}

	if r.flushTicker != nil {
		r.flushTicker.Stop()
	}

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		r.logger.Info("recorder stopped")
	case <-ctx.Done():
		r.logger.Warn("recorder stop timed out")
	}

	// Final flush
	r.flush(context.Background())

	return nil
}

// Stats returns current counters.
func (r *Recorder) Stats() Stats {
	r.batchMu.Lock()
	defer r.batchMu.Unlock()
	return r.stats
}

// consumeLoop reads hub batches and accumulates rows.
func (r *Recorder) consumeLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case ticks, ok := <-r.input:
			if !ok {
				return
			}
			r.handleBatch(ticks)
		}
	}
}

// flushLoop periodically flushes the accumulated batch.
func (r *Recorder) flushLoop() {
	defer r.wg.Done()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-r.flushTicker.C:
			r.flush(r.ctx)
		}
	}
}

// handleBatch appends a hub batch and flushes if the size cap is reached.
func (r *Recorder) handleBatch(ticks []model.Tick) {
	r.batchMu.Lock()
	r.batch = append(r.batch, ticks...)
	shouldFlush := len(r.batch) >= r.cfg.BatchSize
	r.batchMu.Unlock()

	if shouldFlush {
		r.flush(r.ctx)
	}
}

// flush writes the current batch with COPY.
func (r *Recorder) flush(ctx context.Context) {
	r.batchMu.Lock()
	if len(r.batch) == 0 {
		r.batchMu.Unlock()
		return
	}

	// Take ownership of current batch
	batch := r.batch
	r.batch = make([]model.Tick, 0, r.cfg.BatchSize)
	r.batchMu.Unlock()

	start := time.Now()

	n, err := r.db.CopyFrom(ctx, pgx.Identifier{"ticks"}, tickColumns,
		pgx.CopyFromSlice(len(batch), func(i int) ([]any, error) {
			t := batch[i]
			return []any{
				t.ReceivedAt, t.ExchangeTime, int64(t.Token), t.Symbol,
				t.LastPrice, t.LastQuantity, t.AveragePrice, t.Volume,
				t.BuyQuantity, t.SellQuantity,
				t.Open, t.High, t.Low, t.Close,
			}, nil
		}))
	if err != nil {
		r.logger.Error("copy failed", "error", err, "count", len(batch))
		r.batchMu.Lock()
		r.stats.Errors++
		r.batchMu.Unlock()
		if r.prom != nil {
			r.prom.RecorderErrorsTotal.Inc()
		}
		return
	}

	r.batchMu.Lock()
	r.stats.Rows += n
	r.stats.Flushes++
	r.batchMu.Unlock()

	if r.prom != nil {
		r.prom.RecorderRowsTotal.Add(float64(n))
		r.prom.RecorderFlushesTotal.Inc()
	}

	r.logger.Debug("flushed ticks",
		"count", n,
		"duration", time.Since(start),
	)
}
