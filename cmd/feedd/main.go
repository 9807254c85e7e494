package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/oakfin/kitefeed/internal/config"
	"github.com/oakfin/kitefeed/internal/connection"
	"github.com/oakfin/kitefeed/internal/database"
	"github.com/oakfin/kitefeed/internal/feed"
	"github.com/oakfin/kitefeed/internal/hub"
	"github.com/oakfin/kitefeed/internal/metrics"
	"github.com/oakfin/kitefeed/internal/model"
	"github.com/oakfin/kitefeed/internal/recorder"
	"github.com/oakfin/kitefeed/internal/shard"
	"github.com/oakfin/kitefeed/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/feedd.local.yaml", "path to config file")
	flag.Parse()

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel(cfg.Logging.Level),
	}))
	slog.SetDefault(logger)

	logger.Info("starting feedd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
		"instance_id", cfg.Instance.ID,
	)

	// Create context cancelled on shutdown signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Distribution hub
	h := hub.New(hub.Config{
		BatchWindow:      cfg.Hub.BatchWindow,
		BatchMaxSize:     cfg.Hub.BatchMaxSize,
		SampleInterval:   cfg.Hub.SampleInterval,
		SubscriberBuffer: cfg.Hub.SubscriberBuffer,
	}, logger)
	h.OnDrop = func(stream string) {
		m.HubDropsTotal.WithLabelValues(stream).Inc()
	}
	if err := h.Start(ctx); err != nil {
		logger.Error("failed to start hub", "error", err)
		os.Exit(1)
	}
	defer h.Stop()

	// Sharded tick processor
	processor := shard.NewProcessor(shard.Config{
		Count:             cfg.Shards.Count,
		QueueCapacity:     cfg.Shards.QueueCapacity,
		HealthInterval:    cfg.Shards.HealthInterval,
		DropLogSampleRate: cfg.Shards.DropLogSampleRate,
	}, h, logger)
	processor.OnDrop = func(idx int) {
		m.DroppedTicks.WithLabelValues(strconv.Itoa(idx)).Inc()
	}
	processor.OnProcessed = func(idx int) {
		m.TicksTotal.Inc()
	}
	if err := processor.Start(ctx); err != nil {
		logger.Error("failed to start processor", "error", err)
		os.Exit(1)
	}

	// Shared connection service
	creds := feed.TokenCredentials{
		BaseURL:     cfg.Feed.WSURL,
		APIKey:      cfg.Feed.APIKey,
		AccessToken: cfg.Feed.AccessToken,
	}
	service := feed.NewService(feed.Config{
		Mode:               model.Mode(cfg.Feed.Mode),
		ConnectWaitTimeout: cfg.Feed.ConnectWaitTimeout,
		BackoffBase:        cfg.Feed.BackoffBase,
		BackoffMax:         cfg.Feed.BackoffMax,
		Client: connection.ClientConfig{
			HandshakeTimeout: cfg.Feed.HandshakeTimeout,
			KeepAlive:        cfg.Feed.KeepAlive,
			PingTimeout:      cfg.Feed.PingTimeout,
			WriteTimeout:     cfg.Feed.WriteTimeout,
			ReadBufferSize:   cfg.Feed.ReadBufferSize,
			FrameBufferSize:  cfg.Feed.FrameBufferSize,
		},
	}, creds, processor, h, logger)
	service.OnReconnect = func() {
		m.WSReconnects.Inc()
	}
	service.OnPacket = func() {
		m.PacketsTotal.Inc()
	}
	service.OnUnknownToken = func() {
		m.UnknownTokens.Inc()
	}
	service.OnStateChange = func(st feed.State) {
		m.ConnectionState.Set(float64(st))
	}
	if err := service.Start(ctx); err != nil {
		logger.Error("failed to start feed service", "error", err)
		os.Exit(1)
	}

	// Optional tick recorder
	var (
		pool *pgxpool.Pool
		rec  *recorder.Recorder
	)
	if cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Recorder.Database.Host,
			"port", cfg.Recorder.Database.Port,
			"database", cfg.Recorder.Database.Name,
		)

		pool, err = database.Connect(ctx, cfg.Recorder.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		batches := h.Batches().Subscribe()
		defer batches.Cancel()

		rec = recorder.New(cfg.Recorder, batches.C, pool, m, logger)
		if err := rec.Start(ctx); err != nil {
			logger.Error("failed to start recorder", "error", err)
			os.Exit(1)
		}
	}

	// Diagnostics HTTP server: health + Prometheus metrics
	mux := http.NewServeMux()
	mux.Handle(cfg.Metrics.Path, m.Handler())
	mux.HandleFunc("/health", healthHandler(service, processor, rec, pool))

	diagServer := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Metrics.Port),
		Handler: mux,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting diagnostics server", "port", cfg.Metrics.Port)
		if err := diagServer.ListenAndServe(); err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	// Queue-depth gauge sampler
	g.Go(func() error {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				for _, st := range processor.Stats() {
					m.ShardQueueDepth.WithLabelValues(strconv.Itoa(st.Shard)).Set(float64(st.Depth))
				}
			}
		}
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return diagServer.Shutdown(shutdownCtx)
	})

	logger.Info("feedd running",
		"instance_id", cfg.Instance.ID,
		"health_url", fmt.Sprintf("http://localhost:%d/health", cfg.Metrics.Port),
	)

	// Wait for shutdown
	<-ctx.Done()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if rec != nil {
		rec.Stop(shutdownCtx)
	}
	service.Close()
	processor.Stop(shutdownCtx)

	if err := g.Wait(); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("feedd stopped")
}

// logLevel maps a config string to a slog level.
func logLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// healthHandler builds the /health endpoint. rec and pool may be nil.
func healthHandler(service *feed.Service, processor *shard.Processor, rec *recorder.Recorder, pool *pgxpool.Pool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		health := struct {
			Status     string         `json:"status"`
			Components map[string]any `json:"components"`
		}{
			Status:     "healthy",
			Components: make(map[string]any),
		}

		// Connection state
		state := service.State()
		health.Components["connection"] = map[string]any{
			"state":         state.String(),
			"subscriptions": len(service.Subscriptions()),
		}
		if state != feed.Connected {
			health.Status = "degraded"
		}

		// Shard queues
		shards := make([]map[string]any, 0)
		for _, st := range processor.Stats() {
			shards = append(shards, map[string]any{
				"shard":     st.Shard,
				"depth":     st.Depth,
				"capacity":  st.Capacity,
				"dropped":   st.Dropped,
				"processed": st.Processed,
				"health":    st.Health,
			})
			if st.Health == shard.HealthCritical {
				health.Status = "degraded"
			}
		}
		health.Components["shards"] = shards

		// Recorder + database
		if rec != nil {
			stats := rec.Stats()
			health.Components["recorder"] = map[string]any{
				"rows":    stats.Rows,
				"flushes": stats.Flushes,
				"errors":  stats.Errors,
			}
		}
		if pool != nil {
			if err := pool.Ping(ctx); err != nil {
				health.Status = "unhealthy"
				health.Components["database"] = map[string]string{
					"status": "disconnected",
					"error":  err.Error(),
				}
			} else {
				health.Components["database"] = "connected"
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if health.Status == "unhealthy" {
			w.WriteHeader(http.StatusServiceUnavailable)
		}
		json.NewEncoder(w).Encode(health)
	}
}
