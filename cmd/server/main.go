package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/hireloop/notify-engine/internal/api"
	"github.com/hireloop/notify-engine/internal/channel"
	"github.com/hireloop/notify-engine/internal/config"
	"github.com/hireloop/notify-engine/internal/cost"
	"github.com/hireloop/notify-engine/internal/db"
	"github.com/hireloop/notify-engine/internal/dispatch"
	"github.com/hireloop/notify-engine/internal/domain"
	"github.com/hireloop/notify-engine/internal/gate"
	"github.com/hireloop/notify-engine/internal/metrics"
	"github.com/hireloop/notify-engine/internal/queue"
	"github.com/hireloop/notify-engine/internal/ratelimiter"
	"github.com/hireloop/notify-engine/internal/service"
	"github.com/hireloop/notify-engine/internal/store"
	"github.com/hireloop/notify-engine/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	// ---- database ----
	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	q := queue.New()
	st := store.NewPgStore(pool)

	registry := channel.NewRegistry(channel.NewFactory(
		config.Static(cfg.Channels), cfg.ProviderTimeout, logger,
	))

	g := gate.New(st, gate.Config{
		Window:        cfg.InitiationWindow,
		MaxAttempts:   cfg.InitiationMaxAttempts,
		LookupTimeout: cfg.StoreTimeout,
	}, logger)

	intervals := make(map[domain.ChannelName]time.Duration, len(cfg.Channels))
	for ch, pc := range cfg.Channels {
		intervals[ch] = pc.MinInterval
	}
	limiter := ratelimiter.New(intervals, cfg.MinSendInterval)

	// Valkey-backed free-window cache when configured, in-process otherwise.
	var cache cost.Cache
	if cfg.ValkeyAddr != "" {
		vc, err := cost.NewValkeyCache(cfg.ValkeyAddr, cfg.ValkeyPassword)
		if err != nil {
			logger.Fatal("failed to connect to valkey", zap.Error(err))
		}
		defer vc.Close()
		cache = vc
		logger.Info("using valkey free-window cache", zap.String("addr", cfg.ValkeyAddr))
	} else {
		cache = cost.NewMemoryCache()
	}
	tracker := cost.NewWindowTracker(cache, st, cost.TrackerConfig{
		Window:        cfg.FreeWindow,
		LookupTimeout: cfg.StoreTimeout,
	}, logger)

	orch := dispatch.New(
		registry, g, limiter, cost.NewClassifier(), tracker, st,
		dispatch.Config{
			RetryMaxAttempts: cfg.RetryMaxAttempts,
			RetryBaseDelay:   cfg.RetryBaseDelay,
			RetryMaxDelay:    cfg.RetryMaxDelay,
			ProviderTimeout:  cfg.ProviderTimeout,
			StoreTimeout:     cfg.StoreTimeout,
		},
		m.OrchestratorHooks(),
		logger,
	)

	svc := service.NewDispatchService(st, q, orch, cfg.JobMaxRetries, logger)

	// ---- worker pool ----
	// Context for all background goroutines; cancelled on shutdown signal.
	workerCtx, cancelWorkers := context.WithCancel(ctx)
	defer cancelWorkers()

	pool2 := worker.NewPool(cfg.DispatchWorkers, q, st, orch, "default", cfg.JobRetryBackoff, logger)
	pool2.Start(workerCtx)

	retryW := worker.NewRetryWorker(st, q, cfg.RetryInterval, logger)
	go retryW.Run(workerCtx)

	// Export live queue depths to Prometheus.
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-workerCtx.Done():
				return
			case <-ticker.C:
				high, normal, low := q.Depths()
				m.QueueDepthHigh.Set(float64(high))
				m.QueueDepthNormal.Set(float64(normal))
				m.QueueDepthLow.Set(float64(low))
			}
		}
	}()

	// ---- HTTP server ----
	router := api.NewRouter(svc, q, reg, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	// Start server in a goroutine so it does not block the shutdown listener.
	go func() {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	// ---- graceful shutdown ----
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests.
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}

	// 2. Signal all workers to stop processing new queue items.
	cancelWorkers()

	// 3. Wait for in-flight workers to finish their current job.
	pool2.Wait()

	logger.Info("server stopped cleanly")
}
