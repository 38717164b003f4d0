package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	_ "golang.org/x/crypto/x509roots/fallback"
	"golang.org/x/sync/errgroup"

	"github.com/ricirt/feedhub/internal/api"
	"github.com/ricirt/feedhub/internal/api/handler"
	"github.com/ricirt/feedhub/internal/config"
	"github.com/ricirt/feedhub/internal/db"
	"github.com/ricirt/feedhub/internal/idempotency"
	"github.com/ricirt/feedhub/internal/metrics"
	"github.com/ricirt/feedhub/internal/notify"
	"github.com/ricirt/feedhub/internal/presence"
	"github.com/ricirt/feedhub/internal/queue"
	"github.com/ricirt/feedhub/internal/ratelimiter"
	"github.com/ricirt/feedhub/internal/realtime"
	"github.com/ricirt/feedhub/internal/repository"
	"github.com/ricirt/feedhub/internal/service"
	"github.com/ricirt/feedhub/internal/timeline"
	"github.com/ricirt/feedhub/internal/worker"
)

func main() {
	logger, _ := zap.NewProduction()
	defer logger.Sync() //nolint:errcheck

	// ---- configuration ----
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("failed to load config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ---- database ----
	pool, err := db.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer pool.Close()

	if err := db.Migrate(cfg.DatabaseURL); err != nil {
		logger.Fatal("failed to run migrations", zap.Error(err))
	}
	logger.Info("database migrations applied")

	// ---- idempotency ledger ----
	checks := map[string]handler.Check{"postgres": pool.Ping}
	var ledger idempotency.Ledger
	rdb, err := db.ConnectRedis(ctx, cfg, logger)
	switch {
	case err != nil:
		logger.Fatal("failed to connect to redis", zap.Error(err))
	case rdb == nil:
		logger.Warn("REDIS_ADDR not set, using in-process idempotency ledger")
		ledger = idempotency.NewMemoryLedger(cfg.IdempotencyTTL)
	default:
		defer rdb.Close() //nolint:errcheck
		ledger = idempotency.NewRedisLedger(rdb, cfg.IdempotencyTTL)
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}

	// ---- core dependencies ----
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)

	users := repository.NewPgUserRepository(pool)
	posts := repository.NewPgPostRepository(pool)
	comments := repository.NewPgCommentRepository(pool)
	jobs := repository.NewPgJobRepository(pool)

	broker := queue.NewBroker(jobs, cfg.JobMaxAttempts, logger, m.OnEnqueued)
	ready := queue.NewReadyQueue(cfg.ReadyBuffer)

	registry := presence.NewRegistry(logger, m.OnPresenceChange)
	hub := realtime.NewHub(registry, cfg.ConnOutbox, logger)
	onDelivered, onDropped := m.NotifyHooks()
	dispatcher := notify.NewDispatcher(registry, hub, cfg.FanOutConcurrency, logger, notify.Hooks{
		OnDelivered: onDelivered,
		OnDropped:   onDropped,
	})

	authors := timeline.NewAuthorCache(users, cfg.AuthorCacheSize, cfg.AuthorCacheTTL)
	feed := timeline.NewAggregator(users, posts, comments, authors, logger)

	userSvc := service.NewUserService(users, dispatcher, logger)
	postSvc := service.NewPostService(posts, users, broker, dispatcher,
		ratelimiter.New(cfg.PostRateLimit, cfg.PostRateWindow, cfg.PostRateKeys),
		cfg.PostDelay, logger, func() { m.PostsRateLimited.Inc() })
	commentSvc := service.NewCommentService(comments, posts, users, authors, broker, logger)

	service.NewJobHandlers(users, posts, comments, broker, dispatcher, ledger, logger).Register(broker)

	// ---- workers ----
	// Background goroutines run on their own context so in-flight jobs are
	// not cut off before the HTTP server has drained.
	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	onCompleted, onRetried, onDeadLettered := m.WorkerHooks()
	workers := worker.NewPool(cfg, ready, jobs, broker, logger, worker.MetricHooks{
		OnCompleted:    onCompleted,
		OnRetried:      onRetried,
		OnDeadLettered: onDeadLettered,
		OnQueueDepth:   m.OnQueueDepth,
	})
	workers.Start(workerCtx)
	logger.Info("worker pool started", zap.Int("workers", workers.Size()))

	scheduler := worker.NewSchedulerWorker(jobs, ready, broker.Wake(),
		cfg.SchedulerInterval, cfg.JobLease, cfg.SchedulerBatch, logger)
	reaper := worker.NewReaperWorker(jobs, cfg.ReaperInterval, logger)

	bg, bgCtx := errgroup.WithContext(workerCtx)
	bg.Go(func() error { scheduler.Run(bgCtx); return nil })
	bg.Go(func() error { reaper.Run(bgCtx); return nil })

	// ---- HTTP server ----
	router := api.NewRouter(api.Deps{
		Users:       userSvc,
		Posts:       postSvc,
		Comments:    commentSvc,
		Feed:        feed,
		Broker:      broker,
		Ready:       ready,
		Presence:    registry,
		Realtime:    hub,
		Gatherer:    reg,
		Checks:      checks,
		CORSOrigins: cfg.CORSOrigins,
	}, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	var g errgroup.Group
	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			stop()
			return err
		}
		return nil
	})

	// ---- graceful shutdown ----
	<-ctx.Done()
	logger.Info("shutdown signal received")

	// 1. Stop accepting new HTTP requests and close live websockets.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	}
	hub.Close()

	// 2. Stop the scheduler and reaper, then let workers finish their current job.
	cancelWorkers()
	_ = bg.Wait()
	workers.Wait()

	if err := g.Wait(); err != nil {
		logger.Error("server error", zap.Error(err))
	}
	logger.Info("server stopped cleanly")
}
