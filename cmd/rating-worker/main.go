package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hackgods/medifit/internal/api"
	"github.com/hackgods/medifit/internal/config"
	"github.com/hackgods/medifit/internal/db"
	"github.com/hackgods/medifit/internal/events"
	"github.com/hackgods/medifit/internal/logging"
	"github.com/hackgods/medifit/internal/metrics"
	"github.com/hackgods/medifit/internal/ratings"
	redisclient "github.com/hackgods/medifit/internal/redis"
	"github.com/hackgods/medifit/internal/worker"
)

const aggregationLock = "rating-aggregation"

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load error: %v\n", err)
		os.Exit(1)
	}

	log, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init error: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	log = log.With(zap.String("service", "rating-worker"))
	log.Info("rating-worker starting up",
		zap.String("env", cfg.Env),
		zap.Duration("interval", cfg.AggregationInterval),
		zap.Duration("warmup", cfg.AggregationWarmup),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Connect Postgres
	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	sqlDB, err := db.ConnectSQL(pgCtx, cfg.PostgresDSN)
	if err == nil {
		err = db.ApplySQLSchema(pgCtx, sqlDB, ratings.Schema)
	}
	cancelPg()
	if err != nil {
		log.Fatal("postgres connection error", zap.Error(err))
	}
	defer func() { _ = sqlDB.Close() }()
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		log.Fatal("redis connection error", zap.Error(err))
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	publisher := events.NewAsynqPublisher(redisclient.AsynqOpt(cfg))
	defer func() { _ = publisher.Close() }()

	reg := metrics.New("rating-worker")
	agg := ratings.NewAggregator(
		ratings.NewPgRepository(sqlDB),
		publisher,
		ratings.WithObserver(reg),
		ratings.WithLogger(log),
	)
	locker := redisclient.NewRedisLocker(rdb, cfg.AggregationLockTTL, log)

	// Probes and /metrics only
	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: api.NewWorkerRouter(api.RouterConfig{
			Logger: log,
			Health: api.NewHealthHandler(cfg.Env, version,
				api.Dependency{Name: "postgres", Critical: true, Ping: sqlDB.PingContext},
				api.Dependency{Name: "redis", Critical: true, Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
			),
			Metrics:        reg.Handler(),
			Recorder:       reg,
			AllowedOrigins: cfg.CORSAllowedOrigins,
		}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server failed", zap.Error(err))
			stop()
		}
	}()

	job := worker.NewPeriodic("rating-aggregation", cfg.AggregationWarmup, cfg.AggregationInterval,
		func(ctx context.Context) error {
			return runOnce(ctx, locker, agg, log)
		}, log).WithTimeout(cfg.AggregationLockTTL)

	job.Run(rootCtx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("http shutdown", zap.Error(err))
	}
	log.Info("rating-worker stopped", zap.Int64("skipped_ticks", job.Skipped()))
}

// runOnce aggregates under a cluster-wide lock so that worker instances do
// not compete for the same surveys. A run that slips past the lock still
// cannot fold a survey twice; it ends up counted as stale.
func runOnce(ctx context.Context, locker redisclient.Locker, agg *ratings.Aggregator, log *zap.Logger) error {
	err := locker.WithLock(ctx, aggregationLock, func(ctx context.Context) error {
		res, err := agg.Run(ctx)
		if err != nil {
			return err
		}
		log.Info("aggregation finished",
			zap.Int("surveys", res.Surveys),
			zap.Int("doctors", res.Doctors),
			zap.Int("failed_groups", res.Failed),
			zap.Int("stale_groups", res.Stale),
		)
		return nil
	})
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		log.Info("aggregation already running on another instance")
		return nil
	}
	return err
}
