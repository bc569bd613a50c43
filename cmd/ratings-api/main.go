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

	"github.com/hibiken/asynq"
	"go.uber.org/zap"

	"github.com/hackgods/medifit/internal/api"
	"github.com/hackgods/medifit/internal/config"
	"github.com/hackgods/medifit/internal/db"
	"github.com/hackgods/medifit/internal/events"
	"github.com/hackgods/medifit/internal/idcodec"
	"github.com/hackgods/medifit/internal/logging"
	"github.com/hackgods/medifit/internal/metrics"
	"github.com/hackgods/medifit/internal/ratings"
	redisclient "github.com/hackgods/medifit/internal/redis"
)

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

	log = log.With(zap.String("service", "ratings"))
	log.Info("ratings-api starting up", zap.String("env", cfg.Env), zap.String("http_port", cfg.HTTPPort))

	if err := run(cfg, log); err != nil {
		log.Fatal("ratings-api stopped", zap.Error(err))
	}
	log.Info("ratings-api shut down")
}

func run(cfg config.Config, log *zap.Logger) error {
	rootCtx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pgCtx, cancelPg := context.WithTimeout(rootCtx, 10*time.Second)
	sqlDB, err := db.ConnectSQL(pgCtx, cfg.PostgresDSN)
	if err == nil {
		err = db.ApplySQLSchema(pgCtx, sqlDB, ratings.Schema)
	}
	cancelPg()
	if err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	defer func() { _ = sqlDB.Close() }()
	log.Info("connected to Postgres")

	rdb, err := redisclient.NewRedisClient(cfg.RedisAddr, cfg.RedisUsername, cfg.RedisPassword)
	if err != nil {
		return fmt.Errorf("redis: %w", err)
	}
	defer func() {
		if err := rdb.Close(); err != nil {
			log.Warn("error closing redis", zap.Error(err))
		}
	}()
	log.Info("connected to Redis")

	reg := metrics.New("ratings")
	svc := ratings.NewSurveyService(
		ratings.NewPgRepository(sqlDB),
		ratings.WithObserver(reg),
		ratings.WithLogger(log),
	)

	// Surveys follow appointments booked and cancelled by the scheduling service
	mux := asynq.NewServeMux()
	mux.Handle(events.TypeAppointmentEvent, events.AppointmentHandler(svc, log))
	consumer := events.NewServer(redisclient.AsynqOpt(cfg), events.QueueAppointments, cfg.EventConcurrency, log)
	if err := consumer.Start(mux); err != nil {
		return fmt.Errorf("start appointment consumer: %w", err)
	}
	defer consumer.Shutdown()

	health := api.NewHealthHandler(cfg.Env, version,
		api.Dependency{Name: "postgres", Critical: true, Ping: sqlDB.PingContext},
		api.Dependency{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	)

	router := api.NewRatingsRouter(api.RatingsRouterConfig{
		RouterConfig: api.RouterConfig{
			Logger:         log,
			IDs:            idcodec.New(cfg.ExternalIDPrefix),
			Health:         health,
			Metrics:        reg.Handler(),
			Recorder:       reg,
			AllowedOrigins: cfg.CORSAllowedOrigins,
		},
		Service: svc,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	case <-rootCtx.Done():
		log.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
