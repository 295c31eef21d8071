// Package main wires together the lesson dashboard service.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ANANT0908/lessonwatch/internal/api"
	"github.com/ANANT0908/lessonwatch/internal/auth"
	"github.com/ANANT0908/lessonwatch/internal/catalog"
	"github.com/ANANT0908/lessonwatch/internal/clock/system"
	"github.com/ANANT0908/lessonwatch/internal/config"
	"github.com/ANANT0908/lessonwatch/internal/logging"
	"github.com/ANANT0908/lessonwatch/internal/metrics"
	"github.com/ANANT0908/lessonwatch/internal/player"
	"github.com/ANANT0908/lessonwatch/internal/progress"
	"github.com/ANANT0908/lessonwatch/internal/progress/sinks"
	"github.com/ANANT0908/lessonwatch/internal/storage/memory"
	"github.com/ANANT0908/lessonwatch/internal/storage/postgres"
	"github.com/ANANT0908/lessonwatch/internal/storage/redis"
	"github.com/ANANT0908/lessonwatch/internal/store"
	"github.com/ANANT0908/lessonwatch/internal/tracker"
)

// defaultLessons is the built-in A1 course used when the config names none.
var defaultLessons = []catalog.Lesson{
	{ID: "lesson1", SourceURL: "https://www.youtube.com/watch?v=d54ioeKA-jc&t=77s"},
	{ID: "lesson2", SourceURL: "https://www.youtube.com/watch?v=S8ukFF6SdGk&t=406s"},
}

func main() {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		os.Exit(1)
	}
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Init()

	lessons := cfg.Lessons
	if len(lessons) == 0 {
		lessons = defaultLessons
	}
	cat, err := catalog.New(lessons)
	if err != nil {
		logger.Fatal("invalid lesson catalog", zap.Error(err))
	}

	users, creds, closeStore, err := buildStores(ctx, cfg)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer closeStore()

	promSink, err := sinks.NewPrometheusSink(nil)
	if err != nil {
		logger.Fatal("metrics sink init failed", zap.Error(err))
	}
	hub := progress.NewHub(progress.Config{
		BufferSize:     cfg.Pipeline.BufferSize,
		MaxBatchEvents: cfg.Pipeline.MaxBatchEvents,
		MaxBatchWait:   cfg.BatchWait(),
		SinkTimeout:    cfg.SinkTimeout(),
		// BaseContext stays the default: the final drain must still be
		// able to write after SIGTERM cancels the signal context.
		Logger: logging.Named(logger, "pipeline"),
	},
		sinks.NewStoreSink(users, logging.Named(logger, "store-sink")),
		sinks.NewLogSink(logging.Named(logger, "events")),
		promSink,
	)

	broadcaster := auth.NewBroadcaster()
	authSvc, err := auth.NewService(auth.Config{
		JWTSecret: cfg.Auth.JWTSecret,
		AccessTTL: cfg.AccessTTL(),
	}, users, creds, broadcaster, logging.Named(logger, "auth"))
	if err != nil {
		logger.Fatal("auth init failed", zap.Error(err))
	}

	players := player.NewRemoteProvider(logging.Named(logger, "players"))
	registry := tracker.NewRegistry(
		cfg.TrackerConfig(),
		users,
		players,
		hub,
		system.New(),
		broadcaster,
		logging.Named(logger, "tracker"),
	)

	apiServer := api.NewServer(authSvc, registry, players, cat, cfg.RequestTimeout(), logging.Named(logger, "api"))

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           apiServer.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server started", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutdown initiated")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout())
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown error", zap.Error(err))
	}
	registry.Close()
	if err := hub.Close(shutdownCtx); err != nil {
		logger.Error("pipeline drain error", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

// buildStores constructs the configured persistence provider.
func buildStores(ctx context.Context, cfg config.Config) (store.UserStore, store.CredentialStore, func(), error) {
	switch cfg.Store.Provider {
	case "postgres":
		st, err := postgres.NewUserStore(ctx, postgres.UserStoreConfig{
			DSN:      cfg.Store.Postgres.DSN,
			MaxConns: cfg.Store.Postgres.MaxConns,
			MinConns: cfg.Store.Postgres.MinConns,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return st, st, st.Close, nil
	case "redis":
		st, err := redis.NewUserStore(ctx, redis.UserStoreConfig{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		return st, st, func() { _ = st.Close() }, nil
	default:
		st := memory.NewUserStore()
		return st, st, func() {}, nil
	}
}
