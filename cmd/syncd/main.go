package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/rezacr588/pactoria-mvp-sub005/internal/config"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/handler"
	notificationHandler "github.com/rezacr588/pactoria-mvp-sub005/internal/handler/notification"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/notifier"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/poller"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/push"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/router"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/store"
	"github.com/rezacr588/pactoria-mvp-sub005/internal/syncer"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/logger"
	"github.com/rezacr588/pactoria-mvp-sub005/pkg/metrics"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid log level")
	}
	appLogger := logger.NewLogger(&logger.Config{
		Level:      level,
		TimeFormat: time.RFC3339,
		Output:     os.Stdout,
	})

	// Metrics registry shared with the /metrics endpoint
	registry := prometheus.NewRegistry()
	appMetrics := metrics.NewMetrics(registry, "pactoria", "notify_sync")

	// Notification service client
	client := notifier.NewClient(cfg.API.ToClientConfig(), appLogger)

	// Push connection manager
	manager := push.NewManager(cfg.Push.ToManagerConfig(), appLogger, appMetrics)

	// Notification store, with the optimistic-update path gated on the
	// push channel being down
	notificationStore := store.New(
		cfg.Store.ToStoreConfig(),
		client,
		manager.Connected,
		appLogger,
		appMetrics,
	)

	// Polling fallback
	fallbackPoller := poller.New(
		cfg.Poll.ToPollerConfig(),
		manager,
		notificationStore,
		appLogger,
		appMetrics,
	)

	sync := syncer.New(manager, notificationStore, fallbackPoller, appLogger)

	// Handlers and router
	notifH := notificationHandler.NewHandler(notificationStore, manager)
	healthH := handler.NewHealthHandler(func() bool {
		snap := notificationStore.Snapshot()
		return snap.Page > 0 || snap.Error != ""
	})

	r := router.NewRouter(notifH, healthH, registry, router.RouterConfig{
		RateLimitRPS:  cfg.RateLimit.RequestsPerSecond,
		RateBurst:     cfg.RateLimit.Burst,
		MetricsPrefix: "notify_sync",
	})
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the sync unit: initial fetch, polling fallback, push channel
	if err := sync.Start(ctx, cfg.API.Token); err != nil {
		log.Fatal().Err(err).Msg("failed to start notification sync")
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	appLogger.Info("notification sync daemon started", "port", cfg.Server.Port)

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down...")

	cancel()
	sync.Close()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("exited properly")
}
