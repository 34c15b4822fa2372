package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/qivr/analytics-etl/internal/api"
	"github.com/qivr/analytics-etl/internal/app"
	"github.com/qivr/analytics-etl/internal/config"
	"github.com/qivr/analytics-etl/internal/trigger"
	"go.uber.org/zap"
)

func main() {
	logger, err := app.Setup("analytics-etl-server")
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx := context.Background()

	pipe, err := app.Build(ctx, config.FromEnv(), nil, logger)
	if err != nil {
		logger.Fatal("failed to configure pipeline", zap.Error(err))
	}
	if config.TriggerToken() == "" {
		logger.Warn("TRIGGER_TOKEN is not set; run requests will be refused")
	}

	srvApp := api.NewApp(trigger.NewHandler(pipe.Orchestrator, logger), pipe.Metrics, api.Config{
		TriggerToken:   config.TriggerToken(),
		RateLimitRPS:   config.RateLimitRPS(),
		RateLimitBurst: config.RateLimitBurst(),
	}, logger)
	srvApp.Start()

	addr := config.ServerAddr()
	srv := &http.Server{
		Addr:              addr,
		Handler:           srvApp.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Info("server starting", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server failed", zap.Error(err))
		}
	}()

	<-quit
	logger.Info("shutting down server")

	srvApp.Stop()

	// A run in flight may hold the request open for several minutes.
	shutdownCtx, cancel := context.WithTimeout(ctx, config.StatementTimeout()+30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Fatal("server forced to shutdown", zap.Error(err))
	}

	logger.Info("server stopped")
}
