package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/olegrjumin/cookieguard/internal/app"
	"github.com/olegrjumin/cookieguard/internal/config"
	"github.com/olegrjumin/cookieguard/internal/logging"
)

func main() {
	// Load configuration from environment variables
	cfg := config.Load()

	// Initialize logger
	logger := logging.New(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat})

	// Cancel on Ctrl+C or kill so the server, scheduler and watcher stop together
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("Failed to initialize", "error", err)
		os.Exit(1)
	}

	serveErr := a.Serve(ctx)
	if err := a.Close(); err != nil {
		logger.Error("Failed to release resources", "error", err)
	}
	if serveErr != nil {
		logger.Error("Server error", "error", serveErr)
		os.Exit(1)
	}
}
