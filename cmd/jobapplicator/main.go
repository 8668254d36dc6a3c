package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"jobapplicator/internal/cli"
	"jobapplicator/internal/config"
	"jobapplicator/internal/errors"
)

func main() {
	// Create a context that is canceled on interrupt signals
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logging
	logger, err := errors.New(cfg.App.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	// Secrets missing here surface later as a MISSING_API_KEY error from the first AI call
	if err := config.ResolveSecrets(cfg, logger); err != nil {
		logger.LogError(err, "Failed to resolve secrets")
	}

	logger.Info("Starting jobapplicator",
		"version", cli.Version,
		"log_level", cfg.App.LogLevel,
		"ai_provider", cfg.AI.Provider)

	if err := cli.Execute(ctx, cfg, logger); err != nil {
		logger.LogError(err, "Application execution failed")
		stop()
		os.Exit(1)
	}
}
