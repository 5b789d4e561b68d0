package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/gdmt-engine/internal/api"
	"github.com/gdmt-engine/internal/bootstrap"
	"github.com/gdmt-engine/internal/config"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	logger := bootstrap.NewLogger(configManager.GetConfig().Logging)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, configManager, logger)
	stop()
	if err != nil {
		logger.WithError(err).Error("Server failed")
		os.Exit(1)
	}

	logger.Info("Server stopped")
}

// run serves until ctx is done. Dependencies are released before it returns.
func run(ctx context.Context, configManager *config.Manager, logger *logrus.Logger) error {
	deps, cleanup, err := bootstrap.Dependencies(ctx, configManager, logger)
	defer cleanup()
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}

	server, err := api.NewServer(configManager, deps, logger)
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	logger.WithField("port", configManager.GetServerConfig().Port).Info("Starting GDMT recommendation server")
	return server.Start(ctx)
}
