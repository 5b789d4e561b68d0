// Package bootstrap wires configuration into the engine, its cache tiers and the feedback store.
package bootstrap

import (
	"context"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"

	"github.com/gdmt-engine/internal/api"
	"github.com/gdmt-engine/internal/cache"
	"github.com/gdmt-engine/internal/catalog"
	"github.com/gdmt-engine/internal/database"
	"github.com/gdmt-engine/internal/domain"
	"github.com/gdmt-engine/internal/feedback"
	"github.com/gdmt-engine/internal/service"
)

// Feedback backends.
const (
	BackendNone     = "none"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	return logger
}

// Dependencies builds the HTTP dependencies. The returned cleanup releases every opened
// resource and is safe to call when err is non-nil.
func Dependencies(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger) (api.Dependencies, func(), error) {
	cfg := configManager.GetConfig()
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	cat := catalog.Default()
	checker := service.NewContraindicationChecker(cat)
	engine := service.NewRecommendationEngine(checker, cat, logger, service.WithThresholds(cfg.Thresholds))

	deps := api.Dependencies{
		Engine:  engine,
		Checker: checker,
		Catalog: cat,
		Checks:  map[string]api.HealthCheck{},
	}

	if cfg.Cache.Enabled {
		tiers := []cache.Store{cache.NewMemoryStore(cfg.Cache.Size, cfg.Cache.DefaultTTL)}

		if cfg.Cache.RedisURL != "" {
			redisStore, err := cache.NewRedisStore(ctx, cfg.Cache, logger)
			if err != nil {
				logger.WithError(err).Warn("Redis cache tier unavailable, continuing with memory only")
			} else {
				tiers = append(tiers, redisStore)
				deps.Checks["redis"] = redisStore.Ping
				closers = append(closers, func() {
					if err := redisStore.Close(); err != nil {
						logger.WithError(err).Warn("Failed to close Redis client")
					}
				})
			}
		}

		deps.Engine = cache.NewCachedEngine(engine, logger, tiers...)
	}

	store, err := openFeedbackStore(ctx, configManager, logger, &deps, &closers)
	if err != nil {
		return api.Dependencies{}, cleanup, err
	}
	if store != nil {
		deps.Feedback = store
		closers = append(closers, func() {
			if err := store.Close(); err != nil {
				logger.WithError(err).Warn("Failed to close feedback store")
			}
		})
	}

	logger.WithFields(logrus.Fields{
		"cache":    cfg.Cache.Enabled,
		"feedback": cfg.Feedback.Backend,
		"checks":   len(deps.Checks),
	}).Info("Dependencies initialized")

	return deps, cleanup, nil
}

func openFeedbackStore(ctx context.Context, configManager domain.ConfigManager, logger *logrus.Logger, deps *api.Dependencies, closers *[]func()) (feedback.Store, error) {
	cfg := configManager.GetConfig()

	switch cfg.Feedback.Backend {
	case "", BackendNone:
		return nil, nil

	case BackendSQLite:
		store, err := feedback.NewSQLiteStore(cfg.Feedback.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite feedback store: %w", err)
		}
		return store, nil

	case BackendPostgres:
		url := configManager.GetDatabaseConnectionString()
		if err := Migrate(ctx, url, logger, true); err != nil {
			return nil, err
		}

		db, err := database.NewConnection(ctx, cfg.Database, logger)
		if err != nil {
			return nil, err
		}
		deps.Checks["database"] = db.Health
		*closers = append(*closers, db.Close)

		store, err := feedback.NewPostgresStoreFromURL(url)
		if err != nil {
			return nil, fmt.Errorf("failed to open Postgres feedback store: %w", err)
		}
		return store, nil

	default:
		return nil, fmt.Errorf("unknown feedback backend %q", cfg.Feedback.Backend)
	}
}

// Migrate applies (up) or reverts one step of (down) the feedback schema.
func Migrate(ctx context.Context, databaseURL string, logger *logrus.Logger, up bool) error {
	runner, err := database.NewMigrationRunner(databaseURL, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := runner.Close(); err != nil {
			logger.WithError(err).Warn("Failed to close migration runner")
		}
	}()

	if up {
		return runner.Up(ctx)
	}
	return runner.Down(ctx)
}
