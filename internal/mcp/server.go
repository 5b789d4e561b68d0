// Package mcp exposes the recommendation engine and its calculators as MCP tools.
package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/sirupsen/logrus"

	"github.com/gdmt-engine/internal/cache"
	"github.com/gdmt-engine/internal/catalog"
	"github.com/gdmt-engine/internal/config"
	"github.com/gdmt-engine/internal/domain"
	"github.com/gdmt-engine/internal/feedback"
	"github.com/gdmt-engine/internal/service"
)

const (
	serverName    = "gdmt-engine"
	serverVersion = "v1.0.0"
)

// Server is a standalone MCP server. It requires no external databases: results are
// memoized in memory and feedback is kept in SQLite under the data directory.
type Server struct {
	config        *config.LiteConfig
	mcpServer     *mcp.Server
	engine        domain.RecommendationService
	checker       domain.ContraindicationChecker
	catalog       domain.MedicationCatalog
	feedbackStore feedback.Store
	tools         []string
	logger        *logrus.Logger
}

// ServerOption is a functional option for Server.
type ServerOption func(*Server) error

// WithFeedbackStore sets a custom feedback store.
func WithFeedbackStore(store feedback.Store) ServerOption {
	return func(s *Server) error {
		s.feedbackStore = store
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithRecommendationService replaces the default cached engine.
func WithRecommendationService(engine domain.RecommendationService) ServerOption {
	return func(s *Server) error {
		if engine == nil {
			return fmt.Errorf("recommendation service is nil")
		}
		s.engine = engine
		return nil
	}
}

// NewServer creates a new MCP server instance.
func NewServer(cfg *config.LiteConfig, opts ...ServerOption) (*Server, error) {
	server := &Server{
		config:  cfg,
		catalog: catalog.Default(),
		logger:  logrus.New(),
	}

	if cfg.LogFormat == "text" {
		server.logger.SetFormatter(&logrus.TextFormatter{})
	} else {
		server.logger.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		server.logger.SetLevel(level)
	}

	for _, opt := range opts {
		if err := opt(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if err := cfg.EnsureDataDir(); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	server.checker = service.NewContraindicationChecker(server.catalog)
	if server.engine == nil {
		engine := service.NewRecommendationEngine(server.checker, server.catalog, server.logger)
		memory := cache.NewMemoryStore(cfg.CacheMaxItems, cfg.CacheTTL)
		server.engine = cache.NewCachedEngine(engine, server.logger, memory)
	}

	if server.feedbackStore == nil && cfg.FeedbackEnabled {
		store, err := feedback.NewSQLiteStore(cfg.FeedbackDBPath())
		if err != nil {
			return nil, fmt.Errorf("failed to create feedback store: %w", err)
		}
		server.feedbackStore = store
	}

	server.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    serverName,
		Version: serverVersion,
	}, nil)
	server.registerTools()

	server.logger.WithField("tool_count", len(server.tools)).Info("MCP server initialized")
	return server, nil
}

// Run serves MCP over stdin/stdout until ctx is done or the client disconnects.
func (s *Server) Run(ctx context.Context) error {
	s.logger.Info("Starting GDMT MCP server on stdio")
	if err := s.mcpServer.Run(ctx, &mcp.StdioTransport{}); err != nil {
		return fmt.Errorf("MCP server failed: %w", err)
	}
	return nil
}

// Tools returns the registered tool names in registration order.
func (s *Server) Tools() []string {
	return append([]string(nil), s.tools...)
}

// Close cleans up server resources.
func (s *Server) Close() error {
	if s.feedbackStore != nil {
		if err := s.feedbackStore.Close(); err != nil {
			s.logger.WithError(err).Error("Failed to close feedback store")
			return err
		}
	}
	return nil
}
