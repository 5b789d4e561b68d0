// Package api serves the recommendation engine and its calculators over HTTP.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/gdmt-engine/internal/domain"
	"github.com/gdmt-engine/internal/feedback"
	"github.com/gdmt-engine/internal/middleware"
)

// HealthCheck probes one dependency.
type HealthCheck func(ctx context.Context) error

// Dependencies are the collaborators the handlers call.
type Dependencies struct {
	Engine   domain.RecommendationService
	Checker  domain.ContraindicationChecker
	Catalog  domain.MedicationCatalog
	Feedback feedback.Store // nil disables the feedback endpoints
	Checks   map[string]HealthCheck
}

// Server represents the HTTP server
type Server struct {
	configManager domain.ConfigManager
	deps          Dependencies
	router        *gin.Engine
	server        *http.Server
	logger        *logrus.Logger
	startedAt     time.Time
}

// NewServer creates a new HTTP server instance
func NewServer(configManager domain.ConfigManager, deps Dependencies, logger *logrus.Logger) (*Server, error) {
	if deps.Engine == nil || deps.Checker == nil || deps.Catalog == nil {
		return nil, fmt.Errorf("engine, contraindication checker and catalog are required")
	}
	cfg := configManager.GetConfig()

	if cfg.Logging.Level == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(logger))
	router.Use(middleware.SecurityHeaders())
	router.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))
	router.Use(middleware.RateLimit(middleware.NewClientRateLimiter(cfg.Server.RateLimit, cfg.Server.RateBurst)))
	router.Use(middleware.RequestTimeout(cfg.Server.WriteTimeout))

	server := &Server{
		configManager: configManager,
		deps:          deps,
		router:        router,
		logger:        logger,
		startedAt:     time.Now(),
	}

	server.setupRoutes()

	return server, nil
}

func corsConfig(origins []string) cors.Config {
	config := cors.Config{
		AllowMethods:  []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			config.AllowAllOrigins = true
			return config
		}
	}
	config.AllowOrigins = origins
	if len(origins) == 0 {
		config.AllowAllOrigins = true
	}
	return config
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	cfg := s.configManager.GetServerConfig()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.WithField("addr", addr).Info("HTTP server listening")
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	return s.server.Shutdown(shutdownCtx)
}

// setupRoutes configures the API routes
func (s *Server) setupRoutes() {
	s.router.GET("/health", s.handleHealth)

	v1 := s.router.Group("/api/v1")
	{
		v1.GET("/health", s.handleHealth)
		v1.POST("/recommendations", s.handleRecommendations)
		v1.POST("/egfr", s.handleEGFR)
		v1.POST("/symptom-score", s.handleSymptomScore)
		v1.POST("/contraindications/medication", s.handleMedicationContraindication)
		v1.POST("/contraindications/class", s.handleClassContraindication)
		v1.GET("/medications", s.handleMedications)
		v1.POST("/feedback", s.handleSubmitFeedback)
		v1.GET("/feedback", s.handleListFeedback)
	}
}
