package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/gdmt-engine/internal/database"
	"github.com/gdmt-engine/internal/domain"
)

// Manager implements the ConfigManager interface using Viper
type Manager struct {
	v          *viper.Viper
	config     *domain.Config
	configFile string
}

// Option customizes how a Manager locates its configuration.
type Option func(*Manager)

// WithConfigFile reads the given file instead of searching the default paths.
func WithConfigFile(path string) Option {
	return func(m *Manager) {
		m.configFile = path
	}
}

// NewManager creates a new configuration manager
func NewManager(opts ...Option) (*Manager, error) {
	m := &Manager{}
	for _, opt := range opts {
		opt(m)
	}
	if err := m.loadConfig(); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return m, nil
}

// loadConfig loads configuration from various sources
func (m *Manager) loadConfig() error {
	// A missing .env is normal outside development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("error loading .env file: %w", err)
	}

	v := viper.New()
	if m.configFile != "" {
		v.SetConfigFile(m.configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/gdmt-engine/")
	}

	v.SetEnvPrefix("GDMT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	// Config file is optional; defaults and environment variables still apply.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	config := &domain.Config{}
	if err := v.Unmarshal(config); err != nil {
		return fmt.Errorf("error unmarshaling config: %w", err)
	}

	m.v = v
	m.config = config
	return nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")

	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.allowed_origins", []string{"*"})
	v.SetDefault("server.rate_limit", 20.0)
	v.SetDefault("server.rate_burst", 40)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.database", "gdmt_engine")
	v.SetDefault("database.username", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "5m")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.size", 1000)
	v.SetDefault("cache.default_ttl", "1h")
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("cache.max_retries", 3)
	v.SetDefault("cache.pool_size", 10)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// MCP defaults
	v.SetDefault("mcp.server_name", "gdmt-engine")
	v.SetDefault("mcp.server_version", "1.0.0")
	v.SetDefault("mcp.transport_type", "stdio")
	v.SetDefault("mcp.request_timeout", "30s")

	// Feedback defaults
	v.SetDefault("feedback.backend", "sqlite")
	v.SetDefault("feedback.sqlite_path", "./data/feedback.db")

	t := domain.DefaultThresholds()
	v.SetDefault("thresholds.recent_vitals_window", t.RecentVitalsWindow)
	v.SetDefault("thresholds.minimum_recent_vitals", t.MinimumRecentVitals)
	v.SetDefault("thresholds.lab_max_age", t.LabMaxAge)
	v.SetDefault("thresholds.systolic_floor", t.SystolicFloor)
	v.SetDefault("thresholds.hypotension_floor", t.HypotensionFloor)
	v.SetDefault("thresholds.hypotension_share_limit", t.HypotensionShareLimit)
	v.SetDefault("thresholds.heart_rate_floor", t.HeartRateFloor)
	v.SetDefault("thresholds.dizziness_limit", t.DizzinessLimit)
	v.SetDefault("thresholds.potassium_ceiling", t.PotassiumCeiling)
	v.SetDefault("thresholds.mra_egfr_floor", t.MRAEGFRFloor)
	v.SetDefault("thresholds.rasi_egfr_floor", t.RASIEGFRFloor)
	v.SetDefault("thresholds.sglt2_egfr_floor", t.SGLT2EGFRFloor)
}

// GetConfig returns the complete configuration
func (m *Manager) GetConfig() *domain.Config {
	return m.config
}

// GetDatabaseConfig returns database configuration
func (m *Manager) GetDatabaseConfig() *domain.DatabaseConfig {
	return &m.config.Database
}

// GetServerConfig returns server configuration
func (m *Manager) GetServerConfig() *domain.ServerConfig {
	return &m.config.Server
}

// Reload reloads the configuration
func (m *Manager) Reload() error {
	return m.loadConfig()
}

// Validate validates the configuration
func (m *Manager) Validate() error {
	config := m.config

	if config.Server.Port <= 0 || config.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", config.Server.Port)
	}
	if config.Server.RateLimit < 0 || config.Server.RateBurst < 0 {
		return fmt.Errorf("rate limit and burst must not be negative")
	}

	switch config.Feedback.Backend {
	case "none":
	case "sqlite":
		if config.Feedback.SQLitePath == "" {
			return fmt.Errorf("feedback sqlite path is required")
		}
	case "postgres":
		if config.Database.Host == "" {
			return fmt.Errorf("database host is required")
		}
		if config.Database.Database == "" {
			return fmt.Errorf("database name is required")
		}
		if config.Database.Username == "" {
			return fmt.Errorf("database username is required")
		}
	default:
		return fmt.Errorf("invalid feedback backend: %s", config.Feedback.Backend)
	}

	if config.Cache.Enabled && config.Cache.Size <= 0 {
		return fmt.Errorf("cache size must be positive when the cache is enabled")
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLogLevels[strings.ToLower(config.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s", config.Logging.Level)
	}

	return validateThresholds(config.Thresholds)
}

func validateThresholds(t domain.Thresholds) error {
	if t.RecentVitalsWindow <= 0 || t.LabMaxAge <= 0 {
		return fmt.Errorf("recency windows must be positive")
	}
	if t.MinimumRecentVitals < 1 {
		return fmt.Errorf("minimum recent vitals must be at least 1")
	}
	if t.HypotensionShareLimit < 0 || t.HypotensionShareLimit > 100 {
		return fmt.Errorf("hypotension share limit must be a percentage: %v", t.HypotensionShareLimit)
	}
	if t.HypotensionFloor > t.SystolicFloor {
		return fmt.Errorf("hypotension floor %v exceeds systolic floor %v", t.HypotensionFloor, t.SystolicFloor)
	}
	if t.PotassiumCeiling <= 0 {
		return fmt.Errorf("potassium ceiling must be positive")
	}
	if t.MRAEGFRFloor < 0 || t.RASIEGFRFloor < 0 || t.SGLT2EGFRFloor < 0 {
		return fmt.Errorf("eGFR floors must not be negative")
	}
	return nil
}

// GetDatabaseConnectionString returns a formatted database connection string
func (m *Manager) GetDatabaseConnectionString() string {
	return database.ConnectionURL(m.config.Database)
}

// GetRedisConnectionString returns the Redis connection string
func (m *Manager) GetRedisConnectionString() string {
	return m.config.Cache.RedisURL
}

// IsProduction returns true if running in production mode
func (m *Manager) IsProduction() bool {
	return strings.ToLower(m.v.GetString("environment")) == "production"
}

// IsDevelopment returns true if running in development mode
func (m *Manager) IsDevelopment() bool {
	env := strings.ToLower(m.v.GetString("environment"))
	return env == "development" || env == "dev" || env == ""
}

var _ domain.ConfigManager = (*Manager)(nil)
