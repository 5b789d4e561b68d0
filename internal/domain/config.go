package domain

import (
	"time"
)

// Config represents the main application configuration
type Config struct {
	Server     ServerConfig   `mapstructure:"server"`
	Database   DatabaseConfig `mapstructure:"database"`
	Cache      CacheConfig    `mapstructure:"cache"`
	Logging    LoggingConfig  `mapstructure:"logging"`
	MCP        MCPConfig      `mapstructure:"mcp"`
	Feedback   FeedbackConfig `mapstructure:"feedback"`
	Thresholds Thresholds     `mapstructure:"thresholds"`
}

// ServerConfig represents HTTP server configuration
type ServerConfig struct {
	Host           string        `mapstructure:"host"`
	Port           int           `mapstructure:"port"`
	ReadTimeout    time.Duration `mapstructure:"read_timeout"`
	WriteTimeout   time.Duration `mapstructure:"write_timeout"`
	IdleTimeout    time.Duration `mapstructure:"idle_timeout"`
	AllowedOrigins []string      `mapstructure:"allowed_origins"`
	RateLimit      float64       `mapstructure:"rate_limit"` // requests per second per client
	RateBurst      int           `mapstructure:"rate_burst"`
}

// DatabaseConfig represents database connection configuration
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"ssl_mode"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// CacheConfig represents result cache configuration
type CacheConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Size       int           `mapstructure:"size"`
	DefaultTTL time.Duration `mapstructure:"default_ttl"`
	RedisURL   string        `mapstructure:"redis_url"`
	MaxRetries int           `mapstructure:"max_retries"`
	PoolSize   int           `mapstructure:"pool_size"`
}

// LoggingConfig represents logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MCPConfig represents MCP server configuration
type MCPConfig struct {
	ServerName     string        `mapstructure:"server_name"`
	ServerVersion  string        `mapstructure:"server_version"`
	TransportType  string        `mapstructure:"transport_type"` // "stdio" only for now
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// FeedbackConfig selects the clinician feedback store
type FeedbackConfig struct {
	Backend    string `mapstructure:"backend"` // "sqlite", "postgres" or "none"
	SQLitePath string `mapstructure:"sqlite_path"`
}

// Thresholds are the tunable safety limits used when deciding whether a dose may be increased.
type Thresholds struct {
	// RecentVitalsWindow is how far back a vital-sign reading still counts as recent.
	RecentVitalsWindow time.Duration `mapstructure:"recent_vitals_window"`
	// MinimumRecentVitals is the number of recent readings needed before titration.
	MinimumRecentVitals int `mapstructure:"minimum_recent_vitals"`
	// LabMaxAge is how old the latest lab may be.
	LabMaxAge time.Duration `mapstructure:"lab_max_age"`

	SystolicFloor         float64 `mapstructure:"systolic_floor"`          // mmHg, median
	HypotensionFloor      float64 `mapstructure:"hypotension_floor"`       // mmHg, single reading
	HypotensionShareLimit float64 `mapstructure:"hypotension_share_limit"` // percent of recent readings
	HeartRateFloor        float64 `mapstructure:"heart_rate_floor"`        // beats/min, median
	DizzinessLimit        float64 `mapstructure:"dizziness_limit"`         // raw KCCQ answer

	PotassiumCeiling float64 `mapstructure:"potassium_ceiling"` // mmol/L
	MRAEGFRFloor     float64 `mapstructure:"mra_egfr_floor"`    // mL/min/1.73m2
	RASIEGFRFloor    float64 `mapstructure:"rasi_egfr_floor"`
	SGLT2EGFRFloor   float64 `mapstructure:"sglt2_egfr_floor"`
}

// DefaultThresholds returns the limits used when no configuration overrides them.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RecentVitalsWindow:    14 * 24 * time.Hour,
		MinimumRecentVitals:   3,
		LabMaxAge:             30 * 24 * time.Hour,
		SystolicFloor:         100,
		HypotensionFloor:      90,
		HypotensionShareLimit: 25,
		HeartRateFloor:        60,
		DizzinessLimit:        3,
		PotassiumCeiling:      5.0,
		MRAEGFRFloor:          30,
		RASIEGFRFloor:         30,
		SGLT2EGFRFloor:        20,
	}
}
