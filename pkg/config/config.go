package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/shopdesk/pkg/dashboard"
	"github.com/platinummonkey/shopdesk/pkg/observability"
	"github.com/platinummonkey/shopdesk/pkg/session"
	"github.com/platinummonkey/shopdesk/pkg/storage"
	"github.com/platinummonkey/shopdesk/pkg/storage/postgres"
)

// FileEnv names the environment variable pointing at an optional YAML config file.
const FileEnv = "SHOPDESK_CONFIG_FILE"

// minJWTSecretLength is the shortest HS256 secret accepted.
const minJWTSecretLength = 32

// Config holds all application configuration
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Storage       storage.Config      `yaml:"storage"`
	Auth          AuthConfig          `yaml:"auth"`
	Session       SessionConfig       `yaml:"session"`
	Dashboard     DashboardConfig     `yaml:"dashboard"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            string        `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

// AuthConfig selects how bearer tokens are verified. At least one of the
// JWT secret or the OIDC issuer must be set; both may be.
type AuthConfig struct {
	JWTSecret     string `yaml:"jwt_secret"`
	JWTIssuer     string `yaml:"jwt_issuer"`
	JWTAudience   string `yaml:"jwt_audience"`
	OIDCIssuerURL string `yaml:"oidc_issuer_url"`
	OIDCClientID  string `yaml:"oidc_client_id"`
}

// SessionConfig tunes the in-process session cache
type SessionConfig struct {
	TTL                 time.Duration `yaml:"ttl"`
	MaxEntries          int           `yaml:"max_entries"`
	SingleFlight        bool          `yaml:"single_flight"`
	SweepInterval       time.Duration `yaml:"sweep_interval"`
	InvalidationChannel string        `yaml:"invalidation_channel"`
}

// DashboardConfig holds dashboard aggregation settings
type DashboardConfig struct {
	SectionTimeout time.Duration `yaml:"section_timeout"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	LogLevel       string `yaml:"log_level"`
	MetricsEnabled bool   `yaml:"metrics_enabled"`

	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"`
	OTelSampleRatio    float64 `yaml:"otel_sample_ratio"`
}

// Level returns the parsed log level.
func (o ObservabilityConfig) Level() observability.LogLevel {
	return observability.ParseLogLevel(o.LogLevel)
}

// OTel converts the settings for observability.InitOTel.
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SampleRatio:    o.OTelSampleRatio,
	}
}

// Default returns the configuration used when neither a file nor the
// environment says otherwise.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            "8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: observability.DefaultShutdownTimeout,
		},
		Storage: storage.DefaultConfig(),
		Session: SessionConfig{
			TTL:                 session.DefaultTTL,
			MaxEntries:          session.DefaultMaxEntries,
			SingleFlight:        true,
			SweepInterval:       time.Minute,
			InvalidationChannel: session.DefaultChannel,
		},
		Dashboard: DashboardConfig{
			SectionTimeout: dashboard.DefaultSectionTimeout,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			MetricsEnabled:     true,
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "shopdesk",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSampleRatio:    1,
		},
	}
}

// LoadConfig builds the configuration from defaults, the YAML file named by
// SHOPDESK_CONFIG_FILE (if any), then environment variables, and validates it.
func LoadConfig() (*Config, error) {
	return Load(os.Getenv(FileEnv))
}

// Load is LoadConfig with an explicit file path. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadFile overlays the YAML document at path onto c
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides c with any SHOPDESK_* variables that are set
func (c *Config) applyEnv() {
	c.Server.Host = getEnv("SHOPDESK_HOST", c.Server.Host)
	c.Server.Port = getEnv("SHOPDESK_PORT", c.Server.Port)
	c.Server.ReadTimeout = getEnvDuration("SHOPDESK_READ_TIMEOUT", c.Server.ReadTimeout)
	c.Server.WriteTimeout = getEnvDuration("SHOPDESK_WRITE_TIMEOUT", c.Server.WriteTimeout)
	c.Server.IdleTimeout = getEnvDuration("SHOPDESK_IDLE_TIMEOUT", c.Server.IdleTimeout)
	c.Server.ShutdownTimeout = getEnvDuration("SHOPDESK_SHUTDOWN_TIMEOUT", c.Server.ShutdownTimeout)

	c.applyStorageEnv()

	c.Auth.JWTSecret = getEnv("SHOPDESK_JWT_SECRET", c.Auth.JWTSecret)
	c.Auth.JWTIssuer = getEnv("SHOPDESK_JWT_ISSUER", c.Auth.JWTIssuer)
	c.Auth.JWTAudience = getEnv("SHOPDESK_JWT_AUDIENCE", c.Auth.JWTAudience)
	c.Auth.OIDCIssuerURL = getEnv("SHOPDESK_OIDC_ISSUER_URL", c.Auth.OIDCIssuerURL)
	c.Auth.OIDCClientID = getEnv("SHOPDESK_OIDC_CLIENT_ID", c.Auth.OIDCClientID)

	c.Session.TTL = getEnvDuration("SHOPDESK_SESSION_TTL", c.Session.TTL)
	c.Session.MaxEntries = getEnvInt("SHOPDESK_SESSION_MAX_ENTRIES", c.Session.MaxEntries)
	c.Session.SingleFlight = getEnvBool("SHOPDESK_SESSION_SINGLE_FLIGHT", c.Session.SingleFlight)
	c.Session.SweepInterval = getEnvDuration("SHOPDESK_SESSION_SWEEP_INTERVAL", c.Session.SweepInterval)
	c.Session.InvalidationChannel = getEnv("SHOPDESK_SESSION_INVALIDATION_CHANNEL", c.Session.InvalidationChannel)

	c.Dashboard.SectionTimeout = getEnvDuration("SHOPDESK_DASHBOARD_SECTION_TIMEOUT", c.Dashboard.SectionTimeout)

	o := &c.Observability
	o.LogLevel = getEnv("SHOPDESK_LOG_LEVEL", o.LogLevel)
	o.MetricsEnabled = getEnvBool("SHOPDESK_METRICS_ENABLED", o.MetricsEnabled)
	o.OTelEnabled = getEnvBool("SHOPDESK_OTEL_ENABLED", o.OTelEnabled)
	o.OTelEndpoint = getEnv("SHOPDESK_OTEL_ENDPOINT", o.OTelEndpoint)
	o.OTelServiceName = getEnv("SHOPDESK_OTEL_SERVICE_NAME", o.OTelServiceName)
	o.OTelServiceVersion = getEnv("SHOPDESK_OTEL_SERVICE_VERSION", o.OTelServiceVersion)
	o.OTelInsecure = getEnvBool("SHOPDESK_OTEL_INSECURE", o.OTelInsecure)
	o.OTelSampleRatio = getEnvFloat("SHOPDESK_OTEL_SAMPLE_RATIO", o.OTelSampleRatio)
}

func (c *Config) applyStorageEnv() {
	s := &c.Storage

	s.DatabaseURL = getEnv("SHOPDESK_DATABASE_URL", s.DatabaseURL)
	if replicas := getEnv("SHOPDESK_DATABASE_REPLICA_URLS", ""); replicas != "" {
		s.ReplicaURLs = postgres.ParseReplicaURLs(replicas)
	}
	s.MaxConns = getEnvInt("SHOPDESK_DATABASE_MAX_CONNS", s.MaxConns)
	s.MinConns = getEnvInt("SHOPDESK_DATABASE_MIN_CONNS", s.MinConns)
	s.Timeout = getEnvDuration("SHOPDESK_DATABASE_TIMEOUT", s.Timeout)
	s.MaxLifetime = getEnvDuration("SHOPDESK_DATABASE_MAX_LIFETIME", s.MaxLifetime)
	s.MaxIdleTime = getEnvDuration("SHOPDESK_DATABASE_MAX_IDLE_TIME", s.MaxIdleTime)
	s.AutoMigrate = getEnvBool("SHOPDESK_DATABASE_AUTO_MIGRATE", s.AutoMigrate)
	s.SeedRoles = getEnvBool("SHOPDESK_DATABASE_SEED_ROLES", s.SeedRoles)

	s.RedisURL = getEnv("SHOPDESK_REDIS_URL", s.RedisURL)
	s.RedisPassword = getEnv("SHOPDESK_REDIS_PASSWORD", s.RedisPassword)
	s.RedisDB = getEnvInt("SHOPDESK_REDIS_DB", s.RedisDB)
	s.RedisMaxRetries = getEnvInt("SHOPDESK_REDIS_MAX_RETRIES", s.RedisMaxRetries)
	s.RedisPoolSize = getEnvInt("SHOPDESK_REDIS_POOL_SIZE", s.RedisPoolSize)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}

	if c.Storage.DatabaseURL == "" {
		return fmt.Errorf("database URL is required")
	}
	if c.Storage.MaxConns <= 0 {
		return fmt.Errorf("database max conns must be positive")
	}
	if c.Storage.MinConns < 0 || c.Storage.MinConns > c.Storage.MaxConns {
		return fmt.Errorf("database min conns must be between 0 and max conns (%d)", c.Storage.MaxConns)
	}

	if c.Auth.JWTSecret == "" && c.Auth.OIDCIssuerURL == "" {
		return fmt.Errorf("a JWT secret or an OIDC issuer URL is required")
	}
	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < minJWTSecretLength {
		return fmt.Errorf("JWT secret must be at least %d bytes", minJWTSecretLength)
	}
	if c.Auth.OIDCIssuerURL != "" && c.Auth.OIDCClientID == "" {
		return fmt.Errorf("OIDC client ID is required when an OIDC issuer URL is set")
	}

	if c.Session.TTL <= 0 {
		return fmt.Errorf("session TTL must be positive")
	}
	if c.Session.MaxEntries <= 0 {
		return fmt.Errorf("session max entries must be positive")
	}
	if c.Session.SweepInterval <= 0 {
		return fmt.Errorf("session sweep interval must be positive")
	}

	if c.Dashboard.SectionTimeout <= 0 {
		return fmt.Errorf("dashboard section timeout must be positive")
	}

	switch strings.ToLower(c.Observability.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Observability.LogLevel)
	}
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	if r := c.Observability.OTelSampleRatio; r < 0 || r > 1 {
		return fmt.Errorf("OpenTelemetry sample ratio must be within [0, 1], got %v", r)
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
