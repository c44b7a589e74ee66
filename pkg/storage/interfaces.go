package storage

import (
	"context"
	"time"

	"github.com/platinummonkey/shopdesk/pkg/auth"
	"github.com/platinummonkey/shopdesk/pkg/dashboard"
)

// HealthChecker reports whether a backend can serve requests
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Store is everything the service reads from persistent storage: the identity
// directory for session resolution and the dashboard data source.
type Store interface {
	auth.Directory
	dashboard.Source
	HealthChecker
}

// Config for storage backends
type Config struct {
	// DatabaseURL selects the driver: postgres:// or postgresql:// use lib/pq,
	// anything else is treated as a SQLite DSN.
	DatabaseURL string        `yaml:"database_url"`
	ReplicaURLs []string      `yaml:"replica_urls"`
	MaxConns    int           `yaml:"max_conns"`
	MinConns    int           `yaml:"min_conns"`
	Timeout     time.Duration `yaml:"timeout"`
	MaxLifetime time.Duration `yaml:"max_lifetime"`
	MaxIdleTime time.Duration `yaml:"max_idle_time"`
	AutoMigrate bool          `yaml:"auto_migrate"`
	SeedRoles   bool          `yaml:"seed_roles"`

	// Redis config; empty RedisURL disables Redis
	RedisURL        string `yaml:"redis_url"`
	RedisPassword   string `yaml:"redis_password"`
	RedisDB         int    `yaml:"redis_db"`
	RedisMaxRetries int    `yaml:"redis_max_retries"`
	RedisPoolSize   int    `yaml:"redis_pool_size"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		DatabaseURL:     "postgres://localhost:5432/shopdesk?sslmode=disable",
		MaxConns:        20,
		MinConns:        2,
		Timeout:         10 * time.Second,
		MaxLifetime:     1 * time.Hour,
		MaxIdleTime:     10 * time.Minute,
		AutoMigrate:     true,
		SeedRoles:       true,
		RedisDB:         0,
		RedisMaxRetries: 3,
		RedisPoolSize:   10,
	}
}
