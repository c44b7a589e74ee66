package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"

	"github.com/platinummonkey/shopdesk/pkg/observability"
)

// Driver names as registered with database/sql
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DetectDriver determines the driver from a DSN string
func DetectDriver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DriverPostgres
	}
	return DriverSQLite
}

func dialectFor(driver string) schema.Dialect {
	if driver == DriverSQLite {
		return sqlitedialect.New()
	}
	return pgdialect.New()
}

// ConnectionManager manages a primary connection and optional read replicas. Each
// connection is also exposed through bun for the query-builder read paths.
type ConnectionManager struct {
	driver string

	primary    *sql.DB
	primaryBun *bun.DB

	mu          sync.RWMutex
	replicas    []*sql.DB
	replicaBuns []*bun.DB
	current     uint32 // atomic counter for round-robin selection

	config ConnectionConfig
	logger *observability.Logger
}

// ConnectionConfig holds database connection configuration
type ConnectionConfig struct {
	PrimaryURL  string
	ReplicaURLs []string
	MaxConns    int
	MinConns    int
	Timeout     time.Duration
	MaxLifetime time.Duration
	MaxIdleTime time.Duration
}

// NewConnectionManager opens the primary and every reachable replica. Replicas that
// fail to open or ping are logged and skipped.
func NewConnectionManager(config ConnectionConfig, logger *observability.Logger) (*ConnectionManager, error) {
	if config.Timeout == 0 {
		config.Timeout = 10 * time.Second
	}
	driver := DetectDriver(config.PrimaryURL)

	primary, err := sql.Open(driver, config.PrimaryURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open primary connection: %w", err)
	}
	configurePool(primary, driver, config.MaxConns, config)

	ctx, cancel := context.WithTimeout(context.Background(), config.Timeout)
	defer cancel()
	if err := primary.PingContext(ctx); err != nil {
		primary.Close()
		return nil, fmt.Errorf("failed to ping primary: %w", err)
	}

	cm := NewConnectionManagerFromDB(driver, primary, logger)
	cm.config = config

	for i, replicaURL := range config.ReplicaURLs {
		if err := cm.AddReplica(replicaURL); err != nil {
			logger.WithError(err).WithField("replica", i).Warn("skipping read replica")
		}
	}

	logger.WithFields(map[string]interface{}{
		"driver":   driver,
		"replicas": len(cm.replicas),
	}).Info("connection manager initialized")

	return cm, nil
}

// NewConnectionManagerFromDB wraps already-open connections.
func NewConnectionManagerFromDB(driver string, primary *sql.DB, logger *observability.Logger, replicas ...*sql.DB) *ConnectionManager {
	cm := &ConnectionManager{
		driver:     driver,
		primary:    primary,
		primaryBun: bun.NewDB(primary, dialectFor(driver)),
		logger:     logger,
	}
	for _, r := range replicas {
		cm.replicas = append(cm.replicas, r)
		cm.replicaBuns = append(cm.replicaBuns, bun.NewDB(r, dialectFor(driver)))
	}
	return cm
}

func configurePool(db *sql.DB, driver string, maxConns int, config ConnectionConfig) {
	if driver == DriverSQLite {
		// single writer
		db.SetMaxOpenConns(1)
		return
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
	}
	db.SetMaxIdleConns(config.MinConns)
	db.SetConnMaxLifetime(config.MaxLifetime)
	db.SetConnMaxIdleTime(config.MaxIdleTime)
}

// Driver returns the database/sql driver name
func (cm *ConnectionManager) Driver() string {
	return cm.driver
}

// Primary returns the primary database connection (for writes and fresh reads)
func (cm *ConnectionManager) Primary() *sql.DB {
	return cm.primary
}

// PrimaryBun returns the primary connection wrapped by bun
func (cm *ConnectionManager) PrimaryBun() *bun.DB {
	return cm.primaryBun
}

func (cm *ConnectionManager) next(n int) int {
	index := atomic.AddUint32(&cm.current, 1)
	return int(index % uint32(n))
}

// Replica returns a read replica using round-robin selection.
// Falls back to primary if no replicas are available.
func (cm *ConnectionManager) Replica() *sql.DB {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if len(cm.replicas) == 0 {
		return cm.primary
	}
	return cm.replicas[cm.next(len(cm.replicas))]
}

// ReplicaBun is Replica wrapped by bun
func (cm *ConnectionManager) ReplicaBun() *bun.DB {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	if len(cm.replicaBuns) == 0 {
		return cm.primaryBun
	}
	return cm.replicaBuns[cm.next(len(cm.replicaBuns))]
}

// AllReplicas returns all replica connections
func (cm *ConnectionManager) AllReplicas() []*sql.DB {
	cm.mu.RLock()
	defer cm.mu.RUnlock()

	replicas := make([]*sql.DB, len(cm.replicas))
	copy(replicas, cm.replicas)
	return replicas
}

// HealthCheck checks the primary and all replicas. Losing every replica is reported;
// losing some is tolerated since reads fall back to the survivors.
func (cm *ConnectionManager) HealthCheck(ctx context.Context) error {
	if err := cm.primary.PingContext(ctx); err != nil {
		return fmt.Errorf("primary unhealthy: %w", err)
	}

	replicas := cm.AllReplicas()
	var unhealthy []string
	for i, replica := range replicas {
		if err := replica.PingContext(ctx); err != nil {
			unhealthy = append(unhealthy, fmt.Sprintf("replica-%d", i))
		}
	}

	if len(unhealthy) > 0 && len(unhealthy) == len(replicas) {
		return fmt.Errorf("all replicas unhealthy: %s", strings.Join(unhealthy, ", "))
	}
	return nil
}

// ConnectionStats holds statistics for all database connections
type ConnectionStats struct {
	Primary  sql.DBStats
	Replicas []sql.DBStats
}

// Stats returns connection pool statistics for primary and replicas
func (cm *ConnectionManager) Stats() ConnectionStats {
	stats := ConnectionStats{Primary: cm.primary.Stats()}

	cm.mu.RLock()
	defer cm.mu.RUnlock()

	stats.Replicas = make([]sql.DBStats, len(cm.replicas))
	for i, replica := range cm.replicas {
		stats.Replicas[i] = replica.Stats()
	}
	return stats
}

// RemoveUnhealthyReplicas closes and drops replicas that fail a ping
func (cm *ConnectionManager) RemoveUnhealthyReplicas(ctx context.Context) int {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	healthy := make([]*sql.DB, 0, len(cm.replicas))
	healthyBuns := make([]*bun.DB, 0, len(cm.replicas))
	removed := 0
	for i, replica := range cm.replicas {
		if err := replica.PingContext(ctx); err != nil {
			replica.Close()
			removed++
			continue
		}
		healthy = append(healthy, replica)
		healthyBuns = append(healthyBuns, cm.replicaBuns[i])
	}

	cm.replicas = healthy
	cm.replicaBuns = healthyBuns
	return removed
}

// AddReplica opens and adds a replica connection at runtime
func (cm *ConnectionManager) AddReplica(replicaURL string) error {
	if d := DetectDriver(replicaURL); d != cm.driver {
		return fmt.Errorf("replica driver %s does not match primary driver %s", d, cm.driver)
	}
	replica, err := sql.Open(cm.driver, replicaURL)
	if err != nil {
		return fmt.Errorf("failed to open replica connection: %w", err)
	}

	maxConns := cm.config.MaxConns / 2
	if maxConns < 2 {
		maxConns = 2
	}
	configurePool(replica, cm.driver, maxConns, cm.config)

	timeout := cm.config.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := replica.PingContext(ctx); err != nil {
		replica.Close()
		return fmt.Errorf("failed to ping replica: %w", err)
	}

	cm.mu.Lock()
	cm.replicas = append(cm.replicas, replica)
	cm.replicaBuns = append(cm.replicaBuns, bun.NewDB(replica, dialectFor(cm.driver)))
	cm.mu.Unlock()
	return nil
}

// Close closes all database connections
func (cm *ConnectionManager) Close() error {
	var errs []error
	if err := cm.primary.Close(); err != nil {
		errs = append(errs, fmt.Errorf("primary close error: %w", err))
	}

	cm.mu.Lock()
	replicas := cm.replicas
	cm.replicas = nil
	cm.replicaBuns = nil
	cm.mu.Unlock()

	for i, replica := range replicas {
		if err := replica.Close(); err != nil {
			errs = append(errs, fmt.Errorf("replica-%d close error: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// StartHealthCheckRoutine periodically drops unhealthy replicas until ctx is done
func (cm *ConnectionManager) StartHealthCheckRoutine(ctx context.Context, interval time.Duration) {
	if interval == 0 {
		interval = 30 * time.Second
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		defer observability.RecoverPanic(cm.logger, "replica health check")

		for {
			select {
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				removed := cm.RemoveUnhealthyReplicas(checkCtx)
				cancel()

				if removed > 0 {
					cm.logger.WithField("removed", removed).Warn("removed unhealthy replicas")
				}
			case <-ctx.Done():
				return
			}
		}
	}()
}

// ParseReplicaURLs parses a comma-separated list of replica URLs
func ParseReplicaURLs(replicaURLsStr string) []string {
	if replicaURLsStr == "" {
		return nil
	}

	urls := strings.Split(replicaURLsStr, ",")
	result := make([]string, 0, len(urls))
	for _, url := range urls {
		if trimmed := strings.TrimSpace(url); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}
