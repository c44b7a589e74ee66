package postgres

import (
	"context"
	"fmt"

	"github.com/platinummonkey/shopdesk/pkg/dashboard"
	"github.com/platinummonkey/shopdesk/pkg/observability"
	"github.com/platinummonkey/shopdesk/pkg/storage"
)

// Storage implements storage.Store on a primary database with optional read
// replicas. The directory reads from the primary; dashboard queries use replicas.
type Storage struct {
	*Directory
	*DashboardStore

	conns  *ConnectionManager
	logger *observability.Logger
}

var (
	_ storage.Store    = (*Storage)(nil)
	_ dashboard.Source = (*Storage)(nil)
)

// New connects, then applies migrations and seeds built-in roles when configured.
func New(ctx context.Context, config storage.Config, logger *observability.Logger) (*Storage, error) {
	conns, err := NewConnectionManager(ConnectionConfig{
		PrimaryURL:  config.DatabaseURL,
		ReplicaURLs: config.ReplicaURLs,
		MaxConns:    config.MaxConns,
		MinConns:    config.MinConns,
		Timeout:     config.Timeout,
		MaxLifetime: config.MaxLifetime,
		MaxIdleTime: config.MaxIdleTime,
	}, logger)
	if err != nil {
		return nil, err
	}

	s := NewFromConnections(conns, logger)

	if config.AutoMigrate {
		if err := Migrate(ctx, conns.Primary(), conns.Driver()); err != nil {
			conns.Close()
			return nil, err
		}
		logger.Info("database migrations applied")
	}
	if config.SeedRoles {
		if err := SeedRoles(ctx, conns.Primary()); err != nil {
			conns.Close()
			return nil, err
		}
	}
	return s, nil
}

// NewFromConnections builds a Storage over an existing connection manager.
func NewFromConnections(conns *ConnectionManager, logger *observability.Logger) *Storage {
	return &Storage{
		Directory:      NewDirectory(conns.Primary()),
		DashboardStore: NewDashboardStore(conns.ReplicaBun),
		conns:          conns,
		logger:         logger,
	}
}

// Connections returns the underlying connection manager.
func (s *Storage) Connections() *ConnectionManager {
	return s.conns
}

func (s *Storage) HealthCheck(ctx context.Context) error {
	if err := s.conns.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database unhealthy: %w", err)
	}
	return nil
}

// Close closes all connections
func (s *Storage) Close() error {
	return s.conns.Close()
}
