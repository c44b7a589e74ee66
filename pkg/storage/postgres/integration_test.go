//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/platinummonkey/shopdesk/pkg/auth"
	"github.com/platinummonkey/shopdesk/pkg/rbac"
	"github.com/platinummonkey/shopdesk/pkg/storage"
)

// setupPostgres starts a PostgreSQL container and returns a migrated, seeded Storage.
func setupPostgres(t *testing.T) (*Storage, *sql.DB) {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("shopdesk_test"),
		tcpostgres.WithUsername("shopdesk"),
		tcpostgres.WithPassword("shopdesk_test_password"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Skipf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: Failed to terminate container: %v", err)
		}
	})

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	cfg := storage.DefaultConfig()
	cfg.DatabaseURL = connStr
	cfg.AutoMigrate = true
	cfg.SeedRoles = true

	s, err := New(ctx, cfg, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s, s.Connections().Primary()
}

func TestPostgresStorage(t *testing.T) {
	s, db := setupPostgres(t)
	ctx := context.Background()

	require.NoError(t, s.HealthCheck(ctx))

	version, err := SchemaVersion(ctx, db, DriverPostgres)
	require.NoError(t, err)
	assert.Equal(t, int64(2), version)

	seedShop(t, db, "org-a", false)
	seedShop(t, db, "org-b", true)

	t.Run("directory", func(t *testing.T) {
		insertProfile(t, db, "rita", "org-a", true)
		assignRole(t, db, "rita", "org-a", "receptionist", true)
		overridePermission(t, db, "rita", "org-a", "customers.update", false)

		ac, err := auth.NewContextBuilder(s).Build(ctx, auth.Principal{ID: "rita"})
		require.NoError(t, err)
		assert.Equal(t, "org-a", ac.OrganizationID())
		assert.NoError(t, rbac.RequirePermission(ac, "inventory.view"))
		assert.Error(t, rbac.RequirePermission(ac, "customers.update"))
	})

	t.Run("dashboard sections stay inside the organization", func(t *testing.T) {
		stats, err := s.Stats(ctx, marchQuery("org-a"))
		require.NoError(t, err)
		assert.Equal(t, 3, stats.TotalCustomers)
		assert.Equal(t, 1, stats.LowStockItems)

		fin, err := s.Financial(ctx, marchQuery("org-a"))
		require.NoError(t, err)
		assert.InDelta(t, 150.006, float64(fin.Revenue), 1e-6)
		assert.InDelta(t, 60.007, float64(fin.Expenses), 1e-6)

		other, err := s.Stats(ctx, marchQuery("org-b"))
		require.NoError(t, err)
		assert.Equal(t, 4, other.TotalCustomers)
		assert.Equal(t, 2, other.LowStockItems)
	})
}
