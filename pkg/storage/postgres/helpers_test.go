package postgres

import (
	"context"
	"database/sql"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/shopdesk/pkg/observability"
)

func quietLogger() *observability.Logger {
	return observability.NewLogger(observability.ErrorLevel, io.Discard)
}

// newSQLiteStorage returns a migrated, seeded in-memory database private to t.
func newSQLiteStorage(t *testing.T) (*Storage, *sql.DB) {
	t.Helper()

	db, err := sql.Open(DriverSQLite, "file:"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	require.NoError(t, Migrate(ctx, db, DriverSQLite))
	require.NoError(t, SeedRoles(ctx, db))

	conns := NewConnectionManagerFromDB(DriverSQLite, db, quietLogger())
	return NewFromConnections(conns, quietLogger()), db
}

func exec(t *testing.T, db *sql.DB, query string, args ...interface{}) {
	t.Helper()
	_, err := db.Exec(query, args...)
	require.NoError(t, err, query)
}

func insertOrg(t *testing.T, db *sql.DB, id string) {
	exec(t, db, `INSERT INTO organizations (id, name) VALUES ($1, $2)`, id, "Shop "+id)
}

func insertProfile(t *testing.T, db *sql.DB, userID, orgID string, active bool) {
	var org interface{}
	if orgID != "" {
		org = orgID
	}
	exec(t, db, `INSERT INTO profiles (user_id, organization_id, email, full_name, is_active) VALUES ($1, $2, $3, $4, $5)`,
		userID, org, userID+"@shop.test", "User "+userID, active)
}

func assignRole(t *testing.T, db *sql.DB, userID, orgID, role string, active bool) {
	exec(t, db, `INSERT INTO user_roles (user_id, organization_id, role_key, is_active) VALUES ($1, $2, $3, $4)`,
		userID, orgID, role, active)
}

func overridePermission(t *testing.T, db *sql.DB, userID, orgID, perm string, granted bool) {
	exec(t, db, `INSERT INTO user_permission_overrides (user_id, organization_id, permission_key, granted) VALUES ($1, $2, $3, $4)`,
		userID, orgID, perm, granted)
}
