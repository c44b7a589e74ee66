package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/platinummonkey/shopdesk/pkg/rbac"
)

// SeedRoles inserts the built-in roles and their default grants. Existing rows are
// left alone, so grants edited after the first run survive restarts.
func SeedRoles(ctx context.Context, db *sql.DB) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin seed transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, role := range rbac.BuiltInRoles() {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO roles (role_key, display_name) VALUES ($1, $2) ON CONFLICT (role_key) DO NOTHING`,
			string(role.Key), role.DisplayName,
		); err != nil {
			return fmt.Errorf("failed to seed role %s: %w", role.Key, err)
		}
		for _, perm := range role.Permissions {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO role_permissions (role_key, permission_key) VALUES ($1, $2) ON CONFLICT (role_key, permission_key) DO NOTHING`,
				string(role.Key), string(perm),
			); err != nil {
				return fmt.Errorf("failed to seed grant %s for %s: %w", perm, role.Key, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit role seed: %w", err)
	}
	return nil
}
