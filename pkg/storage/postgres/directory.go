package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/platinummonkey/shopdesk/pkg/auth"
	"github.com/platinummonkey/shopdesk/pkg/rbac"
)

const (
	selectProfile = `
SELECT user_id, COALESCE(organization_id, ''), email, full_name, is_active
FROM profiles
WHERE user_id = $1`

	selectActiveRoles = `
SELECT role_key
FROM user_roles
WHERE user_id = $1 AND organization_id = $2 AND is_active = TRUE
ORDER BY role_key`

	// role grants, plus per-user grants, minus per-user revocations
	selectEffectivePermissions = `
SELECT rp.permission_key
FROM user_roles ur
JOIN role_permissions rp ON rp.role_key = ur.role_key
WHERE ur.user_id = $1 AND ur.organization_id = $2 AND ur.is_active = TRUE
UNION
SELECT o.permission_key
FROM user_permission_overrides o
WHERE o.user_id = $1 AND o.organization_id = $2 AND o.granted = TRUE
EXCEPT
SELECT o.permission_key
FROM user_permission_overrides o
WHERE o.user_id = $1 AND o.organization_id = $2 AND o.granted = FALSE`
)

// Directory implements auth.Directory with plain SQL. It always reads from the
// primary so permission changes are visible to the next resolution.
type Directory struct {
	db *sql.DB
}

// NewDirectory creates a directory over db
func NewDirectory(db *sql.DB) *Directory {
	return &Directory{db: db}
}

var _ auth.Directory = (*Directory)(nil)

func (d *Directory) LoadProfile(ctx context.Context, userID string) (*auth.Profile, error) {
	var p auth.Profile
	err := d.db.QueryRowContext(ctx, selectProfile, userID).
		Scan(&p.UserID, &p.OrganizationID, &p.Email, &p.FullName, &p.IsActive)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load profile: %w", err)
	}
	return &p, nil
}

func (d *Directory) LoadActiveRoles(ctx context.Context, userID, orgID string) ([]rbac.RoleKey, error) {
	keys, err := d.queryStrings(ctx, selectActiveRoles, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load roles: %w", err)
	}
	roles := make([]rbac.RoleKey, len(keys))
	for i, k := range keys {
		roles[i] = rbac.RoleKey(k)
	}
	return roles, nil
}

func (d *Directory) LoadEffectivePermissions(ctx context.Context, userID, orgID string) ([]rbac.PermissionKey, error) {
	keys, err := d.queryStrings(ctx, selectEffectivePermissions, userID, orgID)
	if err != nil {
		return nil, fmt.Errorf("failed to load permissions: %w", err)
	}
	perms := make([]rbac.PermissionKey, len(keys))
	for i, k := range keys {
		perms[i] = rbac.PermissionKey(k)
	}
	return perms, nil
}

func (d *Directory) queryStrings(ctx context.Context, query string, args ...interface{}) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
