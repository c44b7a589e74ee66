package auth

import (
	"context"

	"github.com/platinummonkey/shopdesk/pkg/apperror"
	"github.com/platinummonkey/shopdesk/pkg/rbac"
)

// Directory is the read side of the user/role/permission store.
type Directory interface {
	// LoadProfile returns the user's profile, or (nil, nil) if there is none.
	LoadProfile(ctx context.Context, userID string) (*Profile, error)

	// LoadActiveRoles returns the active role assignments within orgID.
	LoadActiveRoles(ctx context.Context, userID, orgID string) ([]rbac.RoleKey, error)

	// LoadEffectivePermissions returns role grants plus per-user grants minus per-user revocations.
	LoadEffectivePermissions(ctx context.Context, userID, orgID string) ([]rbac.PermissionKey, error)
}

// ContextBuilder assembles an AuthContext for a verified principal.
type ContextBuilder struct {
	dir Directory
}

// NewContextBuilder creates a builder reading from dir
func NewContextBuilder(dir Directory) *ContextBuilder {
	return &ContextBuilder{dir: dir}
}

// Build runs the resolution gates in a fixed order; the first failure wins and no
// partial context is returned:
//
//  1. profile exists, is active, has an organization
//  2. at least one known active role in that organization
//  3. admin is derived from the role set
//  4. non-admins get their effective permission set; admins skip the query
func (b *ContextBuilder) Build(ctx context.Context, p Principal) (*AuthContext, error) {
	loadedProfile, err := b.dir.LoadProfile(ctx, p.ID)
	if err != nil {
		return nil, apperror.Database(err)
	}
	if loadedProfile == nil {
		return nil, ErrProfileNotFound
	}
	// the directory owns the record it returned
	profile := *loadedProfile
	if !profile.IsActive {
		return nil, ErrInactive
	}
	if profile.OrganizationID == "" {
		return nil, ErrNoOrganization
	}
	if profile.Email == "" {
		profile.Email = p.Email
	}

	loaded, err := b.dir.LoadActiveRoles(ctx, profile.UserID, profile.OrganizationID)
	if err != nil {
		return nil, apperror.Database(err)
	}
	roles := make([]rbac.RoleKey, 0, len(loaded))
	isAdmin := false
	for _, r := range loaded {
		if !r.Known() {
			continue
		}
		roles = append(roles, r)
		if r == rbac.RoleAdmin {
			isAdmin = true
		}
	}
	if len(roles) == 0 {
		return nil, ErrNoRoles
	}

	var permissions []rbac.PermissionKey
	if !isAdmin {
		loadedPerms, err := b.dir.LoadEffectivePermissions(ctx, profile.UserID, profile.OrganizationID)
		if err != nil {
			return nil, apperror.Database(err)
		}
		permissions = make([]rbac.PermissionKey, 0, len(loadedPerms))
		for _, key := range loadedPerms {
			if key.Known() {
				permissions = append(permissions, key)
			}
		}
	}

	return NewAuthContext(profile, roles, permissions)
}
