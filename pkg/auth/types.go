package auth

import (
	"encoding/json"
	"sort"

	"github.com/platinummonkey/shopdesk/pkg/apperror"
	"github.com/platinummonkey/shopdesk/pkg/rbac"
)

// Principal is a verified identity before organization and role resolution.
type Principal struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Profile is the directory record for a user: membership and active flag.
type Profile struct {
	UserID         string
	OrganizationID string
	Email          string
	FullName       string
	IsActive       bool
}

// Resolution failures. All of them map to UNAUTHORIZED.
var (
	ErrMissingCredential   = apperror.Unauthorized("missing authorization header")
	ErrMalformedCredential = apperror.Unauthorized("invalid authorization header format")
	ErrInvalidCredential   = apperror.Unauthorized("invalid or expired token")
	ErrProfileNotFound     = apperror.Unauthorized("profile not found")
	ErrInactive            = apperror.Unauthorized("inactive")
	ErrNoOrganization      = apperror.Unauthorized("no organization")
	ErrNoRoles             = apperror.Unauthorized("no roles")
)

// AuthContext is a fully resolved session: identity, organization, roles and
// effective permissions. It is immutable; a role or permission change produces
// a new context on the next resolution.
//
// A context can only be obtained from NewAuthContext, which guarantees a
// non-empty organization, at least one known role, and an active profile.
// Admin contexts may carry an empty permission set; every permission check
// passes for them regardless.
type AuthContext struct {
	userID         string
	organizationID string
	email          string
	fullName       string
	isAdmin        bool
	roles          map[rbac.RoleKey]struct{}
	permissions    map[rbac.PermissionKey]struct{}
}

var _ rbac.Subject = (*AuthContext)(nil)

// NewAuthContext validates and assembles a context. roles and permissions are copied.
// Unknown roles are dropped before the empty-role check.
func NewAuthContext(profile Profile, roles []rbac.RoleKey, permissions []rbac.PermissionKey) (*AuthContext, error) {
	if profile.UserID == "" {
		return nil, ErrProfileNotFound
	}
	if !profile.IsActive {
		return nil, ErrInactive
	}
	if profile.OrganizationID == "" {
		return nil, ErrNoOrganization
	}

	roleSet := make(map[rbac.RoleKey]struct{}, len(roles))
	for _, r := range roles {
		if r.Known() {
			roleSet[r] = struct{}{}
		}
	}
	if len(roleSet) == 0 {
		return nil, ErrNoRoles
	}

	permSet := make(map[rbac.PermissionKey]struct{}, len(permissions))
	for _, p := range permissions {
		permSet[p] = struct{}{}
	}

	_, isAdmin := roleSet[rbac.RoleAdmin]

	return &AuthContext{
		userID:         profile.UserID,
		organizationID: profile.OrganizationID,
		email:          profile.Email,
		fullName:       profile.FullName,
		isAdmin:        isAdmin,
		roles:          roleSet,
		permissions:    permSet,
	}, nil
}

func (c *AuthContext) UserID() string {
	if c == nil {
		return ""
	}
	return c.userID
}

func (c *AuthContext) OrganizationID() string {
	if c == nil {
		return ""
	}
	return c.organizationID
}

func (c *AuthContext) Email() string {
	if c == nil {
		return ""
	}
	return c.email
}

func (c *AuthContext) FullName() string {
	if c == nil {
		return ""
	}
	return c.fullName
}

// IsActive is always true for a constructed context.
func (c *AuthContext) IsActive() bool {
	return c != nil
}

func (c *AuthContext) IsAdmin() bool {
	return c != nil && c.isAdmin
}

func (c *AuthContext) HasRole(role rbac.RoleKey) bool {
	if c == nil {
		return false
	}
	_, ok := c.roles[role]
	return ok
}

// HasPermission reports raw membership in the permission set. It does not apply
// the admin bypass; use the rbac engine for authorization decisions.
func (c *AuthContext) HasPermission(key rbac.PermissionKey) bool {
	if c == nil {
		return false
	}
	_, ok := c.permissions[key]
	return ok
}

// Roles returns a sorted copy of the role set.
func (c *AuthContext) Roles() []rbac.RoleKey {
	if c == nil {
		return nil
	}
	out := make([]rbac.RoleKey, 0, len(c.roles))
	for r := range c.roles {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Permissions returns a sorted copy of the permission set.
func (c *AuthContext) Permissions() []rbac.PermissionKey {
	if c == nil {
		return nil
	}
	out := make([]rbac.PermissionKey, 0, len(c.permissions))
	for p := range c.permissions {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

type authContextJSON struct {
	UserID         string               `json:"user_id"`
	OrganizationID string               `json:"organization_id"`
	Email          string               `json:"email"`
	FullName       string               `json:"full_name"`
	IsActive       bool                 `json:"is_active"`
	IsAdmin        bool                 `json:"is_admin"`
	Roles          []rbac.RoleKey       `json:"roles"`
	Permissions    []rbac.PermissionKey `json:"permissions"`
}

// MarshalJSON renders the caller's own session. It is only ever sent back to its owner.
func (c *AuthContext) MarshalJSON() ([]byte, error) {
	return json.Marshal(authContextJSON{
		UserID:         c.UserID(),
		OrganizationID: c.OrganizationID(),
		Email:          c.Email(),
		FullName:       c.FullName(),
		IsActive:       c.IsActive(),
		IsAdmin:        c.IsAdmin(),
		Roles:          c.Roles(),
		Permissions:    c.Permissions(),
	})
}
