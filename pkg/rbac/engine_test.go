package rbac

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/shopdesk/pkg/apperror"
)

type subject struct {
	admin bool
	roles map[RoleKey]bool
	perms map[PermissionKey]bool
}

func (s subject) IsAdmin() bool                      { return s.admin }
func (s subject) HasRole(r RoleKey) bool             { return s.roles[r] }
func (s subject) HasPermission(k PermissionKey) bool { return s.perms[k] }

func newSubject(roles []RoleKey, perms ...PermissionKey) subject {
	s := subject{roles: map[RoleKey]bool{}, perms: map[PermissionKey]bool{}}
	for _, r := range roles {
		s.roles[r] = true
		if r == RoleAdmin {
			s.admin = true
		}
	}
	for _, p := range perms {
		s.perms[p] = true
	}
	return s
}

func TestAdminBypassesEveryPermission(t *testing.T) {
	admin := newSubject([]RoleKey{RoleAdmin})

	for _, key := range append(AllPermissions(), "made_up.thing") {
		assert.NoError(t, RequirePermission(admin, key), key)
		assert.True(t, Check(admin, key).Allowed, key)
	}
	assert.NoError(t, RequireAny(admin))
	assert.NoError(t, RequireAll(admin, "salaries.delete", "users.delete"))
}

func TestNonAdminDenyByDefault(t *testing.T) {
	s := newSubject([]RoleKey{RoleTechnician}, "work_orders.view")

	for _, key := range AllPermissions() {
		if key == "work_orders.view" {
			continue
		}
		err := RequirePermission(s, key)
		require.Error(t, err, key)

		appErr, ok := apperror.As(err)
		require.True(t, ok)
		assert.Equal(t, apperror.CodeForbidden, appErr.Code)
		assert.Equal(t, string(key), appErr.Details["permission"])
		assert.Contains(t, appErr.Message, string(key))
	}
}

func TestReceptionistInventoryScenario(t *testing.T) {
	s := newSubject([]RoleKey{RoleReceptionist}, "inventory.view")

	err := RequirePermission(s, "inventory.create")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inventory")
	assert.Contains(t, err.Error(), "create")
	assert.Equal(t, apperror.CodeForbidden, apperror.CodeOf(err))

	assert.NoError(t, RequirePermission(s, "inventory.view"))
}

func TestRequireAnyAndAll(t *testing.T) {
	s := newSubject([]RoleKey{RoleAccountant}, "expenses.view", "invoices.view")

	assert.NoError(t, RequireAny(s, "salaries.view", "expenses.view"))
	assert.Error(t, RequireAny(s, "salaries.view", "users.view"))
	assert.Error(t, RequireAny(s))

	assert.NoError(t, RequireAll(s, "expenses.view", "invoices.view"))
	assert.NoError(t, RequireAll(s))

	err := RequireAll(s, "expenses.view", "salaries.view", "users.view")
	appErr, ok := apperror.As(err)
	require.True(t, ok)
	assert.Equal(t, "salaries.view", appErr.Details["permission"])
}

func TestRequireAnyRole(t *testing.T) {
	cs := newSubject([]RoleKey{RoleCustomerService})
	admin := newSubject([]RoleKey{RoleAdmin})

	assert.NoError(t, RequireAnyRole(cs, RoleAdmin, RoleCustomerService))
	assert.NoError(t, RequireAnyRole(admin, RoleAdmin, RoleCustomerService))

	err := RequireAnyRole(admin, RoleAccountant)
	require.Error(t, err)
	assert.Equal(t, apperror.CodeForbidden, apperror.CodeOf(err))
	assert.Contains(t, err.Error(), "accountant")
}

func TestNilSubjectIsDenied(t *testing.T) {
	assert.Error(t, RequirePermission(nil, "customers.view"))
	assert.Error(t, RequireAny(nil, "customers.view"))
	assert.Error(t, RequireAll(nil, "customers.view"))
	assert.Error(t, RequireAnyRole(nil, RoleAdmin))
	assert.False(t, Check(nil, "customers.view").Allowed)
}

func TestSpanishMessages(t *testing.T) {
	e := NewEngine(nil, Spanish)
	s := newSubject([]RoleKey{RoleReceptionist})

	err := e.RequirePermission(s, "expenses.create")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No tienes permiso para crear gastos")
	assert.Contains(t, err.Error(), "expenses.create")
}

func TestPermissionKeyParsing(t *testing.T) {
	p, ok := PermissionKey("dashboard.view_financial_stats").Parse()
	require.True(t, ok)
	assert.Equal(t, ResourceDashboard, p.Resource)
	assert.Equal(t, ActionViewFinancialStats, p.Action)
	assert.Equal(t, PermissionKey("dashboard.view_financial_stats"), p.Key())

	_, ok = PermissionKey("nodot").Parse()
	assert.False(t, ok)
	_, ok = PermissionKey(".view").Parse()
	assert.False(t, ok)

	assert.True(t, PermissionKey("work_orders.assign").Known())
	assert.False(t, PermissionKey("customers.assign").Known())
	assert.False(t, PermissionKey("spaceships.view").Known())
}

func TestBuiltInRolesOnlyGrantKnownPermissions(t *testing.T) {
	for _, role := range BuiltInRoles() {
		assert.True(t, role.Key.Known(), role.Key)
		for _, key := range role.Permissions {
			assert.True(t, key.Known(), "%s grants unknown %s", role.Key, key)
		}
	}
}
