package postgres

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/shopdesk/pkg/apperror"
	"github.com/platinummonkey/shopdesk/pkg/auth"
	"github.com/platinummonkey/shopdesk/pkg/rbac"
)

func TestDirectoryLoadProfile(t *testing.T) {
	s, db := newSQLiteStorage(t)
	ctx := context.Background()
	insertOrg(t, db, "org-a")
	insertProfile(t, db, "alice", "org-a", true)
	insertProfile(t, db, "drifter", "", true)

	p, err := s.LoadProfile(ctx, "alice")
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, auth.Profile{
		UserID:         "alice",
		OrganizationID: "org-a",
		Email:          "alice@shop.test",
		FullName:       "User alice",
		IsActive:       true,
	}, *p)

	p, err = s.LoadProfile(ctx, "drifter")
	require.NoError(t, err)
	assert.Empty(t, p.OrganizationID)

	p, err = s.LoadProfile(ctx, "nobody")
	assert.NoError(t, err)
	assert.Nil(t, p)
}

func TestDirectoryActiveRolesScopedToOrganization(t *testing.T) {
	s, db := newSQLiteStorage(t)
	ctx := context.Background()
	insertOrg(t, db, "org-a")
	insertOrg(t, db, "org-b")
	insertProfile(t, db, "bob", "org-a", true)
	assignRole(t, db, "bob", "org-a", "technician", true)
	assignRole(t, db, "bob", "org-a", "accountant", false)
	assignRole(t, db, "bob", "org-b", "manager", true)

	roles, err := s.LoadActiveRoles(ctx, "bob", "org-a")
	require.NoError(t, err)
	assert.Equal(t, []rbac.RoleKey{rbac.RoleTechnician}, roles)
}

func TestDirectoryEffectivePermissions(t *testing.T) {
	s, db := newSQLiteStorage(t)
	ctx := context.Background()
	insertOrg(t, db, "org-a")
	insertProfile(t, db, "rita", "org-a", true)
	assignRole(t, db, "rita", "org-a", "receptionist", true)
	overridePermission(t, db, "rita", "org-a", "invoices.view", true)
	overridePermission(t, db, "rita", "org-a", "customers.update", false)

	perms, err := s.LoadEffectivePermissions(ctx, "rita", "org-a")
	require.NoError(t, err)

	assert.Contains(t, perms, rbac.PermissionKey("inventory.view"))
	assert.Contains(t, perms, rbac.PermissionKey("invoices.view"), "per-user grant is added")
	assert.NotContains(t, perms, rbac.PermissionKey("customers.update"), "per-user revocation wins")
	assert.NotContains(t, perms, rbac.PermissionKey("inventory.create"))
}

func TestDirectoryRevocationBeatsGrantFromAnotherRole(t *testing.T) {
	s, db := newSQLiteStorage(t)
	ctx := context.Background()
	insertOrg(t, db, "org-a")
	insertProfile(t, db, "mia", "org-a", true)
	assignRole(t, db, "mia", "org-a", "manager", true)
	assignRole(t, db, "mia", "org-a", "receptionist", true)
	overridePermission(t, db, "mia", "org-a", "customers.view", false)

	perms, err := s.LoadEffectivePermissions(ctx, "mia", "org-a")
	require.NoError(t, err)
	assert.NotContains(t, perms, rbac.PermissionKey("customers.view"))
	assert.Contains(t, perms, rbac.PermissionKey("reports.view"))
}

// The receptionist scenario end to end: inventory.view passes, inventory.create is
// denied with the permission named in the message.
func TestBuilderOverDirectory(t *testing.T) {
	s, db := newSQLiteStorage(t)
	ctx := context.Background()
	insertOrg(t, db, "org-a")
	insertProfile(t, db, "rita", "org-a", true)
	insertProfile(t, db, "root", "org-a", true)
	insertProfile(t, db, "ghost", "org-a", false)
	insertProfile(t, db, "loner", "org-a", true)
	assignRole(t, db, "rita", "org-a", "receptionist", true)
	assignRole(t, db, "root", "org-a", "admin", true)
	assignRole(t, db, "ghost", "org-a", "manager", true)

	builder := auth.NewContextBuilder(s)

	rita, err := builder.Build(ctx, auth.Principal{ID: "rita"})
	require.NoError(t, err)
	assert.NoError(t, rbac.RequirePermission(rita, "inventory.view"))
	err = rbac.RequirePermission(rita, "inventory.create")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "inventory.create")

	root, err := builder.Build(ctx, auth.Principal{ID: "root"})
	require.NoError(t, err)
	assert.True(t, root.IsAdmin())
	assert.Empty(t, root.Permissions())
	assert.NoError(t, rbac.RequirePermission(root, "salaries.delete"))

	_, err = builder.Build(ctx, auth.Principal{ID: "ghost"})
	assert.ErrorIs(t, err, auth.ErrInactive)

	_, err = builder.Build(ctx, auth.Principal{ID: "loner"})
	assert.ErrorIs(t, err, auth.ErrNoRoles)

	_, err = builder.Build(ctx, auth.Principal{ID: "stranger"})
	assert.ErrorIs(t, err, auth.ErrProfileNotFound)
}

func TestDirectoryQueryFailures(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	d := NewDirectory(db)
	ctx := context.Background()

	mock.ExpectQuery(regexp.QuoteMeta("FROM profiles")).
		WithArgs("alice").
		WillReturnError(errors.New("connection refused"))
	_, err = d.LoadProfile(ctx, "alice")
	assert.ErrorContains(t, err, "failed to load profile")

	mock.ExpectQuery(regexp.QuoteMeta("FROM user_roles")).
		WithArgs("alice", "org-a").
		WillReturnRows(sqlmock.NewRows([]string{"role_key"}).AddRow("manager").RowError(0, errors.New("broken row")))
	_, err = d.LoadActiveRoles(ctx, "alice", "org-a")
	assert.ErrorContains(t, err, "failed to load roles")

	mock.ExpectQuery(regexp.QuoteMeta("EXCEPT")).
		WithArgs("alice", "org-a").
		WillReturnError(errors.New("timeout"))
	_, err = d.LoadEffectivePermissions(ctx, "alice", "org-a")
	assert.ErrorContains(t, err, "failed to load permissions")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuilderMapsDirectoryFailureToDatabaseError(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectQuery("FROM profiles").WillReturnError(errors.New("connection refused"))

	_, err = auth.NewContextBuilder(NewDirectory(db)).Build(context.Background(), auth.Principal{ID: "alice"})
	require.Error(t, err)
	assert.Equal(t, apperror.CodeDatabase, apperror.CodeOf(err))
	assert.NotContains(t, apperror.From(err).Message, "connection refused")
}
