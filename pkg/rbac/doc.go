// Package rbac evaluates role and permission gates against a resolved session.
//
// # Overview
//
// Permissions are "<resource>.<action>" keys drawn from a closed set:
//
//	customers, work_orders, invoices, inventory, expenses, salaries,
//	technicians, reports, settings, users, dashboard
//
// crossed with view, create, update, delete, export and a few resource-specific
// sub-actions such as work_orders.assign or dashboard.view_financial_stats.
//
// Roles are a closed set as well: admin, manager, receptionist, technician,
// accountant, customer_service. Role grants live in the database; BuiltInRoles
// holds the defaults used to seed it.
//
// # Checks
//
// All checks are pure functions of a Subject:
//
//	rbac.RequirePermission(ctx, "inventory.create")
//	rbac.RequireAny(ctx, "reports.view", "reports.export")
//	rbac.RequireAll(ctx, "invoices.view", "invoices.send")
//	rbac.RequireAnyRole(ctx, rbac.RoleAdmin, rbac.RoleCustomerService)
//
// Admins pass every permission check even with an empty permission set. A denial is a
// FORBIDDEN *apperror.Error whose message names the missing permission, e.g.
//
//	You do not have permission to create inventory items (inventory.create)
//
// # Messages
//
// Display text comes from catalog.yaml, embedded and parsed once at startup. English
// is the default; Spanish is selected from Accept-Language by the HTTP middleware.
// Keys without an entry fall back to the raw key.
//
// # HTTP Middleware
//
//	pm := rbac.NewPermissionMiddleware(middleware.SubjectFromRequest, nil, metrics.AuthzDenials)
//	router.Handle("/api/v1/expenses", pm.RequirePermission("expenses.view")(handler))
package rbac
