// Package tenant constrains queries to the caller's organization.
//
// Query builders opt in by implementing Scopable. Scope binds a query to the
// session's organization; ScopeWithOverride also accepts an organization override
// and falls back to Scope when none is given. The dashboard binds its query this way, and the bun adapter appends the
// organization_id predicate:
//
//	q, err := tenant.ScopeWithOverride[dashboard.Query](
//		dashboard.Query{From: from, To: to}, authCtx, r.URL.Query().Get("organization_id"))
//
//	sel := tenant.NewSelect(db.NewSelect().TableExpr("invoices AS i"), "i").
//		WithOrganizationScope(q.OrganizationID())
//
// An override organization is honored only for admins. Anyone else naming a
// different organization gets a FORBIDDEN error.
package tenant
