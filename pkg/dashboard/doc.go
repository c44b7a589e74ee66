// Package dashboard composes the home dashboard from independent, permission-gated
// sections.
//
// Each section maps to one permission:
//
//	stats        dashboard.view_stats
//	financial    dashboard.view_financial_stats
//	work_orders  dashboard.view_work_orders
//	expenses     dashboard.view_expenses
//	inventory    dashboard.view_inventory
//	customers    dashboard.view_customers
//	payroll      dashboard.view_salaries
//	technicians  dashboard.view_technicians
//
// The response always carries the full permissions map. Only permitted sections are
// fetched, all at once, each under its own timeout. A section that errors, panics or
// times out is served as its zero-value fallback (empty lists, zero totals) and logged;
// it never fails the request or cancels its siblings.
//
// Build resolves the organization itself: a non-admin always reads its own
// organization, and naming another one is FORBIDDEN before anything is fetched.
// The resulting Query carries the organization only through tenant scoping.
//
// Currency amounts are Money values rounded to two decimals only at serialization.
package dashboard
