// Package storage defines the persistence port of shopdesk.
//
// Store composes the two read paths the service needs:
//
//   - auth.Directory: profiles, active role assignments and effective permissions
//     used by session resolution
//   - dashboard.Source: per-section aggregates for the dashboard
//
// The postgres subpackage implements Store on PostgreSQL (lib/pq for the directory,
// bun for dashboard queries) with embedded goose migrations. A SQLite DSN is accepted
// for local development and tests.
//
// Every dashboard query is built through tenant.Select, so it cannot run without an
// organization_id predicate.
package storage
