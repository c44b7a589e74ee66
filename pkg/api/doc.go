// Package api provides the HTTP surface of shopdesk.
//
// # Routes
//
// Every route under /api/v1 requires a bearer credential:
//
//	GET  /api/v1/session                     caller's resolved session
//	POST /api/v1/session/logout              drop the caller's cached session
//	GET  /api/v1/permissions/check?key=...   non-failing permission decision
//	GET  /api/v1/dashboard[?organization_id] dashboard (dashboard.view; override is admin-only)
//	GET  /api/v1/dashboard/sections          section catalog with the caller's access (dashboard.view)
//	POST /api/v1/admin/sessions/invalidate   drop a user's sessions on every replica (admin)
//
// Operational routes are unauthenticated:
//
//	GET /health, /health/live, /health/ready
//	GET /metrics
//
// All JSON responses use the httputil envelope. Unknown routes and methods
// answer NOT_FOUND and METHOD_NOT_ALLOWED envelopes.
//
// # Usage
//
//	server := api.NewServer(api.Options{
//	    Authenticator: authenticator,
//	    Invalidator:   bus,
//	    Dashboard:     aggregator,
//	    Metrics:       metrics,
//	    Registry:      registry,
//	    Logger:        logger,
//	})
//	http.ListenAndServe(":8080", server.Handler())
package api
