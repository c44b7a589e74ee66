// Package middleware turns a request's Authorization header into a session and
// resolves the organization the request operates on.
//
// # Middleware Components
//
// AuthMiddleware: bearer credential authentication
//
//	authMW := middleware.NewAuthMiddleware(authenticator, false)
//	router.Use(authMW.Handler)
//	// Resolves the session through the session cache and stores it with
//	// contextkeys.WithAuth, together with the credential fingerprint,
//	// user ID and organization ID used by the logger.
//
// OrgScopeMiddleware: tenant override
//
//	router.Handle("/dashboard", middleware.OrgScopeMiddleware(handler))
//	// ?organization_id= is honored for admins only; anyone else naming a
//	// different organization gets FORBIDDEN.
//
// Subject adapts the stored session for rbac.NewPermissionMiddleware.
//
// # Related Packages
//
//   - pkg/session: cached resolution
//   - pkg/rbac: permission gates
//   - pkg/tenant: organization override rules
package middleware
