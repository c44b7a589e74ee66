// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// Keeping them in one leaf package lets middleware, handlers and the logger share
// values without importing each other.
//
// USAGE PATTERN:
//
//	import "github.com/platinummonkey/shopdesk/pkg/contextkeys"
//	ctx = contextkeys.WithAuth(ctx, authCtx)
//	authCtx, _ := ctx.Value(contextkeys.AuthKey).(*auth.AuthContext)
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// AuthKey contains *auth.AuthContext
	// Set by: middleware.AuthMiddleware (pkg/middleware/auth.go)
	// Required by: every /api route, rbac.PermissionMiddleware
	// Type: *auth.AuthContext
	AuthKey Key = "auth_context"

	// CredentialKey contains the credential fingerprint of the current request
	// Set by: middleware.AuthMiddleware
	// Used by: logout handler to invalidate exactly one cache entry
	// Type: string
	CredentialKey Key = "credential_fingerprint"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: Logger, error envelope logging
	// Type: string
	RequestIDKey Key = "request_id"

	// UserIDKey contains user ID string
	// Set by: Auth middleware after the session is resolved
	// Used by: Logger
	// Type: string
	UserIDKey Key = "user_id"

	// OrgIDKey contains the caller's organization ID string
	// Set by: Auth middleware after the session is resolved
	// Used by: Logger
	// Type: string
	OrgIDKey Key = "organization_id"

	// ScopeKey contains the organization ID a request operates on
	// Set by: middleware.OrgScopeMiddleware
	// Used by: dashboard handler
	// Type: string
	ScopeKey Key = "scope_organization_id"

	// LoggerKey contains *observability.Logger
	// Set by: cmd/shopdesk base context
	// Used by: Handlers that need structured logging with request context
	// Type: *observability.Logger
	LoggerKey Key = "logger"
)

// WithAuth adds authentication context to the context
func WithAuth(ctx context.Context, authCtx interface{}) context.Context {
	return context.WithValue(ctx, AuthKey, authCtx)
}

// WithCredential adds the credential fingerprint to the context
func WithCredential(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, CredentialKey, fingerprint)
}

// GetCredential retrieves the credential fingerprint from context
func GetCredential(ctx context.Context) string {
	if v, ok := ctx.Value(CredentialKey).(string); ok {
		return v
	}
	return ""
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(RequestIDKey).(string); ok {
		return v
	}
	return ""
}

// WithUserID adds user ID to the context
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID retrieves user ID from context
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(UserIDKey).(string); ok {
		return v
	}
	return ""
}

// WithOrgID adds organization ID to the context
func WithOrgID(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, OrgIDKey, orgID)
}

// GetOrgID retrieves organization ID from context
func GetOrgID(ctx context.Context) string {
	if v, ok := ctx.Value(OrgIDKey).(string); ok {
		return v
	}
	return ""
}

// WithScope adds the effective organization ID to the context
func WithScope(ctx context.Context, orgID string) context.Context {
	return context.WithValue(ctx, ScopeKey, orgID)
}

// GetScope retrieves the effective organization ID from context
func GetScope(ctx context.Context) string {
	if v, ok := ctx.Value(ScopeKey).(string); ok {
		return v
	}
	return ""
}

// WithLogger adds a logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}
