package middleware

import (
	"context"
	"net/http"

	"github.com/platinummonkey/shopdesk/pkg/apperror"
	"github.com/platinummonkey/shopdesk/pkg/auth"
	"github.com/platinummonkey/shopdesk/pkg/contextkeys"
	"github.com/platinummonkey/shopdesk/pkg/httputil"
	"github.com/platinummonkey/shopdesk/pkg/rbac"
)

// Authenticator resolves an Authorization header into a session.
// *session.Authenticator implements it.
type Authenticator interface {
	Authenticate(ctx context.Context, header string) (*auth.AuthContext, string, error)
}

// AuthMiddleware provides authentication middleware
type AuthMiddleware struct {
	authenticator Authenticator
	optional      bool // If true, allow requests without credentials
}

// NewAuthMiddleware creates a new authentication middleware
func NewAuthMiddleware(authenticator Authenticator, optional bool) *AuthMiddleware {
	return &AuthMiddleware{
		authenticator: authenticator,
		optional:      optional,
	}
}

// Handler wraps an HTTP handler with authentication. A resolved session is stored
// in the request context along with its credential fingerprint, user and organization.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" && m.optional {
			next.ServeHTTP(w, r)
			return
		}

		authCtx, fingerprint, err := m.authenticator.Authenticate(r.Context(), header)
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}

		ctx := contextkeys.WithAuth(r.Context(), authCtx)
		ctx = contextkeys.WithCredential(ctx, fingerprint)
		ctx = contextkeys.WithUserID(ctx, authCtx.UserID())
		ctx = contextkeys.WithOrgID(ctx, authCtx.OrganizationID())
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// GetAuthContext extracts auth context from request
func GetAuthContext(r *http.Request) *auth.AuthContext {
	return FromContext(r.Context())
}

// FromContext returns the session stored by AuthMiddleware, or nil.
func FromContext(ctx context.Context) *auth.AuthContext {
	authCtx, ok := ctx.Value(contextkeys.AuthKey).(*auth.AuthContext)
	if !ok {
		return nil
	}
	return authCtx
}

// Subject adapts the request session for rbac.PermissionMiddleware.
func Subject(r *http.Request) (rbac.Subject, bool) {
	authCtx := GetAuthContext(r)
	if authCtx == nil {
		return nil, false
	}
	return authCtx, true
}

var _ rbac.SubjectFunc = Subject

// RequireAuth rejects requests that reached it without a resolved session.
// Routes behind an optional AuthMiddleware use it to opt back in.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if GetAuthContext(r) == nil {
			httputil.WriteAppError(w, r, apperror.Unauthorized("authentication required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
