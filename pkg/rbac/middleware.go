package rbac

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/platinummonkey/shopdesk/pkg/apperror"
	"github.com/platinummonkey/shopdesk/pkg/httputil"
)

// SubjectFunc extracts the authenticated subject from a request.
// ok is false when the request carries no resolved session.
type SubjectFunc func(r *http.Request) (s Subject, ok bool)

// PermissionMiddleware gates handlers on roles and permissions of the request's session.
type PermissionMiddleware struct {
	subject SubjectFunc
	engine  Engine
	denials *prometheus.CounterVec
}

// NewPermissionMiddleware creates a new permission middleware. denials may be nil.
func NewPermissionMiddleware(subject SubjectFunc, catalog *Catalog, denials *prometheus.CounterVec) *PermissionMiddleware {
	return &PermissionMiddleware{
		subject: subject,
		engine:  NewEngine(catalog, English),
		denials: denials,
	}
}

// Engine returns the engine localized for r.
func (pm *PermissionMiddleware) Engine(r *http.Request) Engine {
	return pm.engine.In(LanguageFromRequest(r))
}

// RequirePermission creates middleware that requires a specific permission
func (pm *PermissionMiddleware) RequirePermission(key PermissionKey) func(http.Handler) http.Handler {
	return pm.gate(func(e Engine, s Subject) error {
		return e.RequirePermission(s, key)
	})
}

// RequireAnyPermission creates middleware that requires any of the specified permissions
func (pm *PermissionMiddleware) RequireAnyPermission(keys ...PermissionKey) func(http.Handler) http.Handler {
	return pm.gate(func(e Engine, s Subject) error {
		return e.RequireAny(s, keys...)
	})
}

// RequireAllPermissions creates middleware that requires all of the specified permissions
func (pm *PermissionMiddleware) RequireAllPermissions(keys ...PermissionKey) func(http.Handler) http.Handler {
	return pm.gate(func(e Engine, s Subject) error {
		return e.RequireAll(s, keys...)
	})
}

// RequireAnyRole creates middleware that requires one of the given roles
func (pm *PermissionMiddleware) RequireAnyRole(roles ...RoleKey) func(http.Handler) http.Handler {
	return pm.gate(func(e Engine, s Subject) error {
		return e.RequireAnyRole(s, roles...)
	})
}

func (pm *PermissionMiddleware) gate(check func(Engine, Subject) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			s, ok := pm.subject(r)
			if !ok {
				httputil.WriteAppError(w, r, apperror.Unauthorized("authentication required"))
				return
			}

			if err := check(pm.Engine(r), s); err != nil {
				pm.recordDenial(err)
				httputil.WriteAppError(w, r, err)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (pm *PermissionMiddleware) recordDenial(err error) {
	if pm.denials == nil {
		return
	}
	label := "role"
	if appErr, ok := apperror.As(err); ok {
		if key, ok := appErr.Details["permission"].(string); ok {
			label = key
		}
	}
	pm.denials.WithLabelValues(label).Inc()
}
