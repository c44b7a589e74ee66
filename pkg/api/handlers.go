package api

import (
	"net/http"
	"strings"

	"github.com/platinummonkey/shopdesk/pkg/apperror"
	"github.com/platinummonkey/shopdesk/pkg/contextkeys"
	"github.com/platinummonkey/shopdesk/pkg/dashboard"
	"github.com/platinummonkey/shopdesk/pkg/httputil"
	"github.com/platinummonkey/shopdesk/pkg/middleware"
	"github.com/platinummonkey/shopdesk/pkg/observability"
	"github.com/platinummonkey/shopdesk/pkg/rbac"
)

// getSession handles GET /api/v1/session
func (s *Server) getSession(w http.ResponseWriter, r *http.Request) {
	httputil.WriteSuccess(w, middleware.GetAuthContext(r))
}

// logout handles POST /api/v1/session/logout
func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	fingerprint := contextkeys.GetCredential(r.Context())
	if err := s.invalidator.InvalidateCredential(r.Context(), fingerprint); err != nil {
		httputil.WriteAppError(w, r, apperror.Internal(err))
		return
	}

	observability.FromContext(r.Context()).Info("session logged out")
	httputil.WriteSuccess(w, map[string]bool{"logged_out": true})
}

// checkPermission handles GET /api/v1/permissions/check?key=<permission>
func (s *Server) checkPermission(w http.ResponseWriter, r *http.Request) {
	key := rbac.PermissionKey(httputil.ParseQueryString(r, "key", ""))
	if key == "" {
		httputil.WriteBadRequest(w, r, "key is required")
		return
	}
	if !key.Known() {
		httputil.WriteAppError(w, r, apperror.Validation("unknown permission key").
			WithDetails(map[string]interface{}{"permission": string(key)}))
		return
	}

	subject, _ := middleware.Subject(r)
	decision := s.permissions.Engine(r).Check(subject, key)

	httputil.WriteSuccess(w, struct {
		Permission rbac.PermissionKey `json:"permission"`
		rbac.Decision
	}{Permission: key, Decision: decision})
}

// getDashboard handles GET /api/v1/dashboard
func (s *Server) getDashboard(w http.ResponseWriter, r *http.Request) {
	resp, err := s.dashboard.Build(r.Context(), middleware.GetAuthContext(r), middleware.ScopedOrganization(r))
	if err != nil {
		httputil.WriteAppError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}

// dashboardSection is one entry of GET /api/v1/dashboard/sections.
type dashboardSection struct {
	dashboard.Definition
	Enabled bool `json:"enabled"`
}

// listDashboardSections handles GET /api/v1/dashboard/sections
func (s *Server) listDashboardSections(w http.ResponseWriter, r *http.Request) {
	granted := dashboard.Permissions(middleware.GetAuthContext(r))

	defs := dashboard.Definitions()
	out := make([]dashboardSection, len(defs))
	for i, def := range defs {
		out[i] = dashboardSection{Definition: def, Enabled: granted[def.Name]}
	}
	httputil.WriteSuccess(w, out)
}

// invalidateSessions handles POST /api/v1/admin/sessions/invalidate
func (s *Server) invalidateSessions(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID string `json:"user_id"`
	}
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		httputil.WriteBadRequest(w, r, "user_id is required")
		return
	}

	if err := s.invalidator.InvalidateUser(r.Context(), userID); err != nil {
		httputil.WriteAppError(w, r, apperror.Internal(err))
		return
	}

	observability.FromContext(r.Context()).WithField("target_user_id", userID).Info("sessions invalidated")
	httputil.WriteSuccess(w, map[string]string{"user_id": userID})
}
