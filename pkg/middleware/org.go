package middleware

import (
	"net/http"

	"github.com/platinummonkey/shopdesk/pkg/contextkeys"
	"github.com/platinummonkey/shopdesk/pkg/httputil"
	"github.com/platinummonkey/shopdesk/pkg/tenant"
)

// OrganizationParam is the query parameter an admin uses to act on another organization.
const OrganizationParam = "organization_id"

// OrgScopeMiddleware resolves the organization a request operates on: the caller's
// own, or the one named by OrganizationParam when the caller is an admin.
// Must run after AuthMiddleware.
func OrgScopeMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var subject tenant.Subject
		if authCtx := GetAuthContext(r); authCtx != nil {
			subject = authCtx
		}

		orgID, err := tenant.Organization(subject, r.URL.Query().Get(OrganizationParam))
		if err != nil {
			httputil.WriteAppError(w, r, err)
			return
		}

		ctx := contextkeys.WithScope(r.Context(), orgID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// ScopedOrganization returns the organization resolved by OrgScopeMiddleware.
func ScopedOrganization(r *http.Request) string {
	return contextkeys.GetScope(r.Context())
}
