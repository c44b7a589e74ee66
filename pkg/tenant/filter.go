package tenant

import (
	"github.com/platinummonkey/shopdesk/pkg/apperror"
)

// Scopable is a query builder that can be constrained to one organization.
// Q is the builder's own type, so scoping keeps the concrete builder API:
//
//	func (q *WorkOrderQuery) WithOrganizationScope(orgID string) *WorkOrderQuery
type Scopable[Q any] interface {
	WithOrganizationScope(orgID string) Q
}

// Subject is the part of a session the filter needs. *auth.AuthContext satisfies it.
type Subject interface {
	OrganizationID() string
	IsAdmin() bool
}

var (
	// ErrNoSubject is returned when scoping is attempted without a session.
	ErrNoSubject = apperror.Unauthorized("authentication required")

	// ErrCrossTenant is returned when a non-admin asks for another organization.
	ErrCrossTenant = apperror.Forbidden("cross-organization access requires admin")
)

// Scope constrains q to the subject's own organization.
func Scope[Q any](q Scopable[Q], s Subject) (Q, error) {
	orgID, err := Organization(s, "")
	if err != nil {
		var zero Q
		return zero, err
	}
	return q.WithOrganizationScope(orgID), nil
}

// ScopeWithOverride constrains q to overrideOrgID when the subject is an admin,
// and to the subject's own organization otherwise. An empty override is Scope.
func ScopeWithOverride[Q any](q Scopable[Q], s Subject, overrideOrgID string) (Q, error) {
	if overrideOrgID == "" {
		return Scope(q, s)
	}
	orgID, err := Organization(s, overrideOrgID)
	if err != nil {
		var zero Q
		return zero, err
	}
	return q.WithOrganizationScope(orgID), nil
}

// Organization returns the organization a request from s is allowed to read.
//
// A non-admin naming a different organization gets ErrCrossTenant rather than a
// silent fallback, so a leaked link can't be mistaken for an empty result.
func Organization(s Subject, overrideOrgID string) (string, error) {
	if s == nil {
		return "", ErrNoSubject
	}
	own := s.OrganizationID()
	if own == "" {
		return "", ErrNoSubject
	}

	if overrideOrgID == "" || overrideOrgID == own {
		return own, nil
	}
	if !s.IsAdmin() {
		return "", ErrCrossTenant.WithDetails(map[string]interface{}{
			"organization_id": overrideOrgID,
		})
	}
	return overrideOrgID, nil
}
