package rbac

import (
	"github.com/platinummonkey/shopdesk/pkg/apperror"
)

// Subject is the view of a resolved session that permission checks need.
// *auth.AuthContext implements it.
type Subject interface {
	IsAdmin() bool
	HasRole(role RoleKey) bool
	HasPermission(key PermissionKey) bool
}

// Decision is the result of a non-failing permission evaluation.
type Decision struct {
	Allowed bool   `json:"allowed"`
	Reason  string `json:"reason,omitempty"`
}

// Engine evaluates role and permission gates. It holds no state beyond the
// catalog and language used for denial messages, so the zero value is not usable;
// build one with NewEngine or use the package-level helpers.
type Engine struct {
	catalog *Catalog
	lang    Language
}

// NewEngine returns an engine producing messages in lang from catalog.
// A nil catalog selects DefaultCatalog().
func NewEngine(catalog *Catalog, lang Language) Engine {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if lang == "" {
		lang = English
	}
	return Engine{catalog: catalog, lang: lang}
}

// In returns a copy of e producing messages in lang.
func (e Engine) In(lang Language) Engine {
	return NewEngine(e.catalog, lang)
}

// Check evaluates key without failing. Admins are always allowed.
func (e Engine) Check(s Subject, key PermissionKey) Decision {
	if s == nil {
		return Decision{Allowed: false, Reason: e.catalog.Message(e.lang, key)}
	}
	if s.IsAdmin() {
		return Decision{Allowed: true, Reason: "admin"}
	}
	if s.HasPermission(key) {
		return Decision{Allowed: true}
	}
	return Decision{Allowed: false, Reason: e.catalog.Message(e.lang, key)}
}

// RequirePermission allows admins unconditionally, otherwise requires key.
func (e Engine) RequirePermission(s Subject, key PermissionKey) error {
	if d := e.Check(s, key); !d.Allowed {
		return e.denied(key, d.Reason)
	}
	return nil
}

// RequireAny allows admins or subjects holding at least one of keys.
// The denial names the first key.
func (e Engine) RequireAny(s Subject, keys ...PermissionKey) error {
	if s != nil && s.IsAdmin() {
		return nil
	}
	if len(keys) == 0 {
		return apperror.Forbidden("no permission specified")
	}
	for _, key := range keys {
		if s != nil && s.HasPermission(key) {
			return nil
		}
	}
	return e.denied(keys[0], e.catalog.Message(e.lang, keys[0])).WithDetails(map[string]interface{}{
		"any_of": keyStrings(keys),
	})
}

// RequireAll allows admins or subjects holding every one of keys.
// The denial names the first missing key.
func (e Engine) RequireAll(s Subject, keys ...PermissionKey) error {
	if s != nil && s.IsAdmin() {
		return nil
	}
	for _, key := range keys {
		if s == nil || !s.HasPermission(key) {
			return e.denied(key, e.catalog.Message(e.lang, key))
		}
	}
	return nil
}

// RequireAnyRole allows subjects holding at least one of roles.
// Admins pass only when RoleAdmin is listed.
func (e Engine) RequireAnyRole(s Subject, roles ...RoleKey) error {
	if s != nil {
		for _, role := range roles {
			if s.HasRole(role) {
				return nil
			}
		}
	}
	names := make([]string, len(roles))
	for i, r := range roles {
		names[i] = string(r)
	}
	return apperror.Forbidden(e.catalog.RolesMessage(e.lang, roles)).WithDetails(map[string]interface{}{
		"roles": names,
	})
}

func (e Engine) denied(key PermissionKey, message string) *apperror.Error {
	return apperror.Forbidden(message).WithDetails(map[string]interface{}{
		"permission": string(key),
	})
}

func keyStrings(keys []PermissionKey) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}

var defaultEngine = NewEngine(nil, English)

// Check evaluates key with English messages.
func Check(s Subject, key PermissionKey) Decision {
	return defaultEngine.Check(s, key)
}

func RequirePermission(s Subject, key PermissionKey) error {
	return defaultEngine.RequirePermission(s, key)
}

func RequireAny(s Subject, keys ...PermissionKey) error {
	return defaultEngine.RequireAny(s, keys...)
}

func RequireAll(s Subject, keys ...PermissionKey) error {
	return defaultEngine.RequireAll(s, keys...)
}

func RequireAnyRole(s Subject, roles ...RoleKey) error {
	return defaultEngine.RequireAnyRole(s, roles...)
}
