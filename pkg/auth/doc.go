// Package auth turns a bearer credential into a resolved, immutable session context.
//
// # Overview
//
// Resolution has two stages. The Resolver asks a Verifier (an identity provider) who
// the token belongs to and gets back a Principal. The ContextBuilder then reads the
// principal's profile, active roles and effective permissions from a Directory and
// assembles an AuthContext. Neither stage caches; pkg/session sits in front of both.
//
// # Verifiers
//
// HS256 tokens from the platform's own identity service:
//
//	v, err := auth.NewJWTVerifier(auth.JWTConfig{
//		Secret:   []byte(cfg.Auth.JWTSecret),
//		Issuer:   "https://id.example.com",
//		Audience: "shopdesk",
//	})
//
// ID tokens from an external OpenID Connect provider:
//
//	v, err := auth.NewOIDCVerifier(ctx, "https://accounts.example.com", clientID)
//
// Several verifiers can be combined; the first that accepts the token wins:
//
//	resolver := auth.NewResolver(auth.Verifiers{jwtVerifier, oidcVerifier})
//
// # Context Construction
//
// Build applies its gates in order so that error precedence is deterministic. An
// inactive user always gets "inactive", never "no roles":
//
//	profile missing        -> UNAUTHORIZED "profile not found"
//	profile inactive       -> UNAUTHORIZED "inactive"
//	no organization        -> UNAUTHORIZED "no organization"
//	no known active roles  -> UNAUTHORIZED "no roles"
//
// Admins skip the permission query entirely. Their permission set stays empty and
// every permission check passes for them.
//
// # Credential Fingerprints
//
// Raw tokens are never used as map keys or logged. Fingerprint returns the hex SHA-256
// of a token, which is what the session cache stores.
package auth
