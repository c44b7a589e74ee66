package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures HS256 shared-secret token verification.
type JWTConfig struct {
	Secret   []byte
	Issuer   string
	Audience string
	// Now overrides the clock used for exp/nbf checks.
	Now func() time.Time
}

// JWTVerifier verifies HS256 tokens issued by the platform's own identity service.
type JWTVerifier struct {
	secret []byte
	opts   []jwt.ParserOption
}

// NewJWTVerifier creates a verifier. An empty secret is rejected.
func NewJWTVerifier(cfg JWTConfig) (*JWTVerifier, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("jwt secret is required")
	}

	now := cfg.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(now),
		jwt.WithExpirationRequired(),
	}
	if iss := strings.TrimSpace(cfg.Issuer); iss != "" {
		opts = append(opts, jwt.WithIssuer(iss))
	}
	if aud := strings.TrimSpace(cfg.Audience); aud != "" {
		opts = append(opts, jwt.WithAudience(aud))
	}

	return &JWTVerifier{secret: cfg.Secret, opts: opts}, nil
}

// Verify parses and validates token, mapping "sub" and "email" onto a Principal.
func (v *JWTVerifier) Verify(_ context.Context, token string) (Principal, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	}, v.opts...)
	if err != nil {
		return Principal{}, fmt.Errorf("jwt: %w", err)
	}
	if !parsed.Valid {
		return Principal{}, errors.New("jwt: token is not valid")
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, errors.New("jwt: unexpected claims type")
	}

	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return Principal{}, errors.New("jwt: missing subject")
	}
	email, _ := claims["email"].(string)

	return Principal{ID: sub, Email: email}, nil
}
