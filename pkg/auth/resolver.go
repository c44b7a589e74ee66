package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

// Verifier checks a raw bearer token with an identity provider.
type Verifier interface {
	Verify(ctx context.Context, token string) (Principal, error)
}

// VerifierFunc adapts a function to Verifier.
type VerifierFunc func(ctx context.Context, token string) (Principal, error)

func (f VerifierFunc) Verify(ctx context.Context, token string) (Principal, error) {
	return f(ctx, token)
}

// Verifiers tries each verifier in order and returns the first success.
type Verifiers []Verifier

func (vs Verifiers) Verify(ctx context.Context, token string) (Principal, error) {
	if len(vs) == 0 {
		return Principal{}, errors.New("no token verifier configured")
	}
	var errs []error
	for _, v := range vs {
		p, err := v.Verify(ctx, token)
		if err == nil {
			return p, nil
		}
		errs = append(errs, err)
	}
	return Principal{}, errors.Join(errs...)
}

// ExtractBearer returns the token from an "Authorization: Bearer <token>" header value.
func ExtractBearer(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrMissingCredential
	}

	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", ErrMalformedCredential
	}
	return parts[1], nil
}

// Fingerprint is the cache key for a credential: hex SHA-256 of the raw token.
func Fingerprint(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// Resolver exchanges a bearer token for a verified Principal. It does no caching.
type Resolver struct {
	verifier Verifier
}

// NewResolver creates a resolver over verifier
func NewResolver(verifier Verifier) *Resolver {
	return &Resolver{verifier: verifier}
}

// Resolve verifies token. Any verifier failure becomes ErrInvalidCredential with the
// cause attached for logging.
func (r *Resolver) Resolve(ctx context.Context, token string) (Principal, error) {
	if token == "" {
		return Principal{}, ErrMissingCredential
	}

	p, err := r.verifier.Verify(ctx, token)
	if err != nil {
		return Principal{}, ErrInvalidCredential.Wrap(err)
	}
	if p.ID == "" {
		return Principal{}, ErrInvalidCredential.Wrap(errors.New("verified token has no subject"))
	}
	return p, nil
}
