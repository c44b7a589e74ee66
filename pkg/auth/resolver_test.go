package auth

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"testing"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-signing-key-for-unit-tests"

func signedHS256(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func fixedClock(unix int64) func() time.Time {
	return func() time.Time { return time.Unix(unix, 0) }
}

func TestExtractBearer(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "valid", header: "Bearer abc.def", want: "abc.def"},
		{name: "case insensitive scheme", header: "bearer abc", want: "abc"},
		{name: "surrounding space", header: "  Bearer abc  ", want: "abc"},
		{name: "missing", header: "", wantErr: ErrMissingCredential},
		{name: "wrong scheme", header: "Basic dXNlcjpwYXNz", wantErr: ErrMalformedCredential},
		{name: "no token", header: "Bearer", wantErr: ErrMalformedCredential},
		{name: "extra parts", header: "Bearer a b", wantErr: ErrMalformedCredential},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractBearer(tt.header)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFingerprint(t *testing.T) {
	fp := Fingerprint("secret-token")
	assert.Len(t, fp, 64)
	assert.NotContains(t, fp, "secret-token")
	assert.Equal(t, fp, Fingerprint("secret-token"))
	assert.NotEqual(t, fp, Fingerprint("secret-token2"))
}

func TestJWTVerifier(t *testing.T) {
	v, err := NewJWTVerifier(JWTConfig{
		Secret:   []byte(testSecret),
		Issuer:   "https://id.shopdesk.test",
		Audience: "shopdesk",
		Now:      fixedClock(1000),
	})
	require.NoError(t, err)

	base := func() jwt.MapClaims {
		return jwt.MapClaims{
			"iss":   "https://id.shopdesk.test",
			"aud":   "shopdesk",
			"sub":   "user-1",
			"email": "ana@example.com",
			"exp":   2000,
			"nbf":   500,
		}
	}

	t.Run("valid token", func(t *testing.T) {
		p, err := v.Verify(context.Background(), signedHS256(t, base()))
		require.NoError(t, err)
		assert.Equal(t, Principal{ID: "user-1", Email: "ana@example.com"}, p)
	})

	t.Run("expired", func(t *testing.T) {
		claims := base()
		claims["exp"] = 999
		_, err := v.Verify(context.Background(), signedHS256(t, claims))
		assert.Error(t, err)
	})

	t.Run("missing exp", func(t *testing.T) {
		claims := base()
		delete(claims, "exp")
		_, err := v.Verify(context.Background(), signedHS256(t, claims))
		assert.Error(t, err)
	})

	t.Run("wrong audience", func(t *testing.T) {
		claims := base()
		claims["aud"] = "someone-else"
		_, err := v.Verify(context.Background(), signedHS256(t, claims))
		assert.Error(t, err)
	})

	t.Run("wrong secret", func(t *testing.T) {
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, base()).SignedString([]byte("other"))
		require.NoError(t, err)
		_, err = v.Verify(context.Background(), token)
		assert.Error(t, err)
	})

	t.Run("missing subject", func(t *testing.T) {
		claims := base()
		delete(claims, "sub")
		_, err := v.Verify(context.Background(), signedHS256(t, claims))
		assert.Error(t, err)
	})
}

func TestNewJWTVerifierRequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier(JWTConfig{})
	assert.Error(t, err)
}

func TestOIDCVerifier(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	keySet := &oidc.StaticKeySet{PublicKeys: []crypto.PublicKey{&key.PublicKey}}
	idv := oidc.NewVerifier("https://accounts.example.com", keySet, &oidc.Config{
		ClientID: "shopdesk",
		Now:      fixedClock(1000),
	})
	v := NewOIDCVerifierFrom(idv)

	sign := func(claims jwt.MapClaims) string {
		token, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(key)
		require.NoError(t, err)
		return token
	}

	t.Run("valid id token", func(t *testing.T) {
		token := sign(jwt.MapClaims{
			"iss":   "https://accounts.example.com",
			"aud":   "shopdesk",
			"sub":   "idp-user-7",
			"email": "luis@example.com",
			"iat":   900,
			"exp":   2000,
		})
		p, err := v.Verify(context.Background(), token)
		require.NoError(t, err)
		assert.Equal(t, "idp-user-7", p.ID)
		assert.Equal(t, "luis@example.com", p.Email)
	})

	t.Run("unverified email rejected", func(t *testing.T) {
		token := sign(jwt.MapClaims{
			"iss":            "https://accounts.example.com",
			"aud":            "shopdesk",
			"sub":            "idp-user-7",
			"email":          "luis@example.com",
			"email_verified": false,
			"iat":            900,
			"exp":            2000,
		})
		_, err := v.Verify(context.Background(), token)
		assert.Error(t, err)
	})

	t.Run("wrong issuer", func(t *testing.T) {
		token := sign(jwt.MapClaims{
			"iss": "https://evil.example.com",
			"aud": "shopdesk",
			"sub": "idp-user-7",
			"iat": 900,
			"exp": 2000,
		})
		_, err := v.Verify(context.Background(), token)
		assert.Error(t, err)
	})
}

func TestResolver(t *testing.T) {
	ok := VerifierFunc(func(_ context.Context, token string) (Principal, error) {
		if token == "good" {
			return Principal{ID: "u1", Email: "u1@example.com"}, nil
		}
		if token == "nosub" {
			return Principal{}, nil
		}
		return Principal{}, errors.New("signature mismatch")
	})
	r := NewResolver(ok)

	p, err := r.Resolve(context.Background(), "good")
	require.NoError(t, err)
	assert.Equal(t, "u1", p.ID)

	_, err = r.Resolve(context.Background(), "bad")
	assert.ErrorIs(t, err, ErrInvalidCredential)
	assert.Contains(t, err.Error(), "signature mismatch")

	_, err = r.Resolve(context.Background(), "nosub")
	assert.ErrorIs(t, err, ErrInvalidCredential)

	_, err = r.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrMissingCredential)
}

func TestVerifiersFirstSuccessWins(t *testing.T) {
	reject := VerifierFunc(func(context.Context, string) (Principal, error) {
		return Principal{}, errors.New("not mine")
	})
	accept := VerifierFunc(func(context.Context, string) (Principal, error) {
		return Principal{ID: "from-second"}, nil
	})

	p, err := Verifiers{reject, accept}.Verify(context.Background(), "t")
	require.NoError(t, err)
	assert.Equal(t, "from-second", p.ID)

	_, err = Verifiers{reject, reject}.Verify(context.Background(), "t")
	assert.Error(t, err)

	_, err = Verifiers{}.Verify(context.Background(), "t")
	assert.Error(t, err)
}
