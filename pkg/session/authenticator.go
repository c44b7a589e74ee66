package session

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/platinummonkey/shopdesk/pkg/apperror"
	"github.com/platinummonkey/shopdesk/pkg/auth"
	"github.com/platinummonkey/shopdesk/pkg/observability"
)

// Authenticator is the request-path entry point: header in, AuthContext out.
//
//	extract bearer -> fingerprint -> cache hit? -> verify -> build -> cache set
//
// Concurrent misses for the same credential share one resolution.
type Authenticator struct {
	resolver *auth.Resolver
	builder  *auth.ContextBuilder
	cache    *Cache

	group        singleflight.Group
	singleFlight bool

	tracer      trace.Tracer
	resolutions *prometheus.CounterVec
}

// AuthenticatorOption configures an Authenticator
type AuthenticatorOption func(*Authenticator)

// WithSingleFlight toggles sharing of concurrent resolutions (on by default).
func WithSingleFlight(enabled bool) AuthenticatorOption {
	return func(a *Authenticator) { a.singleFlight = enabled }
}

// WithResolutionMetrics counts full resolutions by outcome (label "outcome").
func WithResolutionMetrics(resolutions *prometheus.CounterVec) AuthenticatorOption {
	return func(a *Authenticator) { a.resolutions = resolutions }
}

// NewAuthenticator wires the resolver, builder and cache together.
func NewAuthenticator(resolver *auth.Resolver, builder *auth.ContextBuilder, cache *Cache, opts ...AuthenticatorOption) *Authenticator {
	a := &Authenticator{
		resolver:     resolver,
		builder:      builder,
		cache:        cache,
		singleFlight: true,
		tracer:       otel.Tracer("github.com/platinummonkey/shopdesk/pkg/session"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Authenticate resolves an Authorization header value. It returns the context and
// the credential fingerprint it is cached under.
func (a *Authenticator) Authenticate(ctx context.Context, header string) (*auth.AuthContext, string, error) {
	token, err := auth.ExtractBearer(header)
	if err != nil {
		return nil, "", err
	}
	fp := auth.Fingerprint(token)

	if authCtx, ok := a.cache.Get(fp); ok {
		return authCtx, fp, nil
	}

	if !a.singleFlight {
		authCtx, err := a.resolve(ctx, token, fp)
		return authCtx, fp, err
	}

	// The shared call must not be cancelled by whichever caller happened to start it;
	// a caller that goes away stops waiting and leaves it running for the others.
	shared := context.WithoutCancel(ctx)
	ch := a.group.DoChan(fp, func() (interface{}, error) {
		return a.resolve(shared, token, fp)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, fp, res.Err
		}
		return res.Val.(*auth.AuthContext), fp, nil
	case <-ctx.Done():
		return nil, fp, ctx.Err()
	}
}

func (a *Authenticator) resolve(ctx context.Context, token, fp string) (*auth.AuthContext, error) {
	ctx, span := a.tracer.Start(ctx, "session.resolve")
	defer span.End()

	// Taken before anything is read so an invalidation racing the directory
	// queries keeps the result out of the cache.
	reservation := a.cache.Reserve()
	defer a.cache.Release(reservation)

	principal, err := a.resolver.Resolve(ctx, token)
	if err != nil {
		a.fail(ctx, span, "verify", err)
		return nil, err
	}
	span.SetAttributes(attribute.String("user.id", principal.ID))

	authCtx, err := a.builder.Build(ctx, principal)
	if err != nil {
		a.fail(ctx, span, "build", err)
		return nil, err
	}

	stored := a.cache.Commit(reservation, fp, authCtx)
	if !stored {
		observability.FromContext(ctx).WithField("user_id", authCtx.UserID()).
			Debug("session invalidated during resolution; not cached")
	}
	span.SetAttributes(
		attribute.String("organization.id", authCtx.OrganizationID()),
		attribute.Bool("user.admin", authCtx.IsAdmin()),
		attribute.Bool("session.cached", stored),
	)
	a.count("resolved")
	return authCtx, nil
}

func (a *Authenticator) fail(ctx context.Context, span trace.Span, stage string, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, stage)

	code := apperror.CodeOf(err)
	a.count(string(code))

	logger := observability.FromContext(ctx).WithField("stage", stage).WithError(err)
	if code == apperror.CodeUnauthorized {
		logger.Info("session resolution rejected")
	} else {
		logger.Error("session resolution failed")
	}
}

func (a *Authenticator) count(outcome string) {
	if a.resolutions != nil {
		a.resolutions.WithLabelValues(outcome).Inc()
	}
}

// Logout drops the cached context for the credential in header.
func (a *Authenticator) Logout(header string) error {
	token, err := auth.ExtractBearer(header)
	if err != nil {
		return err
	}
	a.cache.Invalidate(auth.Fingerprint(token))
	return nil
}

// Cache returns the underlying cache.
func (a *Authenticator) Cache() *Cache {
	return a.cache
}
