package dashboard

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/shopdesk/pkg/observability"
	"github.com/platinummonkey/shopdesk/pkg/tenant"
)

// DefaultSectionTimeout bounds each section fetch independently.
const DefaultSectionTimeout = 5 * time.Second

// Failure reasons reported to the failures counter.
const (
	FailureError   = "error"
	FailureTimeout = "timeout"
	FailurePanic   = "panic"
)

// Aggregator builds the dashboard by fetching every permitted section concurrently.
// A failing section is replaced by its fallback; it never fails the whole response.
type Aggregator struct {
	source  Source
	timeout time.Duration
	now     func() time.Time

	tracer   trace.Tracer
	duration *prometheus.HistogramVec
	failures *prometheus.CounterVec
}

// Option configures an Aggregator
type Option func(*Aggregator)

// WithSectionTimeout overrides DefaultSectionTimeout.
func WithSectionTimeout(d time.Duration) Option {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// WithClock injects the time source used to compute the reporting period.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// WithMetrics records per-section fetch duration (labels "section", "outcome") and
// failures (labels "section", "reason").
func WithMetrics(duration *prometheus.HistogramVec, failures *prometheus.CounterVec) Option {
	return func(a *Aggregator) {
		a.duration = duration
		a.failures = failures
	}
}

// NewAggregator creates an aggregator reading from source.
func NewAggregator(source Source, opts ...Option) *Aggregator {
	a := &Aggregator{
		source:  source,
		timeout: DefaultSectionTimeout,
		now:     time.Now,
		tracer:  otel.Tracer("github.com/platinummonkey/shopdesk/pkg/dashboard"),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Period returns the reporting window: the calendar month containing now, in UTC.
func Period(now time.Time) (from, to time.Time) {
	now = now.UTC()
	from = time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	return from, from.AddDate(0, 1, 0)
}

// Build returns the dashboard for subject. orgID asks for another organization
// and is honored only for admins; empty means the subject's own organization.
//
// The only errors come from tenant scoping (no session, or a non-admin naming a
// foreign organization); section failures are logged and served as fallbacks.
func (a *Aggregator) Build(ctx context.Context, subject Subject, orgID string) (*Response, error) {
	from, to := Period(a.now())
	q, err := tenant.ScopeWithOverride[Query](Query{From: from, To: to}, subject, orgID)
	if err != nil {
		return nil, err
	}

	ctx, span := a.tracer.Start(ctx, "dashboard.build", trace.WithAttributes(
		attribute.String("organization.id", q.OrganizationID()),
	))
	defer span.End()

	perms := Permissions(subject)

	// one slot per section; each goroutine owns its slot
	results := make([]interface{}, len(sections))
	var g errgroup.Group
	for i, s := range sections {
		if !perms[s.name] {
			continue
		}
		i, s := i, s
		g.Go(func() error {
			results[i] = a.run(ctx, s, q)
			return nil
		})
	}
	_ = g.Wait()

	resp := &Response{
		Sections:    make(map[string]interface{}, len(sections)),
		Permissions: perms,
	}
	for i, s := range sections {
		if perms[s.name] {
			resp.Sections[s.name] = results[i]
		}
	}
	span.SetAttributes(attribute.Int("dashboard.sections", len(resp.Sections)))
	return resp, nil
}

type fetchResult struct {
	value interface{}
	err   error
}

// run fetches one section under its own timeout and always returns a value.
func (a *Aggregator) run(parent context.Context, s section, q Query) interface{} {
	ctx, span := a.tracer.Start(parent, "dashboard.section", trace.WithAttributes(
		attribute.String("dashboard.section", s.name),
	))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	start := time.Now()
	done := make(chan fetchResult, 1)
	go func() {
		var res fetchResult
		defer func() {
			if r := recover(); r != nil {
				res = fetchResult{err: &panicError{value: r, stack: debug.Stack()}}
			}
			done <- res
		}()
		res.value, res.err = s.fetch(ctx, a.source, q)
	}()

	var res fetchResult
	select {
	case res = <-done:
	case <-ctx.Done():
		// the fetch goroutine finishes on its own; its result is dropped
		res.err = ctx.Err()
	}

	elapsed := time.Since(start)
	if res.err == nil {
		a.observe(s.name, "ok", elapsed)
		return res.value
	}

	reason := failureReason(res.err)
	a.observe(s.name, reason, elapsed)
	if a.failures != nil {
		a.failures.WithLabelValues(s.name, reason).Inc()
	}
	span.RecordError(res.err)
	span.SetStatus(codes.Error, reason)

	logger := observability.FromContext(parent).WithFields(map[string]interface{}{
		"section":     s.name,
		"reason":      reason,
		"duration_ms": elapsed.Milliseconds(),
	}).WithError(res.err)
	var pe *panicError
	if errors.As(res.err, &pe) {
		logger = logger.WithField("stack", string(pe.stack))
	}
	logger.Error("dashboard section failed, serving fallback")

	return s.fallback()
}

func (a *Aggregator) observe(name, outcome string, elapsed time.Duration) {
	if a.duration != nil {
		a.duration.WithLabelValues(name, outcome).Observe(elapsed.Seconds())
	}
}

func failureReason(err error) string {
	var pe *panicError
	switch {
	case errors.As(err, &pe):
		return FailurePanic
	case errors.Is(err, context.DeadlineExceeded):
		return FailureTimeout
	default:
		return FailureError
	}
}

type panicError struct {
	value interface{}
	stack []byte
}

func (e *panicError) Error() string {
	return fmt.Sprintf("panic: %v", e.value)
}
