package api

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/shopdesk/pkg/dashboard"
	"github.com/platinummonkey/shopdesk/pkg/httputil"
	"github.com/platinummonkey/shopdesk/pkg/middleware"
	"github.com/platinummonkey/shopdesk/pkg/observability"
	"github.com/platinummonkey/shopdesk/pkg/rbac"
	"github.com/platinummonkey/shopdesk/pkg/session"
)

// maxBodyBytes caps request bodies; the API only accepts small JSON documents.
const maxBodyBytes = 1 << 20

// DashboardBuilder assembles the dashboard for subject, optionally in another
// organization. *dashboard.Aggregator implements it.
type DashboardBuilder interface {
	Build(ctx context.Context, subject dashboard.Subject, orgID string) (*dashboard.Response, error)
}

// Options wires the server's collaborators. Authenticator, Invalidator and
// Dashboard are required; the rest are optional.
type Options struct {
	Authenticator middleware.Authenticator
	Invalidator   session.Invalidator
	Dashboard     DashboardBuilder
	Catalog       *rbac.Catalog

	Health   *observability.HealthChecker
	Metrics  *observability.Metrics
	Registry *prometheus.Registry
	Logger   *observability.Logger
}

// Server represents our API server
type Server struct {
	router      *mux.Router
	invalidator session.Invalidator
	dashboard   DashboardBuilder
	auth        *middleware.AuthMiddleware
	permissions *rbac.PermissionMiddleware
	health      *observability.HealthChecker
	metrics     *observability.Metrics
	registry    *prometheus.Registry
	logger      *observability.Logger
}

// NewServer creates a new API server
func NewServer(opts Options) *Server {
	var denials *prometheus.CounterVec
	if opts.Metrics != nil {
		denials = opts.Metrics.AuthzDenials
	}

	logger := opts.Logger
	if logger == nil {
		logger = observability.GetLogger(context.Background())
	}

	s := &Server{
		router:      mux.NewRouter(),
		invalidator: opts.Invalidator,
		dashboard:   opts.Dashboard,
		auth:        middleware.NewAuthMiddleware(opts.Authenticator, false),
		permissions: rbac.NewPermissionMiddleware(middleware.Subject, opts.Catalog, denials),
		health:      opts.Health,
		metrics:     opts.Metrics,
		registry:    opts.Registry,
		logger:      logger,
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all the API routes
func (s *Server) setupRoutes() {
	s.router.NotFoundHandler = httputil.NotFoundHandler()
	s.router.MethodNotAllowedHandler = httputil.MethodNotAllowedHandler()

	if s.metrics != nil {
		s.router.Use(observability.HTTPMetricsMiddleware(s.metrics))
	}

	// Unauthenticated operational routes
	if s.health != nil {
		observability.RegisterHealthRoutes(s.router, s.health)
	}
	if s.registry != nil {
		s.router.Handle("/metrics", observability.MetricsHandler(s.registry)).Methods(http.MethodGet)
	}

	v1 := s.router.PathPrefix("/api/v1").Subrouter()
	v1.Use(s.auth.Handler)

	// Session routes
	v1.HandleFunc("/session", s.getSession).Methods(http.MethodGet)
	v1.HandleFunc("/session/logout", s.logout).Methods(http.MethodPost)
	v1.HandleFunc("/permissions/check", s.checkPermission).Methods(http.MethodGet)

	// Dashboard
	viewDashboard := s.permissions.RequirePermission(rbac.P(rbac.ResourceDashboard, rbac.ActionView))
	v1.Handle("/dashboard", httputil.Chain(
		viewDashboard,
		middleware.OrgScopeMiddleware,
	)(http.HandlerFunc(s.getDashboard))).Methods(http.MethodGet)
	v1.Handle("/dashboard/sections", viewDashboard(http.HandlerFunc(s.listDashboardSections))).Methods(http.MethodGet)

	// Admin
	v1.Handle("/admin/sessions/invalidate", httputil.Chain(
		s.permissions.RequireAnyRole(rbac.RoleAdmin),
		s.permissions.RequirePermission(rbac.P(rbac.ResourceUsers, rbac.ActionUpdate)),
	)(http.HandlerFunc(s.invalidateSessions))).Methods(http.MethodPost)
}

// Router returns the route table without the outer middleware.
func (s *Server) Router() *mux.Router {
	return s.router
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Handler returns the router wrapped in the request pipeline: request ids,
// logging, panic recovery, body limits and an OpenTelemetry server span.
func (s *Server) Handler() http.Handler {
	h := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggerMiddleware(s.logger),
		httputil.LoggingMiddleware,
		httputil.RecoveryMiddleware,
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(maxBodyBytes),
	)(s.router)

	return otelhttp.NewHandler(h, "shopdesk",
		otelhttp.WithSpanNameFormatter(func(_ string, r *http.Request) string {
			return r.Method + " " + r.URL.Path
		}),
	)
}
