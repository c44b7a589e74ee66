// Package observability provides structured logging, Prometheus metrics, OpenTelemetry
// tracing, health probes and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	ctx = observability.WithLogger(ctx, logger)
//	observability.FromContext(ctx).WithField("section", "inventory").Error("section failed")
//
// FromContext adds request_id, user_id, organization_id and trace ids when present.
//
// # Prometheus Metrics
//
//	metrics := observability.NewMetrics(registry)
//	router.Use(observability.HTTPMetricsMiddleware(metrics))
//	cache := session.NewCache(n, session.WithMetrics(metrics.SessionCacheLookups, metrics.SessionCacheEvictions))
//
// # Tracing
//
// InitOTel installs global OTLP gRPC tracer and meter providers. When disabled the
// otel globals stay no-ops, so instrumented code needs no conditionals.
//
// # Health and Shutdown
//
//	observability.RegisterHealthRoutes(router, observability.NewHealthChecker(store, redisClient))
//	sm := observability.NewShutdownManager(logger, server, 30*time.Second)
//	sm.Register("database", func(context.Context) error { return store.Close() })
//	sm.WaitForShutdown(ctx)
package observability
