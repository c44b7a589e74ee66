package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/platinummonkey/shopdesk/pkg/api"
	"github.com/platinummonkey/shopdesk/pkg/auth"
	"github.com/platinummonkey/shopdesk/pkg/config"
	"github.com/platinummonkey/shopdesk/pkg/dashboard"
	"github.com/platinummonkey/shopdesk/pkg/observability"
	"github.com/platinummonkey/shopdesk/pkg/session"
	"github.com/platinummonkey/shopdesk/pkg/storage/postgres"
)

// replicaCheckInterval is how often unhealthy read replicas are pruned.
const replicaCheckInterval = 30 * time.Second

var configFile = flag.String("config", "", "Path to a YAML config file (overrides "+config.FileEnv+")")

func main() {
	flag.Parse()

	path := *configFile
	if path == "" {
		path = os.Getenv(config.FileEnv)
	}

	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "shopdesk: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.Level(), os.Stdout)
	if err := run(context.Background(), cfg, logger); err != nil {
		logger.WithError(err).Error("shopdesk exited with error")
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *observability.Logger) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := observability.NewMetrics(registry)

	store, err := postgres.New(ctx, cfg.Storage, logger)
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	store.Connections().StartHealthCheckRoutine(ctx, replicaCheckInterval)

	var redisClient *redis.Client
	if cfg.Storage.RedisURL != "" {
		redisClient, err = postgres.NewRedisClient(ctx, cfg.Storage)
		if err != nil {
			store.Close()
			return err
		}
	}

	verifier, err := buildVerifier(ctx, cfg.Auth)
	if err != nil {
		store.Close()
		return err
	}

	cache := session.NewCache(cfg.Session.MaxEntries,
		session.WithTTL(cfg.Session.TTL),
		session.WithMetrics(metrics.SessionCacheLookups, metrics.SessionCacheEvictions),
	)
	authenticator := session.NewAuthenticator(
		auth.NewResolver(verifier),
		auth.NewContextBuilder(store),
		cache,
		session.WithSingleFlight(cfg.Session.SingleFlight),
		session.WithResolutionMetrics(metrics.SessionResolutions),
	)

	var (
		invalidator session.Invalidator = session.NewLocalInvalidator(cache)
		unsubscribe func() error
	)
	if redisClient != nil {
		bus := session.NewBus(redisClient, cfg.Session.InvalidationChannel, cache, logger)
		if unsubscribe, err = bus.Subscribe(ctx); err != nil {
			store.Close()
			redisClient.Close()
			return err
		}
		invalidator = bus
	} else {
		logger.Warn("redis not configured; session invalidations stay local to this replica")
	}

	aggregator := dashboard.NewAggregator(store,
		dashboard.WithSectionTimeout(cfg.Dashboard.SectionTimeout),
		dashboard.WithMetrics(metrics.DashboardSectionDuration, metrics.DashboardSectionFailures),
	)

	scheduler, err := newScheduler(logger, cfg.Session.SweepInterval, cache, store.Connections().Primary(), metrics)
	if err != nil {
		store.Close()
		return err
	}
	scheduler.Start()

	opts := api.Options{
		Authenticator: authenticator,
		Invalidator:   invalidator,
		Dashboard:     aggregator,
		Health:        observability.NewHealthChecker(store, redisClient),
		Metrics:       metrics,
		Logger:        logger,
	}
	if cfg.Observability.MetricsEnabled {
		opts.Registry = registry
	}
	server := api.NewServer(opts)

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	// Hooks run in reverse registration order after the server has drained.
	shutdown := observability.NewShutdownManager(logger, httpServer, cfg.Server.ShutdownTimeout)
	shutdown.Register("database", func(context.Context) error { return store.Close() })
	if redisClient != nil {
		shutdown.Register("redis", func(context.Context) error { return redisClient.Close() })
	}
	shutdown.Register("tracing", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers, logger)
	})
	if unsubscribe != nil {
		shutdown.Register("invalidation subscriber", func(context.Context) error { return unsubscribe() })
	}
	shutdown.Register("scheduler", func(ctx context.Context) error {
		select {
		case <-scheduler.Stop().Done():
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	serveErr := make(chan error, 1)
	go func() {
		logger.WithField("addr", httpServer.Addr).Info("shopdesk listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	waitCtx, stopWaiting := context.WithCancel(ctx)
	defer stopWaiting()

	var serveFailure error
	go func() {
		if err := <-serveErr; err != nil {
			logger.WithError(err).Error("http server failed")
			serveFailure = err
			stopWaiting()
		}
	}()

	err = shutdown.WaitForShutdown(waitCtx)
	return errors.Join(serveFailure, err)
}

// buildVerifier returns the configured token verifiers, HS256 first.
func buildVerifier(ctx context.Context, cfg config.AuthConfig) (auth.Verifier, error) {
	var verifiers auth.Verifiers

	if cfg.JWTSecret != "" {
		v, err := auth.NewJWTVerifier(auth.JWTConfig{
			Secret:   []byte(cfg.JWTSecret),
			Issuer:   cfg.JWTIssuer,
			Audience: cfg.JWTAudience,
		})
		if err != nil {
			return nil, err
		}
		verifiers = append(verifiers, v)
	}

	if cfg.OIDCIssuerURL != "" {
		v, err := auth.NewOIDCVerifier(ctx, cfg.OIDCIssuerURL, cfg.OIDCClientID)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize OIDC verifier: %w", err)
		}
		verifiers = append(verifiers, v)
	}

	if len(verifiers) == 1 {
		return verifiers[0], nil
	}
	return verifiers, nil
}
