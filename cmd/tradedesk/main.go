// Command tradedesk serves subscription access decisions for the trading
// dashboard.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/dmitrymomot/tradedesk/pkg/clientip"
	"github.com/dmitrymomot/tradedesk/pkg/config"
	"github.com/dmitrymomot/tradedesk/pkg/environment"
	"github.com/dmitrymomot/tradedesk/pkg/httpserver"
	"github.com/dmitrymomot/tradedesk/pkg/identity"
	"github.com/dmitrymomot/tradedesk/pkg/logger"
	"github.com/dmitrymomot/tradedesk/pkg/requestid"
	"github.com/dmitrymomot/tradedesk/pkg/subscription"
	"github.com/dmitrymomot/tradedesk/svc/access"
)

func main() {
	if err := run(); err != nil {
		slog.Error("tradedesk stopped", logger.Error(err))
		os.Exit(1)
	}
}

func run() error {
	var cfg AppConfig
	if err := config.Load(&cfg); err != nil {
		return err
	}
	if err := cfg.validate(); err != nil {
		return err
	}

	env := environment.Parse(cfg.Env)
	log := newLogger(cfg,
		requestid.LogExtractor(),
		environment.LogExtractor(),
		identity.LogExtractor(),
		clientip.LogExtractor(),
	)
	logger.SetAsDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res := &resources{}
	defer res.close()

	store, err := newStore(ctx, cfg, res, log)
	if err != nil {
		return err
	}
	provider, err := newProvider(cfg)
	if err != nil {
		return err
	}
	dedup, err := newDeduplicator(ctx, cfg, res, log)
	if err != nil {
		return err
	}

	limiter, err := newRateLimiter(ctx, cfg, res, log)
	if err != nil {
		return err
	}

	metrics := access.NewMetrics()
	registry := subscription.NewRegistry(store, provider,
		subscription.WithLogger(log),
		subscription.WithCapacity(cfg.Controllers),
		subscription.WithChangeHandler(metrics.ObserveChange),
	)
	defer registry.Close()

	processor := subscription.NewWebhookProcessor(provider, store,
		subscription.WithLogger(log),
		subscription.WithDeduplicator(dedup),
	)

	svc := access.New(registry, processor,
		access.WithLogger(log),
		access.WithMetrics(metrics),
		access.WithPollInterval(cfg.PollInterval),
		access.WithRateLimiter(limiter),
	)

	authn, err := newIdentity(env, log)
	if err != nil {
		return err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(clientip.Middleware)
	r.Use(environment.Middleware(env))
	r.Use(authn)

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(log, res.checks...))
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.Mount("/", svc.Handle())

	var httpCfg httpserver.Config
	if err := config.Load(&httpCfg); err != nil {
		return err
	}

	log.InfoContext(ctx, "tradedesk starting",
		slog.String("store", cfg.StoreBackend),
		logger.Provider(provider.Name()),
		slog.Bool("redis_cache", cfg.RedisCache),
	)
	srv := httpserver.NewFromConfig(httpCfg,
		httpserver.WithLogger(log),
		httpserver.WithDrainHook(func(context.Context) { _ = registry.Close() }),
	)
	return srv.Run(ctx, r)
}

// newIdentity returns the authentication middleware. Outside production a
// missing Supabase configuration leaves every request anonymous.
func newIdentity(env environment.Environment, log *slog.Logger) (func(http.Handler) http.Handler, error) {
	var idCfg identity.Config
	if err := config.Load(&idCfg); err != nil {
		return nil, err
	}

	verifier, err := identity.NewVerifier(idCfg)
	switch {
	case errors.Is(err, identity.ErrNotConfigured) && !env.IsProduction():
		log.Warn("identity provider not configured, all requests are anonymous")
		return func(next http.Handler) http.Handler { return next }, nil
	case err != nil:
		return nil, err
	}
	return identity.Middleware(verifier,
		identity.WithLogger(log),
		identity.WithErrorHandler(identityErrorHandler(log)),
	), nil
}
