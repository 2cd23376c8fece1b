package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/tradedesk/handler"
	"github.com/dmitrymomot/tradedesk/pkg/config"
	"github.com/dmitrymomot/tradedesk/pkg/httpserver"
	"github.com/dmitrymomot/tradedesk/pkg/identity"
	"github.com/dmitrymomot/tradedesk/pkg/logger"
	"github.com/dmitrymomot/tradedesk/pkg/mongo"
	"github.com/dmitrymomot/tradedesk/pkg/pg"
	"github.com/dmitrymomot/tradedesk/pkg/ratelimiter"
	"github.com/dmitrymomot/tradedesk/pkg/redis"
	"github.com/dmitrymomot/tradedesk/pkg/subscription"
	"github.com/dmitrymomot/tradedesk/pkg/subscription/cachestore"
	"github.com/dmitrymomot/tradedesk/pkg/subscription/mongostore"
	"github.com/dmitrymomot/tradedesk/pkg/subscription/pgstore"
	"github.com/dmitrymomot/tradedesk/pkg/subscription/supastore"
)

// resources collects what main has to close and health-check.
type resources struct {
	checks  []httpserver.Check
	closers []func()
	redis   *goredis.Client
	// redisPrefix namespaces every key this process writes to redis.
	redisPrefix string
}

func (r *resources) close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		r.closers[i]()
	}
}

// newStore connects the configured backend and, when enabled, puts the
// Redis read-through cache in front of it.
func newStore(ctx context.Context, cfg AppConfig, res *resources, log *slog.Logger) (subscription.Store, error) {
	var store subscription.Store

	switch strings.ToLower(cfg.StoreBackend) {
	case StoreMemory:
		store = subscription.NewMemoryStore()

	case StorePostgres:
		var pgCfg pg.Config
		if err := config.Load(&pgCfg); err != nil {
			return nil, err
		}
		pool, err := pg.Connect(ctx, pgCfg, log)
		if err != nil {
			return nil, err
		}
		res.closers = append(res.closers, pool.Close)
		res.checks = append(res.checks, httpserver.Check{Name: "postgres", Ping: pg.Healthcheck(pool)})
		if pgCfg.AutoMigrate {
			if err := pg.Migrate(ctx, pool, pgCfg, pgstore.Migrations, log); err != nil {
				return nil, err
			}
		}
		store = pgstore.New(pool)

	case StoreSupabase:
		var supaCfg supastore.Config
		if err := config.Load(&supaCfg); err != nil {
			return nil, err
		}
		s, err := supastore.New(supaCfg)
		if err != nil {
			return nil, err
		}
		store = s

	case StoreMongo:
		var mongoCfg mongo.Config
		if err := config.Load(&mongoCfg); err != nil {
			return nil, err
		}
		db, err := mongo.ConnectDatabase(ctx, mongoCfg, log)
		if err != nil {
			return nil, err
		}
		client := db.Client()
		res.closers = append(res.closers, func() { _ = client.Disconnect(context.Background()) })
		res.checks = append(res.checks, httpserver.Check{Name: "mongo", Ping: mongo.Healthcheck(client)})
		ms := mongostore.New(db, "subscriptions")
		if err := ms.EnsureIndexes(ctx); err != nil {
			return nil, fmt.Errorf("ensure mongo indexes: %w", err)
		}
		store = ms

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownBackend, cfg.StoreBackend)
	}

	if !cfg.RedisCache {
		return store, nil
	}
	client, err := connectRedis(ctx, res, log)
	if err != nil {
		return nil, err
	}
	return cachestore.New(store, client,
		cachestore.WithPrefix(res.redisPrefix),
		cachestore.WithLogger(log),
	), nil
}

func connectRedis(ctx context.Context, res *resources, log *slog.Logger) (*goredis.Client, error) {
	if res.redis != nil {
		return res.redis, nil
	}
	var redisCfg redis.Config
	if err := config.Load(&redisCfg); err != nil {
		return nil, err
	}
	client, err := redis.Connect(ctx, redisCfg, log)
	if err != nil {
		return nil, err
	}
	res.redis = client
	res.redisPrefix = redisCfg.KeyPrefix
	res.closers = append(res.closers, func() { _ = client.Close() })
	res.checks = append(res.checks, httpserver.Check{Name: "redis", Ping: redis.Healthcheck(client)})
	return client, nil
}

func newProvider(cfg AppConfig) (subscription.BillingProvider, error) {
	switch strings.ToLower(cfg.BillingProvider) {
	case ProviderStub:
		var stubCfg subscription.StubConfig
		if err := config.Load(&stubCfg); err != nil {
			return nil, err
		}
		return subscription.NewStubProvider(stubCfg), nil
	case ProviderStripe:
		var stripeCfg subscription.StripeConfig
		if err := config.Load(&stripeCfg); err != nil {
			return nil, err
		}
		return subscription.NewStripeProvider(stripeCfg)
	case ProviderPaddle:
		var paddleCfg subscription.PaddleConfig
		if err := config.Load(&paddleCfg); err != nil {
			return nil, err
		}
		return subscription.NewPaddleProvider(paddleCfg)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.BillingProvider)
	}
}

// newDeduplicator shares webhook ids through Redis when the cache is on,
// so replays are caught across instances.
func newDeduplicator(ctx context.Context, cfg AppConfig, res *resources, log *slog.Logger) (subscription.Deduplicator, error) {
	if !cfg.RedisCache {
		return nil, nil
	}
	client, err := connectRedis(ctx, res, log)
	if err != nil {
		return nil, err
	}
	return cachestore.NewDeduplicator(client, cachestore.WithPrefix(res.redisPrefix)), nil
}

// newRateLimiter returns nil when RATE_LIMIT_BURST is zero. Buckets live in
// Redis when the cache is on so limits hold across instances.
func newRateLimiter(ctx context.Context, cfg AppConfig, res *resources, log *slog.Logger) (*ratelimiter.Bucket, error) {
	if cfg.RateBurst == 0 {
		return nil, nil
	}

	var store ratelimiter.Store
	if cfg.RedisCache {
		client, err := connectRedis(ctx, res, log)
		if err != nil {
			return nil, err
		}
		store = ratelimiter.NewRedisStore(client, ratelimiter.WithKeyPrefix(res.redisPrefix+"ratelimit:"))
	} else {
		mem := ratelimiter.NewMemoryStore()
		res.closers = append(res.closers, mem.Close)
		store = mem
	}

	return ratelimiter.NewBucket(store, ratelimiter.Config{
		Capacity:       cfg.RateBurst,
		RefillRate:     1,
		RefillInterval: cfg.RateInterval,
	})
}

// identityErrorHandler renders rejected tokens with the handler package's
// JSON envelope so the body carries the request id.
func identityErrorHandler(log *slog.Logger) identity.ErrorHandler {
	render := handler.NewErrorHandler(log)
	return func(w http.ResponseWriter, r *http.Request, _ error) {
		render(handler.NewContext(w, r), handler.ErrUnauthorized.WithMessage("authentication failed"))
	}
}

func newLogger(cfg AppConfig, extractors ...logger.ContextExtractor) *slog.Logger {
	opts := cfg.Logger.Options(cfg.Env, cfg.ServiceName)
	opts = append(opts, logger.WithContextExtractors(extractors...))
	return logger.New(opts...)
}
