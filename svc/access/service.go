package access

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/tradedesk/handler"
	"github.com/dmitrymomot/tradedesk/pkg/binder"
	"github.com/dmitrymomot/tradedesk/pkg/clientip"
	"github.com/dmitrymomot/tradedesk/pkg/identity"
	"github.com/dmitrymomot/tradedesk/pkg/logger"
	"github.com/dmitrymomot/tradedesk/pkg/ratelimiter"
	"github.com/dmitrymomot/tradedesk/pkg/subscription"
)

// Service serves the access API on top of a subscription.Registry.
type Service struct {
	registry *subscription.Registry
	webhooks *subscription.WebhookProcessor
	limiter  *ratelimiter.Bucket

	log          *slog.Logger
	metrics      *Metrics
	errorHandler handler.ErrorHandler
	pollInterval time.Duration
	maxWebhook   int64
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithMetrics records decisions, refreshes, webhooks and billing sessions.
func WithMetrics(m *Metrics) Option {
	return func(s *Service) {
		if m != nil {
			s.metrics = m
		}
	}
}

// WithErrorHandler replaces the error handler built from the logger.
func WithErrorHandler(h handler.ErrorHandler) Option {
	return func(s *Service) {
		if h != nil {
			s.errorHandler = h
		}
	}
}

// WithPollInterval sets how often an open status stream re-reads the
// record. It catches expiries and changes that arrive without a webhook.
func WithPollInterval(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.pollInterval = d
		}
	}
}

// WithMaxWebhookSize caps webhook bodies.
func WithMaxWebhookSize(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxWebhook = n
		}
	}
}

// WithRateLimiter throttles refresh and billing session requests per user,
// or per client address for anonymous callers.
func WithRateLimiter(b *ratelimiter.Bucket) Option {
	return func(s *Service) { s.limiter = b }
}

// New panics if registry or webhooks is nil.
func New(registry *subscription.Registry, webhooks *subscription.WebhookProcessor, opts ...Option) *Service {
	if registry == nil {
		panic("access: subscription registry is required")
	}
	if webhooks == nil {
		panic("access: webhook processor is required")
	}

	s := &Service{
		registry:     registry,
		webhooks:     webhooks,
		log:          logger.Discard(),
		pollInterval: time.Minute,
		maxWebhook:   1 << 20,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.metrics == nil {
		s.metrics = NewMetrics()
	}
	if s.errorHandler == nil {
		s.errorHandler = handler.NewErrorHandler(s.log)
	}
	s.log = s.log.With(logger.Component("access"))
	return s
}

// Handle returns the service routes.
func (s *Service) Handle() http.Handler {
	r := chi.NewRouter()
	r.Use(s.metrics.Middleware)

	r.Route("/v1/subscription", func(r chi.Router) {
		r.Get("/", wrap(s, s.status, handler.WithBinders(binder.Query())))
		r.Get("/features/{feature}", wrap(s, s.feature, handler.WithBinders(binder.Path(chi.URLParam))))
		r.Group(func(r chi.Router) {
			if s.limiter != nil {
				r.Use(ratelimiter.Middleware(s.limiter, limitKey,
					ratelimiter.WithLimitHandler(s.limited),
					ratelimiter.WithLogger(s.log),
				))
			}
			r.Post("/refresh", wrap(s, s.refresh))
			r.Post("/checkout", wrap(s, s.checkout, signedIn, handler.WithBinders(binder.JSON())))
			r.Post("/portal", wrap(s, s.portal, signedIn, handler.WithBinders(binder.JSON())))
		})
		r.Get("/stream", wrap(s, s.stream, handler.WithBinders(binder.Query())))
	})
	r.Post("/v1/webhooks/billing", wrap(s, s.webhook, handler.WithBinders(s.webhookBinder())))

	return r
}

// signedIn rejects anonymous callers before the body is read.
var signedIn = handler.WithGuards(func(ctx handler.Context) error {
	if _, ok := identity.UserIDFromContext(ctx); !ok {
		return handler.ErrUnauthorized.WithMessage("sign in to manage your subscription")
	}
	return nil
})

func limitKey(r *http.Request) string {
	if id, ok := identity.UserIDFromContext(r.Context()); ok {
		return "user:" + id.String()
	}
	if ip := clientip.FromContext(r.Context()); ip != "" {
		return "ip:" + ip
	}
	if ip := clientip.FromRequest(r); ip != "" {
		return "ip:" + ip
	}
	return ""
}

func (s *Service) limited(w http.ResponseWriter, r *http.Request, _ *ratelimiter.Result) {
	s.metrics.rateLimited(r)
	s.errorHandler(handler.NewContext(w, r), handler.ErrTooManyRequests)
}

func wrap[R any](s *Service, h handler.HandlerFunc[R], opts ...handler.Option) http.HandlerFunc {
	return handler.Wrap(h, append(opts, handler.WithErrorHandler(s.errorHandler))...)
}
