package identity

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dmitrymomot/tradedesk/pkg/logger"
)

// TokenVerifier is implemented by Verifier.
type TokenVerifier interface {
	Verify(ctx context.Context, token string) (*User, error)
}

// ErrorHandler renders authentication failures.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// MiddlewareOption configures Middleware.
type MiddlewareOption func(*middleware)

type middleware struct {
	verifier TokenVerifier
	log      *slog.Logger
	onError  ErrorHandler
}

// WithErrorHandler replaces the default JSON 401 response. It is called for
// malformed headers and rejected tokens.
func WithErrorHandler(h ErrorHandler) MiddlewareOption {
	return func(m *middleware) {
		if h != nil {
			m.onError = h
		}
	}
}

// WithLogger logs rejected tokens.
func WithLogger(l *slog.Logger) MiddlewareOption {
	return func(m *middleware) {
		if l != nil {
			m.log = l
		}
	}
}

// Middleware authenticates the bearer token when one is sent. Requests
// without an Authorization header continue anonymously; a bad token is
// rejected with 401. When the auth server cannot be reached the request
// also continues anonymously, which resolves to the free tier.
func Middleware(v TokenVerifier, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	if v == nil {
		panic("identity: verifier is required")
	}
	m := &middleware{verifier: v, log: logger.Discard(), onError: writeUnauthorized}
	for _, opt := range opts {
		opt(m)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r)
				return
			}

			token, ok := bearer(header)
			if !ok {
				m.onError(w, r, ErrMalformedHeader)
				return
			}

			user, err := m.verifier.Verify(r.Context(), token)
			if errors.Is(err, ErrRemoteUnavailable) {
				m.log.WarnContext(r.Context(), "auth server unavailable, continuing anonymously",
					logger.Component("identity"),
					logger.Error(err),
				)
				next.ServeHTTP(w, r)
				return
			}
			if err != nil {
				m.log.DebugContext(r.Context(), "token rejected", logger.Component("identity"), logger.Error(err))
				m.onError(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}

func bearer(header string) (string, bool) {
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func writeUnauthorized(w http.ResponseWriter, _ *http.Request, _ error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]string{
			"code":    "unauthorized",
			"message": "authentication failed",
		},
	})
}
