package identity

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tradedesk/pkg/logger"
)

type userKey struct{}

// WithUser stores u in ctx.
func WithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

// UserFromContext returns the authenticated user, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userKey{}).(*User)
	return u
}

// UserIDFromContext returns uuid.Nil, false for anonymous requests.
func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	if u := UserFromContext(ctx); u != nil && u.ID != uuid.Nil {
		return u.ID, true
	}
	return uuid.Nil, false
}

// LogExtractor adds user_id to log records of authenticated requests.
func LogExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		id, ok := UserIDFromContext(ctx)
		if !ok {
			return slog.Attr{}, false
		}
		return logger.UserID(id.String()), true
	}
}
