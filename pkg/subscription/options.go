package subscription

import (
	"log/slog"
	"time"

	"github.com/dmitrymomot/tradedesk/pkg/logger"
)

// Option configures controllers, registries and webhook processors.
type Option func(*settings)

type settings struct {
	log       *slog.Logger
	now       func() time.Time
	onChange  []ChangeHandler
	capacity  int
	dedup     Deduplicator
	broadcast int
}

func defaultSettings() settings {
	return settings{
		log:       logger.Discard(),
		now:       time.Now,
		capacity:  10_000,
		broadcast: 16,
	}
}

func applyOptions(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithLogger sets the logger. Nil is ignored.
func WithLogger(l *slog.Logger) Option {
	return func(s *settings) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock replaces time.Now, mainly for tests.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithChangeHandler registers fn to observe role changes.
func WithChangeHandler(fn ChangeHandler) Option {
	return func(s *settings) {
		if fn != nil {
			s.onChange = append(s.onChange, fn)
		}
	}
}

// WithCapacity bounds how many live controllers a Registry keeps.
func WithCapacity(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.capacity = n
		}
	}
}

// WithBroadcastBuffer sets the per-subscriber buffer of the Registry's
// status change stream.
func WithBroadcastBuffer(n int) Option {
	return func(s *settings) {
		if n > 0 {
			s.broadcast = n
		}
	}
}

// WithDeduplicator sets how a WebhookProcessor detects replayed events.
func WithDeduplicator(d Deduplicator) Option {
	return func(s *settings) {
		if d != nil {
			s.dedup = d
		}
	}
}
