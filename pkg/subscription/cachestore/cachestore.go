// Package cachestore puts a Redis read-through cache in front of another
// subscription.Store and provides a Redis backed webhook deduplicator.
package cachestore

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/tradedesk/pkg/logger"
	"github.com/dmitrymomot/tradedesk/pkg/subscription"
)

// Store caches Get results in Redis. Writes go to the inner store first and
// then drop the cached copy. Redis failures never fail a read.
type Store struct {
	inner  subscription.Store
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

var _ subscription.Store = (*Store)(nil)

// Option configures a Store or Deduplicator.
type Option func(*options)

type options struct {
	prefix string
	ttl    time.Duration
	log    *slog.Logger
}

// WithPrefix namespaces every key.
func WithPrefix(prefix string) Option {
	return func(o *options) { o.prefix = prefix }
}

// WithTTL sets how long entries live.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// WithLogger sets the logger used for degraded cache operations.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.log = l
		}
	}
}

func apply(ttl time.Duration, opts []Option) options {
	o := options{prefix: "tradedesk:", ttl: ttl, log: logger.Discard()}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// New panics if inner or client is nil. Entries live 5 minutes by default.
func New(inner subscription.Store, client redis.UniversalClient, opts ...Option) *Store {
	if inner == nil {
		panic("cachestore: inner store is required")
	}
	if client == nil {
		panic("cachestore: redis client is required")
	}
	o := apply(5*time.Minute, opts)
	return &Store{
		inner:  inner,
		client: client,
		prefix: o.prefix + "sub:",
		ttl:    o.ttl,
		log:    o.log.With(logger.Component("cachestore")),
	}
}

func (s *Store) key(userID uuid.UUID) string {
	return s.prefix + userID.String()
}

func (s *Store) Get(ctx context.Context, userID uuid.UUID) (*subscription.Record, error) {
	raw, err := s.client.Get(ctx, s.key(userID)).Bytes()
	switch {
	case err == nil:
		var rec subscription.Record
		if err := json.Unmarshal(raw, &rec); err == nil {
			return &rec, nil
		}
		s.log.WarnContext(ctx, "dropping undecodable cache entry", logger.UserID(userID))
	case !errors.Is(err, redis.Nil):
		s.log.WarnContext(ctx, "cache read failed", logger.UserID(userID), logger.Error(err))
	}

	rec, err := s.inner.Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	s.put(ctx, rec)
	return rec, nil
}

// GetByCustomerID is only used by webhooks and is not cached.
func (s *Store) GetByCustomerID(ctx context.Context, customerID string) (*subscription.Record, error) {
	return s.inner.GetByCustomerID(ctx, customerID)
}

func (s *Store) Save(ctx context.Context, rec *subscription.Record) error {
	if err := s.inner.Save(ctx, rec); err != nil {
		return err
	}
	s.Invalidate(ctx, rec.UserID)
	return nil
}

// Invalidate drops the cached record for userID.
func (s *Store) Invalidate(ctx context.Context, userID uuid.UUID) {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		s.log.WarnContext(ctx, "cache invalidation failed", logger.UserID(userID), logger.Error(err))
	}
}

func (s *Store) put(ctx context.Context, rec *subscription.Record) {
	raw, err := json.Marshal(rec)
	if err != nil {
		return
	}
	if err := s.client.Set(ctx, s.key(rec.UserID), raw, s.ttl).Err(); err != nil {
		s.log.WarnContext(ctx, "cache write failed", logger.UserID(rec.UserID), logger.Error(err))
	}
}
