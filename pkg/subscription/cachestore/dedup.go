package cachestore

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/tradedesk/pkg/subscription"
)

// Deduplicator remembers processed webhook ids in Redis so replays are
// caught across instances.
type Deduplicator struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

var _ subscription.Deduplicator = (*Deduplicator)(nil)

// NewDeduplicator keeps ids for 72 hours by default, longer than the
// retry window of the supported providers.
func NewDeduplicator(client redis.UniversalClient, opts ...Option) *Deduplicator {
	if client == nil {
		panic("cachestore: redis client is required")
	}
	o := apply(72*time.Hour, opts)
	return &Deduplicator{
		client: client,
		prefix: o.prefix + "webhook:",
		ttl:    o.ttl,
	}
}

func (d *Deduplicator) Seen(ctx context.Context, eventID string) (bool, error) {
	n, err := d.client.Exists(ctx, d.prefix+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (d *Deduplicator) Mark(ctx context.Context, eventID string) error {
	return d.client.Set(ctx, d.prefix+eventID, 1, d.ttl).Err()
}
