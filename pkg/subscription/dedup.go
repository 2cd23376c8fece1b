package subscription

import (
	"context"
	"time"

	"github.com/dmitrymomot/tradedesk/pkg/cache"
)

// Deduplicator remembers processed webhook event ids. Seen is checked before
// an event is applied and Mark is called only after it was stored, so a
// delivery that failed half way is processed again on retry.
type Deduplicator interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Mark(ctx context.Context, eventID string) error
}

// MemoryDeduplicator keeps recent event ids in a bounded LRU.
type MemoryDeduplicator struct {
	seen *cache.LRUCache[string, struct{}]
}

// NewMemoryDeduplicator remembers up to capacity ids for ttl each.
func NewMemoryDeduplicator(capacity int, ttl time.Duration) *MemoryDeduplicator {
	return &MemoryDeduplicator{
		seen: cache.NewLRUCache(capacity, cache.WithTTL[string, struct{}](ttl)),
	}
}

func (d *MemoryDeduplicator) Seen(_ context.Context, eventID string) (bool, error) {
	_, ok := d.seen.Get(eventID)
	return ok, nil
}

func (d *MemoryDeduplicator) Mark(_ context.Context, eventID string) error {
	d.seen.Put(eventID, struct{}{})
	return nil
}
