package subscription

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tradedesk/pkg/broadcast"
	"github.com/dmitrymomot/tradedesk/pkg/cache"
	"github.com/dmitrymomot/tradedesk/pkg/logger"
)

// Registry hands out one Controller per user and fans role changes out to
// subscribers. It replaces any process-wide singleton: create one at
// startup and pass it to whoever needs access decisions.
type Registry struct {
	store    Store
	provider BillingProvider
	opts     []Option
	settings

	controllers *cache.LRUCache[uuid.UUID, *Controller]
	changes     *broadcast.MemoryBroadcaster[StatusChange]
}

// NewRegistry panics if store or provider is nil.
func NewRegistry(store Store, provider BillingProvider, opts ...Option) *Registry {
	if store == nil {
		panic("subscription: Store is required")
	}
	if provider == nil {
		panic("subscription: BillingProvider is required")
	}

	r := &Registry{
		store:    store,
		provider: provider,
		settings: applyOptions(opts),
	}
	r.changes = broadcast.NewMemoryBroadcaster[StatusChange](r.broadcast)
	r.controllers = cache.NewLRUCache[uuid.UUID, *Controller](r.capacity)

	// Controllers share the registry's options plus the fan-out hook.
	r.opts = append(append([]Option{}, opts...), WithChangeHandler(r.publish))
	return r
}

// For returns the live controller for userID, creating and refreshing it on
// first use. The anonymous user gets a fresh, uncached controller.
func (r *Registry) For(ctx context.Context, userID uuid.UUID) *Controller {
	if userID == uuid.Nil {
		c := NewController(uuid.Nil, r.store, r.provider, r.opts...)
		c.Refresh(ctx)
		return c
	}

	c, _ := r.controllers.GetOrAdd(userID, func() *Controller {
		return NewController(userID, r.store, r.provider, r.opts...)
	})
	c.ensureLoaded(ctx)
	return c
}

// Lookup returns the live controller for userID without creating one.
func (r *Registry) Lookup(userID uuid.UUID) (*Controller, bool) {
	return r.controllers.Get(userID)
}

// Invalidate refreshes the live controller for userID, if any, so a
// webhook-driven change reaches connected clients. It reports whether a
// controller was live.
func (r *Registry) Invalidate(ctx context.Context, userID uuid.UUID) (AccessStatus, bool) {
	c, ok := r.controllers.Get(userID)
	if !ok {
		return AccessStatus{}, false
	}
	return c.Refresh(ctx), true
}

// Forget drops the controller for userID.
func (r *Registry) Forget(userID uuid.UUID) {
	r.controllers.Remove(userID)
}

// Len reports how many controllers are live.
func (r *Registry) Len() int {
	return r.controllers.Len()
}

// Subscribe streams every role change until ctx is done.
func (r *Registry) Subscribe(ctx context.Context) broadcast.Subscriber[StatusChange] {
	return r.changes.Subscribe(ctx)
}

// Close stops the change stream and drops all controllers.
func (r *Registry) Close() error {
	r.controllers.Clear()
	return r.changes.Close()
}

func (r *Registry) publish(ctx context.Context, change StatusChange) {
	if err := r.changes.Broadcast(ctx, broadcast.Message[StatusChange]{Data: change}); err != nil {
		r.log.DebugContext(ctx, "status change not broadcast",
			logger.Component("subscription"),
			logger.UserID(change.UserID),
			logger.Error(err),
		)
	}
}
