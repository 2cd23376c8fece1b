package subscription

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tradedesk/pkg/logger"
	"github.com/dmitrymomot/tradedesk/pkg/statemachine"
)

// Controller owns the access state of one user. Reads are lock free; the
// cached snapshot is replaced wholesale by Refresh, last writer wins. The
// snapshot swap and the lifecycle step happen under mu so the reported
// transitions always match the cached role.
type Controller struct {
	userID   uuid.UUID
	store    Store
	provider BillingProvider
	settings

	snapshot atomic.Pointer[snapshot]
	loadMu   sync.Mutex

	mu        sync.Mutex
	lifecycle statemachine.StateMachine
}

type snapshot struct {
	record   *Record
	loadedAt time.Time
	// failed marks a load that could not reach the store. The snapshot
	// answers free but is retried by the next ensureLoaded.
	failed bool
}

// NewController creates a controller for userID. uuid.Nil is the anonymous
// user, which always resolves to free. Panics if store or provider is nil.
func NewController(userID uuid.UUID, store Store, provider BillingProvider, opts ...Option) *Controller {
	if store == nil {
		panic("subscription: Store is required")
	}
	if provider == nil {
		panic("subscription: BillingProvider is required")
	}
	return &Controller{
		userID:   userID,
		store:    store,
		provider: provider,
		settings: applyOptions(opts),
	}
}

// UserID returns the user this controller serves.
func (c *Controller) UserID() uuid.UUID { return c.userID }

// Status derives the current access status from the cached record. Before
// the first Refresh the user is free.
func (c *Controller) Status() AccessStatus {
	snap := c.snapshot.Load()
	if snap == nil {
		return AccessStatus{Role: RoleFree}
	}
	return ComputeStatusAt(snap.record, c.now())
}

// CanAccess reports whether the cached status unlocks f.
func (c *Controller) CanAccess(f Feature) bool {
	return CanAccessFeature(f, c.Status())
}

// LoadedAt reports when the cached record was last pulled from the store.
func (c *Controller) LoadedAt() time.Time {
	if snap := c.snapshot.Load(); snap != nil {
		return snap.loadedAt
	}
	return time.Time{}
}

// Record returns a copy of the cached record, or nil.
func (c *Controller) Record() *Record {
	if snap := c.snapshot.Load(); snap != nil {
		return snap.record.Clone()
	}
	return nil
}

// Refresh re-reads the record and replaces the cached status. It never
// fails: a missing identity or an unreadable record resolves to free and
// the cause is logged. A failed read is not a role change, so nothing is
// published for it.
func (c *Controller) Refresh(ctx context.Context) AccessStatus {
	rec, err := c.load(ctx)
	failed := false
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		c.log.DebugContext(ctx, "refresh without identity resolved to free",
			logger.Component("subscription"),
		)
	case err != nil:
		failed = true
		c.log.WarnContext(ctx, "subscription record unavailable, resolved to free",
			logger.Component("subscription"),
			logger.UserID(c.userID),
			logger.Error(err),
		)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.snapshot.Store(&snapshot{record: rec, loadedAt: now, failed: failed})

	status := ComputeStatusAt(rec, now)
	if !failed {
		c.observe(ctx, status)
	}
	return status
}

// Degraded reports whether the last load failed to reach the store.
func (c *Controller) Degraded() bool {
	snap := c.snapshot.Load()
	return snap != nil && snap.failed
}

// ensureLoaded runs the first Refresh once, so concurrent callers never
// observe the pre-load free status. A failed load is retried.
func (c *Controller) ensureLoaded(ctx context.Context) {
	if !c.needsLoad() {
		return
	}
	c.loadMu.Lock()
	defer c.loadMu.Unlock()
	if c.needsLoad() {
		c.Refresh(ctx)
	}
}

func (c *Controller) needsLoad() bool {
	snap := c.snapshot.Load()
	return snap == nil || snap.failed
}

func (c *Controller) load(ctx context.Context) (*Record, error) {
	if c.userID == uuid.Nil {
		return nil, ErrNotAuthenticated
	}
	rec, err := c.store.Get(ctx, c.userID)
	if errors.Is(err, ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrRecordUnavailable, err)
	}
	rec = rec.Clone()
	rec.Normalize()
	return rec, nil
}

// observe feeds the new role into the lifecycle. The first observation only
// seeds the machine so loading an existing subscriber is not reported as a
// change. Callers hold c.mu.
func (c *Controller) observe(ctx context.Context, status AccessStatus) {
	if c.lifecycle == nil {
		c.lifecycle = newLifecycle(status.Role, c.notify)
		return
	}

	from, _ := c.lifecycle.Current().(Role)
	if from == status.Role {
		return
	}
	event, ok := TransitionEvent(from, status.Role)
	if !ok {
		return
	}

	change := StatusChange{
		UserID: c.userID,
		From:   from,
		To:     status.Role,
		Event:  event.Name(),
		Status: status,
		At:     c.now(),
	}
	if err := c.lifecycle.Fire(ctx, event, change); err != nil {
		c.log.ErrorContext(ctx, "role transition rejected",
			logger.Component("subscription"),
			logger.UserID(c.userID),
			logger.Transition(from, status.Role),
			logger.Error(err),
		)
	}
}

func (c *Controller) notify(ctx context.Context, change StatusChange) {
	c.log.InfoContext(ctx, "subscription role changed",
		logger.Component("subscription"),
		logger.UserID(change.UserID),
		logger.Transition(change.From, change.To),
		logger.Event(change.Event),
	)
	for _, fn := range c.onChange {
		fn(ctx, change)
	}
}

// RequestUpgrade opens a hosted checkout for the pro plan. The cached status
// is left untouched; it changes once the provider's webhook lands and the
// controller is refreshed.
func (c *Controller) RequestUpgrade(ctx context.Context, opts CheckoutOptions) (*CheckoutLink, error) {
	if c.userID == uuid.Nil {
		return nil, errors.Join(ErrCheckoutInitiationFailed, ErrNotAuthenticated)
	}
	if c.Status().Role == RolePro {
		return nil, errors.Join(ErrCheckoutInitiationFailed, ErrAlreadySubscribed)
	}

	req := CheckoutRequest{
		UserID:     c.userID.String(),
		Email:      opts.Email,
		SuccessURL: opts.SuccessURL,
		CancelURL:  opts.CancelURL,
	}
	if rec := c.Record(); rec != nil {
		req.CustomerID = rec.CustomerID
	}

	link, err := c.provider.CreateCheckoutLink(ctx, req)
	if err != nil {
		c.logInitiationFailure(ctx, "checkout", err)
		return nil, errors.Join(ErrCheckoutInitiationFailed, err)
	}
	if link == nil || link.URL == "" {
		return nil, errors.Join(ErrCheckoutInitiationFailed, ErrNoCheckoutURL)
	}
	return link, nil
}

// RequestPortal opens the provider's customer portal for users that already
// have a billing customer.
func (c *Controller) RequestPortal(ctx context.Context, opts PortalOptions) (*PortalLink, error) {
	if c.userID == uuid.Nil {
		return nil, errors.Join(ErrPortalInitiationFailed, ErrNotAuthenticated)
	}
	rec := c.Record()
	if rec == nil || rec.CustomerID == "" {
		return nil, errors.Join(ErrPortalInitiationFailed, ErrNoCustomer)
	}

	link, err := c.provider.CreatePortalLink(ctx, PortalRequest{
		CustomerID:     rec.CustomerID,
		SubscriptionID: rec.ProviderSubID,
		ReturnURL:      opts.ReturnURL,
	})
	if err != nil {
		c.logInitiationFailure(ctx, "portal", err)
		return nil, errors.Join(ErrPortalInitiationFailed, err)
	}
	if link == nil || link.URL == "" {
		return nil, errors.Join(ErrPortalInitiationFailed, ErrNoPortalURL)
	}
	return link, nil
}

func (c *Controller) logInitiationFailure(ctx context.Context, kind string, err error) {
	c.log.LogAttrs(ctx, slog.LevelError, kind+" initiation failed",
		logger.Component("subscription"),
		logger.UserID(c.userID),
		logger.Provider(c.provider.Name()),
		logger.Error(err),
	)
}
