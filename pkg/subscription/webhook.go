package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tradedesk/pkg/logger"
)

// WebhookProcessor verifies billing webhooks and writes their effect to the
// Store. It does not touch controllers; callers refresh the affected user
// through Registry.Invalidate.
type WebhookProcessor struct {
	provider BillingProvider
	store    Store
	settings
}

// NewWebhookProcessor panics if provider or store is nil. Without
// WithDeduplicator an in-memory deduplicator is used.
func NewWebhookProcessor(provider BillingProvider, store Store, opts ...Option) *WebhookProcessor {
	if provider == nil {
		panic("subscription: BillingProvider is required")
	}
	if store == nil {
		panic("subscription: Store is required")
	}
	p := &WebhookProcessor{
		provider: provider,
		store:    store,
		settings: applyOptions(opts),
	}
	if p.dedup == nil {
		p.dedup = NewMemoryDeduplicator(10_000, 24*time.Hour)
	}
	return p
}

// Provider names the billing provider whose webhooks this processor accepts.
func (p *WebhookProcessor) Provider() string {
	return p.provider.Name()
}

// Handle processes one delivery and returns the event with UserID resolved
// to the affected user. A replayed event returns ErrDuplicateEvent and an
// event older than the last applied one returns ErrStaleEvent; callers
// should acknowledge both as success. Event types that do not change access
// are acknowledged without touching the store.
func (p *WebhookProcessor) Handle(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	event, err := p.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		return nil, err
	}
	if event.Provider == "" {
		event.Provider = p.provider.Name()
	}

	log := p.log.With(
		logger.Component("webhook"),
		logger.Provider(event.Provider),
		logger.EventType(string(event.Type)),
		logger.EventID(event.ID),
	)

	if event.ID != "" {
		seen, err := p.dedup.Seen(ctx, event.ID)
		if err != nil {
			log.WarnContext(ctx, "webhook dedup lookup failed, processing anyway", logger.Error(err))
		}
		if seen {
			log.DebugContext(ctx, "duplicate webhook ignored")
			return event, ErrDuplicateEvent
		}
	}

	if !event.Type.Known() {
		log.DebugContext(ctx, "webhook event ignored", logger.Event(event.ProviderEvent))
		return event, nil
	}

	rec, err := p.apply(ctx, event)
	if errors.Is(err, ErrStaleEvent) {
		event.UserID = rec.UserID.String()
		p.mark(ctx, log, event)
		log.InfoContext(ctx, "stale webhook ignored",
			logger.UserID(rec.UserID),
			slog.Time("occurred_at", event.OccurredAt),
			slog.Time("last_event_at", *rec.EventAt),
		)
		return event, ErrStaleEvent
	}
	if err != nil {
		return event, err
	}
	event.UserID = rec.UserID.String()
	p.mark(ctx, log, event)

	log.InfoContext(ctx, "webhook applied",
		logger.UserID(rec.UserID),
		logger.CustomerID(rec.CustomerID),
		logger.Role(ComputeStatusAt(rec, p.now()).Role),
	)
	return event, nil
}

func (p *WebhookProcessor) mark(ctx context.Context, log *slog.Logger, event *WebhookEvent) {
	if event.ID == "" {
		return
	}
	if err := p.dedup.Mark(ctx, event.ID); err != nil {
		log.WarnContext(ctx, "webhook dedup mark failed", logger.Error(err))
	}
}

// apply loads or creates the record the event refers to, mutates it and
// saves it. Providers do not guarantee delivery order, so an event that
// occurred before the last applied one is rejected with ErrStaleEvent and
// the record it lost to is returned.
func (p *WebhookProcessor) apply(ctx context.Context, event *WebhookEvent) (*Record, error) {
	rec, err := p.resolve(ctx, event)
	if err != nil {
		return nil, err
	}
	if rec.EventAt != nil && !event.OccurredAt.IsZero() && event.OccurredAt.Before(*rec.EventAt) {
		return rec, ErrStaleEvent
	}

	switch event.Type {
	case EventCheckoutCompleted:
		rec.Tier = TierPro
		if !rec.Status.Entitled() {
			rec.Status = StatusActive
		}
	case EventSubscriptionCreated, EventSubscriptionUpdated, EventSubscriptionResumed:
		rec.Tier = TierPro
		if st := ParseStatus(event.Status); st != StatusNone {
			rec.Status = st
		} else {
			rec.Status = StatusActive
		}
	case EventSubscriptionCancelled:
		rec.Status = StatusCanceled
	case EventPaymentSucceeded:
		if rec.Status == StatusPastDue || rec.Status == StatusUnpaid || rec.Status == StatusNone {
			rec.Status = StatusActive
		}
	case EventPaymentFailed:
		rec.Status = StatusPastDue
	}

	if event.ExpiresAt != nil {
		rec.ExpiresAt = normalizeExpiry(event.ExpiresAt)
	}
	if event.CustomerID != "" {
		rec.CustomerID = event.CustomerID
	}
	if event.SubscriptionID != "" {
		rec.ProviderSubID = event.SubscriptionID
	}
	rec.Provider = event.Provider
	if !event.OccurredAt.IsZero() {
		occurred := event.OccurredAt.UTC()
		rec.EventAt = &occurred
	}
	rec.UpdatedAt = p.now()

	if err := p.store.Save(ctx, rec); err != nil {
		return nil, fmt.Errorf("save subscription for %s: %w", rec.UserID, err)
	}
	return rec, nil
}

// resolve finds the record by user reference first, then by customer id.
// Unknown users get a fresh free record that apply fills in.
func (p *WebhookProcessor) resolve(ctx context.Context, event *WebhookEvent) (*Record, error) {
	var userID uuid.UUID
	if event.UserID != "" {
		id, err := uuid.Parse(event.UserID)
		if err != nil {
			return nil, errors.Join(ErrMissingUserReference, err)
		}
		userID = id
	}

	if userID != uuid.Nil {
		rec, err := p.store.Get(ctx, userID)
		switch {
		case err == nil:
			rec.Normalize()
			return rec, nil
		case !errors.Is(err, ErrRecordNotFound):
			return nil, fmt.Errorf("load subscription for %s: %w", userID, err)
		}
	}

	if event.CustomerID != "" {
		rec, err := p.store.GetByCustomerID(ctx, event.CustomerID)
		switch {
		case err == nil:
			rec.Normalize()
			return rec, nil
		case !errors.Is(err, ErrRecordNotFound):
			return nil, fmt.Errorf("load subscription for customer %s: %w", event.CustomerID, err)
		}
	}

	if userID == uuid.Nil {
		return nil, ErrMissingUserReference
	}

	now := p.now()
	return &Record{
		UserID:    userID,
		Tier:      TierFree,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}
