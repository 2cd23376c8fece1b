package subscription

import (
	"context"
	"time"
)

// BillingProvider wraps a hosted payment processor. Checkout and portal
// pages live on the processor, so this service never handles card data.
type BillingProvider interface {
	// Name identifies the provider on stored records, e.g. "stripe".
	Name() string

	// CreateCheckoutLink opens a hosted checkout for the pro plan.
	CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error)

	// CreatePortalLink opens the processor's self-service portal for an
	// existing customer.
	CreatePortalLink(ctx context.Context, req PortalRequest) (*PortalLink, error)

	// ParseWebhook verifies the signature and normalizes the event.
	// Verification failures wrap ErrWebhookVerificationFailed.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}

// CheckoutRequest carries what a provider needs to open a checkout.
type CheckoutRequest struct {
	UserID     string // internal user id, echoed back in webhooks
	CustomerID string // existing processor customer, if any
	Email      string
	SuccessURL string
	CancelURL  string
}

// PortalRequest carries what a provider needs to open the customer portal.
type PortalRequest struct {
	CustomerID     string
	SubscriptionID string
	ReturnURL      string
}

// CheckoutOptions are the caller supplied parts of a checkout.
type CheckoutOptions struct {
	Email      string `json:"email,omitempty"`
	SuccessURL string `json:"success_url,omitempty"`
	CancelURL  string `json:"cancel_url,omitempty"`
}

// PortalOptions are the caller supplied parts of a portal session.
type PortalOptions struct {
	ReturnURL string `json:"return_url,omitempty"`
}

// CheckoutLink is a hosted checkout session.
type CheckoutLink struct {
	URL       string    `json:"url"`
	SessionID string    `json:"session_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// PortalLink is a pre-authenticated customer portal session.
type PortalLink struct {
	URL              string    `json:"url"`
	CancelURL        string    `json:"cancel_url,omitempty"`
	UpdatePaymentURL string    `json:"update_payment_url,omitempty"`
	ExpiresAt        time.Time `json:"expires_at"`
}

// EventType is the provider independent webhook event kind.
type EventType string

const (
	EventCheckoutCompleted     EventType = "checkout_completed"
	EventSubscriptionCreated   EventType = "subscription_created"
	EventSubscriptionUpdated   EventType = "subscription_updated"
	EventSubscriptionCancelled EventType = "subscription_cancelled"
	EventSubscriptionResumed   EventType = "subscription_resumed"
	EventPaymentSucceeded      EventType = "payment_succeeded"
	EventPaymentFailed         EventType = "payment_failed"
)

// Known reports whether the event type changes subscription state.
func (t EventType) Known() bool {
	switch t {
	case EventCheckoutCompleted, EventSubscriptionCreated, EventSubscriptionUpdated,
		EventSubscriptionCancelled, EventSubscriptionResumed,
		EventPaymentSucceeded, EventPaymentFailed:
		return true
	}
	return false
}

// WebhookEvent is a verified, normalized billing event.
type WebhookEvent struct {
	ID             string
	Type           EventType
	ProviderEvent  string
	Provider       string
	UserID         string // from checkout reference or metadata, may be empty
	CustomerID     string
	SubscriptionID string
	Status         string
	ExpiresAt      *time.Time
	OccurredAt     time.Time
}
