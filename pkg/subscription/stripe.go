package subscription

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v82"
	portalsession "github.com/stripe/stripe-go/v82/billingportal/session"
	checkoutsession "github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig holds configuration for the Stripe billing provider.
type StripeConfig struct {
	APIKey          string `env:"STRIPE_API_KEY,required"`
	WebhookSecret   string `env:"STRIPE_WEBHOOK_SECRET,required"`
	ProPriceID      string `env:"STRIPE_PRO_PRICE_ID,required"`
	SuccessURL      string `env:"STRIPE_SUCCESS_URL"`
	CancelURL       string `env:"STRIPE_CANCEL_URL"`
	PortalReturnURL string `env:"STRIPE_PORTAL_RETURN_URL"`
}

// StripeProvider implements BillingProvider on Stripe Checkout and the
// Stripe customer portal.
type StripeProvider struct {
	cfg StripeConfig
	now func() time.Time

	newCheckoutSession func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	newPortalSession   func(*stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

// stripeKeyMu serializes writes to the SDK's global key.
var stripeKeyMu sync.Mutex

// NewStripeProvider sets the process-wide Stripe API key.
func NewStripeProvider(cfg StripeConfig) (*StripeProvider, error) {
	switch {
	case strings.TrimSpace(cfg.APIKey) == "":
		return nil, ErrMissingAPIKey
	case strings.TrimSpace(cfg.WebhookSecret) == "":
		return nil, ErrMissingWebhookSecret
	case strings.TrimSpace(cfg.ProPriceID) == "":
		return nil, ErrMissingPriceID
	}

	stripeKeyMu.Lock()
	stripe.Key = strings.TrimSpace(cfg.APIKey)
	stripeKeyMu.Unlock()

	return &StripeProvider{
		cfg:                cfg,
		now:                time.Now,
		newCheckoutSession: checkoutsession.New,
		newPortalSession:   portalsession.New,
	}, nil
}

func (p *StripeProvider) Name() string { return "stripe" }

func (p *StripeProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if req.UserID == "" {
		return nil, ErrNotAuthenticated
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		SuccessURL:        stripe.String(firstNonEmpty(req.SuccessURL, p.cfg.SuccessURL)),
		CancelURL:         stripe.String(firstNonEmpty(req.CancelURL, p.cfg.CancelURL)),
		ClientReferenceID: stripe.String(req.UserID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.cfg.ProPriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{"user_id": req.UserID},
		},
	}
	params.Context = ctx
	params.AddMetadata("user_id", req.UserID)

	switch {
	case req.CustomerID != "":
		params.Customer = stripe.String(req.CustomerID)
	case req.Email != "":
		params.CustomerEmail = stripe.String(req.Email)
	}

	session, err := p.newCheckoutSession(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe checkout session: %w", err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return nil, ErrNoCheckoutURL
	}

	link := &CheckoutLink{
		URL:       session.URL,
		SessionID: session.ID,
		ExpiresAt: p.now().Add(24 * time.Hour),
	}
	if session.ExpiresAt > 0 {
		link.ExpiresAt = time.Unix(session.ExpiresAt, 0).UTC()
	}
	return link, nil
}

func (p *StripeProvider) CreatePortalLink(ctx context.Context, req PortalRequest) (*PortalLink, error) {
	if req.CustomerID == "" {
		return nil, ErrNoCustomer
	}

	params := &stripe.BillingPortalSessionParams{
		Customer: stripe.String(req.CustomerID),
	}
	if ret := firstNonEmpty(req.ReturnURL, p.cfg.PortalReturnURL); ret != "" {
		params.ReturnURL = stripe.String(ret)
	}
	params.Context = ctx

	session, err := p.newPortalSession(params)
	if err != nil {
		return nil, fmt.Errorf("create stripe portal session: %w", err)
	}
	if session == nil || strings.TrimSpace(session.URL) == "" {
		return nil, ErrNoPortalURL
	}

	return &PortalLink{
		URL:       session.URL,
		ExpiresAt: p.now().Add(5 * time.Minute),
	}, nil
}

// stripeObject decodes the fields this service needs from checkout
// sessions, subscriptions and invoices.
type stripeObject struct {
	ID                string            `json:"id"`
	Object            string            `json:"object"`
	Status            string            `json:"status"`
	Customer          string            `json:"customer"`
	Subscription      string            `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
	CurrentPeriodEnd  int64             `json:"current_period_end"`
	Items             struct {
		Data []struct {
			CurrentPeriodEnd int64 `json:"current_period_end"`
		} `json:"data"`
	} `json:"items"`
	Parent struct {
		SubscriptionDetails struct {
			Subscription string            `json:"subscription"`
			Metadata     map[string]string `json:"metadata"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// periodEnd returns the latest billing period end. Newer API versions moved
// it from the subscription onto its items.
func (o stripeObject) periodEnd() *time.Time {
	end := o.CurrentPeriodEnd
	for _, item := range o.Items.Data {
		end = max(end, item.CurrentPeriodEnd)
	}
	if end <= 0 {
		return nil
	}
	t := time.Unix(end, 0).UTC()
	return &t
}

var stripeEventTypes = map[stripe.EventType]EventType{
	"checkout.session.completed":    EventCheckoutCompleted,
	"customer.subscription.created": EventSubscriptionCreated,
	"customer.subscription.updated": EventSubscriptionUpdated,
	"customer.subscription.paused":  EventSubscriptionUpdated,
	"customer.subscription.resumed": EventSubscriptionResumed,
	"customer.subscription.deleted": EventSubscriptionCancelled,
	"invoice.paid":                  EventPaymentSucceeded,
	"invoice.payment_succeeded":     EventPaymentSucceeded,
	"invoice.payment_failed":        EventPaymentFailed,
}

func (p *StripeProvider) ParseWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if strings.TrimSpace(signature) == "" {
		return nil, ErrWebhookVerificationFailed
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, p.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}

	out := &WebhookEvent{
		ID:            event.ID,
		Type:          EventType(event.Type),
		ProviderEvent: string(event.Type),
		Provider:      p.Name(),
		OccurredAt:    time.Unix(event.Created, 0).UTC(),
	}
	mapped, ok := stripeEventTypes[event.Type]
	if !ok || event.Data == nil {
		return out, nil
	}
	out.Type = mapped

	var obj stripeObject
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, errors.Join(ErrInvalidWebhookPayload, err)
	}

	out.CustomerID = obj.Customer
	out.UserID = firstNonEmpty(obj.ClientReferenceID, obj.Metadata["user_id"], obj.Parent.SubscriptionDetails.Metadata["user_id"])

	switch obj.Object {
	case "subscription":
		out.SubscriptionID = obj.ID
		out.Status = obj.Status
		out.ExpiresAt = obj.periodEnd()
	case "checkout.session":
		out.SubscriptionID = obj.Subscription
	case "invoice":
		out.SubscriptionID = firstNonEmpty(obj.Subscription, obj.Parent.SubscriptionDetails.Subscription)
	}
	return out, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
