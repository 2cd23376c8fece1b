package subscription

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	ProPriceID    string `env:"PADDLE_PRO_PRICE_ID,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements BillingProvider on Paddle Billing.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	cfg      PaddleConfig
	now      func() time.Time
}

func NewPaddleProvider(cfg PaddleConfig) (*PaddleProvider, error) {
	switch {
	case cfg.APIKey == "":
		return nil, ErrMissingAPIKey
	case cfg.WebhookSecret == "":
		return nil, ErrMissingWebhookSecret
	case cfg.ProPriceID == "":
		return nil, ErrMissingPriceID
	}

	var (
		client *paddle.SDK
		err    error
	)
	switch strings.ToLower(cfg.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(cfg.APIKey)
	case "production", "":
		client, err = paddle.New(cfg.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidProviderEnv, cfg.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("create paddle client: %w", err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(cfg.WebhookSecret),
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

func (p *PaddleProvider) Name() string { return "paddle" }

// CreateCheckoutLink creates a transaction for the pro price. Paddle echoes
// custom_data back on every subscription webhook, which is how events are
// tied to users.
func (p *PaddleProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if req.UserID == "" {
		return nil, ErrNotAuthenticated
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  p.cfg.ProPriceID,
		Quantity: 1,
	})

	txReq := &paddle.CreateTransactionRequest{
		Items:      []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{"user_id": req.UserID},
	}
	if req.SuccessURL != "" {
		txReq.Checkout = &paddle.TransactionCheckout{URL: paddle.PtrTo(req.SuccessURL)}
	}

	tx, err := p.client.TransactionsClient.CreateTransaction(ctx, txReq)
	if err != nil {
		return nil, fmt.Errorf("create paddle transaction: %w", err)
	}
	if tx.Checkout == nil || tx.Checkout.URL == nil || *tx.Checkout.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutLink{
		URL:       *tx.Checkout.URL,
		SessionID: tx.ID,
		ExpiresAt: p.now().Add(24 * time.Hour),
	}, nil
}

// CreatePortalLink opens a portal session for the Paddle customer (ctm_...).
func (p *PaddleProvider) CreatePortalLink(ctx context.Context, req PortalRequest) (*PortalLink, error) {
	if req.CustomerID == "" {
		return nil, ErrNoCustomer
	}

	sessReq := &paddle.CreateCustomerPortalSessionRequest{CustomerID: req.CustomerID}
	if req.SubscriptionID != "" {
		sessReq.SubscriptionIDs = []string{req.SubscriptionID}
	}

	sess, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, sessReq)
	if err != nil {
		return nil, fmt.Errorf("create paddle portal session: %w", err)
	}

	link := &PortalLink{
		URL:       sess.URLs.General.Overview,
		ExpiresAt: p.now().Add(24 * time.Hour),
	}
	for _, sub := range sess.URLs.Subscriptions {
		if sub.ID == req.SubscriptionID {
			link.CancelURL = sub.CancelSubscription
			link.UpdatePaymentURL = sub.UpdateSubscriptionPaymentMethod
			break
		}
	}
	if link.URL == "" {
		return nil, ErrNoPortalURL
	}
	return link, nil
}

// paddleNotification decodes the parts of a Paddle notification this
// service reads. Subscription and transaction payloads share these keys.
type paddleNotification struct {
	EventID    string `json:"event_id"`
	EventType  string `json:"event_type"`
	OccurredAt string `json:"occurred_at"`
	Data       struct {
		ID                   string            `json:"id"`
		Status               string            `json:"status"`
		CustomerID           string            `json:"customer_id"`
		SubscriptionID       string            `json:"subscription_id"`
		CustomData           map[string]any    `json:"custom_data"`
		NextBilledAt         string            `json:"next_billed_at"`
		CanceledAt           string            `json:"canceled_at"`
		CurrentBillingPeriod *struct {
			EndsAt string `json:"ends_at"`
		} `json:"current_billing_period"`
		ScheduledChange *struct {
			Action      string `json:"action"`
			EffectiveAt string `json:"effective_at"`
		} `json:"scheduled_change"`
	} `json:"data"`
}

var paddleEventTypes = map[string]EventType{
	"transaction.completed":      EventCheckoutCompleted,
	"transaction.paid":           EventPaymentSucceeded,
	"transaction.payment_failed": EventPaymentFailed,
	"subscription.created":       EventSubscriptionCreated,
	"subscription.activated":     EventSubscriptionUpdated,
	"subscription.updated":       EventSubscriptionUpdated,
	"subscription.trialing":      EventSubscriptionUpdated,
	"subscription.past_due":      EventSubscriptionUpdated,
	"subscription.paused":        EventSubscriptionUpdated,
	"subscription.resumed":       EventSubscriptionResumed,
	"subscription.canceled":      EventSubscriptionCancelled,
}

// ParseWebhook verifies the Paddle-Signature header through the SDK
// verifier, which works on an *http.Request.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build verification request: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}

	var n paddleNotification
	if err := json.Unmarshal(payload, &n); err != nil {
		return nil, errors.Join(ErrInvalidWebhookPayload, err)
	}

	out := &WebhookEvent{
		ID:            n.EventID,
		Type:          EventType(n.EventType),
		ProviderEvent: n.EventType,
		Provider:      p.Name(),
		CustomerID:    n.Data.CustomerID,
		Status:        n.Data.Status,
	}
	if t := ParseExpiry(n.OccurredAt); t != nil {
		out.OccurredAt = *t
	}
	if uid, ok := n.Data.CustomData["user_id"].(string); ok {
		out.UserID = uid
	}
	if mapped, ok := paddleEventTypes[n.EventType]; ok {
		out.Type = mapped
	}

	if strings.HasPrefix(n.EventType, "subscription.") {
		out.SubscriptionID = n.Data.ID
		out.ExpiresAt = paddleExpiry(n)
	} else {
		out.SubscriptionID = n.Data.SubscriptionID
		// Transaction statuses (completed, paid) are not subscription states.
		out.Status = ""
	}
	return out, nil
}

// paddleExpiry prefers the end of the current billing period, then a
// scheduled cancellation, then the next billing date.
func paddleExpiry(n paddleNotification) *time.Time {
	d := n.Data
	if d.CurrentBillingPeriod != nil {
		if t := ParseExpiry(d.CurrentBillingPeriod.EndsAt); t != nil {
			return t
		}
	}
	if d.ScheduledChange != nil && d.ScheduledChange.Action == "cancel" {
		if t := ParseExpiry(d.ScheduledChange.EffectiveAt); t != nil {
			return t
		}
	}
	return ParseExpiry(d.NextBilledAt)
}
