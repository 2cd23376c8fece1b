package subscription

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// StubProvider is a BillingProvider for local development and tests. It
// returns deterministic URLs under BaseURL and accepts plain JSON webhooks.
// When a secret is set, webhooks must carry "sha256=<hex hmac>" of the body.
type StubProvider struct {
	baseURL string
	secret  string
	now     func() time.Time
}

// StubConfig configures the stub provider.
type StubConfig struct {
	BaseURL       string `env:"STUB_BILLING_URL" envDefault:"http://localhost:8080/_stub/billing"`
	WebhookSecret string `env:"STUB_WEBHOOK_SECRET"`
}

func NewStubProvider(cfg StubConfig) *StubProvider {
	return &StubProvider{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		secret:  cfg.WebhookSecret,
		now:     time.Now,
	}
}

func (p *StubProvider) Name() string { return "stub" }

func (p *StubProvider) CreateCheckoutLink(_ context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if req.UserID == "" {
		return nil, ErrNotAuthenticated
	}
	q := url.Values{"user_id": {req.UserID}}
	if req.SuccessURL != "" {
		q.Set("success_url", req.SuccessURL)
	}
	if req.CancelURL != "" {
		q.Set("cancel_url", req.CancelURL)
	}
	return &CheckoutLink{
		URL:       p.baseURL + "/checkout?" + q.Encode(),
		SessionID: "cs_stub_" + uuid.NewString(),
		ExpiresAt: p.now().Add(24 * time.Hour),
	}, nil
}

func (p *StubProvider) CreatePortalLink(_ context.Context, req PortalRequest) (*PortalLink, error) {
	if req.CustomerID == "" {
		return nil, ErrNoCustomer
	}
	q := url.Values{"customer": {req.CustomerID}}
	if req.ReturnURL != "" {
		q.Set("return_url", req.ReturnURL)
	}
	return &PortalLink{
		URL:       p.baseURL + "/portal?" + q.Encode(),
		ExpiresAt: p.now().Add(time.Hour),
	}, nil
}

type stubEvent struct {
	ID             string `json:"id"`
	Type           string `json:"type"`
	UserID         string `json:"user_id"`
	CustomerID     string `json:"customer_id"`
	SubscriptionID string `json:"subscription_id"`
	Status         string `json:"status"`
	ExpiresAt      string `json:"expires_at"`
	OccurredAt     string `json:"occurred_at"`
}

func (p *StubProvider) ParseWebhook(_ context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	if p.secret != "" && !hmac.Equal([]byte(signature), []byte(SignStubPayload(p.secret, payload))) {
		return nil, ErrWebhookVerificationFailed
	}

	var in stubEvent
	if err := json.Unmarshal(payload, &in); err != nil {
		return nil, errors.Join(ErrInvalidWebhookPayload, err)
	}
	if in.Type == "" {
		return nil, ErrInvalidWebhookPayload
	}

	occurred := p.now()
	if t := ParseExpiry(in.OccurredAt); t != nil {
		occurred = *t
	}

	return &WebhookEvent{
		ID:             in.ID,
		Type:           EventType(in.Type),
		ProviderEvent:  in.Type,
		Provider:       p.Name(),
		UserID:         in.UserID,
		CustomerID:     in.CustomerID,
		SubscriptionID: in.SubscriptionID,
		Status:         in.Status,
		ExpiresAt:      ParseExpiry(in.ExpiresAt),
		OccurredAt:     occurred,
	}, nil
}

// SignStubPayload computes the signature StubProvider expects for payload.
func SignStubPayload(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
