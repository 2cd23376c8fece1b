package subscription_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tradedesk/pkg/subscription"
)

func TestNewPaddleProvider(t *testing.T) {
	t.Parallel()

	valid := subscription.PaddleConfig{
		APIKey:        "pdl_sdbx_key",
		WebhookSecret: "pdl_ntfset_secret",
		ProPriceID:    "pri_pro",
		Environment:   "sandbox",
	}

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		p, err := subscription.NewPaddleProvider(valid)
		require.NoError(t, err)
		assert.Equal(t, "paddle", p.Name())
	})

	t.Run("missing fields", func(t *testing.T) {
		t.Parallel()
		cfg := valid
		cfg.APIKey = ""
		_, err := subscription.NewPaddleProvider(cfg)
		assert.ErrorIs(t, err, subscription.ErrMissingAPIKey)

		cfg = valid
		cfg.WebhookSecret = ""
		_, err = subscription.NewPaddleProvider(cfg)
		assert.ErrorIs(t, err, subscription.ErrMissingWebhookSecret)

		cfg = valid
		cfg.ProPriceID = ""
		_, err = subscription.NewPaddleProvider(cfg)
		assert.ErrorIs(t, err, subscription.ErrMissingPriceID)
	})

	t.Run("unknown environment", func(t *testing.T) {
		t.Parallel()
		cfg := valid
		cfg.Environment = "staging"
		_, err := subscription.NewPaddleProvider(cfg)
		assert.ErrorIs(t, err, subscription.ErrInvalidProviderEnv)
	})
}

func TestPaddleProvider_RejectsUnsignedWebhook(t *testing.T) {
	t.Parallel()

	p, err := subscription.NewPaddleProvider(subscription.PaddleConfig{
		APIKey:        "pdl_sdbx_key",
		WebhookSecret: "pdl_ntfset_secret",
		ProPriceID:    "pri_pro",
		Environment:   "sandbox",
	})
	require.NoError(t, err)

	_, err = p.ParseWebhook(context.Background(), []byte(`{"event_type":"subscription.created"}`), "ts=1;h1=deadbeef")
	assert.ErrorIs(t, err, subscription.ErrWebhookVerificationFailed)

	_, err = p.ParseWebhook(context.Background(), []byte(`{}`), "")
	assert.ErrorIs(t, err, subscription.ErrWebhookVerificationFailed)
}

func TestPaddleProvider_PortalRequiresCustomer(t *testing.T) {
	t.Parallel()

	p, err := subscription.NewPaddleProvider(subscription.PaddleConfig{
		APIKey:        "pdl_sdbx_key",
		WebhookSecret: "pdl_ntfset_secret",
		ProPriceID:    "pri_pro",
	})
	require.NoError(t, err)

	_, err = p.CreatePortalLink(context.Background(), subscription.PortalRequest{})
	assert.ErrorIs(t, err, subscription.ErrNoCustomer)
}
