package access_test

import (
	"bufio"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tradedesk/handler"
	"github.com/dmitrymomot/tradedesk/pkg/identity"
	"github.com/dmitrymomot/tradedesk/pkg/ratelimiter"
	"github.com/dmitrymomot/tradedesk/pkg/subscription"
	"github.com/dmitrymomot/tradedesk/svc/access"
)

const webhookSecret = "whsec_test"

type harness struct {
	store    *subscription.MemoryStore
	registry *subscription.Registry
	metrics  *access.Metrics
	handler  http.Handler
}

func newHarness(t *testing.T, seed ...*subscription.Record) *harness {
	t.Helper()

	store := subscription.NewMemoryStore(seed...)
	provider := subscription.NewStubProvider(subscription.StubConfig{
		BaseURL:       "https://billing.test",
		WebhookSecret: webhookSecret,
	})
	metrics := access.NewMetrics()
	registry := subscription.NewRegistry(store, provider, subscription.WithChangeHandler(metrics.ObserveChange))
	t.Cleanup(func() { _ = registry.Close() })

	svc := access.New(registry, subscription.NewWebhookProcessor(provider, store),
		access.WithMetrics(metrics),
		access.WithPollInterval(time.Hour),
	)

	// X-Test-User stands in for the identity middleware.
	routes := svc.Handle()
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get("X-Test-User"); id != "" {
			r = r.WithContext(identity.WithUser(r.Context(), &identity.User{ID: uuid.MustParse(id), Email: "trader@example.com"}))
		}
		routes.ServeHTTP(w, r)
	})

	return &harness{store: store, registry: registry, metrics: metrics, handler: h}
}

func (h *harness) do(t *testing.T, method, target string, userID uuid.UUID, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if userID != uuid.Nil {
		req.Header.Set("X-Test-User", userID.String())
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func (h *harness) scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	h.metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rec.Body.String()
}

func envelope[T any](t *testing.T, rec *httptest.ResponseRecorder) (T, *handler.ErrorDetail) {
	t.Helper()
	var body struct {
		Data  T                    `json:"data"`
		Error *handler.ErrorDetail `json:"error"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return body.Data, body.Error
}

func proRecord(userID uuid.UUID, expiresIn time.Duration) *subscription.Record {
	exp := time.Now().Add(expiresIn)
	return &subscription.Record{
		UserID:     userID,
		Tier:       subscription.TierPro,
		Status:     subscription.StatusActive,
		ExpiresAt:  &exp,
		CustomerID: "cus_123",
	}
}

func TestStatus(t *testing.T) {
	t.Parallel()

	proUser := uuid.New()
	h := newHarness(t, proRecord(proUser, 10*24*time.Hour))

	t.Run("anonymous is free", func(t *testing.T) {
		t.Parallel()
		rec := h.do(t, http.MethodGet, "/v1/subscription", uuid.Nil, "")
		require.Equal(t, http.StatusOK, rec.Code)

		st, _ := envelope[access.StatusResponse](t, rec)
		assert.Equal(t, subscription.RoleFree, st.Role)
		assert.Nil(t, st.DaysUntilExpiry)
		assert.False(t, st.Features[subscription.FeatureStrategyAI])
		assert.False(t, st.CanManage)
	})

	t.Run("pro user", func(t *testing.T) {
		t.Parallel()
		rec := h.do(t, http.MethodGet, "/v1/subscription", proUser, "")
		require.Equal(t, http.StatusOK, rec.Code)

		st, _ := envelope[access.StatusResponse](t, rec)
		assert.Equal(t, subscription.RolePro, st.Role)
		require.NotNil(t, st.DaysUntilExpiry)
		assert.Equal(t, 10, *st.DaysUntilExpiry)
		assert.True(t, st.Features[subscription.FeatureLearn])
		assert.True(t, st.CanManage)
		assert.Equal(t, subscription.StatusActive, st.Status)
	})

	t.Run("feature filter", func(t *testing.T) {
		t.Parallel()
		rec := h.do(t, http.MethodGet, "/v1/subscription?features=Learn,journal&features=strategy-ai", proUser, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		st, _ := envelope[access.StatusResponse](t, rec)
		assert.Equal(t, map[subscription.Feature]bool{
			subscription.FeatureLearn:      true,
			"journal":                      true,
			subscription.FeatureStrategyAI: true,
		}, st.Features)

		rec = h.do(t, http.MethodGet, "/v1/subscription?features=learn,journal", uuid.Nil, "")
		require.Equal(t, http.StatusOK, rec.Code)
		st, _ = envelope[access.StatusResponse](t, rec)
		assert.Equal(t, map[subscription.Feature]bool{
			subscription.FeatureLearn: false,
			"journal":                 true,
		}, st.Features)
	})
}

func TestFeature(t *testing.T) {
	t.Parallel()

	proUser, freeUser := uuid.New(), uuid.New()
	h := newHarness(t, proRecord(proUser, time.Hour*48))

	tests := []struct {
		name    string
		user    uuid.UUID
		feature string
		allowed bool
		gated   bool
	}{
		{"pro gets gated feature", proUser, "strategy-ai", true, true},
		{"free is locked out", freeUser, "learn", false, true},
		{"anonymous is locked out", uuid.Nil, "market-updates", false, true},
		{"ungated feature is open", freeUser, "quotes", true, false},
		{"feature names are case insensitive", proUser, "Priority-Support", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := h.do(t, http.MethodGet, "/v1/subscription/features/"+tt.feature, tt.user, "")
			require.Equal(t, http.StatusOK, rec.Code)

			got, _ := envelope[access.FeatureResponse](t, rec)
			assert.Equal(t, tt.allowed, got.Allowed)
			assert.Equal(t, tt.gated, got.Gated)
		})
	}

	t.Run("decisions are counted", func(t *testing.T) {
		h := newHarness(t)
		h.do(t, http.MethodGet, "/v1/subscription/features/learn", freeUser, "")
		h.do(t, http.MethodGet, "/v1/subscription/features/quotes", freeUser, "")

		out := h.scrape(t)
		assert.Contains(t, out, `tradedesk_access_decisions_total{allowed="false",feature="learn"} 1`)
		assert.Contains(t, out, `tradedesk_access_decisions_total{allowed="true",feature="ungated"} 1`)
		assert.Contains(t, out, `route="/v1/subscription/features/{feature}"`)
	})
}

func TestRefresh(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	h := newHarness(t)

	rec := h.do(t, http.MethodGet, "/v1/subscription", userID, "")
	st, _ := envelope[access.StatusResponse](t, rec)
	require.Equal(t, subscription.RoleFree, st.Role)

	require.NoError(t, h.store.Save(context.Background(), proRecord(userID, 72*time.Hour)))

	rec = h.do(t, http.MethodPost, "/v1/subscription/refresh", userID, "")
	require.Equal(t, http.StatusOK, rec.Code)
	st, _ = envelope[access.StatusResponse](t, rec)
	assert.Equal(t, subscription.RolePro, st.Role)

	out := h.scrape(t)
	assert.Contains(t, out, `tradedesk_access_refreshes_total{role="pro"} 1`)
	assert.Contains(t, out, `tradedesk_access_role_transitions_total{from="free",to="pro"} 1`)
}

func TestCheckout(t *testing.T) {
	t.Parallel()

	proUser, freeUser := uuid.New(), uuid.New()
	h := newHarness(t, proRecord(proUser, 24*time.Hour*30))

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		t.Parallel()
		rec := h.do(t, http.MethodPost, "/v1/subscription/checkout", uuid.Nil, "")
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		_, e := envelope[json.RawMessage](t, rec)
		require.NotNil(t, e)
		assert.Equal(t, "unauthorized", e.Code)
	})

	t.Run("free user gets a link", func(t *testing.T) {
		t.Parallel()
		rec := h.do(t, http.MethodPost, "/v1/subscription/checkout", freeUser, `{"success_url":"https://app.test/ok"}`)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		link, _ := envelope[subscription.CheckoutLink](t, rec)
		assert.True(t, strings.HasPrefix(link.URL, "https://billing.test/checkout?"))
		assert.Contains(t, link.URL, freeUser.String())
	})

	t.Run("pro user conflicts", func(t *testing.T) {
		t.Parallel()
		rec := h.do(t, http.MethodPost, "/v1/subscription/checkout", proUser, "")
		assert.Equal(t, http.StatusConflict, rec.Code)
		_, e := envelope[json.RawMessage](t, rec)
		assert.Equal(t, "already_subscribed", e.Code)
	})

	t.Run("invalid redirect urls", func(t *testing.T) {
		t.Parallel()
		rec := h.do(t, http.MethodPost, "/v1/subscription/checkout", freeUser, `{"success_url":"/relative","cancel_url":"javascript:alert(1)"}`)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		_, e := envelope[json.RawMessage](t, rec)
		assert.Contains(t, e.Details, "success_url")
		assert.Contains(t, e.Details, "cancel_url")
	})

	t.Run("unknown body fields", func(t *testing.T) {
		t.Parallel()
		rec := h.do(t, http.MethodPost, "/v1/subscription/checkout", freeUser, `{"plan":"enterprise"}`)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

type failingProvider struct {
	*subscription.StubProvider
}

func (failingProvider) CreateCheckoutLink(context.Context, subscription.CheckoutRequest) (*subscription.CheckoutLink, error) {
	return nil, assert.AnError
}

func TestCheckout_ProviderFailure(t *testing.T) {
	t.Parallel()

	store := subscription.NewMemoryStore()
	provider := failingProvider{subscription.NewStubProvider(subscription.StubConfig{})}
	registry := subscription.NewRegistry(store, provider)
	t.Cleanup(func() { _ = registry.Close() })
	metrics := access.NewMetrics()
	svc := access.New(registry, subscription.NewWebhookProcessor(provider, store), access.WithMetrics(metrics))

	req := httptest.NewRequest(http.MethodPost, "/v1/subscription/checkout", nil)
	req = req.WithContext(identity.WithUser(req.Context(), &identity.User{ID: uuid.New()}))
	rec := httptest.NewRecorder()
	svc.Handle().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
	_, e := envelope[json.RawMessage](t, rec)
	assert.Equal(t, "checkout_unavailable", e.Code)
	assert.NotContains(t, rec.Body.String(), assert.AnError.Error())

	out := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(out, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, out.Body.String(), `tradedesk_billing_sessions_total{kind="checkout",outcome="failed"} 1`)
}

func TestPortal(t *testing.T) {
	t.Parallel()

	proUser, freeUser := uuid.New(), uuid.New()
	h := newHarness(t, proRecord(proUser, 24*time.Hour))

	rec := h.do(t, http.MethodPost, "/v1/subscription/portal", proUser, `{"return_url":"https://app.test/account"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	link, _ := envelope[subscription.PortalLink](t, rec)
	assert.Contains(t, link.URL, "customer=cus_123")

	rec = h.do(t, http.MethodPost, "/v1/subscription/portal", freeUser, "")
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = h.do(t, http.MethodPost, "/v1/subscription/portal", uuid.Nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func webhook(t *testing.T, h *harness, payload string, sign bool) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/webhooks/billing", strings.NewReader(payload))
	if sign {
		req.Header.Set(access.SignatureHeader("stub"), subscription.SignStubPayload(webhookSecret, []byte(payload)))
	}
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)
	return rec
}

func TestWebhook(t *testing.T) {
	t.Parallel()

	t.Run("checkout upgrades the live controller", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		h := newHarness(t)

		c := h.registry.For(context.Background(), userID)
		require.Equal(t, subscription.RoleFree, c.Status().Role)

		payload := `{"id":"evt_1","type":"checkout_completed","user_id":"` + userID.String() + `","customer_id":"cus_9"}`
		rec := webhook(t, h, payload, true)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		ack, _ := envelope[access.WebhookResponse](t, rec)
		assert.True(t, ack.Received)
		assert.Equal(t, "evt_1", ack.EventID)
		assert.Equal(t, subscription.RolePro, c.Status().Role)

		rec = webhook(t, h, payload, true)
		require.Equal(t, http.StatusOK, rec.Code)
		ack, _ = envelope[access.WebhookResponse](t, rec)
		assert.True(t, ack.Duplicate)

		out := h.scrape(t)
		assert.Contains(t, out, `tradedesk_billing_webhook_events_total{outcome="applied",type="checkout_completed"} 1`)
		assert.Contains(t, out, `tradedesk_billing_webhook_events_total{outcome="duplicate",type="checkout_completed"} 1`)
	})

	t.Run("bad signature", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		rec := webhook(t, h, `{"id":"evt_2","type":"payment_failed"}`, false)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("unknown customer is answered for redelivery", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		payload := `{"id":"evt_3","type":"subscription_updated","customer_id":"cus_late"}`
		rec := webhook(t, h, payload, true)
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		_, errBody := envelope[access.WebhookResponse](t, rec)
		require.NotNil(t, errBody)
		assert.Equal(t, "unknown_user", errBody.Code)

		// once checkout has created the customer the redelivered event applies
		userID := uuid.New()
		require.NoError(t, h.store.Save(context.Background(), &subscription.Record{UserID: userID, Tier: subscription.TierFree, CustomerID: "cus_late"}))
		rec = webhook(t, h, payload, true)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		ack, _ := envelope[access.WebhookResponse](t, rec)
		assert.False(t, ack.Duplicate)

		stored, err := h.store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.TierPro, stored.Tier)
	})

	t.Run("stale event is acknowledged without effect", func(t *testing.T) {
		t.Parallel()
		userID := uuid.New()
		h := newHarness(t, proRecord(userID, 30*24*time.Hour))

		cancelled := `{"id":"evt_10","type":"subscription_cancelled","user_id":"` + userID.String() + `","occurred_at":"2025-06-01T12:00:05Z"}`
		require.Equal(t, http.StatusOK, webhook(t, h, cancelled, true).Code)

		late := `{"id":"evt_9","type":"subscription_updated","status":"active","user_id":"` + userID.String() + `","occurred_at":"2025-06-01T12:00:00Z"}`
		rec := webhook(t, h, late, true)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		ack, _ := envelope[access.WebhookResponse](t, rec)
		assert.True(t, ack.Stale)

		stored, err := h.store.Get(context.Background(), userID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCanceled, stored.Status)
		assert.Contains(t, h.scrape(t), `tradedesk_billing_webhook_events_total{outcome="stale",type="subscription_updated"} 1`)
	})

	t.Run("ignored event type", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		rec := webhook(t, h, `{"id":"evt_4","type":"customer_updated"}`, true)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("empty body", func(t *testing.T) {
		t.Parallel()
		h := newHarness(t)
		rec := webhook(t, h, "", false)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStream(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	h := newHarness(t)
	srv := httptest.NewServer(h.handler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/subscription/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("X-Test-User", userID.String())

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	lines := bufio.NewScanner(resp.Body)
	waitFor := func(fragment string) {
		t.Helper()
		for lines.Scan() {
			if strings.Contains(lines.Text(), fragment) {
				return
			}
		}
		t.Fatalf("stream ended before %q: %v", fragment, lines.Err())
	}

	waitFor(`"role":"free"`)

	payload := `{"id":"evt_s","type":"subscription_created","user_id":"` + userID.String() + `","status":"active"}`
	rec := webhook(t, h, payload, true)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	waitFor(`"role":"pro"`)
}

func TestStream_EndsWhenRegistryCloses(t *testing.T) {
	t.Parallel()

	for name, user := range map[string]uuid.UUID{"anonymous": uuid.Nil, "authenticated": uuid.New()} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			h := newHarness(t)
			srv := httptest.NewServer(h.handler)
			t.Cleanup(srv.Close)

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/v1/subscription/stream", nil)
			require.NoError(t, err)
			req.Header.Set("Accept", "text/event-stream")
			if user != uuid.Nil {
				req.Header.Set("X-Test-User", user.String())
			}

			resp, err := srv.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			lines := bufio.NewScanner(resp.Body)
			for lines.Scan() && !strings.Contains(lines.Text(), `"role":"free"`) {
			}

			require.NoError(t, h.registry.Close())
			for lines.Scan() {
			}
			assert.NoError(t, lines.Err(), "stream closed cleanly before the client deadline")
		})
	}
}

func TestStream_PollOverride(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	stream := func(query string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/subscription/stream?"+query, nil)
		req.Header.Set("Accept", "text/event-stream")
		req.Header.Set("X-Test-User", uuid.NewString())
		rec := httptest.NewRecorder()
		h.handler.ServeHTTP(rec, req)
		return rec
	}

	t.Run("too frequent", func(t *testing.T) {
		t.Parallel()
		rec := stream("poll=1s")
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		_, e := envelope[json.RawMessage](t, rec)
		require.NotNil(t, e)
		assert.Equal(t, "validation_error", e.Code)
		assert.Contains(t, e.Details, "poll")
	})

	t.Run("not a duration", func(t *testing.T) {
		t.Parallel()
		rec := stream("poll=soon")
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestStream_RequiresEventStream(t *testing.T) {
	t.Parallel()

	h := newHarness(t)
	rec := h.do(t, http.MethodGet, "/v1/subscription/stream", uuid.New(), "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	_, e := envelope[json.RawMessage](t, rec)
	assert.Equal(t, "event_stream_required", e.Code)
}

func TestNew_PanicsOnNilDeps(t *testing.T) {
	t.Parallel()

	store := subscription.NewMemoryStore()
	provider := subscription.NewStubProvider(subscription.StubConfig{})
	registry := subscription.NewRegistry(store, provider)
	t.Cleanup(func() { _ = registry.Close() })

	assert.Panics(t, func() { access.New(nil, subscription.NewWebhookProcessor(provider, store)) })
	assert.Panics(t, func() { access.New(registry, nil) })
}

func TestSignatureHeader(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Stripe-Signature", access.SignatureHeader("stripe"))
	assert.Equal(t, "Paddle-Signature", access.SignatureHeader("paddle"))
	assert.Equal(t, "X-Webhook-Signature", access.SignatureHeader("stub"))
}

func TestRateLimit(t *testing.T) {
	t.Parallel()

	store := subscription.NewMemoryStore()
	provider := subscription.NewStubProvider(subscription.StubConfig{BaseURL: "https://billing.test", WebhookSecret: webhookSecret})
	registry := subscription.NewRegistry(store, provider)
	t.Cleanup(func() { _ = registry.Close() })

	limits := ratelimiter.NewMemoryStore(ratelimiter.WithCleanupInterval(0))
	t.Cleanup(limits.Close)
	bucket, err := ratelimiter.NewBucket(limits, ratelimiter.Config{Capacity: 1, RefillRate: 1, RefillInterval: time.Hour})
	require.NoError(t, err)

	metrics := access.NewMetrics()
	routes := access.New(registry, subscription.NewWebhookProcessor(provider, store),
		access.WithMetrics(metrics),
		access.WithRateLimiter(bucket),
	).Handle()

	refresh := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/v1/subscription/refresh", nil)
		req.RemoteAddr = ip + ":5000"
		rec := httptest.NewRecorder()
		routes.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusOK, refresh("192.0.2.1").Code)

	rec := refresh("192.0.2.1")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	_, apiErr := envelope[json.RawMessage](t, rec)
	require.NotNil(t, apiErr)
	assert.Equal(t, "too_many_requests", apiErr.Code)

	assert.Equal(t, http.StatusOK, refresh("192.0.2.2").Code, "other callers keep their own bucket")

	read := httptest.NewRecorder()
	routes.ServeHTTP(read, httptest.NewRequest(http.MethodGet, "/v1/subscription", nil))
	assert.Equal(t, http.StatusOK, read.Code, "reads are not limited")

	scrape := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(scrape, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, scrape.Body.String(), `tradedesk_access_rate_limited_total{route="/v1/subscription/refresh"} 1`)
}
