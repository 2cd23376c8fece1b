package access

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tradedesk/handler"
	"github.com/dmitrymomot/tradedesk/pkg/binder"
	"github.com/dmitrymomot/tradedesk/pkg/identity"
	"github.com/dmitrymomot/tradedesk/pkg/logger"
	"github.com/dmitrymomot/tradedesk/pkg/subscription"
)

// StatusResponse is the body of the status, refresh and stream endpoints.
type StatusResponse struct {
	Role            subscription.Role             `json:"role"`
	IsExpired       bool                          `json:"is_expired"`
	DaysUntilExpiry *int                          `json:"days_until_expiry"`
	Tier            subscription.Tier             `json:"tier"`
	Status          subscription.Status           `json:"status"`
	ExpiresAt       *time.Time                    `json:"expires_at,omitempty"`
	Features        map[subscription.Feature]bool `json:"features"`
	CanManage       bool                          `json:"can_manage"`
}

func newStatusResponse(c *subscription.Controller) StatusResponse {
	st := c.Status()
	resp := StatusResponse{
		Role:            st.Role,
		IsExpired:       st.IsExpired,
		DaysUntilExpiry: st.DaysUntilExpiry,
		Tier:            subscription.TierFree,
		Features:        subscription.FeatureAccess(st),
	}
	if rec := c.Record(); rec != nil {
		resp.Tier = rec.Tier
		resp.Status = rec.Status
		resp.ExpiresAt = rec.ExpiresAt
		resp.CanManage = rec.CustomerID != ""
	}
	return resp
}

func (s *Service) controller(ctx handler.Context) *subscription.Controller {
	userID, _ := identity.UserIDFromContext(ctx)
	return s.registry.For(ctx, userID)
}

type statusRequest struct {
	// Features narrows the feature map to the named features, gated or not.
	Features []string `query:"features"`
}

func (s *Service) status(ctx handler.Context, req statusRequest) handler.Response {
	c := s.controller(ctx)
	resp := newStatusResponse(c)
	if len(req.Features) > 0 {
		resp.Features = make(map[subscription.Feature]bool, len(req.Features))
		for _, name := range req.Features {
			if f := subscription.ParseFeature(name); f != "" {
				resp.Features[f] = c.CanAccess(f)
			}
		}
	}
	return handler.JSON(resp)
}

type featureRequest struct {
	Feature string `path:"feature"`
}

// FeatureResponse is a single access decision.
type FeatureResponse struct {
	Feature subscription.Feature `json:"feature"`
	Allowed bool                 `json:"allowed"`
	Gated   bool                 `json:"gated"`
	Role    subscription.Role    `json:"role"`
}

func (s *Service) feature(ctx handler.Context, req featureRequest) handler.Response {
	f := subscription.ParseFeature(req.Feature)
	if f == "" {
		return handler.JSONError(handler.ErrNotFound.WithMessage("unknown feature"))
	}

	c := s.controller(ctx)
	allowed := c.CanAccess(f)
	s.metrics.decision(f, allowed)

	return handler.JSON(FeatureResponse{
		Feature: f,
		Allowed: allowed,
		Gated:   subscription.IsGated(f),
		Role:    c.Status().Role,
	})
}

func (s *Service) refresh(ctx handler.Context, _ struct{}) handler.Response {
	c := s.controller(ctx)
	st := c.Refresh(ctx)
	s.metrics.refresh(st.Role)
	return handler.JSON(newStatusResponse(c))
}

type checkoutRequest struct {
	Email      string `json:"email"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

func (s *Service) checkout(ctx handler.Context, req checkoutRequest) handler.Response {
	verr := handler.NewValidationError()
	validateURL(verr, "success_url", req.SuccessURL)
	validateURL(verr, "cancel_url", req.CancelURL)
	if !verr.IsEmpty() {
		return handler.JSONError(verr)
	}

	email := req.Email
	if u := identity.UserFromContext(ctx); u != nil && email == "" {
		email = u.Email
	}

	link, err := s.controller(ctx).RequestUpgrade(ctx, subscription.CheckoutOptions{
		Email:      email,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		s.metrics.session("checkout", sessionOutcome(err))
		return handler.JSONError(sessionError(err, "checkout_unavailable"))
	}
	s.metrics.session("checkout", "ok")
	return handler.JSON(link, handler.WithJSONStatus(http.StatusCreated))
}

type portalRequest struct {
	ReturnURL string `json:"return_url"`
}

func (s *Service) portal(ctx handler.Context, req portalRequest) handler.Response {
	verr := handler.NewValidationError()
	validateURL(verr, "return_url", req.ReturnURL)
	if !verr.IsEmpty() {
		return handler.JSONError(verr)
	}

	link, err := s.controller(ctx).RequestPortal(ctx, subscription.PortalOptions{ReturnURL: req.ReturnURL})
	if err != nil {
		s.metrics.session("portal", sessionOutcome(err))
		return handler.JSONError(sessionError(err, "portal_unavailable"))
	}
	s.metrics.session("portal", "ok")
	return handler.JSON(link, handler.WithJSONStatus(http.StatusCreated))
}

// sessionError maps billing session failures to HTTP errors. Anything that
// is not a caller mistake is reported as an upstream failure.
func sessionError(err error, upstreamKey string) error {
	switch {
	case errors.Is(err, subscription.ErrNotAuthenticated):
		return handler.ErrUnauthorized.WithMessage("sign in to manage your subscription")
	case errors.Is(err, subscription.ErrAlreadySubscribed):
		return handler.NewHTTPError(http.StatusConflict, "already_subscribed").WithMessage("subscription is already active")
	case errors.Is(err, subscription.ErrNoCustomer):
		return handler.NewHTTPError(http.StatusConflict, "no_billing_customer").WithMessage("no billing account to manage yet")
	default:
		return handler.NewHTTPError(http.StatusBadGateway, upstreamKey).WithMessage("billing provider is unavailable, try again")
	}
}

func sessionOutcome(err error) string {
	switch {
	case errors.Is(err, subscription.ErrNotAuthenticated):
		return "unauthenticated"
	case errors.Is(err, subscription.ErrAlreadySubscribed), errors.Is(err, subscription.ErrNoCustomer):
		return "rejected"
	default:
		return "failed"
	}
}

func validateURL(verr handler.ValidationError, field, raw string) {
	if raw == "" {
		return
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		verr.Add(field, "must be an absolute http(s) URL")
	}
}

// stream pushes the caller's status as Datastar signals: once on connect,
// on every broadcast role change for the caller, and after each poll that
// changed the status.
// minPollInterval bounds the per-connection poll override.
const minPollInterval = 5 * time.Second

type streamRequest struct {
	Poll *time.Duration `query:"poll"`
}

func (s *Service) stream(ctx handler.Context, req streamRequest) handler.Response {
	userID, authenticated := identity.UserIDFromContext(ctx)

	interval := s.pollInterval
	if req.Poll != nil {
		if *req.Poll < minPollInterval {
			verr := handler.NewValidationError()
			verr.Add("poll", fmt.Sprintf("must be at least %s", minPollInterval))
			return handler.JSONError(verr)
		}
		interval = *req.Poll
	}

	return handler.SSE(func(stream handler.StreamContext) error {
		s.metrics.streams.Inc()
		defer s.metrics.streams.Dec()

		// Subscribe before the first read so no change slips in between.
		// The subscription also ends the stream when the registry closes.
		sub := s.registry.Subscribe(stream)
		defer sub.Close()
		changes := sub.Receive(stream)

		if !authenticated {
			if err := sendStatus(stream, s.registry.For(stream, uuid.Nil)); err != nil {
				return err
			}
			for {
				select {
				case <-stream.Done():
					return nil
				case _, ok := <-changes:
					if !ok {
						return nil
					}
				}
			}
		}

		c := s.registry.For(stream, userID)
		if err := sendStatus(stream, c); err != nil {
			return err
		}

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-stream.Done():
				return nil
			case msg, ok := <-changes:
				if !ok {
					return nil
				}
				if msg.Data.UserID != userID {
					continue
				}
				if live, ok := s.registry.Lookup(userID); ok {
					c = live
				}
				if err := sendStatus(stream, c); err != nil {
					return err
				}
			case <-ticker.C:
				before := c.Status()
				after := c.Refresh(stream)
				s.metrics.refresh(after.Role)
				if after.Equal(before) {
					continue
				}
				if err := sendStatus(stream, c); err != nil {
					return err
				}
			}
		}
	})
}

func sendStatus(stream handler.StreamContext, c *subscription.Controller) error {
	return stream.SendSignal("subscription", newStatusResponse(c))
}

type webhookRequest struct {
	Payload   []byte
	Signature string
}

var signatureHeaders = map[string]string{
	"stripe": "Stripe-Signature",
	"paddle": "Paddle-Signature",
}

// SignatureHeader names the header carrying the webhook signature for a
// provider.
func SignatureHeader(provider string) string {
	if h, ok := signatureHeaders[provider]; ok {
		return h
	}
	return "X-Webhook-Signature"
}

// webhookBinder reads the raw body, which signature verification needs
// byte for byte.
func (s *Service) webhookBinder() handler.Bind {
	header := SignatureHeader(s.webhooks.Provider())
	return func(r *http.Request, v any) error {
		req, ok := v.(*webhookRequest)
		if !ok {
			return fmt.Errorf("%w: unexpected target %T", binder.ErrInvalidJSON, v)
		}
		body, err := io.ReadAll(io.LimitReader(r.Body, s.maxWebhook+1))
		if err != nil {
			return fmt.Errorf("%w: %v", binder.ErrInvalidJSON, err)
		}
		if int64(len(body)) > s.maxWebhook {
			return binder.ErrBodyTooLarge
		}
		req.Payload = body
		req.Signature = r.Header.Get(header)
		return nil
	}
}

// WebhookResponse acknowledges a delivery.
type WebhookResponse struct {
	Received  bool   `json:"received"`
	Duplicate bool   `json:"duplicate,omitempty"`
	Stale     bool   `json:"stale,omitempty"`
	EventID   string `json:"event_id,omitempty"`
	EventType string `json:"event_type,omitempty"`
}

// webhook answers non-2xx only when a redelivery could succeed: store
// failures and events whose user is not known yet, which happens when a
// subscription event overtakes its checkout event. Both providers keep
// redelivering non-2xx answers until their retry window closes.
func (s *Service) webhook(ctx handler.Context, req webhookRequest) handler.Response {
	if len(req.Payload) == 0 {
		return handler.JSONError(handler.ErrBadRequest.WithMessage("empty webhook body"))
	}

	event, err := s.webhooks.Handle(ctx, req.Payload, req.Signature)
	var eventType subscription.EventType
	if event != nil {
		eventType = event.Type
	}

	switch {
	case errors.Is(err, subscription.ErrDuplicateEvent):
		s.metrics.webhook(eventType, "duplicate")
		return handler.JSON(WebhookResponse{Received: true, Duplicate: true, EventID: event.ID, EventType: string(eventType)})
	case errors.Is(err, subscription.ErrStaleEvent):
		s.metrics.webhook(eventType, "stale")
		return handler.JSON(WebhookResponse{Received: true, Stale: true, EventID: event.ID, EventType: string(eventType)})
	case errors.Is(err, subscription.ErrWebhookVerificationFailed):
		s.metrics.webhook(eventType, "rejected")
		return handler.JSONError(handler.ErrUnauthorized.WithMessage("invalid webhook signature"))
	case errors.Is(err, subscription.ErrInvalidWebhookPayload):
		s.metrics.webhook(eventType, "rejected")
		return handler.JSONError(handler.ErrBadRequest.WithMessage("invalid webhook payload"))
	case errors.Is(err, subscription.ErrMissingUserReference):
		s.metrics.webhook(eventType, "unresolved")
		return handler.JSONError(handler.NewHTTPError(http.StatusUnprocessableEntity, "unknown_user"))
	case err != nil:
		s.metrics.webhook(eventType, "failed")
		return handler.JSONError(err)
	}

	if !eventType.Known() {
		s.metrics.webhook(eventType, "ignored")
		return handler.JSON(WebhookResponse{Received: true, EventID: event.ID})
	}
	s.metrics.webhook(eventType, "applied")

	if userID, err := uuid.Parse(event.UserID); err == nil {
		if st, live := s.registry.Invalidate(ctx, userID); live {
			s.log.DebugContext(ctx, "live controller refreshed after webhook",
				logger.UserID(userID),
				logger.Role(st.Role),
			)
		}
	}
	return handler.JSON(WebhookResponse{Received: true, EventID: event.ID, EventType: string(eventType)})
}
