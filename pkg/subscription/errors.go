package subscription

import "errors"

var (
	// Absorbed by Controller.Refresh: the status resolves to free.
	ErrNotAuthenticated  = errors.New("subscription: no authenticated user")
	ErrRecordUnavailable = errors.New("subscription: record unavailable")

	// Returned to callers of RequestUpgrade and RequestPortal, joined with the cause.
	ErrCheckoutInitiationFailed = errors.New("subscription: checkout initiation failed")
	ErrPortalInitiationFailed   = errors.New("subscription: portal initiation failed")

	ErrRecordNotFound    = errors.New("subscription: record not found")
	ErrAlreadySubscribed = errors.New("subscription: user already has an active subscription")
	ErrNoCustomer        = errors.New("subscription: no billing customer for user")

	ErrMissingAPIKey             = errors.New("subscription: billing provider API key is required")
	ErrMissingWebhookSecret      = errors.New("subscription: billing provider webhook secret is required")
	ErrMissingPriceID            = errors.New("subscription: price ID is required")
	ErrInvalidProviderEnv        = errors.New("subscription: invalid billing provider environment")
	ErrNoCheckoutURL             = errors.New("subscription: no checkout URL returned from provider")
	ErrNoPortalURL               = errors.New("subscription: no portal URL returned from provider")
	ErrWebhookVerificationFailed = errors.New("subscription: webhook signature verification failed")
	ErrInvalidWebhookPayload     = errors.New("subscription: invalid webhook payload")
	ErrMissingUserReference      = errors.New("subscription: webhook event does not reference a known user")
	ErrDuplicateEvent            = errors.New("subscription: webhook event already processed")
	ErrStaleEvent                = errors.New("subscription: webhook event older than the stored state")
)
