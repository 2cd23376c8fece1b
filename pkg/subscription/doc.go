// Package subscription turns a user's stored subscription record into an
// access decision for each gated product feature.
//
// The model is deliberately small. A Record holds tier, processor status,
// optional expiry and the processor customer id. ComputeStatus derives an
// AccessStatus from it:
//
//   - a past expiry is expired, whatever the tier or status say
//   - tier pro with status active or trialing is pro
//   - everything else, including a missing record, is free
//
// CanAccessFeature then checks a feature against that status. Features that
// are not in the gated set are open to everyone.
//
// # Controllers
//
// A Controller caches the record of one user and recomputes the status on
// Refresh. Refresh never fails: without an identity, or when the Store is
// unreachable, the user is treated as free and the cause is logged. Role
// changes observed by Refresh go through a small lifecycle state machine and
// reach every ChangeHandler.
//
// RequestUpgrade and RequestPortal delegate to a BillingProvider. Their
// failures come back joined with ErrCheckoutInitiationFailed or
// ErrPortalInitiationFailed and never change the cached status.
//
//	registry := subscription.NewRegistry(store, provider,
//		subscription.WithLogger(log),
//	)
//	ctrl := registry.For(ctx, userID)
//	if !ctrl.CanAccess(subscription.FeatureStrategyAI) {
//		// render the upgrade prompt
//	}
//
// # Webhooks
//
// WebhookProcessor verifies provider webhooks, drops replays and writes the
// resulting state to the Store. Call Registry.Invalidate with the returned
// user so live controllers pick the change up.
//
// Stripe, Paddle and a stub provider for local development are included.
// Store implementations live in the pgstore, supastore, mongostore and
// cachestore subpackages; MemoryStore covers tests.
package subscription
