// Package redis opens the go-redis/v9 client used by the status cache, the
// webhook deduplicator and the rate limiter, and exposes a readiness check.
package redis
