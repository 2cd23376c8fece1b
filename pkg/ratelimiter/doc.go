// Package ratelimiter throttles expensive user actions with a token bucket.
//
// A Bucket holds Capacity tokens and regains RefillRate tokens every
// RefillInterval. Each allowed call spends one token; a denied call spends
// nothing and reports when the next token arrives.
//
//	store := ratelimiter.NewMemoryStore()
//	defer store.Close()
//
//	bucket, err := ratelimiter.NewBucket(store, ratelimiter.Config{
//		Capacity:       5,
//		RefillRate:     1,
//		RefillInterval: 10 * time.Second,
//	})
//
//	r.With(ratelimiter.Middleware(bucket, keyFn)).Post("/refresh", refresh)
//
// MemoryStore serves a single instance. RedisStore shares buckets across
// instances through an atomic Lua script.
package ratelimiter
