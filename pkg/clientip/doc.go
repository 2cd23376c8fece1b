// Package clientip resolves the caller's address behind the load balancer
// and keeps it in the request context for rate limiting and logs.
//
// Headers are consulted in order: CF-Connecting-IP, X-Real-IP, the first
// valid entry of X-Forwarded-For, then RemoteAddr. Only deploy behind a
// proxy that overwrites these headers.
package clientip
