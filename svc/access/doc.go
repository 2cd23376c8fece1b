// Package access exposes subscription access decisions over HTTP.
//
// Routes (mounted at the router root):
//
//	GET  /v1/subscription                      status and feature map
//	GET  /v1/subscription/features/{feature}   single access decision
//	POST /v1/subscription/refresh              re-read the record
//	POST /v1/subscription/checkout             hosted checkout link
//	POST /v1/subscription/portal               customer portal link
//	GET  /v1/subscription/stream               Datastar status stream
//	POST /v1/webhooks/billing                  billing provider webhooks
//
// The caller is taken from identity.UserIDFromContext; anonymous callers
// resolve to the free role and cannot start billing sessions.
package access
