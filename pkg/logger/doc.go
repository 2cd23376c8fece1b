// Package logger builds *slog.Logger instances for tradedesk services.
//
// New wraps the chosen slog handler with ContextHandler so values stored
// in context.Context (request ids, user ids) are attached to every record
// logged with a *Context method. Attribute helpers in attr.go keep key names
// consistent across packages:
//
//	log := logger.New(
//		logger.WithEnvironment("development", "tradedesk"),
//		logger.WithContextExtractors(requestid.LogExtractor()),
//	)
//	log.InfoContext(ctx, "role changed",
//		logger.UserID(userID),
//		logger.Transition(from, to),
//	)
package logger
