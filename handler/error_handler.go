package handler

import (
	"log/slog"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"

	"github.com/dmitrymomot/tradedesk/pkg/logger"
	"github.com/dmitrymomot/tradedesk/pkg/requestid"
)

// ErrorInfo is the classified form of a handler error.
type ErrorInfo struct {
	StatusCode int
	Detail     *ErrorDetail
	LogLevel   slog.Level
}

func classifyError(err error) ErrorInfo {
	info := ErrorInfo{}
	info.Detail = errorToDetail(err, &info.StatusCode)
	info.LogLevel = slog.LevelError
	if info.StatusCode < http.StatusInternalServerError {
		info.LogLevel = slog.LevelWarn
	}
	return info
}

// NewErrorHandler logs the error with the request id and answers with the
// JSON envelope, or with an "error" signal when the request is a Datastar
// stream whose headers were already sent.
func NewErrorHandler(log *slog.Logger) ErrorHandler {
	if log == nil {
		log = logger.Discard()
	}

	return func(ctx Context, err error) {
		r := ctx.Request()
		info := classifyError(err)

		log.LogAttrs(r.Context(), info.LogLevel, "request error",
			logger.RequestID(requestid.FromContext(r.Context())),
			logger.Error(err),
			slog.Int("status_code", info.StatusCode),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			logger.Component("http"),
		)

		if sse, ok := errorStream(ctx); ok {
			stream := &streamContext{Context: ctx, sse: sse}
			if sendErr := stream.SendSignal("error", info.Detail); sendErr != nil {
				log.WarnContext(r.Context(), "failed to send error signal", logger.Error(sendErr))
			}
			return
		}

		if renderErr := JSONError(err).Render(ctx.ResponseWriter(), r); renderErr != nil {
			log.WarnContext(r.Context(), "failed to render error response", logger.Error(renderErr))
		}
	}
}

// errorStream returns the event stream an error should be reported on: the
// one already open, or a new one for Datastar requests.
func errorStream(ctx Context) (*datastar.ServerSentEventGenerator, bool) {
	if sse, ok := openStream(ctx); ok {
		return sse, true
	}
	if c, ok := ctx.(*httpContext); ok && WantsEventStream(c.r) {
		return c.events(), true
	}
	return nil, false
}
