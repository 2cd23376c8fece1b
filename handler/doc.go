// Package handler provides typed HTTP handlers for the tradedesk JSON API.
//
// A HandlerFunc receives a Context and a bound request value and returns a
// Response. Wrap adapts it to http.HandlerFunc: guards run first, then
// binders from pkg/binder, then the handler, and any failure goes to the
// ErrorHandler.
//
//	type featureRequest struct {
//		Feature string `path:"feature"`
//	}
//
//	r.Get("/v1/subscription/features/{feature}", handler.Wrap(
//		func(ctx handler.Context, req featureRequest) handler.Response {
//			return handler.JSON(map[string]any{"feature": req.Feature})
//		},
//		handler.WithBinders(binder.Path(chi.URLParam)),
//	))
//
// Every body is a JSONResponse envelope: successful payloads under "data",
// failures under "error" with a machine-readable code. Binder failures map
// to 400, 413 or 415.
//
// # Streaming
//
// SSE keeps a Datastar connection open and pushes signal patches:
//
//	return handler.SSE(func(stream handler.StreamContext) error {
//		return stream.SendSignals(map[string]any{"role": "pro"})
//	})
//
// WantsEventStream recognises Datastar requests. The error handler answers
// them with an "error" signal instead of a JSON body.
package handler
