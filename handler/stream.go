package handler

import (
	"encoding/json"
	"net/http"

	"github.com/starfederation/datastar-go/datastar"
)

// StreamContext is the Context of an open event stream.
type StreamContext interface {
	Context

	// SendSignal patches a single signal.
	SendSignal(name string, value any) error

	// SendSignals patches several signals in one event.
	//
	//	err := stream.SendSignals(map[string]any{
	//		"role":       "pro",
	//		"is_expired": false,
	//	})
	SendSignals(signals map[string]any) error
}

type streamContext struct {
	Context
	sse *datastar.ServerSentEventGenerator
}

func (c *streamContext) SendSignal(name string, value any) error {
	return c.SendSignals(map[string]any{name: value})
}

func (c *streamContext) SendSignals(signals map[string]any) error {
	data, err := json.Marshal(signals)
	if err != nil {
		return err
	}
	return c.sse.PatchSignals(data)
}

// StreamFunc runs for the lifetime of a stream. The connection closes when
// it returns or the client goes away.
type StreamFunc func(stream StreamContext) error

type streamResponse struct {
	fn StreamFunc
}

// ErrEventStreamRequired rejects stream endpoints called without an
// event-stream request.
var ErrEventStreamRequired = NewHTTPError(http.StatusBadRequest, "event_stream_required")

func (s streamResponse) Render(w http.ResponseWriter, r *http.Request) error {
	return s.render(&httpContext{w: w, r: r})
}

func (s streamResponse) render(c *httpContext) error {
	if !WantsEventStream(c.r) {
		return ErrEventStreamRequired
	}
	return s.fn(&streamContext{Context: c, sse: c.events()})
}

// SSE creates a streaming response.
//
//	return handler.SSE(func(stream handler.StreamContext) error {
//		for {
//			select {
//			case <-stream.Done():
//				return nil
//			case change := <-changes:
//				if err := stream.SendSignal("subscription", change); err != nil {
//					return err
//				}
//			}
//		}
//	})
func SSE(fn StreamFunc) Response {
	return streamResponse{fn: fn}
}
