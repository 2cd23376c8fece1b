package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/starfederation/datastar-go/datastar"
)

// Context is the request scope handed to every HandlerFunc. It delegates
// context.Context to the request context.
type Context interface {
	context.Context
	Request() *http.Request
	ResponseWriter() http.ResponseWriter
}

func NewContext(w http.ResponseWriter, r *http.Request) Context {
	return &httpContext{w: w, r: r}
}

type httpContext struct {
	w   http.ResponseWriter
	r   *http.Request
	sse *datastar.ServerSentEventGenerator
}

func (c *httpContext) Request() *http.Request              { return c.r }
func (c *httpContext) ResponseWriter() http.ResponseWriter { return c.w }

func (c *httpContext) Deadline() (time.Time, bool) { return c.r.Context().Deadline() }
func (c *httpContext) Done() <-chan struct{}       { return c.r.Context().Done() }
func (c *httpContext) Err() error                  { return c.r.Context().Err() }
func (c *httpContext) Value(key any) any           { return c.r.Context().Value(key) }

// events opens the event stream on first use. Opening writes the stream
// headers, so plain JSON replies must never call it.
func (c *httpContext) events() *datastar.ServerSentEventGenerator {
	if c.sse == nil {
		c.sse = datastar.NewSSE(c.w, c.r)
	}
	return c.sse
}

// openStream reports the generator of a stream already opened on ctx.
func openStream(ctx Context) (*datastar.ServerSentEventGenerator, bool) {
	switch c := ctx.(type) {
	case *httpContext:
		return c.sse, c.sse != nil
	case *streamContext:
		return c.sse, true
	}
	return nil, false
}

// WantsEventStream reports whether r comes from a Datastar client: an
// event-stream Accept header, the datastar query parameter carrying
// signals, or the Datastar-Request header.
func WantsEventStream(r *http.Request) bool {
	if strings.Contains(r.Header.Get("Accept"), "text/event-stream") {
		return true
	}
	if r.URL.Query().Has("datastar") {
		return true
	}
	return r.Header.Get("Datastar-Request") == "true"
}
