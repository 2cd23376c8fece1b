package handler

import (
	"errors"
	"net/http"

	"github.com/dmitrymomot/tradedesk/pkg/binder"
)

// HandlerFunc handles a request bound into R.
type HandlerFunc[R any] func(ctx Context, req R) Response

// Response renders itself to an http.ResponseWriter.
type Response interface {
	Render(w http.ResponseWriter, r *http.Request) error
}

// Bind decodes part of a request into v.
type Bind func(r *http.Request, v any) error

// ErrorHandler answers a request that failed in a guard, a binder, the
// handler or while rendering.
type ErrorHandler func(ctx Context, err error)

// Guard runs before binding. A non-nil error short-circuits the request.
type Guard func(ctx Context) error

// Option configures Wrap.
type Option func(*options)

type options struct {
	binders      []Bind
	guards       []Guard
	errorHandler ErrorHandler
}

// WithBinders appends binders, applied in order. Binders returning
// binder.ErrBinderNotApplicable are skipped.
func WithBinders(binders ...Bind) Option {
	return func(o *options) { o.binders = append(o.binders, binders...) }
}

func WithGuards(guards ...Guard) Option {
	return func(o *options) { o.guards = append(o.guards, guards...) }
}

func WithErrorHandler(h ErrorHandler) Option {
	return func(o *options) {
		if h != nil {
			o.errorHandler = h
		}
	}
}

// Wrap adapts h to http.HandlerFunc. Without WithErrorHandler errors are
// answered by NewErrorHandler(nil), which does not log.
func Wrap[R any](h HandlerFunc[R], opts ...Option) http.HandlerFunc {
	o := &options{errorHandler: NewErrorHandler(nil)}
	for _, opt := range opts {
		opt(o)
	}

	return func(w http.ResponseWriter, r *http.Request) {
		ctx := &httpContext{w: w, r: r}

		for _, guard := range o.guards {
			if err := guard(ctx); err != nil {
				o.errorHandler(ctx, err)
				return
			}
		}

		var req R
		for _, bind := range o.binders {
			if err := bind(r, &req); err != nil {
				if errors.Is(err, binder.ErrBinderNotApplicable) {
					continue
				}
				o.errorHandler(ctx, bindError(err))
				return
			}
		}

		resp := h(ctx, req)
		if resp == nil {
			o.errorHandler(ctx, ErrNilResponse)
			return
		}
		if err := render(ctx, resp); err != nil {
			o.errorHandler(ctx, err)
		}
	}
}

// render lets streams share ctx, so a failing stream reports its error on
// the stream it already opened.
func render(ctx *httpContext, resp Response) error {
	if s, ok := resp.(streamResponse); ok {
		return s.render(ctx)
	}
	return resp.Render(ctx.w, ctx.r)
}

func bindError(err error) error {
	switch {
	case errors.Is(err, binder.ErrBodyTooLarge):
		return ErrPayloadTooLarge.WithMessage(err.Error())
	case errors.Is(err, binder.ErrUnsupportedMediaType):
		return ErrUnsupportedMediaType.WithMessage(err.Error())
	default:
		return ErrBadRequest.WithMessage(err.Error())
	}
}
