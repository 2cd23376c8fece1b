// Package binder decodes HTTP requests into typed structs for handler.Wrap.
//
// Each binder handles one source and returns ErrBinderNotApplicable when the
// request carries nothing for it, so binders can be stacked:
//
//	r.Post("/v1/subscription/checkout", handler.Wrap(checkout,
//		handler.WithBinders(binder.JSON()),
//	))
//
// Supported tags: `json` (body), `path:"name"` and `query:"name"`. A tag of
// "-" skips the field. Pointers mark optional values.
package binder
