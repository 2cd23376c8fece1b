package handler_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tradedesk/handler"
	"github.com/dmitrymomot/tradedesk/pkg/binder"
	"github.com/dmitrymomot/tradedesk/pkg/requestid"
)

type echoRequest struct {
	Name string `json:"name"`
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) handler.JSONResponse {
	t.Helper()
	var body handler.JSONResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestWrap(t *testing.T) {
	t.Parallel()

	echo := func(ctx handler.Context, req echoRequest) handler.Response {
		return handler.JSON(map[string]string{"name": req.Name})
	}

	t.Run("binds and renders", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(echo, handler.WithBinders(binder.JSON()))

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"eth"}`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":{"name":"eth"}}`, rec.Body.String())
	})

	t.Run("skips binders without input", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(echo, handler.WithBinders(binder.JSON()))

		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodPost, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("binding failure is bad request", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(echo, handler.WithBinders(binder.JSON()))

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":`))
		req.Header.Set("Content-Type", "application/json")
		rec := httptest.NewRecorder()
		h(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		body := decode(t, rec)
		require.NotNil(t, body.Error)
		assert.Equal(t, "bad_request", body.Error.Code)
		assert.Contains(t, body.Error.Message, "invalid JSON")
	})

	t.Run("nil response", func(t *testing.T) {
		t.Parallel()
		var got error
		h := handler.Wrap(
			func(handler.Context, echoRequest) handler.Response { return nil },
			handler.WithErrorHandler(func(_ handler.Context, err error) { got = err }),
		)
		h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		assert.ErrorIs(t, got, handler.ErrNilResponse)
	})

	t.Run("guards run before binding", func(t *testing.T) {
		t.Parallel()
		var order []string
		guard := func(name string, err error) handler.Guard {
			return func(handler.Context) error {
				order = append(order, name)
				return err
			}
		}
		h := handler.Wrap(echo,
			handler.WithGuards(guard("first", nil), guard("second", handler.ErrUnauthorized), guard("third", nil)),
			handler.WithBinders(func(*http.Request, any) error {
				order = append(order, "binder")
				return nil
			}),
		)

		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, []string{"first", "second"}, order)
	})

	t.Run("binder errors keep their status", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(echo, handler.WithBinders(binder.JSON()))

		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`name=eth`))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		h(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Equal(t, "unsupported_media_type", decode(t, rec).Error.Code)

		req = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"name":"`+strings.Repeat("x", binder.DefaultMaxJSONSize)+`"}`))
		req.Header.Set("Content-Type", "application/json")
		rec = httptest.NewRecorder()
		h(rec, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	})

	t.Run("stream errors are sent on the open stream", func(t *testing.T) {
		t.Parallel()
		h := handler.Wrap(func(handler.Context, struct{}) handler.Response {
			return handler.SSE(func(stream handler.StreamContext) error {
				if err := stream.SendSignal("role", "free"); err != nil {
					return err
				}
				return handler.ErrServiceUnavailable
			})
		})

		req := httptest.NewRequest(http.MethodGet, "/stream", nil)
		req.Header.Set("Accept", "text/event-stream")
		rec := httptest.NewRecorder()
		h(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, `{"role":"free"}`)
		assert.Contains(t, body, `"code":"service_unavailable"`)
		assert.Equal(t, 1, strings.Count(rec.Header().Get("Content-Type"), "text/event-stream"))
	})
}

func TestJSONError(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		err     error
		status  int
		code    string
		message string
	}{
		{"http error", handler.ErrUnauthorized, http.StatusUnauthorized, "unauthorized", "Unauthorized"},
		{"http error with message", handler.ErrBadGateway.WithMessage("checkout unavailable"), http.StatusBadGateway, "bad_gateway", "checkout unavailable"},
		{"wrapped http error", errors.Join(errors.New("stripe: boom"), handler.ErrNotFound), http.StatusNotFound, "not_found", "Not Found"},
		{"plain error is hidden", errors.New("db password leaked"), http.StatusInternalServerError, "internal_error", "Internal Server Error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			rec := httptest.NewRecorder()
			require.NoError(t, handler.JSONError(tt.err).Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))
			body := decode(t, rec)
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
			assert.Equal(t, tt.message, body.Error.Message)
			assert.Nil(t, body.Data)
		})
	}

	t.Run("validation error", func(t *testing.T) {
		t.Parallel()
		verr := handler.NewValidationError()
		verr.Add("success_url", "must be an absolute URL")

		rec := httptest.NewRecorder()
		require.NoError(t, handler.JSONError(verr).Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)))
		assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		body := decode(t, rec)
		assert.Equal(t, "validation_error", body.Error.Code)
		assert.Equal(t, []string{"must be an absolute URL"}, body.Error.Details["success_url"])
	})
}

func TestJSON(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	resp := handler.JSON([]int{1, 2}, handler.WithJSONStatus(http.StatusCreated), handler.WithJSONMeta(map[string]any{"total": 2}))
	require.NoError(t, resp.Render(rec, httptest.NewRequest(http.MethodGet, "/", nil)))

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"data":[1,2],"meta":{"total":2}}`, rec.Body.String())
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}

func TestJSONErrorCarriesRequestID(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(requestid.WithContext(req.Context(), "req-123"))

	t.Run("error body", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		require.NoError(t, handler.JSONError(handler.ErrNotFound).Render(rec, req))
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"error":{"code":"not_found","message":"Not Found"},"meta":{"request_id":"req-123"}}`, rec.Body.String())
	})

	t.Run("data body", func(t *testing.T) {
		t.Parallel()
		rec := httptest.NewRecorder()
		require.NoError(t, handler.JSON("ok").Render(rec, req))
		assert.JSONEq(t, `{"data":"ok"}`, rec.Body.String())
	})
}

func TestHTTPError(t *testing.T) {
	t.Parallel()

	err := handler.ErrUnauthorized.WithMessage("sign in first")
	assert.ErrorIs(t, err, handler.ErrUnauthorized)
	assert.NotErrorIs(t, err, handler.ErrForbidden)
	assert.Equal(t, "unauthorized: sign in first", err.Error())
	assert.Equal(t, "conflict", handler.NewHTTPError(http.StatusConflict, "conflict").Error())
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := handler.NewValidationError()
	assert.True(t, err.IsEmpty())
	assert.Equal(t, "Validation failed", err.Error())

	err.Add("cancel_url", "required")
	err.Add("success_url", "required")
	assert.True(t, err.Has("cancel_url"))
	assert.Equal(t, "required", err.Get("success_url"))
	assert.Equal(t, "validation error: cancel_url: required, success_url: required", err.Error())
}

func TestWantsEventStream(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		setup  func(r *http.Request)
		target string
		want   bool
	}{
		{"plain request", func(*http.Request) {}, "/", false},
		{"event stream accept", func(r *http.Request) { r.Header.Set("Accept", "text/event-stream") }, "/", true},
		{"query signals", func(*http.Request) {}, "/?datastar=%7B%7D", true},
		{"datastar header", func(r *http.Request) { r.Header.Set("Datastar-Request", "true") }, "/", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			r := httptest.NewRequest(http.MethodGet, tt.target, nil)
			tt.setup(r)
			assert.Equal(t, tt.want, handler.WantsEventStream(r))
		})
	}
}

func TestSSE(t *testing.T) {
	t.Parallel()

	t.Run("requires datastar request", func(t *testing.T) {
		t.Parallel()
		resp := handler.SSE(func(handler.StreamContext) error { return nil })
		err := resp.Render(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/stream", nil))
		assert.ErrorIs(t, err, handler.ErrEventStreamRequired)
	})

	t.Run("sends signals", func(t *testing.T) {
		t.Parallel()
		resp := handler.SSE(func(stream handler.StreamContext) error {
			if err := stream.SendSignals(map[string]any{"role": "pro"}); err != nil {
				return err
			}
			return stream.SendSignal("is_expired", false)
		})

		req := httptest.NewRequest(http.MethodGet, "/stream", nil)
		req.Header.Set("Accept", "text/event-stream")
		rec := httptest.NewRecorder()
		require.NoError(t, resp.Render(rec, req))

		body := rec.Body.String()
		assert.Contains(t, body, "datastar-patch-signals")
		assert.Contains(t, body, `{"role":"pro"}`)
		assert.Contains(t, body, `{"is_expired":false}`)
	})

	t.Run("propagates handler error", func(t *testing.T) {
		t.Parallel()
		resp := handler.SSE(func(handler.StreamContext) error { return assert.AnError })
		req := httptest.NewRequest(http.MethodGet, "/stream", nil)
		req.Header.Set("Accept", "text/event-stream")
		assert.ErrorIs(t, resp.Render(httptest.NewRecorder(), req), assert.AnError)
	})
}

func TestNewErrorHandler(t *testing.T) {
	t.Parallel()

	t.Run("json request", func(t *testing.T) {
		t.Parallel()
		var logs bytes.Buffer
		eh := handler.NewErrorHandler(slog.New(slog.NewJSONHandler(&logs, nil)))

		rec := httptest.NewRecorder()
		eh(handler.NewContext(rec, httptest.NewRequest(http.MethodPost, "/v1/subscription/checkout", nil)), handler.ErrBadGateway)

		assert.Equal(t, http.StatusBadGateway, rec.Code)
		assert.Equal(t, "bad_gateway", decode(t, rec).Error.Code)
		assert.Contains(t, logs.String(), `"status_code":502`)
		assert.Contains(t, logs.String(), `"level":"ERROR"`)
	})

	t.Run("client errors log at warn", func(t *testing.T) {
		t.Parallel()
		var logs bytes.Buffer
		eh := handler.NewErrorHandler(slog.New(slog.NewJSONHandler(&logs, nil)))

		eh(handler.NewContext(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil)), handler.ErrUnauthorized)
		assert.Contains(t, logs.String(), `"level":"WARN"`)
	})

	t.Run("datastar request gets an error signal", func(t *testing.T) {
		t.Parallel()
		eh := handler.NewErrorHandler(nil)

		req := httptest.NewRequest(http.MethodGet, "/v1/subscription/stream", nil)
		req.Header.Set("Accept", "text/event-stream")
		rec := httptest.NewRecorder()
		eh(handler.NewContext(rec, req), handler.ErrUnauthorized)

		assert.Contains(t, rec.Body.String(), "datastar-patch-signals")
		assert.Contains(t, rec.Body.String(), `"code":"unauthorized"`)
	})
}
