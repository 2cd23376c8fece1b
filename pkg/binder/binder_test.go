package binder_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tradedesk/pkg/binder"
)

type checkoutRequest struct {
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

func jsonRequest(body, contentType string) *http.Request {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	return r
}

func TestJSON(t *testing.T) {
	t.Parallel()
	bind := binder.JSON()

	t.Run("decodes body", func(t *testing.T) {
		t.Parallel()
		var req checkoutRequest
		err := bind(jsonRequest(`{"success_url":"https://a/ok","cancel_url":"https://a/no"}`, "application/json; charset=utf-8"), &req)
		require.NoError(t, err)
		assert.Equal(t, "https://a/ok", req.SuccessURL)
		assert.Equal(t, "https://a/no", req.CancelURL)
	})

	t.Run("empty body is not applicable", func(t *testing.T) {
		t.Parallel()
		var req checkoutRequest
		err := bind(httptest.NewRequest(http.MethodPost, "/", nil), &req)
		assert.ErrorIs(t, err, binder.ErrBinderNotApplicable)
	})

	t.Run("wrong content type", func(t *testing.T) {
		t.Parallel()
		var req checkoutRequest
		err := bind(jsonRequest(`{}`, "text/plain"), &req)
		assert.ErrorIs(t, err, binder.ErrUnsupportedMediaType)
	})

	t.Run("missing content type", func(t *testing.T) {
		t.Parallel()
		var req checkoutRequest
		err := bind(jsonRequest(`{}`, ""), &req)
		assert.ErrorIs(t, err, binder.ErrUnsupportedMediaType)
	})

	t.Run("unknown fields rejected", func(t *testing.T) {
		t.Parallel()
		var req checkoutRequest
		err := bind(jsonRequest(`{"plan":"pro"}`, "application/json"), &req)
		assert.ErrorIs(t, err, binder.ErrInvalidJSON)
	})

	t.Run("trailing data rejected", func(t *testing.T) {
		t.Parallel()
		var req checkoutRequest
		err := bind(jsonRequest(`{}{}`, "application/json"), &req)
		assert.ErrorIs(t, err, binder.ErrInvalidJSON)
	})

	t.Run("too large", func(t *testing.T) {
		t.Parallel()
		var req checkoutRequest
		body := `{"success_url":"` + strings.Repeat("a", binder.DefaultMaxJSONSize) + `"}`
		err := bind(jsonRequest(body, "application/json"), &req)
		assert.ErrorIs(t, err, binder.ErrBodyTooLarge)
	})
}

func TestPath(t *testing.T) {
	t.Parallel()

	type featureRequest struct {
		Feature string `path:"feature"`
		Page    int    `path:"page"`
		Skip    string `path:"-"`
	}
	params := map[string]string{"feature": "learn", "page": "2", "Skip": "x"}
	extract := func(_ *http.Request, name string) string { return params[name] }

	var req featureRequest
	require.NoError(t, binder.Path(extract)(httptest.NewRequest(http.MethodGet, "/", nil), &req))
	assert.Equal(t, "learn", req.Feature)
	assert.Equal(t, 2, req.Page)
	assert.Empty(t, req.Skip)

	bad := func(_ *http.Request, name string) string {
		if name == "page" {
			return "two"
		}
		return ""
	}
	err := binder.Path(bad)(httptest.NewRequest(http.MethodGet, "/", nil), &req)
	assert.ErrorIs(t, err, binder.ErrInvalidPath)

	err = binder.Path(nil)(httptest.NewRequest(http.MethodGet, "/", nil), &req)
	assert.ErrorIs(t, err, binder.ErrInvalidPath)

	err = binder.Path(extract)(httptest.NewRequest(http.MethodGet, "/", nil), req)
	assert.ErrorIs(t, err, binder.ErrInvalidPath)
}

func TestQuery(t *testing.T) {
	t.Parallel()

	type streamRequest struct {
		Poll     time.Duration `query:"poll"`
		Features []string      `query:"features"`
		Verbose  *bool         `query:"verbose"`
	}

	var req streamRequest
	r := httptest.NewRequest(http.MethodGet, "/?poll=30s&features=learn,strategy-ai&verbose=yes", nil)
	require.NoError(t, binder.Query()(r, &req))
	assert.Equal(t, 30*time.Second, req.Poll)
	assert.Equal(t, []string{"learn", "strategy-ai"}, req.Features)
	require.NotNil(t, req.Verbose)
	assert.True(t, *req.Verbose)

	err := binder.Query()(httptest.NewRequest(http.MethodGet, "/", nil), &req)
	assert.ErrorIs(t, err, binder.ErrBinderNotApplicable)

	err = binder.Query()(httptest.NewRequest(http.MethodGet, "/?poll=soon", nil), &req)
	assert.ErrorIs(t, err, binder.ErrInvalidQuery)
}
