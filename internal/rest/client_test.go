package rest

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/angelmondragon/packfinderz-storefront/pkg/logger"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func newTestClient(t *testing.T, baseURL string, cfg config.APIConfig, onUnauthorized func()) *Client {
	t.Helper()

	cfg.BaseURL = baseURL
	if cfg.Timeout == 0 {
		cfg.Timeout = 5 * time.Second
	}
	client, err := New(Params{Config: cfg, Logger: testLogger(), OnUnauthorized: onUnauthorized})
	require.NoError(t, err)
	return client
}

func writeEnvelope(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	io.WriteString(w, body)
}

type pingPayload struct {
	Value string `json:"value"`
}

func TestDoDecodesEnvelopeData(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/ping", func(w http.ResponseWriter, req *http.Request) {
		assert.NotEmpty(t, req.Header.Get("X-Request-ID"))
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"value":"pong"}}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := newTestClient(t, srv.URL, config.APIConfig{}, nil)

	var out pingPayload
	err := client.Do(context.Background(), Request{Name: "ping", Method: http.MethodGet, Path: "/ping", Out: &out})
	require.NoError(t, err)
	assert.Equal(t, "pong", out.Value)
}

func TestDoSendsJSONBody(t *testing.T) {
	t.Parallel()

	var received map[string]any
	r := chi.NewRouter()
	r.Post("/cart/items", func(w http.ResponseWriter, req *http.Request) {
		require.NoError(t, json.NewDecoder(req.Body).Decode(&received))
		assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{}}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := newTestClient(t, srv.URL, config.APIConfig{}, nil)

	body := map[string]any{"productId": 42, "quantity": 2}
	err := client.Do(context.Background(), Request{Name: "add", Method: http.MethodPost, Path: "/cart/items", Body: body})
	require.NoError(t, err)
	assert.EqualValues(t, 42, received["productId"])
}

func TestDoMapsBusinessErrors(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Post("/cart/items", func(w http.ResponseWriter, req *http.Request) {
		writeEnvelope(w, http.StatusBadRequest,
			`{"success":false,"message":"insufficient stock","errors":[{"field":"quantity","message":"exceeds stock"}]}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := newTestClient(t, srv.URL, config.APIConfig{}, nil)

	err := client.Do(context.Background(), Request{Name: "add", Method: http.MethodPost, Path: "/cart/items"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeValidation, typed.Code())
	assert.Equal(t, "insufficient stock", typed.Message())
	assert.Equal(t, map[string]string{"quantity": "exceeds stock"}, typed.Details())
}

func TestDoRetriesServerErrorsOnly(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/cart", func(w http.ResponseWriter, req *http.Request) {
		if calls.Add(1) < 3 {
			writeEnvelope(w, http.StatusBadGateway, `{"success":false,"message":"upstream down"}`)
			return
		}
		writeEnvelope(w, http.StatusOK, `{"success":true,"data":{"value":"ok"}}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := newTestClient(t, srv.URL, config.APIConfig{MaxRetries: 2, RetryDelay: time.Millisecond}, nil)

	var out pingPayload
	err := client.Do(context.Background(), Request{Name: "fetch", Method: http.MethodGet, Path: "/cart", Out: &out})
	require.NoError(t, err)
	assert.EqualValues(t, 3, calls.Load())
}

func TestDoDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/cart", func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusNotFound, `{"success":false,"message":"no cart"}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := newTestClient(t, srv.URL, config.APIConfig{MaxRetries: 3, RetryDelay: time.Millisecond}, nil)

	err := client.Do(context.Background(), Request{Name: "fetch", Method: http.MethodGet, Path: "/cart"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNotFound, typed.Code())
	assert.EqualValues(t, 1, calls.Load())
}

func TestDoExhaustedRetriesSurfaceServerError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	r := chi.NewRouter()
	r.Get("/cart", func(w http.ResponseWriter, req *http.Request) {
		calls.Add(1)
		writeEnvelope(w, http.StatusInternalServerError, `{"success":false}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	client := newTestClient(t, srv.URL, config.APIConfig{MaxRetries: 2, RetryDelay: time.Millisecond}, nil)

	err := client.Do(context.Background(), Request{Name: "fetch", Method: http.MethodGet, Path: "/cart"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeServer, typed.Code())
	assert.EqualValues(t, 3, calls.Load())
}

func TestDoUnauthorizedFiresHook(t *testing.T) {
	t.Parallel()

	r := chi.NewRouter()
	r.Get("/cart", func(w http.ResponseWriter, req *http.Request) {
		writeEnvelope(w, http.StatusUnauthorized, `{"success":false,"message":"session expired"}`)
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	var redirected atomic.Int32
	client := newTestClient(t, srv.URL, config.APIConfig{}, func() {
		redirected.Add(1)
	})

	err := client.Do(context.Background(), Request{Name: "fetch", Method: http.MethodGet, Path: "/cart"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeUnauthorized, typed.Code())
	assert.EqualValues(t, 1, redirected.Load())
}

func TestDoNetworkFailure(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	client := newTestClient(t, baseURL, config.APIConfig{}, nil)

	err := client.Do(context.Background(), Request{Name: "fetch", Method: http.MethodGet, Path: "/cart"})
	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	assert.Equal(t, pkgerrors.CodeNetwork, typed.Code())
}

func TestNewRequiresBaseURLAndLogger(t *testing.T) {
	t.Parallel()

	_, err := New(Params{Config: config.APIConfig{}, Logger: testLogger()})
	require.Error(t, err)

	_, err = New(Params{Config: config.APIConfig{BaseURL: "http://localhost"}})
	require.Error(t, err)
}
