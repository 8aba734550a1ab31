package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/segmentio/encoding/json"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
)

func TestHandleHealthCheck(t *testing.T) {
	w := httptest.NewRecorder()
	HandleHealthCheck(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleReadyCheck(t *testing.T) {
	ready := false
	h := HandleReadyCheck(func() bool { return ready })

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusServiceUnavailable, w.Code)

	ready = true
	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/ready", nil))
	require.Equal(t, http.StatusOK, w.Code)
}

func TestHandleVersion(t *testing.T) {
	w := httptest.NewRecorder()
	HandleVersion("v1.2.3")(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "v1.2.3", w.Body.String())

	w = httptest.NewRecorder()
	HandleVersion("v1.2.3")(w, httptest.NewRequest(http.MethodHead, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Empty(t, w.Body.String())
}

func TestHandleJSON(t *testing.T) {
	type status struct {
		Frame uint64 `json:"frame"`
		Mode  string `json:"mode"`
	}

	h := HandleJSON(func() any {
		return status{Frame: 12, Mode: "dynamic"}
	})

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/visibility", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var s status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &s))
	require.Equal(t, status{Frame: 12, Mode: "dynamic"}, s)

	w = httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodPost, "/visibility", nil))
	require.Equal(t, http.StatusMethodNotAllowed, w.Code)

	w = httptest.NewRecorder()
	HandleJSON(func() any { return make(chan int) })(w, httptest.NewRequest(http.MethodGet, "/visibility", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestVerifyAuthTokenHandler(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	tests := []struct {
		scenario string
		token    string
		header   string
		query    string
		code     int
	}{
		{
			scenario: "no token configured",
			code:     http.StatusNoContent,
		},
		{
			scenario: "bearer token",
			token:    "secret",
			header:   "Bearer secret",
			code:     http.StatusNoContent,
		},
		{
			scenario: "query token",
			token:    "secret",
			query:    "?token=secret",
			code:     http.StatusNoContent,
		},
		{
			scenario: "wrong token",
			token:    "secret",
			header:   "Bearer nope",
			code:     http.StatusUnauthorized,
		},
		{
			scenario: "missing token",
			token:    "secret",
			code:     http.StatusUnauthorized,
		},
	}

	for _, test := range tests {
		t.Run(test.scenario, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/visibility"+test.query, nil)
			if test.header != "" {
				r.Header.Set("Authorization", test.header)
			}

			w := httptest.NewRecorder()
			VerifyAuthTokenHandler(test.token, next)(w, r)
			require.Equal(t, test.code, w.Code)
		})
	}
}

func TestVerifyAuthToken(t *testing.T) {
	handshake := VerifyAuthToken("secret")

	r := httptest.NewRequest(http.MethodGet, "/?token=secret", nil)
	require.NoError(t, handshake(&websocket.Config{}, r))

	r = httptest.NewRequest(http.MethodGet, "/", nil)
	require.Error(t, handshake(&websocket.Config{}, r))
}

func TestMetricsPathFormatter(t *testing.T) {
	require.Equal(t, "/ready", MetricsPathFormatter(http.StatusOK, "/ready"))
	require.Equal(t, "/ready", MetricsPathFormatter(http.StatusServiceUnavailable, "/ready"))
	require.Empty(t, MetricsPathFormatter(http.StatusNotFound, "/nope"))
	require.Empty(t, MetricsPathFormatter(http.StatusUnauthorized, "/visibility"))
}

func TestListenAndServe(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		ListenAndServe(ctx, &http.Server{Addr: "127.0.0.1:0"})
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(2 * ShutdownTimeout):
		t.Fatal("servers did not stop")
	}
}

func TestHandleWithCORS(t *testing.T) {
	h := HandleWithCORS(HandleVersion("v1"))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/version", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "v1", w.Body.String())

	w = httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodOptions, "/version", nil))
	require.Equal(t, http.StatusNoContent, w.Code)
	require.Empty(t, w.Body.String())
}
