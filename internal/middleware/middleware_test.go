package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"opspulse/internal/config"
	"opspulse/internal/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetClientIP(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
	r.RemoteAddr = "10.0.0.7:51234"
	assert.Equal(t, "10.0.0.7", getClientIP(r))

	r.Header.Set("X-Forwarded-For", "203.0.113.5, 10.0.0.1")
	assert.Equal(t, "203.0.113.5", getClientIP(r))
}

func TestCommandLimiter_BurstThenReject(t *testing.T) {
	l := NewCommandLimiter(&config.ServerConfig{CommandRate: 1, CommandBurst: 2})
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	ok, _ := l.Allow("a")
	assert.True(t, ok)
	ok, _ = l.Allow("a")
	assert.True(t, ok)

	ok, retry := l.Allow("a")
	assert.False(t, ok)
	assert.Equal(t, time.Second, retry)

	ok, _ = l.Allow("b")
	assert.True(t, ok, "clients are limited independently")

	now = now.Add(time.Second)
	ok, _ = l.Allow("a")
	assert.True(t, ok)
}

func TestCommandLimiter_PrunesIdleClients(t *testing.T) {
	l := NewCommandLimiter(&config.ServerConfig{CommandRate: 1, CommandBurst: 1})
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }

	l.Allow("a")
	now = now.Add(clientIdleTTL + time.Minute)
	l.Allow("b")

	assert.Len(t, l.clients, 1)
}

func TestRateLimitMiddleware(t *testing.T) {
	l := NewCommandLimiter(&config.ServerConfig{CommandRate: 0.001, CommandBurst: 1})
	h := RateLimitMiddleware(l, logger.NewDiscard())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	post := func() *httptest.ResponseRecorder {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/api/refresh", nil)
		req.RemoteAddr = "10.0.0.7:1"
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusNoContent, post().Code)
	rec := post()
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))
	assert.Contains(t, rec.Body.String(), "rate_limit_exceeded")

	get := httptest.NewRecorder()
	h.ServeHTTP(get, httptest.NewRequest(http.MethodGet, "/api/view", nil))
	assert.Equal(t, http.StatusNoContent, get.Code)
}

func TestLoggingAndCORS(t *testing.T) {
	h := Logging(logger.NewDiscard())(CORS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/api/view", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/view", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
