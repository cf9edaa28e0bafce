package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uiucchat/chatcore/internal/profile"
)

func newTestServer(t *testing.T, mutate func(*profile.Profile)) *Server {
	t.Helper()
	p := &profile.Profile{Mode: "dev", Version: "test", Data: t.TempDir()}
	if mutate != nil {
		mutate(p)
	}
	require.NoError(t, p.Validate())
	s, err := NewServer(context.Background(), p, nil)
	require.NoError(t, err)
	return s
}

func get(s *Server, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthAndMetrics(t *testing.T) {
	s := newTestServer(t, nil)

	rec := get(s, "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok","version":"test"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(`{}`))
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(s, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `chatcore_http_requests_total{method="GET",route="/healthz",status="200"} 1`)
	assert.Contains(t, body, `chatcore_http_requests_total{method="POST",route="/api/v1/chat",status="400"} 1`)
	assert.Contains(t, body, `chatcore_validation_failures_total{field="model"} 1`)
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(p *profile.Profile) {
		p.RateLimit = 0.001
		p.RateBurst = 2
	})

	assert.Equal(t, http.StatusServiceUnavailable, get(s, "/api/v1/conversations").Code)
	assert.Equal(t, http.StatusServiceUnavailable, get(s, "/api/v1/conversations").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(s, "/api/v1/conversations").Code)
	// Health checks are never limited.
	assert.Equal(t, http.StatusOK, get(s, "/healthz").Code)
}

func TestRateLimiterSweepsIdleVisitors(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	r := newRateLimiter(1, 1)
	r.now = func() time.Time { return now }

	assert.True(t, r.allow("a"))
	assert.False(t, r.allow("a"))
	assert.True(t, r.allow("b"))

	now = now.Add(2 * visitorTTL)
	assert.True(t, r.allow("a"))
	assert.Len(t, r.visitors, 1)
}
