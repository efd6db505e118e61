package httpmiddleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func testLimiter(limit int, window time.Duration) (*Limiter, *clock) {
	c := &clock{t: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
	l := NewLimiter(limit, window)
	l.now = c.now
	return l, c
}

func TestLimiter_SlidingWindow(t *testing.T) {
	l, c := testLimiter(4, time.Minute)

	for i := range 4 {
		d := l.Allow("a")
		require.True(t, d.Allowed, "request %d", i+1)
		assert.Equal(t, 3-i, d.Remaining)
	}
	d := l.Allow("a")
	assert.False(t, d.Allowed)
	assert.Zero(t, d.Remaining)
	assert.Equal(t, c.t.Add(time.Minute), d.Reset)

	assert.True(t, l.Allow("b").Allowed, "keys are independent")

	// Halfway into the next window the previous one still weighs 4 * 0.5.
	c.t = c.t.Add(90 * time.Second)
	assert.True(t, l.Allow("a").Allowed)
	assert.True(t, l.Allow("a").Allowed)
	assert.False(t, l.Allow("a").Allowed)

	// Two idle windows reset the key.
	c.t = c.t.Add(2 * time.Minute)
	d = l.Allow("a")
	assert.True(t, d.Allowed)
	assert.Equal(t, 3, d.Remaining)
}

func TestLimiter_Evict(t *testing.T) {
	l, c := testLimiter(1, time.Minute)
	l.Allow("old")
	c.t = c.t.Add(time.Minute)
	l.Allow("fresh")

	c.t = c.t.Add(90 * time.Second)
	l.evict(c.t)
	assert.NotContains(t, l.buckets, "old")
	assert.Contains(t, l.buckets, "fresh")
}

func TestLimiter_RunStops(t *testing.T) {
	l := NewLimiter(1, time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRateLimit(t *testing.T) {
	l, c := testLimiter(2, time.Minute)
	c.t = c.t.Add(20 * time.Second)
	h := RateLimit(l, nil)(okHandler())

	send := func(remote string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
		req.RemoteAddr = remote
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w
	}

	for range 2 {
		w := send("10.0.0.1:9999")
		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "2", w.Header().Get("X-RateLimit-Limit"))
	}

	w := send("10.0.0.1:1234")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.Equal(t, "40", w.Header().Get("Retry-After"))
	assert.Equal(t, "1772366460", w.Header().Get("X-RateLimit-Reset"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "rate_limited", body["code"])

	assert.Equal(t, http.StatusOK, send("10.0.0.2:1234").Code)
}

func TestRateLimit_KeyFunc(t *testing.T) {
	l, _ := testLimiter(1, time.Minute)
	h := RateLimit(l, func(r *http.Request) string {
		return r.Header.Get("Authorization")
	})(okHandler())

	send := func(auth string) int {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", auth)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		return w.Code
	}

	assert.Equal(t, http.StatusOK, send("Bearer a"))
	assert.Equal(t, http.StatusTooManyRequests, send("Bearer a"))
	assert.Equal(t, http.StatusOK, send("Bearer b"))
}

func TestClientIP(t *testing.T) {
	for _, tt := range []struct {
		name    string
		remote  string
		headers map[string]string
		want    string
	}{
		{"RemoteAddr", "192.168.1.1:4444", nil, "192.168.1.1"},
		{"NoPort", "192.168.1.1", nil, "192.168.1.1"},
		{"ForwardedFirstHop", "192.168.1.1:4444", map[string]string{"X-Forwarded-For": " 203.0.113.50 , 70.41.3.18"}, "203.0.113.50"},
		{"RealIP", "192.168.1.1:4444", map[string]string{"X-Real-IP": "198.51.100.7"}, "198.51.100.7"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
