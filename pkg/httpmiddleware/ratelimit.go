package httpmiddleware

import (
	"context"
	"math"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Limiter counts requests per key over a sliding window. The previous fixed
// window still counts in proportion to its overlap with the sliding one.
// A Limiter may back several middlewares.
type Limiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket
}

type bucket struct {
	start time.Time // start of the current fixed window
	curr  int
	prev  int
}

// Decision is the outcome of a single Limiter.Allow call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	Reset     time.Time
}

// NewLimiter allows limit requests per key within window.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return &Limiter{
		max:     limit,
		window:  window,
		now:     time.Now,
		buckets: make(map[string]*bucket),
	}
}

// Allow records a request for key unless that would exceed the budget.
func (l *Limiter) Allow(key string) Decision {
	now := l.now()
	start := now.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.buckets[key]
	switch {
	case !ok:
		b = &bucket{start: start}
		l.buckets[key] = b
	case start.Sub(b.start) >= 2*l.window:
		*b = bucket{start: start}
	case start.After(b.start):
		b.prev, b.curr, b.start = b.curr, 0, start
	}

	overlap := 1 - float64(now.Sub(start))/float64(l.window)
	used := float64(b.prev)*overlap + float64(b.curr)

	d := Decision{Limit: l.max, Reset: start.Add(l.window)}
	if used >= float64(l.max) {
		return d
	}
	b.curr++
	d.Allowed = true
	d.Remaining = max(0, int(float64(l.max)-used-1))
	return d
}

// Run drops idle keys every two windows until ctx is done.
func (l *Limiter) Run(ctx context.Context) {
	ticker := time.NewTicker(2 * l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.evict(l.now())
		}
	}
}

func (l *Limiter) evict(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, b := range l.buckets {
		if now.Sub(b.start) >= 2*l.window {
			delete(l.buckets, key)
		}
	}
}

// KeyFunc names the client a request is counted against.
type KeyFunc func(r *http.Request) string

// RateLimit answers 429 once the client behind key has spent its budget in
// l. A nil key counts by ClientIP. Every response carries the
// X-RateLimit-Limit, X-RateLimit-Remaining and X-RateLimit-Reset headers.
func RateLimit(l *Limiter, key KeyFunc) Middleware {
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			d := l.Allow(key(r))

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(d.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(d.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(d.Reset.Unix(), 10))

			if !d.Allowed {
				wait := max(0, d.Reset.Sub(l.now()))
				h.Set("Retry-After", strconv.Itoa(int(math.Ceil(wait.Seconds()))))
				writeError(w, http.StatusTooManyRequests, "rate_limited", "rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP is the first X-Forwarded-For hop, then X-Real-IP, then the host
// part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
