// Package health serves liveness and readiness probes backed by periodic
// checks.
//
// A check flips to unhealthy after FailureThreshold consecutive failures and
// back after SuccessThreshold consecutive successes, so a single failed ping
// does not take the service out of rotation.
package health

import (
	"context"
	"net/http"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-faster/jx"
	"golang.org/x/sync/errgroup"
)

// CheckFunc returns nil when the checked component is healthy.
type CheckFunc func(ctx context.Context) error

// Check describes one registered probe.
type Check struct {
	Name    string
	Timeout time.Duration
	Func    CheckFunc
	// FailureThreshold defaults to 3.
	FailureThreshold int
	// SuccessThreshold defaults to 1.
	SuccessThreshold int
}

// state is the runtime state of a check. run is only called from the
// check's own loop; healthy and lastErr are read by HTTP handlers.
type state struct {
	Check

	healthy atomic.Bool
	lastErr atomic.Pointer[error]

	fails int
	oks   int
}

func newState(c Check) *state {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SuccessThreshold <= 0 {
		c.SuccessThreshold = 1
	}
	if c.Timeout <= 0 {
		c.Timeout = time.Second
	}
	s := &state{Check: c}
	s.healthy.Store(true)
	return s
}

func (s *state) isHealthy() bool { return s.healthy.Load() }

func (s *state) getLastError() error {
	if p := s.lastErr.Load(); p != nil {
		return *p
	}
	return nil
}

func (s *state) run(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	err := s.Func(ctx)
	s.lastErr.Store(&err)

	if err != nil {
		s.oks = 0
		s.fails++
		if s.fails >= s.FailureThreshold {
			s.healthy.Store(false)
		}
		return
	}
	s.fails = 0
	s.oks++
	if s.oks >= s.SuccessThreshold {
		s.healthy.Store(true)
	}
}

func (s *state) loop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.run(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx)
		}
	}
}

// Health aggregates liveness and readiness checks.
type Health struct {
	ready atomic.Bool

	mu        sync.RWMutex
	liveness  []*state
	readiness []*state
	cancel    context.CancelFunc
	done      chan struct{}
}

// New returns a Health that is not ready until SetReady(true).
func New() *Health {
	return &Health{}
}

// AddLiveness registers a liveness check.
func (h *Health) AddLiveness(c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.liveness = append(h.liveness, newState(c))
}

// AddReadiness registers a readiness check.
func (h *Health) AddReadiness(c Check) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.readiness = append(h.readiness, newState(c))
}

// AddLivenessCheck registers a liveness check with default thresholds.
func (h *Health) AddLivenessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.AddLiveness(Check{Name: name, Timeout: timeout, Func: check})
}

// AddReadinessCheck registers a readiness check with default thresholds.
func (h *Health) AddReadinessCheck(name string, timeout time.Duration, check CheckFunc) {
	h.AddReadiness(Check{Name: name, Timeout: timeout, Func: check})
}

func (h *Health) all() []*state {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]*state, 0, len(h.liveness)+len(h.readiness))
	out = append(out, h.liveness...)
	return append(out, h.readiness...)
}

// Run executes every check each interval until ctx is done.
func (h *Health) Run(ctx context.Context, interval time.Duration) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range h.all() {
		g.Go(func() error {
			s.loop(ctx, interval)
			return nil
		})
	}
	return g.Wait()
}

// Start runs the checks in the background until Stop or ctx cancellation.
func (h *Health) Start(ctx context.Context, interval time.Duration) {
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	h.mu.Lock()
	h.cancel = cancel
	h.done = done
	h.mu.Unlock()

	go func() {
		defer close(done)
		_ = h.Run(ctx, interval)
	}()
}

// Stop cancels the background checks and waits for them to exit. It is safe
// to call more than once.
func (h *Health) Stop() {
	h.mu.Lock()
	cancel, done := h.cancel, h.done
	h.cancel, h.done = nil, nil
	h.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// SetReady toggles the manual readiness flag.
func (h *Health) SetReady(ready bool) {
	h.ready.Store(ready)
}

// IsReady reports whether the service is marked ready and all readiness
// checks pass.
func (h *Health) IsReady() bool {
	if !h.ready.Load() {
		return false
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, s := range h.readiness {
		if !s.isHealthy() {
			return false
		}
	}
	return true
}

// LiveEndpoint serves /livez.
func (h *Health) LiveEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	failures := collectFailures(h.liveness)
	h.mu.RUnlock()

	writeResponse(w, failures)
}

// ReadyEndpoint serves /readyz.
func (h *Health) ReadyEndpoint(w http.ResponseWriter, _ *http.Request) {
	h.mu.RLock()
	failures := collectFailures(h.readiness)
	h.mu.RUnlock()

	if !h.ready.Load() {
		failures["_readiness"] = "service is not ready"
	}
	writeResponse(w, failures)
}

func collectFailures(states []*state) map[string]string {
	failures := make(map[string]string)
	for _, s := range states {
		if s.isHealthy() {
			continue
		}
		if err := s.getLastError(); err != nil {
			failures[s.Name] = err.Error()
		} else {
			failures[s.Name] = "check is unhealthy"
		}
	}
	return failures
}

func writeResponse(w http.ResponseWriter, failures map[string]string) {
	status := http.StatusOK
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		if len(failures) == 0 {
			e.Field("status", func(e *jx.Encoder) { e.Str("ok") })
			return
		}
		status = http.StatusServiceUnavailable
		e.Field("status", func(e *jx.Encoder) { e.Str("unhealthy") })

		names := make([]string, 0, len(failures))
		for name := range failures {
			names = append(names, name)
		}
		sort.Strings(names)
		e.Field("checks", func(e *jx.Encoder) {
			e.Obj(func(e *jx.Encoder) {
				for _, name := range names {
					e.Field(name, func(e *jx.Encoder) { e.Str(failures[name]) })
				}
			})
		})
	})

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(e.Bytes())
}
