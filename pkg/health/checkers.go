package health

import (
	"context"
	"io"
	"runtime"
	"runtime/debug"
	"time"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(_ context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// GCMaxPauseCheck fails when a recent GC pause exceeded threshold.
func GCMaxPauseCheck(threshold time.Duration) CheckFunc {
	return func(_ context.Context) error {
		var stats debug.GCStats
		debug.ReadGCStats(&stats)
		for _, pause := range stats.Pause {
			if pause > threshold {
				return errors.Errorf("GC pause %s exceeds threshold %s", pause, threshold)
			}
		}
		return nil
	}
}

// PingCheck calls ping, e.g. a pool's Ping method.
func PingCheck(ping func(ctx context.Context) error) CheckFunc {
	return func(ctx context.Context) error {
		return errors.Wrap(ping(ctx), "ping")
	}
}

// DialCheck opens and immediately closes a connection.
func DialCheck(dial func(ctx context.Context) (io.Closer, error)) CheckFunc {
	return func(ctx context.Context) error {
		c, err := dial(ctx)
		if err != nil {
			return errors.Wrap(err, "dial")
		}
		return c.Close()
	}
}
