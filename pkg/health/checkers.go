package health

import (
	"context"
	"runtime"

	"github.com/go-faster/errors"
)

// GoroutineCountCheck fails when more than threshold goroutines are running.
func GoroutineCountCheck(threshold int) CheckFunc {
	return func(context.Context) error {
		if n := runtime.NumGoroutine(); n > threshold {
			return errors.Errorf("goroutine count %d exceeds threshold %d", n, threshold)
		}
		return nil
	}
}

// PingCheck adapts a Ping method, such as pgxpool.Pool.Ping, to a CheckFunc.
func PingCheck(ping func(context.Context) error) CheckFunc {
	return func(ctx context.Context) error {
		if err := ping(ctx); err != nil {
			return errors.Wrap(err, "ping")
		}
		return nil
	}
}

// MinCountCheck fails while count reports fewer than minimum items, for
// example an empty strategy registry.
func MinCountCheck(what string, minimum int, count func() int) CheckFunc {
	return func(context.Context) error {
		if n := count(); n < minimum {
			return errors.Errorf("%s: have %d, need at least %d", what, n, minimum)
		}
		return nil
	}
}
