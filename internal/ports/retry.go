package ports

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Ticker is the minimal interface needed for driving the retry loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type backoffTicker struct {
	ticker *backoff.Ticker
}

// newBackoffTicker ticks immediately and then every interval.
func newBackoffTicker(interval time.Duration) Ticker {
	return backoffTicker{ticker: backoff.NewTicker(backoff.NewConstantBackOff(interval))}
}

func (t backoffTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t backoffTicker) Stop() {
	t.ticker.Stop()
}

// StartRetry runs Connect on every retry interval until it succeeds, then
// calls onSuccess once and stops. A loop already running is stopped first, and
// concurrent callers leave exactly one loop running.
func (r *Resolver) StartRetry(ctx context.Context, onSuccess func(port int)) {
	r.retryMu.Lock()
	defer r.retryMu.Unlock()

	r.stopLocked()

	r.mu.Lock()
	interval := r.opts.RetryInterval
	r.mu.Unlock()

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	r.retryCancel = cancel
	r.retryDone = done

	go func() {
		port, ok := r.retryLoop(loopCtx, interval)
		close(done)
		if ok && onSuccess != nil {
			onSuccess(port)
		}
	}()
}

func (r *Resolver) retryLoop(ctx context.Context, interval time.Duration) (int, bool) {
	ticker := r.tickerFactory(interval)
	defer ticker.Stop()

	r.logger.Debug().Dur("interval", interval).Msg("port retry loop started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug().Msg("port retry loop stopped")
			return 0, false
		case <-ticker.C():
			port, err := r.Connect(ctx)
			if err == nil {
				return port, true
			}
			var exhausted *ExhaustedError
			if errors.As(err, &exhausted) {
				r.logger.Debug().Ints("attempted", exhausted.Attempted).Msg("dependent service still unreachable")
			}
		}
	}
}

// StopRetry cancels the retry loop and waits for it to exit. It is safe to
// call when no loop is running.
func (r *Resolver) StopRetry() {
	r.retryMu.Lock()
	defer r.retryMu.Unlock()
	r.stopLocked()
}

// stopLocked cancels and awaits the current loop. retryMu must be held; the
// loop closes done before calling onSuccess, so the wait never needs retryMu.
func (r *Resolver) stopLocked() {
	if r.retryCancel == nil {
		return
	}
	r.retryCancel()
	<-r.retryDone
	r.retryCancel = nil
	r.retryDone = nil
}

// Retrying reports whether a retry loop is still running.
func (r *Resolver) Retrying() bool {
	r.retryMu.Lock()
	done := r.retryDone
	r.retryMu.Unlock()
	if done == nil {
		return false
	}
	select {
	case <-done:
		return false
	default:
		return true
	}
}
