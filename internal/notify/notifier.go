package notify

import (
	"context"
	"time"

	"github.com/nholik/aio-sentinel/internal/metrics"
	"github.com/nholik/aio-sentinel/internal/transition"
)

// Notifier delivers change alerts to external systems. Source names the
// installation the changes were observed on.
type Notifier interface {
	Notify(ctx context.Context, source string, changes []transition.Change) error
}

// Option customizes HTTP-backed notifiers.
type Option func(*settings)

type settings struct {
	timing  timingConfig
	metrics *metrics.Metrics
}

func newSettings(opts []Option) settings {
	s := settings{timing: defaultTiming}
	for _, opt := range opts {
		if opt != nil {
			opt(&s)
		}
	}
	return s
}

// WithTiming overrides rate limit and backoff parameters (primarily for testing).
func WithTiming(rateInterval time.Duration, rateBurst int, backoffInitial, backoffMax, backoffMaxElapsed time.Duration) Option {
	return func(s *settings) {
		s.timing.rateInterval = rateInterval
		s.timing.rateBurst = rateBurst
		s.timing.backoffInitial = backoffInitial
		s.timing.backoffMax = backoffMax
		s.timing.backoffMaxElapsed = backoffMaxElapsed
	}
}

// WithMetrics records delivery results.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

func sourceOrDefault(source string) string {
	if source == "" {
		return "kaspa-aio"
	}
	return source
}
