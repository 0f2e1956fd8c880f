package healthcheck

import (
	"sync"
	"time"
)

// Cycle describes one completed refresh cycle.
type Cycle struct {
	Duration         time.Duration
	ServicesChecked  int
	RuntimeAvailable bool
	StateStatus      string
}

// Snapshot describes the latest cycle timing details.
type Snapshot struct {
	LastCycleTime    *time.Time `json:"last_cycle_time"`
	CycleDurationMS  int64      `json:"cycle_duration_ms"`
	ServicesChecked  int        `json:"services_checked"`
	RuntimeAvailable bool       `json:"runtime_available"`
	StateStatus      string     `json:"state_status,omitempty"`
}

// Tracker records cycle timing for health endpoints.
type Tracker struct {
	now func() time.Time

	mu        sync.RWMutex
	lastCycle time.Time
	cycle     Cycle
	ready     bool
}

// TrackerOption customizes a Tracker.
type TrackerOption func(*Tracker)

// WithClock overrides the clock used to stamp cycles.
func WithClock(now func() time.Time) TrackerOption {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}

// NewTracker constructs a new Tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{now: time.Now}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// RecordCycle updates cycle timing and readiness.
func (t *Tracker) RecordCycle(cycle Cycle) {
	if t == nil {
		return
	}
	now := t.now().UTC()
	t.mu.Lock()
	t.lastCycle = now
	t.cycle = cycle
	t.ready = true
	t.mu.Unlock()
}

// Snapshot returns the current tracker snapshot.
func (t *Tracker) Snapshot() Snapshot {
	if t == nil {
		return Snapshot{}
	}
	t.mu.RLock()
	defer t.mu.RUnlock()

	var last *time.Time
	if !t.lastCycle.IsZero() {
		value := t.lastCycle
		last = &value
	}
	return Snapshot{
		LastCycleTime:    last,
		CycleDurationMS:  t.cycle.Duration.Milliseconds(),
		ServicesChecked:  t.cycle.ServicesChecked,
		RuntimeAvailable: t.cycle.RuntimeAvailable,
		StateStatus:      t.cycle.StateStatus,
	}
}

// Ready reports whether at least one successful cycle has completed.
func (t *Tracker) Ready() bool {
	if t == nil {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.ready
}

// Healthy reports whether the last cycle completed within 2x the poll interval.
func (t *Tracker) Healthy(now time.Time, pollInterval time.Duration) bool {
	if t == nil || pollInterval <= 0 {
		return false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.lastCycle.IsZero() {
		return false
	}
	return now.Sub(t.lastCycle) <= 2*pollInterval
}
