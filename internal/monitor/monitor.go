// Package monitor periodically refreshes the live status of the installed
// services. It reads the installation state but never writes it.
package monitor

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nholik/aio-sentinel/internal/containers"
	"github.com/nholik/aio-sentinel/internal/healthcheck"
	"github.com/nholik/aio-sentinel/internal/metrics"
	"github.com/nholik/aio-sentinel/internal/notify"
	"github.com/nholik/aio-sentinel/internal/state"
	"github.com/nholik/aio-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

// Ticker is the minimal interface needed for driving the monitor loop.
type Ticker interface {
	C() <-chan time.Time
	Stop()
}

type timeTicker struct {
	ticker *time.Ticker
}

func (t timeTicker) C() <-chan time.Time {
	return t.ticker.C
}

func (t timeTicker) Stop() {
	t.ticker.Stop()
}

// StateReader is the read side of the installation state store.
type StateReader interface {
	Inspect(ctx context.Context) state.Snapshot
}

// StatusProber answers live status queries.
type StatusProber interface {
	IsRuntimeAvailable(ctx context.Context) bool
	GetStatus(ctx context.Context, names []string) ([]containers.ServiceStatus, error)
}

// PortSource reports the last port the node answered on.
type PortSource interface {
	WorkingPort() (int, bool)
}

// Monitor orchestrates the refresh loop.
type Monitor struct {
	logger        zerolog.Logger
	pollInterval  time.Duration
	tickerFactory func(time.Duration) Ticker
	runOnce       func(context.Context) error
	now           func() time.Time

	store    StateReader
	probe    StatusProber
	ports    PortSource
	notifier notify.Notifier
	source   string
	metrics  *metrics.Metrics
	tracker  *healthcheck.Tracker

	mu          sync.RWMutex
	last        *View
	prevStatus  map[string]containers.Status
	prevRuntime *bool
}

// Option customizes monitor behavior.
type Option func(*Monitor)

// WithTickerFactory overrides how tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(m *Monitor) {
		m.tickerFactory = factory
	}
}

// WithRunOnce overrides the single-cycle execution step.
func WithRunOnce(runOnce func(context.Context) error) Option {
	return func(m *Monitor) {
		m.runOnce = runOnce
	}
}

// WithClock overrides the clock used to stamp views.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		if now != nil {
			m.now = now
		}
	}
}

// WithPorts reports the node port in each view.
func WithPorts(ports PortSource) Option {
	return func(m *Monitor) {
		m.ports = ports
	}
}

// WithNotifier delivers service and runtime changes. Source names the installation.
func WithNotifier(notifier notify.Notifier, source string) Option {
	return func(m *Monitor) {
		m.notifier = notifier
		m.source = source
	}
}

// WithMetrics records cycle results.
func WithMetrics(collector *metrics.Metrics) Option {
	return func(m *Monitor) {
		m.metrics = collector
	}
}

// WithTracker records completed cycles for health endpoints.
func WithTracker(tracker *healthcheck.Tracker) Option {
	return func(m *Monitor) {
		m.tracker = tracker
	}
}

// New constructs a Monitor over the given state reader and prober.
func New(logger zerolog.Logger, pollInterval time.Duration, store StateReader, probe StatusProber, opts ...Option) *Monitor {
	m := &Monitor{
		logger:       logger,
		pollInterval: pollInterval,
		store:        store,
		probe:        probe,
		now:          time.Now,
		tickerFactory: func(d time.Duration) Ticker {
			return timeTicker{ticker: time.NewTicker(d)}
		},
	}
	m.runOnce = m.defaultRunOnce

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Run starts the refresh loop and blocks until the context is canceled.
func (m *Monitor) Run(ctx context.Context) error {
	if m.pollInterval <= 0 {
		return errors.New("poll interval must be greater than zero")
	}

	// Run immediately on startup
	if err := m.RunOnce(ctx); err != nil {
		m.logger.Error().Err(err).Msg("initial refresh cycle failed")
	}

	ticker := m.tickerFactory(m.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info().Msg("monitor stopped")
			return nil
		case <-ticker.C():
			if err := m.RunOnce(ctx); err != nil {
				m.logger.Error().Err(err).Msg("refresh cycle failed")
			}
		}
	}
}

// RunOnce executes a single refresh cycle.
func (m *Monitor) RunOnce(ctx context.Context) error {
	return m.runOnce(ctx)
}

// Last returns the view produced by the most recent cycle.
func (m *Monitor) Last() (View, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.last == nil {
		return View{}, false
	}
	return *m.last, true
}

func (m *Monitor) defaultRunOnce(ctx context.Context) error {
	if m.store == nil || m.probe == nil {
		return errors.New("monitor requires a state reader and a status prober")
	}
	started := m.now()

	snapshot := m.store.Inspect(ctx)
	runtimeAvailable := m.probe.IsRuntimeAvailable(ctx)
	m.metrics.SetRuntimeAvailable(runtimeAvailable)

	var statuses []containers.ServiceStatus
	if names := snapshot.State.ServiceNames(); len(names) > 0 {
		var err error
		statuses, err = m.probe.GetStatus(ctx, names)
		if err != nil {
			return wrapRuntime("probe services", err)
		}
	}

	nodePort := 0
	if m.ports != nil {
		nodePort, _ = m.ports.WorkingPort()
	}

	view := Evaluate(snapshot, statuses, runtimeAvailable, nodePort, m.now())
	changes := m.detect(view)
	m.remember(view)

	m.report(view, changes)
	if len(changes) > 0 && m.notifier != nil {
		if err := m.notifier.Notify(ctx, m.source, changes); err != nil {
			m.logger.Warn().Err(err).Int("changes", len(changes)).Msg("change notification failed")
		}
	}

	if snapshot.Status == state.StatusCorrupt || snapshot.Status == state.StatusUnreadable {
		return wrapRuntime("read installation state", snapshot.Err)
	}

	duration := m.now().Sub(started)
	m.metrics.ObserveCycleDuration(duration)
	m.metrics.SetLastSuccessfulCycleTimestamp(view.CheckedAt)
	m.tracker.RecordCycle(healthcheck.Cycle{
		Duration:         duration,
		ServicesChecked:  len(view.Services),
		RuntimeAvailable: runtimeAvailable,
		StateStatus:      string(snapshot.Status),
	})
	return nil
}

// detect compares view with the previous cycle and remembers it for the next.
func (m *Monitor) detect(view View) []transition.Change {
	m.mu.Lock()
	defer m.mu.Unlock()

	changes := make([]transition.Change, 0)
	if change, ok := transition.DetectRuntimeChange(m.prevRuntime, view.RuntimeAvailable); ok {
		changes = append(changes, change)
	}
	changes = append(changes, transition.DetectServiceChanges(m.prevStatus, liveStatuses(view), view.ServiceProfiles())...)

	available := view.RuntimeAvailable
	m.prevRuntime = &available
	m.prevStatus = view.Statuses()
	return changes
}

func (m *Monitor) remember(view View) {
	m.mu.Lock()
	m.last = &view
	m.mu.Unlock()
}

func (m *Monitor) report(view View, changes []transition.Change) {
	statuses := make(map[string]string, len(view.Services))
	for _, svc := range view.Services {
		statuses[svc.Name] = string(svc.Status)
	}
	m.metrics.SetServiceStatuses(statuses)
	m.metrics.SetSummary(view.Summary.Total, view.Summary.Running, view.Summary.Stopped, view.Summary.Missing)

	for _, change := range changes {
		m.metrics.IncTransitions(string(change.Kind))

		event := m.logger.Info()
		switch change.Severity {
		case transition.SeverityCritical:
			event = m.logger.Error()
		case transition.SeverityWarning:
			event = m.logger.Warn()
		}
		event.
			Str("kind", string(change.Kind)).
			Str("name", change.Name).
			Str("profile", change.Profile).
			Str("previous", change.Previous).
			Str("current", change.Current).
			Strs("reasons", change.Reasons).
			Msg("transition detected")
	}

	m.logger.Debug().
		Str("state", string(view.StateStatus)).
		Str("phase", string(view.Phase)).
		Int("running", view.Summary.Running).
		Int("stopped", view.Summary.Stopped).
		Int("missing", view.Summary.Missing).
		Bool("runtime_available", view.RuntimeAvailable).
		Msg("refresh cycle complete")
}

func liveStatuses(view View) []containers.ServiceStatus {
	out := make([]containers.ServiceStatus, 0, len(view.Services))
	for _, svc := range view.Services {
		out = append(out, containers.ServiceStatus{
			Name:          svc.Name,
			Status:        svc.Status,
			ContainerName: svc.ContainerName,
			Error:         svc.Error,
		})
	}
	return out
}
