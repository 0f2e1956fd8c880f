// Package agent runs the long-lived parts of aio-sentinel together: the state
// watch, node port discovery, the live monitor and the HTTP listeners.
package agent

import (
	"context"
	"strconv"
	"sync"

	"github.com/nholik/aio-sentinel/internal/faults"
	"github.com/nholik/aio-sentinel/internal/metrics"
	"github.com/nholik/aio-sentinel/internal/notify"
	"github.com/nholik/aio-sentinel/internal/state"
	"github.com/nholik/aio-sentinel/internal/transition"
	"github.com/rs/zerolog"
)

// StateWatcher is the part of state.Store the agent needs.
type StateWatcher interface {
	Read(ctx context.Context) *state.State
	Watch(fn state.WatchFunc) (unsubscribe func())
}

// PortDiscovery finds the port the node answers on.
type PortDiscovery interface {
	Connect(ctx context.Context) (int, error)
	StartRetry(ctx context.Context, onSuccess func(port int))
	StopRetry()
	SetConfiguredPort(port int)
}

// Runner is a blocking loop such as the monitor.
type Runner interface {
	Run(ctx context.Context) error
}

const nodeName = "kaspa-node"

// Agent coordinates the background work of one installation.
type Agent struct {
	logger    zerolog.Logger
	states    StateWatcher
	ports     PortDiscovery
	monitor   Runner
	notifier  notify.Notifier
	source    string
	presenter *faults.Presenter
	metrics   *metrics.Metrics
	serve     func(ctx context.Context)

	mu             sync.Mutex
	last           *state.State
	configuredPort int
	stopping       bool
	pending        sync.WaitGroup
}

// Option customizes an Agent.
type Option func(*Agent)

// WithPorts enables node port discovery. configuredPort is the port the
// resolver was built with.
func WithPorts(ports PortDiscovery, configuredPort int) Option {
	return func(a *Agent) {
		a.ports = ports
		a.configuredPort = configuredPort
	}
}

// WithMonitor runs the live status loop.
func WithMonitor(monitor Runner) Option {
	return func(a *Agent) {
		a.monitor = monitor
	}
}

// WithNotifier delivers phase and port changes. Source names the installation.
func WithNotifier(notifier notify.Notifier, source string) Option {
	return func(a *Agent) {
		a.notifier = notifier
		a.source = source
	}
}

// WithMetrics counts transitions and faults.
func WithMetrics(m *metrics.Metrics) Option {
	return func(a *Agent) {
		a.metrics = m
	}
}

// WithServer starts listeners bound to the agent's context.
func WithServer(serve func(ctx context.Context)) Option {
	return func(a *Agent) {
		a.serve = serve
	}
}

// New constructs an Agent over the installation state.
func New(logger zerolog.Logger, states StateWatcher, opts ...Option) *Agent {
	a := &Agent{
		logger: logger,
		states: states,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.presenter = faults.NewPresenter(logger, a.metrics)
	return a
}

// Run blocks until ctx is canceled or the monitor fails to start. Background
// work is stopped before it returns.
func (a *Agent) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.logger.Info().Msg("starting agent")

	initial := a.states.Read(ctx)
	a.mu.Lock()
	a.last = initial
	a.mu.Unlock()
	if initial == nil {
		a.presenter.Present(faults.CategoryNoInstallFound, nil)
	}

	unsubscribe := a.states.Watch(func(st *state.State, err error) {
		a.onStateChange(ctx, st, err)
	})

	if a.ports != nil {
		a.applyConfiguredPort(initial)
		a.background(func() { a.discover(ctx) })
	}

	if a.serve != nil {
		a.serve(ctx)
	}

	monitorErr := make(chan error, 1)
	if a.monitor != nil {
		go func() {
			monitorErr <- a.monitor.Run(ctx)
		}()
	}

	var err error
	select {
	case <-ctx.Done():
	case err = <-monitorErr:
		if err != nil {
			a.logger.Error().Err(err).Msg("monitor exited with error")
		}
	}

	cancel()
	unsubscribe()
	if a.ports != nil {
		a.ports.StopRetry()
	}
	a.mu.Lock()
	a.stopping = true
	a.mu.Unlock()
	a.pending.Wait()
	a.logger.Info().Msg("agent stopped")
	return err
}

// background runs fn on a goroutine Run waits for. Nothing new starts once
// Run is shutting down.
func (a *Agent) background(fn func()) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.stopping {
		return
	}
	a.pending.Add(1)
	go func() {
		defer a.pending.Done()
		fn()
	}()
}

// onStateChange runs on the store's broadcast goroutine; slow work is moved off it.
func (a *Agent) onStateChange(ctx context.Context, st *state.State, err error) {
	if err != nil {
		a.presenter.PresentError(err)
		return
	}

	a.mu.Lock()
	prev := a.last
	a.last = st
	a.mu.Unlock()

	if change, ok := transition.DetectPhaseChange(prev, st); ok {
		a.logger.Info().
			Str("previous", change.Previous).
			Str("current", change.Current).
			Msg("installation phase changed")
		a.publish(ctx, change)
	}

	if a.ports != nil && a.applyConfiguredPort(st) {
		a.background(func() { a.discover(ctx) })
	}
}

// applyConfiguredPort points the resolver at the node port recorded in st.
// It reports whether the port changed.
func (a *Agent) applyConfiguredPort(st *state.State) bool {
	if st == nil {
		return false
	}
	port, ok := st.Configuration.NodePort()
	if !ok {
		return false
	}

	a.mu.Lock()
	changed := port != a.configuredPort
	a.configuredPort = port
	a.mu.Unlock()

	if changed {
		a.ports.SetConfiguredPort(port)
	}
	return changed
}

// discover connects once and falls back to the retry loop.
func (a *Agent) discover(ctx context.Context) {
	port, err := a.ports.Connect(ctx)
	if err == nil {
		a.logger.Info().Int("port", port).Msg("node reachable")
		return
	}
	if ctx.Err() != nil {
		return
	}

	a.presenter.PresentError(err)
	a.publish(ctx, transition.Change{
		Kind:     transition.KindPort,
		Name:     nodeName,
		Current:  "unreachable",
		Severity: transition.SeverityWarning,
		Reasons:  []string{err.Error()},
	})

	a.ports.StartRetry(ctx, func(port int) {
		a.logger.Info().Int("port", port).Msg("node reachable after retry")
		a.publish(ctx, transition.Change{
			Kind:     transition.KindPort,
			Name:     nodeName,
			Previous: "unreachable",
			Current:  strconv.Itoa(port),
			Severity: transition.SeverityOK,
		})
	})
}

func (a *Agent) publish(ctx context.Context, change transition.Change) {
	a.metrics.IncTransitions(string(change.Kind))
	if a.notifier == nil {
		return
	}
	a.background(func() {
		if err := a.notifier.Notify(ctx, a.source, []transition.Change{change}); err != nil && ctx.Err() == nil {
			a.logger.Warn().Err(err).Str("kind", string(change.Kind)).Msg("change notification failed")
		}
	})
}
