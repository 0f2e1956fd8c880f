package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/nholik/aio-sentinel/internal/containers"
	"github.com/nholik/aio-sentinel/internal/state"
	"github.com/nholik/aio-sentinel/internal/transition"
)

var testNow = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

type fakeTicker struct {
	ch      chan time.Time
	stopped bool
	mu      sync.Mutex
}

func (t *fakeTicker) C() <-chan time.Time {
	return t.ch
}

func (t *fakeTicker) Stop() {
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

func (t *fakeTicker) Stopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

type fakeStore struct {
	mu       sync.Mutex
	snapshot state.Snapshot
}

func (s *fakeStore) Inspect(context.Context) state.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot
}

func (s *fakeStore) set(snapshot state.Snapshot) {
	s.mu.Lock()
	s.snapshot = snapshot
	s.mu.Unlock()
}

type fakeProbe struct {
	mu        sync.Mutex
	available bool
	statuses  map[string]containers.Status
	err       error
	queried   [][]string
}

func (p *fakeProbe) IsRuntimeAvailable(context.Context) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.available
}

func (p *fakeProbe) GetStatus(_ context.Context, names []string) ([]containers.ServiceStatus, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.queried = append(p.queried, names)
	if p.err != nil {
		return nil, p.err
	}
	out := make([]containers.ServiceStatus, 0, len(names))
	for _, name := range names {
		status, ok := p.statuses[name]
		if !ok || !p.available {
			status = containers.StatusNotFound
		}
		out = append(out, containers.ServiceStatus{Name: name, Status: status, ContainerName: name, LastChecked: testNow})
	}
	return out, nil
}

func (p *fakeProbe) setStatus(name string, status containers.Status) {
	p.mu.Lock()
	p.statuses[name] = status
	p.mu.Unlock()
}

type recordingNotifier struct {
	mu      sync.Mutex
	batches [][]transition.Change
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, changes []transition.Change) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, changes)
	return nil
}

func (n *recordingNotifier) all() [][]transition.Change {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([][]transition.Change(nil), n.batches...)
}

type fixedPort int

func (p fixedPort) WorkingPort() (int, bool) {
	return int(p), p != 0
}

func explorerState() *state.State {
	size := "12.4 GB"
	services := []state.ServiceRecord{
		{Name: "kaspa-node", Profile: "kaspa-node", Running: true, Exists: true, HasData: true, DataSize: &size},
		{Name: "kaspa-explorer", Profile: "kaspa-explorer-bundle", Running: true, Exists: true},
		{Name: "timescaledb-explorer", Profile: "kaspa-explorer-bundle", Running: false, Exists: true, HasData: true},
	}
	return &state.State{
		Version:       state.SchemaVersion,
		InstalledAt:   testNow.Add(-time.Hour),
		LastModified:  testNow.Add(-time.Minute),
		Phase:         state.PhaseComplete,
		Profiles:      state.NewProfiles("kaspa-node", "kaspa-explorer-bundle"),
		Configuration: state.Configuration{"network": "mainnet"},
		Services:      services,
		Summary:       state.Summarize(services),
	}
}

func waitForCalls(ch <-chan struct{}, count int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for i := 0; i < count; i++ {
		select {
		case <-ch:
		case <-deadline:
			return false
		}
	}
	return true
}
