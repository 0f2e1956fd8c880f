package containers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type fakeRuntime struct {
	mu         sync.Mutex
	pingErr    error
	pings      int
	containers map[string][]Container
	listErr    error
}

func (f *fakeRuntime) Ping(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	return f.pingErr
}

func (f *fakeRuntime) ListByName(ctx context.Context, name string) ([]Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.containers[name], nil
}

func (f *fakeRuntime) Close() error {
	return nil
}

func (f *fakeRuntime) pingCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.pings
}

func TestProbe_RuntimeUnavailable(t *testing.T) {
	runtime := &fakeRuntime{pingErr: errors.New("dial unix /var/run/docker.sock: connect: no such file or directory")}
	probe := NewProbe(zerolog.Nop(), runtime)

	statuses, err := probe.GetStatus(context.Background(), []string{"kaspa-node", "dashboard"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("expected 2 statuses, got %d", len(statuses))
	}
	for i, name := range []string{"kaspa-node", "dashboard"} {
		got := statuses[i]
		if got.Name != name || got.Status != StatusNotFound || got.Error != "runtime unavailable" {
			t.Fatalf("unexpected status %+v", got)
		}
	}

	detail, err := probe.GetDetail(context.Background(), "kaspa-node")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !errors.Is(detail.Err(), ErrRuntimeUnavailable) {
		t.Fatalf("expected ErrRuntimeUnavailable, got %v", detail.Err())
	}
}

func TestProbe_AvailabilityIsCached(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	runtime := &fakeRuntime{pingErr: errors.New("down")}
	probe := NewProbe(zerolog.Nop(), runtime, WithClock(func() time.Time { return now }))

	if probe.IsRuntimeAvailable(context.Background()) {
		t.Fatalf("expected unavailable")
	}
	runtime.mu.Lock()
	runtime.pingErr = nil
	runtime.mu.Unlock()

	now = now.Add(10 * time.Second)
	if probe.IsRuntimeAvailable(context.Background()) {
		t.Fatalf("expected cached unavailable result within the window")
	}
	if runtime.pingCount() != 1 {
		t.Fatalf("expected a single ping, got %d", runtime.pingCount())
	}

	now = now.Add(30 * time.Second)
	if !probe.IsRuntimeAvailable(context.Background()) {
		t.Fatalf("expected availability to be re-probed after the window")
	}
	if runtime.pingCount() != 2 {
		t.Fatalf("expected two pings, got %d", runtime.pingCount())
	}

	probe.Invalidate()
	probe.IsRuntimeAvailable(context.Background())
	if runtime.pingCount() != 3 {
		t.Fatalf("expected invalidate to force a ping, got %d", runtime.pingCount())
	}
}

func TestProbe_GetDetailClassifies(t *testing.T) {
	runtime := &fakeRuntime{containers: map[string][]Container{
		"kaspa-node": {{
			ID:     "abc123",
			Name:   "kaspa-node",
			Image:  "kaspanet/rusty-kaspad:latest",
			State:  "running",
			Status: "Up 2 hours (healthy)",
			Ports:  []string{"16110/tcp", "16111/tcp"},
		}},
		"kasia-indexer": {
			{Name: "kasia-indexer", State: "exited", Status: "Exited (1) 2 minutes ago"},
			{Name: "kasia-indexer", State: "running", Status: "Up 1 second (health: starting)"},
		},
	}}
	probe := NewProbe(zerolog.Nop(), runtime)

	detail, err := probe.GetDetail(context.Background(), "kaspa-node")
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}
	if detail.Status != StatusHealthy || !detail.HealthCheck || !detail.HasHealthCheck {
		t.Fatalf("unexpected classification %+v", detail)
	}
	if detail.Uptime != "2 hours" || detail.ContainerName != "kaspa-node" || len(detail.Ports) != 2 {
		t.Fatalf("unexpected detail %+v", detail)
	}
	if detail.Err() != nil {
		t.Fatalf("expected no error for a found service")
	}

	detail, err = probe.GetDetail(context.Background(), "kasia-indexer")
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}
	if detail.Status != StatusStarting {
		t.Fatalf("expected the running container to be preferred, got %s", detail.Status)
	}

	detail, err = probe.GetDetail(context.Background(), "k-social")
	if err != nil {
		t.Fatalf("get detail: %v", err)
	}
	if detail.Status != StatusNotFound || !errors.Is(detail.Err(), ErrServiceNotFound) {
		t.Fatalf("expected not_found, got %+v", detail)
	}
}

func TestProbe_ListErrorDegrades(t *testing.T) {
	runtime := &fakeRuntime{listErr: errors.New("context deadline exceeded")}
	probe := NewProbe(zerolog.Nop(), runtime)

	statuses, err := probe.GetStatus(context.Background(), []string{"kaspa-node"})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if statuses[0].Status != StatusNotFound || statuses[0].Error == "" {
		t.Fatalf("expected not_found with cause, got %+v", statuses[0])
	}
}

func TestProbe_ArgumentErrors(t *testing.T) {
	probe := NewProbe(zerolog.Nop(), &fakeRuntime{})

	if _, err := probe.GetStatus(context.Background(), nil); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for nil names, got %v", err)
	}
	if _, err := probe.GetStatus(context.Background(), []string{"kaspa-node", ""}); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty name, got %v", err)
	}
	if _, err := probe.GetDetail(context.Background(), ""); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument for empty detail name, got %v", err)
	}

	statuses, err := probe.GetStatus(context.Background(), []string{})
	if err != nil || len(statuses) != 0 {
		t.Fatalf("expected empty result for empty names, got %v err=%v", statuses, err)
	}
}
