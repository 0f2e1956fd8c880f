package containers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"
	"time"

	dockertypes "github.com/docker/docker/api/types"
	containertypes "github.com/docker/docker/api/types/container"
)

// mockDockerAPI implements dockerAPI for testing.
type mockDockerAPI struct {
	pingFn          func(ctx context.Context) (dockertypes.Ping, error)
	containerListFn func(ctx context.Context, options containertypes.ListOptions) ([]dockertypes.Container, error)
	closeFn         func() error
}

func (m *mockDockerAPI) Ping(ctx context.Context) (dockertypes.Ping, error) {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return dockertypes.Ping{}, nil
}

func (m *mockDockerAPI) ContainerList(ctx context.Context, options containertypes.ListOptions) ([]dockertypes.Container, error) {
	if m.containerListFn != nil {
		return m.containerListFn(ctx, options)
	}
	return nil, nil
}

func (m *mockDockerAPI) Close() error {
	if m.closeFn != nil {
		return m.closeFn()
	}
	return nil
}

func TestDockerRuntime_Ping_Error(t *testing.T) {
	t.Parallel()

	mock := &mockDockerAPI{
		pingFn: func(ctx context.Context) (dockertypes.Ping, error) {
			return dockertypes.Ping{}, errors.New("connection refused")
		},
	}

	runtime := &DockerRuntime{api: mock, timeout: 5 * time.Second}
	err := runtime.Ping(context.Background())
	if err == nil || err.Error() != "connection refused" {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDockerRuntime_Ping_AppliesTimeout(t *testing.T) {
	t.Parallel()

	mock := &mockDockerAPI{
		pingFn: func(ctx context.Context) (dockertypes.Ping, error) {
			if _, ok := ctx.Deadline(); !ok {
				t.Error("expected context deadline")
			}
			return dockertypes.Ping{APIVersion: "1.45"}, nil
		},
	}

	runtime := &DockerRuntime{api: mock, timeout: 5 * time.Second}
	if err := runtime.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestDockerRuntime_ListByName(t *testing.T) {
	t.Parallel()

	mock := &mockDockerAPI{
		containerListFn: func(ctx context.Context, options containertypes.ListOptions) ([]dockertypes.Container, error) {
			if !options.All {
				t.Error("expected stopped containers to be included")
			}
			if got := options.Filters.Get("name"); !slices.Equal(got, []string{"^/kaspa-node$"}) {
				t.Errorf("unexpected name filter %v", got)
			}
			return []dockertypes.Container{
				{
					ID:     "abc",
					Names:  []string{"/kaspa-node"},
					Image:  "kaspanet/rusty-kaspad",
					State:  "running",
					Status: "Up 2 hours (healthy)",
					Ports: []dockertypes.Port{
						{IP: "0.0.0.0", PrivatePort: 16110, PublicPort: 16110, Type: "tcp"},
						{IP: "::", PrivatePort: 16110, PublicPort: 16110, Type: "tcp"},
						{PrivatePort: 16111, Type: "tcp"},
					},
					Created: 1700000000,
				},
				{ID: "def", Names: []string{"/kaspa-node-backup"}, State: "exited"},
			}, nil
		},
	}

	runtime := &DockerRuntime{api: mock, timeout: 5 * time.Second}
	list, err := runtime.ListByName(context.Background(), "kaspa-node")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected exact name match only, got %d", len(list))
	}
	got := list[0]
	if got.Name != "kaspa-node" || got.ID != "abc" || got.State != "running" {
		t.Fatalf("unexpected container %+v", got)
	}
	if !slices.Equal(got.Ports, []string{"16110/tcp", "16111/tcp"}) {
		t.Fatalf("unexpected ports %v", got.Ports)
	}
	if !got.Created.Equal(time.Unix(1700000000, 0)) {
		t.Fatalf("unexpected created time %v", got.Created)
	}
}

func TestDockerRuntime_ListByName_Error(t *testing.T) {
	t.Parallel()

	mock := &mockDockerAPI{
		containerListFn: func(ctx context.Context, options containertypes.ListOptions) ([]dockertypes.Container, error) {
			return nil, errors.New("daemon error")
		},
	}
	runtime := &DockerRuntime{api: mock, timeout: time.Second}
	if _, err := runtime.ListByName(context.Background(), "kaspa-node"); err == nil {
		t.Fatal("expected error")
	}
}

func TestDockerRuntime_NilClient(t *testing.T) {
	t.Parallel()

	var runtime *DockerRuntime
	if err := runtime.Ping(context.Background()); err == nil {
		t.Fatal("expected error for nil runtime")
	}
	if err := runtime.Close(); err != nil {
		t.Fatalf("expected nil close error, got %v", err)
	}
}

func TestNewDockerRuntimePingSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/_ping" {
			http.Error(w, "unexpected path", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}))
	t.Cleanup(server.Close)

	runtime, err := NewDockerRuntime(server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewDockerRuntime error: %v", err)
	}
	t.Cleanup(func() { _ = runtime.Close() })

	if err := runtime.Ping(context.Background()); err != nil {
		t.Fatalf("Ping error: %v", err)
	}
}

func TestNewDockerRuntimeListContainers(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/_ping":
			w.WriteHeader(http.StatusOK)
		case strings.HasSuffix(r.URL.Path, "/containers/json"):
			if r.URL.Query().Get("all") != "1" {
				http.Error(w, "expected all=1", http.StatusBadRequest)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[{"Id":"abc","Names":["/kaspa-node"],"Image":"kaspanet/rusty-kaspad","State":"exited","Status":"Exited (0) 3 minutes ago","Ports":[],"Created":1700000000}]`))
		default:
			http.Error(w, "unexpected path", http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)

	runtime, err := NewDockerRuntime(server.URL, 2*time.Second)
	if err != nil {
		t.Fatalf("NewDockerRuntime error: %v", err)
	}
	t.Cleanup(func() { _ = runtime.Close() })

	list, err := runtime.ListByName(context.Background(), "kaspa-node")
	if err != nil {
		t.Fatalf("ListByName error: %v", err)
	}
	if len(list) != 1 || Classify(list[0].State, list[0].Status) != StatusStopped {
		t.Fatalf("unexpected containers %+v", list)
	}
}
