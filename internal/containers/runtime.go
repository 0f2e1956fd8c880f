package containers

import (
	"context"
	"time"
)

// Container is the runtime's view of one container.
type Container struct {
	ID      string
	Name    string
	Image   string
	State   string // e.g. "running", "exited", "paused"
	Status  string // human-readable, e.g. "Up 2 hours (healthy)"
	Ports   []string
	Created time.Time
}

// Runtime defines the container runtime queries used by Probe.
// This interface enables mocking in tests.
type Runtime interface {
	// Ping validates connectivity to the runtime.
	Ping(ctx context.Context) error

	// ListByName returns containers whose name is exactly name, including stopped ones.
	ListByName(ctx context.Context, name string) ([]Container, error)

	// Close releases resources associated with the runtime client.
	Close() error
}
