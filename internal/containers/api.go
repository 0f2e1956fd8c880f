package containers

import (
	"context"

	dockertypes "github.com/docker/docker/api/types"
	containertypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/client"
)

// dockerAPI defines the subset of Docker client operations used by DockerRuntime.
// This interface enables unit testing without a real Docker daemon by allowing
// mock implementations to be injected:
//
//	runtime := &DockerRuntime{api: &mockDockerAPI{...}, timeout: 5*time.Second}
type dockerAPI interface {
	// Ping checks connectivity to the Docker daemon.
	Ping(ctx context.Context) (dockertypes.Ping, error)

	// ContainerList returns containers matching the given options.
	ContainerList(ctx context.Context, options containertypes.ListOptions) ([]dockertypes.Container, error)

	// Close releases resources associated with the client.
	Close() error
}

// Ensure the official Docker client satisfies our interface at compile time.
var _ dockerAPI = (*client.Client)(nil)
