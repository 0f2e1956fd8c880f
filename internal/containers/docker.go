package containers

import (
	"context"
	"errors"
	"net/http"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	dockertypes "github.com/docker/docker/api/types"
	containertypes "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
)

const defaultAPITimeout = 5 * time.Second

// DockerRuntime implements Runtime using the official Docker Go SDK.
type DockerRuntime struct {
	api     dockerAPI
	timeout time.Duration
}

// NewDockerRuntime initializes a Docker client for the given API host.
// An empty host uses the environment defaults.
func NewDockerRuntime(host string, timeout time.Duration) (*DockerRuntime, error) {
	if timeout <= 0 {
		timeout = defaultAPITimeout
	}

	httpClient := &http.Client{Timeout: timeout}

	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
		client.WithHTTPClient(httpClient),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	api, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, err
	}

	return &DockerRuntime{
		api:     api,
		timeout: timeout,
	}, nil
}

// Ping validates connectivity to the Docker daemon.
func (r *DockerRuntime) Ping(ctx context.Context) error {
	if r == nil || r.api == nil {
		return errors.New("docker client is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.api.Ping(ctx)
	return err
}

// ListByName lists containers in any state whose name is exactly name.
func (r *DockerRuntime) ListByName(ctx context.Context, name string) ([]Container, error) {
	if r == nil || r.api == nil {
		return nil, errors.New("docker client is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	// The name filter is a regular expression over names that carry a leading slash.
	args := filters.NewArgs(filters.Arg("name", "^/"+regexp.QuoteMeta(name)+"$"))
	list, err := r.api.ContainerList(ctx, containertypes.ListOptions{All: true, Filters: args})
	if err != nil {
		return nil, err
	}

	out := make([]Container, 0, len(list))
	for _, c := range list {
		if !slices.Contains(c.Names, "/"+name) {
			continue
		}
		out = append(out, Container{
			ID:      c.ID,
			Name:    name,
			Image:   c.Image,
			State:   c.State,
			Status:  c.Status,
			Ports:   portStrings(c.Ports),
			Created: time.Unix(c.Created, 0).UTC(),
		})
	}
	return out, nil
}

// Close releases the underlying client.
func (r *DockerRuntime) Close() error {
	if r == nil || r.api == nil {
		return nil
	}
	return r.api.Close()
}

// portStrings renders ports as sorted, de-duplicated "<port>/<proto>" strings,
// preferring the published port when there is one.
func portStrings(ports []dockertypes.Port) []string {
	seen := make(map[string]struct{}, len(ports))
	out := make([]string, 0, len(ports))
	for _, p := range ports {
		number := p.PrivatePort
		if p.PublicPort != 0 {
			number = p.PublicPort
		}
		proto := strings.ToLower(p.Type)
		if proto == "" {
			proto = "tcp"
		}
		port, err := nat.NewPort(proto, strconv.Itoa(int(number)))
		if err != nil {
			continue
		}
		key := string(port)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, key)
	}
	slices.Sort(out)
	return out
}
