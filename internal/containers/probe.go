package containers

import (
	"context"
	"fmt"
	"time"

	"github.com/nholik/aio-sentinel/internal/metrics"
	"github.com/nholik/aio-sentinel/internal/ttlcache"
	"github.com/rs/zerolog"
)

const (
	defaultAvailabilityTTL = 30 * time.Second
	runtimeUnavailableMsg  = "runtime unavailable"
)

// ServiceStatus is the live status of one service.
type ServiceStatus struct {
	Name          string    `json:"name"`
	Status        Status    `json:"status"`
	ContainerName string    `json:"containerName,omitempty"`
	HealthCheck   bool      `json:"healthCheck"`
	LastChecked   time.Time `json:"lastChecked"`
	Error         string    `json:"error,omitempty"`
}

// ServiceDetail extends ServiceStatus with what the runtime reports about the container.
type ServiceDetail struct {
	ServiceStatus
	ContainerID    string   `json:"containerId,omitempty"`
	Image          string   `json:"image,omitempty"`
	State          string   `json:"state,omitempty"`
	StatusText     string   `json:"statusText,omitempty"`
	Uptime         string   `json:"uptime,omitempty"`
	Ports          []string `json:"ports,omitempty"`
	HasHealthCheck bool     `json:"hasHealthCheck"`
}

// Err returns ErrRuntimeUnavailable or ErrServiceNotFound when the detail
// describes a service that could not be inspected.
func (d ServiceDetail) Err() error {
	if d.Status != StatusNotFound {
		return nil
	}
	if d.Error == runtimeUnavailableMsg {
		return fmt.Errorf("%s: %w", d.Name, ErrRuntimeUnavailable)
	}
	return fmt.Errorf("%s: %w", d.Name, ErrServiceNotFound)
}

// Probe answers status queries against a Runtime. Runtime outages degrade to
// not_found results; errors are returned only for invalid arguments.
type Probe struct {
	runtime         Runtime
	logger          zerolog.Logger
	metrics         *metrics.Metrics
	now             func() time.Time
	availabilityTTL time.Duration
	available       *ttlcache.Value[bool]
}

// ProbeOption customizes a Probe.
type ProbeOption func(*Probe)

// WithAvailabilityTTL sets how long a runtime ping result is reused.
func WithAvailabilityTTL(ttl time.Duration) ProbeOption {
	return func(p *Probe) {
		if ttl > 0 {
			p.availabilityTTL = ttl
		}
	}
}

// WithClock overrides the clock used for caching and lastChecked.
func WithClock(now func() time.Time) ProbeOption {
	return func(p *Probe) {
		if now != nil {
			p.now = now
		}
	}
}

// WithMetrics records runtime availability and query errors.
func WithMetrics(m *metrics.Metrics) ProbeOption {
	return func(p *Probe) {
		p.metrics = m
	}
}

// NewProbe returns a probe over runtime.
func NewProbe(logger zerolog.Logger, runtime Runtime, opts ...ProbeOption) *Probe {
	p := &Probe{
		runtime:         runtime,
		logger:          logger,
		now:             time.Now,
		availabilityTTL: defaultAvailabilityTTL,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.available = ttlcache.New[bool](p.now)
	return p
}

// IsRuntimeAvailable pings the runtime, reusing the last answer within the availability window.
func (p *Probe) IsRuntimeAvailable(ctx context.Context) bool {
	if available, ok := p.available.Get(); ok {
		return available
	}

	available := false
	if p.runtime != nil {
		if err := p.runtime.Ping(ctx); err != nil {
			p.logger.Warn().Err(err).Msg("container runtime unavailable")
		} else {
			available = true
		}
	}
	p.available.Set(available, p.availabilityTTL)
	p.metrics.SetRuntimeAvailable(available)
	return available
}

// Invalidate forgets the cached availability so the next call pings again.
func (p *Probe) Invalidate() {
	p.available.Clear()
}

// GetStatus returns one status per name, in order. When the runtime is down
// every name is not_found with Error "runtime unavailable".
func (p *Probe) GetStatus(ctx context.Context, names []string) ([]ServiceStatus, error) {
	if names == nil {
		return nil, fmt.Errorf("get status: names must not be nil: %w", ErrInvalidArgument)
	}
	for i, name := range names {
		if name == "" {
			return nil, fmt.Errorf("get status: names[%d] is empty: %w", i, ErrInvalidArgument)
		}
	}

	out := make([]ServiceStatus, 0, len(names))
	if !p.IsRuntimeAvailable(ctx) {
		checked := p.now().UTC()
		for _, name := range names {
			out = append(out, ServiceStatus{
				Name:        name,
				Status:      StatusNotFound,
				LastChecked: checked,
				Error:       runtimeUnavailableMsg,
			})
		}
		return out, nil
	}

	for _, name := range names {
		out = append(out, p.lookup(ctx, name).ServiceStatus)
	}
	return out, nil
}

// GetDetail inspects the container named name.
func (p *Probe) GetDetail(ctx context.Context, name string) (ServiceDetail, error) {
	if name == "" {
		return ServiceDetail{}, fmt.Errorf("get detail: name must not be empty: %w", ErrInvalidArgument)
	}
	if !p.IsRuntimeAvailable(ctx) {
		return ServiceDetail{ServiceStatus: ServiceStatus{
			Name:        name,
			Status:      StatusNotFound,
			LastChecked: p.now().UTC(),
			Error:       runtimeUnavailableMsg,
		}}, nil
	}
	return p.lookup(ctx, name), nil
}

func (p *Probe) lookup(ctx context.Context, name string) ServiceDetail {
	detail := ServiceDetail{ServiceStatus: ServiceStatus{
		Name:        name,
		Status:      StatusNotFound,
		LastChecked: p.now().UTC(),
	}}

	list, err := p.runtime.ListByName(ctx, name)
	if err != nil {
		p.metrics.IncRuntimeErrors()
		p.logger.Warn().Err(err).Str("service", name).Msg("container lookup failed")
		detail.Error = err.Error()
		return detail
	}
	if len(list) == 0 {
		p.logger.Debug().Str("service", name).Msg("no container for service")
		return detail
	}

	c := pick(list)
	detail.Status = Classify(c.State, c.Status)
	detail.ContainerName = c.Name
	detail.HealthCheck = detail.Status == StatusHealthy
	detail.ContainerID = c.ID
	detail.Image = c.Image
	detail.State = c.State
	detail.StatusText = c.Status
	detail.Uptime = Uptime(c.Status)
	detail.Ports = c.Ports
	detail.HasHealthCheck = HasHealthCheck(c.Status)
	return detail
}

// pick prefers a running container when a name matched more than one.
func pick(list []Container) Container {
	for _, c := range list {
		if Classify(c.State, c.Status).Running() {
			return c
		}
	}
	return list[0]
}
