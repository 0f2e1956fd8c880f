package ports

import (
	"context"
	"fmt"
	"net"
	"slices"
	"strconv"
	"sync"
	"time"

	"github.com/nholik/aio-sentinel/internal/metrics"
	"github.com/nholik/aio-sentinel/internal/ttlcache"
	"github.com/rs/zerolog"
)

const (
	defaultHost           = "localhost"
	defaultScheme         = "http"
	defaultAttemptTimeout = 3 * time.Second
	defaultRetryInterval  = 10 * time.Second
)

// Options configure a Resolver.
type Options struct {
	Host           string
	ConfiguredPort int
	FallbackPorts  []int
	AttemptTimeout time.Duration
	RetryInterval  time.Duration
	// Scheme is used to build WorkingURL.
	Scheme string
	// CacheTTL bounds how long a working port is trusted without a probe. Zero keeps it until a probe fails.
	CacheTTL time.Duration
}

func (o Options) withDefaults() Options {
	if o.Host == "" {
		o.Host = defaultHost
	}
	if o.Scheme == "" {
		o.Scheme = defaultScheme
	}
	if o.AttemptTimeout <= 0 {
		o.AttemptTimeout = defaultAttemptTimeout
	}
	if o.RetryInterval <= 0 {
		o.RetryInterval = defaultRetryInterval
	}
	o.FallbackPorts = slices.Clone(o.FallbackPorts)
	return o
}

// Resolver discovers which port a dependent service answers on and
// remembers the last one that worked.
type Resolver struct {
	logger        zerolog.Logger
	prober        Prober
	metrics       *metrics.Metrics
	tickerFactory func(time.Duration) Ticker
	now           func() time.Time

	mu         sync.Mutex
	opts       Options
	chain      []int
	generation uint64
	cache      *ttlcache.Value[int]

	retryMu     sync.Mutex
	retryCancel context.CancelFunc
	retryDone   chan struct{}
}

// Option customizes a Resolver.
type Option func(*Resolver)

// WithTickerFactory overrides how retry tickers are created.
func WithTickerFactory(factory func(time.Duration) Ticker) Option {
	return func(r *Resolver) {
		r.tickerFactory = factory
	}
}

// WithMetrics records probe attempts and the working port.
func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Resolver) {
		r.metrics = m
	}
}

// WithClock overrides the clock used for cache expiry.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// NewResolver builds a resolver for one dependent service.
func NewResolver(logger zerolog.Logger, opts Options, prober Prober, options ...Option) *Resolver {
	opts = opts.withDefaults()
	r := &Resolver{
		logger:        logger,
		prober:        prober,
		tickerFactory: newBackoffTicker,
		now:           time.Now,
		opts:          opts,
		chain:         BuildChain(opts.ConfiguredPort, opts.FallbackPorts),
	}
	for _, opt := range options {
		opt(r)
	}
	r.cache = ttlcache.New[int](r.now)
	return r
}

// Chain returns the current candidate ports in probe order.
func (r *Resolver) Chain() []int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.chain)
}

// Connect probes the cached port first, then the whole chain, and returns the
// first port that answers. Each probe is bounded by the attempt timeout.
func (r *Resolver) Connect(ctx context.Context) (int, error) {
	r.mu.Lock()
	chain := slices.Clone(r.chain)
	generation := r.generation
	host := r.opts.Host
	r.mu.Unlock()

	attempted := make([]int, 0, len(chain)+1)
	causes := make(map[int]error, len(chain)+1)

	if cached, ok := r.cache.Get(); ok {
		err := r.attempt(ctx, host, cached)
		if err == nil {
			return cached, nil
		}
		r.logger.Info().Int("port", cached).Err(err).Msg("working port stopped answering, rescanning")
		r.cache.Clear()
		r.metrics.SetWorkingPort(0)
		attempted = append(attempted, cached)
		causes[cached] = err
	}

	for _, port := range chain {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("resolve port: %w", err)
		}
		if _, tried := causes[port]; tried {
			continue
		}
		err := r.attempt(ctx, host, port)
		if err != nil {
			attempted = append(attempted, port)
			causes[port] = err
			continue
		}
		r.remember(generation, port)
		return port, nil
	}

	return 0, &ExhaustedError{Host: host, Attempted: attempted, Causes: causes}
}

func (r *Resolver) attempt(ctx context.Context, host string, port int) error {
	attemptCtx, cancel := context.WithTimeout(ctx, r.opts.AttemptTimeout)
	defer cancel()

	err := r.prober.Probe(attemptCtx, host, port)
	result := "ok"
	if err != nil {
		result = "failed"
		r.logger.Debug().Str("host", host).Int("port", port).Err(err).Msg("port probe failed")
	}
	r.metrics.ObservePortAttempt(port, result)
	return err
}

// remember caches port unless the configuration changed while probing.
func (r *Resolver) remember(generation uint64, port int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if generation != r.generation {
		return
	}
	r.cache.Set(port, r.opts.CacheTTL)
	r.metrics.SetWorkingPort(port)
	r.logger.Info().Str("host", r.opts.Host).Int("port", port).Msg("dependent service reachable")
}

// WorkingPort returns the cached port without probing.
func (r *Resolver) WorkingPort() (int, bool) {
	return r.cache.Get()
}

// WorkingURL returns scheme://host:port for the cached port without probing.
func (r *Resolver) WorkingURL() (string, bool) {
	port, ok := r.cache.Get()
	if !ok {
		return "", false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return fmt.Sprintf("%s://%s", r.opts.Scheme, net.JoinHostPort(r.opts.Host, strconv.Itoa(port))), true
}

// SetConfiguredPort rebuilds the chain around port and forgets the working port.
func (r *Resolver) SetConfiguredPort(port int) {
	r.mu.Lock()
	r.opts.ConfiguredPort = port
	r.chain = BuildChain(port, r.opts.FallbackPorts)
	r.generation++
	r.cache.Clear()
	r.mu.Unlock()

	r.metrics.SetWorkingPort(0)
	r.logger.Info().Int("port", port).Msg("configured port changed")
}
