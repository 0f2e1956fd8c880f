package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/nholik/aio-sentinel/internal/catalog"
	"github.com/nholik/aio-sentinel/internal/config"
	"github.com/nholik/aio-sentinel/internal/containers"
	"github.com/nholik/aio-sentinel/internal/logging"
	"github.com/nholik/aio-sentinel/internal/metrics"
	"github.com/nholik/aio-sentinel/internal/navigation"
	"github.com/nholik/aio-sentinel/internal/notify"
	"github.com/nholik/aio-sentinel/internal/ports"
	"github.com/nholik/aio-sentinel/internal/state"
	"github.com/rs/zerolog"
)

func newStore(cfg config.Config, logger zerolog.Logger, m *metrics.Metrics) *state.DocumentStore {
	logger = logging.Component(logger, "state")
	backend := state.NewFileBackend(cfg.StatePath, logger, state.WithDebounce(cfg.WatchDebounce))
	return state.NewDocumentStore(backend, logger, state.WithMetrics(m))
}

func newProbe(cfg config.Config, logger zerolog.Logger, m *metrics.Metrics) (*containers.Probe, func(), error) {
	runtime, err := containers.NewDockerRuntime(cfg.DockerHost, cfg.DockerTimeout)
	if err != nil {
		return nil, nil, fmt.Errorf("create docker client: %w", err)
	}
	probe := containers.NewProbe(logging.Component(logger, "containers"), runtime,
		containers.WithAvailabilityTTL(cfg.RuntimeCacheTTL),
		containers.WithMetrics(m),
	)
	closeFn := func() {
		if err := runtime.Close(); err != nil {
			logger.Debug().Err(err).Msg("close docker client")
		}
	}
	return probe, closeFn, nil
}

func newResolver(cfg config.Config, logger zerolog.Logger, m *metrics.Metrics) *ports.Resolver {
	var prober ports.Prober = ports.NewHTTPProber(config.ProbeHTTP)
	if cfg.NodeProbe == config.ProbeTCP {
		prober = ports.NewDialProber()
	}
	return ports.NewResolver(logging.Component(logger, "ports"), ports.Options{
		Host:           cfg.NodeHost,
		ConfiguredPort: cfg.NodePort,
		FallbackPorts:  cfg.NodeFallbackPorts,
		AttemptTimeout: cfg.PortTimeout,
		RetryInterval:  cfg.PortRetryInterval,
		Scheme:         config.ProbeHTTP,
	}, prober, ports.WithMetrics(m))
}

// loadCatalog reads the profile catalog from a catalog file, a compose file,
// or the built-in catalog, in that order.
func loadCatalog(ctx context.Context, cfg config.Config) (catalog.Catalog, error) {
	switch {
	case cfg.CatalogFile != "":
		return catalog.LoadFile(cfg.CatalogFile)
	case cfg.ComposeFile != "":
		body, err := os.ReadFile(cfg.ComposeFile)
		if err != nil {
			return catalog.Catalog{}, fmt.Errorf("read compose file: %w", err)
		}
		return catalog.FromCompose(ctx, body)
	default:
		return catalog.Default(), nil
	}
}

func newLinks(cfg config.Config, logger zerolog.Logger) *navigation.Links {
	codec := navigation.NewCodec(logging.Component(logger, "navigation"))
	return navigation.NewLinks(codec, cfg.WizardURL, cfg.DashboardURL)
}

func newNotifier(cfg config.Config, logger zerolog.Logger, m *metrics.Metrics) (notify.Notifier, error) {
	return notify.New(logging.Component(logger, "notify"), notify.Channels{
		SlackWebhookURL: cfg.SlackWebhookURL,
		WebhookURL:      cfg.WebhookURL,
		WebhookTemplate: cfg.WebhookTemplate,
		DryRun:          cfg.DryRun,
	}, notify.WithMetrics(m))
}
