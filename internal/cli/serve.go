package cli

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/nholik/aio-sentinel/internal/agent"
	"github.com/nholik/aio-sentinel/internal/healthcheck"
	"github.com/nholik/aio-sentinel/internal/logging"
	"github.com/nholik/aio-sentinel/internal/metrics"
	"github.com/nholik/aio-sentinel/internal/monitor"
	"github.com/nholik/aio-sentinel/internal/server"
	"github.com/spf13/cobra"
)

// NewServeCommand creates the long-running agent command.
func NewServeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Watch the installation, monitor services and serve health endpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts)
		},
	}
}

func runServe(ctx context.Context, opts *RootOptions) error {
	cfg := opts.Config()
	logger := opts.Logger()

	logger.Info().
		Str("instance", cfg.InstanceName).
		Str("state_path", cfg.StatePath).
		Str("node_host", cfg.NodeHost).
		Int("node_port", cfg.NodePort).
		Dur("poll_interval", cfg.PollInterval).
		Msg("aio-sentinel starting")

	collector := metrics.New()
	tracker := healthcheck.NewTracker()

	store := newStore(cfg, logger, collector)
	probe, closeProbe, err := newProbe(cfg, logger, collector)
	if err != nil {
		return err
	}
	defer closeProbe()

	resolver := newResolver(cfg, logger, collector)
	notifier, err := newNotifier(cfg, logger, collector)
	if err != nil {
		return err
	}

	mon := monitor.New(logging.Component(logger, "monitor"), cfg.PollInterval, store, probe,
		monitor.WithPorts(resolver),
		monitor.WithNotifier(notifier, cfg.InstanceName),
		monitor.WithMetrics(collector),
		monitor.WithTracker(tracker),
	)

	routes := server.Routes{
		Tracker:      tracker,
		PollInterval: cfg.PollInterval,
		Metrics:      collector,
		Views:        mon,
	}

	a := agent.New(logging.Component(logger, "agent"), store,
		agent.WithPorts(resolver, cfg.NodePort),
		agent.WithMonitor(mon),
		agent.WithNotifier(notifier, cfg.InstanceName),
		agent.WithMetrics(collector),
		agent.WithServer(func(ctx context.Context) {
			server.Start(ctx, logging.Component(logger, "server"), routes, cfg.HealthPort, cfg.MetricsPort)
		}),
	)

	err = a.Run(ctx)
	logger.Info().Msg("aio-sentinel stopped")
	return err
}
