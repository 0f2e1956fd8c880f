package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
)

type portResult struct {
	Host  string `json:"host"`
	Port  int    `json:"port"`
	URL   string `json:"url"`
	Chain []int  `json:"chain"`
}

// NewPortCommand creates the node port discovery command.
func NewPortCommand(opts *RootOptions) *cobra.Command {
	var wait time.Duration
	cmd := &cobra.Command{
		Use:   "port",
		Short: "Find the port the Kaspa node answers on",
		Long: `Probe the configured node port and then each fallback port, printing the
first one that answers. With --wait the fallback scan is retried on the
configured interval until a port answers or the wait expires.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := opts.Config()
			logger := opts.Logger()

			nodePort := cfg.NodePort
			if st := newStore(cfg, logger, nil).Read(ctx); st != nil {
				if port, ok := st.Configuration.NodePort(); ok {
					nodePort = port
				}
			}
			cfg.NodePort = nodePort
			resolver := newResolver(cfg, logger, nil)

			port, err := resolver.Connect(ctx)
			if err != nil && wait > 0 {
				logger.Info().Err(err).Dur("wait", wait).Msg("node not answering, retrying")
				port, err = waitForPort(ctx, wait, err, func(ctx context.Context, found chan<- int) {
					resolver.StartRetry(ctx, func(port int) { found <- port })
				})
				resolver.StopRetry()
			}
			if err != nil {
				return err
			}

			url, _ := resolver.WorkingURL()
			result := portResult{Host: cfg.NodeHost, Port: port, URL: url, Chain: resolver.Chain()}
			return newPrinter(opts, cmd.OutOrStdout()).result(result, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Kaspa node answering on %s (port %d)\n", url, port)
				return err
			})
		},
	}
	cmd.Flags().DurationVar(&wait, "wait", 0, "keep retrying for up to this long (0 to fail immediately)")
	return cmd
}

// waitForPort starts a retry loop and waits for it to report a port. The last
// connect error is returned when the wait expires.
func waitForPort(ctx context.Context, wait time.Duration, lastErr error, start func(context.Context, chan<- int)) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	found := make(chan int, 1)
	start(ctx, found)

	select {
	case port := <-found:
		return port, nil
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return 0, lastErr
		}
		return 0, ctx.Err()
	}
}
