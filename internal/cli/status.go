package cli

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nholik/aio-sentinel/internal/containers"
	"github.com/nholik/aio-sentinel/internal/faults"
	"github.com/spf13/cobra"
)

type statusResult struct {
	RuntimeAvailable bool                       `json:"runtimeAvailable"`
	Services         []containers.ServiceStatus `json:"services,omitempty"`
	Details          []containers.ServiceDetail `json:"details,omitempty"`
}

// NewStatusCommand creates the live service status command.
func NewStatusCommand(opts *RootOptions) *cobra.Command {
	var detail bool
	cmd := &cobra.Command{
		Use:   "status [service...]",
		Short: "Show live container status for installed services",
		Long: `Show live container status. Without arguments every service recorded in the
installation state is checked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := opts.Config()
			logger := opts.Logger()

			names := args
			if len(names) == 0 {
				st, err := loadState(cmd, newStore(cfg, logger, nil))
				if err != nil {
					return err
				}
				names = st.ServiceNames()
			}

			probe, closeProbe, err := newProbe(cfg, logger, nil)
			if err != nil {
				return faults.New(faults.CategoryRuntimeUnavailable, "connect to container runtime", err)
			}
			defer closeProbe()

			result := statusResult{RuntimeAvailable: probe.IsRuntimeAvailable(ctx)}
			if !result.RuntimeAvailable {
				return faults.New(faults.CategoryRuntimeUnavailable, "check service status", containers.ErrRuntimeUnavailable)
			}

			if detail {
				for _, name := range names {
					d, err := probe.GetDetail(ctx, name)
					if err != nil {
						return usageError(err)
					}
					result.Details = append(result.Details, d)
				}
				if len(args) == 1 {
					if err := result.Details[0].Err(); err != nil {
						return err
					}
				}
			} else if len(names) > 0 {
				statuses, err := probe.GetStatus(ctx, names)
				if err != nil {
					return usageError(err)
				}
				result.Services = statuses
			}

			return newPrinter(opts, cmd.OutOrStdout()).result(result, func(w io.Writer) error {
				return writeStatusText(w, result)
			})
		},
	}
	cmd.Flags().BoolVar(&detail, "detail", false, "include image, uptime and ports for each service")
	return cmd
}

func writeStatusText(w io.Writer, result statusResult) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	if len(result.Details) > 0 {
		fmt.Fprintln(tw, "SERVICE\tSTATUS\tCONTAINER\tIMAGE\tUPTIME\tPORTS")
		for _, d := range result.Details {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%v\n",
				d.Name, d.Status, dash(d.ContainerName), dash(d.Image), dash(d.Uptime), d.Ports)
		}
		return tw.Flush()
	}
	if len(result.Services) == 0 {
		_, err := fmt.Fprintln(w, "No services recorded.")
		return err
	}
	fmt.Fprintln(tw, "SERVICE\tSTATUS\tCONTAINER\tHEALTHCHECK")
	for _, s := range result.Services {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%t\n", s.Name, s.Status, dash(s.ContainerName), s.HealthCheck)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
