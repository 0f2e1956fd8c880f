package cli

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/nholik/aio-sentinel/internal/reconfig"
	"github.com/spf13/cobra"
)

type modeResult struct {
	reconfig.Classification
	Profile  string                `json:"profile,omitempty"`
	Services []reconfig.ServiceRef `json:"services,omitempty"`
}

// NewModeCommand creates the command that decides between fresh install and reconfiguration.
func NewModeCommand(opts *RootOptions) *cobra.Command {
	var profile string
	cmd := &cobra.Command{
		Use:   "mode",
		Short: "Show whether the wizard should install or reconfigure",
		Long: `Classify the installation: a missing or incomplete installation calls for a
fresh install, a complete one with profiles calls for reconfiguration. The
catalog is split into installed and available profiles.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg := opts.Config()

			cat, err := loadCatalog(ctx, cfg)
			if err != nil {
				return usageError(fmt.Errorf("load profile catalog: %w", err))
			}
			snap := newStore(cfg, opts.Logger(), nil).Inspect(ctx)

			result := modeResult{Classification: reconfig.Classify(snap.State, cat)}
			if profile != "" {
				result.Profile = profile
				result.Services = reconfig.ServicesForProfile(snap.State, profile)
			}
			return newPrinter(opts, cmd.OutOrStdout()).result(result, func(w io.Writer) error {
				return writeModeText(w, result)
			})
		},
	}
	cmd.Flags().StringVar(&profile, "profile", "", "also list the services recorded under this profile")
	return cmd
}

func writeModeText(w io.Writer, result modeResult) error {
	fmt.Fprintf(w, "Mode:      %s\n", result.Mode)
	fmt.Fprintf(w, "Installed: %s\n", joinOrNone(result.Installed))
	fmt.Fprintf(w, "Available: %s\n", joinOrNone(result.Available))
	if len(result.Actions) > 0 {
		actions := make([]string, 0, len(result.Actions))
		for _, a := range result.Actions {
			actions = append(actions, string(a))
		}
		fmt.Fprintf(w, "Actions:   %s\n", strings.Join(actions, ", "))
	}
	if result.Profile == "" {
		return nil
	}
	fmt.Fprintf(w, "\nServices in %s:\n", result.Profile)
	if len(result.Services) == 0 {
		_, err := fmt.Fprintln(w, "  none")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "  SERVICE\tCONTAINER\tRUNNING\tEXISTS\tDATA")
	for _, svc := range result.Services {
		fmt.Fprintf(tw, "  %s\t%s\t%t\t%t\t%t\n", svc.Name, dash(svc.ContainerName), svc.Running, svc.Exists, svc.HasData)
	}
	return tw.Flush()
}

func joinOrNone(values []string) string {
	if len(values) == 0 {
		return "none"
	}
	return strings.Join(values, ", ")
}
