package cli

import (
	"errors"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/nholik/aio-sentinel/internal/faults"
	"github.com/nholik/aio-sentinel/internal/state"
	"github.com/spf13/cobra"
)

// NewStateCommand creates the installation state command group.
func NewStateCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "state",
		Short: "Inspect or reset the installation state",
	}
	cmd.AddCommand(newStateShowCommand(opts))
	cmd.AddCommand(newStateResetCommand(opts))
	return cmd
}

func newStateShowCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the installation state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.Config()
			store := newStore(cfg, opts.Logger(), nil)

			st, err := loadState(cmd, store)
			if err != nil {
				return err
			}
			return newPrinter(opts, cmd.OutOrStdout()).result(st, func(w io.Writer) error {
				return writeStateText(w, cfg.StatePath, st)
			})
		},
	}
}

func newStateResetCommand(opts *RootOptions) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete the installation state so the wizard starts over",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return usageError(errors.New("reset deletes the installation state; pass --yes to confirm"))
			}
			cfg := opts.Config()
			store := newStore(cfg, opts.Logger(), nil)
			if err := store.Reset(cmd.Context()); err != nil {
				return faults.New(faults.CategoryGenericAPIFailure, "reset installation state", err)
			}
			data := map[string]string{"path": cfg.StatePath, "result": "reset"}
			return newPrinter(opts, cmd.OutOrStdout()).result(data, func(w io.Writer) error {
				_, err := fmt.Fprintf(w, "Installation state at %s removed.\n", cfg.StatePath)
				return err
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

// loadState returns the installation state or an error naming why it is unavailable.
func loadState(cmd *cobra.Command, store *state.DocumentStore) (*state.State, error) {
	snap := store.Inspect(cmd.Context())
	switch snap.Status {
	case state.StatusPresent:
		return snap.State, nil
	case state.StatusMissing:
		return nil, fmt.Errorf("read installation state: %w", state.ErrNoInstallation)
	case state.StatusCorrupt:
		return nil, fmt.Errorf("read installation state: %w", snap.Err)
	default:
		return nil, faults.New(faults.CategoryGenericAPIFailure, "read installation state", snap.Err)
	}
}

func writeStateText(w io.Writer, path string, st *state.State) error {
	fmt.Fprintf(w, "State:     %s\n", path)
	fmt.Fprintf(w, "Version:   %s\n", st.Version)
	fmt.Fprintf(w, "Phase:     %s\n", st.Phase)
	fmt.Fprintf(w, "Installed: %s\n", st.InstalledAt.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Modified:  %s\n", st.LastModified.Format("2006-01-02 15:04:05 MST"))
	fmt.Fprintf(w, "Profiles:  %v\n", st.Profiles.Selected)
	if network := st.Configuration.Network(); network != "" {
		fmt.Fprintf(w, "Network:   %s\n", network)
	}
	fmt.Fprintf(w, "Services:  %d total, %d running, %d stopped, %d missing\n\n",
		st.Summary.Total, st.Summary.Running, st.Summary.Stopped, st.Summary.Missing)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SERVICE\tPROFILE\tRUNNING\tEXISTS\tDATA")
	for _, svc := range st.Services {
		data := "-"
		if svc.HasData {
			data = "yes"
			if svc.DataSize != nil {
				data = *svc.DataSize
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%t\t%t\t%s\n", svc.Name, svc.Profile, svc.Running, svc.Exists, data)
	}
	return tw.Flush()
}
