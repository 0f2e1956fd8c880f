package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/nholik/aio-sentinel/internal/faults"
	"github.com/nholik/aio-sentinel/internal/reconfig"
	"github.com/nholik/aio-sentinel/internal/state"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

type planResult struct {
	Action  reconfig.Action `json:"action"`
	Applied bool            `json:"applied"`
	Outcome any             `json:"outcome,omitempty"`
	State   *state.State    `json:"state"`
}

// NewPlanCommand creates the reconfiguration planning commands. Plans are
// printed and only written back with --apply.
func NewPlanCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Preview or apply profile changes to the installation state",
	}
	cmd.AddCommand(newPlanAddCommand(opts))
	cmd.AddCommand(newPlanRemoveCommand(opts))
	cmd.AddCommand(newPlanModifyCommand(opts))
	return cmd
}

func newPlanAddCommand(opts *RootOptions) *cobra.Command {
	var apply bool
	cmd := &cobra.Command{
		Use:   "add <profile>...",
		Short: "Add profiles from the catalog",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := opts.Config()
			cat, err := loadCatalog(cmd.Context(), cfg)
			if err != nil {
				return usageError(fmt.Errorf("load profile catalog: %w", err))
			}
			return runPlan(cmd, opts, reconfig.ActionAdd, apply, func(st *state.State) (*state.State, any, error) {
				next, err := reconfig.AddProfiles(st, cat, args...)
				if err != nil {
					return nil, nil, err
				}
				return next, map[string][]string{"added": args}, nil
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "write the result to the installation state")
	return cmd
}

func newPlanRemoveCommand(opts *RootOptions) *cobra.Command {
	var (
		apply      bool
		removeData bool
		backup     bool
	)
	cmd := &cobra.Command{
		Use:   "remove <profile>...",
		Short: "Remove installed profiles and their services",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlan(cmd, opts, reconfig.ActionRemove, apply, func(st *state.State) (*state.State, any, error) {
				return reconfig.RemoveProfiles(st, reconfig.RemoveRequest{
					Profiles:     args,
					RemoveData:   removeData,
					CreateBackup: backup,
				})
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "write the result to the installation state")
	cmd.Flags().BoolVar(&removeData, "remove-data", false, "drop the services' data as well")
	cmd.Flags().BoolVar(&backup, "backup", false, "request a backup before removal")
	return cmd
}

func newPlanModifyCommand(opts *RootOptions) *cobra.Command {
	var (
		apply      bool
		removeData bool
		backup     bool
		restart    bool
		settings   []string
	)
	cmd := &cobra.Command{
		Use:   "modify <profile>",
		Short: "Change an installed profile's settings or data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			parsed, err := parseSettings(settings)
			if err != nil {
				return usageError(err)
			}
			return runPlan(cmd, opts, reconfig.ActionModify, apply, func(st *state.State) (*state.State, any, error) {
				return reconfig.ApplyModification(st, reconfig.ModifyRequest{
					Profile:         args[0],
					Settings:        parsed,
					RemoveData:      removeData,
					CreateBackup:    backup,
					RestartServices: restart,
				})
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "write the result to the installation state")
	cmd.Flags().StringArrayVar(&settings, "set", nil, "configuration key=value to merge (repeatable)")
	cmd.Flags().BoolVar(&removeData, "remove-data", false, "clear the profile's service data")
	cmd.Flags().BoolVar(&backup, "backup", false, "request a backup before modifying")
	cmd.Flags().BoolVar(&restart, "restart", false, "request a restart of the affected services")
	return cmd
}

func runPlan(cmd *cobra.Command, opts *RootOptions, action reconfig.Action, apply bool, change func(*state.State) (*state.State, any, error)) error {
	ctx := cmd.Context()
	store := newStore(opts.Config(), opts.Logger(), nil)

	st, err := loadState(cmd, store)
	if err != nil {
		return err
	}
	next, outcome, err := change(st)
	if err != nil {
		if errors.Is(err, reconfig.ErrUnknownProfile) || errors.Is(err, reconfig.ErrProfileNotInstalled) ||
			errors.Is(err, state.ErrInvalidArgument) {
			return usageError(err)
		}
		return err
	}

	result := planResult{Action: action, Outcome: outcome, State: next}
	if apply {
		if err := store.Write(ctx, next); err != nil {
			return planWriteError(err)
		}
		result.Applied = true
		result.State = store.Read(ctx)
	}

	return newPrinter(opts, cmd.OutOrStdout()).result(result, func(w io.Writer) error {
		verb := "Planned"
		if result.Applied {
			verb = "Applied"
		}
		fmt.Fprintf(w, "%s %s: profiles now %s\n", verb, action, joinOrNone(next.Profiles.Selected))
		fmt.Fprintf(w, "Services: %d total, %d running, %d stopped, %d missing\n",
			next.Summary.Total, next.Summary.Running, next.Summary.Stopped, next.Summary.Missing)
		if !result.Applied {
			_, err := fmt.Fprintln(w, "Nothing written. Re-run with --apply to save.")
			return err
		}
		return nil
	})
}

// planWriteError keeps rejected plans apart from failed writes: an invalid
// document or a phase regression is the caller's input, not a runtime fault.
func planWriteError(err error) error {
	if errors.Is(err, state.ErrInvalidArgument) || errors.Is(err, state.ErrPhaseRegression) {
		return usageError(err)
	}
	return faults.New(faults.CategoryGenericAPIFailure, "write installation state", err)
}

// parseSettings turns key=value pairs into configuration values. Values are
// read as YAML scalars so numbers and booleans keep their type.
func parseSettings(pairs []string) (map[string]any, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	out := make(map[string]any, len(pairs))
	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid setting %q: expected key=value", pair)
		}
		var value any
		if err := yaml.Unmarshal([]byte(raw), &value); err != nil || value == nil {
			value = raw
		}
		out[key] = value
	}
	return out, nil
}

