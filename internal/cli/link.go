package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/nholik/aio-sentinel/internal/navigation"
	"github.com/spf13/cobra"
)

const (
	targetWizard    = "wizard"
	targetDashboard = "dashboard"
)

type linkContext struct {
	Action   string         `json:"action,omitempty"`
	Profile  string         `json:"profile,omitempty"`
	Service  string         `json:"service,omitempty"`
	ReturnTo string         `json:"returnTo,omitempty"`
	Snapshot json.RawMessage `json:"snapshot,omitempty"`
}

func fromNavigation(ctx navigation.Context) linkContext {
	return linkContext{
		Action:   string(ctx.Action),
		Profile:  ctx.Profile,
		Service:  ctx.Service,
		ReturnTo: ctx.ReturnTo,
		Snapshot: ctx.Snapshot,
	}
}

// NewLinkCommand creates the commands that build and read handoff links
// between the wizard and the dashboard.
func NewLinkCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "link",
		Short: "Build or read wizard and dashboard handoff links",
	}
	cmd.AddCommand(newLinkEncodeCommand(opts))
	cmd.AddCommand(newLinkDecodeCommand(opts))
	return cmd
}

func newLinkEncodeCommand(opts *RootOptions) *cobra.Command {
	var (
		target   string
		ctx      linkContext
		snapshot string
	)
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Build a link carrying navigation context",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains([]string{targetWizard, targetDashboard}, target) {
				return usageError(fmt.Errorf("invalid target %q: must be %s or %s", target, targetWizard, targetDashboard))
			}
			if snapshot != "" {
				var object map[string]json.RawMessage
				if err := json.Unmarshal([]byte(snapshot), &object); err != nil || object == nil {
					return usageError(errors.New("invalid --snapshot: must be a JSON object"))
				}
				ctx.Snapshot = json.RawMessage(snapshot)
			}

			links := newLinks(opts.Config(), opts.Logger())
			navCtx := navigation.Context{
				Action:   navigation.Action(ctx.Action),
				Profile:  ctx.Profile,
				Service:  ctx.Service,
				ReturnTo: ctx.ReturnTo,
				Snapshot: ctx.Snapshot,
			}

			var (
				link string
				err  error
			)
			if target == targetWizard {
				link, err = links.WizardLink(navCtx)
			} else {
				link, err = links.DashboardLink(navCtx)
			}
			if err != nil {
				return usageError(err)
			}

			data := map[string]string{"target": target, "url": link}
			return newPrinter(opts, cmd.OutOrStdout()).result(data, func(w io.Writer) error {
				_, err := fmt.Fprintln(w, link)
				return err
			})
		},
	}
	cmd.Flags().StringVar(&target, "target", targetWizard, "link target (wizard|dashboard)")
	cmd.Flags().StringVar(&ctx.Action, "action", "", "action for the receiving UI (add|modify|remove|view)")
	cmd.Flags().StringVar(&ctx.Profile, "profile", "", "profile the action applies to")
	cmd.Flags().StringVar(&ctx.Service, "service", "", "service the action applies to")
	cmd.Flags().StringVar(&ctx.ReturnTo, "return-to", "", "where the receiving UI should send the user back")
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "JSON object carried as state")
	return cmd
}

func newLinkDecodeCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "decode <url>",
		Short: "Read the navigation context carried by a link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			codec := navigation.NewCodec(opts.Logger())
			decoded, err := codec.Decode(args[0])
			if err != nil {
				return usageError(err)
			}
			result := fromNavigation(decoded)
			return newPrinter(opts, cmd.OutOrStdout()).result(result, func(w io.Writer) error {
				fmt.Fprintf(w, "Action:    %s\n", dash(result.Action))
				fmt.Fprintf(w, "Profile:   %s\n", dash(result.Profile))
				fmt.Fprintf(w, "Service:   %s\n", dash(result.Service))
				fmt.Fprintf(w, "Return to: %s\n", dash(result.ReturnTo))
				if result.Snapshot == nil {
					_, err := fmt.Fprintln(w, "Snapshot:  -")
					return err
				}
				_, err := fmt.Fprintf(w, "Snapshot:  %s\n", result.Snapshot)
				return err
			})
		},
	}
}
