// Package cli implements the aio-sentinel command line.
package cli

import (
	"fmt"
	"io"
	"slices"

	"github.com/nholik/aio-sentinel/internal/config"
	"github.com/nholik/aio-sentinel/internal/logging"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

// Output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{FormatText, FormatJSON}

// RootOptions holds global flags and what they resolve to.
type RootOptions struct {
	EnvFile  string
	Format   string
	LogLevel string

	cfg    config.Config
	logger zerolog.Logger
	loaded bool
}

// Config returns the configuration loaded for the running command.
func (o *RootOptions) Config() config.Config {
	return o.cfg
}

// Logger returns the diagnostic logger. It writes to stderr so that command
// output on stdout stays parseable.
func (o *RootOptions) Logger() zerolog.Logger {
	if !o.loaded {
		return zerolog.Nop()
	}
	return o.logger
}

// NewRootCommand creates the root command. Diagnostic logs go to stderr.
func NewRootCommand(stderr io.Writer) *cobra.Command {
	cmd, _ := newRootCommand(stderr)
	return cmd
}

func newRootCommand(stderr io.Writer) (*cobra.Command, *RootOptions) {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "aio-sentinel",
		Short: "Installation state, service status and node discovery for Kaspa All-in-One",
		Long: `aio-sentinel keeps the installation wizard and the management dashboard of a
Kaspa All-in-One deployment in agreement: it reads and watches the shared
installation state, probes the container runtime, finds the port the Kaspa
node answers on and builds the links the two tools hand each other.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return usageError(fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			cfg, err := config.LoadFrom(opts.EnvFile)
			if err != nil {
				return usageError(fmt.Errorf("load configuration: %w", err))
			}
			if opts.LogLevel != "" {
				cfg.LogLevel = opts.LogLevel
			}
			opts.cfg = cfg
			opts.logger = logging.NewWriter(stderr, cfg.LogLevel)
			opts.loaded = true
			return nil
		},
	}
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError(err)
	})

	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file to read before the environment (empty to skip)")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", FormatText, "output format (text|json)")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "", "override AIO_LOG_LEVEL")

	cmd.AddCommand(NewServeCommand(opts))
	cmd.AddCommand(NewStateCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewPortCommand(opts))
	cmd.AddCommand(NewModeCommand(opts))
	cmd.AddCommand(NewPlanCommand(opts))
	cmd.AddCommand(NewLinkCommand(opts))

	return cmd, opts
}
