package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/nholik/aio-sentinel/internal/faults"
)

// Exit codes not covered by the fault taxonomy.
const (
	ExitSuccess = 0
	ExitUsage   = 2
)

// ExitError carries an explicit exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func usageError(err error) error {
	return &ExitError{Code: ExitUsage, Err: err}
}

// Response is the JSON envelope written with --format json.
type Response struct {
	Status string              `json:"status"`
	Data   any                 `json:"data,omitempty"`
	Error  *faults.Presentation `json:"error,omitempty"`
	Detail string              `json:"detail,omitempty"`
}

// printer writes command results in the selected format.
type printer struct {
	format string
	out    io.Writer
}

func newPrinter(opts *RootOptions, out io.Writer) printer {
	return printer{format: opts.Format, out: out}
}

// result prints data as JSON, or calls text for the text format.
func (p printer) result(data any, text func(w io.Writer) error) error {
	if p.format == FormatJSON {
		return writeJSON(p.out, Response{Status: "ok", Data: data})
	}
	return text(p.out)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Execute runs the command line and returns the process exit code. Failures
// are presented through the fault taxonomy: a short message and a recovery
// hint, with the detail logged.
func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	root, opts := newRootCommand(stderr)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}

	format := FormatText
	if opts.Format == FormatJSON {
		format = FormatJSON
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) && exitErr.Code == ExitUsage {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		fmt.Fprintln(stderr, "Run 'aio-sentinel --help' for usage.")
		return ExitUsage
	}

	presentation := faults.NewPresenter(opts.Logger(), nil).PresentError(err)

	code := faults.ExitCode(presentation.Category)
	if exitErr != nil {
		code = exitErr.Code
	}

	if format == FormatJSON {
		_ = writeJSON(stdout, Response{Status: "error", Error: &presentation, Detail: err.Error()})
		return code
	}
	fmt.Fprintf(stderr, "Error: %s\n", presentation.UserMessage)
	fmt.Fprintf(stderr, "Detail: %v\n", err)
	fmt.Fprintf(stderr, "Recovery: %s\n", presentation.Recovery)
	return code
}
