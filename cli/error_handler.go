package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/stratustools/core/errors"
	"github.com/stratustools/core/tui/theme"
)

// Exit codes returned by stratus commands.
const (
	ExitOK      = 0
	ExitFailure = 1
	// ExitBlocked tells the automation host that a tool invocation was denied.
	ExitBlocked = 2
)

// ErrorHandler provides user-friendly error messages
type ErrorHandler struct {
	Verbose bool
	// Server is the address shown when the server cannot be reached.
	Server string
	Out    io.Writer
}

// NewErrorHandler creates a new error handler writing to stderr.
func NewErrorHandler(verbose bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		Out:     os.Stderr,
	}
}

// Handle prints a message for err based on its code and returns err.
func (h *ErrorHandler) Handle(err error) error {
	if err == nil {
		return nil
	}
	t := theme.DefaultTheme
	fail := t.Error.Render("❌")

	switch errors.GetCode(err) {
	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "%s Configuration not found. Create stratus.yml or pass --config.\n", fail)

	case errors.ErrCodeConfigInvalid:
		fmt.Fprintf(h.Out, "%s %v\n", fail, err)
		fmt.Fprintln(h.Out, t.Muted.Render("Run 'stratus config validate' for details."))

	case errors.ErrCodeTransport, errors.ErrCodeFetchFailed:
		server := h.Server
		if se, ok := errors.As(err); ok && server == "" {
			if url, ok := se.Details["url"].(string); ok {
				server = url
			}
		}
		if server == "" {
			server = "the configured address"
		}
		fmt.Fprintf(h.Out, "%s stratus server not reachable at %s\n", fail, server)
		fmt.Fprintln(h.Out, t.Muted.Render("Start the server or set --host/--port."))

	case errors.ErrCodeRequestRejected:
		se, _ := errors.As(err)
		if status, ok := se.Details["status"]; ok {
			fmt.Fprintf(h.Out, "%s %s (HTTP %v): %v\n", fail, se.Message, status, se.Cause)
		} else {
			fmt.Fprintf(h.Out, "%s %s: %v\n", fail, se.Message, se.Cause)
		}

	case errors.ErrCodeUpdateFailed:
		fmt.Fprintf(h.Out, "%s %v\n", fail, err)
		fmt.Fprintln(h.Out, t.Muted.Render("Run 'stratus status' to inspect the server."))

	case errors.ErrCodePolicyViolation:
		se, _ := errors.As(err)
		fmt.Fprintf(h.Out, "%s %s\n", t.Warning.Render("⛔"), se.Message)

	default:
		fmt.Fprintf(h.Out, "%s Error: %v\n", fail, err)
	}

	if h.Verbose {
		if se, ok := errors.As(err); ok {
			fmt.Fprintf(h.Out, "\nError details:\n%s\n", se.ToJSON())
		}
	}
	return err
}

// ExitCode maps err to the process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, errors.ErrCodePolicyViolation):
		return ExitBlocked
	default:
		return ExitFailure
	}
}
