package cli

import (
	"bytes"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stratustools/core/config"
	"github.com/stratustools/core/errors"
	"github.com/stratustools/core/testutil"
	"github.com/stratustools/core/tui/theme"
)

// runWith executes a standard command with args and returns the
// configuration its RunE loaded.
func runWith(t *testing.T, args ...string) (*config.Loaded, error) {
	t.Helper()

	var loaded *config.Loaded
	cmd := NewStandardCommand("stratus", "test")
	cmd.RunE = func(cmd *cobra.Command, _ []string) error {
		var err error
		loaded, err = LoadConfig(cmd)
		return err
	}
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	return loaded, cmd.Execute()
}

func TestLoadConfigFromFlag(t *testing.T) {
	testutil.IsolateHome(t)
	path := testutil.WriteProjectConfig(t, t.TempDir(), "server:\n  host: api.local\n  port: 7000\n")

	loaded, err := runWith(t, "--config", path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, loaded.Sources)
	assert.Equal(t, "http://api.local:7000", loaded.BaseURL())
}

func TestLoadConfigFlagOverrides(t *testing.T) {
	testutil.IsolateHome(t)
	path := testutil.WriteProjectConfig(t, t.TempDir(), "server:\n  host: api.local\n  port: 7000\n")

	loaded, err := runWith(t, "--config", path, "--host", "127.0.0.1", "--port", "9100")
	require.NoError(t, err)
	assert.Equal(t, "ws://127.0.0.1:9100/api/ws", loaded.StreamURL())
}

func TestLoadConfigRejectsBadPort(t *testing.T) {
	testutil.IsolateHome(t)
	path := testutil.WriteProjectConfig(t, t.TempDir(), "server:\n  host: api.local\n")

	_, err := runWith(t, "--config", path, "--port", "70000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
}

func TestLoadConfigMissingFile(t *testing.T) {
	testutil.IsolateHome(t)

	_, err := runWith(t, "--config", filepath.Join(t.TempDir(), "nope.yml"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigNotFound))
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitFailure, ExitCode(fmt.Errorf("boom")))
	assert.Equal(t, ExitBlocked, ExitCode(errors.PolicyViolation("write", "verify", []string{"read"})))
	assert.Equal(t, ExitBlocked, ExitCode(fmt.Errorf("hook: %w", errors.PolicyViolation("edit", "review", nil))))
}

func TestErrorHandlerMessages(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"config not found", errors.ConfigNotFound("/tmp"), "Create stratus.yml"},
		{"unreachable", errors.FetchFailed("dashboard state", fmt.Errorf("refused")), "not reachable at localhost:41777"},
		{"rejected", errors.RequestRejected("update", 409, fmt.Errorf("Update already in progress")), "HTTP 409"},
		{"policy", errors.PolicyViolation("write", "verify", []string{"read"}), "blocked during the 'verify' phase"},
		{"generic", fmt.Errorf("boom"), "Error: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			h := &ErrorHandler{Server: "localhost:41777", Out: &out}
			assert.Equal(t, tt.err, h.Handle(tt.err))
			assert.Contains(t, out.String(), tt.want)
		})
	}
}

func TestErrorHandlerVerboseDetails(t *testing.T) {
	var out bytes.Buffer
	h := &ErrorHandler{Verbose: true, Out: &out}
	h.Handle(errors.RequestRejected("update", 503, fmt.Errorf("unavailable")))
	assert.Contains(t, out.String(), `"code": "REQUEST_REJECTED"`)
}

func TestRenderHelp(t *testing.T) {
	root := NewStandardCommand("stratus", "Client for the stratus server")
	root.Long = "Client for the stratus server\n\nExamples:\n# watch the dashboard\nstratus watch --tui"
	child := &cobra.Command{Use: "status", Short: "Print the dashboard once", Run: func(*cobra.Command, []string) {}}
	child.Flags().Int("width", 80, "Render width")
	root.AddCommand(child)

	th := theme.New("terminal")
	help := RenderHelp(root, th, 80)
	assert.Contains(t, help, "STRATUS")
	assert.Contains(t, help, "COMMANDS")
	assert.Contains(t, help, "status")
	assert.Contains(t, help, "--verbose")
	assert.Contains(t, help, "EXAMPLES")
	assert.Contains(t, help, "stratus watch --tui")

	childHelp := RenderHelp(child, th, 80)
	assert.Contains(t, childHelp, "--width")
	assert.Contains(t, childHelp, "(default: 80)")
	assert.NotContains(t, childHelp, "COMMANDS")
}

func TestWrapText(t *testing.T) {
	lines := wrapText("one two three four five", 9)
	assert.Equal(t, []string{"one two", "three", "four five"}, lines)
}

func TestErrorHandlerUsesURLDetail(t *testing.T) {
	var out bytes.Buffer
	h := &ErrorHandler{Out: &out}
	err := errors.FetchFailed("version", fmt.Errorf("refused")).WithDetail("url", "http://10.0.0.5:41777")
	h.Handle(err)
	assert.Contains(t, out.String(), "not reachable at http://10.0.0.5:41777")
}
