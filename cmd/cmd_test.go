package cmd

import (
	"bytes"
	"encoding/json"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stratustools/core/cli"
	"github.com/stratustools/core/errors"
	"github.com/stratustools/core/internal/store"
	"github.com/stratustools/core/testutil"
	"github.com/stratustools/core/tui/theme"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// execute runs the root command against srv and returns stdout.
func execute(t *testing.T, srv *testutil.Server, stdin string, args ...string) (string, error) {
	t.Helper()

	testutil.IsolateHome(t)
	t.Chdir(t.TempDir())

	if srv != nil {
		u, err := url.Parse(srv.URL)
		require.NoError(t, err)
		args = append(args, "--host", u.Hostname(), "--port", u.Port())
	}

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestStatusJSON(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.SetSnapshot(testutil.SnapshotInPhase("plan"))

	out, err := execute(t, srv, "", "status", "--json")
	require.NoError(t, err)

	var state store.State
	require.NoError(t, json.Unmarshal([]byte(out), &state))
	require.NotNil(t, state.Snapshot)
	assert.Equal(t, "plan", state.Snapshot.Active().Phase)
	assert.Equal(t, "0.9.0", state.Version.Current)
	assert.True(t, state.Connected)
	assert.Empty(t, state.Error)
}

func TestStatusDoesNotOpenStream(t *testing.T) {
	srv := testutil.NewServer(t)

	_, err := execute(t, srv, "", "status")
	require.NoError(t, err)
	assert.Equal(t, 1, srv.Hits("/api/dashboard/state"))
	assert.Equal(t, 0, srv.Hits("/api/ws"))
}

func TestStatusText(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.SetSnapshot(testutil.SnapshotInPhase("verify"))

	out, err := execute(t, srv, "", "status")
	require.NoError(t, err)
	assert.Contains(t, out, "● connected")
	assert.Contains(t, out, "verify")
}

func TestStatusUnreachable(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.SetStateStatus(503)

	_, err := execute(t, srv, "", "status")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeFetchFailed))
}

func TestHookPreBlocks(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.SetSnapshot(testutil.SnapshotInPhase("verify"))

	out, err := execute(t, srv, `{"tool":"write","args":{"filePath":"a.go"}}`, "hook", "pre")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodePolicyViolation))
	assert.Contains(t, out, `"continue":false`)
	assert.Contains(t, out, "verify")
}

func TestHookPreAllows(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.SetSnapshot(testutil.SnapshotInPhase("implement"))

	out, err := execute(t, srv, `{"tool_name":"Edit","tool_input":{"file_path":"a.go"}}`, "hook", "pre")
	require.NoError(t, err)
	assert.Contains(t, out, `"continue":true`)
}

func TestHookPreBlocksDeliveryAgentWithoutWorkflow(t *testing.T) {
	srv := testutil.NewServer(t)

	out, err := execute(t, srv, `{"tool_name":"Task","tool_input":{"subagent_type":"delivery-backend"}}`, "hook", "pre")
	require.Error(t, err)
	assert.Equal(t, cli.ExitBlocked, cli.ExitCode(err))
	assert.Contains(t, out, `"continue":false`)
	assert.Contains(t, out, "delivery-backend")
}

func TestHookPostMarksDirty(t *testing.T) {
	srv := testutil.NewServer(t)

	out, err := execute(t, srv, `{"tool":"write","args":{"filePath":"src/a.go"}}`, "hook", "post")
	require.NoError(t, err)
	assert.Contains(t, out, `"continue":true`)
	assert.Equal(t, [][]string{{"src/a.go"}}, srv.Dirty())
}

func TestUpdateFollowsProgress(t *testing.T) {
	srv := testutil.NewServer(t)

	go func() {
		deadline := time.Now().Add(5 * time.Second)
		for srv.Hits("/api/system/update") == 0 && time.Now().Before(deadline) {
			time.Sleep(10 * time.Millisecond)
		}
		srv.Broadcast(t, "update_progress", map[string]string{"msg": "Pulling"})
		srv.Broadcast(t, "update_complete", map[string]string{"msg": "Done"})
	}()

	out, err := execute(t, srv, "", "update", "--timeout", "10s")
	require.NoError(t, err)
	assert.Contains(t, out, "Pulling")
	assert.Contains(t, out, "Update complete")
}

func TestUpdateRejected(t *testing.T) {
	srv := testutil.NewServer(t)
	srv.SetUpdateStatus(409)

	_, err := execute(t, srv, "", "update", "--timeout", "5s")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeRequestRejected))
}

func TestConfigShowJSON(t *testing.T) {
	out, err := execute(t, nil, "", "config", "show", "--json", "--port", "9000")
	require.NoError(t, err)

	var shown struct {
		Sources []string `json:"sources"`
		Config  struct {
			Server struct {
				Port int `json:"port"`
			} `json:"server"`
		} `json:"config"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &shown))
	assert.Equal(t, 9000, shown.Config.Server.Port)
}

func TestConfigValidate(t *testing.T) {
	testutil.IsolateHome(t)
	dir := t.TempDir()
	good := testutil.WriteProjectConfig(t, dir, "server:\n  port: 8000\n")

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "validate", good})
	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), good)

	bad := testutil.WriteProjectConfig(t, t.TempDir(), "server:\n  port: 99999\n")
	root = NewRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"config", "validate", bad})
	err := root.Execute()
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeConfigInvalid))
}

func TestPaths(t *testing.T) {
	home := testutil.IsolateHome(t)

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"paths"})
	require.NoError(t, root.Execute())

	var p PathsOutput
	require.NoError(t, json.Unmarshal(out.Bytes(), &p))
	assert.True(t, strings.HasPrefix(p.LogDir, home))
}

func TestDescribeChange(t *testing.T) {
	state := store.State{Connected: true, Update: store.Tracker{Phase: store.PhaseInProgress, Log: []string{"Pulling"}}}
	th := testTheme()

	assert.Contains(t, describeChange(th, store.Update{Type: store.UpdateConnection}, state), "connected")
	assert.Contains(t, describeChange(th, store.Update{Type: store.UpdateTracker, Source: "update_progress"}, state), "in_progress: Pulling")
}

func testTheme() *theme.Theme {
	return theme.New("terminal")
}
