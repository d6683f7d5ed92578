package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stratustools/core/config"
	"github.com/stratustools/core/errors"
	"github.com/stratustools/core/testutil"
	"github.com/stratustools/core/version"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T) (*HTTPClient, *testutil.Server) {
	t.Helper()
	srv := testutil.NewServer(t)
	return NewHTTPClient(srv.URL + "/"), srv
}

func TestDashboardState(t *testing.T) {
	client, srv := newTestClient(t)
	srv.SetSnapshot(testutil.SnapshotInPhase("implement"))

	snapshot, err := client.DashboardState(context.Background())
	require.NoError(t, err)
	require.NotNil(t, snapshot.Active())
	assert.Equal(t, "implement", snapshot.Active().Phase)
	assert.Len(t, snapshot.Workflows, 1)
	assert.Equal(t, 1, srv.Hits("/api/dashboard/state"))
}

func TestDashboardStateFailure(t *testing.T) {
	client, srv := newTestClient(t)
	srv.SetStateStatus(http.StatusInternalServerError)

	_, err := client.DashboardState(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeFetchFailed))
	assert.Contains(t, err.Error(), "status 500")
}

func TestVersion(t *testing.T) {
	client, _ := newTestClient(t)

	info, err := client.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.9.0", info.Current)
	assert.True(t, info.UpdateAvailable)
}

func TestTriggerUpdate(t *testing.T) {
	client, srv := newTestClient(t)

	require.NoError(t, client.TriggerUpdate(context.Background()))
	assert.Equal(t, 1, srv.Hits("/api/system/update"))

	srv.SetUpdateStatus(http.StatusConflict)
	err := client.TriggerUpdate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeRequestRejected))
	assert.Contains(t, err.Error(), "Update already in progress")

	se, ok := errors.As(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusConflict, se.Details["status"])
}

func TestTriggerUpdateUnreachable(t *testing.T) {
	client, srv := newTestClient(t)
	srv.Close()

	err := client.TriggerUpdate(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeRequestRejected))
}

func TestActiveWorkflow(t *testing.T) {
	client, srv := newTestClient(t)

	active, err := client.ActiveWorkflow(context.Background())
	require.NoError(t, err)
	assert.Nil(t, active)

	srv.SetSnapshot(testutil.SnapshotInPhase("verify"))
	active, err = client.ActiveWorkflow(context.Background())
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "verify", active.Phase)
}

func TestActiveWorkflowIgnoresUnrelatedFields(t *testing.T) {
	client, srv := newTestClient(t)
	srv.SetStateBody([]byte(`{
		"workflows": [
			{"id": "wf-old", "phase": "implement", "aborted": true},
			{"id": "wf-1", "type": "spec", "phase": "verify", "created_at": "last tuesday"}
		],
		"recent_events": "not-a-list",
		"ts": {"weird": true}
	}`))

	_, err := client.DashboardState(context.Background())
	require.Error(t, err, "full snapshot decode rejects the malformed fields")

	active, err := client.ActiveWorkflow(context.Background())
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, "wf-1", active.ID)
	assert.Equal(t, "verify", active.Phase)
}

func TestActiveWorkflowUnreachable(t *testing.T) {
	client, srv := newTestClient(t)
	srv.Close()

	_, err := client.ActiveWorkflow(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeFetchFailed))
}

func TestUserAgent(t *testing.T) {
	client, srv := newTestClient(t)

	_, err := client.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, version.UserAgent(), srv.UserAgent())
}

func TestMarkDirty(t *testing.T) {
	client, srv := newTestClient(t)

	require.NoError(t, client.MarkDirty(context.Background(), []string{"/a.ts"}))
	assert.Equal(t, [][]string{{"/a.ts"}}, srv.Dirty())
}

func TestContextDeadline(t *testing.T) {
	client, srv := newTestClient(t)
	srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := client.MarkDirty(ctx, []string{"/a.ts"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCodeNotifyFailed))
}

func TestNewFromConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Server.Port = 5555

	client := New(cfg)
	assert.Equal(t, "http://localhost:5555", client.BaseURL())
}
