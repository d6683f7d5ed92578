package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotActive(t *testing.T) {
	t.Run("explicit active workflow wins", func(t *testing.T) {
		s := &Snapshot{
			ActiveWorkflow: &ActiveWorkflow{Phase: "review"},
			Workflows:      []*WorkflowState{{ID: "a", Phase: "implement"}},
		}
		assert.Equal(t, "review", s.Active().Phase)
	})

	t.Run("falls back to first non-aborted workflow", func(t *testing.T) {
		s := &Snapshot{Workflows: []*WorkflowState{
			{ID: "old", Phase: "verify", Aborted: true},
			{ID: "cur", Type: "spec", Phase: "plan"},
		}}
		active := s.Active()
		require.NotNil(t, active)
		assert.Equal(t, "cur", active.ID)
		assert.Equal(t, "plan", active.Phase)
	})

	t.Run("no workflows", func(t *testing.T) {
		assert.Nil(t, (&Snapshot{}).Active())
		var s *Snapshot
		assert.Nil(t, s.Active())
	})
}

func TestTimestampUnmarshal(t *testing.T) {
	var ts struct {
		A Timestamp `json:"a"`
		B Timestamp `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"2026-01-02T03:04:05Z","b":1767323045000}`), &ts))

	want := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.True(t, ts.A.Equal(want))
	assert.True(t, ts.B.Equal(want))

	var bad Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &bad))
}

func TestTimestampUnixSeconds(t *testing.T) {
	var ts Timestamp
	require.NoError(t, json.Unmarshal([]byte(`1767323045`), &ts))
	assert.True(t, ts.Equal(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
}

func TestSnapshotTolerantTimestamps(t *testing.T) {
	raw := `{
		"workflows": [{"id": "wf-1", "phase": "plan", "created_at": "", "updated_at": null}],
		"ts": ""
	}`

	var s Snapshot
	require.NoError(t, json.Unmarshal([]byte(raw), &s))
	require.Len(t, s.Workflows, 1)
	assert.True(t, s.Workflows[0].CreatedAt.IsZero())
	assert.True(t, s.TS.IsZero())
	assert.Equal(t, "plan", s.Active().Phase)
}
