package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTrackerFlagsAreExclusive(t *testing.T) {
	phases := []UpdatePhase{PhaseIdle, PhaseRequesting, PhaseInProgress, PhaseCompleted, PhaseFailedStream, PhaseFailedRequest}
	for _, phase := range phases {
		tr := Tracker{Phase: phase}
		assert.False(t, tr.InProgress() && tr.Failed(), "phase %s", phase)
	}

	assert.True(t, Tracker{Phase: PhaseRequesting}.InProgress())
	assert.True(t, Tracker{Phase: PhaseInProgress}.InProgress())
	assert.True(t, Tracker{Phase: PhaseFailedStream}.Failed())
	assert.True(t, Tracker{Phase: PhaseFailedRequest}.Failed())
	assert.False(t, Tracker{Phase: PhaseCompleted}.Failed())
}

func TestTrackerBeginClearsPreviousRun(t *testing.T) {
	tr := Tracker{Phase: PhaseFailedStream, Log: []string{"old"}, Error: "old"}
	tr.Begin()

	assert.Equal(t, PhaseRequesting, tr.Phase)
	assert.Empty(t, tr.Log)
	assert.Empty(t, tr.Error)
}

func TestTrackerProgressBeforeResponse(t *testing.T) {
	var tr Tracker
	tr.Begin()
	tr.Progress("Stopping workers")
	assert.Equal(t, PhaseInProgress, tr.Phase)

	tr.Accepted()
	assert.Equal(t, PhaseInProgress, tr.Phase)
	assert.Equal(t, []string{"Stopping workers"}, tr.Log)
}

func TestTrackerRejectAfterSettleIsIgnored(t *testing.T) {
	var tr Tracker
	tr.Begin()
	tr.Complete("done")
	tr.Reject(fmt.Errorf("late timeout"))

	assert.Equal(t, PhaseCompleted, tr.Phase)
	assert.Empty(t, tr.Error)
}

func TestTrackerFailWithoutReason(t *testing.T) {
	var tr Tracker
	tr.Begin()
	tr.Fail("")

	assert.Equal(t, PhaseFailedStream, tr.Phase)
	assert.Equal(t, "update failed", tr.Error)
}
