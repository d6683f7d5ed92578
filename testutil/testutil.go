// Package testutil holds helpers shared by package tests: a fake stratus
// server speaking HTTP and WebSocket, and small fixture builders.
package testutil

import (
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stratustools/core/pkg/models"
)

// RandomString generates a random string of the specified length
func RandomString(length int) string {
	bytes := make([]byte, length/2+1)
	if _, err := rand.Read(bytes); err != nil {
		panic(err)
	}
	return hex.EncodeToString(bytes)[:length]
}

// WriteProjectConfig writes a stratus.yml into dir and returns its path.
func WriteProjectConfig(t *testing.T, dir, content string) string {
	t.Helper()

	path := filepath.Join(dir, "stratus.yml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
	return path
}

// IsolateHome points STRATUS_HOME at a fresh temp dir so tests never read
// or write the user's real config and logs.
func IsolateHome(t *testing.T) string {
	t.Helper()

	home := t.TempDir()
	t.Setenv("STRATUS_HOME", home)
	t.Setenv("STRATUS_HOST", "")
	t.Setenv("STRATUS_PORT", "")
	return home
}

// SnapshotInPhase builds a Snapshot whose active workflow is in phase.
// An empty phase yields a Snapshot with no workflow at all.
func SnapshotInPhase(phase string) *models.Snapshot {
	snapshot := &models.Snapshot{
		Workflows:         []*models.WorkflowState{},
		RecentEvents:      []*models.Event{},
		PendingCandidates: []*models.Candidate{},
		PendingProposals:  []*models.Proposal{},
		TS:                models.Timestamp{Time: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)},
	}
	if phase == "" {
		return snapshot
	}

	id := "wf-" + RandomString(6)
	snapshot.ActiveWorkflow = &models.ActiveWorkflow{ID: id, Type: "spec", Phase: phase}
	snapshot.Workflows = append(snapshot.Workflows, &models.WorkflowState{
		ID:    id,
		Type:  "spec",
		Phase: phase,
	})
	return snapshot
}
