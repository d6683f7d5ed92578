// Package store holds the client's view of the stratus server: the latest
// Snapshot, connection status, swarm liveness and the self-update tracker.
// It reconciles that view with the server by refetching on invalidation
// signals from the event stream.
package store

import (
	"time"

	"github.com/stratustools/core/pkg/models"
)

// State is the complete client-side view. Values returned by Store.Get are
// copies; Snapshot and Version point at immutable server responses.
type State struct {
	Snapshot  *models.Snapshot    `json:"snapshot"`
	Connected bool                `json:"connected"`
	Loading   bool                `json:"loading"`
	Error     string              `json:"error,omitempty"`
	Version   *models.VersionInfo `json:"version,omitempty"`
	Update    Tracker             `json:"update"`

	// SwarmRevision increases by one for every swarm liveness signal.
	SwarmRevision uint64               `json:"swarm_revision"`
	Heartbeats    map[string]time.Time `json:"heartbeats"` // Keyed by worker ID
}

func (s *State) clone() State {
	out := *s
	out.Update.Log = append([]string(nil), s.Update.Log...)
	out.Heartbeats = make(map[string]time.Time, len(s.Heartbeats))
	for id, ts := range s.Heartbeats {
		out.Heartbeats[id] = ts
	}
	return out
}

// UpdateType defines what kind of data changed.
type UpdateType string

const (
	UpdateSnapshot   UpdateType = "snapshot"
	UpdateConnection UpdateType = "connection"
	UpdateVersion    UpdateType = "version"
	UpdateTracker    UpdateType = "update"
	UpdateSwarm      UpdateType = "swarm"
)

// Update is sent to subscribers after every state change.
type Update struct {
	Type   UpdateType
	Source string // Envelope tag or operation that caused the change
}
