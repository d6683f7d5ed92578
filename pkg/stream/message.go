package stream

import (
	"encoding/json"
	"fmt"

	"github.com/stratustools/core/pkg/models"
)

// Lifecycle tags are synthesized locally; the server never sends them.
const (
	TagConnected    = "connected"
	TagDisconnected = "disconnected"
	TagAll          = "*"
)

// Keep-alive tags.
const (
	TagPing = "ping"
	TagPong = "pong"
)

// Update progress tags.
const (
	TagUpdateProgress = "update_progress"
	TagUpdateComplete = "update_complete"
	TagUpdateFailed   = "update_failed"
)

// TagWorkerHeartbeat carries {id, ts} for a swarm worker.
const TagWorkerHeartbeat = "worker_heartbeat"

// InvalidationTags mark the Snapshot as stale.
var InvalidationTags = []string{
	"workflow_updated",
	"workflow_aborted",
	"workflow_deleted",
	"event_saved",
	"learning_update",
	"governance_indexed",
}

// SwarmTags signal swarm liveness. They are counted, never refetched.
var SwarmTags = []string{
	"mission_status",
	"worker_spawned",
	"worker_status",
	"ticket_status",
	"forge_update",
	"signal_sent",
	TagWorkerHeartbeat,
}

// UpdateTags report the progress of a remote self-update.
var UpdateTags = []string{TagUpdateProgress, TagUpdateComplete, TagUpdateFailed}

// Envelope is one message on the stream: a type tag plus an opaque payload.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewEnvelope marshals payload into an Envelope tagged tag.
func NewEnvelope(tag string, payload interface{}) (Envelope, error) {
	env := Envelope{Type: tag}
	if payload == nil {
		return env, nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		return Envelope{}, fmt.Errorf("marshal %s payload: %w", tag, err)
	}
	env.Payload = data
	return env, nil
}

// Message is the decoded form of an Envelope.
type Message interface {
	Tag() string
}

// Lifecycle is a connected or disconnected notification.
type Lifecycle struct {
	Type string
}

// Pong answers a keep-alive ping.
type Pong struct{}

// UpdateProgress is one log line of a running self-update.
type UpdateProgress struct {
	Msg string `json:"msg"`
}

// UpdateComplete reports a successful self-update.
type UpdateComplete struct {
	Msg string `json:"msg"`
}

// UpdateFailed reports a failed self-update.
type UpdateFailed struct {
	Error string `json:"error"`
}

// WorkerHeartbeat reports that a swarm worker is alive.
type WorkerHeartbeat struct {
	ID string           `json:"id"`
	TS models.Timestamp `json:"ts"`
}

// Invalidation reports that server-side data behind the Snapshot changed.
type Invalidation struct {
	Type    string
	Payload json.RawMessage
}

// SwarmEvent is any swarm liveness signal other than a heartbeat.
type SwarmEvent struct {
	Type    string
	Payload json.RawMessage
}

// Unknown is any envelope with an unrecognised tag.
type Unknown struct {
	Type    string
	Payload json.RawMessage
}

func (m Lifecycle) Tag() string { return m.Type }
func (Pong) Tag() string { return TagPong }
func (UpdateProgress) Tag() string { return TagUpdateProgress }
func (UpdateComplete) Tag() string { return TagUpdateComplete }
func (UpdateFailed) Tag() string { return TagUpdateFailed }
func (WorkerHeartbeat) Tag() string { return TagWorkerHeartbeat }
func (m Invalidation) Tag() string { return m.Type }
func (m SwarmEvent) Tag() string { return m.Type }
func (m Unknown) Tag() string { return m.Type }

// Decode converts an Envelope to its typed Message. Tags without a
// dedicated payload type decode without looking at the payload; an error
// is returned only when a typed payload is malformed.
func Decode(env Envelope) (Message, error) {
	switch env.Type {
	case TagConnected, TagDisconnected:
		return Lifecycle{Type: env.Type}, nil
	case TagPong:
		return Pong{}, nil
	case TagUpdateProgress:
		var m UpdateProgress
		return m, decodePayload(env, &m)
	case TagUpdateComplete:
		var m UpdateComplete
		return m, decodePayload(env, &m)
	case TagUpdateFailed:
		var m UpdateFailed
		return m, decodePayload(env, &m)
	case TagWorkerHeartbeat:
		var m WorkerHeartbeat
		if err := decodePayload(env, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
	if contains(InvalidationTags, env.Type) {
		return Invalidation{Type: env.Type, Payload: env.Payload}, nil
	}
	if IsSwarmTag(env.Type) {
		return SwarmEvent{Type: env.Type, Payload: env.Payload}, nil
	}
	return Unknown{Type: env.Type, Payload: env.Payload}, nil
}

func decodePayload(env Envelope, v interface{}) error {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", env.Type, err)
	}
	return nil
}

// IsSwarmTag reports whether tag is a swarm liveness signal.
func IsSwarmTag(tag string) bool {
	return contains(SwarmTags, tag)
}

func contains(tags []string, tag string) bool {
	for _, t := range tags {
		if t == tag {
			return true
		}
	}
	return false
}
