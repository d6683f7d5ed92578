package store

// UpdatePhase is the lifecycle of one remote self-update.
type UpdatePhase string

const (
	PhaseIdle          UpdatePhase = "idle"
	PhaseRequesting    UpdatePhase = "requesting"
	PhaseInProgress    UpdatePhase = "in_progress"
	PhaseCompleted     UpdatePhase = "completed"
	PhaseFailedStream  UpdatePhase = "failed_stream"
	PhaseFailedRequest UpdatePhase = "failed_request"
)

// Tracker follows a self-update from the request through the progress
// envelopes to a settled phase. Terminal phases are left only by Begin.
type Tracker struct {
	Phase UpdatePhase `json:"phase"`
	Log   []string    `json:"log,omitempty"`
	Error string      `json:"error,omitempty"`
}

// InProgress reports whether an update has been requested and not settled.
func (t Tracker) InProgress() bool {
	return t.Phase == PhaseRequesting || t.Phase == PhaseInProgress
}

// Failed reports whether the last update failed, by request or by stream.
func (t Tracker) Failed() bool {
	return t.Phase == PhaseFailedStream || t.Phase == PhaseFailedRequest
}

// Begin starts a new update, discarding the previous log and error.
func (t *Tracker) Begin() {
	t.Phase = PhaseRequesting
	t.Log = nil
	t.Error = ""
}

// Accepted records that the server took the request.
func (t *Tracker) Accepted() {
	if t.Phase == PhaseRequesting {
		t.Phase = PhaseInProgress
	}
}

// Reject records that the request itself failed. It has no effect once the
// update has settled through the stream.
func (t *Tracker) Reject(err error) {
	if !t.InProgress() {
		return
	}
	t.Phase = PhaseFailedRequest
	t.Error = err.Error()
}

// Progress appends a log line.
func (t *Tracker) Progress(msg string) {
	if t.Phase == PhaseRequesting {
		t.Phase = PhaseInProgress
	}
	if msg != "" {
		t.Log = append(t.Log, msg)
	}
}

// Complete settles the update successfully.
func (t *Tracker) Complete(msg string) {
	t.Phase = PhaseCompleted
	t.Error = ""
	if msg != "" {
		t.Log = append(t.Log, msg)
	}
}

// Fail settles the update with a failure reported by the server.
func (t *Tracker) Fail(reason string) {
	if reason == "" {
		reason = "update failed"
	}
	t.Phase = PhaseFailedStream
	t.Error = reason
	t.Log = append(t.Log, "Error: "+reason)
}

// Dismiss clears the log and error. The phase is kept.
func (t *Tracker) Dismiss() {
	t.Log = nil
	t.Error = ""
}
