// Package models holds the wire types exchanged with the stratus server.
package models

// Snapshot is the full, denormalized server read-model returned by
// GET /api/dashboard/state. It is replaced wholesale on every refresh and
// must be treated as immutable once obtained.
type Snapshot struct {
	Workflows         []*WorkflowState `json:"workflows"`
	ActiveWorkflow    *ActiveWorkflow  `json:"active_workflow,omitempty"`
	RecentEvents      []*Event         `json:"recent_events"`
	PendingCandidates []*Candidate     `json:"pending_candidates"`
	PendingProposals  []*Proposal      `json:"pending_proposals"`
	Governance        GovernanceStats  `json:"governance"`
	VexorAvailable    bool             `json:"vexor_available"`
	WSClients         int              `json:"ws_clients"`
	TS                Timestamp        `json:"ts"`
}

// Active returns the workflow the server considers active, if any.
// Servers that do not send active_workflow report active workflows in
// Workflows, most relevant first.
func (s *Snapshot) Active() *ActiveWorkflow {
	if s == nil {
		return nil
	}
	if s.ActiveWorkflow != nil {
		return s.ActiveWorkflow
	}
	for _, wf := range s.Workflows {
		if wf != nil && !wf.Aborted {
			return &ActiveWorkflow{ID: wf.ID, Type: wf.Type, Phase: wf.Phase}
		}
	}
	return nil
}

// ActiveWorkflow is the minimal view of a workflow the policy gate needs.
type ActiveWorkflow struct {
	ID    string `json:"id,omitempty"`
	Type  string `json:"type,omitempty"`
	Phase string `json:"phase"`
}

// GovernanceStats summarizes the governance retrieval index.
type GovernanceStats struct {
	TotalChunks int         `json:"total_chunks"`
	ByType      []TypeCount `json:"by_type"`
}

// TypeCount is a count of indexed chunks per document type.
type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}
