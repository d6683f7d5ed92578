// Package api provides HTTP bindings for the stratus server.
// The bindings are deliberately thin: each method is one request and one
// decoded response, with coded errors so callers can tell a rejected
// request from an unreachable server.
package api

import "github.com/stratustools/core/pkg/models"

// phaseView is the part of the dashboard state the policy gate reads.
// Decoding only these fields keeps a malformed unrelated field from
// hiding the phase.
type phaseView struct {
	Workflows []struct {
		ID      string `json:"id"`
		Type    string `json:"type"`
		Phase   string `json:"phase"`
		Aborted bool   `json:"aborted"`
	} `json:"workflows"`
	ActiveWorkflow *models.ActiveWorkflow `json:"active_workflow"`
}

func (v *phaseView) active() *models.ActiveWorkflow {
	if v.ActiveWorkflow != nil {
		return v.ActiveWorkflow
	}
	for _, wf := range v.Workflows {
		if !wf.Aborted {
			return &models.ActiveWorkflow{ID: wf.ID, Type: wf.Type, Phase: wf.Phase}
		}
	}
	return nil
}

// UpdateAccepted is the body returned by POST /api/system/update.
type UpdateAccepted struct {
	Accepted bool   `json:"accepted"`
	Error    string `json:"error,omitempty"`
}

// DirtyRequest is the body sent to POST /api/retrieve/dirty.
type DirtyRequest struct {
	Paths []string `json:"paths"`
}
