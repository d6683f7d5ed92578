package models

// WorkflowState is a spec or bug workflow tracked by the server.
type WorkflowState struct {
	ID              string              `json:"id"`
	Type            string              `json:"type"` // "spec" or "bug"
	Phase           string              `json:"phase"`
	Complexity      string              `json:"complexity"`
	DelegatedAgents map[string][]string `json:"delegated_agents,omitempty"`
	Tasks           []Task              `json:"tasks"`
	CurrentTask     *int                `json:"current_task,omitempty"`
	TotalTasks      int                 `json:"total_tasks"`
	Aborted         bool                `json:"aborted"`
	Title           string              `json:"title"`
	CreatedAt       Timestamp           `json:"created_at"`
	UpdatedAt       Timestamp           `json:"updated_at"`
}

// Task is one unit of work inside a workflow.
type Task struct {
	Index  int    `json:"index"`
	Title  string `json:"title"`
	Status string `json:"status"` // pending, in_progress, done
}

// DoneTasks counts completed tasks.
func (w *WorkflowState) DoneTasks() int {
	n := 0
	for _, t := range w.Tasks {
		if t.Status == "done" {
			n++
		}
	}
	return n
}

// Event is a memory event recorded on the server.
type Event struct {
	ID         int64          `json:"id"`
	TS         string         `json:"ts"`
	Actor      string         `json:"actor"`
	Scope      string         `json:"scope"`
	Type       string         `json:"type"`
	Text       string         `json:"text"`
	Title      string         `json:"title"`
	Tags       []string       `json:"tags"`
	Refs       map[string]any `json:"refs,omitempty"`
	Importance float64        `json:"importance"`
	DedupeKey  string         `json:"dedupe_key,omitempty"`
	Project    string         `json:"project,omitempty"`
	SessionID  string         `json:"session_id,omitempty"`
	CreatedMs  int64          `json:"created_ms"`
}

// Candidate is a pattern detected by the learning pipeline.
type Candidate struct {
	ID            string   `json:"id"`
	DetectionType string   `json:"detection_type"`
	Count         int      `json:"count"`
	Confidence    float64  `json:"confidence"`
	Files         []string `json:"files"`
	Description   string   `json:"description"`
	Status        string   `json:"status"`
	DetectedAt    string   `json:"detected_at"`
}

// Proposal is a learning proposal awaiting a decision.
type Proposal struct {
	ID              string  `json:"id"`
	CandidateID     string  `json:"candidate_id"`
	Type            string  `json:"type"`
	Title           string  `json:"title"`
	Description     string  `json:"description"`
	ProposedContent string  `json:"proposed_content"`
	ProposedPath    string  `json:"proposed_path,omitempty"`
	Confidence      float64 `json:"confidence"`
	Status          string  `json:"status"`
	Decision        string  `json:"decision,omitempty"`
	DecidedAt       string  `json:"decided_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
}
