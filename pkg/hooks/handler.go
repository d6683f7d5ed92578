package hooks

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/stratustools/core/errors"
)

// Event is the JSON document the automation host writes to the hook's
// stdin. Two shapes are accepted: {"tool", "args"} and
// {"tool_name", "tool_input"}.
type Event struct {
	HookEventName string                 `json:"hook_event_name,omitempty"`
	SessionID     string                 `json:"session_id,omitempty"`
	Tool          string                 `json:"tool,omitempty"`
	Args          map[string]interface{} `json:"args,omitempty"`
	ToolName      string                 `json:"tool_name,omitempty"`
	ToolInput     map[string]interface{} `json:"tool_input,omitempty"`
}

// Decision is written back to the host on stdout.
type Decision struct {
	Continue bool   `json:"continue"`
	Reason   string `json:"reason,omitempty"`
}

// argAliases map host argument names onto the ones the gate reads.
var argAliases = map[string]string{
	"file_path":     "filePath",
	"notebook_path": "filePath",
	"subagentType":  "subagent_type",
}

// toolAliases fold host tool variants onto the gate's tool names.
var toolAliases = map[string]string{
	"multiedit":    "edit",
	"notebookedit": "edit",
}

// ReadEvent parses one hook event.
func ReadEvent(r io.Reader) (Event, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Event{}, fmt.Errorf("read event: %w", err)
	}
	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("parse event: %w", err)
	}
	return event, nil
}

// Invocation converts the event to the gate's form.
func (e Event) Invocation() Invocation {
	tool, args := e.Tool, e.Args
	if tool == "" {
		tool, args = e.ToolName, e.ToolInput
	}

	tool = normalizeTool(tool)
	if alias, ok := toolAliases[tool]; ok {
		tool = alias
	}

	normalized := make(map[string]interface{}, len(args))
	for key, value := range args {
		normalized[key] = value
	}
	for from, to := range argAliases {
		if _, exists := normalized[to]; exists {
			continue
		}
		if value, ok := args[from]; ok {
			normalized[to] = value
		}
	}
	return Invocation{Tool: tool, Args: normalized}
}

// RunPre handles a pre-tool hook: it reads the event from r, consults the
// gate and writes the decision to w. A blocked invocation is returned as a
// POLICY_VIOLATION error after the decision has been written. Unreadable
// input never blocks.
func RunPre(ctx context.Context, gate *Gate, r io.Reader, w io.Writer) error {
	event, err := ReadEvent(r)
	if err != nil {
		gate.logger.WithError(err).Debug("Unreadable hook event, allowing")
		return writeDecision(w, Decision{Continue: true})
	}

	inv := event.Invocation()
	if inv.Tool == "" {
		return writeDecision(w, Decision{Continue: true})
	}

	if err := gate.Before(ctx, inv); err != nil {
		reason := err.Error()
		if se, ok := errors.As(err); ok {
			reason = se.Message
		}
		if werr := writeDecision(w, Decision{Continue: false, Reason: reason}); werr != nil {
			gate.logger.WithError(werr).Debug("Failed to write hook decision")
		}
		return err
	}
	return writeDecision(w, Decision{Continue: true})
}

// RunPost handles a post-tool hook. It always allows and waits for the
// notification to finish so short-lived processes do not drop it.
func RunPost(ctx context.Context, gate *Gate, r io.Reader, w io.Writer) error {
	event, err := ReadEvent(r)
	if err == nil {
		gate.After(ctx, event.Invocation())
		gate.Wait()
	} else {
		gate.logger.WithError(err).Debug("Unreadable hook event, ignoring")
	}
	return writeDecision(w, Decision{Continue: true})
}

func writeDecision(w io.Writer, d Decision) error {
	data, err := json.Marshal(d)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
