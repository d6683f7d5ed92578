package errors

import (
	"fmt"
	"strings"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *StratusError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *StratusError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// Transport creates a connection-level error for the event stream.
func Transport(url string, err error) *StratusError {
	return Wrap(err, ErrCodeTransport, "event stream connection failed").
		WithDetail("url", url)
}

// FetchFailed creates an error for a failed read from the server.
func FetchFailed(resource string, err error) *StratusError {
	return Wrap(err, ErrCodeFetchFailed, fmt.Sprintf("failed to fetch %s", resource)).
		WithDetail("resource", resource)
}

// RequestRejected creates an error for a server call that was refused or
// never reached the server.
func RequestRejected(operation string, status int, err error) *StratusError {
	e := Wrap(err, ErrCodeRequestRejected, fmt.Sprintf("%s request rejected", operation)).
		WithDetail("operation", operation)
	if status != 0 {
		e = e.WithDetail("status", status)
	}
	return e
}

// NotifyFailed creates an error for a failed fire-and-forget notification.
func NotifyFailed(paths []string, err error) *StratusError {
	return Wrap(err, ErrCodeNotifyFailed, "dirty-file notification failed").
		WithDetail("paths", paths)
}

// UpdateFailed creates the error for a server self-update that settled
// unsuccessfully.
func UpdateFailed(reason string) *StratusError {
	return New(ErrCodeUpdateFailed, fmt.Sprintf("server update failed: %s", reason)).
		WithDetail("reason", reason)
}

// DelegationBlocked reports a delivery subagent spawned with no workflow
// active.
func DelegationBlocked(tool, agent string) *StratusError {
	msg := fmt.Sprintf("delegation guard: cannot spawn delivery agent '%s' without an active workflow. "+
		"Start a spec or bug workflow first.", agent)
	return New(ErrCodePolicyViolation, msg).
		WithDetail("tool", tool).
		WithDetail("agent", agent)
}

// PolicyViolation creates the error returned when a tool invocation is blocked
// by the active workflow phase.
func PolicyViolation(tool, phase string, allowed []string) *StratusError {
	msg := fmt.Sprintf("phase guard: '%s' is blocked during the '%s' phase. "+
		"Only read-only tools (%s) are allowed. Complete the %s phase before making changes.",
		tool, phase, strings.Join(allowed, ", "), phase)
	return New(ErrCodePolicyViolation, msg).
		WithDetail("tool", tool).
		WithDetail("phase", phase).
		WithDetail("allowed", allowed)
}
