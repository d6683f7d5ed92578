// Package status renders the client's view of the stratus server, both as a
// one-shot text block and as a live bubbletea program.
package status

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stratustools/core/internal/store"
	"github.com/stratustools/core/pkg/models"
	"github.com/stratustools/core/tui/theme"
)

// workerTTL is how long a heartbeat keeps a worker counted as alive.
const workerTTL = 30 * time.Second

const maxLogLines = 6

// Renderer turns a store.State into text.
type Renderer struct {
	Theme *theme.Theme
	// Width truncates every line when positive.
	Width int
	Now   func() time.Time
}

// Render renders state with the default theme.
func Render(state store.State, width int) string {
	return Renderer{Theme: theme.DefaultTheme, Width: width}.Render(state)
}

// Render renders state.
func (r Renderer) Render(state store.State) string {
	t := r.Theme
	if t == nil {
		t = theme.DefaultTheme
	}
	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	var sections []string
	sections = append(sections, r.header(t, state))

	if state.Error != "" {
		sections = append(sections, t.Error.Render("! "+state.Error))
	}

	switch {
	case state.Snapshot == nil && state.Loading:
		sections = append(sections, t.Muted.Render("Loading dashboard..."))
	case state.Snapshot == nil:
		sections = append(sections, t.Muted.Render("No dashboard data."))
	default:
		sections = append(sections,
			r.workflows(t, state.Snapshot),
			r.summary(t, state.Snapshot),
		)
	}

	if swarm := r.swarm(t, state, now()); swarm != "" {
		sections = append(sections, swarm)
	}
	if update := r.update(t, state); update != "" {
		sections = append(sections, update)
	}

	out := strings.Join(sections, "\n\n")
	if r.Width > 0 {
		out = lipgloss.NewStyle().MaxWidth(r.Width).Render(out)
	}
	return out
}

func (r Renderer) header(t *theme.Theme, state store.State) string {
	conn := t.Error.Render("○ disconnected")
	if state.Connected {
		conn = t.Success.Render("● connected")
	}

	line := t.Header.Render("stratus") + "  " + conn
	if v := state.Version; v != nil && v.Current != "" {
		line += "  " + t.Muted.Render("v"+strings.TrimPrefix(v.Current, "v"))
		if v.UpdateAvailable && v.Latest != "" {
			line += "  " + t.Warning.Render("update available: "+v.Latest)
		}
	}
	return line
}

func (r Renderer) workflows(t *theme.Theme, s *models.Snapshot) string {
	lines := []string{t.Section.Render("WORKFLOWS")}

	active := s.Active()
	shown := 0
	for _, wf := range s.Workflows {
		if wf == nil || wf.Aborted {
			continue
		}
		shown++
		marker := " "
		if active != nil && active.ID == wf.ID {
			marker = t.Info.Render("▸")
		}
		tasks := ""
		if wf.TotalTasks > 0 {
			tasks = t.Muted.Render(fmt.Sprintf(" %d/%d tasks", wf.DoneTasks(), wf.TotalTasks))
		}
		title := wf.Title
		if title == "" {
			title = wf.ID
		}
		lines = append(lines, fmt.Sprintf("%s %s %s %s%s",
			marker, t.Bold.Render(title), t.Muted.Render("["+wf.Type+"]"), t.Info.Render(wf.Phase), tasks))
	}
	if shown == 0 {
		if active != nil {
			lines = append(lines, fmt.Sprintf("%s %s %s", t.Info.Render("▸"), t.Bold.Render(active.ID), t.Info.Render(active.Phase)))
		} else {
			lines = append(lines, t.Muted.Render("  No active workflow"))
		}
	}
	return strings.Join(lines, "\n")
}

func (r Renderer) summary(t *theme.Theme, s *models.Snapshot) string {
	index := "unavailable"
	if s.VexorAvailable {
		index = fmt.Sprintf("%d chunks", s.Governance.TotalChunks)
	}
	parts := []string{
		fmt.Sprintf("%d events", len(s.RecentEvents)),
		fmt.Sprintf("%d candidates", len(s.PendingCandidates)),
		fmt.Sprintf("%d proposals", len(s.PendingProposals)),
		"index " + index,
		fmt.Sprintf("%d clients", s.WSClients),
	}
	line := strings.Join(parts, t.Muted.Render(" · "))
	if !s.TS.IsZero() {
		line += t.Muted.Render("  as of " + s.TS.Local().Format("15:04:05"))
	}
	return line
}

func (r Renderer) swarm(t *theme.Theme, state store.State, now time.Time) string {
	if len(state.Heartbeats) == 0 && state.SwarmRevision == 0 {
		return ""
	}

	alive := 0
	for _, ts := range state.Heartbeats {
		if now.Sub(ts) <= workerTTL {
			alive++
		}
	}

	line := fmt.Sprintf("%s %d/%d workers alive", t.Section.Render("SWARM"), alive, len(state.Heartbeats))
	return line + t.Muted.Render(fmt.Sprintf("  rev %d", state.SwarmRevision))
}

func (r Renderer) update(t *theme.Theme, state store.State) string {
	tr := state.Update
	if tr.Phase == store.PhaseIdle || tr.Phase == "" {
		return ""
	}
	if tr.Phase == store.PhaseCompleted && len(tr.Log) == 0 {
		return ""
	}

	var status string
	switch {
	case tr.InProgress():
		status = t.Warning.Render("updating")
	case tr.Failed():
		status = t.Error.Render("update failed")
	default:
		status = t.Success.Render("update complete")
	}
	lines := []string{t.Section.Render("UPDATE") + " " + status}

	log := tr.Log
	if len(log) > maxLogLines {
		log = log[len(log)-maxLogLines:]
	}
	for _, line := range log {
		lines = append(lines, "  "+t.Muted.Render(line))
	}
	if tr.Error != "" && tr.Phase == store.PhaseFailedRequest {
		lines = append(lines, "  "+t.Error.Render(tr.Error))
	}
	return strings.Join(lines, "\n")
}
