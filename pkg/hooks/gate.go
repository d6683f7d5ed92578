// Package hooks implements the policy gate consulted by the automation host
// around every tool invocation: a synchronous phase guard before the tool
// runs and a fire-and-forget reindex notification after it.
package hooks

import (
	"context"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/moby/patternmatcher"
	"github.com/sirupsen/logrus"
	"github.com/stratustools/core/config"
	"github.com/stratustools/core/errors"
	"github.com/stratustools/core/logging"
	"github.com/stratustools/core/pkg/models"
)

// Querier reports the active workflow.
type Querier interface {
	ActiveWorkflow(ctx context.Context) (*models.ActiveWorkflow, error)
}

// Notifier reports changed files to the indexer.
type Notifier interface {
	MarkDirty(ctx context.Context, paths []string) error
}

// Verdict is the outcome of a phase check.
type Verdict int

const (
	VerdictAllow Verdict = iota
	VerdictDeny
	// VerdictUnknown means the phase could not be determined. It allows.
	VerdictUnknown
)

func (v Verdict) String() string {
	switch v {
	case VerdictDeny:
		return "deny"
	case VerdictUnknown:
		return "unknown"
	default:
		return "allow"
	}
}

// Invocation is one tool call as seen by the gate.
type Invocation struct {
	Tool string                 `json:"tool"`
	Args map[string]interface{} `json:"args,omitempty"`
}

// Options configures a Gate.
type Options struct {
	MutatingTools []string
	WatchTools    []string
	BlockedPhases []string
	ReadOnlyTools []string

	// DelegationTools spawn subagents. A subagent whose type starts with one
	// of DeliveryAgents may only be spawned while a workflow is active.
	DelegationTools []string
	DeliveryAgents  []string

	// IgnorePaths are dockerignore-style patterns, relative to ProjectRoot,
	// for files never reported as dirty.
	IgnorePaths []string
	ProjectRoot string

	QueryTimeout  time.Duration
	NotifyTimeout time.Duration

	Logger *logrus.Entry
}

// OptionsFromConfig builds Options from the hooks section of cfg.
func OptionsFromConfig(cfg *config.Config, projectRoot string) Options {
	return Options{
		MutatingTools:   cfg.Hooks.MutatingTools,
		WatchTools:      cfg.Hooks.WatchTools,
		BlockedPhases:   cfg.Hooks.BlockedPhases,
		ReadOnlyTools:   cfg.Hooks.ReadOnlyTools,
		DelegationTools: cfg.Hooks.DelegationTools,
		DeliveryAgents:  cfg.Hooks.DeliveryAgents,
		IgnorePaths:     cfg.Hooks.IgnorePaths,
		ProjectRoot:     projectRoot,
		QueryTimeout:    cfg.QueryTimeout(),
		NotifyTimeout:   cfg.NotifyTimeout(),
	}
}

// Gate decides whether tool invocations may proceed.
type Gate struct {
	querier  Querier
	notifier Notifier
	logger   *logrus.Entry

	mutating       map[string]bool
	watched        map[string]bool
	blocked        map[string]bool
	readOnly       []string
	delegation     map[string]bool
	deliveryAgents []string
	ignore         *patternmatcher.PatternMatcher
	root           string
	queryTimeout   time.Duration
	notifyTimeout  time.Duration

	pending sync.WaitGroup
}

// New creates a Gate. Empty tool and phase lists fall back to the
// configured defaults.
func New(querier Querier, notifier Notifier, opts Options) (*Gate, error) {
	defaults := config.Default().Hooks
	if len(opts.MutatingTools) == 0 {
		opts.MutatingTools = defaults.MutatingTools
	}
	if len(opts.WatchTools) == 0 {
		opts.WatchTools = defaults.WatchTools
	}
	if len(opts.BlockedPhases) == 0 {
		opts.BlockedPhases = defaults.BlockedPhases
	}
	if len(opts.ReadOnlyTools) == 0 {
		opts.ReadOnlyTools = defaults.ReadOnlyTools
	}
	if len(opts.DelegationTools) == 0 {
		opts.DelegationTools = defaults.DelegationTools
	}
	if len(opts.DeliveryAgents) == 0 {
		opts.DeliveryAgents = defaults.DeliveryAgents
	}
	if opts.QueryTimeout <= 0 {
		opts.QueryTimeout = config.DefaultQueryTimeout
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = config.DefaultNotifyTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewLogger("hooks")
	}

	g := &Gate{
		querier:        querier,
		notifier:       notifier,
		logger:         opts.Logger,
		mutating:       toSet(opts.MutatingTools),
		watched:        toSet(opts.WatchTools),
		blocked:        toSet(opts.BlockedPhases),
		readOnly:       opts.ReadOnlyTools,
		delegation:     toSet(opts.DelegationTools),
		deliveryAgents: opts.DeliveryAgents,
		root:           opts.ProjectRoot,
		queryTimeout:   opts.QueryTimeout,
		notifyTimeout:  opts.NotifyTimeout,
	}

	if len(opts.IgnorePaths) > 0 {
		pm, err := patternmatcher.New(opts.IgnorePaths)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeConfigInvalid, "invalid hooks.ignore_paths pattern")
		}
		g.ignore = pm
	}
	return g, nil
}

// Decide checks inv against the active workflow. Mutating tools are denied
// during blocked phases and delivery subagents are denied when no workflow
// is active. The phase is fetched fresh on every call; the returned phase
// is empty when there is none.
func (g *Gate) Decide(ctx context.Context, inv Invocation) (Verdict, string) {
	tool := normalizeTool(inv.Tool)
	delegating := g.deliveryAgent(inv) != ""
	if !g.mutating[tool] && !delegating {
		return VerdictAllow, ""
	}

	ctx, cancel := context.WithTimeout(ctx, g.queryTimeout)
	defer cancel()

	active, err := g.querier.ActiveWorkflow(ctx)
	if err != nil {
		g.logger.WithError(err).WithField("tool", tool).Warn("Phase query failed, allowing tool")
		return VerdictUnknown, ""
	}
	if active == nil {
		if delegating {
			return VerdictDeny, ""
		}
		return VerdictAllow, ""
	}
	if g.mutating[tool] && g.blocked[strings.ToLower(active.Phase)] {
		return VerdictDeny, active.Phase
	}
	return VerdictAllow, active.Phase
}

// Before runs ahead of a tool invocation. It returns a POLICY_VIOLATION
// error when the tool must not run; every other outcome is nil.
func (g *Gate) Before(ctx context.Context, inv Invocation) error {
	verdict, phase := g.Decide(ctx, inv)
	logger := g.logger.WithFields(logrus.Fields{
		"tool":    inv.Tool,
		"phase":   phase,
		"verdict": verdict.String(),
	})

	if verdict != VerdictDeny {
		logger.Debug("Tool allowed")
		return nil
	}
	tool := normalizeTool(inv.Tool)
	if phase == "" {
		agent := g.deliveryAgent(inv)
		logger.WithField("agent", agent).Info("Delivery agent blocked, no active workflow")
		return errors.DelegationBlocked(tool, agent)
	}
	logger.Info("Tool blocked by phase guard")
	return errors.PolicyViolation(tool, phase, g.readOnly)
}

// After runs once a tool invocation has finished. For file-writing tools it
// notifies the indexer in the background; failures are logged and dropped.
func (g *Gate) After(ctx context.Context, inv Invocation) {
	tool := normalizeTool(inv.Tool)
	if !g.watched[tool] {
		return
	}

	path := PathFromArgs(inv.Args)
	if path == "" {
		return
	}
	if g.ignored(path) {
		g.logger.WithField("path", path).Debug("Path ignored, skipping dirty notification")
		return
	}

	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		notifyCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.notifyTimeout)
		defer cancel()

		if err := g.notifier.MarkDirty(notifyCtx, []string{path}); err != nil {
			g.logger.WithError(err).WithField("path", path).Debug("Dirty notification failed")
		}
	}()
}

// Wait blocks until every notification started by After has finished.
func (g *Gate) Wait() {
	g.pending.Wait()
}

// PathFromArgs returns the file path argument of a tool invocation,
// preferring filePath over path.
func PathFromArgs(args map[string]interface{}) string {
	for _, key := range []string{"filePath", "path"} {
		if p, ok := args[key].(string); ok && p != "" {
			return p
		}
	}
	return ""
}

// deliveryAgent returns the subagent type inv spawns when it is a delivery
// agent, else "".
func (g *Gate) deliveryAgent(inv Invocation) string {
	if !g.delegation[normalizeTool(inv.Tool)] {
		return ""
	}
	agent, _ := inv.Args["subagent_type"].(string)
	lower := strings.ToLower(agent)
	for _, prefix := range g.deliveryAgents {
		if prefix != "" && strings.HasPrefix(lower, strings.ToLower(prefix)) {
			return agent
		}
	}
	return ""
}

func (g *Gate) ignored(path string) bool {
	if g.ignore == nil {
		return false
	}

	rel := path
	if filepath.IsAbs(path) && g.root != "" {
		r, err := filepath.Rel(g.root, path)
		if err != nil || strings.HasPrefix(r, "..") {
			return false
		}
		rel = r
	}

	matched, err := g.ignore.MatchesOrParentMatches(filepath.ToSlash(rel))
	if err != nil {
		g.logger.WithError(err).WithField("path", path).Debug("Ignore pattern match failed")
		return false
	}
	return matched
}

func normalizeTool(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, item := range items {
		set[strings.ToLower(item)] = true
	}
	return set
}
