package tools

import (
	"fmt"
	"sort"
	"sync"

	"parley/internal/logging"
	"parley/internal/phase"
)

// WaitingState models the orchestrator being blocked on a specific
// user-facing continuation. While active, it takes precedence over the
// phase's default tool set: only the waiting whitelist plus the escape
// list is allowed.
type WaitingState string

const (
	// WaitingNone means the conversation loop is free to run.
	WaitingNone WaitingState = ""

	// WaitingUpload awaits a requested document upload.
	WaitingUpload WaitingState = "awaiting_upload"

	// WaitingValidation awaits the user validating captured data.
	WaitingValidation WaitingState = "awaiting_validation"

	// WaitingApproval awaits the user approving a sub-agent dispatch.
	WaitingApproval WaitingState = "awaiting_approval"
)

// Gate computes the tool subset the primary agent may invoke for the
// current phase and waiting-state, and rejects everything else.
type Gate struct {
	mu      sync.RWMutex
	policy  *phase.Policy
	waiting map[WaitingState][]string
	escape  []string
}

// NewGate builds a gate from the phase policy, per-waiting-state
// whitelists, and the escape list of tools permitted during any waiting
// state (live record-edit tools that keep the UI card in sync).
func NewGate(policy *phase.Policy, waiting map[WaitingState][]string, escape []string) *Gate {
	g := &Gate{}
	g.Reload(policy, waiting, escape)
	return g
}

// Reload swaps the gate's policy tables. Used by config hot reload.
func (g *Gate) Reload(policy *phase.Policy, waiting map[WaitingState][]string, escape []string) {
	copied := make(map[WaitingState][]string, len(waiting))
	for state, names := range waiting {
		copied[state] = append([]string(nil), names...)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	g.policy = policy
	g.waiting = copied
	g.escape = append([]string(nil), escape...)
	logging.Tools("gate reloaded (%d waiting states, %d escape tools)", len(copied), len(escape))
}

// AllowedTools returns the sorted set of tool names invocable right now.
func (g *Gate) AllowedTools(p phase.Phase, w WaitingState) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	set := make(map[string]bool)
	if w == WaitingNone {
		for _, name := range g.policy.AllowedTools(p) {
			set[name] = true
		}
	} else {
		// Waiting takes precedence over the phase default; only the
		// waiting whitelist and the escape list get through.
		for _, name := range g.waiting[w] {
			set[name] = true
		}
		for _, name := range g.escape {
			set[name] = true
		}
	}

	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Check returns nil if the tool may be invoked, or a structured
// ToolNotAllowed error for the model to self-correct on.
func (g *Gate) Check(p phase.Phase, w WaitingState, name string) error {
	for _, allowed := range g.AllowedTools(p, w) {
		if allowed == name {
			return nil
		}
	}

	logging.Tools("gate rejected %s (phase=%s waiting=%q)", name, p, w)
	message := fmt.Sprintf("%s is not available in phase %s", name, p)
	if w != WaitingNone {
		message = fmt.Sprintf("%s is not available while %s", name, w)
	}
	return &ToolError{Kind: "tool_not_allowed", Message: message, Cause: ErrToolNotAllowed}
}
