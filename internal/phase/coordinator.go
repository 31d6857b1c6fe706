package phase

import (
	"sort"
	"sync"

	"parley/internal/events"
	"parley/internal/logging"
)

// StatusSource is the ledger view the coordinator needs: which of a set of
// objective ids are not yet completed or skipped. Unregistered ids count as
// unmet.
type StatusSource interface {
	Unmet(ids []string) []string
}

// AdvanceResult reports the outcome of an advance attempt. Blocked is a
// legitimate steady state, not an error: the caller is told which
// objectives still gate the transition.
type AdvanceResult struct {
	Phase   Phase
	Blocked bool
	Unmet   []string
}

// Coordinator is the top-level phase state machine. It never advances on
// its own; the primary orchestrator invokes Advance explicitly (via the
// next_phase tool) so transitions stay auditable.
type Coordinator struct {
	mu       sync.Mutex
	current  Phase
	policy   *Policy
	statuses StatusSource
	bus      *events.Bus
}

// NewCoordinator creates a coordinator starting at the first phase.
func NewCoordinator(policy *Policy, statuses StatusSource, bus *events.Bus) *Coordinator {
	return &Coordinator{
		current:  CoreFacts,
		policy:   policy,
		statuses: statuses,
		bus:      bus,
	}
}

// Current returns the active phase.
func (c *Coordinator) Current() Phase {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// Restore sets the active phase without publishing events. Resume-only.
func (c *Coordinator) Restore(p Phase) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = p
}

// SetPolicy swaps the policy, used by config hot reload. The current phase
// is unchanged; the new policy applies from the next Advance.
func (c *Coordinator) SetPolicy(policy *Policy) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.policy = policy
}

// Advance attempts to move to the next phase. If any required objective of
// the current phase is neither completed nor skipped, the result is Blocked
// with the unmet ids and the phase does not change.
func (c *Coordinator) Advance() AdvanceResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current.Terminal() {
		return AdvanceResult{Phase: c.current}
	}

	unmet := c.statuses.Unmet(c.policy.RequiredObjectives(c.current))
	if len(unmet) > 0 {
		sort.Strings(unmet)
		logging.Phase("advance blocked at %s: %d unmet objectives", c.current, len(unmet))
		return AdvanceResult{Phase: c.current, Blocked: true, Unmet: unmet}
	}

	next, _ := c.current.Next()
	from := c.current
	c.current = next

	logging.Phase("advanced %s -> %s", from, next)
	c.bus.Publish(events.KindPhaseChanged, events.PhaseChanged{
		From: from.String(),
		To:   next.String(),
	})

	return AdvanceResult{Phase: next}
}

// Milestone is one entry in the wizard progress projection.
type Milestone struct {
	Phase     Phase
	Total     int
	Done      int
	Satisfied bool
}

// Progress is a pure projection of interview completion. It is recomputed
// from live ledger state on every read and must never be cached as
// independently mutable state.
type Progress struct {
	Current    Phase
	Milestones []Milestone
	Fraction   float64
}

// Progress computes the wizard progress projection.
func (c *Coordinator) Progress() Progress {
	c.mu.Lock()
	current := c.current
	policy := c.policy
	c.mu.Unlock()

	var milestones []Milestone
	total, done := 0, 0
	for _, ph := range All() {
		required := policy.RequiredObjectives(ph)
		unmet := c.statuses.Unmet(required)
		m := Milestone{
			Phase:     ph,
			Total:     len(required),
			Done:      len(required) - len(unmet),
			Satisfied: len(unmet) == 0,
		}
		milestones = append(milestones, m)
		total += m.Total
		done += m.Done
	}

	p := Progress{Current: current, Milestones: milestones}
	if total > 0 {
		p.Fraction = float64(done) / float64(total)
	}
	return p
}
