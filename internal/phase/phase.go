// Package phase holds the interview's ordered phase enum, the per-phase
// policy (required objectives, allowed tools), and the coordinator that
// gates advancement on the objective ledger.
package phase

import "fmt"

// Phase is one stage of the interview. Phases are strictly ordered; the
// coordinator only ever moves forward.
type Phase int

const (
	// CoreFacts collects the foundational biographical record.
	CoreFacts Phase = iota

	// DeepDive expands selected topics with uploaded evidence.
	DeepDive

	// WritingCorpus gathers voice samples for style matching.
	WritingCorpus

	// Done wraps up the interview with the user.
	Done

	// Completed is the synthetic terminal state after Done.
	Completed
)

var phaseNames = map[Phase]string{
	CoreFacts:     "core_facts",
	DeepDive:      "deep_dive",
	WritingCorpus: "writing_corpus",
	Done:          "done",
	Completed:     "completed",
}

// String returns the stable identifier used in policy files and events.
func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// Next returns the following phase and whether one exists.
func (p Phase) Next() (Phase, bool) {
	if p >= Completed {
		return Completed, false
	}
	return p + 1, true
}

// Terminal reports whether the phase has no successor.
func (p Phase) Terminal() bool {
	return p == Completed
}

// Parse resolves a phase identifier back to its enum value.
func Parse(name string) (Phase, error) {
	for p, n := range phaseNames {
		if n == name {
			return p, nil
		}
	}
	return 0, fmt.Errorf("unknown phase: %q", name)
}

// All returns the ordered interview phases, excluding the synthetic
// terminal state.
func All() []Phase {
	return []Phase{CoreFacts, DeepDive, WritingCorpus, Done}
}
