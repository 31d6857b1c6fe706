package phase

// Policy maps each phase to the objectives that must be completed or
// skipped before advancing past it, and to the tools the primary agent may
// invoke while it is current.
type Policy struct {
	required map[Phase][]string
	allowed  map[Phase][]string
}

// NewPolicy builds a policy from explicit per-phase sets. Both maps are
// copied; later mutation of the arguments does not affect the policy.
func NewPolicy(required map[Phase][]string, allowed map[Phase][]string) *Policy {
	p := &Policy{
		required: make(map[Phase][]string, len(required)),
		allowed:  make(map[Phase][]string, len(allowed)),
	}
	for ph, ids := range required {
		p.required[ph] = append([]string(nil), ids...)
	}
	for ph, names := range allowed {
		p.allowed[ph] = append([]string(nil), names...)
	}
	return p
}

// RequiredObjectives returns the objective ids gating the given phase.
func (p *Policy) RequiredObjectives(ph Phase) []string {
	return append([]string(nil), p.required[ph]...)
}

// AllowedTools returns the default tool set for the given phase.
func (p *Policy) AllowedTools(ph Phase) []string {
	return append([]string(nil), p.allowed[ph]...)
}

// DefaultPolicy returns the built-in interview policy. A deployment
// normally overrides this from the policy YAML file.
func DefaultPolicy() *Policy {
	return NewPolicy(
		map[Phase][]string{
			CoreFacts: {
				"core_facts.identity",
				"core_facts.timeline",
				"core_facts.relationships",
			},
			DeepDive: {
				"deep_dive.topics",
				"deep_dive.evidence",
			},
			WritingCorpus: {
				"writing_corpus.samples",
			},
			Done: {
				"done.confirmation",
			},
		},
		map[Phase][]string{
			CoreFacts: {
				"record_fact", "update_record", "set_objective_status",
				"list_artifacts", "get_artifact", "request_upload",
				"next_phase", "cancel_operation",
			},
			DeepDive: {
				"record_fact", "update_record", "set_objective_status",
				"list_artifacts", "get_artifact", "request_upload",
				"dispatch_cards", "next_phase", "cancel_operation",
			},
			WritingCorpus: {
				"record_fact", "update_record", "set_objective_status",
				"list_artifacts", "get_artifact", "request_upload",
				"next_phase", "cancel_operation",
			},
			Done: {
				"list_artifacts", "set_objective_status", "next_phase",
				"cancel_operation",
			},
		},
	)
}
