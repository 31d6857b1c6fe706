package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"parley/internal/phase"
	"parley/internal/tools"
)

// PolicyFile is the on-disk shape of the phase policy: per phase the
// objectives to register (with which of them gate advancement) and the
// allowed tools, plus waiting-state whitelists and the escape list.
type PolicyFile struct {
	Phases      []PhasePolicy       `yaml:"phases"`
	Waiting     map[string][]string `yaml:"waiting"`
	EscapeTools []string            `yaml:"escape_tools"`
}

// PhasePolicy declares one phase's objectives and tools.
type PhasePolicy struct {
	ID           string            `yaml:"id"`
	Objectives   []ObjectivePolicy `yaml:"objectives"`
	AllowedTools []string          `yaml:"allowed_tools"`
}

// ObjectivePolicy declares one objective. Required defaults to true;
// sub-objectives that merely structure the work set it false.
type ObjectivePolicy struct {
	ID       string `yaml:"id"`
	Label    string `yaml:"label"`
	Required *bool  `yaml:"required"`
}

// IsRequired reports whether the objective gates phase advancement.
func (o ObjectivePolicy) IsRequired() bool {
	return o.Required == nil || *o.Required
}

// LoadPolicyFile parses a policy YAML file.
func LoadPolicyFile(path string) (*PolicyFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy: %w", err)
	}

	var pf PolicyFile
	if err := yaml.Unmarshal(data, &pf); err != nil {
		return nil, fmt.Errorf("parse policy %s: %w", path, err)
	}
	if err := pf.Validate(); err != nil {
		return nil, err
	}
	return &pf, nil
}

// Validate checks phase ids and waiting-state names.
func (pf *PolicyFile) Validate() error {
	for _, pp := range pf.Phases {
		if _, err := phase.Parse(pp.ID); err != nil {
			return fmt.Errorf("policy: %w", err)
		}
	}
	for state := range pf.Waiting {
		switch tools.WaitingState(state) {
		case tools.WaitingUpload, tools.WaitingValidation, tools.WaitingApproval:
		default:
			return fmt.Errorf("policy: unknown waiting state %q", state)
		}
	}
	return nil
}

// PhasePolicyTable converts the file into the in-memory phase policy.
func (pf *PolicyFile) PhasePolicyTable() (*phase.Policy, error) {
	required := make(map[phase.Phase][]string)
	allowed := make(map[phase.Phase][]string)

	for _, pp := range pf.Phases {
		ph, err := phase.Parse(pp.ID)
		if err != nil {
			return nil, err
		}
		for _, obj := range pp.Objectives {
			if obj.IsRequired() {
				required[ph] = append(required[ph], obj.ID)
			}
		}
		allowed[ph] = append([]string(nil), pp.AllowedTools...)
	}

	return phase.NewPolicy(required, allowed), nil
}

// WaitingTable converts the waiting whitelists for the tool gate.
func (pf *PolicyFile) WaitingTable() map[tools.WaitingState][]string {
	out := make(map[tools.WaitingState][]string, len(pf.Waiting))
	for state, names := range pf.Waiting {
		out[tools.WaitingState(state)] = append([]string(nil), names...)
	}
	return out
}

// DefaultPolicyFile mirrors phase.DefaultPolicy with objective labels and
// the built-in waiting rules.
func DefaultPolicyFile() *PolicyFile {
	return &PolicyFile{
		Phases: []PhasePolicy{
			{
				ID: "core_facts",
				Objectives: []ObjectivePolicy{
					{ID: "core_facts.identity", Label: "Identity and background"},
					{ID: "core_facts.timeline", Label: "Life timeline"},
					{ID: "core_facts.relationships", Label: "Key relationships"},
				},
				AllowedTools: []string{
					"record_fact", "update_record", "set_objective_status",
					"list_artifacts", "get_artifact", "request_upload",
					"next_phase", "cancel_operation",
				},
			},
			{
				ID: "deep_dive",
				Objectives: []ObjectivePolicy{
					{ID: "deep_dive.topics", Label: "Deep-dive topics"},
					{ID: "deep_dive.evidence", Label: "Supporting documents"},
				},
				AllowedTools: []string{
					"record_fact", "update_record", "set_objective_status",
					"list_artifacts", "get_artifact", "request_upload",
					"dispatch_cards", "next_phase", "cancel_operation",
				},
			},
			{
				ID: "writing_corpus",
				Objectives: []ObjectivePolicy{
					{ID: "writing_corpus.samples", Label: "Writing samples"},
				},
				AllowedTools: []string{
					"record_fact", "update_record", "set_objective_status",
					"list_artifacts", "get_artifact", "request_upload",
					"next_phase", "cancel_operation",
				},
			},
			{
				ID: "done",
				Objectives: []ObjectivePolicy{
					{ID: "done.confirmation", Label: "Final confirmation"},
				},
				AllowedTools: []string{
					"list_artifacts", "set_objective_status", "next_phase",
					"cancel_operation",
				},
			},
		},
		Waiting: map[string][]string{
			string(tools.WaitingUpload):     {"cancel_operation"},
			string(tools.WaitingValidation): {"cancel_operation"},
			string(tools.WaitingApproval):   {"cancel_operation"},
		},
		// Live record-edit tools keep the UI card in sync while waiting.
		EscapeTools: []string{"record_fact", "update_record"},
	}
}
