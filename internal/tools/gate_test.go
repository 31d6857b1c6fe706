package tools

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/phase"
)

func gateFixture() *Gate {
	policy := phase.NewPolicy(
		map[phase.Phase][]string{},
		map[phase.Phase][]string{
			phase.CoreFacts: {"record_fact", "set_objective_status", "request_upload", "next_phase"},
			phase.DeepDive:  {"record_fact", "dispatch_cards", "next_phase"},
		},
	)
	waiting := map[WaitingState][]string{
		WaitingUpload:   {"cancel_operation"},
		WaitingApproval: {"cancel_operation"},
	}
	escape := []string{"record_fact", "update_record"}
	return NewGate(policy, waiting, escape)
}

func TestGateAllowsPhaseToolset(t *testing.T) {
	g := gateFixture()

	assert.NoError(t, g.Check(phase.CoreFacts, WaitingNone, "record_fact"))
	assert.NoError(t, g.Check(phase.DeepDive, WaitingNone, "dispatch_cards"))
}

func TestGateRejectsToolOutsidePhase(t *testing.T) {
	g := gateFixture()

	err := g.Check(phase.CoreFacts, WaitingNone, "dispatch_cards")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrToolNotAllowed))

	var te *ToolError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "tool_not_allowed", te.Kind)
	assert.Contains(t, te.Message, "core_facts")
}

func TestWaitingStateOverridesPhaseDefault(t *testing.T) {
	g := gateFixture()

	// request_upload is in the phase default but not on the waiting
	// whitelist or escape list, so it is rejected while waiting.
	err := g.Check(phase.CoreFacts, WaitingUpload, "request_upload")
	require.Error(t, err)

	var te *ToolError
	require.True(t, errors.As(err, &te))
	assert.Contains(t, te.Message, "awaiting_upload")

	assert.NoError(t, g.Check(phase.CoreFacts, WaitingUpload, "cancel_operation"))
	assert.NoError(t, g.Check(phase.CoreFacts, WaitingUpload, "record_fact"))
	assert.NoError(t, g.Check(phase.CoreFacts, WaitingUpload, "update_record"))
}

func TestWaitingAllowanceNeverExceedsWhitelistPlusEscape(t *testing.T) {
	g := gateFixture()
	want := []string{"cancel_operation", "record_fact", "update_record"}

	for _, p := range phase.All() {
		for _, w := range []WaitingState{WaitingUpload, WaitingApproval} {
			assert.Equal(t, want, g.AllowedTools(p, w), "phase=%s waiting=%s", p, w)
		}
	}
}

func TestUnknownWaitingStateAllowsOnlyEscape(t *testing.T) {
	g := gateFixture()

	allowed := g.AllowedTools(phase.CoreFacts, WaitingValidation)
	assert.Equal(t, []string{"record_fact", "update_record"}, allowed)
}

func TestGateReload(t *testing.T) {
	g := gateFixture()
	require.Error(t, g.Check(phase.CoreFacts, WaitingNone, "brand_new_tool"))

	g.Reload(
		phase.NewPolicy(nil, map[phase.Phase][]string{
			phase.CoreFacts: {"brand_new_tool"},
		}),
		nil, nil,
	)

	assert.NoError(t, g.Check(phase.CoreFacts, WaitingNone, "brand_new_tool"))
	assert.Error(t, g.Check(phase.CoreFacts, WaitingNone, "record_fact"))
}

func TestGateReloadCopiesInputs(t *testing.T) {
	waiting := map[WaitingState][]string{WaitingUpload: {"cancel_operation"}}
	escape := []string{"record_fact"}
	g := NewGate(phase.NewPolicy(nil, nil), waiting, escape)

	escape[0] = "mutated"
	waiting[WaitingUpload][0] = "mutated"

	allowed := g.AllowedTools(phase.CoreFacts, WaitingUpload)
	assert.Contains(t, allowed, "record_fact")
	assert.Contains(t, allowed, "cancel_operation")
	assert.NotContains(t, allowed, "mutated")
}
