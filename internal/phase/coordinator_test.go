package phase

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/events"
)

// stubStatuses is a fixed ledger view: ids present in met are satisfied.
type stubStatuses struct {
	met map[string]bool
}

func (s *stubStatuses) Unmet(ids []string) []string {
	var unmet []string
	for _, id := range ids {
		if !s.met[id] {
			unmet = append(unmet, id)
		}
	}
	return unmet
}

func testPolicy() *Policy {
	return NewPolicy(
		map[Phase][]string{
			CoreFacts:     {"core_facts.a", "core_facts.b", "core_facts.c"},
			DeepDive:      {"deep_dive.topics"},
			WritingCorpus: {"writing_corpus.samples"},
			Done:          {"done.confirmation"},
		},
		map[Phase][]string{
			CoreFacts: {"record_fact", "next_phase"},
			DeepDive:  {"record_fact", "dispatch_cards", "next_phase"},
		},
	)
}

func newTestCoordinator(t *testing.T, met map[string]bool) (*Coordinator, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	return NewCoordinator(testPolicy(), &stubStatuses{met: met}, bus), bus
}

func TestAdvanceBlockedListsUnmetSorted(t *testing.T) {
	c, _ := newTestCoordinator(t, map[string]bool{"core_facts.b": true})

	result := c.Advance()
	assert.True(t, result.Blocked)
	assert.Equal(t, CoreFacts, result.Phase)
	assert.Equal(t, []string{"core_facts.a", "core_facts.c"}, result.Unmet)
	assert.Equal(t, CoreFacts, c.Current())
}

func TestAdvanceBlockedIsRepeatable(t *testing.T) {
	c, _ := newTestCoordinator(t, nil)

	first := c.Advance()
	second := c.Advance()
	assert.True(t, first.Blocked)
	assert.Equal(t, first.Unmet, second.Unmet)
}

func TestAdvanceWithMixedCompletedAndSkipped(t *testing.T) {
	// A completed, B skipped, C completed: all three count as met, so the
	// advance succeeds in a single attempt.
	met := map[string]bool{
		"core_facts.a": true,
		"core_facts.b": true, // skipped counts as met in the ledger view
		"core_facts.c": true,
	}
	c, bus := newTestCoordinator(t, met)
	ch := bus.SubscribeKinds(events.KindPhaseChanged)

	result := c.Advance()
	require.False(t, result.Blocked)
	assert.Equal(t, DeepDive, result.Phase)
	assert.Equal(t, DeepDive, c.Current())

	ev := <-ch
	payload, ok := ev.Payload.(events.PhaseChanged)
	require.True(t, ok)
	assert.Equal(t, "core_facts", payload.From)
	assert.Equal(t, "deep_dive", payload.To)

	// Exactly one phase-changed event for one transition.
	select {
	case extra := <-ch:
		t.Fatalf("unexpected second event: %+v", extra)
	default:
	}
}

func TestAdvanceThroughAllPhases(t *testing.T) {
	met := map[string]bool{
		"core_facts.a": true, "core_facts.b": true, "core_facts.c": true,
		"deep_dive.topics":       true,
		"writing_corpus.samples": true,
		"done.confirmation":      true,
	}
	c, _ := newTestCoordinator(t, met)

	want := []Phase{DeepDive, WritingCorpus, Done, Completed}
	for _, expected := range want {
		result := c.Advance()
		require.False(t, result.Blocked)
		assert.Equal(t, expected, result.Phase)
	}

	// Terminal phase never moves again.
	result := c.Advance()
	assert.False(t, result.Blocked)
	assert.Equal(t, Completed, result.Phase)
}

func TestRestoreDoesNotPublish(t *testing.T) {
	c, bus := newTestCoordinator(t, nil)
	ch := bus.SubscribeKinds(events.KindPhaseChanged)

	c.Restore(WritingCorpus)
	assert.Equal(t, WritingCorpus, c.Current())

	select {
	case <-ch:
		t.Fatal("restore must not publish phase events")
	default:
	}
}

func TestSetPolicyAppliesOnNextAdvance(t *testing.T) {
	c, _ := newTestCoordinator(t, map[string]bool{"core_facts.a": true})

	require.True(t, c.Advance().Blocked)

	// Relax the gate: only core_facts.a is required now.
	c.SetPolicy(NewPolicy(
		map[Phase][]string{CoreFacts: {"core_facts.a"}},
		nil,
	))
	result := c.Advance()
	assert.False(t, result.Blocked)
	assert.Equal(t, DeepDive, result.Phase)
}

func TestProgressProjection(t *testing.T) {
	met := map[string]bool{
		"core_facts.a": true,
		"core_facts.b": true,
		"core_facts.c": true,
		"deep_dive.topics": true,
	}
	c, _ := newTestCoordinator(t, met)
	require.False(t, c.Advance().Blocked)

	p := c.Progress()
	assert.Equal(t, DeepDive, p.Current)
	require.Len(t, p.Milestones, len(All()))

	assert.True(t, p.Milestones[0].Satisfied)
	assert.Equal(t, 3, p.Milestones[0].Done)
	assert.True(t, p.Milestones[1].Satisfied)
	assert.False(t, p.Milestones[2].Satisfied)

	// 4 of 6 required objectives met.
	assert.InDelta(t, 4.0/6.0, p.Fraction, 1e-9)
}

func TestProgressRecomputesFromLiveState(t *testing.T) {
	statuses := &stubStatuses{met: map[string]bool{}}
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	c := NewCoordinator(testPolicy(), statuses, bus)

	before := c.Progress()
	assert.Equal(t, 0, before.Milestones[0].Done)

	statuses.met["core_facts.a"] = true
	after := c.Progress()
	assert.Equal(t, 1, after.Milestones[0].Done)
}

func TestPhaseParseRoundTrip(t *testing.T) {
	for _, p := range append(All(), Completed) {
		parsed, err := Parse(p.String())
		require.NoError(t, err)
		assert.Equal(t, p, parsed)
	}

	_, err := Parse("warmup")
	assert.Error(t, err)
}
