package ledger

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/events"
	"parley/internal/phase"
)

func newTestLedger(t *testing.T) (*Ledger, *events.Bus) {
	t.Helper()
	bus := events.NewBus()
	t.Cleanup(bus.Close)
	return New(bus), bus
}

func TestRegisterAndStatus(t *testing.T) {
	l, _ := newTestLedger(t)

	require.NoError(t, l.Register("core_facts.identity", "Full legal name and aliases", phase.CoreFacts))

	status, ok := l.Status("core_facts.identity")
	require.True(t, ok)
	assert.Equal(t, StatusNotStarted, status)
}

func TestRegisterDuplicateFails(t *testing.T) {
	l, _ := newTestLedger(t)

	require.NoError(t, l.Register("core_facts.identity", "Identity", phase.CoreFacts))
	err := l.Register("core_facts.identity", "Identity again", phase.CoreFacts)
	assert.ErrorIs(t, err, ErrDuplicateObjective)
}

func TestRegisterEmptyIDFails(t *testing.T) {
	l, _ := newTestLedger(t)
	err := l.Register("", "nameless", phase.CoreFacts)
	assert.ErrorIs(t, err, ErrInvalidObjectiveID)
	assert.NotErrorIs(t, err, ErrUnknownObjective)
}

func TestSetStatusTransitionsAndPublishes(t *testing.T) {
	l, bus := newTestLedger(t)
	ch := bus.SubscribeKinds(events.KindObjectiveStatusChanged)

	require.NoError(t, l.Register("core_facts.identity", "Identity", phase.CoreFacts))

	prev, err := l.SetStatus("core_facts.identity", StatusInProgress)
	require.NoError(t, err)
	assert.Equal(t, StatusNotStarted, prev)

	ev := <-ch
	payload, ok := ev.Payload.(events.ObjectiveStatusChanged)
	require.True(t, ok)
	assert.Equal(t, "core_facts.identity", payload.ObjectiveID)
	assert.Equal(t, string(StatusNotStarted), payload.From)
	assert.Equal(t, string(StatusInProgress), payload.To)
}

func TestSetStatusUnknownObjective(t *testing.T) {
	l, _ := newTestLedger(t)

	_, err := l.SetStatus("nope", StatusCompleted)
	assert.ErrorIs(t, err, ErrUnknownObjective)
}

func TestSetStatusInvalidValue(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.Register("core_facts.identity", "Identity", phase.CoreFacts))

	_, err := l.SetStatus("core_facts.identity", Status("finished"))
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSkippedCountsAsMet(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.Register("core_facts.family", "Family", phase.CoreFacts))

	_, err := l.SetStatus("core_facts.family", StatusSkipped)
	require.NoError(t, err)

	unmet := l.Unmet([]string{"core_facts.family"})
	assert.Empty(t, unmet)
}

func TestUnmetTreatsUnregisteredAsUnmet(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.Register("core_facts.identity", "Identity", phase.CoreFacts))
	_, err := l.SetStatus("core_facts.identity", StatusCompleted)
	require.NoError(t, err)

	unmet := l.Unmet([]string{"core_facts.identity", "core_facts.ghost"})
	assert.Equal(t, []string{"core_facts.ghost"}, unmet)
}

func TestChildCompletionDoesNotCompleteParent(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.Register("deep_dive.topics", "Topics", phase.DeepDive))
	require.NoError(t, l.Register("deep_dive.topics.career", "Career", phase.DeepDive))
	require.NoError(t, l.Register("deep_dive.topics.family", "Family", phase.DeepDive))

	_, err := l.SetStatus("deep_dive.topics.career", StatusCompleted)
	require.NoError(t, err)
	_, err = l.SetStatus("deep_dive.topics.family", StatusCompleted)
	require.NoError(t, err)

	status, ok := l.Status("deep_dive.topics")
	require.True(t, ok)
	assert.Equal(t, StatusNotStarted, status)
}

func TestParentID(t *testing.T) {
	assert.Equal(t, "deep_dive.topics", ParentID("deep_dive.topics.career"))
	assert.Equal(t, "deep_dive", ParentID("deep_dive.topics"))
	assert.Equal(t, "", ParentID("deep_dive"))
}

func TestChildren(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.Register("deep_dive.topics", "Topics", phase.DeepDive))
	require.NoError(t, l.Register("deep_dive.topics.family", "Family", phase.DeepDive))
	require.NoError(t, l.Register("deep_dive.topics.career", "Career", phase.DeepDive))
	require.NoError(t, l.Register("deep_dive.other", "Other", phase.DeepDive))

	children := l.Children("deep_dive.topics")
	assert.Equal(t, []string{"deep_dive.topics.career", "deep_dive.topics.family"}, children)
}

func TestStatusesForPhase(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.Register("core_facts.identity", "Identity", phase.CoreFacts))
	require.NoError(t, l.Register("deep_dive.topics", "Topics", phase.DeepDive))

	statuses := l.StatusesForPhase(phase.CoreFacts)
	assert.Len(t, statuses, 1)
	assert.Contains(t, statuses, "core_facts.identity")
}

func TestAllPreservesRegistrationOrder(t *testing.T) {
	l, _ := newTestLedger(t)
	require.NoError(t, l.Register("b.second", "B", phase.CoreFacts))
	require.NoError(t, l.Register("a.first", "A", phase.CoreFacts))

	all := l.All()
	require.Len(t, all, 2)
	assert.Equal(t, "b.second", all[0].ID)
	assert.Equal(t, "a.first", all[1].ID)
}

func TestRestoreLoadsWithoutEvents(t *testing.T) {
	l, bus := newTestLedger(t)
	ch := bus.SubscribeKinds(events.KindObjectiveStatusChanged)

	err := l.Restore([]Objective{
		{ID: "core_facts.identity", Label: "Identity", Phase: phase.CoreFacts, Status: StatusCompleted},
		{ID: "core_facts.family", Label: "Family", Phase: phase.CoreFacts, Status: StatusInProgress},
	})
	require.NoError(t, err)

	select {
	case ev := <-ch:
		t.Fatalf("restore must not publish, got %v", ev.Kind)
	default:
	}

	status, ok := l.Status("core_facts.identity")
	require.True(t, ok)
	assert.Equal(t, StatusCompleted, status)
}

func TestRestoreRejectsInvalidStatus(t *testing.T) {
	l, _ := newTestLedger(t)

	err := l.Restore([]Objective{{ID: "x", Status: Status("bogus"), Phase: phase.CoreFacts}})
	assert.True(t, errors.Is(err, ErrInvalidStatus))
}
