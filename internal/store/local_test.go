package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/artifact"
	"parley/internal/ledger"
	"parley/internal/ops"
	"parley/internal/phase"
)

func openTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "parley.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleSnapshot() SessionSnapshot {
	ingested := time.Now().Add(-time.Hour).Truncate(time.Second)
	return SessionSnapshot{
		SessionID: "sess-1",
		Phase:     phase.DeepDive,
		Objectives: []ledger.Objective{
			{ID: "core_facts.identity", Label: "Identity", Phase: phase.CoreFacts, Status: ledger.StatusCompleted},
			{ID: "deep_dive.topics", Label: "Topics", Phase: phase.DeepDive, Status: ledger.StatusInProgress},
		},
		Artifacts: []artifact.Artifact{
			{
				ID: "art-1", SessionID: "sess-1", ContentHash: "abc123",
				SourceType: artifact.SourceUpload, Filename: "letters.txt",
				RawText: "Dear friend", Summary: "A letter", SummaryState: artifact.SummaryReady,
				SizeBytes: 11, IngestedAt: ingested,
			},
			{
				ID: "art-archived", SessionID: "", ContentHash: "def456",
				SourceType: artifact.SourcePaste, Filename: "old.txt",
				RawText: "archived text", SummaryState: artifact.SummaryNone,
				SizeBytes: 13, IngestedAt: ingested.Add(time.Minute),
			},
		},
		PendingOperations: []ops.Operation{
			{CallID: "c1", Tool: "get_artifact", State: ops.StateRegistered, RegisteredAt: ingested},
		},
		Record: map[string]string{
			"identity.birthplace": "Lisbon",
			"identity.full_name":  "Maria do Carmo",
		},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := openTestStore(t)
	snap := sampleSnapshot()
	require.NoError(t, s.SaveSession(snap))

	loaded, err := s.LoadSession("sess-1")
	require.NoError(t, err)

	ignoreTimes := cmpopts.EquateApproxTime(2 * time.Second)
	if diff := cmp.Diff(&snap, loaded, ignoreTimes); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestSaveIsIdempotentReplace(t *testing.T) {
	s := openTestStore(t)
	snap := sampleSnapshot()
	require.NoError(t, s.SaveSession(snap))

	// Second save with changed state replaces, never accumulates.
	snap.Phase = phase.WritingCorpus
	snap.Objectives[1].Status = ledger.StatusCompleted
	snap.Artifacts[0].Summary = "revised summary"
	snap.PendingOperations = nil
	snap.Record["identity.birthplace"] = "Porto"
	require.NoError(t, s.SaveSession(snap))

	loaded, err := s.LoadSession("sess-1")
	require.NoError(t, err)
	assert.Equal(t, phase.WritingCorpus, loaded.Phase)
	require.Len(t, loaded.Objectives, 2)
	assert.Equal(t, ledger.StatusCompleted, loaded.Objectives[1].Status)
	require.Len(t, loaded.Artifacts, 2)
	assert.Equal(t, "revised summary", loaded.Artifacts[0].Summary)
	assert.Empty(t, loaded.PendingOperations)
	assert.Equal(t, "Porto", loaded.Record["identity.birthplace"])
}

func TestLoadUnknownSession(t *testing.T) {
	s := openTestStore(t)

	_, err := s.LoadSession("ghost")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestArchivedArtifactsSharedAcrossSessions(t *testing.T) {
	s := openTestStore(t)
	snap := sampleSnapshot()
	require.NoError(t, s.SaveSession(snap))

	other := SessionSnapshot{SessionID: "sess-2", Phase: phase.CoreFacts}
	require.NoError(t, s.SaveSession(other))

	loaded, err := s.LoadSession("sess-2")
	require.NoError(t, err)
	require.Len(t, loaded.Artifacts, 1)
	assert.Equal(t, "art-archived", loaded.Artifacts[0].ID)
}

func TestListSessionsMostRecentFirst(t *testing.T) {
	s := openTestStore(t)
	require.NoError(t, s.SaveSession(SessionSnapshot{SessionID: "older", Phase: phase.CoreFacts}))
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, s.SaveSession(SessionSnapshot{SessionID: "newer", Phase: phase.CoreFacts}))

	ids, err := s.ListSessions()
	require.NoError(t, err)
	assert.Equal(t, []string{"newer", "older"}, ids)
}

func TestOpenInMemory(t *testing.T) {
	s, err := Open("")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveSession(SessionSnapshot{SessionID: "mem", Phase: phase.CoreFacts}))
	loaded, err := s.LoadSession("mem")
	require.NoError(t, err)
	assert.Equal(t, phase.CoreFacts, loaded.Phase)
}
