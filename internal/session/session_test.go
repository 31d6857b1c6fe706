package session

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"parley/internal/artifact"
	"parley/internal/config"
	"parley/internal/ledger"
	"parley/internal/llm"
	"parley/internal/ops"
	"parley/internal/phase"
	"parley/internal/store"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Store.DatabasePath = filepath.Join(t.TempDir(), "parley.db")
	return cfg
}

func openStore(t *testing.T, cfg *config.Config) *store.LocalStore {
	t.Helper()
	st, err := store.Open(cfg.Store.DatabasePath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func TestNewRegistersPolicyObjectives(t *testing.T) {
	cfg := testConfig(t)
	st := openStore(t, cfg)

	sess, err := New(cfg, llm.NewScriptedClient(), st)
	require.NoError(t, err)
	defer sess.Close()

	assert.Equal(t, phase.CoreFacts, sess.Coordinator.Current())

	status, ok := sess.Ledger.Status("core_facts.identity")
	require.True(t, ok)
	assert.Equal(t, ledger.StatusNotStarted, status)

	// Every objective the default policy declares is registered.
	pf := config.DefaultPolicyFile()
	count := 0
	for _, pp := range pf.Phases {
		count += len(pp.Objectives)
	}
	assert.Len(t, sess.Ledger.All(), count)
}

func TestSaveAndResumeRoundTrip(t *testing.T) {
	cfg := testConfig(t)
	st := openStore(t, cfg)

	sess, err := New(cfg, llm.NewScriptedClient(), st)
	require.NoError(t, err)
	sessionID := sess.ID

	_, err = sess.Ledger.SetStatus("core_facts.identity", ledger.StatusCompleted)
	require.NoError(t, err)
	_, _, err = sess.Artifacts.Add(sessionID, artifact.SourceUpload, "letters.txt", []byte("Dear friend"), "")
	require.NoError(t, err)
	require.NoError(t, sess.Save())
	sess.Close()

	resumed, err := Resume(cfg, llm.NewScriptedClient(), st, sessionID)
	require.NoError(t, err)
	defer resumed.Close()

	status, ok := resumed.Ledger.Status("core_facts.identity")
	require.True(t, ok)
	assert.Equal(t, ledger.StatusCompleted, status)

	listings := resumed.Artifacts.List(sessionID)
	require.Len(t, listings, 1)
	assert.Equal(t, "letters.txt", listings[0].Filename)
}

func TestResumeRestoresPhase(t *testing.T) {
	cfg := testConfig(t)
	st := openStore(t, cfg)

	sess, err := New(cfg, llm.NewScriptedClient(), st)
	require.NoError(t, err)
	sessionID := sess.ID

	sess.Coordinator.Restore(phase.DeepDive)
	require.NoError(t, sess.Save())
	sess.Close()

	resumed, err := Resume(cfg, llm.NewScriptedClient(), st, sessionID)
	require.NoError(t, err)
	defer resumed.Close()

	assert.Equal(t, phase.DeepDive, resumed.Coordinator.Current())
}

func TestResumeCancelsInterruptedOperations(t *testing.T) {
	cfg := testConfig(t)
	st := openStore(t, cfg)

	sess, err := New(cfg, llm.NewScriptedClient(), st)
	require.NoError(t, err)
	sessionID := sess.ID

	// An operation registered but never finished before the process died.
	require.NoError(t, sess.Tracker.Register("call-1", "record_fact"))
	require.NoError(t, sess.Save())
	sess.Close()

	client := llm.NewScriptedClient()
	client.Enqueue(
		&llm.Completion{ToolCalls: []llm.ToolCall{{
			CallID: "call-1",
			Name:   "record_fact",
			Args:   map[string]any{"key": "identity.birthplace", "value": "Lisbon"},
		}}},
		&llm.Completion{Text: "noted"},
	)
	resumed, err := Resume(cfg, client, st, sessionID)
	require.NoError(t, err)
	defer resumed.Close()

	op, ok := resumed.Tracker.Get("call-1")
	require.True(t, ok)
	assert.Equal(t, ops.StateCancelled, op.State)

	// The model replaying the interrupted callId resynchronizes: the
	// cancellation is handed back as the tool result, the turn completes.
	result, err := resumed.Orch.NextTurn(context.Background(), "continuing")
	require.NoError(t, err)
	assert.Equal(t, "noted", result.Text)

	requests := client.Requests()
	require.Len(t, requests, 2)
	toolTurn := requests[1].Turns[len(requests[1].Turns)-1]
	assert.Equal(t, "call-1", toolTurn.ToolCallID)
	assert.Contains(t, toolTurn.Content, "interrupted by restart")
}

func TestResumeRestoresRecordedFacts(t *testing.T) {
	cfg := testConfig(t)
	st := openStore(t, cfg)

	client := llm.NewScriptedClient()
	client.Enqueue(
		&llm.Completion{ToolCalls: []llm.ToolCall{{
			CallID: "c1",
			Name:   "record_fact",
			Args:   map[string]any{"key": "identity.birthplace", "value": "Lisbon"},
		}}},
		&llm.Completion{Text: "noted"},
	)

	sess, err := New(cfg, client, st)
	require.NoError(t, err)
	sessionID := sess.ID

	_, err = sess.Orch.NextTurn(context.Background(), "I was born in Lisbon")
	require.NoError(t, err)
	sess.Close()

	resumed, err := Resume(cfg, llm.NewScriptedClient(), st, sessionID)
	require.NoError(t, err)
	defer resumed.Close()

	assert.Equal(t, "Lisbon", resumed.Orch.Record()["identity.birthplace"])
}

func TestResumeUnknownSession(t *testing.T) {
	cfg := testConfig(t)
	st := openStore(t, cfg)

	_, err := Resume(cfg, llm.NewScriptedClient(), st, "ghost")
	assert.ErrorIs(t, err, store.ErrSessionNotFound)
}

func TestLLMSummarizer(t *testing.T) {
	client := llm.NewScriptedClient()
	client.Enqueue(&llm.Completion{Text: "  A letter from Lisbon.  "})
	s := NewLLMSummarizer(client)

	summary, err := s.Summarize(context.Background(), artifact.Artifact{
		ID:       "art-1",
		Filename: "letters.txt",
		RawText:  "Dear friend, Lisbon treats me well.",
	})
	require.NoError(t, err)
	assert.Equal(t, "A letter from Lisbon.", summary)

	requests := client.Requests()
	require.Len(t, requests, 1)
	assert.Contains(t, requests[0].Turns[0].Content, "letters.txt")
	assert.Contains(t, requests[0].Turns[0].Content, "Lisbon treats me well")
}

func TestLLMSummarizerRejectsEmptyAnswer(t *testing.T) {
	client := llm.NewScriptedClient()
	client.Enqueue(&llm.Completion{Text: "   "})
	s := NewLLMSummarizer(client)

	_, err := s.Summarize(context.Background(), artifact.Artifact{ID: "art-1"})
	assert.ErrorContains(t, err, "no text")
}
