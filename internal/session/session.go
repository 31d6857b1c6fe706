// Package session wires the engine components into one interview session
// and owns its durable lifecycle: construction, resume, save, shutdown.
package session

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"parley/internal/artifact"
	"parley/internal/config"
	"parley/internal/dispatch"
	"parley/internal/events"
	"parley/internal/ledger"
	"parley/internal/llm"
	"parley/internal/logging"
	"parley/internal/ops"
	"parley/internal/orchestrator"
	"parley/internal/phase"
	"parley/internal/store"
	"parley/internal/tools"
)

// Session is one interview run with all engine components wired together.
type Session struct {
	ID string

	Bus         *events.Bus
	Ledger      *ledger.Ledger
	Coordinator *phase.Coordinator
	Artifacts   *artifact.Store
	Tracker     *ops.Tracker
	Gate        *tools.Gate
	Dispatcher  *dispatch.Dispatcher
	Orch        *orchestrator.Orchestrator

	store  *store.LocalStore
	cancel context.CancelFunc
}

// New creates a fresh session and registers the policy's objectives.
func New(cfg *config.Config, client llm.Client, st *store.LocalStore) (*Session, error) {
	return build(cfg, client, st, uuid.NewString(), nil)
}

// Resume rebuilds a session from its persisted snapshot.
func Resume(cfg *config.Config, client llm.Client, st *store.LocalStore, sessionID string) (*Session, error) {
	snap, err := st.LoadSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("resume session: %w", err)
	}
	return build(cfg, client, st, sessionID, snap)
}

// build wires components for a new or resumed session.
func build(cfg *config.Config, client llm.Client, st *store.LocalStore, sessionID string, snap *store.SessionSnapshot) (*Session, error) {
	policyFile := config.DefaultPolicyFile()
	if cfg.Policy.Path != "" {
		var err error
		policyFile, err = config.LoadPolicyFile(cfg.Policy.Path)
		if err != nil {
			return nil, err
		}
	}
	policy, err := policyFile.PhasePolicyTable()
	if err != nil {
		return nil, err
	}

	bus := events.NewBus()
	objectives := ledger.New(bus)
	coordinator := phase.NewCoordinator(policy, objectives, bus)
	gate := tools.NewGate(policy, policyFile.WaitingTable(), policyFile.EscapeTools)

	summarizer := NewLLMSummarizer(client)
	artifacts := artifact.NewStore(bus, summarizer)
	tracker := ops.NewTracker()

	lookup := func(id string) (string, error) {
		a, err := artifacts.Get(id)
		if err != nil {
			return "", err
		}
		return a.RawText, nil
	}
	dispatcher := dispatch.NewDispatcher(client, lookup, bus)

	orch := orchestrator.New(
		orchestrator.Config{
			SessionID:           sessionID,
			DispatchConcurrency: cfg.Dispatch.MaxConcurrency,
			RequireApproval:     cfg.Dispatch.RequireApproval,
		},
		client, gate, tracker, objectives, coordinator, artifacts, dispatcher, bus,
	)

	s := &Session{
		ID:          sessionID,
		Bus:         bus,
		Ledger:      objectives,
		Coordinator: coordinator,
		Artifacts:   artifacts,
		Tracker:     tracker,
		Gate:        gate,
		Dispatcher:  dispatcher,
		Orch:        orch,
		store:       st,
	}
	orch.SetPersist(s.Save)

	if snap != nil {
		if err := s.restore(snap); err != nil {
			return nil, err
		}
	} else if err := s.registerObjectives(policyFile); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	artifacts.Start(ctx)
	dispatcher.Start()

	if cfg.Policy.HotReload && cfg.Policy.Path != "" {
		go s.watchPolicy(ctx, cfg.Policy.Path)
	}

	logging.Session("session %s ready (phase=%s)", sessionID, coordinator.Current())
	return s, nil
}

// registerObjectives creates every objective the policy declares,
// required and structural alike.
func (s *Session) registerObjectives(pf *config.PolicyFile) error {
	for _, pp := range pf.Phases {
		ph, err := phase.Parse(pp.ID)
		if err != nil {
			return err
		}
		for _, obj := range pp.Objectives {
			if err := s.Ledger.Register(obj.ID, obj.Label, ph); err != nil {
				return err
			}
		}
	}
	return nil
}

// restore loads persisted state into the wired components.
func (s *Session) restore(snap *store.SessionSnapshot) error {
	if err := s.Ledger.Restore(snap.Objectives); err != nil {
		return err
	}
	s.Artifacts.Restore(snap.Artifacts)
	s.Tracker.Restore(snap.PendingOperations)
	// Operations interrupted by the restart cannot complete anymore. Cancel
	// them so a model replaying the original callId gets the cancellation
	// replayed as the result instead of a duplicate-registration abort.
	if n := s.Tracker.CancelAll("interrupted by restart; re-issue if still needed"); n > 0 {
		logging.Session("cancelled %d operations interrupted by restart", n)
	}
	s.Coordinator.Restore(snap.Phase)
	s.Orch.RestoreRecord(snap.Record)
	return nil
}

// watchPolicy hot-reloads the gate and coordinator policy on file change.
func (s *Session) watchPolicy(ctx context.Context, path string) {
	err := config.WatchPolicy(ctx, path, func(pf *config.PolicyFile) {
		policy, err := pf.PhasePolicyTable()
		if err != nil {
			logging.Get(logging.CategoryConfig).Warnf("policy reload rejected: %v", err)
			return
		}
		s.Gate.Reload(policy, pf.WaitingTable(), pf.EscapeTools)
		s.Coordinator.SetPolicy(policy)
	})
	if err != nil && ctx.Err() == nil {
		logging.Get(logging.CategoryConfig).Warnf("policy watcher stopped: %v", err)
	}
}

// Save durably persists the session snapshot. Called by the orchestrator
// before any user-visible error and at turn boundaries.
func (s *Session) Save() error {
	return s.store.SaveSession(store.SessionSnapshot{
		SessionID:         s.ID,
		Phase:             s.Coordinator.Current(),
		Objectives:        s.Ledger.All(),
		Artifacts:         s.Artifacts.All(),
		PendingOperations: s.Tracker.Pending(),
		Record:            s.Orch.Record(),
	})
}

// Close releases background workers and the event bus. The store is owned
// by the caller and stays open.
func (s *Session) Close() {
	if s.cancel != nil {
		s.cancel()
	}
	s.Dispatcher.Close()
	s.Artifacts.Close()
	s.Bus.Close()
	logging.Session("session %s closed", s.ID)
}
