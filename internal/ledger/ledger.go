// Package ledger implements the hierarchical objective ledger gating phase
// progression. Objective ids are dot-paths ("deep_dive.topics.career"), so
// sub-objectives nest under their parent by naming alone. All status
// mutation goes through SetStatus; no other component writes ledger state.
package ledger

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"parley/internal/events"
	"parley/internal/logging"
	"parley/internal/phase"
)

// Status is the lifecycle state of one objective.
type Status string

const (
	StatusNotStarted Status = "not_started"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusSkipped    Status = "skipped"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusNotStarted, StatusInProgress, StatusCompleted, StatusSkipped:
		return true
	}
	return false
}

// Met reports whether the status satisfies a phase requirement.
func (s Status) Met() bool {
	return s == StatusCompleted || s == StatusSkipped
}

// Ledger errors.
var (
	// ErrUnknownObjective is returned for operations on an unregistered id.
	ErrUnknownObjective = errors.New("unknown objective")

	// ErrDuplicateObjective is returned when registering an existing id.
	ErrDuplicateObjective = errors.New("objective already registered")

	// ErrInvalidStatus is returned for a status outside the closed set.
	ErrInvalidStatus = errors.New("invalid objective status")

	// ErrInvalidObjectiveID is returned when registering a malformed id.
	ErrInvalidObjectiveID = errors.New("invalid objective id")
)

// Objective is one entry in the ledger. Completing a child never implicitly
// completes its parent; the parent needs its own explicit transition.
type Objective struct {
	ID     string
	Label  string
	Phase  phase.Phase
	Status Status
}

// ParentID returns the dot-path parent of an objective id, or "" for a
// top-level objective.
func ParentID(id string) string {
	idx := strings.LastIndex(id, ".")
	if idx < 0 {
		return ""
	}
	return id[:idx]
}

// Ledger is the single writer for objective state. Objectives are created
// at phase-start registration and never deleted within a session.
type Ledger struct {
	mu         sync.RWMutex
	objectives map[string]*Objective
	order      []string
	bus        *events.Bus
}

// New creates an empty ledger publishing to the given bus.
func New(bus *events.Bus) *Ledger {
	return &Ledger{
		objectives: make(map[string]*Objective),
		bus:        bus,
	}
}

// Register adds an objective with StatusNotStarted.
func (l *Ledger) Register(id, label string, ph phase.Phase) error {
	if id == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidObjectiveID)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.objectives[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateObjective, id)
	}

	l.objectives[id] = &Objective{
		ID:     id,
		Label:  label,
		Phase:  ph,
		Status: StatusNotStarted,
	}
	l.order = append(l.order, id)

	logging.LedgerDebug("registered objective %s (phase=%s)", id, ph)
	return nil
}

// SetStatus transitions an objective and returns its previous status.
// On success it publishes an objective-status-changed event.
func (l *Ledger) SetStatus(id string, status Status) (Status, error) {
	if !status.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	l.mu.Lock()
	obj, ok := l.objectives[id]
	if !ok {
		l.mu.Unlock()
		return "", fmt.Errorf("%w: %s", ErrUnknownObjective, id)
	}
	prev := obj.Status
	obj.Status = status
	ph := obj.Phase
	l.mu.Unlock()

	logging.Ledger("objective %s: %s -> %s", id, prev, status)
	l.bus.Publish(events.KindObjectiveStatusChanged, events.ObjectiveStatusChanged{
		ObjectiveID: id,
		Phase:       ph.String(),
		From:        string(prev),
		To:          string(status),
	})

	return prev, nil
}

// Status returns the status of one objective.
func (l *Ledger) Status(id string) (Status, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	obj, ok := l.objectives[id]
	if !ok {
		return "", false
	}
	return obj.Status, true
}

// StatusesForPhase returns a snapshot of id -> status for one phase.
func (l *Ledger) StatusesForPhase(ph phase.Phase) map[string]Status {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]Status)
	for id, obj := range l.objectives {
		if obj.Phase == ph {
			out[id] = obj.Status
		}
	}
	return out
}

// Unmet returns the ids whose status is neither completed nor skipped.
// Unregistered ids are unmet by definition. Implements phase.StatusSource.
func (l *Ledger) Unmet(ids []string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var unmet []string
	for _, id := range ids {
		obj, ok := l.objectives[id]
		if !ok || !obj.Status.Met() {
			unmet = append(unmet, id)
		}
	}
	return unmet
}

// Children returns the direct sub-objective ids of the given id, sorted.
func (l *Ledger) Children(id string) []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var children []string
	for candidate := range l.objectives {
		if ParentID(candidate) == id {
			children = append(children, candidate)
		}
	}
	sort.Strings(children)
	return children
}

// All returns a snapshot of every objective in registration order.
func (l *Ledger) All() []Objective {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]Objective, 0, len(l.order))
	for _, id := range l.order {
		out = append(out, *l.objectives[id])
	}
	return out
}

// Restore loads objectives with their persisted statuses without publishing
// events. Resume-only; fails on duplicates like Register.
func (l *Ledger) Restore(objectives []Objective) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, obj := range objectives {
		if _, exists := l.objectives[obj.ID]; exists {
			return fmt.Errorf("%w: %s", ErrDuplicateObjective, obj.ID)
		}
		if !obj.Status.Valid() {
			return fmt.Errorf("%w: %q on %s", ErrInvalidStatus, obj.Status, obj.ID)
		}
		copied := obj
		l.objectives[obj.ID] = &copied
		l.order = append(l.order, obj.ID)
	}

	logging.Ledger("restored %d objectives", len(objectives))
	return nil
}
