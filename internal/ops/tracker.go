// Package ops tracks the lifecycle of every in-flight tool invocation so an
// interrupted conversation can resynchronize by replaying known outputs
// instead of re-invoking side-effecting tools.
package ops

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"parley/internal/logging"
)

// State is the lifecycle state of one tracked operation.
type State string

const (
	StateRegistered State = "registered"
	StateCompleted  State = "completed"
	StateCancelled  State = "cancelled"
	StateFailed     State = "failed"
)

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s != StateRegistered
}

// ErrDuplicateOperation is returned when a live callId is registered twice.
// Unlike late completions, this is a programming error, not a race.
var ErrDuplicateOperation = errors.New("operation already registered")

// Operation is one tracked tool invocation. CallID is opaque and
// caller-supplied. Once terminal, the operation is immutable until cleanup.
type Operation struct {
	CallID       string
	Tool         string
	State        State
	Output       string
	RegisteredAt time.Time
	FinishedAt   time.Time
}

// Tracker records operations by callId. Mutations on unknown ids are
// logged no-ops: a late completion for an operation that was already
// cleaned up is an expected race, not a bug.
type Tracker struct {
	mu  sync.RWMutex
	ops map[string]*Operation
}

// NewTracker creates an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{ops: make(map[string]*Operation)}
}

// Register records a new operation. A duplicate callId is a hard error.
func (t *Tracker) Register(callID, tool string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, exists := t.ops[callID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOperation, callID)
	}
	t.ops[callID] = &Operation{
		CallID:       callID,
		Tool:         tool,
		State:        StateRegistered,
		RegisteredAt: time.Now(),
	}

	logging.OpsDebug("registered operation %s (%s)", callID, tool)
	return nil
}

// Complete marks an operation completed with its output.
func (t *Tracker) Complete(callID, output string) {
	t.finish(callID, StateCompleted, output)
}

// Cancel marks an operation cancelled.
func (t *Tracker) Cancel(callID, reason string) {
	t.finish(callID, StateCancelled, reason)
}

// Fail marks an operation failed.
func (t *Tracker) Fail(callID string, err error) {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	t.finish(callID, StateFailed, msg)
}

// finish applies a terminal transition. Unknown or already-terminal ids
// are warn-level no-ops.
func (t *Tracker) finish(callID string, state State, output string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	op, ok := t.ops[callID]
	if !ok {
		logging.Get(logging.CategoryOps).Warnf("ignoring %s for unknown operation %s", state, callID)
		return
	}
	if op.State.Terminal() {
		logging.Get(logging.CategoryOps).Warnf("ignoring %s for terminal operation %s (state=%s)", state, callID, op.State)
		return
	}

	op.State = state
	op.Output = output
	op.FinishedAt = time.Now()
	logging.OpsDebug("operation %s -> %s", callID, state)
}

// Result returns the output of a terminal operation.
func (t *Tracker) Result(callID string) (string, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	op, ok := t.ops[callID]
	if !ok || !op.State.Terminal() {
		return "", false
	}
	return op.Output, true
}

// IsTerminal reports whether the operation reached a final state.
func (t *Tracker) IsTerminal(callID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	op, ok := t.ops[callID]
	return ok && op.State.Terminal()
}

// Get returns a snapshot of one operation.
func (t *Tracker) Get(callID string) (Operation, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	op, ok := t.ops[callID]
	if !ok {
		return Operation{}, false
	}
	return *op, true
}

// CancelAll cancels every non-terminal operation. Idempotent; used on
// conversation interruption.
func (t *Tracker) CancelAll(reason string) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cancelled := 0
	for _, op := range t.ops {
		if !op.State.Terminal() {
			op.State = StateCancelled
			op.Output = reason
			op.FinishedAt = time.Now()
			cancelled++
		}
	}

	if cancelled > 0 {
		logging.Ops("cancelled %d pending operations: %s", cancelled, reason)
	}
	return cancelled
}

// Pending returns snapshots of all non-terminal operations, for
// persistence.
func (t *Tracker) Pending() []Operation {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var out []Operation
	for _, op := range t.ops {
		if !op.State.Terminal() {
			out = append(out, *op)
		}
	}
	return out
}

// Restore loads persisted operations. Resume-only.
func (t *Tracker) Restore(operations []Operation) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, op := range operations {
		copied := op
		t.ops[op.CallID] = &copied
	}
}

// Cleanup removes terminal operations and returns how many were dropped.
func (t *Tracker) Cleanup() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, op := range t.ops {
		if op.State.Terminal() {
			delete(t.ops, id)
			removed++
		}
	}

	if removed > 0 {
		logging.OpsDebug("cleaned up %d terminal operations", removed)
	}
	return removed
}
