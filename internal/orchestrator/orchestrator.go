// Package orchestrator drives the primary interview conversation: it sends
// turns to the model, gates and executes the returned tool calls, and
// pauses on waiting-states until an external continuation event resumes it.
// The loop is single-threaded cooperative; the only true parallelism lives
// behind the sub-agent dispatcher.
package orchestrator

import (
	"context"
	"fmt"

	"parley/internal/artifact"
	"parley/internal/dispatch"
	"parley/internal/events"
	"parley/internal/ledger"
	"parley/internal/llm"
	"parley/internal/logging"
	"parley/internal/ops"
	"parley/internal/phase"
	"parley/internal/tools"
)

const defaultSystemPrompt = `You are conducting a structured biographical interview.
Work through the objectives of the current phase, record what you learn
with the record tools, and only call next_phase when the phase's
objectives are completed or explicitly skipped.`

// maxToolRounds bounds tool-call rounds within one user turn so a
// miscalibrated model cannot loop forever.
const maxToolRounds = 16

// Config holds orchestrator settings.
type Config struct {
	SessionID           string
	System              string
	DispatchConcurrency int
	RequireApproval     bool
}

// TurnResult is the outcome of one user turn: the assistant's visible text
// and whether the loop is now blocked on an external continuation.
type TurnResult struct {
	Text    string
	Waiting tools.WaitingState
}

// Orchestrator wires the engine components behind the conversation loop.
// All mutations to ledger and phase state happen on the caller's single
// logical thread; concurrently-completing sub-agents only ever hand
// results back through Dispatch return values.
type Orchestrator struct {
	cfg         Config
	client      llm.Client
	gate        *tools.Gate
	registry    *tools.Registry
	tracker     *ops.Tracker
	objectives  *ledger.Ledger
	coordinator *phase.Coordinator
	artifacts   *artifact.Store
	dispatcher  *dispatch.Dispatcher
	bus         *events.Bus

	history []llm.Turn
	waiting tools.WaitingState
	record  map[string]string

	pendingDispatch []dispatch.TaskInput
	pendingNotes    []string

	// persist durably saves session state. Installed by the session layer;
	// invoked before any error surfaces to the user so retries never need
	// to re-collect captured data.
	persist func() error
}

// New creates an orchestrator. The tool registry is built here from the
// engine components; the gate decides which subset is visible per turn.
func New(
	cfg Config,
	client llm.Client,
	gate *tools.Gate,
	tracker *ops.Tracker,
	objectives *ledger.Ledger,
	coordinator *phase.Coordinator,
	artifacts *artifact.Store,
	dispatcher *dispatch.Dispatcher,
	bus *events.Bus,
) *Orchestrator {
	if cfg.System == "" {
		cfg.System = defaultSystemPrompt
	}
	if cfg.DispatchConcurrency < 1 {
		cfg.DispatchConcurrency = 1
	}

	o := &Orchestrator{
		cfg:         cfg,
		client:      client,
		gate:        gate,
		tracker:     tracker,
		objectives:  objectives,
		coordinator: coordinator,
		artifacts:   artifacts,
		dispatcher:  dispatcher,
		bus:         bus,
		record:      make(map[string]string),
		persist:     func() error { return nil },
	}
	o.registry = o.buildToolset()
	return o
}

// SetPersist installs the durable-save hook.
func (o *Orchestrator) SetPersist(fn func() error) {
	if fn != nil {
		o.persist = fn
	}
}

// Waiting returns the active waiting-state.
func (o *Orchestrator) Waiting() tools.WaitingState {
	return o.waiting
}

// Record returns a copy of the live interview record.
func (o *Orchestrator) Record() map[string]string {
	out := make(map[string]string, len(o.record))
	for k, v := range o.record {
		out[k] = v
	}
	return out
}

// RestoreRecord loads persisted record entries. Resume-only.
func (o *Orchestrator) RestoreRecord(record map[string]string) {
	for k, v := range record {
		o.record[k] = v
	}
}

// History returns the conversation history.
func (o *Orchestrator) History() []llm.Turn {
	return append([]llm.Turn(nil), o.history...)
}

// NextTurn processes one user turn: it loops completions and gated tool
// executions until the model answers with plain text or the round budget
// runs out.
func (o *Orchestrator) NextTurn(ctx context.Context, userText string) (*TurnResult, error) {
	o.flushNotes()
	if userText != "" {
		o.history = append(o.history, llm.Turn{Role: llm.RoleUser, Content: userText})
	}

	for round := 0; round < maxToolRounds; round++ {
		completion, err := o.client.Complete(ctx, llm.Request{
			System: o.cfg.System,
			Turns:  o.history,
			Tools:  o.allowedSpecs(),
		})
		if err != nil {
			// Captured state is already durable before the user sees the
			// failure; a retry resumes from here.
			if perr := o.persist(); perr != nil {
				logging.Get(logging.CategorySession).Errorf("persist before error surface failed: %v", perr)
			}
			return nil, fmt.Errorf("completion: %w", err)
		}

		o.bus.Publish(events.KindTokenUsage, events.TokenUsage{
			Source:           "primary",
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
		})

		if completion.Text != "" {
			o.history = append(o.history, llm.Turn{Role: llm.RoleAssistant, Content: completion.Text})
		}

		if len(completion.ToolCalls) == 0 {
			if err := o.persist(); err != nil {
				logging.Get(logging.CategorySession).Errorf("persist failed: %v", err)
			}
			return &TurnResult{Text: completion.Text, Waiting: o.waiting}, nil
		}

		for _, call := range completion.ToolCalls {
			output, err := o.executeToolCall(ctx, call)
			if err != nil {
				return nil, err
			}
			o.history = append(o.history, llm.Turn{
				Role:       llm.RoleTool,
				Content:    output,
				ToolCallID: call.CallID,
			})
		}
	}

	if err := o.persist(); err != nil {
		logging.Get(logging.CategorySession).Errorf("persist failed: %v", err)
	}
	return &TurnResult{Text: "", Waiting: o.waiting}, nil
}

// executeToolCall runs one tool call through gate, tracker, and registry.
// Gate refusals and tool failures come back as structured tool-error JSON
// for the model to self-correct on; only a duplicate registration of a
// live callId aborts the turn, because that breaks the tracker invariant.
func (o *Orchestrator) executeToolCall(ctx context.Context, call llm.ToolCall) (string, error) {
	// Resynchronization: an interrupted conversation replays known outputs
	// instead of re-invoking side-effecting tools.
	if output, ok := o.tracker.Result(call.CallID); ok {
		logging.SessionDebug("replaying terminal operation %s", call.CallID)
		return output, nil
	}

	if err := o.gate.Check(o.coordinator.Current(), o.waiting, call.Name); err != nil {
		o.publishToolResult(call, err)
		return tools.MarshalToolError(err), nil
	}

	// Double registration of a live callId breaks the single-registration
	// invariant; that is a programming error, not something to hand back
	// to the model.
	if err := o.tracker.Register(call.CallID, call.Name); err != nil {
		return "", err
	}

	result, err := o.registry.Execute(ctx, call.Name, call.Args)
	if err != nil {
		if perr := o.persist(); perr != nil {
			logging.Get(logging.CategorySession).Errorf("persist before error surface failed: %v", perr)
		}
		o.tracker.Fail(call.CallID, err)
		o.publishToolResult(call, err)
		return tools.MarshalToolError(err), nil
	}

	o.tracker.Complete(call.CallID, result.Output)
	o.publishToolResult(call, nil)
	return result.Output, nil
}

func (o *Orchestrator) publishToolResult(call llm.ToolCall, err error) {
	tr := events.ToolResult{CallID: call.CallID, Tool: call.Name}
	if err != nil {
		tr.Failed = true
		tr.Error = err.Error()
	}
	o.bus.Publish(events.KindToolResult, tr)
}

// allowedSpecs renders only the currently gated-in tools for the model, so
// the advertised surface always matches what the gate will accept.
func (o *Orchestrator) allowedSpecs() []llm.ToolSpec {
	var specs []llm.ToolSpec
	for _, name := range o.gate.AllowedTools(o.coordinator.Current(), o.waiting) {
		tool := o.registry.Get(name)
		if tool == nil {
			continue
		}
		spec := llm.ToolSpec{Name: tool.Name, Description: tool.Description}
		if tool.Schema != nil {
			spec.Schema = tool.Schema.AsMap()
		}
		specs = append(specs, spec)
	}
	return specs
}

// flushNotes prepends queued background notes (dispatch outcomes, upload
// confirmations) to the conversation as user-visible context.
func (o *Orchestrator) flushNotes() {
	for _, note := range o.pendingNotes {
		o.history = append(o.history, llm.Turn{Role: llm.RoleUser, Content: note})
	}
	o.pendingNotes = nil
}

// Interrupt cancels all pending operations and running sub-agents, e.g. on
// a user-initiated reset. Idempotent.
func (o *Orchestrator) Interrupt(reason string) {
	o.tracker.CancelAll(reason)
	o.dispatcher.CancelAll()
	o.waiting = tools.WaitingNone
	o.pendingDispatch = nil
	logging.Session("conversation interrupted: %s", reason)
}
