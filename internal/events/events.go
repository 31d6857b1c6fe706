// Package events implements the in-process event bus for parley.
// All cross-component communication flows through typed domain events so
// components never call each other directly for notifications.
package events

import (
	"time"
)

// Kind identifies the variant of a domain event. The set is closed:
// subscribers can exhaustively switch on it.
type Kind string

const (
	// KindObjectiveStatusChanged fires on every successful ledger transition.
	KindObjectiveStatusChanged Kind = "objective.status_changed"

	// KindArtifactIngested fires when an artifact is added (or deduplicated).
	KindArtifactIngested Kind = "artifact.ingested"

	// KindArtifactSummarized fires when a summary job finishes, pass or fail.
	KindArtifactSummarized Kind = "artifact.summarized"

	// KindPhaseChanged fires on a successful phase advance.
	KindPhaseChanged Kind = "phase.changed"

	// KindAgentProgress reports sub-agent task lifecycle to the UI.
	KindAgentProgress Kind = "agent.progress"

	// KindToolResult reports a completed tool invocation.
	KindToolResult Kind = "tool.result"

	// KindTokenUsage reports LLM token consumption per call.
	KindTokenUsage Kind = "llm.token_usage"

	// KindUploadCompleted is emitted by the UI when a requested upload lands.
	KindUploadCompleted Kind = "ui.upload_completed"

	// KindApprovalGranted is emitted by the UI when the user approves a
	// pending continuation (e.g. a sub-agent dispatch).
	KindApprovalGranted Kind = "ui.approval_granted"

	// KindKillAgent is emitted by the UI kill affordance for a running task.
	KindKillAgent Kind = "ui.kill_agent"
)

// Event is a single immutable domain event. Seq is assigned by the bus and
// is monotonically increasing per bus, so events from one publisher can be
// re-ordered deterministically by a consumer if needed.
type Event struct {
	Seq       uint64
	Kind      Kind
	Timestamp time.Time
	Payload   any
}

// Payload types, one per Kind. Consumers type-assert on Event.Payload after
// switching on Kind.

// ObjectiveStatusChanged carries a ledger transition.
type ObjectiveStatusChanged struct {
	ObjectiveID string
	Phase       string
	From        string
	To          string
}

// ArtifactIngested carries an ingestion result. Deduplicated is true when
// the add matched an existing (filename, hash) pair and no new artifact was
// created.
type ArtifactIngested struct {
	ArtifactID   string
	SessionID    string
	Filename     string
	SourceType   string
	SizeBytes    int64
	Deduplicated bool
}

// ArtifactSummarized reports the outcome of an async summary job.
type ArtifactSummarized struct {
	ArtifactID string
	Failed     bool
}

// PhaseChanged carries a successful phase transition.
type PhaseChanged struct {
	From string
	To   string
}

// AgentProgress reports a sub-agent task moving through its lifecycle.
type AgentProgress struct {
	TaskID string
	Agent  string
	Status string
	Detail string
}

// ToolResult reports a terminal tool invocation.
type ToolResult struct {
	CallID string
	Tool   string
	Failed bool
	Error  string
}

// TokenUsage reports consumption for a single LLM call.
type TokenUsage struct {
	Source           string // "primary" or a sub-agent task id
	PromptTokens     int
	CompletionTokens int
}

// UploadCompleted signals that a user-facing upload finished.
type UploadCompleted struct {
	Filename   string
	SourceType string
	Content    []byte
}

// ApprovalGranted signals that the user approved a pending continuation.
type ApprovalGranted struct {
	Topic string
}

// KillAgent requests cancellation of one running sub-agent task.
type KillAgent struct {
	TaskID string
}
