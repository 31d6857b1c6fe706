// Package dispatch runs bounded-parallel, isolated sub-agent sessions for
// expensive generation work. Each task gets its own conversation seeded
// only with its assigned evidence, a restricted tool set, and an
// independent cancellation scope, so the primary conversation thread is
// never polluted and every task stays killable.
package dispatch

import "errors"

// TaskStatus is the lifecycle state of one sub-agent task.
type TaskStatus string

const (
	TaskQueued    TaskStatus = "queued"
	TaskRunning   TaskStatus = "running"
	TaskSucceeded TaskStatus = "succeeded"
	TaskFailed    TaskStatus = "failed"
	TaskCancelled TaskStatus = "cancelled"
)

// Dispatch errors.
var (
	// ErrEvidenceMissing rejects a submission whose claim lacks a verbatim
	// quote from its source artifact. No evidence, no claim.
	ErrEvidenceMissing = errors.New("evidence missing")

	// ErrPartialFailure reports that some tasks failed while others still
	// returned results.
	ErrPartialFailure = errors.New("some tasks failed")

	// ErrNoSubmission means the sub-agent finished its turns without ever
	// submitting a card.
	ErrNoSubmission = errors.New("sub-agent produced no submission")
)

// TaskInput is one sub-agent assignment: the evidence to work from and the
// instructions for what to produce.
type TaskInput struct {
	TaskID       string
	Agent        string
	Instructions string
	ArtifactIDs  []string
}

// KnowledgeCard is the structured payload a card-writer sub-agent submits:
// a claim backed by a verbatim quote from one source artifact.
type KnowledgeCard struct {
	Title         string `json:"title"`
	Claim         string `json:"claim"`
	EvidenceQuote string `json:"evidence_quote"`
	ArtifactID    string `json:"artifact_id"`
}

// TaskResult is the terminal outcome of one task. Card is set only on
// success; the result is handed off (moved, not shared) to the caller.
type TaskResult struct {
	TaskID string
	Status TaskStatus
	Card   *KnowledgeCard
	Err    error
}
