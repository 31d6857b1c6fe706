package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"

	"parley/internal/artifact"
	"parley/internal/dispatch"
	"parley/internal/events"
	"parley/internal/logging"
	"parley/internal/tools"
)

// HandleEvent resumes the loop from an external continuation. Must be
// called from the same logical thread as NextTurn.
func (o *Orchestrator) HandleEvent(ctx context.Context, ev events.Event) {
	switch payload := ev.Payload.(type) {
	case events.UploadCompleted:
		o.handleUpload(payload)
	case events.ApprovalGranted:
		o.handleApproval(ctx)
	}
}

// handleUpload ingests a completed upload and clears the waiting-state.
func (o *Orchestrator) handleUpload(up events.UploadCompleted) {
	sourceType := artifact.SourceType(up.SourceType)
	if sourceType == "" {
		sourceType = artifact.SourceUpload
	}

	id, err := o.artifacts.Ingest(o.cfg.SessionID, up.Filename, up.Content, sourceType)
	if err != nil {
		logging.Get(logging.CategorySession).Errorf("upload ingest failed: %v", err)
		o.pendingNotes = append(o.pendingNotes,
			fmt.Sprintf("Upload of %s failed: %v. Ask the user to retry.", up.Filename, err))
		return
	}

	if o.waiting == tools.WaitingUpload {
		o.waiting = tools.WaitingNone
	}
	o.pendingNotes = append(o.pendingNotes,
		fmt.Sprintf("Upload completed: %s is now artifact %s.", up.Filename, id))
}

// handleApproval performs the approved pending dispatch and queues a note
// describing the outcome for the next turn.
func (o *Orchestrator) handleApproval(ctx context.Context) {
	if o.waiting != tools.WaitingApproval || len(o.pendingDispatch) == 0 {
		logging.SessionDebug("ignoring approval with no pending dispatch")
		return
	}

	assignments := o.pendingDispatch
	o.pendingDispatch = nil
	o.waiting = tools.WaitingNone

	o.pendingNotes = append(o.pendingNotes, o.runDispatch(ctx, assignments))
}

// runDispatch executes assignments, merges the accepted cards into the
// artifact model, and renders a conversation-facing summary.
func (o *Orchestrator) runDispatch(ctx context.Context, assignments []dispatch.TaskInput) string {
	results, err := o.dispatcher.Dispatch(ctx, assignments, o.cfg.DispatchConcurrency)
	if err != nil {
		logging.Get(logging.CategoryDispatch).Warnf("dispatch finished with failures: %v", err)
	}

	succeeded, failed := 0, 0
	for _, r := range results {
		switch r.Status {
		case dispatch.TaskSucceeded:
			if mergeErr := o.mergeCard(r); mergeErr != nil {
				logging.Get(logging.CategoryDispatch).Errorf("card merge failed for %s: %v", r.TaskID, mergeErr)
				failed++
				continue
			}
			succeeded++
		case dispatch.TaskCancelled:
			// Not counted either way; the user killed it.
		default:
			failed++
		}
	}

	if perr := o.persist(); perr != nil {
		logging.Get(logging.CategorySession).Errorf("persist after dispatch failed: %v", perr)
	}

	return fmt.Sprintf("Card generation finished: %d cards accepted, %d assignments failed.", succeeded, failed)
}

// mergeCard hands a succeeded task's card off into the artifact model.
func (o *Orchestrator) mergeCard(r dispatch.TaskResult) error {
	data, err := json.MarshalIndent(r.Card, "", "  ")
	if err != nil {
		return err
	}

	filename := fmt.Sprintf("card-%s.json", r.TaskID)
	_, _, err = o.artifacts.Add(o.cfg.SessionID, artifact.SourceCard, filename, data, "")
	return err
}
