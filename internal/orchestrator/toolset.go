package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"parley/internal/artifact"
	"parley/internal/dispatch"
	"parley/internal/ledger"
	"parley/internal/tools"
)

// buildToolset registers the interview tools. Every tool closes over the
// orchestrator so waiting-state transitions stay on the conversation
// thread.
func (o *Orchestrator) buildToolset() *tools.Registry {
	registry := tools.NewRegistry()

	registry.MustRegister(&tools.Tool{
		Name:        "record_fact",
		Description: "Record one captured fact on the live interview record.",
		Schema: tools.Object("", map[string]*tools.Schema{
			"key":   tools.String("Record key, e.g. 'identity.birthplace'"),
			"value": tools.String("The captured value"),
		}, "key", "value"),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			key, _ := args["key"].(string)
			value, _ := args["value"].(string)
			o.record[key] = value
			return fmt.Sprintf("recorded %s", key), nil
		},
	})

	registry.MustRegister(&tools.Tool{
		Name:        "update_record",
		Description: "Correct a previously recorded fact.",
		Schema: tools.Object("", map[string]*tools.Schema{
			"key":   tools.String("Record key to update"),
			"value": tools.String("The corrected value"),
		}, "key", "value"),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			key, _ := args["key"].(string)
			if _, ok := o.record[key]; !ok {
				return "", tools.NewToolError("unknown_record", fmt.Sprintf("no recorded fact %q", key))
			}
			o.record[key], _ = args["value"].(string)
			return fmt.Sprintf("updated %s", key), nil
		},
	})

	registry.MustRegister(&tools.Tool{
		Name:        "set_objective_status",
		Description: "Transition one objective on the ledger.",
		Schema: tools.Object("", map[string]*tools.Schema{
			"objective_id": tools.String("Dot-path objective id"),
			"status": tools.EnumOf("New status",
				string(ledger.StatusNotStarted), string(ledger.StatusInProgress),
				string(ledger.StatusCompleted), string(ledger.StatusSkipped)),
		}, "objective_id", "status"),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id, _ := args["objective_id"].(string)
			status, _ := args["status"].(string)
			prev, err := o.objectives.SetStatus(id, ledger.Status(status))
			switch {
			case errors.Is(err, ledger.ErrUnknownObjective):
				return "", tools.NewToolError("unknown_objective", err.Error())
			case errors.Is(err, ledger.ErrInvalidStatus):
				return "", tools.NewToolError("invalid_status", err.Error())
			case err != nil:
				return "", err
			}
			return fmt.Sprintf("%s: %s -> %s", id, prev, status), nil
		},
	})

	registry.MustRegister(&tools.Tool{
		Name:        "list_artifacts",
		Description: "List the session's artifacts with their summaries. An empty summary means the document needs a full fetch.",
		Schema:      tools.Object("", nil),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			listings := o.artifacts.List(o.cfg.SessionID)
			data, err := json.Marshal(listings)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	})

	registry.MustRegister(&tools.Tool{
		Name:        "get_artifact",
		Description: "Fetch the full raw text of one artifact.",
		Schema: tools.Object("", map[string]*tools.Schema{
			"artifact_id": tools.String("Artifact id from list_artifacts"),
		}, "artifact_id"),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id, _ := args["artifact_id"].(string)
			a, err := o.artifacts.Get(id)
			if errors.Is(err, artifact.ErrUnknownArtifact) {
				return "", tools.NewToolError("unknown_artifact", err.Error())
			}
			if err != nil {
				return "", err
			}
			return a.RawText, nil
		},
	})

	registry.MustRegister(&tools.Tool{
		Name:        "request_upload",
		Description: "Ask the user to upload a document. The conversation pauses until the upload completes.",
		Schema: tools.Object("", map[string]*tools.Schema{
			"reason": tools.String("What the document is needed for"),
		}, "reason"),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			o.waiting = tools.WaitingUpload
			reason, _ := args["reason"].(string)
			return fmt.Sprintf("upload requested: %s", reason), nil
		},
	})

	registry.MustRegister(&tools.Tool{
		Name:        "dispatch_cards",
		Description: "Generate knowledge cards from artifacts using background workers. Each assignment names its evidence artifacts.",
		Schema: tools.Object("", map[string]*tools.Schema{
			"assignments": tools.Array("Card-writing assignments", tools.Object("", map[string]*tools.Schema{
				"instructions": tools.String("What the card should cover"),
				"artifact_ids": tools.Array("Evidence artifact ids", tools.String("")),
			}, "instructions", "artifact_ids")),
		}, "assignments"),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			assignments, err := parseAssignments(args["assignments"])
			if err != nil {
				return "", tools.NewToolError("invalid_assignments", err.Error())
			}
			if len(assignments) == 0 {
				return "", tools.NewToolError("invalid_assignments", "no assignments given")
			}

			if o.cfg.RequireApproval {
				o.pendingDispatch = assignments
				o.waiting = tools.WaitingApproval
				return fmt.Sprintf("approval requested for %d card assignments", len(assignments)), nil
			}
			return o.runDispatch(ctx, assignments), nil
		},
	})

	registry.MustRegister(&tools.Tool{
		Name:        "next_phase",
		Description: "Advance to the next interview phase. Blocked until the current phase's objectives are completed or skipped.",
		Schema:      tools.Object("", nil),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			result := o.coordinator.Advance()
			payload := map[string]any{"phase": result.Phase.String()}
			if result.Blocked {
				payload["status"] = "blocked"
				payload["unmet_objectives"] = result.Unmet
			} else {
				payload["status"] = "advanced"
			}
			data, err := json.Marshal(payload)
			if err != nil {
				return "", err
			}
			return string(data), nil
		},
	})

	registry.MustRegister(&tools.Tool{
		Name:        "cancel_operation",
		Description: "Cancel the pending continuation (upload, validation, or dispatch approval) and resume the conversation.",
		Schema:      tools.Object("", nil),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			if o.waiting == tools.WaitingNone {
				return "nothing to cancel", nil
			}
			cancelled := string(o.waiting)
			o.waiting = tools.WaitingNone
			o.pendingDispatch = nil
			return fmt.Sprintf("cancelled %s", cancelled), nil
		},
	})

	return registry
}

// parseAssignments decodes the dispatch_cards argument shape.
func parseAssignments(raw any) ([]dispatch.TaskInput, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("assignments must be an array")
	}

	out := make([]dispatch.TaskInput, 0, len(items))
	for i, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("assignment %d is not an object", i)
		}
		instructions, _ := m["instructions"].(string)
		rawIDs, _ := m["artifact_ids"].([]any)
		ids := make([]string, 0, len(rawIDs))
		for _, id := range rawIDs {
			s, ok := id.(string)
			if !ok {
				return nil, fmt.Errorf("assignment %d has a non-string artifact id", i)
			}
			ids = append(ids, s)
		}
		if len(ids) == 0 {
			return nil, fmt.Errorf("assignment %d names no evidence artifacts", i)
		}
		out = append(out, dispatch.TaskInput{
			TaskID:       uuid.NewString(),
			Agent:        "card_writer",
			Instructions: instructions,
			ArtifactIDs:  ids,
		})
	}
	return out, nil
}
