package dispatch

import (
	"context"
	"encoding/json"
	"fmt"

	"parley/internal/events"
	"parley/internal/llm"
	"parley/internal/logging"
	"parley/internal/tools"
)

// subAgentMaxTurns bounds how many completions one task may consume before
// it is failed. Card generation normally finishes in one or two.
const subAgentMaxTurns = 8

const cardWriterSystemPrompt = `You produce one knowledge card from the evidence you were given.
A card states a single claim about the subject, backed by a verbatim quote
copied exactly from one evidence document. Submit it with the submit_card
tool. A claim without a verbatim quote will be rejected.`

// SubAgent is one isolated card-generation session. Its conversation
// history is seeded only with the task's assigned evidence, never with the
// primary conversation, and its tool set is restricted to reading that
// evidence and submitting the result.
type SubAgent struct {
	task     TaskInput
	client   llm.Client
	registry *tools.Registry
	lookup   RawTextLookup
	bus      *events.Bus

	history []llm.Turn
	card    *KnowledgeCard
}

// NewSubAgent builds the sub-agent for one assignment.
func NewSubAgent(task TaskInput, client llm.Client, lookup RawTextLookup, bus *events.Bus) *SubAgent {
	s := &SubAgent{
		task:   task,
		client: client,
		lookup: lookup,
		bus:    bus,
	}
	s.registry = s.buildToolset()
	return s
}

// buildToolset registers the restricted tools: read-only access to the
// assigned evidence plus the single result-submission tool.
func (s *SubAgent) buildToolset() *tools.Registry {
	registry := tools.NewRegistry()

	registry.MustRegister(&tools.Tool{
		Name:        "get_evidence",
		Description: "Fetch the full raw text of one assigned evidence document.",
		Schema: tools.Object("", map[string]*tools.Schema{
			"artifact_id": tools.String("Id of an assigned evidence document"),
		}, "artifact_id"),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			id, _ := args["artifact_id"].(string)
			if !s.assigned(id) {
				return "", tools.NewToolError("not_assigned",
					fmt.Sprintf("artifact %s is not part of this assignment", id))
			}
			return s.lookup(id)
		},
	})

	registry.MustRegister(&tools.Tool{
		Name:        "submit_card",
		Description: "Submit the finished knowledge card. The evidence quote must appear verbatim in the source document.",
		Schema: tools.Object("", map[string]*tools.Schema{
			"title":          tools.String("Short card title"),
			"claim":          tools.String("The single claim the card makes"),
			"evidence_quote": tools.String("Verbatim quote copied from the source document"),
			"artifact_id":    tools.String("Id of the source document"),
		}, "claim", "evidence_quote", "artifact_id"),
		Execute: func(ctx context.Context, args map[string]any) (string, error) {
			card := &KnowledgeCard{
				Title:         stringArg(args, "title"),
				Claim:         stringArg(args, "claim"),
				EvidenceQuote: stringArg(args, "evidence_quote"),
				ArtifactID:    stringArg(args, "artifact_id"),
			}
			if err := ValidateCard(card, s.lookup); err != nil {
				return "", tools.NewToolError("evidence_missing", err.Error())
			}
			s.card = card
			return "card accepted", nil
		},
	})

	return registry
}

// assigned reports whether the artifact id belongs to this task.
func (s *SubAgent) assigned(id string) bool {
	for _, a := range s.task.ArtifactIDs {
		if a == id {
			return true
		}
	}
	return false
}

// Run executes the sub-agent loop until a card is accepted, the turn
// budget runs out, or ctx is cancelled.
func (s *SubAgent) Run(ctx context.Context) (*KnowledgeCard, error) {
	s.seed()

	specs := s.toolSpecs()
	for turn := 0; turn < subAgentMaxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		completion, err := s.client.Complete(ctx, llm.Request{
			System: cardWriterSystemPrompt,
			Turns:  s.history,
			Tools:  specs,
		})
		if err != nil {
			return nil, fmt.Errorf("sub-agent completion: %w", err)
		}

		s.bus.Publish(events.KindTokenUsage, events.TokenUsage{
			Source:           s.task.TaskID,
			PromptTokens:     completion.Usage.PromptTokens,
			CompletionTokens: completion.Usage.CompletionTokens,
		})

		if completion.Text != "" {
			s.history = append(s.history, llm.Turn{Role: llm.RoleAssistant, Content: completion.Text})
		}

		if len(completion.ToolCalls) == 0 {
			// No call and no card: nudge once, then keep looping until the
			// budget runs out.
			s.history = append(s.history, llm.Turn{
				Role:    llm.RoleUser,
				Content: "Submit the card with the submit_card tool.",
			})
			continue
		}

		for _, call := range completion.ToolCalls {
			result, err := s.registry.Execute(ctx, call.Name, call.Args)
			output := ""
			if err != nil {
				output = tools.MarshalToolError(err)
				logging.DispatchDebug("task %s tool %s rejected: %v", s.task.TaskID, call.Name, err)
			} else {
				output = result.Output
			}
			s.history = append(s.history, llm.Turn{
				Role:       llm.RoleTool,
				Content:    output,
				ToolCallID: call.CallID,
			})
		}

		if s.card != nil {
			return s.card, nil
		}
	}

	return nil, ErrNoSubmission
}

// seed builds the initial conversation: instructions plus the assigned
// evidence inline, so the task needs no access to anything else.
func (s *SubAgent) seed() {
	var evidence string
	for _, id := range s.task.ArtifactIDs {
		text, err := s.lookup(id)
		if err != nil {
			logging.Get(logging.CategoryDispatch).Warnf("task %s: evidence %s unavailable: %v", s.task.TaskID, id, err)
			continue
		}
		evidence += fmt.Sprintf("\n--- evidence %s ---\n%s\n", id, text)
	}

	s.history = []llm.Turn{{
		Role:    llm.RoleUser,
		Content: fmt.Sprintf("Assignment: %s\n%s", s.task.Instructions, evidence),
	}}
}

// toolSpecs renders the restricted registry for the LLM boundary.
func (s *SubAgent) toolSpecs() []llm.ToolSpec {
	var specs []llm.ToolSpec
	for _, name := range s.registry.Names() {
		tool := s.registry.Get(name)
		spec := llm.ToolSpec{Name: tool.Name, Description: tool.Description}
		if tool.Schema != nil {
			spec.Schema = tool.Schema.AsMap()
		}
		specs = append(specs, spec)
	}
	return specs
}

// stringArg fetches a string argument, tolerating absent or mistyped
// values (schema validation already covered required presence).
func stringArg(args map[string]any, key string) string {
	if v, ok := args[key].(string); ok {
		return v
	}
	if v, ok := args[key]; ok && v != nil {
		data, err := json.Marshal(v)
		if err == nil {
			return string(data)
		}
	}
	return ""
}
