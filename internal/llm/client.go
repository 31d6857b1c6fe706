// Package llm defines the narrow boundary between parley and whatever model
// drives the interview. The engine is provider-agnostic: it sends a request
// with conversation turns plus tool declarations and receives text and/or
// tool calls back. Vendor transports plug in behind the Client interface.
package llm

import (
	"context"
	"fmt"
)

// Role identifies who produced a conversation turn.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Turn is a single entry in a conversation history.
type Turn struct {
	Role    Role
	Content string

	// ToolCallID links a RoleTool turn back to the call it answers.
	ToolCallID string
}

// ToolCall is a structured invocation request emitted by the model.
// CallID is opaque and caller-supplied; the engine never interprets it.
type ToolCall struct {
	CallID string
	Name   string
	Args   map[string]any
}

// ToolSpec declares one callable tool to the model. Schema is the
// JSON-schema input description in map form.
type ToolSpec struct {
	Name        string
	Description string
	Schema      map[string]any
}

// Usage reports token consumption for one completion.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

// Request is one completion request.
type Request struct {
	System string
	Turns  []Turn
	Tools  []ToolSpec
}

// Completion is the model's answer: free text, zero or more tool calls,
// and token accounting.
type Completion struct {
	Text      string
	ToolCalls []ToolCall
	Usage     Usage
}

// Client is the opaque model capability the engine drives.
type Client interface {
	// Complete sends one request and blocks until the model answers or ctx
	// is cancelled.
	Complete(ctx context.Context, req Request) (*Completion, error)
}

// Factory builds a Client for a provider name. Vendor adapters register
// here from their own packages; the engine ships only the scripted client.
type Factory struct {
	providers map[string]func() Client
}

// NewFactory creates a factory with the built-in providers.
func NewFactory() *Factory {
	f := &Factory{providers: make(map[string]func() Client)}
	f.RegisterProvider("scripted", func() Client { return NewScriptedClient() })
	return f
}

// RegisterProvider adds a provider constructor. Last registration wins.
func (f *Factory) RegisterProvider(name string, build func() Client) {
	f.providers[name] = build
}

// New builds a client for the named provider.
func (f *Factory) New(provider string) (Client, error) {
	build, ok := f.providers[provider]
	if !ok {
		return nil, fmt.Errorf("unknown llm provider: %s", provider)
	}
	return build(), nil
}
