package tools

import (
	"context"
	"encoding/json"
)

// ExecuteFunc is the signature for tool execution. The string result is
// handed back to the model verbatim.
type ExecuteFunc func(ctx context.Context, args map[string]any) (string, error)

// Tool declares one callable tool.
type Tool struct {
	// Name is the unique identifier used in gate policies and tool calls.
	Name string

	// Description explains what the tool does, for the model.
	Description string

	// Schema describes the expected arguments.
	Schema *Schema

	// Execute runs the tool.
	Execute ExecuteFunc
}

// Validate checks the tool definition.
func (t *Tool) Validate() error {
	if t.Name == "" {
		return ErrToolNameEmpty
	}
	if t.Execute == nil {
		return ErrToolExecuteNil
	}
	if t.Schema != nil {
		return t.Schema.Validate()
	}
	return nil
}

// Result wraps one tool execution with metadata.
type Result struct {
	ToolName   string
	Output     string
	Err        error
	DurationMs int64
}

// IsSuccess reports whether the tool ran without error.
func (r *Result) IsSuccess() bool {
	return r.Err == nil
}

// ToolError is the structured error shape returned across the LLM
// boundary: `{kind, message}`. Cause, when set, links back to the sentinel
// error for errors.Is checks.
type ToolError struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

// Error implements error.
func (e *ToolError) Error() string {
	return e.Kind + ": " + e.Message
}

// Unwrap exposes the sentinel cause.
func (e *ToolError) Unwrap() error {
	return e.Cause
}

// NewToolError builds a structured tool error.
func NewToolError(kind, message string) *ToolError {
	return &ToolError{Kind: kind, Message: message}
}

// MarshalToolError renders any error as the structured wire shape. Known
// ToolErrors keep their kind; everything else becomes "internal".
func MarshalToolError(err error) string {
	te, ok := err.(*ToolError)
	if !ok {
		te = &ToolError{Kind: "internal", Message: err.Error()}
	}
	data, marshalErr := json.Marshal(te)
	if marshalErr != nil {
		return `{"kind":"internal","message":"error encoding failed"}`
	}
	return string(data)
}
