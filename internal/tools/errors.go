package tools

import "errors"

// Tool boundary errors.
var (
	// ErrToolNotFound is returned when a tool is not registered.
	ErrToolNotFound = errors.New("tool not found")

	// ErrToolNameEmpty is returned when a tool has no name.
	ErrToolNameEmpty = errors.New("tool name cannot be empty")

	// ErrToolExecuteNil is returned when a tool has no execute function.
	ErrToolExecuteNil = errors.New("tool execute function cannot be nil")

	// ErrToolAlreadyRegistered is returned when registering a duplicate.
	ErrToolAlreadyRegistered = errors.New("tool already registered")

	// ErrMissingRequiredArg is returned when a required argument is missing.
	ErrMissingRequiredArg = errors.New("missing required argument")

	// ErrToolNotAllowed is returned by the gate when the current phase or
	// waiting-state does not permit a tool. Surfaced to the model as a
	// structured refusal, never as a crash.
	ErrToolNotAllowed = errors.New("tool not allowed")

	// Schema construction errors.
	ErrSchemaKind         = errors.New("unknown schema kind")
	ErrSchemaArrayItems   = errors.New("array schema requires items")
	ErrSchemaRequiredProp = errors.New("required property not declared")
)
