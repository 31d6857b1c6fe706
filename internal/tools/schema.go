// Package tools defines the tool-call boundary: tool declarations with
// JSON-schema inputs, a thread-safe registry, and the gate that restricts
// which tools the driving agent may invoke in the current phase and
// waiting-state.
package tools

// SchemaKind is the closed set of schema variants. Tool inputs are built
// from these rather than from stringly-typed dictionaries so malformed
// declarations fail at construction, not at call time.
type SchemaKind string

const (
	KindString  SchemaKind = "string"
	KindNumber  SchemaKind = "number"
	KindInteger SchemaKind = "integer"
	KindBoolean SchemaKind = "boolean"
	KindObject  SchemaKind = "object"
	KindArray   SchemaKind = "array"
)

// Schema is one node of a tool input schema.
type Schema struct {
	Kind        SchemaKind
	Description string

	// Object fields.
	Properties map[string]*Schema
	Required   []string

	// Array element schema.
	Items *Schema

	// Enum restricts a string schema to fixed values.
	Enum []string
}

// String builds a string schema.
func String(description string) *Schema {
	return &Schema{Kind: KindString, Description: description}
}

// Enum builds a string schema restricted to the given values.
func EnumOf(description string, values ...string) *Schema {
	return &Schema{Kind: KindString, Description: description, Enum: values}
}

// Number builds a number schema.
func Number(description string) *Schema {
	return &Schema{Kind: KindNumber, Description: description}
}

// Integer builds an integer schema.
func Integer(description string) *Schema {
	return &Schema{Kind: KindInteger, Description: description}
}

// Boolean builds a boolean schema.
func Boolean(description string) *Schema {
	return &Schema{Kind: KindBoolean, Description: description}
}

// Array builds an array schema with the given element schema.
func Array(description string, items *Schema) *Schema {
	return &Schema{Kind: KindArray, Description: description, Items: items}
}

// Object builds an object schema. Required names must all appear in
// properties; Validate catches violations.
func Object(description string, properties map[string]*Schema, required ...string) *Schema {
	return &Schema{
		Kind:        KindObject,
		Description: description,
		Properties:  properties,
		Required:    required,
	}
}

// Validate checks structural consistency of the schema tree.
func (s *Schema) Validate() error {
	switch s.Kind {
	case KindString, KindNumber, KindInteger, KindBoolean:
		return nil
	case KindArray:
		if s.Items == nil {
			return ErrSchemaArrayItems
		}
		return s.Items.Validate()
	case KindObject:
		for _, name := range s.Required {
			if _, ok := s.Properties[name]; !ok {
				return ErrSchemaRequiredProp
			}
		}
		for _, prop := range s.Properties {
			if err := prop.Validate(); err != nil {
				return err
			}
		}
		return nil
	default:
		return ErrSchemaKind
	}
}

// AsMap renders the schema in plain JSON-schema map form for the LLM
// boundary.
func (s *Schema) AsMap() map[string]any {
	out := map[string]any{"type": string(s.Kind)}
	if s.Description != "" {
		out["description"] = s.Description
	}
	if len(s.Enum) > 0 {
		values := make([]any, len(s.Enum))
		for i, v := range s.Enum {
			values[i] = v
		}
		out["enum"] = values
	}
	if s.Items != nil {
		out["items"] = s.Items.AsMap()
	}
	if len(s.Properties) > 0 {
		props := make(map[string]any, len(s.Properties))
		for name, prop := range s.Properties {
			props[name] = prop.AsMap()
		}
		out["properties"] = props
	}
	if len(s.Required) > 0 {
		required := make([]any, len(s.Required))
		for i, name := range s.Required {
			required[i] = name
		}
		out["required"] = required
	}
	return out
}
