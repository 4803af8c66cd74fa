package tool

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// Schema is the subset of JSON Schema used to declare tool arguments.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes one argument.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ObjectSchema builds an object schema whose listed properties are all required.
func ObjectSchema(props map[string]Property, required ...string) *Schema {
	return &Schema{Type: "object", Properties: props, Required: required}
}

// QuerySchema is the schema of the search tools: one required string "query".
func QuerySchema(description string) *Schema {
	return ObjectSchema(map[string]Property{
		"query": {Type: "string", Description: description},
	}, "query")
}

// check verifies that the schema itself is well formed.
func (s *Schema) check() error {
	if s.Type != "object" {
		return fmt.Errorf("schema type must be object, got %q", s.Type)
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return fmt.Errorf("required field %q is not declared", name)
		}
	}
	for name, p := range s.Properties {
		if !slices.Contains([]string{"string", "number", "integer", "boolean", "object", "array"}, p.Type) {
			return fmt.Errorf("field %q has unsupported type %q", name, p.Type)
		}
	}
	return nil
}

// ValidationError reports arguments that do not satisfy a tool schema.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid arguments: " + e.Reason
	}
	return fmt.Sprintf("invalid argument %q: %s", e.Field, e.Reason)
}

// Validator checks tool arguments before execution.
type Validator interface {
	Validate(args map[string]any, schema *Schema) error
}

// DefaultValidator checks required fields, primitive types and enums.
type DefaultValidator struct{}

// Validate ensures that args satisfy schema.
func (DefaultValidator) Validate(args map[string]any, schema *Schema) error {
	if schema == nil {
		return nil
	}
	for _, field := range schema.Required {
		if _, ok := args[field]; !ok {
			return &ValidationError{Field: field, Reason: "missing required field"}
		}
	}
	for key, value := range args {
		prop, ok := schema.Properties[key]
		if !ok {
			continue
		}
		if err := validateType(value, prop.Type); err != nil {
			return &ValidationError{Field: key, Reason: err.Error()}
		}
		if len(prop.Enum) > 0 {
			s, _ := value.(string)
			if !slices.Contains(prop.Enum, s) {
				return &ValidationError{Field: key, Reason: fmt.Sprintf("must be one of %v", prop.Enum)}
			}
		}
	}
	return nil
}

func validateType(value any, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if _, ok := toFloat(value); ok {
			return nil
		}
	case "integer":
		if f, ok := toFloat(value); ok && f == math.Trunc(f) {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]any); ok {
			return nil
		}
	case "":
		return nil
	}
	return fmt.Errorf("expected %s but got %T", expected, value)
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	}
	return 0, false
}

// Number reads a numeric argument.
func Number(args map[string]any, key string) (float64, error) {
	v, ok := args[key]
	if !ok {
		return 0, &ValidationError{Field: key, Reason: "missing required field"}
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, &ValidationError{Field: key, Reason: fmt.Sprintf("expected number but got %T", v)}
	}
	return f, nil
}

// String reads a string argument.
func String(args map[string]any, key string) (string, error) {
	v, ok := args[key]
	if !ok {
		return "", &ValidationError{Field: key, Reason: "missing required field"}
	}
	s, ok := v.(string)
	if !ok {
		return "", &ValidationError{Field: key, Reason: fmt.Sprintf("expected string but got %T", v)}
	}
	return s, nil
}
