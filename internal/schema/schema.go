// Package schema validates tool-call inputs against static JSON Schema
// documents before the Tool Dispatcher (spec.md §4.1) invokes a handler.
// This tightens C1's contract: a payload that violates a tool's declared
// schema fails the same way an unrecognized tool or a missing required
// input would, rather than panicking deep inside a handler.
package schema

import (
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// Validator compiles and caches one JSON Schema per tool name.
type Validator struct {
	compiled map[string]*jsonschema.Schema
}

// NewValidator compiles the given name→schema-document map once at
// construction time. Each schemaDoc is the result of json.Unmarshal-ing a
// JSON Schema (draft 2020-12) document into an `any`.
func NewValidator(schemas map[string]any) (*Validator, error) {
	v := &Validator{compiled: make(map[string]*jsonschema.Schema, len(schemas))}
	for name, doc := range schemas {
		c := jsonschema.NewCompiler()
		resourceID := name + ".schema.json"
		if err := c.AddResource(resourceID, doc); err != nil {
			return nil, fmt.Errorf("schema: add resource for tool %q: %w", name, err)
		}
		compiled, err := c.Compile(resourceID)
		if err != nil {
			return nil, fmt.Errorf("schema: compile schema for tool %q: %w", name, err)
		}
		v.compiled[name] = compiled
	}
	return v, nil
}

// Validate checks inputs (already-decoded tool-call arguments) against the
// schema registered for toolName. A tool with no registered schema always
// passes: not every tool needs structural validation beyond its handler's
// own required-field checks.
func (v *Validator) Validate(toolName string, inputs map[string]any) error {
	sch, ok := v.compiled[toolName]
	if !ok {
		return nil
	}
	// jsonschema validates against values produced by encoding/json decode
	// (map[string]any, []any, float64, string, bool, nil); round-trip
	// through JSON so callers may pass typed Go values too.
	raw, err := json.Marshal(inputs)
	if err != nil {
		return fmt.Errorf("schema: marshal inputs for tool %q: %w", toolName, err)
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("schema: unmarshal inputs for tool %q: %w", toolName, err)
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("schema: tool %q input: %w", toolName, err)
	}
	return nil
}

// ToolSchemas returns the static JSON Schema documents for the six tools
// recognized by the Tool Dispatcher (spec.md §4.1's closed set). Each
// document is unmarshaled JSON ready for NewValidator and for advertisement
// to the model as the tool's input_schema (spec.md §6's "tool advertisement
// via JSON Schema inputs").
func ToolSchemas() map[string]any {
	mustDoc := func(s string) any {
		var v any
		if err := json.Unmarshal([]byte(s), &v); err != nil {
			panic(fmt.Sprintf("schema: invalid embedded schema literal: %v", err))
		}
		return v
	}
	return map[string]any{
		"Read": mustDoc(`{
			"type": "object",
			"properties": {"file_path": {"type": "string", "minLength": 1}},
			"required": ["file_path"]
		}`),
		"Write": mustDoc(`{
			"type": "object",
			"properties": {
				"file_path": {"type": "string", "minLength": 1},
				"content": {"type": "string"}
			},
			"required": ["file_path", "content"]
		}`),
		"Edit": mustDoc(`{
			"type": "object",
			"properties": {
				"file_path": {"type": "string", "minLength": 1},
				"old_string": {"type": "string", "minLength": 1},
				"new_string": {"type": "string"}
			},
			"required": ["file_path", "old_string", "new_string"]
		}`),
		"Bash": mustDoc(`{
			"type": "object",
			"properties": {"command": {"type": "string", "minLength": 1}},
			"required": ["command"]
		}`),
		"Glob": mustDoc(`{
			"type": "object",
			"properties": {
				"pattern": {"type": "string", "minLength": 1},
				"path": {"type": "string"}
			},
			"required": ["pattern"]
		}`),
		"Grep": mustDoc(`{
			"type": "object",
			"properties": {
				"pattern": {"type": "string", "minLength": 1},
				"path": {"type": "string"},
				"glob": {"type": "string"}
			},
			"required": ["pattern"]
		}`),
	}
}
