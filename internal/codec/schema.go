package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// orchestratorOutputSchema is the strict JSON schema for a repaired
// OrchestratorOutput candidate: additionalProperties is false so the codec
// rejects any field the LLM invented that the data model does not declare.
const orchestratorOutputSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["route", "calendar_intent", "slots", "confidence", "tool_plan", "assistant_reply", "ask_user", "requires_confirmation"],
  "properties": {
    "route": {"type": "string", "enum": ["calendar", "gmail", "smalltalk", "system", "unknown"]},
    "calendar_intent": {"type": "string", "enum": ["create", "modify", "cancel", "query", "none"]},
    "slots": {"type": "object"},
    "confidence": {"type": "number", "minimum": 0, "maximum": 1},
    "tool_plan": {"type": "array", "items": {"type": "string"}},
    "assistant_reply": {"type": "string"},
    "ask_user": {"type": "boolean"},
    "question": {"type": "string"},
    "requires_confirmation": {"type": "boolean"},
    "confirmation_prompt": {"type": "string"},
    "memory_update": {"type": "object"},
    "reasoning_summary": {"type": "array", "items": {"type": "string"}},
    "raw_output": {"type": "object"}
  }
}`

var (
	schemaOnce sync.Once
	compiled   *jsonschema.Schema
	compileErr error
)

func schema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		if err := c.AddResource("orchestrator_output.json", bytes.NewReader([]byte(orchestratorOutputSchema))); err != nil {
			compileErr = fmt.Errorf("codec: compile schema resource: %w", err)
			return
		}
		compiled, compileErr = c.Compile("orchestrator_output.json")
	})
	return compiled, compileErr
}

// ErrSchema wraps a schema-validation failure with the underlying detail.
type ErrSchema struct {
	Err error
}

func (e *ErrSchema) Error() string { return "codec: schema validation failed: " + e.Err.Error() }
func (e *ErrSchema) Unwrap() error { return e.Err }

// validateSchema re-marshals raw through encoding/json so jsonschema sees
// plain Go values (map[string]any, []any, float64, string, bool) regardless
// of what concrete types RepairEnums produced.
func validateSchema(raw map[string]any) error {
	s, err := schema()
	if err != nil {
		return err
	}
	buf, err := json.Marshal(raw)
	if err != nil {
		return &ErrSchema{Err: err}
	}
	var doc any
	if err := json.Unmarshal(buf, &doc); err != nil {
		return &ErrSchema{Err: err}
	}
	if err := s.Validate(doc); err != nil {
		return &ErrSchema{Err: err}
	}
	return nil
}
