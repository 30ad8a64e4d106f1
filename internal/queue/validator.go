package queue

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// payloadValidator validates item payloads against per-task-type JSON
// Schemas, grounded on the teacher's JSONSchemaValidator.
type payloadValidator struct{}

// newPayloadValidator creates a new JSON Schema payload validator.
func newPayloadValidator() *payloadValidator {
	return &payloadValidator{}
}

// validate validates data against a JSON Schema. A compiler is created
// per call to avoid caching issues across the different per-type schemas.
func (v *payloadValidator) validate(schema, data json.RawMessage) error {
	if len(schema) == 0 {
		return nil
	}

	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	schemaURL := "schema://item"
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schema)); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	compiled, err := compiler.Compile(schemaURL)
	if err != nil {
		return fmt.Errorf("failed to compile schema: %w", err)
	}

	var dataValue any
	if err := json.Unmarshal(data, &dataValue); err != nil {
		return fmt.Errorf("invalid JSON data: %w", err)
	}

	if err := compiled.Validate(dataValue); err != nil {
		if validationErr, ok := err.(*jsonschema.ValidationError); ok {
			return fmt.Errorf("validation failed: %s", formatValidationError(validationErr))
		}
		return fmt.Errorf("validation failed: %w", err)
	}

	return nil
}

// formatValidationError extracts a human-readable message from validation errors.
func formatValidationError(err *jsonschema.ValidationError) string {
	if len(err.Causes) > 0 {
		return formatValidationError(err.Causes[0])
	}

	msg := err.Message
	if err.InstanceLocation != "" {
		msg = fmt.Sprintf("%s: %s", err.InstanceLocation, msg)
	}
	return msg
}

// Item payload schemas, one per core task type, matching the shapes
// spec.md §6.2 documents. Unknown task types fall back to genericItemSchema
// so they remain forward-compatible: they are still accepted at creation
// time and only fail per-item when the worker finds no registered handler.
var (
	genericItemSchema = json.RawMessage(`{"type":"object"}`)

	scanItemSchema = json.RawMessage(`{
		"type": "object",
		"properties": {
			"path": {"type": "string", "minLength": 1},
			"media_type": {"type": "string", "enum": ["movie", "tv"]}
		},
		"required": ["path"]
	}`)

	analyzeItemSchema = json.RawMessage(`{
		"type": "object",
		"anyOf": [
			{"required": ["movie_id"]},
			{"required": ["episode_id"]}
		]
	}`)

	refreshMetadataItemSchema = json.RawMessage(`{
		"type": "object",
		"anyOf": [
			{"required": ["movie_id"]},
			{"required": ["show_id"]},
			{"required": ["episode_id"]}
		]
	}`)

	syncWatchHistoryItemSchema = json.RawMessage(`{
		"type": "object",
		"required": ["movie_id"]
	}`)
)

// itemSchemaFor returns the JSON Schema item payloads of the given task
// type must satisfy. Unrecognized types get the generic object schema.
func itemSchemaFor(taskType TaskType) json.RawMessage {
	switch taskType {
	case TaskScan:
		return scanItemSchema
	case TaskAnalyze:
		return analyzeItemSchema
	case TaskRefreshMetadata:
		return refreshMetadataItemSchema
	case TaskSyncWatchHistory:
		return syncWatchHistoryItemSchema
	default:
		return genericItemSchema
	}
}
