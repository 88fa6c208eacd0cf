package server

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// Request schemas, compiled once at startup. Validation happens before
// decoding into Go types so malformed payloads produce a 400 with a
// pointer to the offending field instead of a half-populated struct.

const keystrokeEventsSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["events"],
	"properties": {
		"events": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["event_type", "key", "timestamp"],
				"properties": {
					"event_type": {"type": "string", "enum": ["press", "release"]},
					"key": {"type": "string"},
					"timestamp": {"type": "number", "minimum": 0}
				}
			}
		}
	}
}`

const blinkAnalyzeSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["blink_timestamps", "duration_seconds"],
	"properties": {
		"blink_timestamps": {
			"type": "array",
			"items": {"type": "number", "minimum": 0}
		},
		"duration_seconds": {"type": "number", "exclusiveMinimum": 0}
	}
}`

const aggregateAnalyzeSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"properties": {
		"typing_score": {"type": ["number", "null"], "minimum": 0, "maximum": 1},
		"voice_risk": {"type": ["number", "null"], "minimum": 0, "maximum": 1},
		"blink": {
			"type": ["object", "null"],
			"required": ["blink_rate", "variability"],
			"properties": {
				"blink_rate": {"type": "number", "minimum": 0},
				"variability": {"type": "number", "minimum": 0}
			}
		}
	}
}`

var (
	eventsValidator    = mustCompileSchema("keystroke-events.json", keystrokeEventsSchema)
	blinkValidator     = mustCompileSchema("blink-analyze.json", blinkAnalyzeSchema)
	aggregateValidator = mustCompileSchema("aggregate-analyze.json", aggregateAnalyzeSchema)
)

func mustCompileSchema(name, source string) *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, bytes.NewReader([]byte(source))); err != nil {
		panic(fmt.Sprintf("add schema %s: %v", name, err))
	}
	return c.MustCompile(name)
}

// validateJSON checks raw request bytes against a compiled schema.
func validateJSON(v *jsonschema.Schema, raw []byte) error {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	if err := v.Validate(doc); err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	return nil
}
