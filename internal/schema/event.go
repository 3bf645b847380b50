// Package schema is the strict, opt-in validation pre-pass for lifecycle
// events. It is deliberately separate from canonical encoding: the encoder
// defaults malformed input so hashing never fails, while callers that want to
// reject bad events before anchoring validate here first.
package schema

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/CropCred/cropcred/internal/models"
)

const eventSchema = `{
	"$id": "LifecycleEvent",
	"type": "object",
	"required": ["batchId", "certificateID", "eventType", "actor", "payload"],
	"properties": {
		"eventId": { "type": "string" },
		"batchId": { "type": "string", "minLength": 1, "pattern": "^[A-Za-z0-9_-]+$" },
		"certificateID": { "type": "string", "minLength": 1, "pattern": "^[A-Za-z0-9-]+$" },
		"eventType": { "type": "string", "enum": ["CREATED", "VERIFIED", "CERTIFIED", "TRANSFERRED"] },
		"actor": { "type": "string", "minLength": 1 },
		"payload": {
			"type": "object",
			"properties": {
				"gps": {
					"type": ["string", "null"],
					"pattern": "^(-?\\d{1,2}\\.\\d+),\\s*(-?\\d{1,3}\\.\\d+)$|^lat:\\s*-?\\d{1,2}\\.\\d+\\s*,\\s*lon:\\s*-?\\d{1,3}\\.\\d+$"
				},
				"pesticides": { "type": ["number", "null"], "minimum": 0 },
				"carbon": { "type": ["number", "null"] },
				"notes": { "type": ["string", "null"], "maxLength": 2000 },
				"sha256": { "type": ["string", "null"], "pattern": "^[0-9a-f]{64}$" }
			}
		},
		"createdAt": { "type": "integer", "minimum": 0 }
	}
}`

var compiled = func() *gojsonschema.Schema {
	s, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(eventSchema))
	if err != nil {
		panic(fmt.Sprintf("event schema does not compile: %v", err))
	}
	return s
}()

// ValidateEvent checks a typed event against the strict schema.
func ValidateEvent(ev models.LifecycleEvent) error {
	if ev.Payload == nil {
		ev.Payload = map[string]interface{}{}
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return ValidateJSON(b)
}

// ValidateJSON checks raw event JSON against the strict schema.
func ValidateJSON(doc []byte) error {
	result, err := compiled.Validate(gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return fmt.Errorf("event failed validation: %s", strings.Join(msgs, "; "))
	}
	return nil
}
