// Package triggers validates trigger condition payloads against the
// per-trigger-type vocabulary understood by the delivery runtime.
package triggers

import (
	"encoding/json"
	"fmt"

	cron "github.com/robfig/cron/v3"
	"github.com/xeipuuv/gojsonschema"

	"github.com/dripline/dripline/pkg/models"
)

// conditionSchemas maps each trigger type to the JSON Schema its condition
// payload must satisfy. The payloads themselves stay opaque to the editor;
// only their shape is checked before an automation goes live.
var conditionSchemas = map[models.TriggerType]string{
	models.TriggerTypeContactCreated: `{
		"type": "object",
		"properties": {
			"source": {"type": "string"}
		},
		"additionalProperties": true
	}`,
	models.TriggerTypeListSubscribed: `{
		"type": "object",
		"properties": {
			"list_id": {"type": "string", "minLength": 1}
		},
		"required": ["list_id"],
		"additionalProperties": true
	}`,
	models.TriggerTypeSegmentJoined: `{
		"type": "object",
		"properties": {
			"segment_id": {"type": "string", "minLength": 1}
		},
		"required": ["segment_id"],
		"additionalProperties": true
	}`,
	models.TriggerTypeCustomEvent: `{
		"type": "object",
		"properties": {
			"event_name": {"type": "string", "minLength": 1}
		},
		"required": ["event_name"],
		"additionalProperties": true
	}`,
	models.TriggerTypeSchedule: `{
		"type": "object",
		"properties": {
			"cron": {"type": "string", "minLength": 1}
		},
		"required": ["cron"],
		"additionalProperties": true
	}`,
}

var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ValidateConditions checks a trigger condition payload against the schema
// for the given trigger type. Schedule triggers additionally have their cron
// expression parsed, since a schema cannot express cron syntax.
func ValidateConditions(triggerType models.TriggerType, conditions map[string]any) error {
	if !triggerType.IsValid() {
		return fmt.Errorf("unknown trigger type: %s", triggerType)
	}

	schema, ok := conditionSchemas[triggerType]
	if !ok {
		return nil
	}

	if conditions == nil {
		conditions = map[string]any{}
	}

	payload, err := json.Marshal(conditions)
	if err != nil {
		return fmt.Errorf("failed to marshal trigger conditions: %w", err)
	}

	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewBytesLoader(payload),
	)
	if err != nil {
		return fmt.Errorf("failed to validate trigger conditions: %w", err)
	}

	if !result.Valid() {
		return fmt.Errorf("invalid %s trigger conditions: %s", triggerType, result.Errors()[0].String())
	}

	if triggerType == models.TriggerTypeSchedule {
		expr, _ := conditions["cron"].(string)
		if _, err := cronParser.Parse(expr); err != nil {
			return fmt.Errorf("invalid schedule cron expression %q: %w", expr, err)
		}
	}

	return nil
}
