package pipeline

import (
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

// validateSchema checks the model output against a flat field->type map.
// Supported types: string, number, boolean, object, array, any.
func validateSchema(output string, schema map[string]string) error {
	if len(schema) == 0 {
		return nil
	}

	body := stripCodeFence(output)
	if !gjson.Valid(body) {
		return fmt.Errorf("output is not valid JSON")
	}

	for field, wantType := range schema {
		value := gjson.Get(body, field)
		if !value.Exists() {
			return fmt.Errorf("missing required field %q", field)
		}
		if !matchesType(value, wantType) {
			return fmt.Errorf("field %q is not of type %s", field, wantType)
		}
	}

	return nil
}

func matchesType(value gjson.Result, wantType string) bool {
	switch wantType {
	case "string":
		return value.Type == gjson.String
	case "number":
		return value.Type == gjson.Number
	case "boolean":
		return value.IsBool()
	case "object":
		return value.IsObject()
	case "array":
		return value.IsArray()
	default:
		return true
	}
}

// stripCodeFence unwraps ```json fenced blocks that models commonly emit
// around structured output.
func stripCodeFence(output string) string {
	trimmed := strings.TrimSpace(output)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	trimmed = strings.TrimPrefix(trimmed, "```json")
	trimmed = strings.TrimPrefix(trimmed, "```")
	trimmed = strings.TrimSuffix(strings.TrimSpace(trimmed), "```")
	return strings.TrimSpace(trimmed)
}
