package validation

import (
	"encoding/json"
	"fmt"
)

const correctionSystem = "You are a data correction assistant. Return ONLY valid JSON with no additional text."

func correctionPrompt(data map[string]any, errs []string, schemaJSON string) (string, error) {
	dataJSON, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding data: %w", err)
	}
	errsJSON, err := json.MarshalIndent(errs, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding errors: %w", err)
	}
	return fmt.Sprintf(`The following data failed validation.

Original data:
%s

Validation errors:
%s

Target schema (JSON Schema):
%s

Please correct the data to match the schema. Return ONLY valid JSON with no additional text.
Your response must be a valid JSON object that conforms to the schema above.`, dataJSON, errsJSON, schemaJSON), nil
}
