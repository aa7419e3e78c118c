package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrNoObject is returned when text holds no JSON object at all.
var ErrNoObject = errors.New("no JSON object found")

// Decode reads a T from model output in two stages: a strict decode of the
// whole text, then a decode of the outermost {...} substring. The error from
// the last stage attempted is returned when both fail.
func Decode[T any](text string) (T, error) {
	var v T
	trimmed := strings.TrimSpace(text)
	err := json.Unmarshal([]byte(trimmed), &v)
	if err == nil {
		return v, nil
	}

	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return v, fmt.Errorf("%w: %v", ErrNoObject, err)
	}

	var inner T
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &inner); err != nil {
		return v, fmt.Errorf("decoding embedded object: %w", err)
	}
	return inner, nil
}

// DecodeObject is Decode for free-form objects.
func DecodeObject(text string) (map[string]any, error) {
	obj, err := Decode[map[string]any](text)
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, ErrNoObject
	}
	return obj, nil
}
