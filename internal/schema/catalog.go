// Package schema declares the typed contracts exchanged with providers and
// returned to callers, keyed by contract name.
package schema

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/invopop/jsonschema"

	"github.com/aristath/stepflow/internal/state"
)

// Factory returns a pointer to a fresh zero value of a contract type.
type Factory func() any

// Contract names.
const (
	Decision      = "Decision"
	QueryAnalysis = "QueryAnalysis"
	Final         = "FinalResponse"
)

// Catalog returns the built-in contracts. Each call returns a new map so
// callers may extend it.
func Catalog() map[string]Factory {
	return map[string]Factory{
		Decision:      func() any { return new(state.Decision) },
		QueryAnalysis: func() any { return new(state.QueryAnalysis) },
		Final:         func() any { return new(FinalResponse) },

		"ResearchTaskInput": func() any { return new(ResearchTaskInput) },
		"WritingTaskInput":  func() any { return new(WritingTaskInput) },
		"CodingTaskInput":   func() any { return new(CodingTaskInput) },
		"AnalysisTaskInput": func() any { return new(AnalysisTaskInput) },
		"SocialTaskInput":   func() any { return new(SocialTaskInput) },
		"GitHubTaskInput":   func() any { return new(GitHubTaskInput) },
		"TextToolInput":     func() any { return new(TextToolInput) },

		"ResearchReport":      func() any { return new(ResearchReport) },
		"WritingOutput":       func() any { return new(WritingOutput) },
		"CodingOutput":        func() any { return new(CodingOutput) },
		"AnalysisReport":      func() any { return new(AnalysisReport) },
		"SocialContentOutput": func() any { return new(SocialContentOutput) },
		"GitHubOutput":        func() any { return new(GitHubOutput) },
		"TextToolOutput":      func() any { return new(TextToolOutput) },
	}
}

// Names returns the built-in contract names, sorted.
func Names() []string {
	return slices.Sorted(maps.Keys(Catalog()))
}

var reflector = &jsonschema.Reflector{
	ExpandedStruct: true,
	DoNotReference: true,
}

// Describe renders the JSON Schema of the value produced by f.
func Describe(f Factory) (string, error) {
	s := reflector.Reflect(f())
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshaling schema: %w", err)
	}
	return string(data), nil
}
