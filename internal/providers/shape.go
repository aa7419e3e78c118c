package providers

import (
	"fmt"
	"strings"

	"github.com/aristath/stepflow/internal/capability"
)

const (
	summaryChars = 200
	titleChars   = 60
)

// Shape builds the smallest payload satisfying contract from a free-text
// reply, taking defaults from the provider input where it has them.
func Shape(contract, text string, in capability.Input) capability.Output {
	text = strings.TrimSpace(text)
	summary := clip(text, summaryChars)

	switch contract {
	case "ResearchReport":
		return capability.Output{
			"summary":  summary,
			"findings": []any{text},
			"sources":  []any{},
			"depth":    field(in, "depth", "standard"),
		}
	case "WritingOutput":
		return capability.Output{
			"title":        clip(firstOf(in, "topic", "task", "query"), titleChars),
			"content":      text,
			"content_type": field(in, "content_type", "article"),
			"word_count":   len(strings.Fields(text)),
			"style":        field(in, "style", "professional"),
			"summary":      summary,
		}
	case "CodingOutput":
		return capability.Output{
			"success":  true,
			"code":     text,
			"language": field(in, "language", "text"),
			"summary":  summary,
		}
	case "AnalysisReport":
		return capability.Output{
			"summary":  summary,
			"findings": []any{text},
		}
	case "SocialContentOutput":
		platform := "general"
		if ps, ok := in["platforms"].([]any); ok && len(ps) > 0 {
			platform = fmt.Sprint(ps[0])
		}
		return capability.Output{
			"contents": map[string]any{platform: text},
			"tone":     field(in, "tone", "neutral"),
			"summary":  summary,
		}
	case "GitHubOutput":
		return capability.Output{
			"success":   true,
			"operation": field(in, "operation", "query"),
			"result":    text,
			"summary":   summary,
		}
	}
	return capability.Output{"result": text, "summary": summary}
}

func field(in capability.Input, key, def string) string {
	if s, ok := in[key].(string); ok && s != "" {
		return s
	}
	return def
}

func firstOf(in capability.Input, keys ...string) string {
	for _, k := range keys {
		if s := field(in, k, ""); s != "" {
			return s
		}
	}
	return "Untitled"
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
