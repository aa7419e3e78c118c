package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/aristath/stepflow/internal/capability"
)

// Text tool actions.
const (
	ActionWordCount = "word_count"
	ActionTruncate  = "truncate"
)

// TextTool performs small deterministic text operations.
type TextTool struct{}

// Actions lists the supported actions.
func (TextTool) Actions() []string {
	return []string{ActionWordCount, ActionTruncate}
}

func (TextTool) Execute(_ context.Context, in capability.Input) (capability.Output, error) {
	action, _ := in["action"].(string)
	text, _ := in["text"].(string)

	switch action {
	case ActionWordCount:
		return capability.Output{"action": action, "result": len(strings.Fields(text))}, nil
	case ActionTruncate:
		limit, err := intValue(in["limit"])
		if err != nil {
			return nil, err
		}
		r := []rune(text)
		if limit < len(r) {
			r = r[:limit]
		}
		return capability.Output{"action": action, "result": string(r)}, nil
	}
	return nil, fmt.Errorf("unsupported action %q", action)
}

// intValue accepts the numeric types a decoded or hand-built payload may hold.
func intValue(v any) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	case nil:
		return 0, fmt.Errorf("limit is required")
	}
	return 0, fmt.Errorf("limit must be a number, got %T", v)
}
