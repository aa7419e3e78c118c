package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stepflow/internal/capability"
)

func TestTextTool(t *testing.T) {
	tests := []struct {
		name    string
		in      capability.Input
		want    any
		wantErr bool
	}{
		{name: "word count", in: capability.Input{"action": "word_count", "text": "a b  c\n d"}, want: 4},
		{name: "truncate", in: capability.Input{"action": "truncate", "text": "héllo world", "limit": 5}, want: "héllo"},
		{name: "truncate decoded limit", in: capability.Input{"action": "truncate", "text": "abc", "limit": float64(10)}, want: "abc"},
		{name: "truncate without limit", in: capability.Input{"action": "truncate", "text": "abc"}, wantErr: true},
		{name: "unknown action", in: capability.Input{"action": "shout", "text": "abc"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := TextTool{}.Execute(context.Background(), tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, out["result"])
			assert.Equal(t, tt.in["action"], out["action"])
		})
	}
}

func TestTextTool_Actions(t *testing.T) {
	assert.Equal(t, []string{ActionWordCount, ActionTruncate}, TextTool{}.Actions())
}
