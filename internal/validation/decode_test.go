package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Action string `json:"action"`
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    string
		wantErr bool
	}{
		{"strict", `{"action":"complete"}`, "complete", false},
		{"surrounding whitespace", "\n  {\"action\":\"delegate\"}\n", "delegate", false},
		{"embedded in prose", `Sure! Here it is: {"action":"ask_human"} Hope that helps.`, "ask_human", false},
		{"fenced", "```json\n{\"action\":\"error\"}\n```", "error", false},
		{"nested braces", `note {"action":"complete","x":{"y":1}} end`, "complete", false},
		{"no object", "I think we should delegate.", "", true},
		{"broken object", `{"action": }`, "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode[sample](tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Action)
		})
	}
}

func TestDecodeObject(t *testing.T) {
	obj, err := DecodeObject(`result: {"a": 1}`)
	require.NoError(t, err)
	assert.Equal(t, float64(1), obj["a"])

	_, err = DecodeObject("null")
	assert.ErrorIs(t, err, ErrNoObject)

	_, err = DecodeObject("nothing here")
	assert.ErrorIs(t, err, ErrNoObject)
}
