package validation

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/stepflow/internal/reasoning"
	"github.com/aristath/stepflow/internal/schema"
)

func validReport() map[string]any {
	return map[string]any{
		"summary":  "AI adoption is accelerating",
		"findings": []any{"more agents"},
		"sources":  []any{map[string]any{"title": "Survey", "url": "https://example.org/survey"}},
		"depth":    "standard",
	}
}

const correctedReport = "```json\n" + `{"summary":"fixed","findings":[],"sources":[],"depth":"quick"}` + "\n```"

func TestValidate_ValidInputUnchanged(t *testing.T) {
	client := &reasoning.Static{Responses: []string{correctedReport}}
	e := New(WithCorrectionClient(client))
	data := validReport()

	res := e.Validate(context.Background(), data, "ResearchReport")

	assert.True(t, res.Valid)
	assert.Equal(t, data, res.Data)
	assert.Nil(t, res.Corrections)
	assert.Empty(t, res.Errors)
	assert.Equal(t, "ResearchReport", res.Contract)
	assert.Empty(t, client.Calls(), "valid input must not reach the correction client")
}

func TestValidate_CorrectionRepairsInvalidInput(t *testing.T) {
	client := &reasoning.Static{Responses: []string{correctedReport}}
	e := New(WithCorrectionClient(client))
	original := map[string]any{"summary": "partial"}

	res := e.Validate(context.Background(), original, "ResearchReport")

	require.True(t, res.Valid, res.Errors)
	assert.NotNil(t, res.Corrections)
	assert.NotEqual(t, original, res.Data)
	assert.Equal(t, "fixed", res.Data["summary"])

	calls := client.Calls()
	require.Len(t, calls, 1)
	assert.Contains(t, calls[0].User, `"summary": "partial"`)
	assert.Contains(t, calls[0].User, "findings: is required")
	assert.Contains(t, calls[0].User, "Target schema (JSON Schema)")
}

func TestValidate_CorrectionsDisabledKeepsErrorsVerbatim(t *testing.T) {
	client := &reasoning.Static{Responses: []string{correctedReport}}
	e := New(WithCorrectionClient(client), WithCorrections(false))
	data := map[string]any{"summary": "partial"}

	res := e.Validate(context.Background(), data, "ResearchReport")

	assert.False(t, res.Valid)
	assert.Equal(t, []string{"findings: is required", "sources: is required", "depth: is required"}, res.Errors)
	assert.Equal(t, e.Check("ResearchReport", data), res.Errors)
	assert.Empty(t, client.Calls())
}

func TestValidate_NeverExceedsAttemptBudget(t *testing.T) {
	client := &reasoning.Static{Responses: []string{`{"summary":"still missing fields"}`}}
	e := New(WithCorrectionClient(client), WithMaxCorrectionAttempts(2))

	res := e.Validate(context.Background(), map[string]any{"summary": "x"}, "ResearchReport")

	assert.False(t, res.Valid)
	assert.Len(t, client.Calls(), 2)
	assert.Contains(t, res.Errors[len(res.Errors)-1], "Correction failed after 2 attempts")
}

func TestValidate_UndecodableCorrectionFolded(t *testing.T) {
	client := &reasoning.Static{Responses: []string{"I cannot help with that."}}
	e := New(WithCorrectionClient(client))

	res := e.Validate(context.Background(), map[string]any{"summary": "x"}, "ResearchReport")

	assert.False(t, res.Valid)
	assert.Len(t, client.Calls(), 1)
	assert.Contains(t, res.Errors[len(res.Errors)-1], "Correction failed")
}

func TestValidate_CorrectionClientErrorFolded(t *testing.T) {
	client := &reasoning.Static{Err: errors.New("connection refused")}
	e := New(WithCorrectionClient(client))

	res := e.Validate(context.Background(), map[string]any{"summary": "x"}, "ResearchReport")

	assert.False(t, res.Valid)
	assert.Contains(t, res.Errors[len(res.Errors)-1], "connection refused")
}

func TestValidate_UnknownContract(t *testing.T) {
	client := &reasoning.Static{Responses: []string{"{}"}}
	e := New(WithCorrectionClient(client))

	res := e.Validate(context.Background(), map[string]any{"a": 1}, "Nope")

	assert.False(t, res.Valid)
	assert.Equal(t, []string{`contract "Nope" not found`}, res.Errors)
	assert.Empty(t, client.Calls())
}

func TestValidateOrRaise(t *testing.T) {
	e := New(WithCorrections(false))

	data, err := e.ValidateOrRaise(context.Background(), validReport(), "ResearchReport")
	require.NoError(t, err)
	assert.Equal(t, "standard", data["depth"])

	_, err = e.ValidateOrRaise(context.Background(), map[string]any{}, "ResearchReport")
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "ResearchReport", verr.Contract)
	assert.Contains(t, err.Error(), "summary: is required; findings: is required")
}

func TestCheck_DecisionContract(t *testing.T) {
	e := New()

	assert.Empty(t, e.Check(schema.Decision, map[string]any{
		"action": "delegate", "target_provider": "research", "reasoning": "r", "confidence": 0.8,
	}))
	assert.Contains(t, e.Check(schema.Decision, map[string]any{
		"action": "delegate", "confidence": 0.8,
	}), "target_provider: is required")
	assert.Contains(t, e.Check(schema.Decision, map[string]any{
		"action": "complete", "confidence": 1.5,
	}), "confidence: must be <= 1")
	assert.Contains(t, e.Check(schema.Decision, map[string]any{
		"action": "retry", "confidence": 0.5,
	})[0], "action: must be one of")
}

func TestCheck_TypeMismatch(t *testing.T) {
	e := New()

	errs := e.Check("ResearchTaskInput", map[string]any{"query": "q", "sources_required": "five"})

	require.Len(t, errs, 1)
	assert.Contains(t, errs[0], "sources_required: expected int")
}

func TestCheck_GenericInputShapeAccepted(t *testing.T) {
	e := New()

	assert.Empty(t, e.Check("WritingTaskInput", map[string]any{"task": "write", "context": "none"}))
	assert.Equal(t, []string{"topic: is required"}, e.Check("WritingTaskInput", map[string]any{"style": "casual"}))
}

func TestWithContract(t *testing.T) {
	type note struct {
		Text string `json:"text" validate:"required"`
	}
	e := New(WithContract("Note", func() any { return new(note) }))

	assert.True(t, e.Has("Note"))
	assert.Equal(t, []string{"text: is required"}, e.Check("Note", map[string]any{}))
}

func TestValidateValue_FinalResponse(t *testing.T) {
	e := New(WithCorrections(false))

	ok := e.ValidateValue(context.Background(), schema.FinalResponse{
		Content:         "done",
		DepartmentsUsed: []string{"research"},
	}, schema.Final)
	assert.True(t, ok.Valid, ok.Errors)

	bad := e.ValidateValue(context.Background(), schema.FinalResponse{}, schema.Final)
	assert.False(t, bad.Valid)
	assert.Contains(t, bad.Errors, "content: is required")
}
