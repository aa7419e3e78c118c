// Package decision chooses the next workflow action. It asks the reasoning
// service first and falls back to a deterministic heuristic whenever the
// service is unavailable or its reply is unusable.
package decision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aristath/stepflow/internal/reasoning"
	"github.com/aristath/stepflow/internal/state"
	"github.com/aristath/stepflow/internal/validation"
	"github.com/aristath/stepflow/internal/window"
)

// Fallback provider input for the research department.
const (
	ResearchDepth           = "standard"
	ResearchSourcesRequired = 5
	FallbackConfidence      = 0.5
)

// ReasonBudgetExhausted is the reasoning attached to forced completion.
const ReasonBudgetExhausted = "step budget exhausted"

const taskPreview = 100

// Engine produces one Decision per call.
type Engine struct {
	client  reasoning.Client
	builder *window.Builder
	logger  *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithBuilder sets the context window builder used for the user prompt.
func WithBuilder(b *window.Builder) Option {
	return func(e *Engine) { e.builder = b }
}

// WithLogger sets the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates a decision engine around client. A nil client always
// takes the heuristic path.
func NewEngine(client reasoning.Client, opts ...Option) *Engine {
	e := &Engine{client: client}
	for _, opt := range opts {
		opt(e)
	}
	if e.builder == nil {
		e.builder = window.NewBuilder()
	}
	if e.logger == nil {
		e.logger = zap.NewNop()
	}
	e.logger = e.logger.Named("decision")
	return e
}

// Decide returns the next action for st and the StepRecord describing it.
// The record is numbered with the round the decision opens, that is
// st.Control.CurrentStep+1. Decide never fails: every error inside is
// folded into the heuristic fallback and noted on the record.
func (e *Engine) Decide(ctx context.Context, st state.TaskState) (state.Decision, state.StepRecord) {
	start := time.Now()
	step, maxSteps := st.Control.CurrentStep, st.Control.MaxSteps

	rec := state.StepRecord{
		StepNumber: step + 1,
		StepType:   state.StepDecision,
		NodeName:   "decision",
		Timestamp:  start.UTC(),
	}

	if st.Control.Exhausted() {
		e.logger.Warn("Step budget exhausted, forcing completion",
			zap.String("task_id", st.TaskID), zap.Int("step", step), zap.Int("max_steps", maxSteps))
		d := state.Decision{
			Action:     state.ActionComplete,
			Reasoning:  ReasonBudgetExhausted,
			Confidence: 1.0,
		}
		rec.Input = state.StepData{Step: step, MaxSteps: maxSteps, BudgetExhausted: true}
		rec.Output = state.StepData{Decision: &d}
		rec.DurationMS = time.Since(start).Milliseconds()
		return d, rec
	}

	rec.Input = state.StepData{Task: preview(st.OriginalTask), Step: step, MaxSteps: maxSteps}
	if e.client != nil {
		rec.ModelUsed = e.client.Model()
	}

	d, err := e.ask(ctx, st)
	if err != nil {
		e.logger.Warn("Reasoning decision failed, using fallback",
			zap.String("task_id", st.TaskID), zap.Error(err))
		d = Fallback(st)
		rec.Error = err.Error()
		rec.Output.Fallback = true
	}

	e.logger.Info("Decision made",
		zap.String("task_id", st.TaskID),
		zap.String("action", string(d.Action)),
		zap.String("target", d.TargetProvider),
		zap.Float64("confidence", d.Confidence),
		zap.Bool("fallback", err != nil))

	rec.Output.Decision = &d
	rec.DurationMS = time.Since(start).Milliseconds()
	return d, rec
}

func (e *Engine) ask(ctx context.Context, st state.TaskState) (state.Decision, error) {
	if e.client == nil {
		return state.Decision{}, errors.New("no reasoning client configured")
	}
	system := SystemPrompt(st.AvailableProviders, st.AvailableTools)
	user := e.builder.UserPrompt(st)

	text, err := e.client.Invoke(ctx, system, user)
	if err != nil {
		return state.Decision{}, fmt.Errorf("invoking %s: %w", e.client.Model(), err)
	}
	return ParseDecision(text)
}

// ParseDecision reads a Decision from reasoning output: a strict decode,
// then the embedded {...} object, then the Decision contract check.
func ParseDecision(text string) (state.Decision, error) {
	d, err := validation.Decode[state.Decision](text)
	if err != nil {
		return state.Decision{}, &ParseError{Text: text, Err: err}
	}
	if err := d.Validate(); err != nil {
		return state.Decision{}, &ParseError{Text: text, Err: err}
	}
	return d, nil
}

// Fallback delegates to the first required provider without a result, or
// completes when every required provider has one. Without an analysis the
// research provider is assumed required; an analysis with an empty list
// requires nothing.
func Fallback(st state.TaskState) state.Decision {
	required := []string{DefaultProvider}
	if st.QueryAnalysis != nil {
		required = st.QueryAnalysis.RequiredProviders
	}

	for _, name := range required {
		if _, done := st.PartialResults[name]; done {
			continue
		}
		return state.Decision{
			Action:         state.ActionDelegate,
			TargetProvider: name,
			ProviderInput:  FallbackInput(name, st),
			Reasoning:      "Fallback: delegating to " + name,
			Confidence:     FallbackConfidence,
		}
	}

	return state.Decision{
		Action:     state.ActionComplete,
		Reasoning:  "Fallback: all required providers have results",
		Confidence: FallbackConfidence,
	}
}

// FallbackInput builds the provider input used by heuristic delegation.
func FallbackInput(provider string, st state.TaskState) state.Payload {
	if provider == DefaultProvider {
		return state.Payload{
			"query":            st.OriginalTask,
			"depth":            ResearchDepth,
			"sources_required": ResearchSourcesRequired,
		}
	}
	return state.Payload{
		"task":    st.OriginalTask,
		"context": st.CurrentObjective,
	}
}

func preview(s string) string {
	r := []rune(s)
	if len(r) <= taskPreview {
		return s
	}
	return string(r[:taskPreview])
}
