package workflow

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"

	"github.com/aristath/stepflow/internal/capability"
	"github.com/aristath/stepflow/internal/schema"
	"github.com/aristath/stepflow/internal/state"
	"github.com/aristath/stepflow/internal/validation"
)

// Node names.
const (
	NodeQueryAnalysis = "query_analysis"
	NodeDecision      = "decision"
	NodeRouter        = "router"
	NodeExecution     = "execution"
	NodeValidation    = "validation"
	NodeCollation     = "collation"
	NodeOutput        = "output"
)

// DefaultResponse is the final response of a run that produced no results.
const DefaultResponse = "Task completed successfully."

// Error types recorded in ErrorState.
const (
	ErrTypeRouting   = "RoutingError"
	ErrTypeExecution = "ExecutionError"
	ErrTypeNotFound  = "NotFoundError"
	ErrTypeDisabled  = "DisabledError"
	ErrTypeDecision  = "DecisionError"
)

// Analyzer produces the query analysis for a task.
type Analyzer interface {
	Analyze(ctx context.Context, st state.TaskState) (state.QueryAnalysis, state.StepRecord)
}

// Decider produces one decision per round.
type Decider interface {
	Decide(ctx context.Context, st state.TaskState) (state.Decision, state.StepRecord)
}

// Providers is the capability registry as seen by the workflow.
type Providers interface {
	IsRegistered(name string) bool
	Execute(ctx context.Context, name string, in capability.Input) (capability.Output, error)
	ListAvailable() []state.ProviderInfo
}

// Listing lists descriptors without executing them; tool registries
// satisfy it.
type Listing interface {
	ListAvailable() []state.ProviderInfo
}

// Validator checks the final response.
type Validator interface {
	Validate(ctx context.Context, data map[string]any, contract string) validation.Result
}

// Deps are the collaborators the standard nodes need. Tools and Validator
// are optional.
type Deps struct {
	Analyzer  Analyzer
	Decider   Decider
	Providers Providers
	Tools     Listing
	Validator Validator
	Logger    *zap.Logger
}

type nodes struct {
	Deps
	logger *zap.Logger
}

// New wires the standard orchestration graph:
//
//	query_analysis -> decision -> router -> execution -> validation -> decision
//	                           \-> collation -> output
func New(d Deps) (*Compiled, error) {
	if d.Analyzer == nil || d.Decider == nil || d.Providers == nil {
		return nil, errors.New("workflow needs an analyzer, a decider and providers")
	}
	n := &nodes{Deps: d, logger: d.Logger}
	if n.logger == nil {
		n.logger = zap.NewNop()
	}
	n.logger = n.logger.Named("workflow")

	g := NewGraph()
	for _, nd := range []struct {
		name string
		fn   NodeFunc
	}{
		{NodeQueryAnalysis, n.queryAnalysis},
		{NodeDecision, n.decision},
		{NodeRouter, n.router},
		{NodeExecution, n.execution},
		{NodeValidation, n.validation},
		{NodeCollation, n.collation},
		{NodeOutput, n.output},
	} {
		if err := g.AddNode(nd.name, nd.fn); err != nil {
			return nil, err
		}
	}

	g.SetEntry(NodeQueryAnalysis)
	g.SetTerminal(NodeOutput)
	g.AddEdge(NodeQueryAnalysis, NodeDecision)
	g.AddConditionalEdge(NodeDecision, RouteAfterDecision, NodeRouter, NodeCollation)
	g.AddEdge(NodeRouter, NodeExecution)
	g.AddEdge(NodeExecution, NodeValidation)
	g.AddLoop(NodeValidation, NodeDecision)
	g.AddEdge(NodeCollation, NodeOutput)
	return g.Compile()
}

// RouteAfterDecision sends delegations to the router and every other action
// to collation.
func RouteAfterDecision(st state.TaskState) string {
	if st.CurrentDecision != nil && st.CurrentDecision.Action == state.ActionDelegate {
		return NodeRouter
	}
	return NodeCollation
}

func (n *nodes) queryAnalysis(ctx context.Context, st state.TaskState) (state.Update, error) {
	st.AvailableProviders = n.Providers.ListAvailable()
	st.AvailableTools = []state.ProviderInfo{}
	if n.Tools != nil {
		st.AvailableTools = n.Tools.ListAvailable()
	}

	qa, rec := n.Analyzer.Analyze(ctx, st)
	return state.Update{
		Status:             state.Ptr(state.StatusRunning),
		QueryAnalysis:      &qa,
		AvailableProviders: st.AvailableProviders,
		AvailableTools:     st.AvailableTools,
		History:            []state.StepRecord{rec},
	}, nil
}

func (n *nodes) decision(ctx context.Context, st state.TaskState) (state.Update, error) {
	d, rec := n.Decider.Decide(ctx, st)

	control := st.Control
	control.CurrentStep++
	rec.StepNumber = control.CurrentStep

	u := state.Update{
		CurrentDecision: &d,
		Control:         &control,
		History:         []state.StepRecord{rec},
	}

	switch d.Action {
	case state.ActionAskHuman:
		n.logger.Info("Human input requested, folding into collation", zap.String("task_id", st.TaskID))
		u.Status = state.Ptr(state.StatusWaitingHuman)
		u.HumanInTheLoop = &state.HITLState{
			Pending: true,
			Prompt:  d.Reasoning,
			Options: stringList(d.ProviderInput["options"]),
		}
	case state.ActionError:
		n.logger.Warn("Decision reported an error", zap.String("task_id", st.TaskID), zap.String("reasoning", d.Reasoning))
		u.ErrorState = &state.ErrorState{
			ErrorType:    ErrTypeDecision,
			ErrorMessage: d.Reasoning,
			MaxRetries:   maxRetries(st),
		}
	}
	return u, nil
}

func (n *nodes) router(_ context.Context, st state.TaskState) (state.Update, error) {
	start := time.Now()
	var target string
	var input state.Payload
	if d := st.CurrentDecision; d != nil {
		target, input = d.TargetProvider, d.ProviderInput
	}

	rec := state.StepRecord{
		StepNumber: st.Control.CurrentStep,
		StepType:   state.StepRouting,
		NodeName:   NodeRouter,
		Input:      state.StepData{Provider: target, ProviderInput: input},
		Timestamp:  start.UTC(),
	}

	var problem string
	switch {
	case target == "":
		problem = "no target provider specified in decision"
	case !n.Providers.IsRegistered(target):
		problem = "unknown provider: " + target
	}

	if problem != "" {
		n.logger.Error("Routing failed", zap.String("task_id", st.TaskID), zap.String("provider", target), zap.String("reason", problem))
		rec.StepType = state.StepError
		rec.Error = problem
		rec.DurationMS = time.Since(start).Milliseconds()
		return state.Update{
			ErrorState: &state.ErrorState{
				ErrorType:    ErrTypeRouting,
				ErrorMessage: problem,
				RetryCount:   retryCount(st, ErrTypeRouting),
				MaxRetries:   maxRetries(st),
			},
			History: []state.StepRecord{rec},
		}, nil
	}

	rec.Output = state.StepData{Provider: target, Outcome: "routed"}
	rec.DurationMS = time.Since(start).Milliseconds()
	return state.Update{History: []state.StepRecord{rec}}, nil
}

func (n *nodes) execution(ctx context.Context, st state.TaskState) (state.Update, error) {
	start := time.Now()
	var target string
	var input state.Payload
	if d := st.CurrentDecision; d != nil {
		target, input = d.TargetProvider, d.ProviderInput
	}
	if len(input) == 0 {
		input = state.Payload{"task": st.OriginalTask, "context": st.CurrentObjective}
	}

	rec := state.StepRecord{
		StepNumber: st.Control.CurrentStep,
		StepType:   state.StepExecution,
		NodeName:   NodeExecution,
		Input:      state.StepData{Provider: target, ProviderInput: input},
		Timestamp:  start.UTC(),
		ModelUsed:  target,
	}

	n.logger.Info("Executing provider", zap.String("task_id", st.TaskID), zap.String("provider", target))
	out, err := n.Providers.Execute(ctx, target, input)
	rec.DurationMS = time.Since(start).Milliseconds()

	if err != nil {
		if ctx.Err() != nil {
			return state.Update{}, fmt.Errorf("executing %q: %w", target, ctx.Err())
		}
		errType := errorType(err)
		rec.Error = err.Error()
		rec.Output = state.StepData{Provider: target, Outcome: "failed"}
		u := state.Update{
			ErrorState: &state.ErrorState{
				ErrorType:    errType,
				ErrorMessage: err.Error(),
				RetryCount:   retryCount(st, errType),
				MaxRetries:   maxRetries(st),
			},
			History: []state.StepRecord{rec},
		}
		// A failed provider still counts as visited so the fallback moves on
		if target != "" {
			u.PartialResults = map[string]state.Payload{
				target: {"status": "failed", "error": err.Error()},
			}
		}
		return u, nil
	}

	rec.Output = state.StepData{Provider: target, Result: out, Outcome: "completed"}
	return state.Update{
		PartialResults: map[string]state.Payload{target: out},
		History:        []state.StepRecord{rec},
		ClearError:     true,
	}, nil
}

// validation records every result as valid; provider output is checked at
// the registry boundary instead.
func (n *nodes) validation(_ context.Context, st state.TaskState) (state.Update, error) {
	return state.Update{
		History: []state.StepRecord{{
			StepNumber: st.Control.CurrentStep,
			StepType:   state.StepValidation,
			NodeName:   NodeValidation,
			Input:      state.StepData{ResultKeys: st.ResultKeys()},
			Output:     state.StepData{Valid: state.Ptr(true)},
			Timestamp:  time.Now().UTC(),
		}},
	}, nil
}

func (n *nodes) collation(_ context.Context, st state.TaskState) (state.Update, error) {
	start := time.Now()
	response := Collate(st)

	control := st.Control
	control.IsComplete = true

	n.logger.Info("Collated final response", zap.String("task_id", st.TaskID), zap.Int("length", len(response)))
	return state.Update{
		FinalResponse: &response,
		Status:        state.Ptr(state.StatusCompleted),
		Control:       &control,
		History: []state.StepRecord{{
			StepNumber: st.Control.CurrentStep,
			StepType:   state.StepCollation,
			NodeName:   NodeCollation,
			Input:      state.StepData{ResultKeys: st.ResultKeys()},
			Output:     state.StepData{ResponseLength: len(response)},
			Timestamp:  start.UTC(),
			DurationMS: time.Since(start).Milliseconds(),
		}},
	}, nil
}

func (n *nodes) output(ctx context.Context, st state.TaskState) (state.Update, error) {
	start := time.Now()
	response := DefaultResponse
	if st.FinalResponse != nil {
		response = *st.FinalResponse
	}

	rec := state.StepRecord{
		StepNumber: st.Control.CurrentStep,
		StepType:   state.StepOutput,
		NodeName:   NodeOutput,
		Input:      state.StepData{ResultKeys: st.ResultKeys()},
		Output:     state.StepData{ResponseLength: len(response)},
		Timestamp:  start.UTC(),
	}

	if n.Validator != nil {
		res := n.Validator.Validate(ctx, FinalDocument(st, response), schema.Final)
		rec.Output.Valid = state.Ptr(res.Valid)
		rec.Output.Errors = res.Errors
		if !res.Valid {
			n.logger.Warn("Final response failed validation",
				zap.String("task_id", st.TaskID), zap.Strings("errors", res.Errors))
		} else if content, ok := res.Data["content"].(string); ok && content != "" {
			response = content
		}
	}

	control := st.Control
	control.IsComplete = true
	rec.DurationMS = time.Since(start).Milliseconds()

	n.logger.Info("Task completed", zap.String("task_id", st.TaskID), zap.Int("response_length", len(response)))
	return state.Update{
		FinalResponse: &response,
		Status:        state.Ptr(state.StatusCompleted),
		Control:       &control,
		History:       []state.StepRecord{rec},
	}, nil
}

// Collate joins each provider's result in the order the providers first ran.
// A result contributes its summary, its result field or its JSON encoding.
func Collate(st state.TaskState) string {
	var parts []string
	for _, name := range resultOrder(st) {
		result := st.PartialResults[name]
		var body string
		switch {
		case result["summary"] != nil:
			body = fmt.Sprint(result["summary"])
		case result["result"] != nil:
			body = fmt.Sprint(result["result"])
		default:
			data, err := json.MarshalIndent(result, "", "  ")
			if err != nil {
				body = fmt.Sprint(result)
			} else {
				body = string(data)
			}
		}
		parts = append(parts, fmt.Sprintf("**%s Result:**\n%s", title(name), body))
	}
	if len(parts) == 0 {
		return DefaultResponse
	}
	return strings.Join(parts, "\n\n")
}

// FinalDocument shapes the run's answer as a FinalResponse payload.
func FinalDocument(st state.TaskState, response string) map[string]any {
	used := resultOrder(st)
	if used == nil {
		used = []string{}
	}
	return map[string]any{
		"content":          response,
		"departments_used": used,
		"execution_summary": map[string]any{
			"steps":       st.Control.CurrentStep,
			"max_steps":   st.Control.MaxSteps,
			"history":     len(st.History),
			"duration_ms": time.Since(st.Control.StartedAt).Milliseconds(),
		},
	}
}

// resultOrder lists result keys by first execution, then any others sorted.
func resultOrder(st state.TaskState) []string {
	var order []string
	for _, rec := range st.History {
		name := rec.Input.Provider
		if rec.StepType != state.StepExecution || name == "" || slices.Contains(order, name) {
			continue
		}
		if _, ok := st.PartialResults[name]; ok {
			order = append(order, name)
		}
	}
	for _, name := range st.ResultKeys() {
		if !slices.Contains(order, name) {
			order = append(order, name)
		}
	}
	return order
}

func errorType(err error) string {
	var notFound *capability.NotFoundError
	var disabled *capability.DisabledError
	switch {
	case errors.As(err, &notFound):
		return ErrTypeNotFound
	case errors.As(err, &disabled):
		return ErrTypeDisabled
	}
	return ErrTypeExecution
}

// retryCount counts consecutive failures of the same type. It is recorded
// for callers; no edge consults it.
func retryCount(st state.TaskState, errType string) int {
	if st.ErrorState != nil && st.ErrorState.ErrorType == errType {
		return st.ErrorState.RetryCount + 1
	}
	return 0
}

func maxRetries(st state.TaskState) int {
	if st.ErrorState != nil && st.ErrorState.MaxRetries > 0 {
		return st.ErrorState.MaxRetries
	}
	return state.DefaultMaxRetries
}

func title(name string) string {
	r := []rune(name)
	if len(r) == 0 {
		return name
	}
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}

func stringList(v any) []string {
	items, ok := v.([]any)
	if !ok {
		if ss, ok := v.([]string); ok {
			return ss
		}
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		out = append(out, fmt.Sprint(item))
	}
	return out
}
