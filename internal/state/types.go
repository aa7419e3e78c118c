package state

import (
	"errors"
	"fmt"
	"time"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending      Status = "pending"
	StatusRunning      Status = "running"
	StatusWaitingHuman Status = "waiting_human"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusWaitingHuman, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// StepType tags a StepRecord with the kind of work it captures.
type StepType string

const (
	StepQueryAnalysis StepType = "query_analysis"
	StepDecision      StepType = "decision"
	StepRouting       StepType = "routing"
	StepExecution     StepType = "execution"
	StepValidation    StepType = "validation"
	StepHumanInput    StepType = "human_input"
	StepError         StepType = "error"
	StepCollation     StepType = "collation"
	StepOutput        StepType = "output"
)

// Role identifies the author of a context message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Complexity levels assigned by query analysis.
type Complexity string

const (
	ComplexitySimple   Complexity = "simple"
	ComplexityModerate Complexity = "moderate"
	ComplexityComplex  Complexity = "complex"
)

// Valid reports whether c is a known complexity level.
func (c Complexity) Valid() bool {
	switch c {
	case ComplexitySimple, ComplexityModerate, ComplexityComplex:
		return true
	}
	return false
}

// WorkflowPattern describes how required providers are expected to cooperate.
type WorkflowPattern string

const (
	PatternSingleProvider WorkflowPattern = "single_provider"
	PatternSequential     WorkflowPattern = "sequential"
	PatternParallel       WorkflowPattern = "parallel"
	PatternIterative      WorkflowPattern = "iterative"
)

// Valid reports whether p is a known workflow pattern.
func (p WorkflowPattern) Valid() bool {
	switch p {
	case PatternSingleProvider, PatternSequential, PatternParallel, PatternIterative:
		return true
	}
	return false
}

// Payload is a provider input or output document.
type Payload = map[string]any

// StepData is the snapshot stored on either side of a StepRecord.
// Which members are populated depends on the record's StepType.
type StepData struct {
	// query_analysis, decision
	Task     string         `json:"task,omitempty"`
	Analysis *QueryAnalysis `json:"analysis,omitempty"`
	Fallback bool           `json:"fallback,omitempty"`

	// decision
	Step            int       `json:"step,omitempty"`
	MaxSteps        int       `json:"max_steps,omitempty"`
	BudgetExhausted bool      `json:"max_steps_reached,omitempty"`
	Decision        *Decision `json:"decision,omitempty"`

	// routing, execution
	Provider      string  `json:"provider,omitempty"`
	ProviderInput Payload `json:"provider_input,omitempty"`
	Result        Payload `json:"result,omitempty"`
	Outcome       string  `json:"status,omitempty"`

	// validation, collation, output
	ResultKeys     []string `json:"result_keys,omitempty"`
	Valid          *bool    `json:"valid,omitempty"`
	Errors         []string `json:"errors,omitempty"`
	ResponseLength int      `json:"final_response_length,omitempty"`
}

// StepRecord is one entry in the append-only execution history.
type StepRecord struct {
	StepNumber int       `json:"step_number"`
	StepType   StepType  `json:"step_type"`
	NodeName   string    `json:"node_name"`
	Input      StepData  `json:"input_data"`
	Output     StepData  `json:"output_data"`
	Timestamp  time.Time `json:"timestamp"`
	DurationMS int64     `json:"duration_ms"`
	ModelUsed  string    `json:"model_used,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// Duration returns the recorded duration.
func (r StepRecord) Duration() time.Duration {
	return time.Duration(r.DurationMS) * time.Millisecond
}

// ContextMessage is a message in the conversation context.
type ContextMessage struct {
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
}

// QueryAnalysis is the structured reading of the user task.
type QueryAnalysis struct {
	Intent            string          `json:"intent" validate:"required"`
	RequiredProviders []string        `json:"required_providers" validate:"required,min=1,dive,required"`
	Complexity        Complexity      `json:"complexity" validate:"required,oneof=simple moderate complex"`
	WorkflowPattern   WorkflowPattern `json:"workflow_pattern" validate:"required,oneof=single_provider sequential parallel iterative"`
	Parameters        map[string]any  `json:"parameters,omitempty"`
}

// Validate checks the enums and that at least one provider is required.
func (q QueryAnalysis) Validate() error {
	var errs []error
	if q.Intent == "" {
		errs = append(errs, errors.New("intent is required"))
	}
	if len(q.RequiredProviders) == 0 {
		errs = append(errs, errors.New("required_providers must name at least one provider"))
	}
	if !q.Complexity.Valid() {
		errs = append(errs, fmt.Errorf("complexity %q is not one of simple, moderate, complex", q.Complexity))
	}
	if !q.WorkflowPattern.Valid() {
		errs = append(errs, fmt.Errorf("workflow_pattern %q is not one of single_provider, sequential, parallel, iterative", q.WorkflowPattern))
	}
	return errors.Join(errs...)
}

// Requires reports whether name is among the required providers.
func (q *QueryAnalysis) Requires(name string) bool {
	if q == nil {
		return false
	}
	for _, p := range q.RequiredProviders {
		if p == name {
			return true
		}
	}
	return false
}

// ControlBudget bounds the number of decision rounds.
type ControlBudget struct {
	MaxSteps       int       `json:"max_steps"`
	CurrentStep    int       `json:"current_step"`
	IsComplete     bool      `json:"is_complete"`
	TimeoutSeconds int       `json:"timeout_seconds"`
	StartedAt      time.Time `json:"started_at"`
}

// Exhausted reports whether the step budget has been used up.
func (c ControlBudget) Exhausted() bool {
	return c.CurrentStep >= c.MaxSteps
}

// HITLState tracks a pending request for human input.
type HITLState struct {
	Pending     bool       `json:"pending"`
	Prompt      string     `json:"prompt"`
	Options     []string   `json:"options,omitempty"`
	Response    string     `json:"response,omitempty"`
	RespondedAt *time.Time `json:"responded_at,omitempty"`
}

// ErrorState records the last failure seen by the workflow.
type ErrorState struct {
	ErrorType        string `json:"error_type"`
	ErrorMessage     string `json:"error_message"`
	RetryCount       int    `json:"retry_count"`
	MaxRetries       int    `json:"max_retries"`
	FallbackProvider string `json:"fallback_provider,omitempty"`
}

// ProviderInfo is the plain-data listing of a registered provider.
type ProviderInfo struct {
	Name           string `json:"name"`
	Description    string `json:"description"`
	InputContract  string `json:"input_contract,omitempty"`
	OutputContract string `json:"output_contract,omitempty"`
	Enabled        bool   `json:"enabled"`
}
