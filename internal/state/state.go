package state

import (
	"fmt"
	"maps"
	"slices"
	"time"
)

// Defaults applied by New.
const (
	DefaultMaxSteps       = 20
	DefaultTimeoutSeconds = 300
	DefaultMaxRetries     = 3
)

// TaskState is the record threaded through every workflow step.
// It holds only plain data so it can be checkpointed as JSON.
type TaskState struct {
	TaskID           string `json:"task_id"`
	SessionID        string `json:"session_id"`
	OriginalTask     string `json:"original_task"`
	CurrentObjective string `json:"current_objective"`
	Status           Status `json:"status"`

	History        []StepRecord       `json:"history"`
	PartialResults map[string]Payload `json:"partial_results"`
	Context        []ContextMessage   `json:"context"`

	QueryAnalysis   *QueryAnalysis `json:"query_analysis,omitempty"`
	CurrentDecision *Decision      `json:"current_decision,omitempty"`

	AvailableProviders []ProviderInfo `json:"available_providers"`
	AvailableTools     []ProviderInfo `json:"available_tools"`

	Control        ControlBudget `json:"control"`
	HumanInTheLoop *HITLState    `json:"human_in_the_loop,omitempty"`
	ErrorState     *ErrorState   `json:"error_state,omitempty"`
	FinalResponse  *string       `json:"final_response,omitempty"`
}

// Option customizes a state created by New.
type Option func(*TaskState)

// WithMaxSteps overrides the step budget.
func WithMaxSteps(n int) Option {
	return func(s *TaskState) {
		if n > 0 {
			s.Control.MaxSteps = n
		}
	}
}

// WithTimeout overrides the advisory run timeout.
func WithTimeout(seconds int) Option {
	return func(s *TaskState) {
		if seconds > 0 {
			s.Control.TimeoutSeconds = seconds
		}
	}
}

// WithContext seeds prior conversation messages.
func WithContext(msgs ...ContextMessage) Option {
	return func(s *TaskState) {
		s.Context = append(s.Context, msgs...)
	}
}

// New creates the initial state for a task.
func New(taskID, sessionID, task string, opts ...Option) TaskState {
	s := TaskState{
		TaskID:             taskID,
		SessionID:          sessionID,
		OriginalTask:       task,
		CurrentObjective:   task,
		Status:             StatusPending,
		History:            []StepRecord{},
		PartialResults:     map[string]Payload{},
		Context:            []ContextMessage{},
		AvailableProviders: []ProviderInfo{},
		AvailableTools:     []ProviderInfo{},
		Control: ControlBudget{
			MaxSteps:       DefaultMaxSteps,
			CurrentStep:    0,
			IsComplete:     false,
			TimeoutSeconds: DefaultTimeoutSeconds,
			StartedAt:      time.Now().UTC(),
		},
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// Update is a partial change returned by a workflow node.
// Nil fields are left untouched. History and Context are appended,
// PartialResults are merged key by key.
type Update struct {
	Status             *Status
	CurrentObjective   *string
	History            []StepRecord
	PartialResults     map[string]Payload
	Context            []ContextMessage
	QueryAnalysis      *QueryAnalysis
	CurrentDecision    *Decision
	AvailableProviders []ProviderInfo
	AvailableTools     []ProviderInfo
	Control            *ControlBudget
	HumanInTheLoop     *HITLState
	ErrorState         *ErrorState
	ClearError         bool
	FinalResponse      *string
}

// Apply merges u into s. It fails without modifying s if u would append
// a step record numbered below the last one in history.
func (s *TaskState) Apply(u Update) error {
	last := -1
	if n := len(s.History); n > 0 {
		last = s.History[n-1].StepNumber
	}
	for _, rec := range u.History {
		if rec.StepNumber < last {
			return fmt.Errorf("step record %q numbered %d after step %d", rec.NodeName, rec.StepNumber, last)
		}
		last = rec.StepNumber
	}

	if u.Status != nil {
		s.Status = *u.Status
	}
	if u.CurrentObjective != nil {
		s.CurrentObjective = *u.CurrentObjective
	}
	s.History = append(s.History, u.History...)
	if len(u.PartialResults) > 0 {
		if s.PartialResults == nil {
			s.PartialResults = make(map[string]Payload, len(u.PartialResults))
		}
		maps.Copy(s.PartialResults, u.PartialResults)
	}
	s.Context = append(s.Context, u.Context...)
	if u.QueryAnalysis != nil {
		s.QueryAnalysis = u.QueryAnalysis
	}
	if u.CurrentDecision != nil {
		s.CurrentDecision = u.CurrentDecision
	}
	if u.AvailableProviders != nil {
		s.AvailableProviders = u.AvailableProviders
	}
	if u.AvailableTools != nil {
		s.AvailableTools = u.AvailableTools
	}
	if u.Control != nil {
		s.Control = *u.Control
	}
	if u.HumanInTheLoop != nil {
		s.HumanInTheLoop = u.HumanInTheLoop
	}
	if u.ClearError {
		s.ErrorState = nil
	}
	if u.ErrorState != nil {
		s.ErrorState = u.ErrorState
	}
	if u.FinalResponse != nil {
		s.FinalResponse = u.FinalResponse
	}
	return nil
}

// Clone returns a copy of s whose slices, maps and pointers are not shared
// with the original. Provider payloads are copied one level deep.
func (s TaskState) Clone() TaskState {
	cp := s
	cp.History = slices.Clone(s.History)
	cp.Context = slices.Clone(s.Context)
	cp.AvailableProviders = slices.Clone(s.AvailableProviders)
	cp.AvailableTools = slices.Clone(s.AvailableTools)
	if s.PartialResults != nil {
		cp.PartialResults = make(map[string]Payload, len(s.PartialResults))
		for k, v := range s.PartialResults {
			cp.PartialResults[k] = maps.Clone(v)
		}
	}
	if s.QueryAnalysis != nil {
		qa := *s.QueryAnalysis
		qa.RequiredProviders = slices.Clone(qa.RequiredProviders)
		qa.Parameters = maps.Clone(qa.Parameters)
		cp.QueryAnalysis = &qa
	}
	if s.CurrentDecision != nil {
		d := *s.CurrentDecision
		d.ProviderInput = maps.Clone(d.ProviderInput)
		cp.CurrentDecision = &d
	}
	if s.HumanInTheLoop != nil {
		h := *s.HumanInTheLoop
		h.Options = slices.Clone(h.Options)
		cp.HumanInTheLoop = &h
	}
	if s.ErrorState != nil {
		e := *s.ErrorState
		cp.ErrorState = &e
	}
	if s.FinalResponse != nil {
		r := *s.FinalResponse
		cp.FinalResponse = &r
	}
	return cp
}

// ResultKeys returns the provider names present in PartialResults, sorted.
func (s TaskState) ResultKeys() []string {
	return slices.Sorted(maps.Keys(s.PartialResults))
}

// Missing returns the required providers that have not produced a result yet,
// in the order they were required.
func (s TaskState) Missing() []string {
	if s.QueryAnalysis == nil {
		return nil
	}
	var missing []string
	for _, name := range s.QueryAnalysis.RequiredProviders {
		if _, ok := s.PartialResults[name]; !ok && !slices.Contains(missing, name) {
			missing = append(missing, name)
		}
	}
	return missing
}

// Ptr returns a pointer to v. Handy for building Updates.
func Ptr[T any](v T) *T {
	return &v
}
