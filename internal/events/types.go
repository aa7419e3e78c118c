package events

import (
	"time"

	"github.com/aristath/stepflow/internal/state"
)

// Event is the base interface for all events.
type Event interface {
	EventType() string
	TaskID() string
}

// Topics
const (
	TopicRun  = "run"
	TopicNode = "node"
)

// Event types
const (
	EventTypeRunStarted       = "run.started"
	EventTypeRunCompleted     = "run.completed"
	EventTypeRunFailed        = "run.failed"
	EventTypeNodeCompleted    = "node.completed"
	EventTypeDecisionMade     = "node.decision"
	EventTypeProviderExecuted = "node.provider"
)

// RunStartedEvent is published when a workflow run begins.
type RunStartedEvent struct {
	ID        string
	Task      string
	MaxSteps  int
	Timestamp time.Time
}

func (e RunStartedEvent) EventType() string { return EventTypeRunStarted }
func (e RunStartedEvent) TaskID() string    { return e.ID }

// NodeCompletedEvent is published after every node, with the budget as it
// stands once the node's update is applied.
type NodeCompletedEvent struct {
	ID        string
	Node      string
	Step      int
	MaxSteps  int
	Status    state.Status
	Duration  time.Duration
	Timestamp time.Time
}

func (e NodeCompletedEvent) EventType() string { return EventTypeNodeCompleted }
func (e NodeCompletedEvent) TaskID() string    { return e.ID }

// DecisionMadeEvent is published once per decision round.
type DecisionMadeEvent struct {
	ID        string
	Step      int
	Decision  state.Decision
	Model     string
	Fallback  bool
	Timestamp time.Time
}

func (e DecisionMadeEvent) EventType() string { return EventTypeDecisionMade }
func (e DecisionMadeEvent) TaskID() string    { return e.ID }

// ProviderExecutedEvent is published after each provider call.
type ProviderExecutedEvent struct {
	ID        string
	Provider  string
	Step      int
	Success   bool
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

func (e ProviderExecutedEvent) EventType() string { return EventTypeProviderExecuted }
func (e ProviderExecutedEvent) TaskID() string    { return e.ID }

// RunCompletedEvent is published when a run reaches its terminal node.
type RunCompletedEvent struct {
	ID            string
	Steps         int
	FinalResponse string
	Duration      time.Duration
	Timestamp     time.Time
}

func (e RunCompletedEvent) EventType() string { return EventTypeRunCompleted }
func (e RunCompletedEvent) TaskID() string    { return e.ID }

// RunFailedEvent is published when a run aborts.
type RunFailedEvent struct {
	ID        string
	Err       error
	Duration  time.Duration
	Timestamp time.Time
}

func (e RunFailedEvent) EventType() string { return EventTypeRunFailed }
func (e RunFailedEvent) TaskID() string    { return e.ID }
