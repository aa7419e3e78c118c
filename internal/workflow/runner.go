package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/aristath/stepflow/internal/events"
	"github.com/aristath/stepflow/internal/state"
)

// ErrTransitionLimit is returned when a run makes more node transitions
// than its step budget allows for.
var ErrTransitionLimit = errors.New("transition limit exceeded")

// ErrTypeAborted is the ErrorState type of a run that did not finish.
const ErrTypeAborted = "RunAborted"

// Checkpointer persists state snapshots after each node.
type Checkpointer interface {
	SaveCheckpoint(ctx context.Context, st state.TaskState) error
}

// Runner drives compiled graphs one node at a time.
type Runner struct {
	graph  *Compiled
	bus    *events.Bus
	store  Checkpointer
	logger *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithBus publishes run and node events to bus.
func WithBus(bus *events.Bus) RunnerOption {
	return func(r *Runner) { r.bus = bus }
}

// WithCheckpointer saves the state after every node.
func WithCheckpointer(c Checkpointer) RunnerOption {
	return func(r *Runner) { r.store = c }
}

// WithLogger sets the runner logger.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a runner for g.
func NewRunner(g *Compiled, opts ...RunnerOption) *Runner {
	r := &Runner{graph: g}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	r.logger = r.logger.Named("runner")
	return r
}

// TransitionLimit is the most node transitions a run with maxSteps may make.
// A round is at most four transitions; the rest covers analysis and output.
func TransitionLimit(maxSteps int) int {
	return max(maxSteps, 1)*4 + 8
}

// Run drives st from the entry node to the terminal node and returns the
// final state. It only fails when ctx is done, a node returns an error or the
// transition limit is hit; the returned state is then marked failed.
func (r *Runner) Run(ctx context.Context, st state.TaskState) (state.TaskState, error) {
	start := time.Now()
	st = st.Clone()
	log := r.logger.With(zap.String("task_id", st.TaskID))

	log.Info("Starting run", zap.Int("max_steps", st.Control.MaxSteps))
	r.publish(events.TopicRun, events.RunStartedEvent{
		ID:        st.TaskID,
		Task:      st.OriginalTask,
		MaxSteps:  st.Control.MaxSteps,
		Timestamp: time.Now(),
	})

	limit := TransitionLimit(st.Control.MaxSteps)
	node := r.graph.Entry()
	for transitions := 0; ; transitions++ {
		if err := ctx.Err(); err != nil {
			return r.fail(ctx, st, start, fmt.Errorf("before %s: %w", node, err))
		}
		if transitions > limit {
			return r.fail(ctx, st, start, fmt.Errorf("%w: %d transitions", ErrTransitionLimit, transitions))
		}

		nodeStart := time.Now()
		u, err := r.graph.nodes[node](ctx, st.Clone())
		if err != nil {
			return r.fail(ctx, st, start, fmt.Errorf("node %s: %w", node, err))
		}
		if err := st.Apply(u); err != nil {
			return r.fail(ctx, st, start, fmt.Errorf("applying %s: %w", node, err))
		}

		r.observe(node, st, u, time.Since(nodeStart))
		r.checkpoint(ctx, st)

		if node == r.graph.Terminal() {
			break
		}
		next, err := r.graph.Next(node, st)
		if err != nil {
			return r.fail(ctx, st, start, err)
		}
		node = next
	}

	response := ""
	if st.FinalResponse != nil {
		response = *st.FinalResponse
	}
	log.Info("Run completed",
		zap.Int("steps", st.Control.CurrentStep),
		zap.Duration("elapsed", time.Since(start)))
	r.publish(events.TopicRun, events.RunCompletedEvent{
		ID:            st.TaskID,
		Steps:         st.Control.CurrentStep,
		FinalResponse: response,
		Duration:      time.Since(start),
		Timestamp:     time.Now(),
	})
	return st, nil
}

func (r *Runner) fail(ctx context.Context, st state.TaskState, start time.Time, err error) (state.TaskState, error) {
	r.logger.Error("Run failed", zap.String("task_id", st.TaskID), zap.Error(err))

	st.Status = state.StatusFailed
	retries := state.DefaultMaxRetries
	if st.ErrorState != nil && st.ErrorState.MaxRetries > 0 {
		retries = st.ErrorState.MaxRetries
	}
	st.ErrorState = &state.ErrorState{
		ErrorType:    ErrTypeAborted,
		ErrorMessage: err.Error(),
		MaxRetries:   retries,
	}

	// The caller's context may be the reason we failed
	r.checkpoint(context.WithoutCancel(ctx), st)
	r.publish(events.TopicRun, events.RunFailedEvent{
		ID:        st.TaskID,
		Err:       err,
		Duration:  time.Since(start),
		Timestamp: time.Now(),
	})
	return st, err
}

// observe publishes the node event plus decision and provider events taken
// from the records the node appended.
func (r *Runner) observe(node string, st state.TaskState, u state.Update, elapsed time.Duration) {
	if r.bus == nil {
		return
	}
	now := time.Now()
	for _, rec := range u.History {
		switch {
		case rec.StepType == state.StepDecision && rec.Output.Decision != nil:
			r.bus.Publish(events.TopicNode, events.DecisionMadeEvent{
				ID:        st.TaskID,
				Step:      rec.StepNumber,
				Decision:  *rec.Output.Decision,
				Model:     rec.ModelUsed,
				Fallback:  rec.Output.Fallback,
				Timestamp: now,
			})
		case rec.StepType == state.StepExecution:
			r.bus.Publish(events.TopicNode, events.ProviderExecutedEvent{
				ID:        st.TaskID,
				Provider:  rec.Input.Provider,
				Step:      rec.StepNumber,
				Success:   rec.Error == "",
				Error:     rec.Error,
				Duration:  rec.Duration(),
				Timestamp: now,
			})
		}
	}
	r.bus.Publish(events.TopicNode, events.NodeCompletedEvent{
		ID:        st.TaskID,
		Node:      node,
		Step:      st.Control.CurrentStep,
		MaxSteps:  st.Control.MaxSteps,
		Status:    st.Status,
		Duration:  elapsed,
		Timestamp: now,
	})
}

func (r *Runner) publish(topic string, e events.Event) {
	if r.bus != nil {
		r.bus.Publish(topic, e)
	}
}

// checkpoint failures are logged; they never stop a run.
func (r *Runner) checkpoint(ctx context.Context, st state.TaskState) {
	if r.store == nil {
		return
	}
	if err := r.store.SaveCheckpoint(ctx, st); err != nil {
		r.logger.Warn("Checkpoint failed", zap.String("task_id", st.TaskID), zap.Error(err))
	}
}
