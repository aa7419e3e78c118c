package decision

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"go.uber.org/zap"

	"github.com/aristath/stepflow/internal/reasoning"
	"github.com/aristath/stepflow/internal/state"
	"github.com/aristath/stepflow/internal/validation"
)

// DefaultProvider is required when nothing better is known.
const DefaultProvider = "research"

const fallbackIntent = "general_query"

// Analyzer reads the user task into a QueryAnalysis.
type Analyzer struct {
	client reasoning.Client
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer. A nil client makes every analysis fall back.
func NewAnalyzer(client reasoning.Client, logger *zap.Logger) *Analyzer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Analyzer{client: client, logger: logger.Named("analyzer")}
}

// FallbackAnalysis is used whenever the reasoning service cannot produce a
// usable analysis.
func FallbackAnalysis() state.QueryAnalysis {
	return state.QueryAnalysis{
		Intent:            fallbackIntent,
		RequiredProviders: []string{DefaultProvider},
		Complexity:        state.ComplexitySimple,
		WorkflowPattern:   state.PatternSingleProvider,
		Parameters:        map[string]any{},
	}
}

// Analyze never fails: any error is recorded on the returned StepRecord and
// the fallback analysis is used instead.
func (a *Analyzer) Analyze(ctx context.Context, st state.TaskState) (state.QueryAnalysis, state.StepRecord) {
	start := time.Now()
	a.logger.Info("Analyzing query", zap.String("task_id", st.TaskID))

	qa, err := a.analyze(ctx, st)
	rec := state.StepRecord{
		StepNumber: st.Control.CurrentStep,
		StepType:   state.StepQueryAnalysis,
		NodeName:   "query_analysis",
		Input:      state.StepData{Task: st.OriginalTask},
		Timestamp:  start.UTC(),
	}
	if a.client != nil {
		rec.ModelUsed = a.client.Model()
	}

	if err != nil {
		a.logger.Warn("Query analysis failed, using fallback",
			zap.String("task_id", st.TaskID), zap.Error(err))
		qa = FallbackAnalysis()
		rec.Error = err.Error()
		rec.Output.Fallback = true
	} else {
		a.logger.Info("Query analysis complete",
			zap.String("intent", qa.Intent),
			zap.Strings("providers", qa.RequiredProviders),
			zap.String("complexity", string(qa.Complexity)))
	}

	rec.Output.Analysis = &qa
	rec.DurationMS = time.Since(start).Milliseconds()
	return qa, rec
}

func (a *Analyzer) analyze(ctx context.Context, st state.TaskState) (state.QueryAnalysis, error) {
	if a.client == nil {
		return state.QueryAnalysis{}, errors.New("no reasoning client configured")
	}

	text, err := a.client.Invoke(ctx, analyzerPrompt(st.AvailableProviders), "Task: "+st.OriginalTask)
	if err != nil {
		return state.QueryAnalysis{}, err
	}

	qa, err := parseAnalysis(text)
	if err != nil {
		return state.QueryAnalysis{}, err
	}

	if known := enabledNames(st.AvailableProviders); len(known) > 0 {
		kept := slices.DeleteFunc(slices.Clone(qa.RequiredProviders), func(name string) bool {
			return !slices.Contains(known, name)
		})
		if len(kept) < len(qa.RequiredProviders) {
			a.logger.Warn("Dropping unknown providers from analysis",
				zap.Strings("requested", qa.RequiredProviders), zap.Strings("kept", kept))
		}
		if len(kept) == 0 {
			return state.QueryAnalysis{}, fmt.Errorf("none of %v is an available provider", qa.RequiredProviders)
		}
		qa.RequiredProviders = kept
	}
	if qa.Parameters == nil {
		qa.Parameters = map[string]any{}
	}
	return qa, nil
}

// parseAnalysis decodes and validates a QueryAnalysis, tolerating fenced
// code blocks and surrounding prose.
func parseAnalysis(text string) (state.QueryAnalysis, error) {
	qa, err := validation.Decode[state.QueryAnalysis](text)
	if err != nil {
		return state.QueryAnalysis{}, &ParseError{Text: text, Err: err}
	}
	if err := qa.Validate(); err != nil {
		return state.QueryAnalysis{}, &ParseError{Text: text, Err: err}
	}
	return qa, nil
}

func enabledNames(infos []state.ProviderInfo) []string {
	var names []string
	for _, info := range infos {
		if info.Enabled {
			names = append(names, info.Name)
		}
	}
	return names
}
