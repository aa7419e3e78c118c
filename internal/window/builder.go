// Package window builds the bounded prompt the decision engine sends to the
// reasoning service.
package window

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/aristath/stepflow/internal/state"
)

// Default budget in estimated tokens.
const (
	DefaultMaxTokens      = 8192
	DefaultReservedTokens = 2048
)

// Per-section caps in estimated tokens.
const (
	taskTokens      = 500
	objectiveTokens = 300
	resultsTokens   = 2000
	historyTokens   = 1000
	messagesTokens  = 2000
)

const (
	recentHistory  = 3
	recentMessages = 5
	resultChars    = 200
	messageChars   = 100
)

// Placeholders used for empty sections.
const (
	NoResults  = "(No completed work yet)"
	NoHistory  = "(No history yet)"
	NoMessages = "(No additional context)"
)

// Sections is the built context, one string per prompt section.
type Sections struct {
	Task      string
	Objective string
	Results   string
	History   string
	Messages  string
}

// Tokens returns the estimated token total across all sections.
func (s Sections) Tokens() int {
	return EstimateTokens(s.Task) + EstimateTokens(s.Objective) + EstimateTokens(s.Results) +
		EstimateTokens(s.History) + EstimateTokens(s.Messages)
}

// EstimateTokens approximates a token count as one token per four bytes.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Builder turns a TaskState into bounded prompt sections. It holds only
// configuration and is safe for concurrent use.
type Builder struct {
	maxTokens      int
	reservedTokens int
	logger         *zap.Logger
}

// Option configures a Builder.
type Option func(*Builder)

// WithLimits sets the window size and the share reserved for the response.
// Non-positive values keep the defaults.
func WithLimits(maxTokens, reservedTokens int) Option {
	return func(b *Builder) {
		if maxTokens > 0 {
			b.maxTokens = maxTokens
		}
		if reservedTokens >= 0 && reservedTokens < b.maxTokens {
			b.reservedTokens = reservedTokens
		}
	}
}

// WithLogger sets the logger used to report truncation.
func WithLogger(l *zap.Logger) Option {
	return func(b *Builder) { b.logger = l }
}

// NewBuilder creates a Builder with the default 8192/2048 budget.
func NewBuilder(opts ...Option) *Builder {
	b := &Builder{
		maxTokens:      DefaultMaxTokens,
		reservedTokens: DefaultReservedTokens,
		logger:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.reservedTokens >= b.maxTokens {
		b.reservedTokens = 0
	}
	return b
}

// Available is the token budget left for the prompt.
func (b *Builder) Available() int {
	return b.maxTokens - b.reservedTokens
}

// Build renders each section under its own cap, then, if the total is over
// budget, halves messages, history and results in that order, stopping as
// soon as the total fits. Each section is halved at most once, so
// pathological input can still exceed the budget.
func (b *Builder) Build(st state.TaskState) Sections {
	s := Sections{
		Task:      clip(st.OriginalTask, taskTokens*4),
		Objective: clip(st.CurrentObjective, objectiveTokens*4),
		Results:   formatResults(st.PartialResults),
		History:   formatHistory(st.History),
		Messages:  formatMessages(st.Context),
	}

	available := b.Available()
	before := s.Tokens()
	if before <= available {
		return s
	}

	for _, section := range []*string{&s.Messages, &s.History, &s.Results} {
		*section = clip(*section, len(*section)/2)
		if s.Tokens() <= available {
			break
		}
	}

	b.logger.Debug("Truncated context window",
		zap.String("task_id", st.TaskID),
		zap.Int("tokens_before", before),
		zap.Int("tokens_after", s.Tokens()),
		zap.Int("available", available))
	return s
}

// UserPrompt renders the full user prompt for the current round.
func (b *Builder) UserPrompt(st state.TaskState) string {
	s := b.Build(st)
	return fmt.Sprintf(`TASK: %s
CURRENT OBJECTIVE: %s
STEP: %d / %d

COMPLETED WORK:
%s

RECENT HISTORY:
%s

CONTEXT:
%s

What is the next action?`,
		s.Task, s.Objective, st.Control.CurrentStep, st.Control.MaxSteps,
		s.Results, s.History, s.Messages)
}

func formatResults(results map[string]state.Payload) string {
	if len(results) == 0 {
		return NoResults
	}
	lines := make([]string, 0, len(results))
	for _, name := range slices.Sorted(maps.Keys(results)) {
		lines = append(lines, fmt.Sprintf("- %s: %s", name, clip(Summarize(results[name]), resultChars)))
	}
	return clip(strings.Join(lines, "\n"), resultsTokens*4)
}

// Summarize returns the payload's "summary" field, or its JSON encoding.
func Summarize(p state.Payload) string {
	if s, ok := p["summary"].(string); ok && s != "" {
		return s
	}
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Sprint(p)
	}
	return string(data)
}

func formatHistory(history []state.StepRecord) string {
	if len(history) == 0 {
		return NoHistory
	}
	recent := history[max(0, len(history)-recentHistory):]
	lines := make([]string, 0, len(recent))
	for _, rec := range recent {
		lines = append(lines, fmt.Sprintf("- Step %d: %s (%s) -> %s", rec.StepNumber, rec.StepType, rec.NodeName, outcome(rec)))
	}
	return clip(strings.Join(lines, "\n"), historyTokens*4)
}

func outcome(rec state.StepRecord) string {
	switch {
	case rec.Output.Decision != nil:
		return string(rec.Output.Decision.Action)
	case rec.Output.Outcome != "":
		return rec.Output.Outcome
	default:
		return "N/A"
	}
}

func formatMessages(msgs []state.ContextMessage) string {
	if len(msgs) == 0 {
		return NoMessages
	}
	recent := msgs[max(0, len(msgs)-recentMessages):]
	lines := make([]string, 0, len(recent))
	for _, m := range recent {
		role := string(m.Role)
		if role == "" {
			role = "user"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, clip(m.Content, messageChars)))
	}
	return clip(strings.Join(lines, "\n"), messagesTokens*4)
}

// clip cuts s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
