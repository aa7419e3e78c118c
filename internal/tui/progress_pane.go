package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/stepflow/internal/events"
)

// ProgressPaneModel summarizes run outcomes and the step budget of the
// selected run.
type ProgressPaneModel struct {
	total     int
	running   int
	completed int
	failed    int
	providers int
	fallbacks int

	step     int
	maxSteps int

	width   int
	height  int
	focused bool
}

// NewProgressPaneModel creates an empty progress pane.
func NewProgressPaneModel() ProgressPaneModel {
	return ProgressPaneModel{}
}

// Update folds run events into the counters.
func (m ProgressPaneModel) Update(msg tea.Msg) (ProgressPaneModel, tea.Cmd) {
	switch msg := msg.(type) {
	case events.RunStartedEvent:
		m.total++
		m.running++
	case events.RunCompletedEvent:
		m.running = max(m.running-1, 0)
		m.completed++
	case events.RunFailedEvent:
		m.running = max(m.running-1, 0)
		m.failed++
	case events.ProviderExecutedEvent:
		m.providers++
	case events.DecisionMadeEvent:
		if msg.Fallback {
			m.fallbacks++
		}
	}
	return m, nil
}

// SetSteps shows the step budget of the selected run.
func (m *ProgressPaneModel) SetSteps(step, maxSteps int) {
	m.step = step
	m.maxSteps = maxSteps
}

// View renders the counters and the step bar.
func (m ProgressPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	var b strings.Builder
	title := StyleHeading.Render("Progress")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", lipgloss.Width(title)))
	b.WriteString("\n\n")

	fmt.Fprintf(&b, "Runs:      %d\n", m.total)
	fmt.Fprintf(&b, "Running:   %s\n", StyleRunning.Render(fmt.Sprint(m.running)))
	fmt.Fprintf(&b, "Completed: %s\n", StyleDone.Render(fmt.Sprint(m.completed)))
	fmt.Fprintf(&b, "Failed:    %s\n", StyleFailed.Render(fmt.Sprint(m.failed)))
	fmt.Fprintf(&b, "Provider calls: %d  Fallback decisions: %d\n\n", m.providers, m.fallbacks)

	if m.maxSteps > 0 {
		b.WriteString("Steps " + StepBar(m.step, m.maxSteps, min(m.width-16, 40)) + "\n")
	}

	return PaneStyle(m.focused).Width(m.width - 2).Height(m.height - 2).Render(b.String())
}

// StepBar renders step out of maxSteps as a bar width cells wide.
func StepBar(step, maxSteps, width int) string {
	if maxSteps <= 0 || width <= 0 {
		return ""
	}
	step = min(max(step, 0), maxSteps)
	done := step * width / maxSteps
	bar := StyleDone.Render(strings.Repeat("=", done)) +
		StyleMuted.Render(strings.Repeat(".", width-done))
	return fmt.Sprintf("[%s] %d/%d", bar, step, maxSteps)
}

// SetSize updates the pane dimensions.
func (m *ProgressPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
}

// SetFocused updates the focus state.
func (m *ProgressPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
