package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/stepflow/internal/events"
	"github.com/aristath/stepflow/internal/state"
)

// Run statuses shown in the list.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

const listWidth = 28

// RunView is the watcher's record of one workflow run.
type RunView struct {
	TaskID    string
	Task      string
	Status    string
	Step      int
	MaxSteps  int
	Log       []string
	StartTime time.Time
	Duration  time.Duration
}

// RunsPaneModel lists runs and shows the selected run's log.
type RunsPaneModel struct {
	runs        map[string]*RunView
	order       []string
	selectedIdx int
	viewport    viewport.Model
	width       int
	height      int
	focused     bool
	updateTag   int
}

// NewRunsPaneModel creates an empty runs pane.
func NewRunsPaneModel() RunsPaneModel {
	return RunsPaneModel{
		runs:     make(map[string]*RunView),
		viewport: viewport.New(0, 0),
	}
}

// tickMsg debounces viewport refreshes while lines stream in.
type tickMsg struct {
	tag int
}

// Update handles key and event messages.
func (m RunsPaneModel) Update(msg tea.Msg) (RunsPaneModel, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if !m.focused {
			break
		}
		switch msg.String() {
		case KeyJ, KeyDown:
			if m.selectedIdx < len(m.order)-1 {
				m.selectedIdx++
				m.refresh()
			}
		case KeyK, KeyUp:
			if m.selectedIdx > 0 {
				m.selectedIdx--
				m.refresh()
			}
		default:
			m.viewport, cmd = m.viewport.Update(msg)
		}

	case events.RunStartedEvent:
		if _, exists := m.runs[msg.ID]; exists {
			break
		}
		m.runs[msg.ID] = &RunView{
			TaskID:    msg.ID,
			Task:      msg.Task,
			Status:    RunRunning,
			MaxSteps:  msg.MaxSteps,
			Log:       []string{"Task: " + msg.Task},
			StartTime: msg.Timestamp,
		}
		m.order = append(m.order, msg.ID)
		if len(m.order) == 1 {
			m.selectedIdx = 0
			m.refresh()
		}

	case events.NodeCompletedEvent:
		if run, ok := m.runs[msg.ID]; ok {
			run.Step = msg.Step
			return m, m.appendLine(run, fmt.Sprintf("[%d/%d] %-15s %s", msg.Step, msg.MaxSteps, msg.Node, msg.Duration.Round(time.Millisecond)))
		}

	case events.DecisionMadeEvent:
		if run, ok := m.runs[msg.ID]; ok {
			return m, m.appendLine(run, "      "+DescribeDecision(msg.Decision, msg.Fallback))
		}

	case events.ProviderExecutedEvent:
		if run, ok := m.runs[msg.ID]; ok {
			line := fmt.Sprintf("      %s %s", StatusIcon(RunCompleted), msg.Provider)
			if !msg.Success {
				line = fmt.Sprintf("      %s %s: %s", StatusIcon(RunFailed), msg.Provider, msg.Error)
			}
			return m, m.appendLine(run, line)
		}

	case events.RunCompletedEvent:
		if run, ok := m.runs[msg.ID]; ok {
			run.Status = RunCompleted
			run.Duration = msg.Duration
			run.Log = append(run.Log, fmt.Sprintf("\n[Completed in %v after %d steps]\n", msg.Duration.Round(time.Millisecond), msg.Steps), msg.FinalResponse)
			m.refreshIfSelected(msg.ID)
		}

	case events.RunFailedEvent:
		if run, ok := m.runs[msg.ID]; ok {
			run.Status = RunFailed
			run.Duration = msg.Duration
			run.Log = append(run.Log, fmt.Sprintf("\n[Failed: %v]", msg.Err))
			m.refreshIfSelected(msg.ID)
		}

	case tickMsg:
		if msg.tag == m.updateTag {
			m.refresh()
		}
	}

	return m, cmd
}

// DescribeDecision renders a decision as one log line.
func DescribeDecision(d state.Decision, fallback bool) string {
	s := string(d.Action)
	if d.TargetProvider != "" {
		s += " -> " + d.TargetProvider
	}
	s += fmt.Sprintf(" (%.2f)", d.Confidence)
	if fallback {
		s += " [fallback]"
	}
	return s
}

// appendLine adds a log line and schedules a debounced refresh when the
// run is on screen.
func (m *RunsPaneModel) appendLine(run *RunView, line string) tea.Cmd {
	run.Log = append(run.Log, line)
	if m.selected() != run.TaskID {
		return nil
	}
	m.updateTag++
	tag := m.updateTag
	return tea.Tick(50*time.Millisecond, func(time.Time) tea.Msg {
		return tickMsg{tag: tag}
	})
}

// View renders the list and the log side by side.
func (m RunsPaneModel) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}

	content := lipgloss.JoinHorizontal(
		lipgloss.Top,
		m.renderList(),
		lipgloss.NewStyle().
			Width(m.width-listWidth-4).
			Height(m.height-2).
			Render(m.viewport.View()),
	)

	return PaneStyle(m.focused).Width(m.width - 2).Height(m.height - 2).Render(content)
}

func (m RunsPaneModel) renderList() string {
	var b strings.Builder

	title := StyleHeading.Render("Runs")
	b.WriteString(title)
	b.WriteString("\n")
	b.WriteString(strings.Repeat("=", min(listWidth, lipgloss.Width(title))))
	b.WriteString("\n\n")

	if len(m.order) == 0 {
		b.WriteString(StyleMuted.Render("Waiting..."))
	}
	for i, id := range m.order {
		run := m.runs[id]
		name := []rune(run.Task)
		if len(name) > listWidth-6 {
			name = append(name[:listWidth-9], []rune("...")...)
		}
		line := fmt.Sprintf("%s %s", StatusIcon(run.Status), string(name))
		if i == m.selectedIdx {
			line = StyleSelected.Render(line)
		}
		b.WriteString(line)
		b.WriteString("\n")
	}

	return lipgloss.NewStyle().Width(listWidth).Height(m.height - 2).Render(b.String())
}

// StatusIcon returns a styled status indicator.
func StatusIcon(status string) string {
	switch status {
	case RunRunning:
		return StyleRunning.Render("●")
	case RunCompleted:
		return StyleDone.Render("✓")
	case RunFailed:
		return StyleFailed.Render("✗")
	default:
		return StyleMuted.Render("○")
	}
}

// Selected returns the run under the cursor, if any.
func (m RunsPaneModel) Selected() (RunView, bool) {
	run, ok := m.runs[m.selected()]
	if !ok {
		return RunView{}, false
	}
	return *run, true
}

func (m RunsPaneModel) selected() string {
	if m.selectedIdx >= 0 && m.selectedIdx < len(m.order) {
		return m.order[m.selectedIdx]
	}
	return ""
}

func (m *RunsPaneModel) refreshIfSelected(id string) {
	if m.selected() == id {
		m.refresh()
	}
}

func (m *RunsPaneModel) refresh() {
	run, ok := m.runs[m.selected()]
	if !ok {
		m.viewport.SetContent("Waiting for runs...")
		return
	}
	m.viewport.SetContent(strings.Join(run.Log, "\n"))
	m.viewport.GotoBottom()
}

func (m *RunsPaneModel) resizeViewport() {
	m.viewport.Width = max(m.width-listWidth-4, 10)
	m.viewport.Height = max(m.height-4, 5)
}

// SetSize updates the pane dimensions.
func (m *RunsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	m.resizeViewport()
}

// SetFocused updates the focus state.
func (m *RunsPaneModel) SetFocused(focused bool) {
	m.focused = focused
}
