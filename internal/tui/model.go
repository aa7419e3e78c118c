// Package tui is the live run watcher: a Bubble Tea program that renders
// workflow events from the bus as they are published.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/stepflow/internal/config"
	"github.com/aristath/stepflow/internal/events"
)

// PaneID identifies which pane is focused.
type PaneID int

const (
	PaneRuns PaneID = iota
	PaneProgress
)

const paneCount = 2

// FinishedMsg tells the watcher that no more runs will start.
type FinishedMsg struct{}

// Model is the root Bubble Tea model for the TUI.
type Model struct {
	runsPane     RunsPaneModel
	progressPane ProgressPaneModel
	settingsPane SettingsPaneModel
	focusedPane  PaneID
	eventSub     <-chan events.Event
	width        int
	height       int
	quitting     bool
	finished     bool
	showSettings bool
}

// New creates a watcher subscribed to every topic on bus.
func New(bus *events.Bus, cfg *config.Config, globalPath, projectPath string) Model {
	return Model{
		runsPane:     NewRunsPaneModel(),
		progressPane: NewProgressPaneModel(),
		settingsPane: NewSettingsPaneModel(cfg, globalPath, projectPath),
		focusedPane:  PaneRuns,
		eventSub:     bus.SubscribeAll(1024),
	}
}

// Init starts listening for events.
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.eventSub)
}

// waitForEvent returns a command that waits for the next bus event.
func waitForEvent(sub <-chan events.Event) tea.Cmd {
	return func() tea.Msg {
		event, ok := <-sub
		if !ok {
			return nil // bus closed
		}
		return event
	}
}

// Update handles messages and updates the model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.showSettings {
			var cmd tea.Cmd
			m.settingsPane, cmd = m.settingsPane.Update(msg)
			if !m.settingsPane.IsVisible() {
				m.showSettings = false
			}
			return m, cmd
		}

		switch msg.String() {
		case KeyQuit, KeyCtrlC:
			m.quitting = true
			return m, tea.Quit

		case KeySettings:
			m.showSettings = true
			m.settingsPane.SetVisible(true)
			cmds = append(cmds, m.settingsPane.Init())

		case KeyTab:
			m.focusedPane = (m.focusedPane + 1) % paneCount
			m.updateFocusStates()

		case KeyShiftTab:
			m.focusedPane = (m.focusedPane + paneCount - 1) % paneCount
			m.updateFocusStates()

		case KeyPane1:
			m.focusedPane = PaneRuns
			m.updateFocusStates()

		case KeyPane2:
			m.focusedPane = PaneProgress
			m.updateFocusStates()

		default:
			if m.focusedPane == PaneRuns {
				var cmd tea.Cmd
				m.runsPane, cmd = m.runsPane.Update(msg)
				cmds = append(cmds, cmd)
				m.syncSteps()
			}
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.computeLayout()
		m.settingsPane.SetSize(msg.Width, msg.Height)

	case FinishedMsg:
		m.finished = true

	case tickMsg:
		var cmd tea.Cmd
		m.runsPane, cmd = m.runsPane.Update(msg)
		cmds = append(cmds, cmd)

	case events.Event:
		var cmd tea.Cmd
		m.runsPane, cmd = m.runsPane.Update(msg)
		cmds = append(cmds, cmd)
		m.progressPane, _ = m.progressPane.Update(msg)
		m.syncSteps()
		cmds = append(cmds, waitForEvent(m.eventSub))

	default:
		if m.showSettings {
			var cmd tea.Cmd
			m.settingsPane, cmd = m.settingsPane.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	return m, tea.Batch(cmds...)
}

// syncSteps points the progress bar at the selected run.
func (m *Model) syncSteps() {
	if run, ok := m.runsPane.Selected(); ok {
		m.progressPane.SetSteps(run.Step, run.MaxSteps)
	}
}

// View renders the TUI.
func (m Model) View() string {
	if m.quitting {
		return "Goodbye!\n"
	}
	if m.width == 0 || m.height == 0 {
		return "Initializing..."
	}
	if m.showSettings {
		return m.settingsPane.View()
	}

	body := lipgloss.JoinVertical(lipgloss.Left, m.runsPane.View(), m.progressPane.View())
	return lipgloss.JoinVertical(lipgloss.Left, body, HelpView(m.finished))
}

// computeLayout gives the runs pane 70% of the height and the progress
// pane the rest, leaving one line for help.
func (m *Model) computeLayout() {
	available := m.height - 1
	runsHeight := available * 70 / 100

	m.runsPane.SetSize(m.width, runsHeight)
	m.progressPane.SetSize(m.width, available-runsHeight)
	m.updateFocusStates()
}

func (m *Model) updateFocusStates() {
	m.runsPane.SetFocused(m.focusedPane == PaneRuns)
	m.progressPane.SetFocused(m.focusedPane == PaneProgress)
}
