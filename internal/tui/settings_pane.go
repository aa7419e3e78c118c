package tui

import (
	"fmt"
	"maps"
	"slices"
	"strconv"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"

	"github.com/aristath/stepflow/internal/config"
)

// Save targets offered by the settings form.
const (
	TargetGlobal  = "global"
	TargetProject = "project"
)

// SettingsPaneModel edits the engine settings and saves them to the global
// or project config file. Changes apply to the next run.
type SettingsPaneModel struct {
	form        *huh.Form
	config      *config.Config
	globalPath  string
	projectPath string
	width       int
	height      int
	visible     bool
	saved       bool
	err         error
	fields      *settingsFields
}

// settingsFields holds the form bindings. It lives behind a pointer so the
// form keeps writing to the same values as the model is copied.
type settingsFields struct {
	saveTarget     string
	decisionClient string
	decisionModel  string
	deptClient     string
	deptModel      string
	maxSteps       string
	corrections    bool
}

// NewSettingsPaneModel creates a settings pane editing a copy of cfg.
func NewSettingsPaneModel(cfg *config.Config, globalPath, projectPath string) SettingsPaneModel {
	m := SettingsPaneModel{
		config:      cfg.Clone(),
		globalPath:  globalPath,
		projectPath: projectPath,
		fields:      &settingsFields{},
	}
	m.load()
	m.buildForm()
	return m
}

// load copies the current config into the form bindings.
func (m *SettingsPaneModel) load() {
	decision := m.config.Agents[config.RoleDecision]
	research := m.config.Agents["research"]

	m.fields.saveTarget = TargetProject
	m.fields.decisionClient = decision.Client
	m.fields.decisionModel = decision.Model
	m.fields.deptClient = research.Client
	m.fields.deptModel = research.Model
	m.fields.maxSteps = strconv.Itoa(m.config.Orchestrator.MaxSteps)
	m.fields.corrections = m.config.Validation.CorrectionsOn()
}

func (m *SettingsPaneModel) buildForm() {
	clients := slices.Sorted(maps.Keys(m.config.Clients))

	m.form = huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Key("saveTarget").
				Title("Save To").
				Options(
					huh.NewOption("Project ("+m.projectPath+")", TargetProject),
					huh.NewOption("Global ("+m.globalPath+")", TargetGlobal),
				).
				Value(&m.fields.saveTarget),
		).Title("Save Target"),

		huh.NewGroup(
			huh.NewSelect[string]().
				Key("decisionClient").
				Title("Decision Client").
				Options(huh.NewOptions(clients...)...).
				Value(&m.fields.decisionClient),

			huh.NewInput().
				Key("decisionModel").
				Title("Decision Model").
				Value(&m.fields.decisionModel).
				Placeholder("qwen3:14b"),

			huh.NewSelect[string]().
				Key("deptClient").
				Title("Department Client").
				Options(huh.NewOptions(clients...)...).
				Value(&m.fields.deptClient),

			huh.NewInput().
				Key("deptModel").
				Title("Department Model").
				Value(&m.fields.deptModel).
				Placeholder("qwen3:14b"),
		).Title("Reasoning"),

		huh.NewGroup(
			huh.NewInput().
				Key("maxSteps").
				Title("Max Steps").
				Value(&m.fields.maxSteps).
				Validate(validateSteps),

			huh.NewConfirm().
				Key("corrections").
				Title("Automatic Corrections").
				Value(&m.fields.corrections),
		).Title("Run Budget"),
	)
}

func validateSteps(s string) error {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return fmt.Errorf("must be a positive integer")
	}
	return nil
}

// Init initializes the settings form.
func (m SettingsPaneModel) Init() tea.Cmd {
	return m.form.Init()
}

// Update routes messages to the form and saves once it completes.
func (m SettingsPaneModel) Update(msg tea.Msg) (SettingsPaneModel, tea.Cmd) {
	if !m.visible {
		return m, nil
	}

	if key, ok := msg.(tea.KeyMsg); ok && key.String() == KeyEsc {
		m.visible = false
		m.saved = false
		return m, nil
	}

	form, cmd := m.form.Update(msg)
	if f, ok := form.(*huh.Form); ok {
		m.form = f
	}

	if m.form.State == huh.StateCompleted {
		m.Apply()
		if err := config.Save(m.config, m.TargetPath()); err != nil {
			m.err = err
			m.saved = false
		} else {
			m.saved = true
			m.err = nil
			m.visible = false
		}
	}

	return m, cmd
}

// TargetPath returns the file the form saves to.
func (m SettingsPaneModel) TargetPath() string {
	if m.fields.saveTarget == TargetGlobal {
		return m.globalPath
	}
	return m.projectPath
}

// Apply copies the form bindings back into the config. The department
// client and model apply to every non-engine agent.
func (m *SettingsPaneModel) Apply() {
	if a, ok := m.config.Agents[config.RoleDecision]; ok {
		a.Client = m.fields.decisionClient
		a.Model = m.fields.decisionModel
		m.config.Agents[config.RoleDecision] = a
	}

	for name, a := range m.config.Agents {
		if config.IsEngineRole(name) {
			continue
		}
		a.Client = m.fields.deptClient
		a.Model = m.fields.deptModel
		m.config.Agents[name] = a
	}

	if n, err := strconv.Atoi(m.fields.maxSteps); err == nil && n > 0 {
		m.config.Orchestrator.MaxSteps = n
	}
	corrections := m.fields.corrections
	m.config.Validation.CorrectionsEnabled = &corrections
}

// View renders the form, or the outcome of the last save.
func (m SettingsPaneModel) View() string {
	if !m.visible {
		return ""
	}

	var content string
	switch {
	case m.err != nil:
		content = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true).
			Render(fmt.Sprintf("✗ Error saving: %v", m.err))
	default:
		content = m.form.View()
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("62")).
		Padding(1, 2).
		Width(m.width - 4).
		Height(m.height - 4)

	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("62")).
		Render("⚙ Settings")

	return lipgloss.JoinVertical(lipgloss.Left, title, style.Render(content))
}

// SetSize updates the dimensions of the settings pane.
func (m *SettingsPaneModel) SetSize(w, h int) {
	m.width = w
	m.height = h
	if m.form != nil {
		m.form.WithWidth(w - 8).WithHeight(h - 8)
	}
}

// SetVisible shows or hides the pane. Showing it rebuilds the form from
// the current config.
func (m *SettingsPaneModel) SetVisible(v bool) {
	m.visible = v
	m.saved = false
	m.err = nil
	if v {
		m.load()
		m.buildForm()
	}
}

// IsVisible reports whether the settings pane is showing.
func (m SettingsPaneModel) IsVisible() bool {
	return m.visible
}

// Saved reports whether the last form submission was written.
func (m SettingsPaneModel) Saved() bool {
	return m.saved
}
