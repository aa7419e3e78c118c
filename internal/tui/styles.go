package tui

import (
	"github.com/charmbracelet/lipgloss"
)

// Palette (ANSI 256).
const (
	colorAccent = lipgloss.Color("69")
	colorIdle   = lipgloss.Color("238")
	colorMuted  = lipgloss.Color("244")
	colorActive = lipgloss.Color("214")
	colorDone   = lipgloss.Color("78")
	colorError  = lipgloss.Color("203")
	colorInk    = lipgloss.Color("231")
)

var (
	StyleRunning = statusStyle(colorActive)
	StyleDone    = statusStyle(colorDone)
	StyleFailed  = statusStyle(colorError)
	StyleMuted   = lipgloss.NewStyle().Foreground(colorMuted)

	StyleHeading = lipgloss.NewStyle().
			Foreground(colorAccent).
			Bold(true)

	StyleHelp = lipgloss.NewStyle().
			Foreground(colorMuted).
			Italic(true)

	StyleSelected = lipgloss.NewStyle().
			Foreground(colorInk).
			Background(colorAccent).
			Bold(true)
)

// PaneStyle frames a pane, highlighting the one holding focus.
func PaneStyle(focused bool) lipgloss.Style {
	border := colorIdle
	if focused {
		border = colorAccent
	}
	return lipgloss.NewStyle().
		Border(lipgloss.NormalBorder()).
		BorderForeground(border)
}

func statusStyle(c lipgloss.Color) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(c).Bold(true)
}
