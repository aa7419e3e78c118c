package tui

// Keybinding constants
const (
	KeyTab      = "tab"
	KeyShiftTab = "shift+tab"
	KeyQuit     = "q"
	KeyCtrlC    = "ctrl+c"
	KeyPane1    = "1"
	KeyPane2    = "2"
	KeyUp       = "up"
	KeyDown     = "down"
	KeyJ        = "j"
	KeyK        = "k"
	KeySettings = "s"
	KeyEsc      = "esc"
)

// HelpView returns a one-line help bar with common keybindings.
func HelpView(finished bool) string {
	help := "Tab: cycle focus | 1/2: jump to pane | j/k: select run | s: settings | q: quit"
	if finished {
		help = "All runs finished | " + help
	}
	return StyleHelp.Render(help)
}
