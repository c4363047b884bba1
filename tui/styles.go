package tui

import "github.com/charmbracelet/lipgloss"

// Styles
var (
	baseFg    = lipgloss.Color("#E6E6E6")
	baseDimFg = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#6B7280"}
	accentFg  = lipgloss.Color("#7C3AED")
	cursorFg  = lipgloss.Color("#FFA500")
	pointFg   = lipgloss.Color("#FACC15")
	errorFg   = lipgloss.Color("#F87171")

	appStyle    = lipgloss.NewStyle().Foreground(baseFg)
	titleStyle  = lipgloss.NewStyle().Foreground(accentFg).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(baseDimFg)
	errorStyle  = lipgloss.NewStyle().Foreground(errorFg)
	cursorStyle = lipgloss.NewStyle().Foreground(cursorFg).Bold(true)
	pointStyle  = lipgloss.NewStyle().Foreground(pointFg)
)
