package cli

import "github.com/charmbracelet/lipgloss"

// Centralized Lip Gloss styles for terminal output.
// All colors are specified using hex codes.

var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#ff5fd2"))

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262"))

	ErrorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#ff005f")).
			Bold(true)

	SuccessStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00ff5f")).
			Bold(true)

	// KindStyle highlights the error kind next to the status.
	KindStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#5fd7ff"))

	HelpStyle = lipgloss.NewStyle().
			Faint(true).
			Foreground(lipgloss.Color("#a8a8a8"))

	// PaneStyle frames the data payload.
	PaneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#5f5fff")).
			PaddingLeft(1).
			PaddingRight(1)
)
