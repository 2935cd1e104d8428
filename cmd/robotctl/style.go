package main

import "github.com/charmbracelet/lipgloss"

var (
	// okStyle renders successful replies.
	okStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))

	// infoStyle renders help and status messages.
	infoStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12"))

	// warnStyle renders input mistakes.
	warnStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))

	// errorStyle renders failed commands.
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9")).
			Bold(true)

	// promptStyle renders the shell prompt.
	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("14")).
			Bold(true)

	// stateStyles colors the link state by health.
	stateStyles = map[string]lipgloss.Style{
		"OPEN":         okStyle,
		"DEGRADED":     warnStyle,
		"RECONNECTING": warnStyle,
		"DOWN":         errorStyle,
	}
)
