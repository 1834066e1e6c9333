package monitor

import "github.com/charmbracelet/lipgloss"

var (
	// Base colors
	primaryColor = lipgloss.Color("212")
	mutedColor   = lipgloss.Color("241")
	successColor = lipgloss.Color("42")
	warningColor = lipgloss.Color("214")
	errorColor   = lipgloss.Color("196")

	// Panel styles
	panelStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	// Text styles
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	subtleStyle = lipgloss.NewStyle().Foreground(mutedColor)
	errorStyle  = lipgloss.NewStyle().Foreground(errorColor)

	onlineBadge   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(successColor).Padding(0, 1)
	offlineBadge  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).Background(errorColor).Padding(0, 1)
	pendingBadge  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(warningColor).Padding(0, 1)
	disabledBadge = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).Background(lipgloss.Color("240")).Padding(0, 1)
)
