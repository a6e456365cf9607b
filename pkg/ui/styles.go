package ui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FFFDF5"))

	connectedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	disconnectedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))

	errorBannerStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#FFFFFF")).
				Background(lipgloss.Color("160")).
				Padding(0, 1)

	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF"))
	typingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#AFAFAF")).Italic(true)

	userLabelStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	assistantLabelStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("170"))

	// History panel
	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("62")).
			Padding(0, 1)

	panelTitleStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("#FFFFFF")).
			Padding(0, 1).
			Bold(true)

	panelHelpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
	panelEmptyStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#888888"))
)
