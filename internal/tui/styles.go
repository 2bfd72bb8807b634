package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#CAC5FE"))

	cardStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#4B4D4F")).
			Padding(1, 3).
			Width(28).
			Align(lipgloss.Center)

	speakingCardStyle = cardStyle.BorderForeground(lipgloss.Color("#CAC5FE"))

	transcriptStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false).
			BorderForeground(lipgloss.Color("#4B4D4F")).
			Padding(0, 1)

	callButtonStyle = lipgloss.NewStyle().
			Bold(true).
			Padding(0, 4).
			Foreground(lipgloss.Color("#FFFFFF")).
			Background(lipgloss.Color("#49DE50"))

	endButtonStyle = callButtonStyle.Background(lipgloss.Color("#F75353"))

	mutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#6C6F72"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F75353"))
)
