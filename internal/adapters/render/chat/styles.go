package chat

import "github.com/charmbracelet/lipgloss"

type styles struct {
	title        lipgloss.Style
	header       lipgloss.Style
	botName      lipgloss.Style
	userName     lipgloss.Style
	message      lipgloss.Style
	timestamp    lipgloss.Style
	typing       lipgloss.Style
	waiting      lipgloss.Style
	closed       lipgloss.Style
	overlayBox   lipgloss.Style
	overlayTitle lipgloss.Style
	promptRow    lipgloss.Style
	promptActive lipgloss.Style
	promptDetail lipgloss.Style
	inputBar     lipgloss.Style
	statusLine   lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:        lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		header:       lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
		botName:      lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		userName:     lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("114")),
		message:      lipgloss.NewStyle().Foreground(lipgloss.Color("252")),
		timestamp:    lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		typing:       lipgloss.NewStyle().Faint(true),
		waiting:      lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		closed:       lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		overlayBox:   lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("39")).Padding(0, 1),
		overlayTitle: lipgloss.NewStyle().Bold(true),
		promptRow:    lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		promptActive: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39")),
		promptDetail: lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		inputBar:     lipgloss.NewStyle().MarginTop(1),
		statusLine:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}
