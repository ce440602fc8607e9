package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/egdigital/egassist/internal/domain"
)

func (m Model) View() string {
	lines := []string{
		m.styles.title.Render(assistantName),
	}
	if m.opts.UserName != "" {
		lines = append(lines, m.styles.header.Render(fmt.Sprintf("signed in as %s", m.opts.UserName)))
	}

	switch {
	case m.closed:
		lines = append(lines, "", m.styles.closed.Render("Connection closed."))
	case !m.ready:
		lines = append(lines, "", m.styles.waiting.Render(m.spin.View()+" Connecting to EG Assist..."))
	default:
		lines = append(lines, m.pane.View())
		if m.typing {
			lines = append(lines, m.styles.typing.Render(m.spin.View()+" "+assistantName+" is typing"))
		}
		if m.overlay {
			lines = append(lines, renderOverlay(m.opts.Prompts, m.cursor, m.styles))
		}
		lines = append(lines, m.styles.inputBar.Render(m.input.View()))
		lines = append(lines, m.styles.statusLine.Render("enter to send, esc to quit"))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func renderEntries(entries []chatEntry, s styles) string {
	if len(entries) == 0 {
		return ""
	}

	lines := make([]string, 0, len(entries))
	for _, entry := range entries {
		name := s.botName.Render(entry.author)
		if entry.mine {
			name = s.userName.Render(entry.author)
		}
		stamp := s.timestamp.Render(formatClock(entry.at))
		lines = append(lines, fmt.Sprintf("%s %s", name, stamp))
		lines = append(lines, s.message.Render(entry.text))
	}

	return strings.Join(lines, "\n")
}

func renderOverlay(prompts []domain.Prompt, cursor int, s styles) string {
	lines := []string{s.overlayTitle.Render("How can I help you today?")}
	for i, prompt := range prompts {
		row := s.promptRow
		marker := "  "
		if i == cursor {
			row = s.promptActive
			marker = "> "
		}
		line := row.Render(marker + prompt.Title)
		if prompt.Description != "" {
			line += " " + s.promptDetail.Render(prompt.Description)
		}
		lines = append(lines, line)
	}

	return s.overlayBox.Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func formatClock(t time.Time) string {
	return strings.ToLower(t.Format("3:04 PM"))
}
