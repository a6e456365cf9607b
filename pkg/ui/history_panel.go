package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/chatterm/pkg/chat"
)

const (
	historyPanelTitle = "Chat History"
	historyPanelHelp  = "esc close · ctrl+s save · ctrl+y copy"
	historyPanelEmpty = "No messages yet"

	minHistoryPanelWidth = 24
)

// RenderHistoryPanel renders the side panel listing every message with its role label.
// It returns "" when show is false. width is the total width including the border.
func RenderHistoryPanel(msgs []chat.Message, show bool, width int) string {
	if !show {
		return ""
	}
	width = historyPanelWidth(width)
	return renderHistoryPanelFrame(historyPanelBody(msgs, historyPanelInner(width)), width)
}

func historyPanelWidth(width int) int {
	if width < minHistoryPanelWidth {
		return minHistoryPanelWidth
	}
	return width
}

// historyPanelInner is the content width: border (2) + horizontal padding (2).
func historyPanelInner(width int) int {
	return historyPanelWidth(width) - 4
}

// historyPanelBody renders the message entries, wrapped to inner columns.
func historyPanelBody(msgs []chat.Message, inner int) string {
	if len(msgs) == 0 {
		return panelEmptyStyle.Render(historyPanelEmpty)
	}
	wrap := lipgloss.NewStyle().Width(inner)
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		label := assistantLabelStyle.Render(m.Label())
		if m.IsUser {
			label = userLabelStyle.Render(m.Label())
		}
		lines = append(lines, wrap.Render(label+" "+m.Text))
	}
	return strings.Join(lines, "\n")
}

func historyPanelHelpView(inner int) string {
	return panelHelpStyle.Render(lipgloss.NewStyle().Width(inner).Render(historyPanelHelp))
}

// historyPanelChromeHeight is the number of rows the panel uses around its body.
func historyPanelChromeHeight(width int) int {
	// border (2), title, blank line above and below the body
	return 5 + lipgloss.Height(historyPanelHelpView(historyPanelInner(width)))
}

// renderHistoryPanelFrame puts the title above and the action hints below body.
func renderHistoryPanelFrame(body string, width int) string {
	width = historyPanelWidth(width)
	content := strings.Join([]string{
		panelTitleStyle.Render(historyPanelTitle),
		"",
		body,
		"",
		historyPanelHelpView(historyPanelInner(width)),
	}, "\n")
	return panelStyle.Width(width - 2).Render(content)
}
