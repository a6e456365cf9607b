package ui

import (
	"context"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/go-go-golems/chatterm/pkg/chat"
)

// healthResultMsg carries the outcome of a backend health check.
type healthResultMsg struct {
	report chat.HealthReport
	err    error
}

// sendResultMsg carries the backend reply for a pending send.
type sendResultMsg struct {
	pending  *chat.PendingSend
	response string
	err      error
}

// errorExpiredMsg asks the model to hide the banner raised with gen.
type errorExpiredMsg struct {
	gen uint64
}

// checkHealthCmd runs the health check off the event loop.
func checkHealthCmd(ctx context.Context, b chat.Backend) tea.Cmd {
	return func() tea.Msg {
		report, err := b.Health(ctx)
		return healthResultMsg{report: report, err: err}
	}
}

// sendCmd runs the network part of a send started with BeginSend.
// The controller is not touched here; the result comes back as a sendResultMsg.
func sendCmd(ctx context.Context, b chat.Backend, p *chat.PendingSend) tea.Cmd {
	return func() tea.Msg {
		response, err := b.Send(ctx, p.Message, p.History)
		return sendResultMsg{pending: p, response: response, err: err}
	}
}

// expireErrorCmd fires once the banner raised with gen has been visible for d.
func expireErrorCmd(gen uint64, d time.Duration) tea.Cmd {
	if gen == 0 {
		return nil
	}
	return tea.Tick(d, func(time.Time) tea.Msg {
		return errorExpiredMsg{gen: gen}
	})
}
