package ui

import (
	"context"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/chatterm/pkg/chat"
	"github.com/rs/zerolog/log"
)

const (
	appTitle = "chatterm"

	connectedLabel    = "● Connected"
	disconnectedLabel = "○ Disconnected"
	typingLabel       = " AI is typing..."

	inputPlaceholder        = "Type your message..."
	disconnectedPlaceholder = "Backend unavailable, ctrl+r to retry"

	saveErrorText  = "Could not save the chat history export."
	copyErrorText  = "Could not copy the chat history to the clipboard."
	clearErrorText = "Could not clear the stored chat history."

	// header, error banner, typing line, input, footer
	chromeHeight = 5
)

// Options configures the chat view.
type Options struct {
	ExportFormat   chat.ExportFormat
	ExportDir      string
	RenderMarkdown bool

	// ErrorDisplay overrides chat.ErrorDisplayDuration.
	ErrorDisplay time.Duration
	// Clipboard replaces the system clipboard writer.
	Clipboard func(string) error
}

// Model is the Bubble Tea view over a chat.Controller. All controller state
// changes happen inside Update; backend calls run as commands.
type Model struct {
	ctx     context.Context
	ctrl    *chat.Controller
	backend chat.Backend
	opts    Options

	keys     KeyMap
	help     help.Model
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model

	// history panel body, scrolled independently of the transcript
	panel viewport.Model

	renderer      *glamour.TermRenderer
	rendererWidth int

	showHistory bool
	status      string

	width      int
	height     int
	leftWidth  int
	rightWidth int

	renderedRevision uint64
	ready            bool
}

var _ tea.Model = Model{}

func NewModel(ctx context.Context, ctrl *chat.Controller, backend chat.Backend, opts Options) Model {
	if opts.ExportFormat == "" {
		opts.ExportFormat = chat.FormatMarkdown
	}
	if opts.ErrorDisplay <= 0 {
		opts.ErrorDisplay = chat.ErrorDisplayDuration
	}
	if opts.Clipboard == nil {
		opts.Clipboard = clipboard.WriteAll
	}

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = disconnectedPlaceholder
	_ = ti.Cursor.SetMode(cursor.CursorStatic)

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return Model{
		ctx:      ctx,
		ctrl:     ctrl,
		backend:  backend,
		opts:     opts,
		keys:     DefaultKeyMap(),
		help:     help.New(),
		input:    ti,
		spinner:  sp,
		viewport: viewport.New(0, 0),
		panel:    viewport.New(0, 0),
	}
}

func (m Model) Init() tea.Cmd {
	return checkHealthCmd(m.ctx, m.backend)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()

	case tea.KeyMsg:
		cmds = append(cmds, m.handleKey(msg))

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)

	case healthResultMsg:
		gen := m.ctrl.ApplyHealth(msg.report, msg.err)
		cmds = append(cmds, expireErrorCmd(gen, m.opts.ErrorDisplay))

	case sendResultMsg:
		gen := m.ctrl.CompleteSend(m.ctx, msg.pending, msg.response, msg.err)
		cmds = append(cmds, expireErrorCmd(gen, m.opts.ErrorDisplay))

	case errorExpiredMsg:
		m.ctrl.ExpireError(msg.gen)

	case spinner.TickMsg:
		if m.ctrl.Loading() {
			var cmd tea.Cmd
			m.spinner, cmd = m.spinner.Update(msg)
			cmds = append(cmds, cmd)
		}
	}

	cmds = append(cmds, m.sync())
	return m, tea.Batch(cmds...)
}

func (m *Model) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, m.keys.Quit):
		return tea.Quit

	case key.Matches(msg, m.keys.ToggleHistory):
		m.showHistory = !m.showHistory
		m.layout()
		return nil

	case m.showHistory && key.Matches(msg, m.keys.CloseHistory):
		m.showHistory = false
		m.layout()
		return nil

	case m.showHistory && key.Matches(msg, m.keys.SaveExport):
		return m.saveExport()

	case m.showHistory && key.Matches(msg, m.keys.CopyExport):
		return m.copyExport()

	case key.Matches(msg, m.keys.Clear):
		if err := m.ctrl.Clear(m.ctx); err != nil {
			log.Error().Err(err).Msg("could not clear chat history")
			return m.showError(clearErrorText)
		}
		m.status = "History cleared"
		return nil

	case key.Matches(msg, m.keys.Reconnect):
		return checkHealthCmd(m.ctx, m.backend)

	case key.Matches(msg, m.keys.ScrollUp, m.keys.ScrollDown):
		var cmd tea.Cmd
		if m.showHistory {
			m.panel, cmd = m.panel.Update(msg)
			return cmd
		}
		m.viewport, cmd = m.viewport.Update(msg)
		return cmd

	case key.Matches(msg, m.keys.Send):
		return m.send()
	}

	if !m.inputEnabled() {
		return nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.ctrl.SetInput(m.input.Value())
	return cmd
}

func (m *Model) send() tea.Cmd {
	if !m.inputEnabled() {
		return nil
	}
	m.ctrl.SetInput(m.input.Value())
	p, ok := m.ctrl.BeginSend(m.ctx)
	if !ok {
		return nil
	}
	m.input.Reset()
	m.status = ""
	return tea.Batch(sendCmd(m.ctx, m.backend, p), m.spinner.Tick)
}

func (m *Model) saveExport() tea.Cmd {
	path, err := m.ctrl.ExportToFile(m.opts.ExportDir, m.opts.ExportFormat)
	if err != nil {
		log.Error().Err(err).Str("dir", m.opts.ExportDir).Msg("could not save chat history export")
		return m.showError(saveErrorText)
	}
	log.Info().Str("path", path).Msg("chat history exported")
	m.status = "Saved " + path
	return nil
}

func (m *Model) copyExport() tea.Cmd {
	content, err := m.ctrl.Export(m.opts.ExportFormat)
	if err == nil {
		err = m.opts.Clipboard(content)
	}
	if err != nil {
		log.Error().Err(err).Msg("could not copy chat history")
		return m.showError(copyErrorText)
	}
	m.status = "Copied chat history to clipboard"
	return nil
}

func (m *Model) showError(text string) tea.Cmd {
	return expireErrorCmd(m.ctrl.ShowError(text), m.opts.ErrorDisplay)
}

func (m Model) inputEnabled() bool {
	return m.ctrl.Connected() && !m.ctrl.Loading()
}

// sync aligns the widgets with controller state after every update.
func (m *Model) sync() tea.Cmd {
	var cmd tea.Cmd
	if m.inputEnabled() {
		m.input.Placeholder = inputPlaceholder
		if !m.input.Focused() {
			cmd = m.input.Focus()
		}
	} else {
		if !m.ctrl.Connected() {
			m.input.Placeholder = disconnectedPlaceholder
		}
		m.input.Blur()
	}

	if rev := m.ctrl.Revision(); rev != m.renderedRevision && m.ready {
		m.renderedRevision = rev
		m.refreshTranscript()
		m.viewport.GotoBottom()
		m.refreshPanel()
	}
	return cmd
}

// layout splits the width between the chat column and the history panel,
// following the 25% / min 24 columns sidebar rule.
func (m *Model) layout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	if m.showHistory {
		right := int(float64(m.width) * 0.25)
		if right < minHistoryPanelWidth {
			right = minHistoryPanelWidth
		}
		if right > m.width/2 {
			right = m.width / 2
		}
		m.rightWidth = right
	} else {
		m.rightWidth = 0
	}
	m.leftWidth = max(m.width-m.rightWidth, 1)

	m.viewport.Width = m.leftWidth
	m.viewport.Height = max(m.height-chromeHeight, 1)
	m.input.Width = max(m.leftWidth-lipgloss.Width(m.input.Prompt)-1, 1)
	m.help.Width = m.leftWidth
	m.ready = true

	if m.showHistory {
		m.panel.Width = historyPanelInner(m.rightWidth)
		m.panel.Height = max(m.height-historyPanelChromeHeight(m.rightWidth), 1)
	}

	m.renderedRevision = m.ctrl.Revision()
	m.refreshTranscript()
	m.viewport.GotoBottom()
	m.refreshPanel()
}

// refreshPanel re-renders the open history panel and keeps it on the newest message.
func (m *Model) refreshPanel() {
	if !m.showHistory {
		return
	}
	m.panel.SetContent(historyPanelBody(m.ctrl.Messages(), m.panel.Width))
	m.panel.GotoBottom()
}

func (m *Model) refreshTranscript() {
	width := m.viewport.Width
	if m.opts.RenderMarkdown && width != m.rendererWidth {
		r, err := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(max(width-4, 10)),
		)
		if err != nil {
			log.Warn().Err(err).Msg("markdown renderer unavailable, falling back to plain text")
			r = nil
		}
		m.renderer = r
		m.rendererWidth = width
	}

	msgs := m.ctrl.Messages()
	parts := make([]string, 0, len(msgs))
	for _, msg := range msgs {
		parts = append(parts, m.renderMessage(msg, width))
	}
	m.viewport.SetContent(strings.Join(parts, "\n\n"))
}

func (m *Model) renderMessage(msg chat.Message, width int) string {
	if msg.IsUser {
		return userLabelStyle.Render(msg.Label()) + "\n" + lipgloss.NewStyle().Width(width).Render(msg.Text)
	}
	label := assistantLabelStyle.Render(msg.Label())
	if m.renderer != nil {
		out, err := m.renderer.Render(msg.Text)
		if err == nil {
			return label + "\n" + strings.Trim(out, "\n")
		}
		log.Debug().Err(err).Str("id", msg.ID).Msg("markdown render failed")
	}
	return label + "\n" + lipgloss.NewStyle().Width(width).Render(msg.Text)
}

func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	indicator := disconnectedStyle.Render(disconnectedLabel)
	if m.ctrl.Connected() {
		indicator = connectedStyle.Render(connectedLabel)
	}
	header := titleStyle.Render(appTitle) + "  " + indicator

	banner := ""
	if text := m.ctrl.Error(); text != "" {
		banner = errorBannerStyle.Render(text)
	}

	typing := ""
	if m.ctrl.Loading() {
		typing = m.spinner.View() + typingStyle.Render(typingLabel)
	}

	footer := m.help.View(m.keys)
	if m.status != "" {
		footer = statusStyle.Render(m.status)
	}

	left := lipgloss.NewStyle().Width(m.leftWidth).Render(lipgloss.JoinVertical(lipgloss.Left,
		header,
		banner,
		m.viewport.View(),
		typing,
		m.input.View(),
		footer,
	))
	if !m.showHistory {
		return left
	}

	panel := renderHistoryPanelFrame(m.panel.View(), m.rightWidth)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, panel)
}

// Run starts the full-screen chat program and blocks until it exits.
func Run(ctx context.Context, ctrl *chat.Controller, backend chat.Backend, opts Options) error {
	p := tea.NewProgram(
		NewModel(ctx, ctrl, backend, opts),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
		tea.WithContext(ctx),
	)
	_, err := p.Run()
	return err
}
