package ui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-go-golems/chatterm/pkg/chat"
	"github.com/go-go-golems/chatterm/pkg/persistence/historystore"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	healthErr error
	sendErr   error
	sends     []string
}

func (f *fakeBackend) Health(context.Context) (chat.HealthReport, error) {
	if f.healthErr != nil {
		return chat.HealthReport{}, f.healthErr
	}
	return chat.HealthReport{Status: "healthy", ModelLoaded: true}, nil
}

func (f *fakeBackend) Send(_ context.Context, message string, _ []chat.Turn) (string, error) {
	f.sends = append(f.sends, message)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return "echo: " + message, nil
}

type testEnv struct {
	store     *historystore.InMemoryStore
	backend   *fakeBackend
	exportDir string
	copied    []string
	copyErr   error
}

func newTestModel(t *testing.T, env *testEnv, width, height int) Model {
	t.Helper()
	ctx := context.Background()
	if env.store == nil {
		env.store = historystore.NewInMemoryStore()
	}
	if env.backend == nil {
		env.backend = &fakeBackend{}
	}
	env.exportDir = t.TempDir()

	clock := time.Date(2026, 10, 15, 9, 30, 0, 0, time.UTC)
	ctrl := chat.NewController(env.store, chat.WithClock(func() time.Time { return clock }))
	ctrl.Restore(ctx)

	m := NewModel(ctx, ctrl, env.backend, Options{
		ExportFormat: chat.FormatMarkdown,
		ExportDir:    env.exportDir,
		ErrorDisplay: time.Millisecond,
		Clipboard: func(s string) error {
			if env.copyErr != nil {
				return env.copyErr
			}
			env.copied = append(env.copied, s)
			return nil
		},
	})
	m, _ = update(t, m, tea.WindowSizeMsg{Width: width, Height: height})
	return m
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	nm, ok := next.(Model)
	require.True(t, ok)
	return nm, cmd
}

// run executes cmd and returns the messages it produced, flattening batches.
func run(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, run(c)...)
		}
		return out
	}
	if msg == nil {
		return nil
	}
	return []tea.Msg{msg}
}

// settle feeds the model's own result messages back until no more arrive.
func settle(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	queue := run(cmd)
	for len(queue) > 0 {
		msg := queue[0]
		queue = queue[1:]
		switch msg.(type) {
		case healthResultMsg, sendResultMsg, errorExpiredMsg:
			var next tea.Cmd
			m, next = update(t, m, msg)
			queue = append(queue, run(next)...)
		}
	}
	return m
}

func find[T tea.Msg](t *testing.T, msgs []tea.Msg) T {
	t.Helper()
	for _, msg := range msgs {
		if v, ok := msg.(T); ok {
			return v
		}
	}
	var zero T
	t.Fatalf("no %T among %d messages", zero, len(msgs))
	return zero
}

func typeText(t *testing.T, m Model, s string) Model {
	t.Helper()
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
	return m
}

func connected(t *testing.T, env *testEnv) Model {
	t.Helper()
	m := newTestModel(t, env, 120, 30)
	m = settle(t, m, m.Init())
	require.True(t, m.ctrl.Connected())
	return m
}

func TestModel_InitialView(t *testing.T) {
	m := newTestModel(t, &testEnv{}, 120, 30)
	view := m.View()
	require.Contains(t, view, appTitle)
	require.Contains(t, view, disconnectedLabel)
	require.Contains(t, view, chat.DefaultGreeting)
}

func TestModel_HealthConnects(t *testing.T) {
	m := connected(t, &testEnv{})
	require.Contains(t, m.View(), connectedLabel)
	require.True(t, m.input.Focused())
}

func TestModel_HealthFailureBannerExpires(t *testing.T) {
	env := &testEnv{backend: &fakeBackend{healthErr: errors.New("connection refused")}}
	m := newTestModel(t, env, 120, 30)

	hr := find[healthResultMsg](t, run(m.Init()))
	m, cmd := update(t, m, hr)
	require.Equal(t, chat.HealthErrorText, m.ctrl.Error())
	require.Contains(t, m.View(), chat.HealthErrorText)
	require.Contains(t, m.View(), disconnectedLabel)
	require.False(t, m.input.Focused())

	m = settle(t, m, cmd)
	require.Equal(t, "", m.ctrl.Error())
	require.NotContains(t, m.View(), chat.HealthErrorText)
}

func TestModel_InputDisabledWhileDisconnected(t *testing.T) {
	env := &testEnv{}
	m := newTestModel(t, env, 120, 30)

	m = typeText(t, m, "hi")
	require.Equal(t, "", m.input.Value())

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, run(cmd))
	require.Len(t, m.ctrl.Messages(), 1)
	require.Empty(t, env.backend.sends)
}

func TestModel_SendRoundTrip(t *testing.T) {
	env := &testEnv{}
	m := connected(t, env)

	m = typeText(t, m, "hi")
	require.Equal(t, "hi", m.input.Value())

	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.True(t, m.ctrl.Loading())
	require.Equal(t, "", m.input.Value())
	require.False(t, m.input.Focused())
	require.Contains(t, m.View(), typingLabel)
	require.Len(t, m.ctrl.Messages(), 2)

	// typing and sending are ignored while the reply is pending
	m = typeText(t, m, "more")
	require.Equal(t, "", m.input.Value())
	m, extra := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})

	m = settle(t, m, tea.Batch(cmd, extra))
	require.False(t, m.ctrl.Loading())
	require.Equal(t, []string{"hi"}, env.backend.sends)

	msgs := m.ctrl.Messages()
	require.Len(t, msgs, 3)
	require.Equal(t, "echo: hi", msgs[2].Text)
	require.NotContains(t, m.View(), typingLabel)
	require.True(t, m.input.Focused())
}

func TestModel_BlankInputIsNotSent(t *testing.T) {
	env := &testEnv{}
	m := connected(t, env)

	m = typeText(t, m, "   ")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.Nil(t, run(cmd))
	require.False(t, m.ctrl.Loading())
	require.Len(t, m.ctrl.Messages(), 1)
}

func TestModel_SendFailureShowsBanner(t *testing.T) {
	env := &testEnv{backend: &fakeBackend{sendErr: errors.New("HTTP error! status: 500")}}
	m := connected(t, env)

	m = typeText(t, m, "hi")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	sr := find[sendResultMsg](t, run(cmd))
	m, expire := update(t, m, sr)

	require.False(t, m.ctrl.Loading())
	require.Equal(t, chat.SendErrorText, m.ctrl.Error())
	require.Contains(t, m.View(), chat.SendErrorText)
	require.Len(t, m.ctrl.Messages(), 2)

	m = settle(t, m, expire)
	require.Equal(t, "", m.ctrl.Error())
}

func TestModel_AutoScroll(t *testing.T) {
	env := &testEnv{}
	m := newTestModel(t, env, 80, 12)
	m = settle(t, m, m.Init())

	for i := 0; i < 8; i++ {
		m = typeText(t, m, "message")
		var cmd tea.Cmd
		m, cmd = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
		require.True(t, m.viewport.AtBottom())
		m = settle(t, m, cmd)
		require.True(t, m.viewport.AtBottom())
	}

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyPgUp})
	require.False(t, m.viewport.AtBottom())

	m = typeText(t, m, "newest")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)
	require.True(t, m.viewport.AtBottom())
}

func TestModel_HistoryPanelToggle(t *testing.T) {
	m := connected(t, &testEnv{})
	require.NotContains(t, m.View(), historyPanelTitle)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	require.True(t, m.showHistory)
	require.Equal(t, 30, m.rightWidth)
	require.Equal(t, 90, m.leftWidth)
	require.Contains(t, m.View(), historyPanelTitle)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.False(t, m.showHistory)
	require.Equal(t, 120, m.leftWidth)
	require.NotContains(t, m.View(), historyPanelTitle)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	require.False(t, m.showHistory)
}

func TestModel_HistoryPanelScrollsLongTranscript(t *testing.T) {
	store := historystore.NewInMemoryStore()
	msgs := make([]chat.Message, 0, 40)
	for i := 0; i < 40; i++ {
		msgs = append(msgs, chat.Message{ID: fmt.Sprintf("id-%d", i), Text: fmt.Sprintf("msg-%d", i), IsUser: i%2 == 0})
	}
	require.NoError(t, store.Save(context.Background(), msgs))

	env := &testEnv{store: store}
	m := newTestModel(t, env, 120, 24)
	m = settle(t, m, m.Init())
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})

	view := m.View()
	require.LessOrEqual(t, lipgloss.Height(view), 24)
	visible := strings.Fields(m.panel.View())
	require.Contains(t, visible, "msg-39")
	require.NotContains(t, visible, "msg-3", "oldest entries are scrolled out of view")
	require.True(t, m.panel.AtBottom())
	require.Contains(t, view, "ctrl+s save")
	require.Contains(t, view, historyPanelTitle)

	// pgup scrolls the panel while it is open, not the transcript
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyPgUp})
	require.False(t, m.panel.AtBottom())
	require.True(t, m.viewport.AtBottom())
	require.Contains(t, m.View(), "ctrl+s save")

	m = typeText(t, m, "newest")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)
	require.True(t, m.panel.AtBottom())
	require.Contains(t, m.panel.View(), "echo: newest")
}

func TestModel_SaveExport(t *testing.T) {
	env := &testEnv{}
	m := connected(t, env)

	// save only acts while the panel is open
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NoFileExists(t, filepath.Join(env.exportDir, "chat_history.md"))

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})

	path := filepath.Join(env.exportDir, "chat_history.md")
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Equal(t, "**AI:** "+chat.DefaultGreeting, string(b))
	require.Contains(t, m.status, path)
}

func TestModel_CopyExport(t *testing.T) {
	env := &testEnv{}
	m := connected(t, env)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlT})
	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	require.Equal(t, []string{"**AI:** " + chat.DefaultGreeting}, env.copied)

	env.copyErr = errors.New("no clipboard utility")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlY})
	require.Equal(t, copyErrorText, m.ctrl.Error())
	m = settle(t, m, cmd)
	require.Equal(t, "", m.ctrl.Error())
}

func TestModel_Clear(t *testing.T) {
	env := &testEnv{}
	m := connected(t, env)

	m = typeText(t, m, "hi")
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = settle(t, m, cmd)
	require.Len(t, m.ctrl.Messages(), 3)

	m, _ = update(t, m, tea.KeyMsg{Type: tea.KeyCtrlL})
	require.Empty(t, m.ctrl.Messages())
	require.Empty(t, m.ctrl.History())
	require.Nil(t, env.store.Raw())
	require.False(t, strings.Contains(m.viewport.View(), "echo: hi"))
}

func TestModel_Reconnect(t *testing.T) {
	env := &testEnv{backend: &fakeBackend{healthErr: errors.New("down")}}
	m := newTestModel(t, env, 120, 30)
	m = settle(t, m, m.Init())
	require.False(t, m.ctrl.Connected())

	env.backend.healthErr = nil
	m, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlR})
	m = settle(t, m, cmd)
	require.True(t, m.ctrl.Connected())
}

func TestModel_Quit(t *testing.T) {
	m := newTestModel(t, &testEnv{}, 120, 30)
	_, cmd := update(t, m, tea.KeyMsg{Type: tea.KeyCtrlC})
	msgs := run(cmd)
	require.NotEmpty(t, msgs)
	_ = find[tea.QuitMsg](t, msgs)
}
