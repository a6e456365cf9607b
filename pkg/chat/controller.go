package chat

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultGreeting seeds an empty conversation.
	DefaultGreeting = "Hello! I'm your AI assistant."

	// ErrorDisplayDuration is how long a transient error stays visible.
	ErrorDisplayDuration = 3 * time.Second

	HealthErrorText = "Unable to connect to backend. Please ensure the server is running."
	SendErrorText   = "Sorry, I encountered an error. Please try again."
)

// ErrSendSkipped is returned by Send when the input is blank or a send is already in flight.
var ErrSendSkipped = errors.New("send skipped")

// Backend is the remote chat service.
type Backend interface {
	Health(ctx context.Context) (HealthReport, error)
	Send(ctx context.Context, message string, history []Turn) (string, error)
}

// HistoryStore persists the visible message list under a single key.
// Load reports found=false when nothing is stored.
type HistoryStore interface {
	Load(ctx context.Context) (msgs []Message, found bool, err error)
	Save(ctx context.Context, msgs []Message) error
	Clear(ctx context.Context) error
}

// PendingSend is a send that was started by BeginSend and awaits its backend result.
type PendingSend struct {
	Message string
	History []Turn

	epoch uint64
}

// Controller owns the conversation state of one chat client.
//
// It is not safe for concurrent use: a single owner (the UI event loop or a
// synchronous command) drives it, and backend calls happen between
// BeginSend and CompleteSend.
type Controller struct {
	store HistoryStore

	messages  []Message
	input     string
	loading   bool
	connected bool

	errText string
	errGen  uint64

	// backend-format transcript, never persisted
	history []Turn

	// bumped on clear; completions from an older epoch are dropped
	epoch    uint64
	revision uint64

	now      func() time.Time
	newID    func() string
	greeting string
}

type ControllerOption func(*Controller)

func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

func WithIDGenerator(newID func() string) ControllerOption {
	return func(c *Controller) { c.newID = newID }
}

func WithGreeting(greeting string) ControllerOption {
	return func(c *Controller) { c.greeting = greeting }
}

func NewController(store HistoryStore, opts ...ControllerOption) *Controller {
	c := &Controller{
		store:    store,
		now:      time.Now,
		newID:    newMessageID,
		greeting: DefaultGreeting,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Restore loads the persisted transcript, or seeds the greeting when there is none.
func (c *Controller) Restore(ctx context.Context) {
	var msgs []Message
	found := false
	if c.store != nil {
		var err error
		msgs, found, err = c.store.Load(ctx)
		if err != nil {
			log.Warn().Err(err).Str("component", "controller").Msg("could not restore chat history")
			found = false
		}
	}
	if found {
		ensureIDs(msgs, c.newID)
		c.messages = msgs
	} else {
		c.messages = []Message{c.newMessage(c.greeting, false)}
	}
	log.Debug().Int("messages", len(c.messages)).Bool("restored", found).Msg("chat history initialized")
	c.changed(ctx)
}

func (c *Controller) Messages() []Message { return cloneMessages(c.messages) }

// History returns the backend-format transcript sent with the next message.
func (c *Controller) History() []Turn { return cloneTurns(c.history) }

func (c *Controller) Input() string { return c.input }

func (c *Controller) SetInput(s string) { c.input = s }

func (c *Controller) Loading() bool { return c.loading }

func (c *Controller) Connected() bool { return c.connected }

// Error returns the visible transient error, or "" when none is shown.
func (c *Controller) Error() string { return c.errText }

// Revision changes every time the message list changes.
func (c *Controller) Revision() uint64 { return c.revision }

// CanSend reports whether the input would be accepted by BeginSend.
func (c *Controller) CanSend() bool {
	return !c.loading && strings.TrimSpace(c.input) != ""
}

// ApplyHealth records the outcome of a health check.
// It returns the error generation when a banner was raised, 0 otherwise.
func (c *Controller) ApplyHealth(report HealthReport, err error) uint64 {
	if err != nil {
		log.Error().Err(err).Str("component", "controller").Msg("backend health check failed")
		c.connected = false
		return c.ShowError(HealthErrorText)
	}
	c.connected = report.Healthy()
	log.Debug().Str("status", report.Status).Bool("model_loaded", report.ModelLoaded).Msg("backend health")
	return 0
}

// CheckHealth queries the backend and applies the result.
func (c *Controller) CheckHealth(ctx context.Context, b Backend) uint64 {
	report, err := b.Health(ctx)
	return c.ApplyHealth(report, err)
}

// BeginSend appends the trimmed input as a user message and marks a send in flight.
// It returns false without touching state when the input is blank or loading is set.
func (c *Controller) BeginSend(ctx context.Context) (*PendingSend, bool) {
	text := strings.TrimSpace(c.input)
	if text == "" || c.loading {
		return nil, false
	}

	p := &PendingSend{
		Message: text,
		History: cloneTurns(c.history),
		epoch:   c.epoch,
	}
	c.messages = append(c.messages, c.newMessage(text, true))
	c.input = ""
	c.loading = true
	c.changed(ctx)
	return p, true
}

// CompleteSend applies a backend result to a pending send.
// It returns the error generation when a banner was raised, 0 otherwise.
func (c *Controller) CompleteSend(ctx context.Context, p *PendingSend, response string, err error) uint64 {
	c.loading = false
	if err != nil {
		log.Error().Err(err).Str("component", "controller").Msg("error sending message")
		return c.ShowError(SendErrorText)
	}
	if p == nil || p.epoch != c.epoch {
		log.Info().Str("component", "controller").Msg("dropping response for a cleared conversation")
		return 0
	}

	c.messages = append(c.messages, c.newMessage(response, false))
	c.history = append(c.history,
		Turn{Role: RoleUser, Content: p.Message},
		Turn{Role: RoleAssistant, Content: response},
	)
	c.changed(ctx)
	return 0
}

// Send runs a whole send synchronously. It returns ErrSendSkipped when the
// guard rejected the input, otherwise the backend error if any.
func (c *Controller) Send(ctx context.Context, b Backend) error {
	p, ok := c.BeginSend(ctx)
	if !ok {
		return ErrSendSkipped
	}
	response, err := b.Send(ctx, p.Message, p.History)
	c.CompleteSend(ctx, p, response, err)
	return err
}

// ShowError sets the transient error and returns its generation, to be passed
// to ExpireError once ErrorDisplayDuration has elapsed.
func (c *Controller) ShowError(text string) uint64 {
	c.errGen++
	c.errText = text
	return c.errGen
}

// ExpireError clears the error if it is still the one raised with gen.
func (c *Controller) ExpireError(gen uint64) bool {
	if gen != c.errGen || c.errText == "" {
		return false
	}
	c.errText = ""
	return true
}

// Clear empties the transcript and the backend history and removes the stored entry.
func (c *Controller) Clear(ctx context.Context) error {
	c.messages = []Message{}
	c.history = nil
	c.epoch++
	c.revision++
	if c.store == nil {
		return nil
	}
	if err := c.store.Clear(ctx); err != nil {
		return errors.Wrap(err, "clear stored history")
	}
	return nil
}

// Export formats the current transcript.
func (c *Controller) Export(format ExportFormat) (string, error) {
	return FormatTranscript(c.messages, format)
}

// ExportToFile writes the current transcript to dir and returns the file path.
func (c *Controller) ExportToFile(dir string, format ExportFormat) (string, error) {
	return WriteExport(dir, c.messages, format)
}

func (c *Controller) newMessage(text string, isUser bool) Message {
	return Message{
		ID:        c.newID(),
		Text:      text,
		IsUser:    isUser,
		Timestamp: formatTimestamp(c.now()),
	}
}

// changed persists the list after a mutation. Persistence is best-effort.
func (c *Controller) changed(ctx context.Context) {
	c.revision++
	if c.store == nil {
		return
	}
	if err := c.store.Save(ctx, c.messages); err != nil {
		log.Warn().Err(err).Str("component", "controller").Int("messages", len(c.messages)).Msg("could not persist chat history")
	}
}
