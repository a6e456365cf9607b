package chat

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role is the speaker of a backend-format turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TimestampLayout matches JavaScript's Date.toISOString so that stores shared
// with the browser client keep a single timestamp format.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Message is one entry of the visible transcript.
//
// The JSON keys follow the browser client's local storage format; records
// written by that client have no id and get one assigned on load.
type Message struct {
	ID        string `json:"id,omitempty" yaml:"id,omitempty"`
	Text      string `json:"text" yaml:"text"`
	IsUser    bool   `json:"isUser" yaml:"isUser"`
	Timestamp string `json:"timestamp,omitempty" yaml:"timestamp,omitempty"`
}

// Label returns the plain role label used by the history panel and the txt export.
func (m Message) Label() string {
	if m.IsUser {
		return "You:"
	}
	return "AI:"
}

// Turn is the role/content shape the backend expects in the request history.
type Turn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// HealthReport is the body returned by the backend health endpoint.
type HealthReport struct {
	Status      string `json:"status"`
	ModelLoaded bool   `json:"model_loaded"`
}

// Healthy reports whether the backend can serve chat requests.
func (h HealthReport) Healthy() bool {
	return h.Status == "healthy" && h.ModelLoaded
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

func newMessageID() string {
	return uuid.NewString()
}

// ensureIDs assigns identifiers to restored messages that were persisted without one.
// It reports whether any message was changed.
func ensureIDs(msgs []Message, newID func() string) bool {
	changed := false
	for i := range msgs {
		if strings.TrimSpace(msgs[i].ID) == "" {
			msgs[i].ID = newID()
			changed = true
		}
	}
	return changed
}

func cloneMessages(msgs []Message) []Message {
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out
}

func cloneTurns(turns []Turn) []Turn {
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
