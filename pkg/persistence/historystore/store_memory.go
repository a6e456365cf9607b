package historystore

import (
	"context"
	"sync"

	"github.com/go-go-golems/chatterm/pkg/chat"
)

// InMemoryStore keeps the serialized transcript in memory.
// It stores the encoded form so that reads observe exactly what a durable store would return.
type InMemoryStore struct {
	mu    sync.Mutex
	value []byte
	saves int
}

var _ Store = &InMemoryStore{}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Load(_ context.Context) ([]chat.Message, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		return nil, false, nil
	}
	msgs, err := decodeMessages(s.value)
	if err != nil {
		return nil, false, err
	}
	return msgs, true, nil
}

func (s *InMemoryStore) Save(_ context.Context, msgs []chat.Message) error {
	b, err := encodeMessages(msgs)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = b
	s.saves++
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = nil
	return nil
}

// Raw returns the stored bytes, nil when the key is absent.
func (s *InMemoryStore) Raw() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.value == nil {
		return nil
	}
	out := make([]byte, len(s.value))
	copy(out, s.value)
	return out
}

// Saves counts successful Save calls.
func (s *InMemoryStore) Saves() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saves
}

func (s *InMemoryStore) Close() error { return nil }
