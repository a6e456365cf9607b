package historystore

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-go-golems/chatterm/pkg/chat"
	"github.com/pkg/errors"
)

// redisPingTimeout bounds the reachability check done when a redis store is opened.
const redisPingTimeout = 5 * time.Second

// DefaultKey is the storage key of the transcript, shared with the browser client.
const DefaultKey = "chat_history"

const (
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Store is a chat.HistoryStore that holds resources.
type Store interface {
	chat.HistoryStore
	Close() error
}

// Settings selects and configures a store backend.
type Settings struct {
	Backend   string
	Path      string
	Key       string
	RedisAddr string
}

// New opens the store described by s.
func New(s Settings) (Store, error) {
	key := strings.TrimSpace(s.Key)
	if key == "" {
		key = DefaultKey
	}
	switch strings.ToLower(strings.TrimSpace(s.Backend)) {
	case BackendFile, "":
		return NewFileStore(s.Path)
	case BackendSQLite:
		dsn, err := SQLiteDSNForFile(s.Path)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(s.Path), 0o755); err != nil {
			return nil, errors.Wrap(err, "sqlite history store: create directory")
		}
		return NewSQLiteStore(dsn, key)
	case BackendRedis:
		rs, err := NewRedisStore(s.RedisAddr, key)
		if err != nil {
			return nil, err
		}
		ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
		defer cancel()
		if err := rs.Ping(ctx); err != nil {
			_ = rs.Close()
			return nil, err
		}
		return rs, nil
	case BackendMemory:
		return NewInMemoryStore(), nil
	}
	return nil, errors.Errorf("unknown history store backend %q", s.Backend)
}

func encodeMessages(msgs []chat.Message) ([]byte, error) {
	if msgs == nil {
		msgs = []chat.Message{}
	}
	b, err := json.Marshal(msgs)
	if err != nil {
		return nil, errors.Wrap(err, "encode chat history")
	}
	return b, nil
}

func decodeMessages(b []byte) ([]chat.Message, error) {
	var msgs []chat.Message
	if err := json.Unmarshal(b, &msgs); err != nil {
		return nil, errors.Wrap(err, "decode chat history")
	}
	if msgs == nil {
		msgs = []chat.Message{}
	}
	return msgs, nil
}
