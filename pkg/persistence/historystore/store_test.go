package historystore

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-go-golems/chatterm/pkg/chat"
	"github.com/stretchr/testify/require"
)

func sampleMessages() []chat.Message {
	return []chat.Message{
		{ID: "m1", Text: "Hello! I'm your AI assistant.", IsUser: false, Timestamp: "2026-10-15T09:00:00.000Z"},
		{ID: "m2", Text: "hi\nthere", IsUser: true, Timestamp: "2026-10-15T09:00:01.000Z"},
		{ID: "m3", Text: "hello", IsUser: false},
	}
}

// exerciseStore runs the key lifecycle every backend must honor.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, found, err := s.Load(ctx)
	require.NoError(t, err)
	require.False(t, found)

	msgs := sampleMessages()
	require.NoError(t, s.Save(ctx, msgs))

	got, found, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, msgs, got)

	// last write wins
	require.NoError(t, s.Save(ctx, msgs[:1]))
	got, found, err = s.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, msgs[:1], got)

	// an empty list is stored, not treated as absent
	require.NoError(t, s.Save(ctx, nil))
	got, found, err = s.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Empty(t, got)

	require.NoError(t, s.Clear(ctx))
	_, found, err = s.Load(ctx)
	require.NoError(t, err)
	require.False(t, found)

	// clearing an absent key is fine
	require.NoError(t, s.Clear(ctx))
}

func TestInMemoryStore(t *testing.T) {
	s := NewInMemoryStore()
	exerciseStore(t, s)
	require.Nil(t, s.Raw())
}

func TestFileStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "chat_history.json")
	s, err := NewFileStore(path)
	require.NoError(t, err)
	exerciseStore(t, s)

	_, err = os.Stat(path)
	require.True(t, os.IsNotExist(err))
}

func TestFileStore_ReadsBrowserFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_history.json")
	raw := `[{"text":"Hello! I'm your AI assistant.","isUser":false,"timestamp":"2025-01-01T00:00:00.000Z"},{"text":"hi","isUser":true}]`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	msgs, found, err := s.Load(context.Background())
	require.NoError(t, err)
	require.True(t, found)
	require.Len(t, msgs, 2)
	require.Equal(t, "", msgs[0].ID)
	require.True(t, msgs[1].IsUser)
	require.Equal(t, "hi", msgs[1].Text)
}

func TestFileStore_CorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat_history.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, _, err = s.Load(context.Background())
	require.Error(t, err)
}

func TestSQLiteStore(t *testing.T) {
	dsn, err := SQLiteDSNForFile(filepath.Join(t.TempDir(), "chatterm.db"))
	require.NoError(t, err)
	s, err := NewSQLiteStore(dsn, "")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	exerciseStore(t, s)
}

func TestSQLiteStore_KeysAreIndependent(t *testing.T) {
	dsn, err := SQLiteDSNForFile(filepath.Join(t.TempDir(), "chatterm.db"))
	require.NoError(t, err)
	a, err := NewSQLiteStore(dsn, "a")
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	b, err := NewSQLiteStore(dsn, "b")
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	ctx := context.Background()
	require.NoError(t, a.Save(ctx, sampleMessages()))
	_, found, err := b.Load(ctx)
	require.NoError(t, err)
	require.False(t, found)
}

func TestRedisStore(t *testing.T) {
	addr := os.Getenv("CHATTERM_TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("CHATTERM_TEST_REDIS_ADDR not set")
	}
	s, err := NewRedisStore(addr, "chatterm_test_history")
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.NoError(t, s.Ping(context.Background()))
	require.NoError(t, s.Clear(context.Background()))
	exerciseStore(t, s)
}

func TestNew(t *testing.T) {
	s, err := New(Settings{Backend: BackendMemory})
	require.NoError(t, err)
	require.IsType(t, &InMemoryStore{}, s)

	s, err = New(Settings{Backend: "", Path: filepath.Join(t.TempDir(), "h.json")})
	require.NoError(t, err)
	require.IsType(t, &FileStore{}, s)

	_, err = New(Settings{Backend: "cookie"})
	require.ErrorContains(t, err, "unknown history store backend")

	_, err = New(Settings{Backend: BackendRedis})
	require.Error(t, err)
}

func TestNew_SQLiteCreatesParentDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh", "nested", "chatterm.db")
	s, err := New(Settings{Backend: BackendSQLite, Path: path})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	require.IsType(t, &SQLiteStore{}, s)

	ctx := context.Background()
	require.NoError(t, s.Save(ctx, sampleMessages()))
	msgs, found, err := s.Load(ctx)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, sampleMessages(), msgs)
	require.FileExists(t, path)
}

func TestNew_RedisUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	_, err = New(Settings{Backend: BackendRedis, RedisAddr: addr})
	require.ErrorContains(t, err, "redis history store: ping")
}
