package historystore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/go-go-golems/chatterm/pkg/chat"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

// SQLiteStore keeps transcripts in a key/value table, one row per storage key.
// Each save replaces the whole row in a single statement.
type SQLiteStore struct {
	db  *sql.DB
	key string
}

var _ Store = &SQLiteStore{}

func NewSQLiteStore(dsn string, key string) (*SQLiteStore, error) {
	if dsn == "" {
		return nil, errors.New("sqlite history store: empty dsn")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "sqlite history store: open")
	}
	s := &SQLiteStore{db: db, key: key}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// SQLiteDSNForFile builds a DSN for a database file with WAL and a busy timeout.
func SQLiteDSNForFile(path string) (string, error) {
	if path == "" {
		return "", errors.New("sqlite history store: empty path")
	}
	return fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000", path), nil
}

func (s *SQLiteStore) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS history_entries (
		  key TEXT PRIMARY KEY,
		  value TEXT NOT NULL,
		  message_count INTEGER NOT NULL,
		  updated_at_ms INTEGER NOT NULL
		);`,
	}
	for _, st := range stmts {
		if _, err := s.db.Exec(st); err != nil {
			return errors.Wrap(err, "sqlite history store: migrate")
		}
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context) ([]chat.Message, bool, error) {
	if s == nil || s.db == nil {
		return nil, false, errors.New("sqlite history store: db is nil")
	}
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM history_entries WHERE key = ?`, s.key).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "sqlite history store: load")
	}
	msgs, err := decodeMessages([]byte(value))
	if err != nil {
		return nil, false, err
	}
	return msgs, true, nil
}

func (s *SQLiteStore) Save(ctx context.Context, msgs []chat.Message) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite history store: db is nil")
	}
	b, err := encodeMessages(msgs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO history_entries (key, value, message_count, updated_at_ms)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			message_count = excluded.message_count,
			updated_at_ms = excluded.updated_at_ms
	`, s.key, string(b), len(msgs), time.Now().UnixMilli())
	if err != nil {
		return errors.Wrap(err, "sqlite history store: save")
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite history store: db is nil")
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM history_entries WHERE key = ?`, s.key); err != nil {
		return errors.Wrap(err, "sqlite history store: clear")
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}
