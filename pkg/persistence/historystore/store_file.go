package historystore

import (
	"context"
	"os"
	"path/filepath"

	"github.com/go-go-golems/chatterm/pkg/chat"
	"github.com/pkg/errors"
)

// FileStore keeps the transcript as a JSON array in a single file.
// The file plays the role of the storage key: it is absent until the first save and removed on clear.
type FileStore struct {
	path string
}

var _ Store = &FileStore{}

func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("file history store: empty path")
	}
	return &FileStore{path: path}, nil
}

func (s *FileStore) Path() string { return s.path }

func (s *FileStore) Load(_ context.Context) ([]chat.Message, bool, error) {
	b, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "file history store: read")
	}
	msgs, err := decodeMessages(b)
	if err != nil {
		return nil, false, errors.Wrapf(err, "file history store: %s", s.path)
	}
	return msgs, true, nil
}

// Save replaces the file atomically: the list is written to a temporary file in
// the same directory and renamed over the previous one.
func (s *FileStore) Save(_ context.Context, msgs []chat.Message) error {
	b, err := encodeMessages(msgs)
	if err != nil {
		return err
	}
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "file history store: create directory")
	}
	tmp, err := os.CreateTemp(dir, ".chat_history-*.tmp")
	if err != nil {
		return errors.Wrap(err, "file history store: create temp file")
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "file history store: write")
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "file history store: close")
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(err, "file history store: rename")
	}
	return nil
}

func (s *FileStore) Clear(_ context.Context) error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "file history store: remove")
	}
	return nil
}

func (s *FileStore) Close() error { return nil }
