package historystore

import (
	"context"
	"strings"

	"github.com/go-go-golems/chatterm/pkg/chat"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the transcript as a single string value.
type RedisStore struct {
	client *redis.Client
	key    string
}

var _ Store = &RedisStore{}

func NewRedisStore(addr string, key string) (*RedisStore, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return nil, errors.New("redis history store: empty address")
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = DefaultKey
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{Addr: addr}),
		key:    key,
	}, nil
}

// Ping checks that the server is reachable.
func (s *RedisStore) Ping(ctx context.Context) error {
	return errors.Wrap(s.client.Ping(ctx).Err(), "redis history store: ping")
}

func (s *RedisStore) Load(ctx context.Context) ([]chat.Message, bool, error) {
	b, err := s.client.Get(ctx, s.key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, errors.Wrap(err, "redis history store: get")
	}
	msgs, err := decodeMessages(b)
	if err != nil {
		return nil, false, err
	}
	return msgs, true, nil
}

func (s *RedisStore) Save(ctx context.Context, msgs []chat.Message) error {
	b, err := encodeMessages(msgs)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key, b, 0).Err(); err != nil {
		return errors.Wrap(err, "redis history store: set")
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context) error {
	if err := s.client.Del(ctx, s.key).Err(); err != nil {
		return errors.Wrap(err, "redis history store: del")
	}
	return nil
}

func (s *RedisStore) Close() error { return s.client.Close() }
