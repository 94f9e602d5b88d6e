package cart

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	_ Storage = (*RedisStorage)(nil)
	_ Backend = (*RedisBackend)(nil)
)

// RedisStorage keeps one cart under a single Redis string key.
type RedisStorage struct {
	client redis.Cmdable
	key    string
	ttl    time.Duration
}

func NewRedisStorage(client redis.Cmdable, key string, ttl time.Duration) *RedisStorage {
	return &RedisStorage{client: client, key: key, ttl: ttl}
}

func (s *RedisStorage) Load(ctx context.Context) ([]byte, error) {
	data, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	return data, err
}

func (s *RedisStorage) Save(ctx context.Context, data []byte) error {
	return s.client.Set(ctx, s.key, data, s.ttl).Err()
}

// RedisBackend stores carts in Redis. A zero ttl keeps carts forever.
type RedisBackend struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisBackend(client redis.Cmdable, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, ttl: ttl}
}

func (b *RedisBackend) Storage(session string) Storage {
	return NewRedisStorage(b.client, sessionKey(session), b.ttl)
}
