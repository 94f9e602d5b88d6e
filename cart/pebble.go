package cart

import (
	"context"
	"errors"

	"github.com/cockroachdb/pebble"
)

var (
	_ Storage = (*PebbleStorage)(nil)
	_ Backend = (*PebbleBackend)(nil)
)

// PebbleStorage keeps one cart in a local Pebble database.
type PebbleStorage struct {
	db  *pebble.DB
	key []byte
}

func NewPebbleStorage(db *pebble.DB, key string) *PebbleStorage {
	return &PebbleStorage{db: db, key: []byte(key)}
}

func (s *PebbleStorage) Load(context.Context) ([]byte, error) {
	v, closer, err := s.db.Get(s.key)
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer closer.Close()

	// v 只在 closer 關閉前有效
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (s *PebbleStorage) Save(_ context.Context, data []byte) error {
	return s.db.Set(s.key, data, pebble.Sync)
}

type PebbleBackend struct {
	db *pebble.DB
}

func NewPebbleBackend(db *pebble.DB) *PebbleBackend {
	return &PebbleBackend{db: db}
}

func (b *PebbleBackend) Storage(session string) Storage {
	return NewPebbleStorage(b.db, sessionKey(session))
}
