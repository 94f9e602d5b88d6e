package cart

import (
	"context"
	"sync"
)

// StorageKey prefixes every persisted cart.
const StorageKey = "bulls-cart"

// Storage holds the serialized cart of one session. Load returns nil, nil
// when nothing has been stored yet.
type Storage interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Backend hands out the Storage for a cart session.
type Backend interface {
	Storage(session string) Storage
}

func sessionKey(session string) string {
	if session == "" {
		return StorageKey
	}
	return StorageKey + ":" + session
}

var (
	_ Storage = (*MemoryStorage)(nil)
	_ Storage = (*memorySession)(nil)
	_ Backend = (*MemoryBackend)(nil)
)

type MemoryStorage struct {
	mu   sync.RWMutex
	data []byte
}

func NewMemoryStorage(initial []byte) *MemoryStorage {
	return &MemoryStorage{data: initial}
}

func (m *MemoryStorage) Load(context.Context) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.data == nil {
		return nil, nil
	}
	out := make([]byte, len(m.data))
	copy(out, m.data)
	return out, nil
}

func (m *MemoryStorage) Save(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

// MemoryBackend keeps every session's cart in process memory. A session
// takes memory only once its cart is first saved.
type MemoryBackend struct {
	mu       sync.Mutex
	sessions map[string]*MemoryStorage
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{sessions: make(map[string]*MemoryStorage)}
}

func (b *MemoryBackend) Storage(session string) Storage {
	return &memorySession{backend: b, key: sessionKey(session)}
}

// Sessions reports how many sessions have a stored cart.
func (b *MemoryBackend) Sessions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

func (b *MemoryBackend) lookup(key string, create bool) *MemoryStorage {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[key]
	if !ok && create {
		s = NewMemoryStorage(nil)
		b.sessions[key] = s
	}
	return s
}

type memorySession struct {
	backend *MemoryBackend
	key     string
}

func (s *memorySession) Load(ctx context.Context) ([]byte, error) {
	storage := s.backend.lookup(s.key, false)
	if storage == nil {
		return nil, nil
	}
	return storage.Load(ctx)
}

func (s *memorySession) Save(ctx context.Context, data []byte) error {
	return s.backend.lookup(s.key, true).Save(ctx, data)
}
