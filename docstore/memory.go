package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var _ Store = (*Memory)(nil)

// Memory is an in-process Store. Data is round-tripped through JSON on the
// way in so callers observe the same value types a remote store returns.
type Memory struct {
	mu          sync.RWMutex
	collections map[string]map[string]*memoryDoc
	seq         uint64
	now         func() time.Time
}

type memoryDoc struct {
	Document
	seq uint64
}

func NewMemory() *Memory {
	return &Memory{
		collections: make(map[string]map[string]*memoryDoc),
		now:         time.Now,
	}
}

// WithClock replaces the time source, used by tests that need a stable order.
func (m *Memory) WithClock(now func() time.Time) *Memory {
	m.now = now
	return m
}

func (m *Memory) List(_ context.Context, collection string, filter Filter) ([]*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	matched := make([]*memoryDoc, 0, len(m.collections[collection]))
	for _, doc := range m.collections[collection] {
		if filter.Field != "" && !fieldEquals(doc.Data[filter.Field], filter.Equals) {
			continue
		}
		matched = append(matched, doc)
	}
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			if filter.NewestFirst {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.CreatedAt.Before(b.CreatedAt)
		}
		if filter.NewestFirst {
			return a.seq > b.seq
		}
		return a.seq < b.seq
	})

	docs := make([]*Document, 0, len(matched))
	for _, doc := range matched {
		docs = append(docs, doc.copy())
	}
	return docs, nil
}

func (m *Memory) Get(_ context.Context, collection, id string) (*Document, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, ErrNotFound
	}
	return doc.copy(), nil
}

func (m *Memory) Create(_ context.Context, collection string, data map[string]any) (*Document, error) {
	normalized, err := normalize(data)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	doc := m.insert(collection, uuid.NewString(), normalized)
	return doc.copy(), nil
}

func (m *Memory) Set(_ context.Context, collection, id string, data map[string]any, merge bool) error {
	normalized, err := normalize(data)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.collections[collection][id]
	if !ok {
		m.insert(collection, id, normalized)
		return nil
	}
	if merge {
		for k, v := range normalized {
			existing.Data[k] = v
		}
	} else {
		existing.Data = normalized
	}
	existing.UpdatedAt = m.now()
	return nil
}

func (m *Memory) Patch(_ context.Context, collection, id string, fields map[string]any) error {
	normalized, err := normalize(fields)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.collections[collection][id]
	if !ok {
		return ErrNotFound
	}
	for k, v := range normalized {
		existing.Data[k] = v
	}
	existing.UpdatedAt = m.now()
	return nil
}

func (m *Memory) Delete(_ context.Context, collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.collections[collection], id)
	return nil
}

// Len reports how many documents a collection holds.
func (m *Memory) Len(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

func (m *Memory) insert(collection, id string, data map[string]any) *memoryDoc {
	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]*memoryDoc)
		m.collections[collection] = docs
	}
	m.seq++
	now := m.now()
	doc := &memoryDoc{
		Document: Document{ID: id, Data: data, CreatedAt: now, UpdatedAt: now},
		seq:      m.seq,
	}
	docs[id] = doc
	return doc
}

func (d *memoryDoc) copy() *Document {
	data := make(map[string]any, len(d.Data))
	for k, v := range d.Data {
		data[k] = v
	}
	return &Document{ID: d.ID, Data: data, CreatedAt: d.CreatedAt, UpdatedAt: d.UpdatedAt}
}

func normalize(data map[string]any) (map[string]any, error) {
	payload, err := encode(data)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err = json.Unmarshal([]byte(payload), &out); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	return out, nil
}

// fieldEquals compares the way data->>field = value does in Postgres.
func fieldEquals(v any, want string) bool {
	switch x := v.(type) {
	case nil:
		return false
	case string:
		return x == want
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return false
		}
		return string(b) == want
	}
}
