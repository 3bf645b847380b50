package blob

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"
)

var ErrNotFound = errors.New("object not found")

// Store is the object-storage surface for certificate documents.
type Store interface {
	Put(ctx context.Context, key string, body []byte, contentType string) error
	// FindLatest returns the key of the most recently modified object under
	// the given prefix, or ErrNotFound if nothing matches.
	FindLatest(ctx context.Context, prefix string) (string, error)
	ReadBytes(ctx context.Context, key string) ([]byte, error)
}

// MemoryStore is an in-process Store for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
}

type memoryObject struct {
	body     []byte
	modified time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: map[string]memoryObject{}}
}

func (m *MemoryStore) Put(ctx context.Context, key string, body []byte, contentType string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{body: append([]byte(nil), body...), modified: time.Now().UTC()}
	return nil
}

// PutAt stores an object with an explicit modification time so tests can
// exercise latest-wins prefix discovery.
func (m *MemoryStore) PutAt(key string, body []byte, modified time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = memoryObject{body: append([]byte(nil), body...), modified: modified}
}

func (m *MemoryStore) FindLatest(ctx context.Context, prefix string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	type candidate struct {
		key      string
		modified time.Time
	}
	var matches []candidate
	for key, obj := range m.objects {
		if strings.HasPrefix(key, prefix) {
			matches = append(matches, candidate{key, obj.modified})
		}
	}
	if len(matches) == 0 {
		return "", ErrNotFound
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].modified.After(matches[j].modified) })
	return matches[0].key, nil
}

func (m *MemoryStore) ReadBytes(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), obj.body...), nil
}
