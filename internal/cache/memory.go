package cache

import (
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/datasynth/datasynth/internal/schema"
)

// MemStore is an in-process Store. It is safe for concurrent use and keeps no state on disk.
type MemStore struct {
	mu          sync.RWMutex
	schemas     map[string]schema.Schema
	lastUpdated time.Time
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{schemas: make(map[string]schema.Schema)}
}

// Get returns a copy of the schema stored under key.
func (m *MemStore) Get(key string) (schema.Schema, bool, error) {
	if err := validateKey(key); err != nil {
		return schema.Schema{}, false, err
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.schemas[key]
	if !ok {
		return schema.Schema{}, false, nil
	}
	return cloneSchema(s), true, nil
}

// Put stores a copy of s under key.
func (m *MemStore) Put(key string, s schema.Schema) error {
	if err := validateKey(key); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.schemas[key] = cloneSchema(s)
	m.lastUpdated = time.Now().UTC()
	return nil
}

// Stats reports the number of stored schemas.
func (m *MemStore) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	st := Stats{TotalSchemas: len(m.schemas)}
	if !m.lastUpdated.IsZero() {
		t := m.lastUpdated
		st.LastUpdated = &t
	}
	return st
}

// Healthy is always true.
func (m *MemStore) Healthy() bool {
	return true
}

// Keys lists the stored content keys.
func (m *MemStore) Keys() ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return slices.Sorted(maps.Keys(m.schemas)), nil
}

// Clear removes every entry.
func (m *MemStore) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	clear(m.schemas)
	m.lastUpdated = time.Now().UTC()
	return nil
}

func cloneSchema(s schema.Schema) schema.Schema {
	c := s
	c.CreatedAt = s.CreatedAt.UTC()
	c.Fields = make(schema.Fields, len(s.Fields))
	for i, f := range s.Fields {
		c.Fields[i] = schema.Field{Name: f.Name, Spec: f.Spec}
		c.Fields[i].Spec.Params = maps.Clone(f.Spec.Params)
	}
	return c
}
