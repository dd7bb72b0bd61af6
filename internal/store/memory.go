package store

import (
	"context"
	"encoding/json"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of Store, used in tests and
// when no external backend is configured.
type MemoryStore struct {
	mu       sync.RWMutex
	records  map[string]json.RawMessage
	notifier *notifier
}

// NewMemoryStore creates a new instance of MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records:  make(map[string]json.RawMessage),
		notifier: newNotifier(),
	}
}

// Get reads the record at path.
func (s *MemoryStore) Get(ctx context.Context, path string, out any) error {
	s.mu.RLock()
	record, ok := s.records[path]
	s.mu.RUnlock()

	if !ok {
		return ErrNotFound
	}
	return decode(record, out)
}

// List reads all records one level below parent. Results are ordered by
// child id so listings are stable across calls.
func (s *MemoryStore) List(ctx context.Context, parent string, out any) error {
	s.mu.RLock()
	type entry struct {
		id     string
		record json.RawMessage
	}
	var entries []entry
	for path, record := range s.records {
		if id, ok := childOf(parent, path); ok {
			entries = append(entries, entry{id: id, record: record})
		}
	}
	s.mu.RUnlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].id < entries[j].id })
	records := make([]json.RawMessage, 0, len(entries))
	for _, e := range entries {
		records = append(records, e.record)
	}
	return decodeList(records, out)
}

// Set writes the record at path.
func (s *MemoryStore) Set(ctx context.Context, path string, value any) error {
	record, err := encode(value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.records[path] = record
	s.mu.Unlock()

	s.notifier.notify(path, record)
	return nil
}

// UpdateFields merges fields into the record at path.
func (s *MemoryStore) UpdateFields(ctx context.Context, path string, fields map[string]any) error {
	s.mu.Lock()
	current, ok := s.records[path]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	merged, err := mergeFields(current, fields)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.records[path] = merged
	s.mu.Unlock()

	s.notifier.notify(path, merged)
	return nil
}

// Remove deletes the record at path.
func (s *MemoryStore) Remove(ctx context.Context, path string) error {
	s.mu.Lock()
	delete(s.records, path)
	s.mu.Unlock()
	return nil
}

// GenerateID returns a new unique child id.
func (s *MemoryStore) GenerateID(ctx context.Context, parent string) (string, error) {
	return uuid.New().String(), nil
}

// RunTransaction executes fn atomically with respect to every other
// access of the store. The write lock is held across the read-modify-
// write, so concurrent transactions on the same path serialize.
func (s *MemoryStore) RunTransaction(ctx context.Context, path string, fn TxFunc) (bool, error) {
	s.mu.Lock()
	current := s.records[path] // nil when absent
	next, err := fn(current)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	s.records[path] = next
	s.mu.Unlock()

	s.notifier.notify(path, next)
	return true, nil
}

// Listen subscribes fn to writes under parent.
func (s *MemoryStore) Listen(ctx context.Context, parent string, fn ChangeFunc) (func(), error) {
	return s.notifier.subscribe(parent, fn), nil
}
