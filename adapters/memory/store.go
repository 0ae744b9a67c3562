// Package memory provides an in-process EntryStore. It backs tests and the
// embedded mode where client and storage share one process.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/artpar/schemarest/core/flatq"
	"github.com/artpar/schemarest/domain/record"
	"github.com/artpar/schemarest/ports"
)

// EntryStore keeps flat rows in a map guarded by a mutex. Identifiers are
// assigned from a monotonic sequence starting at 1.
type EntryStore struct {
	mu      sync.RWMutex
	seq     int64
	entries map[int64]map[string]any
}

// NewEntryStore creates an empty in-memory store.
func NewEntryStore() *EntryStore {
	return &EntryStore{
		entries: make(map[int64]map[string]any),
	}
}

// Insert stores a new entry under the next sequence value.
func (s *EntryStore) Insert(ctx context.Context, flat map[string]any) (record.Identifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(flat), nil
}

// InsertMany stores a batch. The map-based store cannot fail mid-batch, so
// the all-or-nothing contract holds trivially.
func (s *EntryStore) InsertMany(ctx context.Context, flats []map[string]any) ([]record.Identifier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]record.Identifier, len(flats))
	for i, flat := range flats {
		ids[i] = s.insertLocked(flat)
	}
	return ids, nil
}

func (s *EntryStore) insertLocked(flat map[string]any) record.Identifier {
	s.seq++
	row := cloneRow(flat)
	row["id"] = s.seq
	s.entries[s.seq] = row
	return record.NewIdentifier(s.seq)
}

// Fetch retrieves one entry by identifier.
func (s *EntryStore) Fetch(ctx context.Context, id record.Identifier) (map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	row, ok := s.entries[id.Value()]
	if !ok || !id.IsSet() {
		return nil, ports.ErrNotFound
	}
	return cloneRow(row), nil
}

// Select filters, sorts, and paginates. The total count is taken before
// pagination.
func (s *EntryStore) Select(ctx context.Context, q ports.StoreQuery) ([]map[string]any, int64, error) {
	s.mu.RLock()
	var matched []map[string]any
	for _, row := range s.entries {
		if flatq.Match(row, q.Filters) {
			matched = append(matched, cloneRow(row))
		}
	}
	s.mu.RUnlock()

	// Deterministic base order before any requested sort.
	sort.Slice(matched, func(i, j int) bool {
		return matched[i]["id"].(int64) < matched[j]["id"].(int64)
	})
	flatq.Sort(matched, q.Sort)

	total := int64(len(matched))
	matched = paginate(matched, q.Limit, q.Offset)
	return matched, total, nil
}

// Replace overwrites an existing entry.
func (s *EntryStore) Replace(ctx context.Context, id record.Identifier, flat map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id.Value()]; !ok || !id.IsSet() {
		return ports.ErrNotFound
	}
	row := cloneRow(flat)
	row["id"] = id.Value()
	s.entries[id.Value()] = row
	return nil
}

// Remove deletes one entry.
func (s *EntryStore) Remove(ctx context.Context, id record.Identifier) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entries[id.Value()]; !ok || !id.IsSet() {
		return ports.ErrNotFound
	}
	delete(s.entries, id.Value())
	return nil
}

// RemoveAll wipes the collection.
func (s *EntryStore) RemoveAll(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := int64(len(s.entries))
	s.entries = make(map[int64]map[string]any)
	return n, nil
}

// Close is a no-op for the in-memory store.
func (s *EntryStore) Close() error {
	return nil
}

func paginate(rows []map[string]any, limit, offset int) []map[string]any {
	if offset > 0 {
		if offset >= len(rows) {
			return nil
		}
		rows = rows[offset:]
	}
	if limit > 0 && limit < len(rows) {
		rows = rows[:limit]
	}
	return rows
}

func cloneRow(row map[string]any) map[string]any {
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	return out
}
