// Package memory provides an in-memory RunStore for single-process use.
// Runs are lost when the process exits. A capacity bound evicts the oldest
// run once the limit is reached.
package memory

import (
	"container/list"
	"context"
	"sync"

	"github.com/runestone-ai/runestone-go/pkg/storage"
	"github.com/runestone-ai/runestone-go/pkg/validate"
)

// DefaultLimit is the capacity used when New is given a non-positive limit.
const DefaultLimit = 100

// Store is a bounded in-memory RunStore.
type Store struct {
	mu    sync.RWMutex
	runs  map[string]*list.Element
	order *list.List // front = newest, back = oldest
	limit int
}

// Ensure Store implements storage.RunStore at compile time.
var _ storage.RunStore = (*Store)(nil)

// New creates an in-memory store keeping at most limit runs.
func New(limit int) *Store {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Store{
		runs:  make(map[string]*list.Element),
		order: list.New(),
		limit: limit,
	}
}

// SaveRun stores a run, evicting the oldest stored run when at capacity.
func (s *Store) SaveRun(_ context.Context, run *validate.Run) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return storage.ErrConflict
	}

	if s.order.Len() >= s.limit {
		s.evictOldest()
	}

	s.runs[run.ID] = s.order.PushFront(run)
	return nil
}

// GetRun retrieves a run by ID.
func (s *Store) GetRun(_ context.Context, id string) (*validate.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	elem, ok := s.runs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return elem.Value.(*validate.Run), nil
}

// ListRuns returns up to limit runs, newest first.
func (s *Store) ListRuns(_ context.Context, limit int) ([]*validate.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 || limit > s.order.Len() {
		limit = s.order.Len()
	}

	out := make([]*validate.Run, 0, limit)
	for elem := s.order.Front(); elem != nil && len(out) < limit; elem = elem.Next() {
		out = append(out, elem.Value.(*validate.Run))
	}
	return out, nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the oldest run. Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.order.Back()
	if back == nil {
		return
	}
	run := back.Value.(*validate.Run)
	s.order.Remove(back)
	delete(s.runs, run.ID)
}
