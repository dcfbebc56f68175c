package history

import (
	"context"
	"slices"
	"sync"

	"dreamsun/generation"
)

// Store keeps each owner's generation results, most recent first.
type Store interface {
	Add(ctx context.Context, owner string, result generation.Result) error
	List(ctx context.Context, owner string) ([]generation.Result, error)
	Clear(ctx context.Context, owner string) error
}

// MemoryStore is a Store held in process memory.
type MemoryStore struct {
	limit int

	mu      sync.RWMutex
	results map[string][]generation.Result
}

// NewMemoryStore keeps at most limit results per owner.
func NewMemoryStore(limit int) *MemoryStore {
	return &MemoryStore{limit: limit, results: make(map[string][]generation.Result)}
}

func (s *MemoryStore) Add(_ context.Context, owner string, result generation.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	list := append([]generation.Result{result}, s.results[owner]...)
	if s.limit > 0 && len(list) > s.limit {
		list = list[:s.limit]
	}
	s.results[owner] = list
	return nil
}

func (s *MemoryStore) List(_ context.Context, owner string) ([]generation.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := slices.Clone(s.results[owner])
	if out == nil {
		out = []generation.Result{}
	}
	return out, nil
}

func (s *MemoryStore) Clear(_ context.Context, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.results, owner)
	return nil
}
