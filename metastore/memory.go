package metastore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/c360/catalogmatch/errors"
	"github.com/c360/catalogmatch/types"
)

// MemoryStore is an in-process Store for tests and local runs.
type MemoryStore struct {
	mu       sync.RWMutex
	products map[string]types.Product
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{products: make(map[string]types.Product)}
}

// Get returns the product with the given ID.
func (s *MemoryStore) Get(_ context.Context, id string) (types.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.products[id]
	if !ok {
		return types.Product{}, errors.WrapInvalid(
			fmt.Errorf("%w: %s", errors.ErrProductNotFound, id),
			"metastore", "Get", "lookup")
	}
	return p, nil
}

// GetMany returns the products for the given IDs; missing IDs are absent.
func (s *MemoryStore) GetMany(_ context.Context, ids []string) (map[string]types.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]types.Product, len(ids))
	for _, id := range ids {
		if p, ok := s.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

// UpsertMany writes products, replacing existing records.
func (s *MemoryStore) UpsertMany(_ context.Context, products []types.Product) error {
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range products {
		s.products[p.ID] = p
	}
	return nil
}

// Delete removes the records for the given IDs.
func (s *MemoryStore) Delete(_ context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		delete(s.products, id)
	}
	return nil
}

// List returns up to limit products ordered by ID.
func (s *MemoryStore) List(_ context.Context, limit int) ([]types.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]types.Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of stored products.
func (s *MemoryStore) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.products), nil
}

// Ping always succeeds for the in-memory store.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close releases nothing for the in-memory store.
func (s *MemoryStore) Close() error {
	return nil
}
