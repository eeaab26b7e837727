package vectorindex

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/c360/catalogmatch/embedding"
	cmerrors "github.com/c360/catalogmatch/errors"
)

// MemoryIndex is an in-process brute-force Index.
//
// It scores every stored vector against the query with exact cosine
// similarity. Suitable for tests and small local catalogs; it makes no
// attempt at approximate search structures.
type MemoryIndex struct {
	mu     sync.RWMutex
	dims   map[embedding.Modality]int
	points map[string]*memPoint // keyed by product ID
}

type memPoint struct {
	vectors map[embedding.Modality]embedding.Vector
	payload map[string]string
}

// NewMemoryIndex creates an empty in-memory index with the given
// per-modality schema. A zero dimension disables that modality.
func NewMemoryIndex(imageDim, textDim int) *MemoryIndex {
	dims := make(map[embedding.Modality]int, 2)
	if imageDim > 0 {
		dims[embedding.ModalityImage] = imageDim
	}
	if textDim > 0 {
		dims[embedding.ModalityText] = textDim
	}
	return &MemoryIndex{
		dims:   dims,
		points: make(map[string]*memPoint),
	}
}

// EnsureCollection is a no-op for the in-memory index.
func (m *MemoryIndex) EnsureCollection(_ context.Context) error {
	return nil
}

// Upsert writes entries, merging same-product entries into one point.
func (m *MemoryIndex) Upsert(_ context.Context, entries []Entry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, e := range entries {
		if e.ID == "" {
			return cmerrors.WrapInvalid(
				fmt.Errorf("%w: entry with empty id", cmerrors.ErrInvalidInput),
				"vectorindex", "Upsert", "entry validation")
		}
		want, ok := m.dims[e.Modality]
		if !ok {
			return cmerrors.WrapInvalid(
				fmt.Errorf("%w: modality %q not in collection schema", cmerrors.ErrInvalidInput, e.Modality),
				"vectorindex", "Upsert", "entry validation")
		}
		if len(e.Vector) != want {
			return cmerrors.WrapFatal(
				fmt.Errorf("%w: %s vector for %s has %d dimensions, schema expects %d", cmerrors.ErrDimensionMismatch, e.Modality, e.ID, len(e.Vector), want),
				"vectorindex", "Upsert", "entry validation")
		}

		p, ok := m.points[e.ID]
		if !ok {
			p = &memPoint{
				vectors: make(map[embedding.Modality]embedding.Vector, 2),
				payload: make(map[string]string, len(e.Payload)),
			}
			m.points[e.ID] = p
		}
		p.vectors[e.Modality] = append(embedding.Vector(nil), e.Vector...)
		for k, v := range e.Payload {
			p.payload[k] = v
		}
	}
	return nil
}

// Query brute-force scores every point carrying a vector in the modality.
func (m *MemoryIndex) Query(_ context.Context, modality embedding.Modality, vec embedding.Vector, topK int, filter Filter) ([]Hit, error) {
	if topK <= 0 {
		return nil, cmerrors.WrapInvalid(
			fmt.Errorf("%w: topK must be positive, got %d", cmerrors.ErrInvalidTopK, topK),
			"vectorindex", "Query", "request validation")
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	want, ok := m.dims[modality]
	if !ok {
		return nil, cmerrors.WrapInvalid(
			fmt.Errorf("%w: modality %q not in collection schema", cmerrors.ErrInvalidInput, modality),
			"vectorindex", "Query", "request validation")
	}
	if len(vec) != want {
		return nil, cmerrors.WrapFatal(
			fmt.Errorf("%w: query vector has %d dimensions, schema expects %d", cmerrors.ErrDimensionMismatch, len(vec), want),
			"vectorindex", "Query", "request validation")
	}

	hits := make([]Hit, 0, len(m.points))
	for id, p := range m.points {
		stored, ok := p.vectors[modality]
		if !ok {
			continue
		}
		if !matchesFilter(p.payload, filter) {
			continue
		}
		hits = append(hits, Hit{
			ID:    id,
			Score: float32(embedding.CosineSimilarity(vec, stored)),
		})
	}

	// Descending score; ascending ID breaks ties deterministically.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})

	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func matchesFilter(payload map[string]string, filter Filter) bool {
	for k, v := range filter {
		if payload[k] != v {
			return false
		}
	}
	return true
}

// Delete removes all points for the given product IDs.
func (m *MemoryIndex) Delete(_ context.Context, ids []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

// Count returns the number of points held.
func (m *MemoryIndex) Count(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.points), nil
}

// Ping always succeeds for the in-memory index.
func (m *MemoryIndex) Ping(_ context.Context) error {
	return nil
}

// Close releases nothing for the in-memory index.
func (m *MemoryIndex) Close() error {
	return nil
}
