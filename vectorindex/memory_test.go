package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/catalogmatch/embedding"
	cmerrors "github.com/c360/catalogmatch/errors"
)

func TestMemoryIndexQueryRanksByCosine(t *testing.T) {
	idx := NewMemoryIndex(0, 3)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Entry{
		{ID: "far", Modality: embedding.ModalityText, Vector: embedding.Vector{0, 1, 0}},
		{ID: "close", Modality: embedding.ModalityText, Vector: embedding.Vector{1, 0.1, 0}},
		{ID: "exact", Modality: embedding.ModalityText, Vector: embedding.Vector{1, 0, 0}},
	}))

	hits, err := idx.Query(ctx, embedding.ModalityText, embedding.Vector{1, 0, 0}, 2, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)

	assert.Equal(t, "exact", hits[0].ID)
	assert.InDelta(t, 1.0, float64(hits[0].Score), 1e-6)
	assert.Equal(t, "close", hits[1].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)
}

func TestMemoryIndexEmptyQuery(t *testing.T) {
	idx := NewMemoryIndex(4, 3)

	hits, err := idx.Query(context.Background(), embedding.ModalityText, embedding.Vector{1, 0, 0}, 5, nil)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestMemoryIndexTieBreaksByID(t *testing.T) {
	idx := NewMemoryIndex(0, 2)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Entry{
		{ID: "beta", Modality: embedding.ModalityText, Vector: embedding.Vector{1, 0}},
		{ID: "alpha", Modality: embedding.ModalityText, Vector: embedding.Vector{1, 0}},
	}))

	hits, err := idx.Query(ctx, embedding.ModalityText, embedding.Vector{1, 0}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "alpha", hits[0].ID)
	assert.Equal(t, "beta", hits[1].ID)
}

func TestMemoryIndexUpsertOverwrites(t *testing.T) {
	idx := NewMemoryIndex(0, 2)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Entry{
		{ID: "p1", Modality: embedding.ModalityText, Vector: embedding.Vector{1, 0}},
	}))
	require.NoError(t, idx.Upsert(ctx, []Entry{
		{ID: "p1", Modality: embedding.ModalityText, Vector: embedding.Vector{0, 1}},
	}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count, "re-upsert must not duplicate the point")

	hits, err := idx.Query(ctx, embedding.ModalityText, embedding.Vector{0, 1}, 1, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, float64(hits[0].Score), 1e-6, "latest vector wins")
}

func TestMemoryIndexModalitiesAreSeparate(t *testing.T) {
	idx := NewMemoryIndex(2, 2)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Entry{
		{ID: "p1", Modality: embedding.ModalityImage, Vector: embedding.Vector{1, 0}},
		{ID: "p1", Modality: embedding.ModalityText, Vector: embedding.Vector{0, 1}},
		{ID: "p2", Modality: embedding.ModalityImage, Vector: embedding.Vector{0, 1}},
	}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, count, "both modalities share one point per product")

	hits, err := idx.Query(ctx, embedding.ModalityText, embedding.Vector{0, 1}, 10, nil)
	require.NoError(t, err)
	require.Len(t, hits, 1, "p2 has no text vector and must not surface")
	assert.Equal(t, "p1", hits[0].ID)
}

func TestMemoryIndexQueryFilter(t *testing.T) {
	idx := NewMemoryIndex(0, 2)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Entry{
		{ID: "p1", Modality: embedding.ModalityText, Vector: embedding.Vector{1, 0}, Payload: map[string]string{"product_id": "p1", "category": "shoes"}},
		{ID: "p2", Modality: embedding.ModalityText, Vector: embedding.Vector{1, 0}, Payload: map[string]string{"product_id": "p2", "category": "jackets"}},
	}))

	hits, err := idx.Query(ctx, embedding.ModalityText, embedding.Vector{1, 0}, 10, Filter{"category": "shoes"})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "p1", hits[0].ID)

	hits, err = idx.Query(ctx, embedding.ModalityText, embedding.Vector{1, 0}, 10, Filter{"category": "hats"})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestMemoryIndexValidation(t *testing.T) {
	idx := NewMemoryIndex(0, 3)
	ctx := context.Background()

	err := idx.Upsert(ctx, []Entry{
		{ID: "p1", Modality: embedding.ModalityText, Vector: embedding.Vector{1, 0}},
	})
	assert.ErrorIs(t, err, cmerrors.ErrDimensionMismatch)

	err = idx.Upsert(ctx, []Entry{
		{ID: "p1", Modality: embedding.ModalityImage, Vector: embedding.Vector{1, 0, 0}},
	})
	assert.ErrorIs(t, err, cmerrors.ErrInvalidInput, "image modality is not configured")

	_, err = idx.Query(ctx, embedding.ModalityText, embedding.Vector{1, 0, 0}, 0, nil)
	assert.ErrorIs(t, err, cmerrors.ErrInvalidTopK)

	_, err = idx.Query(ctx, embedding.ModalityText, embedding.Vector{1, 0}, 5, nil)
	assert.ErrorIs(t, err, cmerrors.ErrDimensionMismatch)
}

func TestMemoryIndexDelete(t *testing.T) {
	idx := NewMemoryIndex(0, 2)
	ctx := context.Background()

	require.NoError(t, idx.Upsert(ctx, []Entry{
		{ID: "p1", Modality: embedding.ModalityText, Vector: embedding.Vector{1, 0}},
		{ID: "p2", Modality: embedding.ModalityText, Vector: embedding.Vector{0, 1}},
	}))
	require.NoError(t, idx.Delete(ctx, []string{"p1", "missing"}))

	count, err := idx.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}
