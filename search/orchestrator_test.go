package search

import (
	"context"
	"fmt"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/catalogmatch/embedding"
	"github.com/c360/catalogmatch/errors"
	"github.com/c360/catalogmatch/metastore"
	"github.com/c360/catalogmatch/metric"
	"github.com/c360/catalogmatch/types"
	"github.com/c360/catalogmatch/vectorindex"
)

// fakeEmbedder maps known inputs to fixed vectors.
type fakeEmbedder struct {
	texts  map[string]embedding.Vector
	images map[string]embedding.Vector
	fail   bool
}

func (f *fakeEmbedder) EmbedText(_ context.Context, texts []string) ([]embedding.Vector, error) {
	if f.fail {
		return nil, errors.WrapTransient(errors.ErrBackendUnavailable, "embedding", "EmbedText", "API call")
	}
	vecs := make([]embedding.Vector, len(texts))
	for i, text := range texts {
		vec, ok := f.texts[text]
		if !ok {
			return vecs, &embedding.BatchError{
				Modality: embedding.ModalityText,
				Items: []embedding.ItemError{{
					Index: i,
					Err:   fmt.Errorf("%w: unembeddable text", errors.ErrInvalidInput),
				}},
			}
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (f *fakeEmbedder) EmbedImage(_ context.Context, images [][]byte) ([]embedding.Vector, error) {
	vecs := make([]embedding.Vector, len(images))
	for i, img := range images {
		vec, ok := f.images[string(img)]
		if !ok {
			return vecs, &embedding.BatchError{
				Modality: embedding.ModalityImage,
				Items: []embedding.ItemError{{
					Index: i,
					Err:   fmt.Errorf("%w: undecodable image", errors.ErrInvalidInput),
				}},
			}
		}
		vecs[i] = vec
	}
	return vecs, nil
}

func (f *fakeEmbedder) Dimensions(m embedding.Modality) int {
	if m == embedding.ModalityImage {
		return 4
	}
	return 3
}
func (f *fakeEmbedder) Model(embedding.Modality) string { return "fake" }
func (f *fakeEmbedder) Close() error                    { return nil }

// fixture seeds three products: the text space is arranged so the query
// "warm jacket" lands closest to sku-b, then sku-c, then sku-a.
func fixture(t *testing.T) (*Orchestrator, *vectorindex.MemoryIndex, *metastore.MemoryStore) {
	t.Helper()

	index := vectorindex.NewMemoryIndex(4, 3)
	store := metastore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertMany(ctx, []types.Product{
		{ID: "sku-a", Title: "Red Sneaker"},
		{ID: "sku-b", Title: "Down Jacket"},
		{ID: "sku-c", Title: "Wool Coat"},
	}))
	require.NoError(t, index.Upsert(ctx, []vectorindex.Entry{
		{ID: "sku-a", Modality: embedding.ModalityText, Vector: embedding.Vector{1, 0, 0}},
		{ID: "sku-b", Modality: embedding.ModalityText, Vector: embedding.Vector{0, 1, 0}},
		{ID: "sku-c", Modality: embedding.ModalityText, Vector: embedding.Vector{0, 0.7, 0.7}},
		{ID: "sku-a", Modality: embedding.ModalityImage, Vector: embedding.Vector{1, 0, 0, 0}},
	}))

	embedder := &fakeEmbedder{
		texts: map[string]embedding.Vector{
			"warm jacket": {0, 1, 0},
		},
		images: map[string]embedding.Vector{
			"sneaker-photo": {1, 0, 0, 0},
		},
	}

	orch, err := NewOrchestrator(embedder, index, store, Config{MaxTopK: 10})
	require.NoError(t, err)
	return orch, index, store
}

func TestSearchRanksByScore(t *testing.T) {
	orch, _, _ := fixture(t)

	result, err := orch.Search(context.Background(), Request{
		Modality: embedding.ModalityText,
		Text:     "warm jacket",
		TopK:     5,
	})
	require.NoError(t, err)

	require.Len(t, result.Matches, 3)
	assert.Equal(t, "sku-b", result.Matches[0].Product.ID)
	assert.Equal(t, "Down Jacket", result.Matches[0].Product.Title)
	assert.Equal(t, "sku-c", result.Matches[1].Product.ID)
	assert.Equal(t, "sku-a", result.Matches[2].Product.ID)

	for i, m := range result.Matches {
		assert.Equal(t, i+1, m.Rank)
		if i > 0 {
			assert.GreaterOrEqual(t, result.Matches[i-1].Score, m.Score)
		}
	}
	assert.NotEmpty(t, result.RequestID)
}

func TestSearchImageModality(t *testing.T) {
	orch, _, _ := fixture(t)

	result, err := orch.Search(context.Background(), Request{
		Modality: embedding.ModalityImage,
		Image:    []byte("sneaker-photo"),
		TopK:     5,
	})
	require.NoError(t, err)

	require.Len(t, result.Matches, 1, "only sku-a has an image vector")
	assert.Equal(t, "sku-a", result.Matches[0].Product.ID)
}

func TestSearchDropsHydrationGaps(t *testing.T) {
	orch, _, store := fixture(t)
	orch.metrics = metric.NewMetrics()
	ctx := context.Background()

	// sku-c's record vanishes but its index point stays behind.
	require.NoError(t, store.Delete(ctx, []string{"sku-c"}))

	result, err := orch.Search(ctx, Request{
		Modality: embedding.ModalityText,
		Text:     "warm jacket",
		TopK:     2,
	})
	require.NoError(t, err, "dangling index entries are an operating condition, not an error")

	assert.Equal(t, 1, result.Dropped)
	// Overfetch keeps the page full despite the gap.
	require.Len(t, result.Matches, 2)
	assert.Equal(t, "sku-b", result.Matches[0].Product.ID)
	assert.Equal(t, "sku-a", result.Matches[1].Product.ID)
	assert.Equal(t, []int{1, 2}, []int{result.Matches[0].Rank, result.Matches[1].Rank})
	assert.Equal(t, 1.0, testutil.ToFloat64(orch.metrics.HydrationGaps))
}

func TestSearchEmptyIndex(t *testing.T) {
	index := vectorindex.NewMemoryIndex(4, 3)
	store := metastore.NewMemoryStore()
	embedder := &fakeEmbedder{texts: map[string]embedding.Vector{"anything": {1, 0, 0}}}

	orch, err := NewOrchestrator(embedder, index, store, Config{})
	require.NoError(t, err)

	result, err := orch.Search(context.Background(), Request{
		Modality: embedding.ModalityText,
		Text:     "anything",
		TopK:     3,
	})
	require.NoError(t, err)
	assert.NotNil(t, result.Matches)
	assert.Empty(t, result.Matches)
}

func TestSearchValidation(t *testing.T) {
	orch, _, _ := fixture(t)
	ctx := context.Background()

	_, err := orch.Search(ctx, Request{Modality: embedding.ModalityText, Text: "x", TopK: -1})
	assert.ErrorIs(t, err, errors.ErrInvalidTopK)

	_, err = orch.Search(ctx, Request{Modality: embedding.ModalityText, Text: "x"})
	assert.ErrorIs(t, err, errors.ErrInvalidTopK, "an unset TopK is rejected, not defaulted")

	_, err = orch.Search(ctx, Request{Modality: embedding.ModalityText, TopK: 5})
	assert.ErrorIs(t, err, errors.ErrEmptyQuery)

	_, err = orch.Search(ctx, Request{Modality: embedding.ModalityImage, TopK: 5})
	assert.ErrorIs(t, err, errors.ErrEmptyQuery)

	_, err = orch.Search(ctx, Request{Modality: "audio", Text: "x", TopK: 5})
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestSearchTopKClamp(t *testing.T) {
	orch, _, _ := fixture(t)
	orch.cfg.MaxTopK = 2
	ctx := context.Background()

	result, err := orch.Search(ctx, Request{Modality: embedding.ModalityText, Text: "warm jacket", TopK: 500})
	require.NoError(t, err)
	assert.Len(t, result.Matches, 2, "TopK is clamped to the maximum")
}

func TestSearchScoreThreshold(t *testing.T) {
	orch, _, _ := fixture(t)
	orch.cfg.ScoreThreshold = 0.5
	ctx := context.Background()

	result, err := orch.Search(ctx, Request{Modality: embedding.ModalityText, Text: "warm jacket", TopK: 5})
	require.NoError(t, err)
	require.Len(t, result.Matches, 2, "sku-a scores 0 and is filtered")
	assert.Equal(t, "sku-b", result.Matches[0].Product.ID)

	// Per-request override wins over the configured threshold.
	min := float32(0.99)
	result, err = orch.Search(ctx, Request{
		Modality: embedding.ModalityText,
		Text:     "warm jacket",
		TopK:     5,
		MinScore: &min,
	})
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "sku-b", result.Matches[0].Product.ID)
}

func TestSearchTieBreaksByID(t *testing.T) {
	index := vectorindex.NewMemoryIndex(0, 2)
	store := metastore.NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.UpsertMany(ctx, []types.Product{
		{ID: "zeta", Title: "Zeta"},
		{ID: "alpha", Title: "Alpha"},
	}))
	require.NoError(t, index.Upsert(ctx, []vectorindex.Entry{
		{ID: "zeta", Modality: embedding.ModalityText, Vector: embedding.Vector{1, 0}},
		{ID: "alpha", Modality: embedding.ModalityText, Vector: embedding.Vector{1, 0}},
	}))

	embedder := &fakeEmbedder{texts: map[string]embedding.Vector{"q": {1, 0}}}
	orch, err := NewOrchestrator(embedder, index, store, Config{})
	require.NoError(t, err)

	result, err := orch.Search(ctx, Request{Modality: embedding.ModalityText, Text: "q", TopK: 5})
	require.NoError(t, err)
	require.Len(t, result.Matches, 2)
	assert.Equal(t, "alpha", result.Matches[0].Product.ID, "equal scores break ties by id")
	assert.Equal(t, "zeta", result.Matches[1].Product.ID)
}

func TestSearchUnembeddableQuery(t *testing.T) {
	orch, _, _ := fixture(t)

	_, err := orch.Search(context.Background(), Request{
		Modality: embedding.ModalityText,
		Text:     "no vector registered for this",
		TopK:     5,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestSearchEmbedderDown(t *testing.T) {
	orch, _, _ := fixture(t)
	orch.embedder = &fakeEmbedder{fail: true}

	_, err := orch.Search(context.Background(), Request{
		Modality: embedding.ModalityText,
		Text:     "warm jacket",
		TopK:     5,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrBackendUnavailable)
}
