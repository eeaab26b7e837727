package service

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/catalogmatch/catalog"
	"github.com/c360/catalogmatch/config"
	"github.com/c360/catalogmatch/embedding"
	"github.com/c360/catalogmatch/errors"
	"github.com/c360/catalogmatch/health"
	"github.com/c360/catalogmatch/metastore"
	"github.com/c360/catalogmatch/search"
	"github.com/c360/catalogmatch/vectorindex"
)

func textRequest(q string) search.Request {
	return search.Request{Modality: embedding.ModalityText, Text: q}
}

const (
	testImageDim = 4
	testTextDim  = 3
)

// fakeEmbedder returns deterministic vectors derived from the input bytes
type fakeEmbedder struct{}

func (fakeEmbedder) EmbedText(_ context.Context, texts []string) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(texts))
	for i, t := range texts {
		v := make(embedding.Vector, testTextDim)
		for j, r := range t {
			v[j%testTextDim] += float32(r)
		}
		out[i] = embedding.Normalize(v)
	}
	return out, nil
}

func (fakeEmbedder) EmbedImage(_ context.Context, images [][]byte) ([]embedding.Vector, error) {
	out := make([]embedding.Vector, len(images))
	for i, img := range images {
		v := make(embedding.Vector, testImageDim)
		for j, b := range img {
			v[j%testImageDim] += float32(b)
		}
		out[i] = embedding.Normalize(v)
	}
	return out, nil
}

func (fakeEmbedder) Dimensions(m embedding.Modality) int {
	if m == embedding.ModalityText {
		return testTextDim
	}
	return testImageDim
}

func (fakeEmbedder) Model(m embedding.Modality) string { return "fake-" + string(m) }

func (fakeEmbedder) Close() error { return nil }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Embedding.ImageDimension = testImageDim
	cfg.Embedding.TextDimension = testTextDim
	cfg.Metrics.Enabled = false
	return cfg
}

func testService(t *testing.T) *Service {
	t.Helper()
	s, err := New(testConfig(),
		WithEmbedder(fakeEmbedder{}),
		WithIndex(vectorindex.NewMemoryIndex(testImageDim, testTextDim)),
		WithStore(metastore.NewMemoryStore()))
	require.NoError(t, err)
	return s
}

func writeDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	records := []catalog.Record{
		{ID: "sku-1", Title: "Red Sneaker", Image: "sku-1.jpg"},
		{ID: "sku-2", Title: "Down Jacket", Image: "sku-2.jpg"},
	}
	data, err := json.Marshal(records)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, catalog.ManifestFile), data, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sku-1.jpg"), []byte{1, 2, 3, 4}, 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sku-2.jpg"), []byte{9, 8, 7, 6}, 0o600))

	return dir
}

func TestNewValidation(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrMissingConfig)

	cfg := testConfig()
	cfg.Index.Collection = ""
	_, err = New(cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidConfig)
}

func TestServiceLifecycle(t *testing.T) {
	ctx := context.Background()
	s := testService(t)

	assert.Equal(t, StatusStopped, s.Status())
	assert.Equal(t, "stopped", s.Status().String())

	_, err := s.Search(ctx, textRequest("sneaker"))
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrNotStarted)

	require.NoError(t, s.Start(ctx))
	assert.Equal(t, StatusRunning, s.Status())
	assert.Positive(t, s.Uptime())

	err = s.Start(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAlreadyStarted)

	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, StatusStopped, s.Status())
	require.NoError(t, s.Stop(ctx), "stop is idempotent")

	_, err = s.Search(ctx, textRequest("sneaker"))
	assert.ErrorIs(t, err, errors.ErrNotStarted)
}

func TestServiceIngestAndSearch(t *testing.T) {
	ctx := context.Background()
	s := testService(t)
	require.NoError(t, s.Start(ctx))
	defer func() { _ = s.Stop(ctx) }()

	report, err := s.Ingest(ctx, writeDataset(t))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Accepted)
	assert.Equal(t, 0, report.Failed)

	res, err := s.Search(ctx, textRequest("Down Jacket"))
	require.NoError(t, err)
	require.NotEmpty(t, res.Matches)
	assert.Equal(t, "sku-2", res.Matches[0].Product.ID)
	assert.Equal(t, 1, res.Matches[0].Rank)

	// The unset TopK above was filled from config; a negative one is
	// still rejected downstream.
	bad := textRequest("Down Jacket")
	bad.TopK = -1
	_, err = s.Search(ctx, bad)
	assert.ErrorIs(t, err, errors.ErrInvalidTopK)
}

func TestServiceListProducts(t *testing.T) {
	ctx := context.Background()
	s := testService(t)

	_, err := s.ListProducts(ctx, 0)
	assert.ErrorIs(t, err, errors.ErrNotStarted)

	require.NoError(t, s.Start(ctx))
	defer func() { _ = s.Stop(ctx) }()

	_, err = s.Ingest(ctx, writeDataset(t))
	require.NoError(t, err)

	products, err := s.ListProducts(ctx, 0)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Equal(t, "sku-1", products[0].ID)
	assert.Equal(t, "sku-2", products[1].ID)

	page, err := s.ListProducts(ctx, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "sku-1", page[0].ID)
}

func TestServicePopulateIfEmpty(t *testing.T) {
	ctx := context.Background()
	s := testService(t)
	require.NoError(t, s.Start(ctx))
	defer func() { _ = s.Stop(ctx) }()

	dir := writeDataset(t)

	report, err := s.PopulateIfEmpty(ctx, dir)
	require.NoError(t, err)
	require.NotNil(t, report)
	assert.Equal(t, 2, report.Accepted)

	report, err = s.PopulateIfEmpty(ctx, dir)
	require.NoError(t, err)
	assert.Nil(t, report, "second populate is a no-op")
}

func TestServiceHealth(t *testing.T) {
	ctx := context.Background()
	s := testService(t)

	report := s.Health(ctx)
	assert.Equal(t, health.StateUnreachable, report.State, "stopped service is unreachable")

	require.NoError(t, s.Start(ctx))
	defer func() { _ = s.Stop(ctx) }()

	report = s.Health(ctx)
	assert.True(t, report.Healthy)
	assert.Equal(t, health.StateHealthy, report.State)
	assert.Contains(t, report.Components, "index")
	assert.Contains(t, report.Components, "store")
}

func TestBuildEmbedderProviders(t *testing.T) {
	cfg := testConfig()

	emb, err := buildEmbedder(cfg, nil, nil, nil)
	require.NoError(t, err)
	_, ok := emb.(*embedding.Client)
	assert.True(t, ok, "default provider uses the native client")

	cfg.Embedding.Provider = "openai"
	cfg.Embedding.TextEndpoint = "http://localhost:8082"
	emb, err = buildEmbedder(cfg, nil, nil, nil)
	require.NoError(t, err)
	split, ok := emb.(*splitEmbedder)
	require.True(t, ok, "openai provider splits text and image backends")
	assert.Equal(t, testTextDim, split.Dimensions(embedding.ModalityText))
	assert.Equal(t, testImageDim, split.Dimensions(embedding.ModalityImage))
	assert.Equal(t, cfg.Embedding.TextModel, split.Model(embedding.ModalityText))
}
