package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	cmerrors "github.com/c360/catalogmatch/errors"
)

// OpenAIEmbedder is a text-only Embedder backed by any OpenAI-compatible
// embedding API.
//
// This implementation works with:
//   - Hugging Face TEI (Text Embeddings Inference) - containerized
//   - LocalAI (self-hosted)
//   - OpenAI (cloud)
//
// Image requests are rejected; pair it with the native Client when image
// search is needed.
type OpenAIEmbedder struct {
	client     *openai.Client
	model      string
	dimensions int
	cache      Cache
	logger     *slog.Logger
}

// OpenAIConfig configures the OpenAI-compatible embedder.
type OpenAIConfig struct {
	// BaseURL is the base URL of the embedding service,
	// e.g. "http://localhost:8082" (TEI) or "https://api.openai.com/v1".
	BaseURL string

	// Model is the embedding model to use,
	// e.g. "bge-small-en-v1.5" or "text-embedding-3-small".
	Model string

	// Dimensions is the expected vector length for Model.
	Dimensions int

	// APIKey for authentication (optional for local services).
	APIKey string

	// Timeout for HTTP requests (default: 30s).
	Timeout time.Duration

	// Cache for embedding results (optional but recommended).
	Cache Cache

	// Logger for cache warnings (optional, defaults to slog.Default()).
	Logger *slog.Logger
}

// NewOpenAIEmbedder creates a new OpenAI-compatible text embedder.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base_url is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("model is required")
	}
	if cfg.Dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = "dummy-key" // Local services don't need real key
	}

	conf := openai.DefaultConfig(apiKey)
	conf.BaseURL = cfg.BaseURL
	conf.HTTPClient = &http.Client{Timeout: timeout}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &OpenAIEmbedder{
		client:     openai.NewClientWithConfig(conf),
		model:      cfg.Model,
		dimensions: cfg.Dimensions,
		cache:      cfg.Cache,
		logger:     logger,
	}, nil
}

// EmbedText creates embeddings by calling the OpenAI-compatible API.
//
// Checks the cache first (if configured), then calls the API for any
// misses. Vectors are L2-normalized before being returned.
func (o *OpenAIEmbedder) EmbedText(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return []Vector{}, nil
	}

	vectors := make([]Vector, len(texts))
	itemErrs := make([]ItemError, 0)
	pendingIdx := make([]int, 0, len(texts))
	pendingTexts := make([]string, 0, len(texts))

	for i, text := range texts {
		if text == "" {
			itemErrs = append(itemErrs, ItemError{Index: i, Err: fmt.Errorf("%w: empty text", cmerrors.ErrInvalidInput)})
			continue
		}
		if o.cache != nil {
			if cached, err := o.cache.Get(ctx, o.cacheKey(text)); err == nil {
				vectors[i] = cached
				continue
			}
		}
		pendingIdx = append(pendingIdx, i)
		pendingTexts = append(pendingTexts, text)
	}

	if len(pendingTexts) > 0 {
		resp, err := o.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
			Input: pendingTexts,
			Model: openai.EmbeddingModel(o.model),
		})
		if err != nil {
			return nil, cmerrors.WrapTransient(
				fmt.Errorf("%w: %v", cmerrors.ErrBackendUnavailable, err),
				"embedding", "EmbedText", "API call")
		}

		if len(resp.Data) != len(pendingTexts) {
			return nil, cmerrors.WrapTransient(
				fmt.Errorf("%w: got %d embeddings for %d texts", cmerrors.ErrBackendUnavailable, len(resp.Data), len(pendingTexts)),
				"embedding", "EmbedText", "response validation")
		}

		for i, data := range resp.Data {
			if len(data.Embedding) != o.dimensions {
				return nil, cmerrors.WrapFatal(
					fmt.Errorf("%w: model %s returned %d dimensions, expected %d", cmerrors.ErrDimensionMismatch, o.model, len(data.Embedding), o.dimensions),
					"embedding", "EmbedText", "dimension validation")
			}

			origIdx := pendingIdx[i]
			vectors[origIdx] = Normalize(Vector(data.Embedding))

			if o.cache != nil {
				key := o.cacheKey(pendingTexts[i])
				if err := o.cache.Put(ctx, key, vectors[origIdx]); err != nil {
					o.logger.Warn("embedding cache put failed", "key", key, "error", err)
				}
			}
		}
	}

	if len(itemErrs) > 0 {
		return vectors, &BatchError{Modality: ModalityText, Items: itemErrs}
	}

	return vectors, nil
}

// EmbedImage always fails: this backend has no image encoder.
func (o *OpenAIEmbedder) EmbedImage(_ context.Context, _ [][]byte) ([]Vector, error) {
	return nil, cmerrors.WrapInvalid(
		fmt.Errorf("%w: image embedding is not supported by the openai provider", cmerrors.ErrInvalidInput),
		"embedding", "EmbedImage", "modality check")
}

// Dimensions returns the vector length for text, 0 for other modalities.
func (o *OpenAIEmbedder) Dimensions(m Modality) int {
	if m == ModalityText {
		return o.dimensions
	}
	return 0
}

// Model returns the model identifier for text, empty for other modalities.
func (o *OpenAIEmbedder) Model(m Modality) string {
	if m == ModalityText {
		return o.model
	}
	return ""
}

// Close releases resources (no-op for HTTP client).
func (o *OpenAIEmbedder) Close() error {
	return nil
}

func (o *OpenAIEmbedder) cacheKey(text string) string {
	return fmt.Sprintf("%s.%s.%s", o.model, ModalityText, ContentHash(text))
}
