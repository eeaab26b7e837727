package embedding

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	cmerrors "github.com/c360/catalogmatch/errors"
	"github.com/c360/catalogmatch/metric"
	"github.com/c360/catalogmatch/pkg/retry"
)

const embedPath = "/v1/embed"

// Client calls the native inference endpoint over HTTP.
//
// The endpoint serves both modalities: image inputs are sent base64-encoded,
// text inputs as plain strings. Each modality has its own model and expected
// dimensionality; a response vector of any other length is rejected as a
// data-integrity error rather than silently passed through.
type Client struct {
	endpoint string
	http     *http.Client
	models   map[Modality]string
	dims     map[Modality]int
	cache    Cache
	retryCfg retry.Config
	metrics  *metric.Metrics
	logger   *slog.Logger
}

// ClientConfig configures the inference client.
type ClientConfig struct {
	// Endpoint is the base URL of the inference server,
	// e.g. "http://localhost:8000".
	Endpoint string

	// ImageModel and TextModel select the model per modality.
	// A modality with an empty model name is unsupported.
	ImageModel string
	TextModel  string

	// ImageDimension and TextDimension are the expected vector lengths.
	ImageDimension int
	TextDimension  int

	// Timeout bounds each HTTP request (default: 30s).
	Timeout time.Duration

	// Retry controls transient-failure retries (default: retry.Quick()).
	Retry retry.Config

	// Cache short-circuits repeated requests for identical inputs (optional).
	Cache Cache

	// Metrics records request counts (optional).
	Metrics *metric.Metrics

	// Logger for cache warnings (optional, defaults to slog.Default()).
	Logger *slog.Logger
}

// NewClient creates a new inference client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if cfg.ImageModel == "" && cfg.TextModel == "" {
		return nil, fmt.Errorf("at least one of image_model or text_model is required")
	}
	if cfg.ImageModel != "" && cfg.ImageDimension <= 0 {
		return nil, fmt.Errorf("image_dimension must be positive when image_model is set")
	}
	if cfg.TextModel != "" && cfg.TextDimension <= 0 {
		return nil, fmt.Errorf("text_dimension must be positive when text_model is set")
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	retryCfg := cfg.Retry
	if retryCfg.MaxAttempts == 0 {
		retryCfg = retry.Quick()
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	models := make(map[Modality]string, 2)
	dims := make(map[Modality]int, 2)
	if cfg.ImageModel != "" {
		models[ModalityImage] = cfg.ImageModel
		dims[ModalityImage] = cfg.ImageDimension
	}
	if cfg.TextModel != "" {
		models[ModalityText] = cfg.TextModel
		dims[ModalityText] = cfg.TextDimension
	}

	return &Client{
		endpoint: cfg.Endpoint,
		http:     &http.Client{Timeout: timeout},
		models:   models,
		dims:     dims,
		cache:    cfg.Cache,
		retryCfg: retryCfg,
		metrics:  cfg.Metrics,
		logger:   logger,
	}, nil
}

// embedRequest is the wire request for the inference endpoint.
type embedRequest struct {
	Model    string   `json:"model"`
	Modality string   `json:"modality"`
	Inputs   []string `json:"inputs"`
}

// embedResponse is the wire response. Vectors holds one entry per input in
// order; a null entry pairs with an entry in Errors naming the same index.
type embedResponse struct {
	Dimension int        `json:"dimension"`
	Vectors   []Vector   `json:"vectors"`
	Errors    []wireItem `json:"errors,omitempty"`
}

type wireItem struct {
	Index   int    `json:"index"`
	Message string `json:"message"`
}

// EmbedText creates embeddings for the given texts.
//
// Text vectors are L2-normalized before being returned.
func (c *Client) EmbedText(ctx context.Context, texts []string) ([]Vector, error) {
	if len(texts) == 0 {
		return []Vector{}, nil
	}

	inputs := make([]string, len(texts))
	keys := make([]string, len(texts))
	invalid := make([]ItemError, 0)
	for i, text := range texts {
		if text == "" {
			invalid = append(invalid, ItemError{Index: i, Err: fmt.Errorf("%w: empty text", cmerrors.ErrInvalidInput)})
			continue
		}
		inputs[i] = text
		keys[i] = c.cacheKey(ModalityText, ContentHash(text))
	}

	vecs, err := c.embed(ctx, ModalityText, inputs, keys, invalid)
	if vecs != nil {
		for i, v := range vecs {
			if v != nil {
				vecs[i] = Normalize(v)
			}
		}
	}
	return vecs, err
}

// EmbedImage creates embeddings for the given raw image bytes.
func (c *Client) EmbedImage(ctx context.Context, images [][]byte) ([]Vector, error) {
	if len(images) == 0 {
		return []Vector{}, nil
	}

	inputs := make([]string, len(images))
	keys := make([]string, len(images))
	invalid := make([]ItemError, 0)
	for i, img := range images {
		if len(img) == 0 {
			invalid = append(invalid, ItemError{Index: i, Err: fmt.Errorf("%w: empty image", cmerrors.ErrInvalidInput)})
			continue
		}
		inputs[i] = base64.StdEncoding.EncodeToString(img)
		keys[i] = c.cacheKey(ModalityImage, BytesHash(img))
	}

	return c.embed(ctx, ModalityImage, inputs, keys, invalid)
}

// Dimensions returns the expected vector length for the modality.
func (c *Client) Dimensions(m Modality) int {
	return c.dims[m]
}

// Model returns the model identifier for the modality.
func (c *Client) Model(m Modality) string {
	return c.models[m]
}

// Ping checks that the inference server is reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"/health", nil)
	if err != nil {
		return cmerrors.WrapTransient(err, "embedding", "Ping", "build request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return cmerrors.WrapTransient(
			fmt.Errorf("%w: %w", cmerrors.ErrBackendUnavailable, err),
			"embedding", "Ping", "reach inference server")
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 300 {
		return cmerrors.WrapTransient(
			fmt.Errorf("%w: health endpoint returned %d", cmerrors.ErrBackendUnavailable, resp.StatusCode),
			"embedding", "Ping", "check inference server health")
	}
	return nil
}

// Close releases resources (no-op for HTTP client).
func (c *Client) Close() error {
	return nil
}

// embed runs the shared batch flow: cache lookup, one API call for the
// misses, reassembly in input order, cache writeback. inputs[i] is the
// wire-encoded form of item i, empty for locally rejected items already
// recorded in invalid. keys[i] is the cache key, used only when a cache
// is configured.
func (c *Client) embed(ctx context.Context, modality Modality, inputs, keys []string, invalid []ItemError) ([]Vector, error) {
	model, ok := c.models[modality]
	if !ok {
		return nil, cmerrors.WrapInvalid(
			fmt.Errorf("%w: no model configured for modality %q", cmerrors.ErrInvalidInput, modality),
			"embedding", "embed", "modality lookup")
	}

	vectors := make([]Vector, len(inputs))
	skip := make([]bool, len(inputs))
	for _, item := range invalid {
		skip[item.Index] = true
	}

	// Cache lookups are best-effort; a miss or error just falls through
	// to the API call.
	if c.cache != nil {
		for i := range inputs {
			if skip[i] {
				continue
			}
			if cached, err := c.cache.Get(ctx, keys[i]); err == nil {
				vectors[i] = cached
			}
		}
	}

	pendingIdx := make([]int, 0, len(inputs))
	pendingInputs := make([]string, 0, len(inputs))
	for i := range inputs {
		if skip[i] || vectors[i] != nil {
			continue
		}
		pendingIdx = append(pendingIdx, i)
		pendingInputs = append(pendingInputs, inputs[i])
	}

	itemErrs := append([]ItemError(nil), invalid...)

	if len(pendingInputs) > 0 {
		resp, err := retry.DoWithResult(ctx, c.retryCfg, func() (*embedResponse, error) {
			return c.doRequest(ctx, model, modality, pendingInputs)
		})
		if err != nil {
			c.countRequest(modality, "error")
			return nil, err
		}

		if len(resp.Vectors) != len(pendingInputs) {
			c.countRequest(modality, "error")
			return nil, cmerrors.WrapTransient(
				fmt.Errorf("%w: got %d vectors for %d inputs", cmerrors.ErrBackendUnavailable, len(resp.Vectors), len(pendingInputs)),
				"embedding", "embed", "response validation")
		}

		remoteErrs := make(map[int]string, len(resp.Errors))
		for _, we := range resp.Errors {
			remoteErrs[we.Index] = we.Message
		}

		want := c.dims[modality]
		for batchIdx, vec := range resp.Vectors {
			origIdx := pendingIdx[batchIdx]
			if msg, failed := remoteErrs[batchIdx]; failed || vec == nil {
				if msg == "" {
					msg = "no vector returned"
				}
				itemErrs = append(itemErrs, ItemError{
					Index: origIdx,
					Err:   fmt.Errorf("%w: %s", cmerrors.ErrInvalidInput, msg),
				})
				continue
			}
			if len(vec) != want {
				c.countRequest(modality, "error")
				return nil, cmerrors.WrapFatal(
					fmt.Errorf("%w: model %s returned %d dimensions, expected %d", cmerrors.ErrDimensionMismatch, model, len(vec), want),
					"embedding", "embed", "dimension validation")
			}
			vectors[origIdx] = vec
			if c.cache != nil {
				if err := c.cache.Put(ctx, keys[origIdx], vec); err != nil {
					c.logger.Warn("embedding cache put failed", "key", keys[origIdx], "error", err)
				}
			}
		}
	}

	if len(itemErrs) > 0 {
		c.countRequest(modality, "partial")
		return vectors, &BatchError{Modality: modality, Items: itemErrs}
	}

	c.countRequest(modality, "ok")
	return vectors, nil
}

// doRequest performs a single inference call. Transport failures and 5xx
// responses come back transient so the retry loop re-attempts them; 4xx
// responses are terminal.
func (c *Client) doRequest(ctx context.Context, model string, modality Modality, inputs []string) (*embedResponse, error) {
	body, err := json.Marshal(embedRequest{
		Model:    model,
		Modality: string(modality),
		Inputs:   inputs,
	})
	if err != nil {
		return nil, retry.NonRetryable(cmerrors.WrapInvalid(err, "embedding", "doRequest", "request encoding"))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+embedPath, bytes.NewReader(body))
	if err != nil {
		return nil, retry.NonRetryable(cmerrors.WrapInvalid(err, "embedding", "doRequest", "request creation"))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, cmerrors.WrapTransient(
			fmt.Errorf("%w: %v", cmerrors.ErrBackendUnavailable, err),
			"embedding", "doRequest", "inference request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, cmerrors.WrapTransient(
			fmt.Errorf("%w: reading response: %v", cmerrors.ErrBackendUnavailable, err),
			"embedding", "doRequest", "response read")
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, cmerrors.WrapTransient(
			fmt.Errorf("%w: inference server returned %d", cmerrors.ErrBackendUnavailable, resp.StatusCode),
			"embedding", "doRequest", "inference request")
	case resp.StatusCode >= 400:
		return nil, retry.NonRetryable(cmerrors.WrapInvalid(
			fmt.Errorf("%w: inference server rejected request with %d: %s", cmerrors.ErrInvalidInput, resp.StatusCode, truncate(data, 200)),
			"embedding", "doRequest", "inference request"))
	case resp.StatusCode != http.StatusOK:
		return nil, cmerrors.WrapTransient(
			fmt.Errorf("%w: unexpected status %d", cmerrors.ErrBackendUnavailable, resp.StatusCode),
			"embedding", "doRequest", "inference request")
	}

	var parsed embedResponse
	if err := json.Unmarshal(data, &parsed); err != nil {
		return nil, cmerrors.WrapTransient(
			fmt.Errorf("%w: malformed response: %v", cmerrors.ErrBackendUnavailable, err),
			"embedding", "doRequest", "response decoding")
	}

	return &parsed, nil
}

func (c *Client) cacheKey(m Modality, hash string) string {
	return fmt.Sprintf("%s.%s.%s", c.models[m], m, hash)
}

func (c *Client) countRequest(m Modality, status string) {
	if c.metrics != nil {
		c.metrics.EmbeddingRequests.WithLabelValues(string(m), status).Inc()
	}
}

func truncate(data []byte, n int) string {
	if len(data) <= n {
		return string(data)
	}
	return string(data[:n]) + "..."
}
