package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/c360/catalogmatch/embedding"
	cmerrors "github.com/c360/catalogmatch/errors"
	"github.com/c360/catalogmatch/metric"
	"github.com/c360/catalogmatch/pkg/retry"
)

// payloadProductID is the payload field carrying the original product ID.
const payloadProductID = "product_id"

// HTTPIndex is a client for a Qdrant-style REST vector database.
//
// The collection holds one named vector per modality. Vector lengths are
// validated locally against the configured schema before any write or
// query goes on the wire, so a mismatched vector fails fast instead of
// surfacing as an opaque backend rejection.
type HTTPIndex struct {
	baseURL    string
	collection string
	dims       map[embedding.Modality]int
	http       *http.Client
	retryCfg   retry.Config
	metrics    *metric.Metrics
	logger     *slog.Logger
}

// HTTPIndexConfig configures the HTTP index client.
type HTTPIndexConfig struct {
	// URL is the base URL of the vector database, e.g. "http://localhost:6333".
	URL string

	// Collection is the collection holding the catalog vectors.
	Collection string

	// ImageDimension and TextDimension define the per-modality vector
	// schema. A zero dimension disables that modality.
	ImageDimension int
	TextDimension  int

	// Timeout bounds each HTTP request (default: 30s).
	Timeout time.Duration

	// Retry controls transient-failure retries (default: retry.Quick()).
	Retry retry.Config

	// Metrics records dependency errors (optional).
	Metrics *metric.Metrics

	// Logger (optional, defaults to slog.Default()).
	Logger *slog.Logger
}

// NewHTTPIndex creates a new HTTP index client.
func NewHTTPIndex(cfg HTTPIndexConfig) (*HTTPIndex, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("url is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if cfg.ImageDimension <= 0 && cfg.TextDimension <= 0 {
		return nil, fmt.Errorf("at least one modality dimension is required")
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

	dims := make(map[embedding.Modality]int, 2)
	if cfg.ImageDimension > 0 {
		dims[embedding.ModalityImage] = cfg.ImageDimension
	}
	if cfg.TextDimension > 0 {
		dims[embedding.ModalityText] = cfg.TextDimension
	}

	return &HTTPIndex{
		baseURL:    cfg.URL,
		collection: cfg.Collection,
		dims:       dims,
		http:       &http.Client{Timeout: timeout},
		retryCfg:   retryCfg,
		metrics:    cfg.Metrics,
		logger:     logger,
	}, nil
}

// envelope is the response wrapper the backend puts around every result.
type envelope struct {
	Status json.RawMessage `json:"status"`
	Result json.RawMessage `json:"result"`
}

type vectorSchema struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

type createCollectionRequest struct {
	Vectors map[string]vectorSchema `json:"vectors"`
}

type wirePoint struct {
	ID      string                      `json:"id"`
	Vector  map[string]embedding.Vector `json:"vector"`
	Payload map[string]string           `json:"payload,omitempty"`
}

type upsertRequest struct {
	Points []wirePoint `json:"points"`
}

type searchRequest struct {
	Vector      namedVector   `json:"vector"`
	Limit       int           `json:"limit"`
	WithPayload bool          `json:"with_payload"`
	Filter      *searchFilter `json:"filter,omitempty"`
}

type searchFilter struct {
	Must []fieldCondition `json:"must"`
}

type fieldCondition struct {
	Key   string     `json:"key"`
	Match matchValue `json:"match"`
}

type matchValue struct {
	Value string `json:"value"`
}

type namedVector struct {
	Name   string           `json:"name"`
	Vector embedding.Vector `json:"vector"`
}

type searchResult struct {
	ID      string            `json:"id"`
	Score   float32           `json:"score"`
	Payload map[string]string `json:"payload"`
}

type deleteRequest struct {
	Points []string `json:"points"`
}

type countRequest struct {
	Exact bool `json:"exact"`
}

type countResult struct {
	Count int `json:"count"`
}

// EnsureCollection creates the collection with one named cosine vector per
// configured modality if it does not already exist.
func (x *HTTPIndex) EnsureCollection(ctx context.Context) error {
	status, _, err := x.call(ctx, http.MethodGet, x.collectionPath(""), nil)
	if err != nil {
		return err
	}
	if status == http.StatusOK {
		return nil
	}

	vectors := make(map[string]vectorSchema, len(x.dims))
	for m, size := range x.dims {
		vectors[string(m)] = vectorSchema{Size: size, Distance: "Cosine"}
	}

	status, _, err = x.call(ctx, http.MethodPut, x.collectionPath(""), createCollectionRequest{Vectors: vectors})
	if err != nil {
		return err
	}
	// A concurrent creator may win the race; both outcomes leave the
	// collection in place.
	if status != http.StatusOK && status != http.StatusConflict {
		return x.statusError("EnsureCollection", status)
	}
	return nil
}

// Upsert writes entries, merging same-product entries into one point.
func (x *HTTPIndex) Upsert(ctx context.Context, entries []Entry) error {
	if len(entries) == 0 {
		return nil
	}

	points := make([]wirePoint, 0, len(entries))
	byID := make(map[string]int, len(entries))
	for _, e := range entries {
		if e.ID == "" {
			return cmerrors.WrapInvalid(
				fmt.Errorf("%w: entry with empty id", cmerrors.ErrInvalidInput),
				"vectorindex", "Upsert", "entry validation")
		}
		want, ok := x.dims[e.Modality]
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

		idx, ok := byID[e.ID]
		if !ok {
			payload := map[string]string{payloadProductID: e.ID}
			for k, v := range e.Payload {
				payload[k] = v
			}
			points = append(points, wirePoint{
				ID:      PointID(e.ID),
				Vector:  make(map[string]embedding.Vector, 2),
				Payload: payload,
			})
			idx = len(points) - 1
			byID[e.ID] = idx
		}
		points[idx].Vector[string(e.Modality)] = e.Vector
	}

	return retry.Do(ctx, x.retryCfg, func() error {
		status, _, err := x.call(ctx, http.MethodPut, x.collectionPath("/points?wait=true"), upsertRequest{Points: points})
		if err != nil {
			return err
		}
		// Writes must never create the collection implicitly; a 404 here
		// means EnsureCollection was skipped.
		if status == http.StatusNotFound {
			return retry.NonRetryable(cmerrors.WrapFatal(
				fmt.Errorf("%w: %s", cmerrors.ErrCollectionNotFound, x.collection),
				"vectorindex", "Upsert", "write points"))
		}
		if status != http.StatusOK {
			return x.statusError("Upsert", status)
		}
		return nil
	})
}

// Query returns the topK nearest points in the modality's embedding space.
func (x *HTTPIndex) Query(ctx context.Context, m embedding.Modality, vec embedding.Vector, topK int, filter Filter) ([]Hit, error) {
	if topK <= 0 {
		return nil, cmerrors.WrapInvalid(
			fmt.Errorf("%w: topK must be positive, got %d", cmerrors.ErrInvalidTopK, topK),
			"vectorindex", "Query", "request validation")
	}
	want, ok := x.dims[m]
	if !ok {
		return nil, cmerrors.WrapInvalid(
			fmt.Errorf("%w: modality %q not in collection schema", cmerrors.ErrInvalidInput, m),
			"vectorindex", "Query", "request validation")
	}
	if len(vec) != want {
		return nil, cmerrors.WrapFatal(
			fmt.Errorf("%w: query vector has %d dimensions, schema expects %d", cmerrors.ErrDimensionMismatch, len(vec), want),
			"vectorindex", "Query", "request validation")
	}

	req := searchRequest{
		Vector:      namedVector{Name: string(m), Vector: vec},
		Limit:       topK,
		WithPayload: true,
	}
	if len(filter) > 0 {
		keys := make([]string, 0, len(filter))
		for k := range filter {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		conditions := make([]fieldCondition, 0, len(keys))
		for _, k := range keys {
			conditions = append(conditions, fieldCondition{Key: k, Match: matchValue{Value: filter[k]}})
		}
		req.Filter = &searchFilter{Must: conditions}
	}

	return retry.DoWithResult(ctx, x.retryCfg, func() ([]Hit, error) {
		status, body, err := x.call(ctx, http.MethodPost, x.collectionPath("/points/search"), req)
		if err != nil {
			return nil, err
		}
		if status == http.StatusNotFound {
			// A missing collection is empty, same as Count.
			return []Hit{}, nil
		}
		if status != http.StatusOK {
			return nil, x.statusError("Query", status)
		}

		var results []searchResult
		if err := json.Unmarshal(body, &results); err != nil {
			return nil, retry.NonRetryable(cmerrors.WrapFatal(
				fmt.Errorf("%w: malformed search response: %v", cmerrors.ErrIndexCorrupt, err),
				"vectorindex", "Query", "response decoding"))
		}

		hits := make([]Hit, 0, len(results))
		for _, r := range results {
			id := r.Payload[payloadProductID]
			if id == "" {
				// A point without a product id cannot be hydrated;
				// surface it as index corruption rather than a gap.
				return nil, retry.NonRetryable(cmerrors.WrapFatal(
					fmt.Errorf("%w: point %s has no product id in payload", cmerrors.ErrIndexCorrupt, r.ID),
					"vectorindex", "Query", "response validation"))
			}
			hits = append(hits, Hit{ID: id, Score: r.Score})
		}
		return hits, nil
	})
}

// Delete removes all points for the given product IDs.
func (x *HTTPIndex) Delete(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	points := make([]string, len(ids))
	for i, id := range ids {
		points[i] = PointID(id)
	}

	return retry.Do(ctx, x.retryCfg, func() error {
		status, _, err := x.call(ctx, http.MethodPost, x.collectionPath("/points/delete?wait=true"), deleteRequest{Points: points})
		if err != nil {
			return err
		}
		if status != http.StatusOK {
			return x.statusError("Delete", status)
		}
		return nil
	})
}

// Count returns the exact number of points in the collection. A missing
// collection counts as empty.
func (x *HTTPIndex) Count(ctx context.Context) (int, error) {
	return retry.DoWithResult(ctx, x.retryCfg, func() (int, error) {
		status, body, err := x.call(ctx, http.MethodPost, x.collectionPath("/points/count"), countRequest{Exact: true})
		if err != nil {
			return 0, err
		}
		if status == http.StatusNotFound {
			return 0, nil
		}
		if status != http.StatusOK {
			return 0, x.statusError("Count", status)
		}

		var result countResult
		if err := json.Unmarshal(body, &result); err != nil {
			return 0, retry.NonRetryable(cmerrors.WrapFatal(
				fmt.Errorf("%w: malformed count response: %v", cmerrors.ErrIndexCorrupt, err),
				"vectorindex", "Count", "response decoding"))
		}
		return result.Count, nil
	})
}

// Ping verifies the index is reachable.
func (x *HTTPIndex) Ping(ctx context.Context) error {
	status, _, err := x.call(ctx, http.MethodGet, "/collections", nil)
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return x.statusError("Ping", status)
	}
	return nil
}

// Close releases resources (no-op for HTTP client).
func (x *HTTPIndex) Close() error {
	return nil
}

// call performs one HTTP exchange and returns the status code plus the
// unwrapped result body. Transport failures and 5xx statuses come back as
// transient ErrIndexUnavailable; 4xx statuses are returned to the caller
// for operation-specific handling.
func (x *HTTPIndex) call(ctx context.Context, method, path string, payload any) (int, json.RawMessage, error) {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return 0, nil, retry.NonRetryable(cmerrors.WrapInvalid(err, "vectorindex", "call", "request encoding"))
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, x.baseURL+path, body)
	if err != nil {
		return 0, nil, retry.NonRetryable(cmerrors.WrapInvalid(err, "vectorindex", "call", "request creation"))
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := x.http.Do(req)
	if err != nil {
		x.countError("transient")
		return 0, nil, cmerrors.WrapTransient(
			fmt.Errorf("%w: %v", cmerrors.ErrIndexUnavailable, err),
			"vectorindex", "call", "index request")
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		x.countError("transient")
		return 0, nil, cmerrors.WrapTransient(
			fmt.Errorf("%w: reading response: %v", cmerrors.ErrIndexUnavailable, err),
			"vectorindex", "call", "response read")
	}

	if resp.StatusCode >= 500 {
		x.countError("transient")
		return 0, nil, cmerrors.WrapTransient(
			fmt.Errorf("%w: index returned %d", cmerrors.ErrIndexUnavailable, resp.StatusCode),
			"vectorindex", "call", "index request")
	}

	var env envelope
	if len(data) > 0 && json.Unmarshal(data, &env) == nil && env.Result != nil {
		return resp.StatusCode, env.Result, nil
	}
	return resp.StatusCode, data, nil
}

func (x *HTTPIndex) collectionPath(suffix string) string {
	return "/collections/" + x.collection + suffix
}

func (x *HTTPIndex) statusError(op string, status int) error {
	if status == http.StatusBadRequest || status == http.StatusUnprocessableEntity {
		return retry.NonRetryable(cmerrors.WrapInvalid(
			fmt.Errorf("%w: index rejected request with %d", cmerrors.ErrInvalidInput, status),
			"vectorindex", op, "index request"))
	}
	x.countError("transient")
	return cmerrors.WrapTransient(
		fmt.Errorf("%w: unexpected index status %d", cmerrors.ErrIndexUnavailable, status),
		"vectorindex", op, "index request")
}

func (x *HTTPIndex) countError(class string) {
	if x.metrics != nil {
		x.metrics.DependencyErrors.WithLabelValues("index", class).Inc()
	}
}
