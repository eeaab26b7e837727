package search

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/c360/catalogmatch/embedding"
	"github.com/c360/catalogmatch/errors"
	"github.com/c360/catalogmatch/metastore"
	"github.com/c360/catalogmatch/metric"
	"github.com/c360/catalogmatch/types"
	"github.com/c360/catalogmatch/vectorindex"
)

// Request is a single search query.
type Request struct {
	// Modality selects the embedding space to search in.
	Modality embedding.Modality

	// Text is the query text for ModalityText requests.
	Text string

	// Image is the raw query image for ModalityImage requests.
	Image []byte

	// TopK is the number of results wanted. Must be positive; values
	// above the configured maximum are clamped.
	TopK int

	// MinScore overrides the configured score threshold when non-nil.
	MinScore *float32
}

// Match is one ranked search result.
type Match struct {
	Product types.Product `json:"product"`
	Score   float32       `json:"score"`
	Rank    int           `json:"rank"`
}

// Result is a completed search.
type Result struct {
	// RequestID identifies the search in logs.
	RequestID string `json:"request_id"`

	Modality embedding.Modality `json:"modality"`

	// Matches is ordered by rank. Always non-nil; empty when nothing
	// cleared the threshold.
	Matches []Match `json:"matches"`

	// Dropped counts index hits discarded because no product record
	// resolved for them.
	Dropped int `json:"dropped,omitempty"`

	Took time.Duration `json:"took"`
}

// Config tunes the orchestrator.
type Config struct {
	// MaxTopK caps requested result counts (default: 100).
	MaxTopK int

	// OverfetchFactor multiplies TopK for the index query so hydration
	// gaps do not shrink the page (default: 2).
	OverfetchFactor int

	// ScoreThreshold drops matches scoring below it. Zero disables the
	// filter; a request's MinScore overrides it either way.
	ScoreThreshold float32
}

func (c Config) withDefaults() Config {
	if c.MaxTopK <= 0 {
		c.MaxTopK = 100
	}
	if c.OverfetchFactor <= 1 {
		c.OverfetchFactor = 2
	}
	return c
}

// Orchestrator coordinates the embed, query, hydrate, rank sequence.
type Orchestrator struct {
	embedder embedding.Embedder
	index    vectorindex.Index
	store    metastore.Store
	cfg      Config
	metrics  *metric.Metrics
	logger   *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMetrics attaches search metrics.
func WithMetrics(m *metric.Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithLogger sets the orchestrator logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOrchestrator creates a search orchestrator.
func NewOrchestrator(embedder embedding.Embedder, index vectorindex.Index, store metastore.Store, cfg Config, opts ...Option) (*Orchestrator, error) {
	if embedder == nil || index == nil || store == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: embedder, index, and store are required", errors.ErrMissingConfig),
			"search", "NewOrchestrator", "dependency validation")
	}

	o := &Orchestrator{
		embedder: embedder,
		index:    index,
		store:    store,
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Search runs one query end to end.
func (o *Orchestrator) Search(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	requestID := uuid.NewString()
	logger := o.logger.With("request_id", requestID, "modality", req.Modality)

	topK, err := o.validate(req)
	if err != nil {
		o.countSearch(req.Modality, "invalid")
		return nil, err
	}

	queryVec, err := o.embedQuery(ctx, req)
	if err != nil {
		o.countSearch(req.Modality, "error")
		return nil, err
	}

	queryStart := time.Now()
	hits, err := o.index.Query(ctx, req.Modality, queryVec, topK*o.cfg.OverfetchFactor, nil)
	if err != nil {
		o.countSearch(req.Modality, "error")
		return nil, err
	}
	o.observeStage("query", queryStart)

	matches, dropped, err := o.hydrate(ctx, logger, hits)
	if err != nil {
		o.countSearch(req.Modality, "error")
		return nil, err
	}

	matches = o.rank(matches, req.MinScore, topK)

	result := &Result{
		RequestID: requestID,
		Modality:  req.Modality,
		Matches:   matches,
		Dropped:   dropped,
		Took:      time.Since(start),
	}

	o.countSearch(req.Modality, "ok")
	o.observeStage("total", start)
	if o.metrics != nil {
		o.metrics.SearchResults.Observe(float64(len(matches)))
	}

	logger.Debug("search complete",
		"matches", len(matches),
		"dropped", dropped,
		"took", result.Took)
	return result, nil
}

// validate checks the request and resolves the effective topK.
func (o *Orchestrator) validate(req Request) (int, error) {
	if !req.Modality.Valid() {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: unknown modality %q", errors.ErrInvalidInput, req.Modality),
			"search", "validate", "modality check")
	}
	if req.TopK <= 0 {
		return 0, errors.WrapInvalid(
			fmt.Errorf("%w: %d", errors.ErrInvalidTopK, req.TopK),
			"search", "validate", "topK check")
	}
	switch req.Modality {
	case embedding.ModalityText:
		if req.Text == "" {
			return 0, errors.WrapInvalid(
				fmt.Errorf("%w: text query is empty", errors.ErrEmptyQuery),
				"search", "validate", "query check")
		}
	case embedding.ModalityImage:
		if len(req.Image) == 0 {
			return 0, errors.WrapInvalid(
				fmt.Errorf("%w: image query is empty", errors.ErrEmptyQuery),
				"search", "validate", "query check")
		}
	}

	topK := req.TopK
	if topK > o.cfg.MaxTopK {
		topK = o.cfg.MaxTopK
	}
	return topK, nil
}

// embedQuery produces the query vector for the request's modality.
func (o *Orchestrator) embedQuery(ctx context.Context, req Request) (embedding.Vector, error) {
	embedStart := time.Now()
	defer o.observeStage("embed", embedStart)

	var (
		vecs []embedding.Vector
		err  error
	)
	if req.Modality == embedding.ModalityText {
		vecs, err = o.embedder.EmbedText(ctx, []string{req.Text})
	} else {
		vecs, err = o.embedder.EmbedImage(ctx, [][]byte{req.Image})
	}
	if err != nil {
		// A single-item batch failure means the query input itself was
		// rejected; surface the per-item error directly.
		var batchErr *embedding.BatchError
		if stderrors.As(err, &batchErr) && len(batchErr.Items) > 0 {
			return nil, errors.WrapInvalid(batchErr.Items[0].Err, "search", "embedQuery", "query embedding")
		}
		return nil, err
	}
	if len(vecs) != 1 || vecs[0] == nil {
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: embedder returned no vector for the query", errors.ErrBackendUnavailable),
			"search", "embedQuery", "query embedding")
	}
	return vecs[0], nil
}

// hydrate resolves hits to product records, dropping hits with no record.
func (o *Orchestrator) hydrate(ctx context.Context, logger *slog.Logger, hits []vectorindex.Hit) ([]Match, int, error) {
	hydrateStart := time.Now()
	defer o.observeStage("hydrate", hydrateStart)

	if len(hits) == 0 {
		return []Match{}, 0, nil
	}

	ids := make([]string, len(hits))
	for i, hit := range hits {
		ids[i] = hit.ID
	}

	products, err := o.store.GetMany(ctx, ids)
	if err != nil {
		return nil, 0, err
	}

	matches := make([]Match, 0, len(hits))
	dropped := 0
	for _, hit := range hits {
		product, ok := products[hit.ID]
		if !ok {
			dropped++
			if o.metrics != nil {
				o.metrics.HydrationGaps.Inc()
			}
			logger.Warn("dropping hit with no product record", "id", hit.ID, "score", hit.Score)
			continue
		}
		matches = append(matches, Match{Product: product, Score: hit.Score})
	}
	return matches, dropped, nil
}

// rank filters by threshold, orders deterministically, truncates to topK,
// and assigns 1-based ranks.
func (o *Orchestrator) rank(matches []Match, minScore *float32, topK int) []Match {
	threshold := o.cfg.ScoreThreshold
	apply := threshold != 0
	if minScore != nil {
		threshold = *minScore
		apply = true
	}
	if apply {
		kept := matches[:0]
		for _, m := range matches {
			if m.Score >= threshold {
				kept = append(kept, m)
			}
		}
		matches = kept
	}

	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].Product.ID < matches[j].Product.ID
	})

	if len(matches) > topK {
		matches = matches[:topK]
	}
	for i := range matches {
		matches[i].Rank = i + 1
	}
	return matches
}

func (o *Orchestrator) countSearch(m embedding.Modality, status string) {
	if o.metrics != nil {
		o.metrics.SearchesTotal.WithLabelValues(string(m), status).Inc()
	}
}

func (o *Orchestrator) observeStage(stage string, since time.Time) {
	if o.metrics != nil {
		o.metrics.SearchDuration.WithLabelValues(stage).Observe(time.Since(since).Seconds())
	}
}
