package catalog

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/c360/catalogmatch/embedding"
	"github.com/c360/catalogmatch/errors"
	"github.com/c360/catalogmatch/metastore"
	"github.com/c360/catalogmatch/metric"
	"github.com/c360/catalogmatch/pkg/worker"
	"github.com/c360/catalogmatch/types"
	"github.com/c360/catalogmatch/vectorindex"
)

// Config tunes pipeline behavior.
type Config struct {
	// Workers is the number of batches embedded concurrently (default: 4).
	Workers int

	// QueueSize is the minimum pending-batch queue depth (default:
	// enough for the run).
	QueueSize int

	// BatchSize is the number of records per batch (default: 32).
	BatchSize int

	// FailureThreshold aborts the run once failed records exceed this
	// fraction of the manifest, 0..1. Zero disables the threshold.
	FailureThreshold float64
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 32
	}
	return c
}

// Report summarizes an ingestion run.
type Report struct {
	// Total is the number of records in the manifest.
	Total int

	// Accepted records were embedded and committed.
	Accepted int

	// Rejected records were invalid and skipped before any backend work.
	Rejected int

	// Failed records hit a per-record processing failure and were skipped.
	Failed int

	Duration time.Duration
}

// Pipeline ingests catalog records into the store and the index.
type Pipeline struct {
	embedder embedding.Embedder
	index    vectorindex.Index
	store    metastore.Store
	images   ImageSource
	cfg      Config
	metrics  *metric.Metrics
	logger   *slog.Logger

	// commits are serialized so store writes always land before their
	// index writes, batch by batch
	commitMu sync.Mutex
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMetrics attaches ingestion metrics.
func WithMetrics(m *metric.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// WithLogger sets the pipeline logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(embedder embedding.Embedder, index vectorindex.Index, store metastore.Store, images ImageSource, cfg Config, opts ...Option) (*Pipeline, error) {
	if embedder == nil || index == nil || store == nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: embedder, index, and store are required", errors.ErrMissingConfig),
			"catalog", "NewPipeline", "dependency validation")
	}
	if images == nil {
		images = MapSource{}
	}

	p := &Pipeline{
		embedder: embedder,
		index:    index,
		store:    store,
		images:   images,
		cfg:      cfg.withDefaults(),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// RunFromDir ingests the dataset directory's manifest, loading images from
// files in the same directory.
func (p *Pipeline) RunFromDir(ctx context.Context, dir string) (*Report, error) {
	records, err := LoadManifest(filepath.Join(dir, ManifestFile))
	if err != nil {
		return nil, err
	}
	p.images = NewDirSource(dir)
	return p.Run(ctx, records)
}

// PopulateIfEmpty runs RunFromDir only when the index holds no points.
// Returns a nil report when the index already has data.
func (p *Pipeline) PopulateIfEmpty(ctx context.Context, dir string) (*Report, error) {
	count, err := p.index.Count(ctx)
	if err != nil {
		return nil, err
	}
	if count > 0 {
		p.logger.Info("index already populated, skipping ingest", "points", count)
		return nil, nil
	}
	return p.RunFromDir(ctx, dir)
}

type batchJob struct {
	records []Record
	done    func(batchResult)
}

type batchResult struct {
	accepted int
	rejected int
	failed   int
	err      error
}

// Run ingests the given records. The returned report is valid even when
// the run aborts early; counts cover the work done before the abort.
func (p *Pipeline) Run(ctx context.Context, records []Record) (*Report, error) {
	start := time.Now()
	cfg := p.cfg
	report := &Report{Total: len(records)}

	if len(records) == 0 {
		report.Duration = time.Since(start)
		return report, nil
	}

	// First occurrence of an ID wins; later duplicates are rejected so a
	// sloppy manifest cannot flip-flop a product within one run.
	seen := make(map[string]struct{}, len(records))
	deduped := make([]Record, 0, len(records))
	for _, rec := range records {
		if _, dup := seen[rec.ID]; dup && rec.ID != "" {
			p.logger.Warn("rejecting duplicate manifest record", "id", rec.ID)
			report.Rejected++
			p.countRecord("rejected")
			continue
		}
		seen[rec.ID] = struct{}{}
		deduped = append(deduped, rec)
	}

	batches := chunk(deduped, cfg.BatchSize)

	maxFailed := -1
	if cfg.FailureThreshold > 0 {
		maxFailed = int(cfg.FailureThreshold * float64(len(records)))
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu        sync.Mutex
		runErr    error
		completed int
		allDone   = make(chan struct{})
	)

	collect := func(res batchResult) {
		mu.Lock()
		report.Accepted += res.accepted
		report.Rejected += res.rejected
		report.Failed += res.failed
		if res.err != nil && runErr == nil {
			runErr = res.err
			cancel()
		}
		if runErr == nil && maxFailed >= 0 && report.Failed > maxFailed {
			runErr = errors.WrapFatal(
				fmt.Errorf("%d of %d records failed, threshold is %.2f", report.Failed, len(records), cfg.FailureThreshold),
				"catalog", "Run", "failure threshold check")
			cancel()
		}
		completed++
		if completed == len(batches) {
			close(allDone)
		}
		mu.Unlock()
	}

	queueSize := cfg.QueueSize
	if queueSize < len(batches) {
		queueSize = len(batches)
	}

	pool := worker.NewPool(cfg.Workers, queueSize, func(ctx context.Context, job batchJob) error {
		res := p.processBatch(ctx, job.records)
		job.done(res)
		return res.err
	})
	if err := pool.Start(runCtx); err != nil {
		return report, err
	}

	for _, batch := range batches {
		if err := pool.Submit(batchJob{records: batch, done: collect}); err != nil {
			// The queue is sized for the whole run; a failed submit means
			// the pool is shutting down under us.
			mu.Lock()
			if runErr == nil {
				runErr = err
			}
			mu.Unlock()
			cancel()
			break
		}
	}

	// An aborted run drops its queued batches, so runCtx.Done is the
	// exit signal then; Stop still drains the in-flight ones.
	select {
	case <-allDone:
	case <-runCtx.Done():
	}
	if err := pool.Stop(30 * time.Second); err != nil {
		p.logger.Warn("worker pool did not stop cleanly", "error", err)
	}

	report.Duration = time.Since(start)

	mu.Lock()
	err := runErr
	mu.Unlock()
	if err == nil && ctx.Err() != nil {
		err = errors.WrapTransient(ctx.Err(), "catalog", "Run", "ingest cancelled")
	}
	if err != nil {
		return report, err
	}

	p.logger.Info("ingest complete",
		"total", report.Total,
		"accepted", report.Accepted,
		"rejected", report.Rejected,
		"failed", report.Failed,
		"duration", report.Duration)
	return report, nil
}

// pending tracks one record through batch processing.
type pending struct {
	product types.Product
	image   []byte
	textVec embedding.Vector
	imgVec  embedding.Vector
	dropped bool
}

func (p *Pipeline) processBatch(ctx context.Context, records []Record) batchResult {
	batchStart := time.Now()
	var res batchResult

	items := make([]*pending, 0, len(records))
	for _, rec := range records {
		product := types.Product{
			ID:         rec.ID,
			Title:      rec.Title,
			Attributes: rec.Attributes,
			ImageRef:   rec.Image,
		}
		if err := product.Validate(); err != nil {
			p.logger.Warn("rejecting invalid record", "id", rec.ID, "error", err)
			res.rejected++
			p.countRecord("rejected")
			continue
		}
		items = append(items, &pending{product: product})
	}

	// Load images up front so embedding sees only readable bytes.
	for _, item := range items {
		if item.product.ImageRef == "" {
			continue
		}
		data, err := p.images.Load(ctx, item.product.ImageRef)
		if err != nil {
			p.logger.Warn("skipping record with unreadable image",
				"id", item.product.ID, "image", item.product.ImageRef, "error", err)
			item.dropped = true
			res.failed++
			p.countRecord("failed")
			continue
		}
		item.image = data
	}

	if err := p.embedTexts(ctx, items, &res); err != nil {
		res.err = err
		return res
	}
	if err := p.embedImages(ctx, items, &res); err != nil {
		res.err = err
		return res
	}

	products := make([]types.Product, 0, len(items))
	entries := make([]vectorindex.Entry, 0, len(items)*2)
	for _, item := range items {
		if item.dropped {
			continue
		}
		products = append(products, item.product)
		payload := map[string]string{"title": item.product.Title}
		entries = append(entries, vectorindex.Entry{
			ID:       item.product.ID,
			Modality: embedding.ModalityText,
			Vector:   item.textVec,
			Payload:  payload,
		})
		if item.imgVec != nil {
			entries = append(entries, vectorindex.Entry{
				ID:       item.product.ID,
				Modality: embedding.ModalityImage,
				Vector:   item.imgVec,
				Payload:  payload,
			})
		}
	}

	if len(products) > 0 {
		if err := p.commit(ctx, products, entries); err != nil {
			res.err = err
			return res
		}
		res.accepted += len(products)
		for range products {
			p.countRecord("accepted")
		}
	}

	if p.metrics != nil {
		p.metrics.IngestBatchDuration.Observe(time.Since(batchStart).Seconds())
	}
	return res
}

// embedTexts fills textVec for every live item. Per-item embedding
// failures drop just that item; any other error fails the batch.
func (p *Pipeline) embedTexts(ctx context.Context, items []*pending, res *batchResult) error {
	idx := make([]int, 0, len(items))
	texts := make([]string, 0, len(items))
	for i, item := range items {
		if item.dropped {
			continue
		}
		idx = append(idx, i)
		texts = append(texts, item.product.SearchText())
	}
	if len(texts) == 0 {
		return nil
	}

	vecs, err := p.embedder.EmbedText(ctx, texts)
	if err != nil {
		var batchErr *embedding.BatchError
		if !stderrors.As(err, &batchErr) {
			return err
		}
		for _, failed := range batchErr.Items {
			item := items[idx[failed.Index]]
			p.logger.Warn("skipping record with unembeddable text",
				"id", item.product.ID, "error", failed.Err)
			item.dropped = true
			res.failed++
			p.countRecord("failed")
		}
	}
	for i, v := range vecs {
		if item := items[idx[i]]; !item.dropped {
			item.textVec = v
		}
	}
	return nil
}

// embedImages fills imgVec for items that carry image bytes.
func (p *Pipeline) embedImages(ctx context.Context, items []*pending, res *batchResult) error {
	idx := make([]int, 0, len(items))
	images := make([][]byte, 0, len(items))
	for i, item := range items {
		if item.dropped || item.image == nil {
			continue
		}
		idx = append(idx, i)
		images = append(images, item.image)
	}
	if len(images) == 0 {
		return nil
	}

	vecs, err := p.embedder.EmbedImage(ctx, images)
	if err != nil {
		var batchErr *embedding.BatchError
		if !stderrors.As(err, &batchErr) {
			return err
		}
		for _, failed := range batchErr.Items {
			item := items[idx[failed.Index]]
			p.logger.Warn("skipping record with unembeddable image",
				"id", item.product.ID, "error", failed.Err)
			item.dropped = true
			res.failed++
			p.countRecord("failed")
		}
	}
	for i, v := range vecs {
		if item := items[idx[i]]; !item.dropped {
			item.imgVec = v
		}
	}
	return nil
}

// commit writes a batch, store first. Commits are serialized across
// worker goroutines.
func (p *Pipeline) commit(ctx context.Context, products []types.Product, entries []vectorindex.Entry) error {
	p.commitMu.Lock()
	defer p.commitMu.Unlock()

	if err := p.store.UpsertMany(ctx, products); err != nil {
		return err
	}
	return p.index.Upsert(ctx, entries)
}

func (p *Pipeline) countRecord(outcome string) {
	if p.metrics != nil {
		p.metrics.IngestRecords.WithLabelValues(outcome).Inc()
	}
}

func chunk(records []Record, size int) [][]Record {
	if len(records) == 0 {
		return nil
	}
	batches := make([][]Record, 0, (len(records)+size-1)/size)
	for start := 0; start < len(records); start += size {
		end := start + size
		if end > len(records) {
			end = len(records)
		}
		batches = append(batches, records[start:end])
	}
	return batches
}
