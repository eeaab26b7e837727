package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/catalogmatch/catalog"
	"github.com/c360/catalogmatch/config"
	"github.com/c360/catalogmatch/embedding"
	"github.com/c360/catalogmatch/errors"
	"github.com/c360/catalogmatch/health"
	"github.com/c360/catalogmatch/metastore"
	"github.com/c360/catalogmatch/metric"
	"github.com/c360/catalogmatch/natsclient"
	"github.com/c360/catalogmatch/search"
	"github.com/c360/catalogmatch/types"
	"github.com/c360/catalogmatch/vectorindex"
)

// Status represents the current lifecycle state of the service
type Status int32

// Possible service statuses
const (
	StatusStopped Status = iota
	StatusStarting
	StatusRunning
	StatusStopping
)

// String returns the string representation of Status
func (s Status) String() string {
	switch s {
	case StatusStopped:
		return "stopped"
	case StatusStarting:
		return "starting"
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// pinger is implemented by backends that can be probed cheaply
type pinger interface {
	Ping(ctx context.Context) error
}

// Service owns the backend clients and the search and ingestion layers
// built on them
type Service struct {
	cfg    *config.Config
	logger *slog.Logger

	registry *metric.MetricsRegistry
	metrics  *metric.Metrics

	nats     *natsclient.Client
	embedder embedding.Embedder
	index    vectorindex.Index
	store    metastore.Store

	orchestrator  *search.Orchestrator
	pipeline      *catalog.Pipeline
	prober        *health.Prober
	metricsServer *metric.Server

	status    atomic.Int32
	startTime atomic.Value // time.Time

	mu sync.Mutex // serializes Start and Stop
}

// New creates a service from the given configuration. No connections are
// opened until Start.
func New(cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "service", "New", "check configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.WrapInvalid(
			fmt.Errorf("%w: %w", errors.ErrInvalidConfig, err),
			"service", "New", "validate configuration")
	}

	registry := metric.NewMetricsRegistry()
	s := &Service{
		cfg:      cfg,
		logger:   slog.Default(),
		registry: registry,
		metrics:  registry.Metrics,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("service", "catalogmatch")

	return s, nil
}

// Start connects to the backends, ensures the index collection exists and
// starts the metrics endpoint when enabled.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if Status(s.status.Load()) != StatusStopped {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "service", "Start", "check lifecycle state")
	}
	s.status.Store(int32(StatusStarting))

	if err := s.buildBackends(ctx); err != nil {
		s.teardown(ctx)
		s.status.Store(int32(StatusStopped))
		return err
	}

	if err := s.index.EnsureCollection(ctx); err != nil {
		s.teardown(ctx)
		s.status.Store(int32(StatusStopped))
		return err
	}

	if err := s.buildLayers(); err != nil {
		s.teardown(ctx)
		s.status.Store(int32(StatusStopped))
		return err
	}

	s.registerProbes()

	if s.cfg.Metrics.Enabled {
		s.metricsServer = metric.NewServer(s.cfg.Metrics.Port, s.cfg.Metrics.Path, s.registry)
		if err := s.metricsServer.Start(); err != nil {
			s.teardown(ctx)
			s.status.Store(int32(StatusStopped))
			return err
		}
	}

	s.startTime.Store(time.Now())
	s.status.Store(int32(StatusRunning))
	s.logger.Info("service started",
		"provider", s.cfg.Embedding.Provider,
		"collection", s.cfg.Index.Collection,
		"metrics_enabled", s.cfg.Metrics.Enabled)
	return nil
}

// buildBackends constructs the clients that were not injected. The store
// (and the embedding cache, when configured) lives in NATS JetStream, so a
// missing store client implies a NATS connection.
func (s *Service) buildBackends(ctx context.Context) error {
	if s.index == nil {
		index, err := vectorindex.NewHTTPIndex(vectorindex.HTTPIndexConfig{
			URL:            s.cfg.Index.URL,
			Collection:     s.cfg.Index.Collection,
			ImageDimension: s.cfg.Embedding.ImageDimension,
			TextDimension:  s.cfg.Embedding.TextDimension,
			Timeout:        s.cfg.Index.Timeout,
			Metrics:        s.metrics,
			Logger:         s.logger,
		})
		if err != nil {
			return err
		}
		s.index = index
	}

	var cache embedding.Cache
	if s.store == nil {
		nc, err := natsclient.NewClient(s.cfg.Store.NATSURL,
			natsclient.WithClientName("catalogmatch"),
			natsclient.WithConnectTimeout(s.cfg.Store.Timeout),
			natsclient.WithLogger(s.logger))
		if err != nil {
			return err
		}
		if err := nc.Connect(ctx); err != nil {
			return err
		}
		s.nats = nc

		bucket, err := nc.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
			Bucket:      s.cfg.Store.Bucket,
			Description: "catalogmatch product records",
		})
		if err != nil {
			return err
		}
		s.store = metastore.NewKVStore(bucket, s.logger)

		if s.cfg.Store.CacheBucket != "" {
			cacheBucket, err := nc.CreateKeyValueBucket(ctx, jetstream.KeyValueConfig{
				Bucket:      s.cfg.Store.CacheBucket,
				Description: "catalogmatch embedding cache",
			})
			if err != nil {
				return err
			}
			cache = embedding.NewNATSCache(cacheBucket)
		}
	}

	if s.embedder == nil {
		if cache == nil {
			// No shared cache bucket; fall back to an in-process one.
			cache = embedding.NewLRUCache(4096)
		}
		emb, err := buildEmbedder(s.cfg, cache, s.metrics, s.logger)
		if err != nil {
			return err
		}
		s.embedder = emb
	}

	return nil
}

// buildLayers constructs the orchestrator and the pipeline on top of the
// backend clients.
func (s *Service) buildLayers() error {
	orch, err := search.NewOrchestrator(s.embedder, s.index, s.store, search.Config{
		MaxTopK:         s.cfg.Search.MaxTopK,
		OverfetchFactor: s.cfg.Search.OverfetchFactor,
		ScoreThreshold:  s.cfg.Search.ScoreThreshold,
	}, search.WithMetrics(s.metrics), search.WithLogger(s.logger))
	if err != nil {
		return err
	}
	s.orchestrator = orch

	pipeline, err := catalog.NewPipeline(s.embedder, s.index, s.store, nil, catalog.Config{
		Workers:          s.cfg.Ingest.Workers,
		QueueSize:        s.cfg.Ingest.QueueSize,
		BatchSize:        s.cfg.Ingest.BatchSize,
		FailureThreshold: s.cfg.Ingest.FailureThreshold,
	}, catalog.WithMetrics(s.metrics), catalog.WithLogger(s.logger))
	if err != nil {
		return err
	}
	s.pipeline = pipeline

	return nil
}

// registerProbes wires the dependency health checks. The index and the
// store are core: the service cannot answer queries without them. The
// embedding backend only degrades the service since cached embeddings and
// hydration keep partial functionality alive.
func (s *Service) registerProbes() {
	s.prober = health.NewProber(s.cfg.Health.ProbeTimeout)
	s.prober.Register("index", true, s.index.Ping)
	s.prober.Register("store", true, s.store.Ping)
	if p, ok := s.embedder.(pinger); ok {
		s.prober.Register("embedding", false, p.Ping)
	}
	if s.nats != nil {
		s.prober.Register("nats", false, func(context.Context) error {
			if !s.nats.IsHealthy() {
				return errors.WrapTransient(errors.ErrStoreUnavailable,
					"service", "probe", "check nats connection")
			}
			return nil
		})
	}
}

// Stop shuts the service down. It is safe to call on a stopped service.
func (s *Service) Stop(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if Status(s.status.Load()) == StatusStopped {
		return nil
	}
	s.status.Store(int32(StatusStopping))

	s.teardown(ctx)

	s.status.Store(int32(StatusStopped))
	s.logger.Info("service stopped")
	return nil
}

// teardown releases everything Start acquired, tolerating partially built
// state so Start can reuse it on a failed boot.
func (s *Service) teardown(ctx context.Context) {
	if s.metricsServer != nil {
		if err := s.metricsServer.Stop(ctx); err != nil {
			s.logger.Warn("metrics server shutdown failed", "error", err)
		}
		s.metricsServer = nil
	}
	if s.embedder != nil {
		if err := s.embedder.Close(); err != nil {
			s.logger.Warn("embedder close failed", "error", err)
		}
	}
	if s.index != nil {
		if err := s.index.Close(); err != nil {
			s.logger.Warn("index close failed", "error", err)
		}
	}
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			s.logger.Warn("store close failed", "error", err)
		}
	}
	if s.nats != nil {
		if err := s.nats.Close(ctx); err != nil {
			s.logger.Warn("nats close failed", "error", err)
		}
		s.nats = nil
	}
}

// Status returns the current lifecycle state
func (s *Service) Status() Status {
	return Status(s.status.Load())
}

// Uptime returns how long the service has been running, zero when stopped
func (s *Service) Uptime() time.Duration {
	if s.Status() != StatusRunning {
		return 0
	}
	start, ok := s.startTime.Load().(time.Time)
	if !ok {
		return 0
	}
	return time.Since(start)
}

// Search runs a query through the orchestrator. A request that leaves
// TopK unset gets the configured default page size.
func (s *Service) Search(ctx context.Context, req search.Request) (*search.Result, error) {
	if s.Status() != StatusRunning {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, "service", "Search", "check lifecycle state")
	}
	if req.TopK == 0 {
		req.TopK = s.cfg.Search.DefaultTopK
	}
	return s.orchestrator.Search(ctx, req)
}

// Ingest runs the ingestion pipeline over the dataset directory
func (s *Service) Ingest(ctx context.Context, dir string) (*catalog.Report, error) {
	if s.Status() != StatusRunning {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, "service", "Ingest", "check lifecycle state")
	}
	return s.pipeline.RunFromDir(ctx, dir)
}

// ListProducts returns up to limit catalog records ordered by ID. A
// non-positive limit returns the whole catalog.
func (s *Service) ListProducts(ctx context.Context, limit int) ([]types.Product, error) {
	if s.Status() != StatusRunning {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, "service", "ListProducts", "check lifecycle state")
	}
	return s.store.List(ctx, limit)
}

// PopulateIfEmpty ingests the dataset directory only when the index holds
// no points. A nil report means the index was already populated.
func (s *Service) PopulateIfEmpty(ctx context.Context, dir string) (*catalog.Report, error) {
	if s.Status() != StatusRunning {
		return nil, errors.WrapInvalid(errors.ErrNotStarted, "service", "PopulateIfEmpty", "check lifecycle state")
	}
	return s.pipeline.PopulateIfEmpty(ctx, dir)
}

// Health probes every registered dependency and returns the aggregate
// report. A stopped service reports itself unreachable.
func (s *Service) Health(ctx context.Context) health.Report {
	if s.Status() != StatusRunning || s.prober == nil {
		return health.Report{
			State:      health.StateUnreachable,
			Components: map[string]health.Status{},
			CheckedAt:  time.Now(),
		}
	}
	return s.prober.Check(ctx)
}

// Registry returns the metrics registry backing the service
func (s *Service) Registry() *metric.MetricsRegistry {
	return s.registry
}
