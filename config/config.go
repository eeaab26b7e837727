package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"time"
)

// EnvPrefix is the prefix for all environment variable overrides
const EnvPrefix = "CATALOGMATCH"

// Config represents the complete application configuration
type Config struct {
	Embedding EmbeddingConfig `json:"embedding"`
	Index     IndexConfig     `json:"index"`
	Store     StoreConfig     `json:"store"`
	Search    SearchConfig    `json:"search"`
	Ingest    IngestConfig    `json:"ingest"`
	Metrics   MetricsConfig   `json:"metrics"`
	Health    HealthConfig    `json:"health"`
}

// EmbeddingConfig configures the embedding provider client
type EmbeddingConfig struct {
	// Endpoint is the base URL of the inference server
	Endpoint string `json:"endpoint"`

	// Provider selects the text-encoder backend: "inference" (native
	// endpoint, default) or "openai" (any OpenAI-compatible embedding API)
	Provider string `json:"provider,omitempty"`

	// TextEndpoint is the base URL of the OpenAI-compatible text API used
	// when Provider is "openai"; empty falls back to Endpoint. Images
	// always use Endpoint.
	TextEndpoint string `json:"text_endpoint,omitempty"`

	// APIKey authenticates against the provider (optional for local services)
	APIKey string `json:"api_key,omitempty"`

	ImageModel string `json:"image_model"`
	TextModel  string `json:"text_model"`

	// Expected embedding dimensionality per modality. A response of any
	// other length is a data-integrity error.
	ImageDimension int `json:"image_dimension"`
	TextDimension  int `json:"text_dimension"`

	// Timeout bounds a single embed call including retries
	Timeout time.Duration `json:"timeout,omitempty"`
}

// IndexConfig configures the vector index client
type IndexConfig struct {
	// URL is the base URL of the vector index service
	URL string `json:"url"`

	// Collection is the name of the collection holding the catalog vectors
	Collection string `json:"collection"`

	Timeout time.Duration `json:"timeout,omitempty"`
}

// StoreConfig configures the document store client
type StoreConfig struct {
	// NATSURL is the NATS server connection URL
	NATSURL string `json:"nats_url"`

	// Bucket is the KV bucket holding product records
	Bucket string `json:"bucket"`

	// CacheBucket is the KV bucket for the content-addressed embedding
	// cache; empty disables caching
	CacheBucket string `json:"cache_bucket,omitempty"`

	Timeout time.Duration `json:"timeout,omitempty"`
}

// SearchConfig configures the query orchestrator
type SearchConfig struct {
	// DefaultTopK is the result count used when a request does not set one
	DefaultTopK int `json:"default_top_k"`

	// MaxTopK clamps oversized requests rather than rejecting them
	MaxTopK int `json:"max_top_k"`

	// OverfetchFactor multiplies top_k when querying the index so that
	// post-hydration drops and threshold filtering still leave enough
	// results
	OverfetchFactor int `json:"overfetch_factor"`

	// ScoreThreshold is the default minimum similarity; 0 disables
	ScoreThreshold float32 `json:"score_threshold,omitempty"`
}

// IngestConfig configures the catalog ingestion pipeline
type IngestConfig struct {
	// DatasetDir is the directory containing manifest images
	DatasetDir string `json:"dataset_dir,omitempty"`

	// Workers is the number of concurrent embedding workers
	Workers int `json:"workers"`

	// QueueSize bounds the embedding work queue
	QueueSize int `json:"queue_size"`

	// BatchSize is the number of records committed per store/index upsert
	BatchSize int `json:"batch_size"`

	// FailureThreshold is the record failure ratio above which a run is
	// considered failed (0..1)
	FailureThreshold float64 `json:"failure_threshold"`
}

// MetricsConfig configures the Prometheus metrics endpoint
type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Port    int    `json:"port,omitempty"`
	Path    string `json:"path,omitempty"`
}

// HealthConfig configures the dependency health prober
type HealthConfig struct {
	// ProbeTimeout bounds each individual dependency probe
	ProbeTimeout time.Duration `json:"probe_timeout,omitempty"`
}

// Default returns the built-in default configuration
func Default() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Endpoint:       "http://localhost:8000",
			Provider:       "inference",
			ImageModel:     "dinov2",
			TextModel:      "bge",
			ImageDimension: 768,
			TextDimension:  384,
			Timeout:        30 * time.Second,
		},
		Index: IndexConfig{
			URL:        "http://localhost:6333",
			Collection: "products",
			Timeout:    10 * time.Second,
		},
		Store: StoreConfig{
			NATSURL:     "nats://localhost:4222",
			Bucket:      "CATALOG_PRODUCTS",
			CacheBucket: "EMBEDDING_CACHE",
			Timeout:     5 * time.Second,
		},
		Search: SearchConfig{
			DefaultTopK:     5,
			MaxTopK:         100,
			OverfetchFactor: 3,
		},
		Ingest: IngestConfig{
			Workers:          8,
			QueueSize:        256,
			BatchSize:        32,
			FailureThreshold: 0.5,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Health: HealthConfig{
			ProbeTimeout: 2 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional JSON file and
// environment overrides, then validates it. An empty path skips the file
// layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config file %s: %w", path, err)
		}
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// applyEnvOverrides applies CATALOGMATCH_* environment variable overrides
func (c *Config) applyEnvOverrides() {
	if val := os.Getenv(EnvPrefix + "_EMBEDDING_ENDPOINT"); val != "" {
		c.Embedding.Endpoint = val
	}
	if val := os.Getenv(EnvPrefix + "_EMBEDDING_PROVIDER"); val != "" {
		c.Embedding.Provider = val
	}
	if val := os.Getenv(EnvPrefix + "_EMBEDDING_TEXT_ENDPOINT"); val != "" {
		c.Embedding.TextEndpoint = val
	}
	if val := os.Getenv(EnvPrefix + "_EMBEDDING_API_KEY"); val != "" {
		c.Embedding.APIKey = val
	}
	if val := os.Getenv(EnvPrefix + "_INDEX_URL"); val != "" {
		c.Index.URL = val
	}
	if val := os.Getenv(EnvPrefix + "_INDEX_COLLECTION"); val != "" {
		c.Index.Collection = val
	}
	if val := os.Getenv(EnvPrefix + "_NATS_URL"); val != "" {
		c.Store.NATSURL = val
	}
	if val := os.Getenv(EnvPrefix + "_STORE_BUCKET"); val != "" {
		c.Store.Bucket = val
	}
	if val := os.Getenv(EnvPrefix + "_DATASET_DIR"); val != "" {
		c.Ingest.DatasetDir = val
	}
	if val := os.Getenv(EnvPrefix + "_DEFAULT_TOP_K"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Search.DefaultTopK = n
		}
	}
	if val := os.Getenv(EnvPrefix + "_TIMEOUT"); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			c.Embedding.Timeout = d
			c.Index.Timeout = d
			c.Store.Timeout = d
		}
	}
}

// Validate checks the configuration for consistency
func (c *Config) Validate() error {
	if c.Embedding.Endpoint == "" {
		return fmt.Errorf("embedding.endpoint is required")
	}
	if c.Embedding.Provider != "" && c.Embedding.Provider != "inference" && c.Embedding.Provider != "openai" {
		return fmt.Errorf("embedding.provider must be \"inference\" or \"openai\", got %q", c.Embedding.Provider)
	}
	if c.Embedding.ImageDimension <= 0 || c.Embedding.TextDimension <= 0 {
		return fmt.Errorf("embedding dimensions must be positive")
	}
	if c.Index.URL == "" {
		return fmt.Errorf("index.url is required")
	}
	if c.Index.Collection == "" {
		return fmt.Errorf("index.collection is required")
	}
	if c.Store.NATSURL == "" {
		return fmt.Errorf("store.nats_url is required")
	}
	if c.Store.Bucket == "" {
		return fmt.Errorf("store.bucket is required")
	}
	if c.Search.DefaultTopK <= 0 {
		return fmt.Errorf("search.default_top_k must be positive")
	}
	if c.Search.MaxTopK < c.Search.DefaultTopK {
		return fmt.Errorf("search.max_top_k must be >= default_top_k")
	}
	if c.Search.OverfetchFactor < 1 {
		return fmt.Errorf("search.overfetch_factor must be >= 1")
	}
	if c.Search.ScoreThreshold < 0 || c.Search.ScoreThreshold > 1 {
		return fmt.Errorf("search.score_threshold must be within [0, 1]")
	}
	if c.Ingest.BatchSize <= 0 {
		return fmt.Errorf("ingest.batch_size must be positive")
	}
	if c.Ingest.FailureThreshold < 0 || c.Ingest.FailureThreshold > 1 {
		return fmt.Errorf("ingest.failure_threshold must be within [0, 1]")
	}
	return nil
}

// String returns a JSON representation of the config with secrets redacted
func (c *Config) String() string {
	clone := *c
	if clone.Embedding.APIKey != "" {
		clone.Embedding.APIKey = "[REDACTED]"
	}
	data, err := json.MarshalIndent(&clone, "", "  ")
	if err != nil {
		return fmt.Sprintf("config marshal error: %v", err)
	}
	return string(data)
}
