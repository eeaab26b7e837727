package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	assert.NoError(t, cfg.Validate())
}

func TestLoad_NoFile(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.Search.DefaultTopK)
	assert.Equal(t, 768, cfg.Embedding.ImageDimension)
	assert.Equal(t, 384, cfg.Embedding.TextDimension)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.json")
	assert.Error(t, err)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")

	content := `{
		"index": {"url": "http://qdrant:6333", "collection": "catalog"},
		"search": {"default_top_k": 10, "max_top_k": 50, "overfetch_factor": 2}
	}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "http://qdrant:6333", cfg.Index.URL)
	assert.Equal(t, "catalog", cfg.Index.Collection)
	assert.Equal(t, 10, cfg.Search.DefaultTopK)
	assert.Equal(t, 50, cfg.Search.MaxTopK)
	// Untouched sections keep defaults
	assert.Equal(t, "nats://localhost:4222", cfg.Store.NATSURL)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("CATALOGMATCH_INDEX_URL", "http://index.internal:6333")
	t.Setenv("CATALOGMATCH_NATS_URL", "nats://nats.internal:4222")
	t.Setenv("CATALOGMATCH_DEFAULT_TOP_K", "7")
	t.Setenv("CATALOGMATCH_TIMEOUT", "3s")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "http://index.internal:6333", cfg.Index.URL)
	assert.Equal(t, "nats://nats.internal:4222", cfg.Store.NATSURL)
	assert.Equal(t, 7, cfg.Search.DefaultTopK)
	assert.Equal(t, 3*time.Second, cfg.Index.Timeout)
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty endpoint", func(c *Config) { c.Embedding.Endpoint = "" }},
		{"bad provider", func(c *Config) { c.Embedding.Provider = "triton" }},
		{"zero image dim", func(c *Config) { c.Embedding.ImageDimension = 0 }},
		{"empty index url", func(c *Config) { c.Index.URL = "" }},
		{"empty collection", func(c *Config) { c.Index.Collection = "" }},
		{"empty bucket", func(c *Config) { c.Store.Bucket = "" }},
		{"zero top_k", func(c *Config) { c.Search.DefaultTopK = 0 }},
		{"max below default", func(c *Config) { c.Search.MaxTopK = 1 }},
		{"overfetch zero", func(c *Config) { c.Search.OverfetchFactor = 0 }},
		{"threshold above one", func(c *Config) { c.Search.ScoreThreshold = 1.5 }},
		{"zero batch", func(c *Config) { c.Ingest.BatchSize = 0 }},
		{"bad failure threshold", func(c *Config) { c.Ingest.FailureThreshold = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestString_RedactsAPIKey(t *testing.T) {
	cfg := Default()
	cfg.Embedding.APIKey = "super-secret"

	s := cfg.String()
	assert.NotContains(t, s, "super-secret")
	assert.Contains(t, s, "[REDACTED]")
}
