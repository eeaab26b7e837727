package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"
)

// NATSCache implements Cache using NATS KV for storage.
//
// Embeddings are stored with content-addressed keys so identical inputs
// deduplicate across ingest runs and repeated queries.
type NATSCache struct {
	bucket jetstream.KeyValue
}

// NewNATSCache creates a new NATS KV-backed embedding cache.
func NewNATSCache(bucket jetstream.KeyValue) *NATSCache {
	return &NATSCache{bucket: bucket}
}

// Get retrieves a cached embedding by content key.
func (c *NATSCache) Get(ctx context.Context, key string) (Vector, error) {
	entry, err := c.bucket.Get(ctx, key)
	if err != nil {
		if errors.Is(err, jetstream.ErrKeyNotFound) {
			return nil, fmt.Errorf("cache miss: %w", err)
		}
		return nil, fmt.Errorf("failed to get from cache: %w", err)
	}

	var vec Vector
	if err := json.Unmarshal(entry.Value(), &vec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal cached embedding: %w", err)
	}

	return vec, nil
}

// Put stores an embedding in the cache under the given content key.
func (c *NATSCache) Put(ctx context.Context, key string, vec Vector) error {
	data, err := json.Marshal(vec)
	if err != nil {
		return fmt.Errorf("failed to marshal embedding: %w", err)
	}

	if _, err := c.bucket.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to put in cache: %w", err)
	}

	return nil
}

// ContentHash generates a SHA-256 hash of text content for use as a cache key.
func ContentHash(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

// BytesHash generates a SHA-256 hash of raw bytes for use as a cache key.
func BytesHash(data []byte) string {
	hash := sha256.Sum256(data)
	return hex.EncodeToString(hash[:])
}
