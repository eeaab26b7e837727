package metastore

import (
	"context"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/c360/catalogmatch/errors"
	"github.com/c360/catalogmatch/types"
)

// hexKeyPrefix marks keys whose product ID was hex-encoded.
const hexKeyPrefix = "x."

// KVStore is a Store backed by a NATS JetStream Key-Value bucket.
//
// Products are stored as JSON, one key per product. Product IDs that are
// not valid KV keys are hex-encoded behind a prefix, so arbitrary catalog
// IDs round-trip without constraining the bucket configuration.
type KVStore struct {
	bucket jetstream.KeyValue
	logger *slog.Logger
}

// NewKVStore creates a store over an existing KV bucket.
func NewKVStore(bucket jetstream.KeyValue, logger *slog.Logger) *KVStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &KVStore{bucket: bucket, logger: logger}
}

// Get returns the product with the given ID.
func (s *KVStore) Get(ctx context.Context, id string) (types.Product, error) {
	if id == "" {
		return types.Product{}, errors.WrapInvalid(
			fmt.Errorf("%w: empty product id", errors.ErrInvalidInput),
			"metastore", "Get", "id validation")
	}

	entry, err := s.bucket.Get(ctx, keyFor(id))
	if err != nil {
		if stderrors.Is(err, jetstream.ErrKeyNotFound) {
			return types.Product{}, errors.WrapInvalid(
				fmt.Errorf("%w: %s", errors.ErrProductNotFound, id),
				"metastore", "Get", "lookup")
		}
		return types.Product{}, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err),
			"metastore", "Get", "lookup")
	}

	var p types.Product
	if err := json.Unmarshal(entry.Value(), &p); err != nil {
		return types.Product{}, errors.WrapFatal(
			fmt.Errorf("record for %s does not decode: %w", id, err),
			"metastore", "Get", "record decoding")
	}
	return p, nil
}

// GetMany returns the products for the given IDs, keyed by ID.
//
// Missing records are absent from the result. Records that fail to decode
// are logged and skipped so one bad record cannot take down a search.
func (s *KVStore) GetMany(ctx context.Context, ids []string) (map[string]types.Product, error) {
	out := make(map[string]types.Product, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		entry, err := s.bucket.Get(ctx, keyFor(id))
		if err != nil {
			if stderrors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, errors.WrapTransient(
				fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err),
				"metastore", "GetMany", "lookup")
		}

		var p types.Product
		if err := json.Unmarshal(entry.Value(), &p); err != nil {
			s.logger.Warn("skipping undecodable product record", "id", id, "error", err)
			continue
		}
		out[id] = p
	}
	return out, nil
}

// UpsertMany writes products, one atomic Put per record.
func (s *KVStore) UpsertMany(ctx context.Context, products []types.Product) error {
	for _, p := range products {
		if err := p.Validate(); err != nil {
			return err
		}
		data, err := json.Marshal(p)
		if err != nil {
			return errors.WrapInvalid(err, "metastore", "UpsertMany", "record encoding")
		}
		if _, err := s.bucket.Put(ctx, keyFor(p.ID), data); err != nil {
			return errors.WrapTransient(
				fmt.Errorf("%w: put %s: %v", errors.ErrStoreUnavailable, p.ID, err),
				"metastore", "UpsertMany", "record write")
		}
	}
	return nil
}

// Delete removes the records for the given IDs.
func (s *KVStore) Delete(ctx context.Context, ids []string) error {
	for _, id := range ids {
		if err := s.bucket.Delete(ctx, keyFor(id)); err != nil {
			if stderrors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return errors.WrapTransient(
				fmt.Errorf("%w: delete %s: %v", errors.ErrStoreUnavailable, id, err),
				"metastore", "Delete", "record delete")
		}
	}
	return nil
}

// List returns up to limit products ordered by ID. Records that fail to
// decode are logged and skipped, as in GetMany.
func (s *KVStore) List(ctx context.Context, limit int) ([]types.Product, error) {
	lister, err := s.bucket.ListKeys(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoKeysFound) {
			return []types.Product{}, nil
		}
		return nil, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err),
			"metastore", "List", "key listing")
	}

	out := []types.Product{}
	for key := range lister.Keys() {
		entry, err := s.bucket.Get(ctx, key)
		if err != nil {
			// A record deleted between listing and reading is not a fault.
			if stderrors.Is(err, jetstream.ErrKeyNotFound) {
				continue
			}
			return nil, errors.WrapTransient(
				fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err),
				"metastore", "List", "record read")
		}

		var p types.Product
		if err := json.Unmarshal(entry.Value(), &p); err != nil {
			s.logger.Warn("skipping undecodable product record", "key", key, "error", err)
			continue
		}
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Count returns the number of stored products.
func (s *KVStore) Count(ctx context.Context) (int, error) {
	lister, err := s.bucket.ListKeys(ctx)
	if err != nil {
		if stderrors.Is(err, jetstream.ErrNoKeysFound) {
			return 0, nil
		}
		return 0, errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err),
			"metastore", "Count", "key listing")
	}

	count := 0
	for range lister.Keys() {
		count++
	}
	return count, nil
}

// Ping verifies the bucket is reachable.
func (s *KVStore) Ping(ctx context.Context) error {
	if _, err := s.bucket.Status(ctx); err != nil {
		return errors.WrapTransient(
			fmt.Errorf("%w: %v", errors.ErrStoreUnavailable, err),
			"metastore", "Ping", "bucket status")
	}
	return nil
}

// Close releases nothing; the shared NATS connection is owned elsewhere.
func (s *KVStore) Close() error {
	return nil
}

// keyFor maps a product ID to a valid KV key. IDs made of KV-safe
// characters pass through untouched; anything else is hex-encoded behind
// a distinguishable prefix. The prefix itself is reserved: an ID that
// happens to start with it is encoded too, so no literal ID can collide
// with an encoded one.
func keyFor(id string) string {
	if isValidKey(id) && !strings.HasPrefix(id, hexKeyPrefix) {
		return id
	}
	return hexKeyPrefix + hex.EncodeToString([]byte(id))
}

func isValidKey(id string) bool {
	if id == "" || id[0] == '.' || id[len(id)-1] == '.' {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_' || c == '=' || c == '.':
		default:
			return false
		}
	}
	return true
}
