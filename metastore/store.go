package metastore

import (
	"context"

	"github.com/c360/catalogmatch/types"
)

// Store is the product document store.
type Store interface {
	// Get returns the product with the given ID, or ErrProductNotFound.
	Get(ctx context.Context, id string) (types.Product, error)

	// GetMany returns the products for the given IDs, keyed by ID.
	// IDs with no record are absent from the result; their absence is
	// not an error.
	GetMany(ctx context.Context, ids []string) (map[string]types.Product, error)

	// UpsertMany writes products, replacing existing records with the
	// same ID. Each record is written atomically; a failure partway
	// through leaves earlier records written.
	UpsertMany(ctx context.Context, products []types.Product) error

	// Delete removes the records for the given IDs. Missing IDs are
	// ignored.
	Delete(ctx context.Context, ids []string) error

	// List returns up to limit products ordered by ID. A non-positive
	// limit returns everything.
	List(ctx context.Context, limit int) ([]types.Product, error)

	// Count returns the number of stored products.
	Count(ctx context.Context) (int, error)

	// Ping verifies the store is reachable.
	Ping(ctx context.Context) error

	// Close releases client resources.
	Close() error
}
