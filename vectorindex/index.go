package vectorindex

import (
	"context"

	"github.com/google/uuid"

	"github.com/c360/catalogmatch/embedding"
)

// Entry is a single point to be written to the index.
type Entry struct {
	// ID is the product ID this vector belongs to.
	ID string

	// Modality names which embedding space the vector lives in.
	Modality embedding.Modality

	// Vector is the embedding. Its length must match the collection
	// schema for the modality.
	Vector embedding.Vector

	// Payload carries scalar fields stored alongside the vector.
	Payload map[string]string
}

// Filter restricts a query to points whose payload matches every listed
// field exactly. A nil or empty filter matches all points.
type Filter map[string]string

// Hit is a single query result.
type Hit struct {
	// ID is the product ID of the matched point.
	ID string

	// Score is the cosine similarity to the query vector. Higher is
	// more similar.
	Score float32
}

// Index is the similarity index client.
//
// All methods honor context cancellation. Query against an empty
// collection returns an empty hit list and no error.
type Index interface {
	// EnsureCollection creates the collection with the configured
	// per-modality vector schema if it does not already exist.
	EnsureCollection(ctx context.Context) error

	// Upsert writes entries. Entries for the same product in one call
	// merge into a single point carrying one vector per modality; the
	// write replaces the product's previous point wholesale.
	Upsert(ctx context.Context, entries []Entry) error

	// Query returns the topK nearest points to vec within the modality's
	// embedding space, ordered by descending score. A non-empty filter
	// restricts candidates by exact payload match.
	Query(ctx context.Context, m embedding.Modality, vec embedding.Vector, topK int, filter Filter) ([]Hit, error)

	// Delete removes all points for the given product IDs.
	Delete(ctx context.Context, ids []string) error

	// Count returns the number of points in the collection.
	Count(ctx context.Context) (int, error)

	// Ping verifies the index is reachable.
	Ping(ctx context.Context) error

	// Close releases client resources.
	Close() error
}

// pointNamespace seeds deterministic point UUIDs so the same product ID
// always maps to the same point.
var pointNamespace = uuid.MustParse("6ba7b810-9dad-11d1-80b4-00c04fd430c8")

// PointID derives the wire-level point UUID for a product ID.
func PointID(productID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(productID)).String()
}
