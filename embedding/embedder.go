package embedding

import (
	"context"
	"fmt"
	"strings"
)

// Modality identifies which embedding space an input or vector belongs to.
type Modality string

const (
	// ModalityImage is the image embedding space.
	ModalityImage Modality = "image"

	// ModalityText is the text embedding space.
	ModalityText Modality = "text"
)

// Valid reports whether m is a known modality.
func (m Modality) Valid() bool {
	return m == ModalityImage || m == ModalityText
}

// Vector is a dense embedding vector.
type Vector []float32

// Embedder generates vector embeddings for catalog inputs.
//
// Implementations can use different providers while maintaining a consistent
// interface. All providers support batch operations natively; for a single
// input, pass a slice with one element.
type Embedder interface {
	// EmbedText creates embeddings for the given texts.
	//
	// The result slice always has len(texts) entries in input order. When
	// some items fail, their slots are nil and the returned error is a
	// *BatchError identifying them; the remaining slots hold valid vectors.
	EmbedText(ctx context.Context, texts []string) ([]Vector, error)

	// EmbedImage creates embeddings for the given raw image bytes.
	//
	// Ordering and partial-failure semantics match EmbedText.
	EmbedImage(ctx context.Context, images [][]byte) ([]Vector, error)

	// Dimensions returns the dimensionality of vectors produced for the
	// given modality, or 0 if the modality is unsupported.
	Dimensions(m Modality) int

	// Model returns the model identifier used for the given modality.
	Model(m Modality) string

	// Close releases any resources held by the embedder.
	Close() error
}

// Cache provides content-addressed caching for embeddings.
//
// Implementations use a hash of the input content as the key to enable
// deduplication and fast lookups. Lookups and writes are best-effort: a
// failing cache never fails an embedding call.
type Cache interface {
	// Get retrieves a cached embedding for the given content key.
	// Returns an error when the key is not present.
	Get(ctx context.Context, key string) (Vector, error)

	// Put stores an embedding under the given content key.
	Put(ctx context.Context, key string, vec Vector) error
}

// ItemError records the failure of a single item within a batch call.
type ItemError struct {
	// Index is the position of the failed item in the input slice.
	Index int

	// Err describes why the item failed.
	Err error
}

func (e ItemError) Error() string {
	return fmt.Sprintf("item %d: %v", e.Index, e.Err)
}

func (e ItemError) Unwrap() error {
	return e.Err
}

// BatchError aggregates per-item failures from a batch embedding call.
//
// The call it accompanies still returns a full-length result slice; only
// the slots named here are nil.
type BatchError struct {
	Modality Modality
	Items    []ItemError
}

func (e *BatchError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s batch: %d of batch failed", e.Modality, len(e.Items))
	for i := range e.Items {
		sb.WriteString("; ")
		sb.WriteString(e.Items[i].Error())
	}
	return sb.String()
}

// Unwrap exposes the per-item errors for errors.Is and errors.As.
func (e *BatchError) Unwrap() []error {
	errs := make([]error, len(e.Items))
	for i := range e.Items {
		errs[i] = e.Items[i].Err
	}
	return errs
}

// FailedIndexes returns the input positions that failed, in ascending order.
func (e *BatchError) FailedIndexes() []int {
	idx := make([]int, len(e.Items))
	for i, item := range e.Items {
		idx[i] = item.Index
	}
	return idx
}
