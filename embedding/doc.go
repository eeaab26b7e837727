// Package embedding provides vector embedding generation for catalog search.
//
// # Overview
//
// The package defines the Embedder interface plus two implementations:
//
//   - Client: calls the native inference endpoint over HTTP. Supports both
//     image and text modalities with per-modality models and dimensions.
//   - OpenAIEmbedder: text-only alternative using any OpenAI-compatible
//     embedding API (TEI, LocalAI, OpenAI cloud).
//
// Each modality is an independent embedding space: image vectors and text
// vectors have different dimensionalities and are never compared against
// each other. Text vectors are L2-normalized before they are returned so
// cosine scores land in a stable range regardless of the backing model.
//
// # Batching
//
// Batch calls preserve input order. When individual items fail (for example
// an undecodable image) the call still returns a full-length result slice
// with nil slots for the failed items, and the error is a *BatchError that
// names each failed index. Callers that need all-or-nothing semantics can
// treat any non-nil error as a batch failure.
//
// # Caching
//
// An optional content-addressed Cache (NATS KV backed) short-circuits
// repeated requests for identical inputs. Cache keys combine the model
// name with a SHA-256 hash of the input so different models never collide.
package embedding
