// Package vectorindex provides the similarity index client for catalog search.
//
// # Overview
//
// The Index interface covers the operations the ingest pipeline and query
// orchestrator need: collection setup, point upsert, nearest-neighbor query,
// delete, count, and a liveness ping.
//
// Two implementations ship:
//
//   - HTTPIndex: a client for a Qdrant-style REST vector database. The
//     single collection carries one named vector per modality, so image
//     and text embeddings live side by side on the same point without
//     ever being compared cross-modality.
//   - MemoryIndex: an in-process brute-force index for tests and small
//     local runs.
//
// Point IDs on the wire are deterministic UUIDs derived from the product
// ID, so re-upserting a product overwrites its previous point instead of
// accumulating duplicates. The original product ID travels in the point
// payload and is what queries hand back.
//
// Scores are cosine similarity in [-1, 1]; with normalized text vectors
// they land in [0, 1] in practice. Higher is more similar.
package vectorindex
