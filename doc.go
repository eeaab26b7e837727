// Package catalogmatch provides a multimodal product-retrieval system
// that matches catalog products by text or image similarity.
//
// # Architecture
//
// Products are embedded into two independent vector spaces, one per
// modality, and stored in a vector index alongside a document store
// holding the full records:
//
//	┌─────────────────────────────────────┐
//	│        Query Orchestrator           │  validate, embed, search,
//	│            (search)                 │  hydrate, rank
//	└─────────────────────────────────────┘
//	           ↓ queries
//	┌──────────────┐  ┌──────────────┐  ┌──────────────┐
//	│  Embedding   │  │ Vector Index │  │  Metadata    │
//	│   Provider   │  │   (Qdrant-   │  │  Store       │
//	│ (embedding)  │  │    style)    │  │ (NATS KV)    │
//	└──────────────┘  └──────────────┘  └──────────────┘
//	           ↑ populated by
//	┌─────────────────────────────────────┐
//	│       Ingestion Pipeline            │  batch embed, dual-write,
//	│           (catalog)                 │  skip-and-log failures
//	└─────────────────────────────────────┘
//
// Image vectors come from a vision encoder (DINOv2 by default, 768
// dimensions) and text vectors from a sentence encoder (BGE by default,
// 384 dimensions, L2-normalized). The two spaces are never mixed: a
// text query searches only the text vectors and an image query only the
// image vectors.
//
// # Packages
//
// Domain:
//   - embedding: embedding provider clients (native inference endpoint,
//     OpenAI-compatible APIs) with content-addressed caching
//   - vectorindex: vector index clients (Qdrant-style REST with named
//     per-modality vectors, in-memory brute force)
//   - metastore: product record store (NATS JetStream KV, in-memory)
//   - catalog: manifest loading and the concurrent ingestion pipeline
//   - search: the query orchestrator
//   - service: lifecycle wiring of all of the above
//
// Infrastructure:
//   - config: configuration loading and validation
//   - errors: classified error handling
//   - health: dependency health probing and aggregation
//   - metric: Prometheus metrics
//   - natsclient: NATS connection management
//   - pkg/retry: retry policies with exponential backoff
//   - pkg/worker: generic worker pools
//
// # Failure semantics
//
// Backend failures are classified. Transient errors (backend down, index
// unreachable) are retried with bounded backoff inside the clients;
// invalid input is never retried; data-integrity errors (dimension
// mismatch, corrupt index payloads) are fatal and surface immediately.
// During ingestion a record that cannot be embedded is skipped and
// logged rather than failing the run; during search an index hit whose
// record is missing from the store is dropped and counted rather than
// failing the query.
//
// # Binary
//
// cmd/catalogmatch runs the service: it loads configuration, connects
// the backends, optionally ingests a dataset directory when the index
// is empty, and serves Prometheus metrics and a /healthz endpoint until
// SIGINT or SIGTERM.
package catalogmatch
