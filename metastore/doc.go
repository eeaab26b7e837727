// Package metastore provides the product document store.
//
// # Overview
//
// The Store interface is the system of record for full product documents.
// The vector index only knows product IDs and embeddings; after a
// similarity query, the orchestrator hydrates hits through this package.
//
// The primary implementation is KVStore, backed by a NATS JetStream
// Key-Value bucket. Each product is one key, so writes are atomic per
// record; a batch upsert that fails partway leaves earlier records
// durably written and later ones untouched, which the ingest pipeline's
// re-run idempotence absorbs. MemoryStore is an in-process fake for tests.
//
// GetMany is deliberately lenient: IDs with no record are simply absent
// from the result, and records that fail to decode are logged and skipped.
// Both cases surface to search as hydration gaps rather than errors.
package metastore
