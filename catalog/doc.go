// Package catalog implements the ingestion pipeline that loads product
// records into the document store and the vector index.
//
// # Overview
//
// Ingestion starts from a manifest: a JSON file listing product records
// with their titles, attributes, and image references. The pipeline
// batches records, embeds each batch's text and images, and commits the
// batch to the document store first and the vector index second, so the
// index never references a product the store cannot hydrate.
//
// Batches are embedded concurrently on a worker pool, but commits are
// serialized. Re-running ingestion over the same manifest is idempotent:
// records overwrite their previous documents and index points instead of
// duplicating them.
//
// # Failure policy
//
// Individual record failures (invalid fields, unreadable or undecodable
// images) are logged and skipped; the rest of the batch proceeds. A whole
// run only fails when a backing service is down or the failed-record
// count crosses the configured threshold.
package catalog
