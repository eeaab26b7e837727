// Package errors provides standardized error handling patterns for catalogmatch components.
//
// # Overview
//
// The errors package implements a three-class error classification system for
// a retrieval service that depends on external backends: Transient (temporary,
// retryable), Invalid (bad input, non-retryable), and Fatal (data-integrity or
// unrecoverable, stop processing).
//
// The classification drives retry behavior in the dependency clients and
// failure policy in the ingestion pipeline and query orchestrator, without
// hardcoded error string matching at call sites.
//
// # Error Taxonomy
//
// The well-known failure modes of the system map onto sentinel errors:
//
//   - ErrInvalidInput: caller error (empty query, undecodable image, bad top-k) — never retried
//   - ErrBackendUnavailable: embedding endpoint unreachable after the retry budget — transient
//   - ErrIndexUnavailable: vector index unreachable — transient
//   - ErrStoreUnavailable: document store unreachable — transient
//   - ErrDimensionMismatch: embedding length disagrees with the configured dimensionality — fatal
//   - ErrIndexCorrupt: index entry count/dimension invariant violated — fatal
//
// # Quick Start
//
// Wrap errors with component context and classification:
//
//	if err := idx.Query(ctx, vec, k); err != nil {
//	    return errors.WrapTransient(err, "HTTPIndex", "Query", "search request")
//	}
//
// Check classification for retry logic:
//
//	if errors.IsTransient(err) {
//	    // bounded backoff retry
//	}
//
// All error wrapping follows the standardized format:
//
//	"component.method: action failed: %w"
//
// Classification is preserved through wrapping chains and supports the
// standard errors.Is/errors.As inspection.
package errors
