// Package health provides health monitoring for catalogmatch dependencies
// with thread-safe status tracking and aggregation.
//
// The Prober runs one probe per external dependency (embedding backend,
// vector index, document store) concurrently, each bounded by a per-probe
// timeout, and aggregates the results into a single Report. The aggregate is
// healthy only when every dependency is healthy; it is unreachable when a
// core dependency (index or store) cannot be reached at all, and degraded
// otherwise.
//
// The Monitor type keeps the last known status per component for callers
// that want cached state between probe runs.
package health
