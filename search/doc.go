// Package search implements the query orchestrator for catalog retrieval.
//
// # Overview
//
// A search runs as a fixed sequence: validate the request, embed the query
// input in its modality's embedding space, query the vector index with an
// overfetch margin, hydrate the hits into full product records from the
// document store, filter by score threshold, and rank.
//
// Hydration is deliberately forgiving. An index hit whose product record
// no longer exists is dropped and counted, never fatal: the index and the
// store are updated independently, so a small window of dangling hits is
// an expected operating condition. The overfetch margin exists so dropped
// hits do not shrink the result page.
//
// Results are ordered by descending score with product ID as the tie
// break, so identical inputs always produce identical orderings.
package search
