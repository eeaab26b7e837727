// Package service wires the catalogmatch components into a single
// long-running service with a managed lifecycle.
//
// # Overview
//
// A Service owns the embedding client, the vector index client, the
// document store and the NATS connection behind it, plus the search
// orchestrator and the ingestion pipeline built on top of them. New
// performs validation and wiring that needs no I/O; Start connects to
// the backends, ensures the index collection exists and starts the
// metrics endpoint; Stop tears everything down in reverse order.
//
// # Dependency injection
//
// WithEmbedder, WithIndex and WithStore replace the corresponding
// backend client with a caller-supplied implementation. An injected
// store skips the NATS connection entirely, which is how tests run the
// full service against in-memory backends.
package service
