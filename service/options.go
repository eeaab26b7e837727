package service

import (
	"log/slog"

	"github.com/c360/catalogmatch/embedding"
	"github.com/c360/catalogmatch/metastore"
	"github.com/c360/catalogmatch/vectorindex"
)

// Option is a functional option for configuring a Service
type Option func(*Service)

// WithLogger sets the structured logger
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithEmbedder injects an embedding backend, skipping construction of the
// configured one
func WithEmbedder(e embedding.Embedder) Option {
	return func(s *Service) { s.embedder = e }
}

// WithIndex injects a vector index backend
func WithIndex(idx vectorindex.Index) Option {
	return func(s *Service) { s.index = idx }
}

// WithStore injects a document store. An injected store also skips the
// NATS connection and the embedding cache built on it.
func WithStore(store metastore.Store) Option {
	return func(s *Service) { s.store = store }
}
