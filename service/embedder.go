package service

import (
	"context"
	"log/slog"

	"github.com/c360/catalogmatch/config"
	"github.com/c360/catalogmatch/embedding"
	"github.com/c360/catalogmatch/metric"
)

// buildEmbedder constructs the embedding backend for the configured
// provider. The native inference client always handles images; with the
// "openai" provider, text queries are routed to an OpenAI-compatible API
// instead of the native endpoint.
func buildEmbedder(cfg *config.Config, cache embedding.Cache, metrics *metric.Metrics, logger *slog.Logger) (embedding.Embedder, error) {
	native, err := embedding.NewClient(embedding.ClientConfig{
		Endpoint:       cfg.Embedding.Endpoint,
		ImageModel:     cfg.Embedding.ImageModel,
		TextModel:      cfg.Embedding.TextModel,
		ImageDimension: cfg.Embedding.ImageDimension,
		TextDimension:  cfg.Embedding.TextDimension,
		Timeout:        cfg.Embedding.Timeout,
		Cache:          cache,
		Metrics:        metrics,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Embedding.Provider != "openai" {
		return native, nil
	}

	textEndpoint := cfg.Embedding.TextEndpoint
	if textEndpoint == "" {
		textEndpoint = cfg.Embedding.Endpoint
	}
	text, err := embedding.NewOpenAIEmbedder(embedding.OpenAIConfig{
		BaseURL:    textEndpoint,
		Model:      cfg.Embedding.TextModel,
		Dimensions: cfg.Embedding.TextDimension,
		APIKey:     cfg.Embedding.APIKey,
		Timeout:    cfg.Embedding.Timeout,
		Cache:      cache,
		Logger:     logger,
	})
	if err != nil {
		_ = native.Close()
		return nil, err
	}

	return &splitEmbedder{text: text, image: native}, nil
}

// splitEmbedder routes text to an OpenAI-compatible backend and images to
// the native inference client
type splitEmbedder struct {
	text  *embedding.OpenAIEmbedder
	image *embedding.Client
}

func (s *splitEmbedder) EmbedText(ctx context.Context, texts []string) ([]embedding.Vector, error) {
	return s.text.EmbedText(ctx, texts)
}

func (s *splitEmbedder) EmbedImage(ctx context.Context, images [][]byte) ([]embedding.Vector, error) {
	return s.image.EmbedImage(ctx, images)
}

func (s *splitEmbedder) Dimensions(m embedding.Modality) int {
	if m == embedding.ModalityText {
		return s.text.Dimensions(m)
	}
	return s.image.Dimensions(m)
}

func (s *splitEmbedder) Model(m embedding.Modality) string {
	if m == embedding.ModalityText {
		return s.text.Model(m)
	}
	return s.image.Model(m)
}

// Ping probes the native inference endpoint, which serves the image model
func (s *splitEmbedder) Ping(ctx context.Context) error {
	return s.image.Ping(ctx)
}

func (s *splitEmbedder) Close() error {
	textErr := s.text.Close()
	imageErr := s.image.Close()
	if textErr != nil {
		return textErr
	}
	return imageErr
}
