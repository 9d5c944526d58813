// Package provider builds the configured Embedder.
package provider

import (
	"strings"

	"docrag/internal/config"
	"docrag/internal/embedding"
	"docrag/internal/embedding/fake"
	"docrag/internal/embedding/openai"
	"docrag/internal/embedding/voyage"
	"docrag/internal/errs"
)

// New returns the embedder named by DOCRAG_EMBED_PROVIDER:
// "voyage" (default) | "openai" | "fake".
func New(s config.Settings) (embedding.Embedder, error) {
	dim := s.Dimension
	if dim <= 0 {
		dim = config.DefaultDimension
	}
	switch strings.ToLower(strings.TrimSpace(s.EmbedProvider)) {
	case "", "voyage":
		return voyage.New(voyage.Options{
			BaseURL:     s.VoyageBaseURL,
			APIKey:      s.VoyageAPIKey,
			Model:       s.EmbedModel,
			Dimension:   dim,
			MinInterval: s.EmbedMinInterval,
		}), nil
	case "openai":
		return openai.New(openai.Options{
			BaseURL:   s.OpenAIBaseURL,
			APIKey:    s.OpenAIAPIKey,
			Model:     s.EmbedModel,
			Dimension: dim,
		}), nil
	case "fake":
		return fake.New(dim), nil
	default:
		return nil, errs.Inputf("embedding.provider", "unknown provider %q", s.EmbedProvider)
	}
}
