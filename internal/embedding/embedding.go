// Package embedding defines the contract between the pipelines and an
// external embedding provider.
package embedding

import (
	"context"

	"docrag/internal/errs"
	"docrag/internal/models"
)

// Embedder maps texts to fixed-dimension vectors, one per text, in order.
// A failure fails the whole call; implementations neither retry nor cache.
type Embedder interface {
	Embed(ctx context.Context, texts []string, inputType models.InputType) (Result, error)
}

// Result carries the vectors plus provider metadata for observability.
type Result struct {
	Vectors     [][]float32
	Model       string
	TotalTokens int
}

// Check verifies that res answers texts one-to-one with vectors of dim
// floats. Violations are provider errors.
func Check(op string, texts []string, res Result, dim int) error {
	if len(res.Vectors) != len(texts) {
		return errs.Providerf(op, "got %d vectors for %d inputs", len(res.Vectors), len(texts))
	}
	for i, v := range res.Vectors {
		if len(v) != dim {
			return errs.Providerf(op, "vector %d has dimension %d, want %d", i, len(v), dim)
		}
	}
	return nil
}

// ValidInputType reports whether t is a known input type.
func ValidInputType(t models.InputType) bool {
	return t == models.InputDocument || t == models.InputQuery
}
