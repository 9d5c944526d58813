// Package ranker scores stored records against a query vector by cosine
// similarity and returns the best matches.
package ranker

import (
	"math"
	"sort"

	"docrag/internal/errs"
	"docrag/internal/models"
)

// Cosine returns dot(a,b)/(|a||b|), accumulated in float64. A zero-magnitude
// operand yields NaN. Callers ensure len(a) == len(b).
func Cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Rank scores every candidate against query, sorts by descending similarity
// keeping scan order among equal scores, and keeps at most topK results.
func Rank(query []float32, candidates []models.StoredRecord, topK int) ([]models.SearchResult, error) {
	if topK <= 0 {
		return []models.SearchResult{}, nil
	}
	scored := make([]models.SearchResult, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) != len(query) {
			return nil, errs.Inputf("rank", "dimension mismatch: record %d has %d, query has %d", c.ID, len(c.Embedding), len(query))
		}
		scored = append(scored, models.SearchResult{
			Content:    c.Content,
			Filename:   c.Filename,
			ChunkIndex: c.ChunkIndex,
			Similarity: Cosine(query, c.Embedding),
		})
	}
	// NaN (zero-norm vectors) sorts after every real similarity.
	sort.SliceStable(scored, func(i, j int) bool {
		a, b := scored[i].Similarity, scored[j].Similarity
		return !math.IsNaN(a) && (math.IsNaN(b) || a > b)
	})
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// Ranker pins the expected dimension so a query vector of the wrong size is
// rejected before any scoring.
type Ranker struct {
	Dim int
}

func (r Ranker) Rank(query []float32, candidates []models.StoredRecord, topK int) ([]models.SearchResult, error) {
	if r.Dim > 0 && len(query) != r.Dim {
		return nil, errs.Inputf("rank", "query has dimension %d, want %d", len(query), r.Dim)
	}
	return Rank(query, candidates, topK)
}
