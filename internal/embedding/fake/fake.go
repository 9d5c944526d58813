// Package fake is a deterministic, offline Embedder. Texts are hashed as a
// bag of lower-cased words into a fixed number of buckets and normalized,
// so texts sharing words score higher than unrelated ones.
package fake

import (
	"context"
	"hash/fnv"
	"math"
	"strings"

	"docrag/internal/embedding"
	"docrag/internal/errs"
	"docrag/internal/models"
)

const (
	Model      = "fake-hash-v1"
	defaultDim = 16
)

// Embedder's zero value embeds into defaultDim buckets.
type Embedder struct {
	Dim int
}

func New(dim int) *Embedder {
	if dim <= 0 {
		dim = defaultDim
	}
	return &Embedder{Dim: dim}
}

func (e *Embedder) Embed(_ context.Context, texts []string, inputType models.InputType) (embedding.Result, error) {
	if !embedding.ValidInputType(inputType) {
		return embedding.Result{}, errs.Inputf("fake.embed", "unknown input type %q", inputType)
	}
	dim := e.Dim
	if dim <= 0 {
		dim = defaultDim
	}
	res := embedding.Result{Model: Model, Vectors: make([][]float32, len(texts))}
	for i, t := range texts {
		words := strings.Fields(strings.ToLower(t))
		res.TotalTokens += len(words)
		res.Vectors[i] = vector(words, dim)
	}
	return res, nil
}

func vector(words []string, dim int) []float32 {
	vec := make([]float32, dim)
	if len(words) == 0 {
		vec[0] = 1
		return vec
	}
	for _, w := range words {
		h := fnv.New32a()
		_, _ = h.Write([]byte(strings.Trim(w, ".,;:!?\"'()[]")))
		vec[h.Sum32()%uint32(dim)]++
	}
	var sum float64
	for _, v := range vec {
		sum += float64(v) * float64(v)
	}
	inv := float32(1 / math.Sqrt(sum))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}
