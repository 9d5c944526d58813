package fake

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/embedding"
	"docrag/internal/models"
)

func TestFakeIsDeterministicAndSized(t *testing.T) {
	e := New(32)
	texts := []string{"Go is great for AI.", "go IS great for ai", ""}
	a, err := e.Embed(context.Background(), texts, models.InputDocument)
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), texts, models.InputQuery)
	require.NoError(t, err)
	require.NoError(t, embedding.Check("fake", texts, a, 32))
	assert.Equal(t, a.Vectors, b.Vectors)
	// case and punctuation do not matter
	assert.Equal(t, a.Vectors[0], a.Vectors[1])
	assert.Equal(t, Model, a.Model)
	assert.Equal(t, 10, a.TotalTokens)
}

func TestFakeUnknownInputType(t *testing.T) {
	_, err := New(8).Embed(context.Background(), []string{"x"}, "other")
	assert.Error(t, err)
}

func TestFakeZeroValueUsesDefaultDim(t *testing.T) {
	var e Embedder
	texts := []string{"", "a b"}
	res, err := e.Embed(context.Background(), texts, models.InputQuery)
	require.NoError(t, err)
	require.NoError(t, embedding.Check("fake", texts, res, 16))
	assert.Equal(t, float32(1), res.Vectors[0][0])
}
