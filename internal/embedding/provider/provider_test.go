package provider

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/config"
	"docrag/internal/embedding/fake"
	"docrag/internal/embedding/openai"
	"docrag/internal/embedding/voyage"
	"docrag/internal/errs"
)

func TestNewSelectsProvider(t *testing.T) {
	e, err := New(config.Settings{})
	require.NoError(t, err)
	assert.IsType(t, &voyage.Client{}, e)

	e, err = New(config.Settings{EmbedProvider: "OpenAI", OpenAIAPIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &openai.Client{}, e)

	e, err = New(config.Settings{EmbedProvider: "fake", Dimension: 8})
	require.NoError(t, err)
	require.IsType(t, &fake.Embedder{}, e)
	assert.Equal(t, 8, e.(*fake.Embedder).Dim)

	_, err = New(config.Settings{EmbedProvider: "cohere"})
	assert.True(t, errors.Is(err, errs.ErrInput))
}
