package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every known key for the duration of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range append(KnownKeys, "OPENAI_API_KEY") {
		t.Setenv(k, "")
		require.NoError(t, os.Unsetenv(k))
	}
}

func TestFromEnvDefaults(t *testing.T) {
	clearEnv(t)
	s, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 1024, s.Dimension)
	assert.Equal(t, 800, s.ChunkSize)
	assert.Equal(t, 200, s.ChunkOverlap)
	assert.Equal(t, 128, s.BatchSize)
	assert.Equal(t, 5, s.TopK)
	assert.Equal(t, "voyage", s.EmbedProvider)
	assert.Equal(t, "voyage-3-large", s.EmbedModel)
	assert.Equal(t, "*.md", s.DocsPattern)
}

func TestFromEnvOverrides(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCRAG_EMBED_PROVIDER", "OpenAI")
	t.Setenv("DOCRAG_EMBED_DIM", "256")
	t.Setenv("DOCRAG_EMBED_MIN_INTERVAL_MS", "150")
	t.Setenv("OPENAI_API_KEY", "from-generic")
	t.Setenv("DOCRAG_OPENAI_API_KEY", "from-specific")
	s, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "openai", s.EmbedProvider)
	assert.Equal(t, "text-embedding-3-small", s.EmbedModel)
	assert.Equal(t, 256, s.Dimension)
	assert.Equal(t, 150*time.Millisecond, s.EmbedMinInterval)
	assert.Equal(t, "from-specific", s.OpenAIAPIKey)
}

func TestFromEnvRejectsBadNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("DOCRAG_CHUNK_SIZE", "zero")
	t.Setenv("DOCRAG_EMBED_BATCH", "0")
	_, err := FromEnv()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DOCRAG_CHUNK_SIZE")
	assert.Contains(t, err.Error(), "DOCRAG_EMBED_BATCH")
}

func TestApplyFileYAMLDoesNotOverrideEnv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	yml := "docrag_chunk_size: 400\nDOCRAG_TOP_K: 3\nDOCRAG_DB_PATH: /tmp/x.db\nunrelated: true\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yml), 0o644))
	t.Setenv("DOCRAG_TOP_K", "9")

	require.NoError(t, ApplyFile(dir))
	s, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 400, s.ChunkSize)
	assert.Equal(t, 9, s.TopK)
	assert.Equal(t, "/tmp/x.db", s.DBPath)
}

func TestApplyFileJSON(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), []byte(`{"DOCRAG_EMBED_BATCH": 64}`), 0o644))
	require.NoError(t, ApplyFile(dir))
	s, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, 64, s.BatchSize)
}

func TestApplyFileMalformed(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("a: [unclosed"), 0o644))
	assert.Error(t, ApplyFile(dir))
}
