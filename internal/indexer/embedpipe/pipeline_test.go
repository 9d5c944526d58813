package embedpipe

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/chunker"
	"docrag/internal/embedding"
	"docrag/internal/embedding/fake"
	"docrag/internal/errs"
	"docrag/internal/log"
	"docrag/internal/models"
	"docrag/internal/rag/retriever"
	"docrag/internal/vectorstore"
)

const dim = 64

// countingEmb wraps the fake embedder and fails from call failAt on (1-based).
type countingEmb struct {
	inner  *fake.Embedder
	calls  int
	types  []models.InputType
	failAt int
}

func (c *countingEmb) Embed(ctx context.Context, texts []string, typ models.InputType) (embedding.Result, error) {
	c.calls++
	c.types = append(c.types, typ)
	if c.failAt > 0 && c.calls >= c.failAt {
		return embedding.Result{}, errs.Providerf("test.embed", "HTTP 503")
	}
	return c.inner.Embed(ctx, texts, typ)
}

// countingStore records InsertBatch calls on top of the in-memory store.
type countingStore struct {
	*vectorstore.Memory
	inserts int
}

func (c *countingStore) InsertBatch(ctx context.Context, recs []models.Record) (int, error) {
	c.inserts++
	return c.Memory.InsertBatch(ctx, recs)
}

func writeDoc(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func twoThousandChars() string {
	ws := make([]string, 200)
	for i := range ws {
		ws[i] = fmt.Sprintf("word%05d", i)
	}
	return strings.Join(ws, " ") + "\n"
}

func TestIngestEmptyDirMakesNoCalls(t *testing.T) {
	emb := &countingEmb{inner: fake.New(dim)}
	vs := &countingStore{Memory: vectorstore.NewMemory(dim)}
	dir := t.TempDir()
	writeDoc(t, dir, "notes.txt", "not markdown")

	stats, err := New(emb, vs, Options{Dim: dim}).Ingest(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.TotalFiles)
	assert.Equal(t, 0, stats.TotalChunks)
	assert.Equal(t, 0, stats.RecordsStored)
	assert.Zero(t, emb.calls)
	assert.Zero(t, vs.inserts)
	assert.NotEmpty(t, stats.RunID)

	runs, err := vs.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	assert.Empty(t, runs)
}

func TestIngestEmptyDirWritesNoRunRow(t *testing.T) {
	ctx := context.Background()
	vs, err := vectorstore.OpenSQLite(ctx, filepath.Join(t.TempDir(), "v.db"), dim)
	require.NoError(t, err)
	defer vs.Close()

	_, err = New(fake.New(dim), vs, Options{Dim: dim}).Ingest(ctx, t.TempDir())
	require.NoError(t, err)

	var runs, records int
	require.NoError(t, vs.DB().QueryRowContext(ctx, "SELECT COUNT(1) FROM ingestion_runs").Scan(&runs))
	require.NoError(t, vs.DB().QueryRowContext(ctx, "SELECT COUNT(1) FROM document_embeddings").Scan(&records))
	assert.Zero(t, runs)
	assert.Zero(t, records)
}

func TestIngestThenSearchEndToEnd(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	text := twoThousandChars()
	require.Len(t, text, 2000)
	writeDoc(t, dir, "guide.md", text)

	emb := &countingEmb{inner: fake.New(dim)}
	vs := vectorstore.NewMemory(dim)
	var progress [][2]int
	p := New(emb, vs, Options{
		ChunkSize: 800, Overlap: 200, Dim: dim,
		Progress: func(done, total int) { progress = append(progress, [2]int{done, total}) },
	})
	stats, err := p.Ingest(ctx, dir)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.TotalFiles)
	assert.Equal(t, 3, stats.TotalChunks)
	assert.Equal(t, 3, stats.ChunksEmbedded)
	assert.Equal(t, 3, stats.RecordsStored)
	assert.Equal(t, 1, stats.Batches)
	assert.Equal(t, fake.Model, stats.Model)
	assert.Equal(t, [][2]int{{3, 3}}, progress)
	assert.Equal(t, []models.InputType{models.InputDocument}, emb.types)

	all, err := vs.ScanAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	for i, r := range all {
		assert.Equal(t, "guide.md", r.Filename)
		assert.Equal(t, i, r.ChunkIndex)
		assert.Equal(t, 3, r.TotalChunks)
	}

	// querying with the second chunk's own text reproduces its vector
	chunks := chunker.Split(text, 800, 200)
	r := retriever.New(emb, vs, retriever.Options{Dim: dim})
	got, err := r.Search(ctx, chunks[1], 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 1, got[0].ChunkIndex)
	assert.InDelta(t, 1.0, got[0].Similarity, 1e-6)
	assert.Equal(t, models.InputQuery, emb.types[len(emb.types)-1])
}

func TestIngestBatchesSequentially(t *testing.T) {
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		writeDoc(t, dir, fmt.Sprintf("doc%d.md", i), fmt.Sprintf("document number %d", i))
	}
	emb := &countingEmb{inner: fake.New(dim)}
	vs := &countingStore{Memory: vectorstore.NewMemory(dim)}
	var buf bytes.Buffer
	stats, err := New(emb, vs, Options{BatchSize: 2, Dim: dim, Log: log.NewWithWriter(&buf, log.Info)}).Ingest(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 5, stats.RecordsStored)
	assert.Equal(t, 3, stats.Batches)
	assert.Equal(t, 3, emb.calls)
	assert.Equal(t, 3, vs.inserts)
	assert.Equal(t, 3, strings.Count(buf.String(), `"msg":"ingest.batch"`))

	all, err := vs.ScanAll(context.Background())
	require.NoError(t, err)
	for i, r := range all {
		assert.Equal(t, fmt.Sprintf("doc%d.md", i), r.Filename)
	}
}

func TestIngestProviderFailureKeepsEarlierBatches(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	for i := 0; i < 5; i++ {
		writeDoc(t, dir, fmt.Sprintf("doc%d.md", i), fmt.Sprintf("document number %d", i))
	}
	emb := &countingEmb{inner: fake.New(dim), failAt: 2}
	vs := vectorstore.NewMemory(dim)
	stats, err := New(emb, vs, Options{BatchSize: 2, Dim: dim}).Ingest(ctx, dir)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrProvider))
	assert.Equal(t, 5, stats.TotalChunks)
	assert.Equal(t, 2, stats.RecordsStored)
	assert.Equal(t, 2, emb.calls)

	st, err := vs.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Records)

	runs, err := vs.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunFailed, runs[0].Status)
	assert.Equal(t, stats.RunID, runs[0].ID)
	assert.Contains(t, runs[0].Error, "HTTP 503")
}

type wrongCount struct{}

func (wrongCount) Embed(ctx context.Context, texts []string, typ models.InputType) (embedding.Result, error) {
	return embedding.Result{Vectors: [][]float32{make([]float32, dim)}}, nil
}

func TestIngestRejectsMiscountedVectors(t *testing.T) {
	dir := t.TempDir()
	writeDoc(t, dir, "a.md", "one")
	writeDoc(t, dir, "b.md", "two")
	vs := vectorstore.NewMemory(dim)
	stats, err := New(wrongCount{}, vs, Options{Dim: dim}).Ingest(context.Background(), dir)
	assert.True(t, errors.Is(err, errs.ErrProvider))
	assert.Zero(t, stats.RecordsStored)

	runs, err := vs.ListRuns(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunFailed, runs[0].Status)
}

func TestIngestMissingDirIsInputError(t *testing.T) {
	_, err := New(fake.New(dim), vectorstore.NewMemory(dim), Options{Dim: dim}).Ingest(context.Background(), filepath.Join(t.TempDir(), "nope"))
	assert.True(t, errors.Is(err, errs.ErrInput))
}

func TestIngestRecordsCompletedRun(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeDoc(t, dir, "a.md", "alpha beta gamma")
	vs, err := vectorstore.OpenSQLite(ctx, filepath.Join(t.TempDir(), "v.db"), dim)
	require.NoError(t, err)
	defer vs.Close()

	stats, err := New(fake.New(dim), vs, Options{Dim: dim}).Ingest(ctx, dir)
	require.NoError(t, err)

	runs, err := vs.ListRuns(ctx, 5)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, models.RunCompleted, runs[0].Status)
	assert.Equal(t, stats.RunID, runs[0].ID)
	assert.Equal(t, 1, runs[0].Stats.RecordsStored)
	assert.Equal(t, 3, runs[0].Stats.TokensUsed)
}
