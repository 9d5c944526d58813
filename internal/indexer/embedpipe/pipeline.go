// Package embedpipe turns a directory of documents into stored, embedded
// chunks.
package embedpipe

import (
	"context"
	"time"

	"github.com/google/uuid"

	"docrag/internal/chunker"
	"docrag/internal/config"
	"docrag/internal/embedding"
	"docrag/internal/errs"
	"docrag/internal/indexer"
	"docrag/internal/log"
	"docrag/internal/models"
	"docrag/internal/vectorstore"
)

type Options struct {
	Pattern   string
	Exclude   []string
	ChunkSize int
	Overlap   int
	BatchSize int
	Dim       int
	Log       *log.Logger
	// Progress, when set, is called after every stored batch.
	Progress func(done, total int)
}

type Pipeline struct {
	emb embedding.Embedder
	vs  vectorstore.VectorStore
	opt Options
	log *log.Logger
}

func New(emb embedding.Embedder, vs vectorstore.VectorStore, opt Options) *Pipeline {
	if opt.ChunkSize <= 0 {
		opt.ChunkSize = chunker.DefaultSize
	}
	if opt.Overlap < 0 {
		opt.Overlap = 0
	}
	if opt.BatchSize <= 0 {
		opt.BatchSize = config.DefaultBatchSize
	}
	if opt.Dim <= 0 {
		opt.Dim = config.DefaultDimension
	}
	lg := opt.Log
	if lg == nil {
		lg = log.Discard()
	}
	return &Pipeline{emb: emb, vs: vs, opt: opt, log: lg}
}

// Ingest chunks every matching document of dir, embeds the chunks in
// sequential batches and stores each batch in its own transaction. On
// failure it returns the counters reached so far; batches already stored
// stay stored. A directory with no matching files is a no-op: nothing is
// embedded and no run is recorded.
func (p *Pipeline) Ingest(ctx context.Context, dir string) (models.IngestStats, error) {
	start := time.Now()
	stats := models.IngestStats{RunID: uuid.NewString()}
	lg := p.log.With(map[string]string{"run": stats.RunID})

	chunks, err := p.collect(dir, &stats, lg)
	if err != nil {
		stats.Duration = time.Since(start)
		lg.Error("ingest.failed", "error", err, "kind", errs.KindOf(err).String())
		return stats, err
	}
	if len(chunks) == 0 {
		stats.Duration = time.Since(start)
		lg.Info("ingest.empty", "dir", dir)
		return stats, nil
	}

	rec, _ := p.vs.(vectorstore.RunRecorder)
	run := models.IngestRun{ID: stats.RunID, Dir: dir, Status: models.RunRunning, StartedAt: start.UTC()}
	if rec != nil {
		if err := rec.CreateRun(ctx, run); err != nil {
			return stats, err
		}
	}

	err = p.embedAll(ctx, chunks, &stats, lg)
	stats.Duration = time.Since(start)

	if rec != nil {
		fin := time.Now().UTC()
		run.FinishedAt = &fin
		run.Stats = stats
		run.Status = models.RunCompleted
		if err != nil {
			run.Status = models.RunFailed
			run.Error = err.Error()
		}
		// run bookkeeping never replaces err
		if ferr := rec.FinishRun(context.WithoutCancel(ctx), run); ferr != nil {
			lg.Warn("ingest.run_finish", "error", ferr)
		}
	}
	if err != nil {
		lg.Error("ingest.failed", "error", err, "kind", errs.KindOf(err).String(), "stored", stats.RecordsStored)
		return stats, err
	}
	lg.Info("ingest.done", "files", stats.TotalFiles, "chunks", stats.TotalChunks, "stored", stats.RecordsStored, "tokens", stats.TokensUsed, "duration_ms", stats.Duration.Milliseconds())
	return stats, nil
}

// collect indexes dir and splits every document into chunks.
func (p *Pipeline) collect(dir string, stats *models.IngestStats, lg *log.Logger) ([]models.Chunk, error) {
	docs, err := indexer.Index(dir, indexer.Options{Pattern: p.opt.Pattern, Exclude: p.opt.Exclude})
	if err != nil {
		return nil, err
	}
	stats.TotalFiles = len(docs)
	var chunks []models.Chunk
	for _, d := range docs {
		cs := chunker.Document(d.Path, d.Content, p.opt.ChunkSize, p.opt.Overlap)
		lg.Debug("ingest.file", "file", d.Path, "chunks", len(cs), "bytes", d.Size)
		chunks = append(chunks, cs...)
	}
	stats.TotalChunks = len(chunks)
	return chunks, nil
}

func (p *Pipeline) embedAll(ctx context.Context, chunks []models.Chunk, stats *models.IngestStats, lg *log.Logger) error {
	nBatches := (len(chunks) + p.opt.BatchSize - 1) / p.opt.BatchSize
	for b := 0; b < nBatches; b++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lo := b * p.opt.BatchSize
		hi := lo + p.opt.BatchSize
		if hi > len(chunks) {
			hi = len(chunks)
		}
		batch := chunks[lo:hi]
		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Content
		}
		lg.Info("ingest.batch", "batch", b+1, "of", nBatches, "chunks", len(batch))

		res, err := p.emb.Embed(ctx, texts, models.InputDocument)
		if err != nil {
			if errs.KindOf(err) == errs.KindUnknown {
				err = errs.Provider("ingest.embed", err)
			}
			return err
		}
		if err := embedding.Check("ingest.embed", texts, res, p.opt.Dim); err != nil {
			return err
		}
		stats.ChunksEmbedded += len(batch)
		stats.TokensUsed += res.TotalTokens
		if res.Model != "" {
			stats.Model = res.Model
		}

		recs := make([]models.Record, len(batch))
		for i, c := range batch {
			recs[i] = models.Record{
				Content:     c.Content,
				Embedding:   res.Vectors[i],
				Filename:    c.SourceFile,
				ChunkIndex:  c.Index,
				TotalChunks: c.TotalChunksInSource,
			}
		}
		n, err := p.vs.InsertBatch(ctx, recs)
		if err != nil {
			return err
		}
		stats.RecordsStored += n
		stats.Batches++
		if p.opt.Progress != nil {
			p.opt.Progress(stats.RecordsStored, stats.TotalChunks)
		}
	}
	return nil
}
