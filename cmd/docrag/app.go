package main

import (
	"context"
	"io"

	"docrag/internal/config"
	"docrag/internal/embedding"
	"docrag/internal/embedding/provider"
	"docrag/internal/indexer/embedpipe"
	"docrag/internal/log"
	"docrag/internal/rag/retriever"
	"docrag/internal/vectorstore"
)

// app holds the components shared by every command. The embedder and the
// store are built once and injected everywhere.
type app struct {
	cfg config.Settings
	log *log.Logger
	emb embedding.Embedder
	vs  vectorstore.VectorStore
}

func newApp(ctx context.Context, stderr io.Writer) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	lg := log.NewWithWriter(stderr, log.ParseLevel(cfg.LogLevel))
	emb, err := provider.New(cfg)
	if err != nil {
		return nil, err
	}
	vs, err := vectorstore.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	lg.Debug("app.config", "store", cfg.Store, "db", cfg.DBPath, "provider", cfg.EmbedProvider, "model", cfg.EmbedModel, "dim", cfg.Dimension)
	return &app{cfg: cfg, log: lg, emb: emb, vs: vs}, nil
}

func (a *app) Close() error { return a.vs.Close() }

func (a *app) pipeline(pattern string, progress func(done, total int)) *embedpipe.Pipeline {
	if pattern == "" {
		pattern = a.cfg.DocsPattern
	}
	return embedpipe.New(a.emb, a.vs, embedpipe.Options{
		Pattern:   pattern,
		ChunkSize: a.cfg.ChunkSize,
		Overlap:   a.cfg.ChunkOverlap,
		BatchSize: a.cfg.BatchSize,
		Dim:       a.cfg.Dimension,
		Log:       a.log,
		Progress:  progress,
	})
}

func (a *app) retriever() *retriever.Retriever {
	return retriever.New(a.emb, a.vs, retriever.Options{Dim: a.cfg.Dimension, TopK: a.cfg.TopK, Log: a.log})
}
