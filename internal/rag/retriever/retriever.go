package retriever

import (
	"context"
	"strings"

	"docrag/internal/config"
	"docrag/internal/embedding"
	"docrag/internal/errs"
	"docrag/internal/log"
	"docrag/internal/models"
	"docrag/internal/rag/ranker"
	"docrag/internal/vectorstore"
)

// Result is an alias to models.SearchResult for clarity at call sites.
type Result = models.SearchResult

// Searcher returns the top-K chunks for a query.
type Searcher interface {
	Search(ctx context.Context, query string, topK int) ([]Result, error)
}

// Retriever embeds the query, scans the store and ranks every record.
type Retriever struct {
	emb  embedding.Embedder
	vs   vectorstore.VectorStore
	rank ranker.Ranker
	topK int
	log  *log.Logger
}

type Options struct {
	Dim  int
	TopK int // used when Search gets topK == 0
	Log  *log.Logger
}

func New(emb embedding.Embedder, vs vectorstore.VectorStore, opt Options) *Retriever {
	if opt.Dim <= 0 {
		opt.Dim = config.DefaultDimension
	}
	if opt.TopK <= 0 {
		opt.TopK = config.DefaultTopK
	}
	if opt.Log == nil {
		opt.Log = log.Discard()
	}
	return &Retriever{emb: emb, vs: vs, rank: ranker.Ranker{Dim: opt.Dim}, topK: opt.TopK, log: opt.Log}
}

// Search returns at most topK results ordered by descending similarity.
// topK == 0 selects the configured default; a negative topK returns nothing.
func (r *Retriever) Search(ctx context.Context, query string, topK int) ([]Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, errs.Inputf("search", "empty query")
	}
	if topK == 0 {
		topK = r.topK
	}
	texts := []string{query}
	res, err := r.emb.Embed(ctx, texts, models.InputQuery)
	if err != nil {
		if errs.KindOf(err) == errs.KindUnknown {
			err = errs.Provider("search.embed", err)
		}
		return nil, err
	}
	if err := embedding.Check("search.embed", texts, res, r.rank.Dim); err != nil {
		return nil, err
	}
	recs, err := r.vs.ScanAll(ctx)
	if err != nil {
		return nil, err
	}
	out, err := r.rank.Rank(res.Vectors[0], recs, topK)
	if err != nil {
		return nil, err
	}
	if r.log.Enabled(log.Debug) {
		for i, hit := range out {
			r.log.Debug("search.hit", "rank", i+1, "file", hit.Filename, "chunk", hit.ChunkIndex, "similarity", hit.Similarity)
		}
	}
	r.log.Info("search", "candidates", len(recs), "results", len(out), "model", res.Model)
	return out, nil
}
