package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v3"

	"docrag/internal/errs"
	"docrag/internal/rag/retriever"
	"docrag/internal/server"
	"docrag/internal/vectorstore"
)

func parseFlags(fs *flag.FlagSet, args []string, stderr io.Writer) error {
	fs.SetOutput(stderr)
	if err := fs.Parse(args); err != nil {
		return errUsage
	}
	return nil
}

func ingestCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("ingest", flag.ContinueOnError)
	dir := fs.String("dir", "", "documents directory (default DOCRAG_DOCS_DIR)")
	pattern := fs.String("pattern", "", "file glob, e.g. '*.md' or '**/*.md'")
	asJSON := fs.Bool("json", false, "print stats as JSON")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}
	a, err := newApp(ctx, stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	if *dir == "" {
		*dir = a.cfg.DocsDir
	}
	progress := func(done, total int) {
		fmt.Fprintf(stderr, "\rembedded %d/%d chunks", done, total)
		if done == total {
			fmt.Fprintln(stderr)
		}
	}
	stats, err := a.pipeline(*pattern, progress).Ingest(ctx, *dir)
	if *asJSON {
		_ = json.NewEncoder(stdout).Encode(stats)
	}
	if err != nil {
		fmt.Fprintf(stderr, "stored %d of %d chunks before failing\n", stats.RecordsStored, stats.TotalChunks)
		return err
	}
	if !*asJSON {
		fmt.Fprintf(stdout, "ingested %s files, %s chunks (%s tokens) in %s\n",
			humanize.Comma(int64(stats.TotalFiles)),
			humanize.Comma(int64(stats.RecordsStored)),
			humanize.Comma(int64(stats.TokensUsed)),
			stats.Duration.Round(time.Millisecond))
	}
	return nil
}

func searchCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	k := fs.Int("k", 0, "number of results (default DOCRAG_TOP_K)")
	asJSON := fs.Bool("json", false, "print results as JSON")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}
	q := strings.Join(fs.Args(), " ")
	if strings.TrimSpace(q) == "" {
		fmt.Fprintln(stderr, "usage: docrag search [--k 5] [--json] \"<query>\"")
		return errUsage
	}
	if *k < 0 {
		return errs.Inputf("search", "--k must be >= 0")
	}
	a, err := newApp(ctx, stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	results, err := a.retriever().Search(ctx, q, *k)
	if err != nil {
		return err
	}
	if *asJSON {
		return json.NewEncoder(stdout).Encode(map[string]any{"results": results})
	}
	if len(results) == 0 {
		fmt.Fprintln(stdout, "no results")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(stdout, "%d. %s#%d  similarity=%.4f\n   %s\n", i+1, r.Filename, r.ChunkIndex, r.Similarity, preview(r.Content, 160))
	}
	return nil
}

// preview collapses whitespace and keeps at most n runes of s.
func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := 0
	for i := range s {
		if runes == n {
			return s[:i] + "..."
		}
		runes++
	}
	return s
}

func statsCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("stats", flag.ContinueOnError)
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}
	a, err := newApp(ctx, stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	st, err := a.vs.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "records: %s\nfiles:   %s\n", humanize.Comma(int64(st.Records)), humanize.Comma(int64(st.Files)))
	if _, ok := a.vs.(*vectorstore.SQLiteVS); ok {
		if fi, err := os.Stat(a.cfg.DBPath); err == nil {
			fmt.Fprintf(stdout, "db:      %s (%s)\n", a.cfg.DBPath, humanize.Bytes(uint64(fi.Size())))
		}
	}
	return nil
}

func runsCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to list")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}
	a, err := newApp(ctx, stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	rec, ok := a.vs.(vectorstore.RunRecorder)
	if !ok {
		fmt.Fprintln(stdout, "store keeps no run history")
		return nil
	}
	runs, err := rec.ListRuns(ctx, *limit)
	if err != nil {
		return err
	}
	for _, r := range runs {
		line := fmt.Sprintf("%s  %-9s %s  files=%d chunks=%d stored=%d",
			r.ID, r.Status, humanize.Time(r.StartedAt), r.Stats.TotalFiles, r.Stats.TotalChunks, r.Stats.RecordsStored)
		if r.Error != "" {
			line += "  error=" + r.Error
		}
		fmt.Fprintln(stdout, line)
	}
	return nil
}

// evalFile is the YAML layout of evaluation cases.
type evalFile struct {
	Cases []retriever.QueryCase `yaml:"cases"`
}

func loadCases(path string) ([]retriever.QueryCase, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.Input("eval", err)
	}
	var f evalFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, errs.Inputf("eval", "parse %s: %v", path, err)
	}
	for i, c := range f.Cases {
		if strings.TrimSpace(c.Query) == "" || len(c.Truth) == 0 {
			return nil, errs.Inputf("eval", "case %d needs a query and at least one truth file", i+1)
		}
	}
	return f.Cases, nil
}

func evalCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("eval", flag.ContinueOnError)
	path := fs.String("cases", "", "YAML file with cases: [{query, truth: [file...]}]")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}
	if *path == "" {
		fmt.Fprintln(stderr, "usage: docrag eval --cases cases.yaml")
		return errUsage
	}
	cases, err := loadCases(*path)
	if err != nil {
		return err
	}
	a, err := newApp(ctx, stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	m, err := retriever.Evaluate(ctx, a.retriever(), cases)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "cases=%d hit@5=%.3f hit@10=%.3f mrr=%.3f\n", m.Cases, m.KAt5, m.KAt10, m.MRR)
	return nil
}

func serveCmd(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	addr := fs.String("addr", "", "listen address (default DOCRAG_SERVER_ADDR)")
	if err := parseFlags(fs, args, stderr); err != nil {
		return err
	}
	a, err := newApp(ctx, stderr)
	if err != nil {
		return err
	}
	defer a.Close()
	if *addr == "" {
		*addr = a.cfg.ServerAddr
	}
	api := server.NewAPI(server.Deps{
		Searcher: a.retriever(),
		Ingester: a.pipeline("", nil),
		Store:    a.vs,
		DocsDir:  a.cfg.DocsDir,
		Log:      a.log,
	})
	fmt.Fprintf(stdout, "listening on %s\n", *addr)
	return server.Run(ctx, *addr, api)
}
