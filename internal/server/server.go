package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"docrag/internal/errs"
	mylog "docrag/internal/log"
	"docrag/internal/models"
	"docrag/internal/rag/retriever"
	"docrag/internal/vectorstore"
	"docrag/internal/version"
)

// Ingester runs one ingestion of a directory.
type Ingester interface {
	Ingest(ctx context.Context, dir string) (models.IngestStats, error)
}

type Deps struct {
	Searcher retriever.Searcher
	Ingester Ingester
	Store    vectorstore.VectorStore
	DocsDir  string // used when POST /ingest names no dir
	Log      *mylog.Logger
}

type API struct {
	search  retriever.Searcher
	ingest  Ingester
	vs      vectorstore.VectorStore
	docsDir string
	log     *mylog.Logger
	metrics *metricsCollector

	// one ingestion at a time; a second request gets 409
	ingestMu sync.Mutex
}

func NewAPI(d Deps) *API {
	lg := d.Log
	if lg == nil {
		lg = mylog.New()
	}
	return &API{
		search:  d.Searcher,
		ingest:  d.Ingester,
		vs:      d.Store,
		docsDir: d.DocsDir,
		log:     lg,
		metrics: newMetrics(),
	}
}

type metricsCollector struct {
	mu       sync.Mutex
	reqTotal map[string]int
	durSum   map[string]float64
	durCount map[string]int

	searches       int
	searchErrors   int
	ingests        int
	ingestErrors   int
	chunksStored   int
	tokensEmbedded int
}

func newMetrics() *metricsCollector {
	return &metricsCollector{
		reqTotal: make(map[string]int),
		durSum:   make(map[string]float64),
		durCount: make(map[string]int),
	}
}

func (a *API) mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/search", a.handleSearch)
	mux.HandleFunc("/ingest", a.handleIngest)
	mux.HandleFunc("/stats", a.handleStats)
	mux.HandleFunc("/runs", a.handleRuns)
	mux.HandleFunc("/metrics", a.handleMetrics)
	return mux
}

// Handler returns the routes wrapped in request-id and access-log middleware.
func (a *API) Handler() http.Handler { return a.logMiddleware(a.mux()) }

// Run serves the API on addr until ctx is done or SIGINT/SIGTERM arrives.
func Run(ctx context.Context, addr string, api *API) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		errc <- srv.ListenAndServe()
	}()
	api.log.Info("server.listen", "addr", addr, "version", version.Version)

	// graceful shutdown on SIGINT/SIGTERM
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigc)

	shutdown := func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(sctx)
	}
	select {
	case sig := <-sigc:
		shutdown()
		api.log.Info("server.shutdown", "signal", sig.String())
		return nil
	case <-ctx.Done():
		shutdown()
		return nil
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	nbytes int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if sr.status == 0 {
		sr.status = http.StatusOK
	}
	n, err := sr.ResponseWriter.Write(b)
	sr.nbytes += n
	return n, err
}

func (a *API) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		// request-id propagation: accept client-provided or generate
		reqID := strings.TrimSpace(r.Header.Get("X-Request-ID"))
		if reqID == "" {
			reqID = uuid.NewString()
		}
		w.Header().Set("X-Request-ID", reqID)
		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r)
		dur := time.Since(start)
		a.log.Info("http.req",
			"req_id", reqID,
			"method", r.Method,
			"path", r.URL.Path,
			"userAgent", r.UserAgent(),
			"remoteIP", r.RemoteAddr,
			"status", rec.status,
			"duration_ms", int(dur/time.Millisecond),
			"bytes", rec.nbytes,
		)
		mkey := r.Method + "|" + r.URL.Path + "|" + strconv.Itoa(rec.status)
		dkey := r.Method + "|" + r.URL.Path
		a.metrics.mu.Lock()
		a.metrics.reqTotal[mkey]++
		a.metrics.durSum[dkey] += dur.Seconds()
		a.metrics.durCount[dkey]++
		a.metrics.mu.Unlock()
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

type apiError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

func writeError(w http.ResponseWriter, status int, errStr, message string) {
	writeJSON(w, status, apiError{Error: errStr, Message: message, Code: status})
}

// writeKindError maps a classified pipeline error to a status code.
func writeKindError(w http.ResponseWriter, err error) {
	switch errs.KindOf(err) {
	case errs.KindInput:
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
	case errs.KindProvider:
		writeError(w, http.StatusBadGateway, "provider_error", err.Error())
	case errs.KindCorruption:
		writeError(w, http.StatusInternalServerError, "store_corrupted", err.Error())
	case errs.KindStore:
		writeError(w, http.StatusInternalServerError, "store_error", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal", err.Error())
	}
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "q required")
		return
	}
	k := 0
	if v := r.URL.Query().Get("k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "k must be a non-negative integer")
			return
		}
		k = n
	}
	results, err := a.search.Search(r.Context(), q, k)
	a.metrics.mu.Lock()
	a.metrics.searches++
	if err != nil {
		a.metrics.searchErrors++
	}
	a.metrics.mu.Unlock()
	if err != nil {
		writeKindError(w, err)
		return
	}
	if results == nil {
		results = []models.SearchResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results})
}

type ingestRequest struct {
	Dir string `json:"dir"`
}

func (a *API) handleIngest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	var req ingestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}
	dir := strings.TrimSpace(req.Dir)
	if dir == "" {
		dir = a.docsDir
	}
	if dir == "" {
		writeError(w, http.StatusBadRequest, "invalid_request", "dir required")
		return
	}
	if !a.ingestMu.TryLock() {
		writeError(w, http.StatusConflict, "busy", "an ingestion is already running")
		return
	}
	defer a.ingestMu.Unlock()

	stats, err := a.ingest.Ingest(r.Context(), dir)
	a.metrics.mu.Lock()
	a.metrics.ingests++
	a.metrics.chunksStored += stats.RecordsStored
	a.metrics.tokensEmbedded += stats.TokensUsed
	if err != nil {
		a.metrics.ingestErrors++
	}
	a.metrics.mu.Unlock()
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (a *API) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	st, err := a.vs.Stats(r.Context())
	if err != nil {
		writeKindError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (a *API) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
		return
	}
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "invalid_request", "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs := []models.IngestRun{}
	if rec, ok := a.vs.(vectorstore.RunRecorder); ok {
		got, err := rec.ListRuns(r.Context(), limit)
		if err != nil {
			writeKindError(w, err)
			return
		}
		runs = append(runs, got...)
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (a *API) handleMetrics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	st, err := a.vs.Stats(r.Context())
	if err != nil {
		writeKindError(w, err)
		return
	}
	a.metrics.mu.Lock()
	counters := map[string]int{
		"records":       st.Records,
		"files":         st.Files,
		"searches":      a.metrics.searches,
		"search_errors": a.metrics.searchErrors,
		"ingests":       a.metrics.ingests,
		"ingest_errors": a.metrics.ingestErrors,
		"chunks_stored": a.metrics.chunksStored,
		"tokens":        a.metrics.tokensEmbedded,
	}
	a.metrics.mu.Unlock()

	// Content negotiation: default to Prometheus text exposition.
	// Use JSON when explicitly requested via query or Accept header.
	format := strings.ToLower(r.URL.Query().Get("format"))
	if format == "json" || strings.Contains(r.Header.Get("Accept"), "application/json") {
		writeJSON(w, http.StatusOK, counters)
		return
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	gauge := func(name, help string, v int) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s gauge\n%s %d\n", name, help, name, name, v)
	}
	counter := func(name, help string, v int) {
		fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s counter\n%s %d\n", name, help, name, name, v)
	}
	gauge("docrag_records", "Stored chunk records.", counters["records"])
	gauge("docrag_files", "Distinct source files in the store.", counters["files"])
	counter("docrag_search_total", "Search requests served.", counters["searches"])
	counter("docrag_search_errors_total", "Search requests that failed.", counters["search_errors"])
	counter("docrag_ingest_total", "Ingestion runs started over HTTP.", counters["ingests"])
	counter("docrag_ingest_errors_total", "Ingestion runs that failed.", counters["ingest_errors"])
	counter("docrag_chunks_stored_total", "Chunks stored by HTTP ingestion runs.", counters["chunks_stored"])
	counter("docrag_embed_tokens_total", "Provider tokens reported by HTTP ingestion runs.", counters["tokens"])

	// http request metrics (counters and duration sum/count)
	a.metrics.mu.Lock()
	if len(a.metrics.reqTotal) > 0 {
		io.WriteString(w, "# TYPE docrag_http_requests_total counter\n")
	}
	for key, v := range a.metrics.reqTotal {
		parts := strings.Split(key, "|")
		if len(parts) == 3 {
			fmt.Fprintf(w, "docrag_http_requests_total{method=%q,path=%q,status=%q} %d\n", parts[0], parts[1], parts[2], v)
		}
	}
	if len(a.metrics.durSum) > 0 {
		io.WriteString(w, "# TYPE docrag_http_request_duration_seconds summary\n")
	}
	for key, sum := range a.metrics.durSum {
		cnt := a.metrics.durCount[key]
		parts := strings.Split(key, "|")
		if len(parts) == 2 {
			fmt.Fprintf(w, "docrag_http_request_duration_seconds_sum{method=%q,path=%q} %f\n", parts[0], parts[1], sum)
			fmt.Fprintf(w, "docrag_http_request_duration_seconds_count{method=%q,path=%q} %d\n", parts[0], parts[1], cnt)
		}
	}
	a.metrics.mu.Unlock()

	// build info
	io.WriteString(w, "# HELP docrag_build_info Build information.\n")
	io.WriteString(w, "# TYPE docrag_build_info gauge\n")
	fmt.Fprintf(w, "docrag_build_info{version=%q,commit=%q} 1\n", version.Version, version.Commit)
}
