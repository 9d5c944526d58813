package vectorstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"docrag/internal/errs"
	"docrag/internal/models"
	sqlitemig "docrag/internal/storage/sqlite"
)

// SQLiteVS keeps records in the document_embeddings table of a SQLite file.
type SQLiteVS struct {
	db  *sql.DB
	dim int
}

// OpenSQLite opens (or creates) the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string, dim int) (*SQLiteVS, error) {
	if dim <= 0 {
		return nil, errs.Inputf("store.open", "dimension must be positive, got %d", dim)
	}
	db, err := sqlitemig.Open(ctx, path)
	if err != nil {
		return nil, errs.Store("store.open", err)
	}
	return &SQLiteVS{db: db, dim: dim}, nil
}

// NewSQLite wraps an already opened database. Initialize must run before use.
func NewSQLite(db *sql.DB, dim int) *SQLiteVS { return &SQLiteVS{db: db, dim: dim} }

// DB exposes the underlying handle for maintenance and tests.
func (s *SQLiteVS) DB() *sql.DB { return s.db }

func (s *SQLiteVS) Dim() int { return s.dim }

func (s *SQLiteVS) Initialize(ctx context.Context) error {
	if s.db == nil {
		return errs.Store("store.init", fmt.Errorf("database not open"))
	}
	return errs.Store("store.init", sqlitemig.Migrator{}.Up(ctx, s.db))
}

func (s *SQLiteVS) InsertBatch(ctx context.Context, recs []models.Record) (int, error) {
	if err := checkDims("store.insert", recs, s.dim); err != nil {
		return 0, err
	}
	if err := s.Initialize(ctx); err != nil {
		return 0, err
	}
	if len(recs) == 0 {
		return 0, nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, errs.Store("store.insert", err)
	}
	defer func() { _ = tx.Rollback() }()
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO document_embeddings(content,embedding,filename,chunk_index,total_chunks,created_at) VALUES(?,?,?,?,?,?)`)
	if err != nil {
		return 0, errs.Store("store.insert", err)
	}
	defer stmt.Close()
	now := time.Now().UTC().Format(tsLayout)
	for _, r := range recs {
		if _, err := stmt.ExecContext(ctx, r.Content, EncodeVector(r.Embedding), r.Filename, r.ChunkIndex, r.TotalChunks, now); err != nil {
			return 0, errs.Store("store.insert", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errs.Store("store.insert", err)
	}
	return len(recs), nil
}

func (s *SQLiteVS) ScanAll(ctx context.Context) ([]models.StoredRecord, error) {
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,content,embedding,filename,chunk_index,total_chunks,created_at FROM document_embeddings ORDER BY id`)
	if err != nil {
		return nil, errs.Store("store.scan", err)
	}
	defer rows.Close()
	var out []models.StoredRecord
	for rows.Next() {
		var (
			rec     models.StoredRecord
			blob    []byte
			created sql.NullString
		)
		if err := rows.Scan(&rec.ID, &rec.Content, &blob, &rec.Filename, &rec.ChunkIndex, &rec.TotalChunks, &created); err != nil {
			return nil, errs.Store("store.scan", err)
		}
		vec, err := DecodeVector(blob, s.dim)
		if err != nil {
			return nil, errs.Corruptionf("store.scan", "record %d (%s#%d): %v", rec.ID, rec.Filename, rec.ChunkIndex, err)
		}
		rec.Embedding = vec
		rec.CreatedAt = parseTime(created.String)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Store("store.scan", err)
	}
	return out, nil
}

func (s *SQLiteVS) Stats(ctx context.Context) (StoreStats, error) {
	if err := s.Initialize(ctx); err != nil {
		return StoreStats{}, err
	}
	var st StoreStats
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(1), COUNT(DISTINCT filename) FROM document_embeddings`).Scan(&st.Records, &st.Files)
	if err != nil {
		return StoreStats{}, errs.Store("store.stats", err)
	}
	return st, nil
}

func (s *SQLiteVS) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteVS) CreateRun(ctx context.Context, run models.IngestRun) error {
	if err := s.Initialize(ctx); err != nil {
		return err
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO ingestion_runs(id,dir,status,started_at) VALUES(?,?,?,?)`,
		run.ID, run.Dir, string(run.Status), run.StartedAt.UTC().Format(tsLayout))
	return errs.Store("runs.create", err)
}

func (s *SQLiteVS) FinishRun(ctx context.Context, run models.IngestRun) error {
	finished := time.Now().UTC()
	if run.FinishedAt != nil {
		finished = run.FinishedAt.UTC()
	}
	st := run.Stats
	res, err := s.db.ExecContext(ctx, `UPDATE ingestion_runs SET status=?, total_files=?, total_chunks=?, chunks_embedded=?, records_stored=?, batches=?, tokens_used=?, model=?, error=?, finished_at=? WHERE id=?`,
		string(run.Status), st.TotalFiles, st.TotalChunks, st.ChunksEmbedded, st.RecordsStored, st.Batches, st.TokensUsed, st.Model, run.Error, finished.Format(tsLayout), run.ID)
	if err != nil {
		return errs.Store("runs.finish", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return errs.Store("runs.finish", errRunNotFound(run.ID))
	}
	return nil
}

// ListRuns returns the most recent runs first. limit <= 0 means 20.
func (s *SQLiteVS) ListRuns(ctx context.Context, limit int) ([]models.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	if err := s.Initialize(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,dir,status,total_files,total_chunks,chunks_embedded,records_stored,batches,tokens_used,model,error,started_at,finished_at FROM ingestion_runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, errs.Store("runs.list", err)
	}
	defer rows.Close()
	var out []models.IngestRun
	for rows.Next() {
		var (
			run                      models.IngestRun
			status                   string
			model, msg, started, fin sql.NullString
		)
		st := &run.Stats
		if err := rows.Scan(&run.ID, &run.Dir, &status, &st.TotalFiles, &st.TotalChunks, &st.ChunksEmbedded, &st.RecordsStored, &st.Batches, &st.TokensUsed, &model, &msg, &started, &fin); err != nil {
			return nil, errs.Store("runs.list", err)
		}
		run.Status = models.RunStatus(status)
		st.RunID = run.ID
		st.Model = model.String
		run.Error = msg.String
		run.StartedAt = parseTime(started.String)
		if fin.Valid && fin.String != "" {
			t := parseTime(fin.String)
			run.FinishedAt = &t
			st.Duration = t.Sub(run.StartedAt)
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errs.Store("runs.list", err)
	}
	return out, nil
}

// tsLayout has a fixed-width fraction so stored timestamps sort as text.
const tsLayout = "2006-01-02T15:04:05.000000000Z07:00"

var timeLayouts = []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"}

// parseTime accepts the formats written by this package and by SQLite's
// CURRENT_TIMESTAMP. Unparseable values yield the zero time.
func parseTime(s string) time.Time {
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}

func errRunNotFound(id string) error { return fmt.Errorf("run %s not found", id) }
