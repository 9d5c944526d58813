package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// schema holds the statements of each schema version. Every statement is
// idempotent so a version can be re-applied safely.
var schema = map[int][]string{
	1: {
		`CREATE TABLE IF NOT EXISTS document_embeddings (
            id INTEGER PRIMARY KEY AUTOINCREMENT,
            content TEXT NOT NULL,
            embedding BLOB NOT NULL,
            filename TEXT NOT NULL,
            chunk_index INTEGER NOT NULL,
            total_chunks INTEGER NOT NULL,
            created_at DATETIME DEFAULT CURRENT_TIMESTAMP
        );`,
		`CREATE INDEX IF NOT EXISTS idx_filename ON document_embeddings(filename);`,
	},
	2: {
		// one row per ingestion run; counters mirror models.IngestStats
		`CREATE TABLE IF NOT EXISTS ingestion_runs (
            id TEXT PRIMARY KEY,
            dir TEXT NOT NULL,
            status TEXT NOT NULL,
            total_files INTEGER DEFAULT 0,
            total_chunks INTEGER DEFAULT 0,
            chunks_embedded INTEGER DEFAULT 0,
            records_stored INTEGER DEFAULT 0,
            batches INTEGER DEFAULT 0,
            tokens_used INTEGER DEFAULT 0,
            model TEXT,
            error TEXT,
            started_at TEXT NOT NULL,
            finished_at TEXT
        );`,
		`CREATE INDEX IF NOT EXISTS idx_ingestion_runs_started ON ingestion_runs(started_at);`,
	},
}

// Migrator creates the current schema if absent. It is cheap and safe to
// call before every write.
type Migrator struct{}

func (m Migrator) Up(ctx context.Context, db *sql.DB) error {
	for v := 1; v <= latestVersion; v++ {
		if err := applyVersion(ctx, db, v); err != nil {
			return err
		}
	}
	return nil
}

func applyVersion(ctx context.Context, db *sql.DB, v int) error {
	stmts, ok := schema[v]
	if !ok {
		return fmt.Errorf("unknown migration version %d", v)
	}
	for i, s := range stmts {
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("v%d step %d: %w", v, i, err)
		}
	}
	return nil
}

// Open opens (creating if needed) the SQLite file at path and brings its
// schema to the latest version. The pool is limited to one connection.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path required")
	}
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := (Manager{}).UpToLatest(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}
