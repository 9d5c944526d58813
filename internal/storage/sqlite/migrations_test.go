package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func countObjects(t *testing.T, db *sql.DB, typ, name string) int {
	t.Helper()
	var cnt int
	err := db.QueryRow(`SELECT COUNT(1) FROM sqlite_master WHERE type=? AND name=?`, typ, name).Scan(&cnt)
	require.NoError(t, err)
	return cnt
}

func TestMigrationsVersioningAndTables(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "mig.db"))
	require.NoError(t, err)
	defer db.Close()

	m := Manager{}
	require.NoError(t, m.UpToLatest(ctx, db))
	v, err := m.Version(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, latestVersion, v)

	assert.Equal(t, 1, countObjects(t, db, "table", "document_embeddings"))
	assert.Equal(t, 1, countObjects(t, db, "index", "idx_filename"))
	assert.Equal(t, 1, countObjects(t, db, "table", "ingestion_runs"))

	// down one then back up
	require.NoError(t, m.DownOne(ctx, db))
	assert.Equal(t, 0, countObjects(t, db, "table", "ingestion_runs"))
	assert.Equal(t, 1, countObjects(t, db, "table", "document_embeddings"))
	v, err = m.Version(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 1, v)

	// v1 is never dropped
	require.NoError(t, m.UpToLatest(ctx, db))
	require.NoError(t, m.DownOne(ctx, db))
	assert.Error(t, m.DownOne(ctx, db))
	assert.Equal(t, 1, countObjects(t, db, "table", "document_embeddings"))
}

func TestMigratorUpIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "idem.db"))
	require.NoError(t, err)
	defer db.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, Migrator{}.Up(ctx, db))
	}
	assert.Equal(t, 1, countObjects(t, db, "table", "document_embeddings"))
}

func TestOpenCreatesParentDirAndSchema(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "dir", "vectors.db")
	db, err := Open(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, 1, countObjects(t, db, "table", "document_embeddings"))
	v, err := Manager{}.Version(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, latestVersion, v)

	_, err = Open(ctx, "")
	assert.Error(t, err)
}
