package vectorstore

import (
	"context"

	"docrag/internal/models"
)

// StoreStats summarizes the store contents.
type StoreStats struct {
	Records int `json:"records"`
	Files   int `json:"files"`
}

// VectorStore persists chunk records with their embeddings and hands them
// back for exhaustive scoring.
type VectorStore interface {
	// Initialize creates the schema if absent. Safe to call repeatedly.
	Initialize(ctx context.Context) error
	// InsertBatch stores all records or none and returns how many were written.
	InsertBatch(ctx context.Context, recs []models.Record) (int, error)
	// ScanAll returns every record in insertion order with decoded embeddings.
	ScanAll(ctx context.Context) ([]models.StoredRecord, error)
	Stats(ctx context.Context) (StoreStats, error)
	Close() error
}

// RunRecorder is implemented by stores that keep a history of ingestion runs.
type RunRecorder interface {
	CreateRun(ctx context.Context, run models.IngestRun) error
	FinishRun(ctx context.Context, run models.IngestRun) error
	ListRuns(ctx context.Context, limit int) ([]models.IngestRun, error)
}
