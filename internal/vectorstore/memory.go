package vectorstore

import (
	"context"
	"sort"
	"sync"
	"time"

	"docrag/internal/errs"
	"docrag/internal/models"
)

type memRow struct {
	id          int64
	content     string
	blob        []byte
	filename    string
	chunkIndex  int
	totalChunks int
	createdAt   time.Time
}

// Memory is an in-process store. Embeddings go through the same codec as
// SQLiteVS so both stores behave alike on decode.
type Memory struct {
	mu     sync.RWMutex
	dim    int
	nextID int64
	rows   []memRow
	runs   map[string]models.IngestRun
}

func NewMemory(dim int) *Memory {
	return &Memory{dim: dim, runs: make(map[string]models.IngestRun)}
}

func (m *Memory) Initialize(ctx context.Context) error { return nil }

func (m *Memory) InsertBatch(ctx context.Context, recs []models.Record) (int, error) {
	if err := checkDims("store.insert", recs, m.dim); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, errs.Store("store.insert", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	for _, r := range recs {
		m.nextID++
		m.rows = append(m.rows, memRow{
			id: m.nextID, content: r.Content, blob: EncodeVector(r.Embedding),
			filename: r.Filename, chunkIndex: r.ChunkIndex, totalChunks: r.TotalChunks, createdAt: now,
		})
	}
	return len(recs), nil
}

func (m *Memory) ScanAll(ctx context.Context) ([]models.StoredRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.StoredRecord, 0, len(m.rows))
	for _, r := range m.rows {
		vec, err := DecodeVector(r.blob, m.dim)
		if err != nil {
			return nil, errs.Corruptionf("store.scan", "record %d (%s#%d): %v", r.id, r.filename, r.chunkIndex, err)
		}
		out = append(out, models.StoredRecord{
			ID: r.id, Content: r.content, Embedding: vec, Filename: r.filename,
			ChunkIndex: r.chunkIndex, TotalChunks: r.totalChunks, CreatedAt: r.createdAt,
		})
	}
	return out, nil
}

func (m *Memory) Stats(ctx context.Context) (StoreStats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	files := make(map[string]struct{})
	for _, r := range m.rows {
		files[r.filename] = struct{}{}
	}
	return StoreStats{Records: len(m.rows), Files: len(files)}, nil
}

func (m *Memory) Close() error { return nil }

// Corrupt replaces the stored blob of record id. Used to exercise corruption handling.
func (m *Memory) Corrupt(id int64, blob []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if m.rows[i].id == id {
			m.rows[i].blob = blob
			return true
		}
	}
	return false
}

func (m *Memory) CreateRun(ctx context.Context, run models.IngestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) FinishRun(ctx context.Context, run models.IngestRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	prev, ok := m.runs[run.ID]
	if !ok {
		return errs.Store("runs.finish", errRunNotFound(run.ID))
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = prev.StartedAt
	}
	if run.FinishedAt == nil {
		now := time.Now().UTC()
		run.FinishedAt = &now
	}
	m.runs[run.ID] = run
	return nil
}

func (m *Memory) ListRuns(ctx context.Context, limit int) ([]models.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]models.IngestRun, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].StartedAt.Equal(out[j].StartedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].StartedAt.After(out[j].StartedAt)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
