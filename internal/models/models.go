package models

import "time"

// InputType tells the embedding provider how the text will be used.
// Document and query vectors share one embedding space.
type InputType string

const (
	InputDocument InputType = "document"
	InputQuery    InputType = "query"
)

// Chunk is a bounded piece of one source file produced by the chunker.
type Chunk struct {
	Content             string `json:"content"`
	SourceFile          string `json:"sourceFile"`
	Index               int    `json:"index"`
	TotalChunksInSource int    `json:"totalChunksInSource"`
}

// Record is a chunk with its embedding, ready to be stored.
type Record struct {
	Content     string
	Embedding   []float32
	Filename    string
	ChunkIndex  int
	TotalChunks int
}

// StoredRecord is one row of document_embeddings with the embedding decoded.
type StoredRecord struct {
	ID          int64     `json:"id"`
	Content     string    `json:"content"`
	Embedding   []float32 `json:"-"`
	Filename    string    `json:"filename"`
	ChunkIndex  int       `json:"chunkIndex"`
	TotalChunks int       `json:"totalChunks"`
	CreatedAt   time.Time `json:"createdAt"`
}

type SearchResult struct {
	Content    string  `json:"content"`
	Filename   string  `json:"filename"`
	ChunkIndex int     `json:"chunkIndex"`
	Similarity float64 `json:"similarity"`
}

// IngestStats are the aggregate counters of one ingestion run.
type IngestStats struct {
	RunID          string        `json:"runID"`
	TotalFiles     int           `json:"totalFiles"`
	TotalChunks    int           `json:"totalChunks"`
	ChunksEmbedded int           `json:"chunksEmbedded"`
	RecordsStored  int           `json:"recordsStored"`
	Batches        int           `json:"batches"`
	TokensUsed     int           `json:"tokensUsed"`
	Model          string        `json:"model,omitempty"`
	Duration       time.Duration `json:"durationNs"`
}

type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// IngestRun is the persisted summary of an ingestion run.
type IngestRun struct {
	ID         string      `json:"id"`
	Dir        string      `json:"dir"`
	Status     RunStatus   `json:"status"`
	Stats      IngestStats `json:"stats"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"startedAt"`
	FinishedAt *time.Time  `json:"finishedAt,omitempty"`
}
