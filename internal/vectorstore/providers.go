package vectorstore

import (
	"context"
	"strings"

	"docrag/internal/config"
	"docrag/internal/errs"
)

// Open creates the VectorStore selected by DOCRAG_STORE.
// "sqlite" (default) uses DBPath; "memory" keeps everything in process.
func Open(ctx context.Context, s config.Settings) (VectorStore, error) {
	dim := s.Dimension
	if dim <= 0 {
		dim = config.DefaultDimension
	}
	switch strings.ToLower(strings.TrimSpace(s.Store)) {
	case "", "sqlite":
		return OpenSQLite(ctx, s.DBPath, dim)
	case "memory":
		return NewMemory(dim), nil
	default:
		return nil, errs.Inputf("store.open", "unknown store %q", s.Store)
	}
}
