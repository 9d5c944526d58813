package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// KnownKeys defines environment variable keys that docrag recognizes.
var KnownKeys = []string{
	"DOCRAG_DB_PATH",
	"DOCRAG_STORE",
	"DOCRAG_DOCS_DIR",
	"DOCRAG_DOCS_PATTERN",
	"DOCRAG_CHUNK_SIZE",
	"DOCRAG_CHUNK_OVERLAP",
	"DOCRAG_EMBED_BATCH",
	"DOCRAG_EMBED_DIM",
	"DOCRAG_EMBED_PROVIDER",
	"DOCRAG_EMBED_MODEL",
	"DOCRAG_EMBED_MIN_INTERVAL_MS",
	"DOCRAG_VOYAGE_BASE_URL",
	"VOYAGE_API_KEY",
	"DOCRAG_OPENAI_BASE_URL",
	"DOCRAG_OPENAI_API_KEY",
	"DOCRAG_TOP_K",
	"DOCRAG_SERVER_ADDR",
	"DOCRAG_LOG_LEVEL",
}

// Settings is the resolved runtime configuration. Dimension is the single
// embedding dimension shared by the embedder, the store and the ranker.
type Settings struct {
	DBPath           string
	Store            string
	DocsDir          string
	DocsPattern      string
	ChunkSize        int
	ChunkOverlap     int
	BatchSize        int
	Dimension        int
	EmbedProvider    string
	EmbedModel       string
	EmbedMinInterval time.Duration
	VoyageBaseURL    string
	VoyageAPIKey     string
	OpenAIBaseURL    string
	OpenAIAPIKey     string
	TopK             int
	ServerAddr       string
	LogLevel         string
}

const (
	DefaultDimension = 1024
	DefaultBatchSize = 128
	DefaultTopK      = 5
)

// Defaults returns the settings used when nothing is configured.
func Defaults() Settings {
	return Settings{
		DBPath:        "vectors.db",
		Store:         "sqlite",
		DocsDir:       "documents",
		DocsPattern:   "*.md",
		ChunkSize:     800,
		ChunkOverlap:  200,
		BatchSize:     DefaultBatchSize,
		Dimension:     DefaultDimension,
		EmbedProvider: "voyage",
		VoyageBaseURL: "https://api.voyageai.com/v1",
		OpenAIBaseURL: "https://api.openai.com/v1",
		TopK:          DefaultTopK,
		ServerAddr:    ":8089",
		LogLevel:      "info",
	}
}

// Load applies .env and the user config file to the environment (without
// overriding variables that are already set) and resolves Settings.
func Load() (Settings, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return Settings{}, fmt.Errorf("load .env: %w", err)
	}
	if err := LoadAndApply(); err != nil {
		return Settings{}, err
	}
	return FromEnv()
}

// FromEnv resolves Settings from the process environment only.
func FromEnv() (Settings, error) {
	s := Defaults()
	str := func(key string, dst *string) {
		if v := strings.TrimSpace(os.Getenv(key)); v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *int, min int) {
		v := strings.TrimSpace(os.Getenv(key))
		if v == "" {
			return
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < min {
			errs = append(errs, fmt.Errorf("%s: want integer >= %d, got %q", key, min, v))
			return
		}
		*dst = n
	}
	str("DOCRAG_DB_PATH", &s.DBPath)
	str("DOCRAG_STORE", &s.Store)
	str("DOCRAG_DOCS_DIR", &s.DocsDir)
	str("DOCRAG_DOCS_PATTERN", &s.DocsPattern)
	num("DOCRAG_CHUNK_SIZE", &s.ChunkSize, 1)
	num("DOCRAG_CHUNK_OVERLAP", &s.ChunkOverlap, 0)
	num("DOCRAG_EMBED_BATCH", &s.BatchSize, 1)
	num("DOCRAG_EMBED_DIM", &s.Dimension, 1)
	num("DOCRAG_TOP_K", &s.TopK, 1)
	str("DOCRAG_EMBED_PROVIDER", &s.EmbedProvider)
	str("DOCRAG_EMBED_MODEL", &s.EmbedModel)
	str("DOCRAG_VOYAGE_BASE_URL", &s.VoyageBaseURL)
	str("VOYAGE_API_KEY", &s.VoyageAPIKey)
	str("DOCRAG_OPENAI_BASE_URL", &s.OpenAIBaseURL)
	str("OPENAI_API_KEY", &s.OpenAIAPIKey)
	str("DOCRAG_OPENAI_API_KEY", &s.OpenAIAPIKey)
	str("DOCRAG_SERVER_ADDR", &s.ServerAddr)
	str("DOCRAG_LOG_LEVEL", &s.LogLevel)
	var gapMS int
	num("DOCRAG_EMBED_MIN_INTERVAL_MS", &gapMS, 0)
	s.EmbedMinInterval = time.Duration(gapMS) * time.Millisecond

	s.Store = strings.ToLower(s.Store)
	s.EmbedProvider = strings.ToLower(s.EmbedProvider)
	if s.EmbedModel == "" {
		s.EmbedModel = DefaultModel(s.EmbedProvider)
	}
	if len(errs) > 0 {
		return s, errors.Join(errs...)
	}
	return s, nil
}

// DefaultModel returns the embedding model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case "openai":
		return "text-embedding-3-small"
	case "fake":
		return "fake-hash-v1"
	default:
		return "voyage-3-large"
	}
}

// LoadAndApply loads configuration from ~/.docrag/config.yaml (or .yml/.json)
// and applies values into the process environment for known keys if they are
// not already set. Environment variables take precedence over file values.
func LoadAndApply() error {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return nil // non-fatal
	}
	return ApplyFile(filepath.Join(home, ".docrag"))
}

// ApplyFile applies the first config file found in dir.
func ApplyFile(dir string) error {
	paths := []string{
		filepath.Join(dir, "config.yaml"),
		filepath.Join(dir, "config.yml"),
		filepath.Join(dir, "config.json"),
	}
	var data map[string]any
	for _, p := range paths {
		b, err := os.ReadFile(p)
		if err != nil {
			continue
		}
		m, err := parseFile(p, b)
		if err != nil {
			return fmt.Errorf("config %s: %w", p, err)
		}
		data = m
		break
	}
	if len(data) == 0 {
		return nil
	}
	for _, key := range KnownKeys {
		if os.Getenv(key) != "" {
			continue
		}
		if v, ok := lookupInsensitive(data, key); ok {
			if err := os.Setenv(key, toString(v)); err != nil {
				return err
			}
		}
	}
	return nil
}

func parseFile(path string, b []byte) (map[string]any, error) {
	m := make(map[string]any)
	if strings.HasSuffix(path, ".json") {
		if err := json.Unmarshal(b, &m); err != nil {
			return nil, err
		}
		return m, nil
	}
	if err := yaml.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	return m, nil
}

func lookupInsensitive(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok {
		return v, true
	}
	// allow lower/upper keys
	for k, v := range m {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func toString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case float64:
		// avoid trailing .0 for integer-like values
		if t == float64(int64(t)) {
			return strconv.FormatInt(int64(t), 10)
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}
