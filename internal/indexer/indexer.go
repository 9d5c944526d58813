package indexer

import (
	"crypto/sha256"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/bmatcuk/doublestar/v4"

	"docrag/internal/errs"
)

// DefaultPattern selects markdown files directly inside the directory.
const DefaultPattern = "*.md"

type FileDoc struct {
	Path    string // relative to the indexed dir, slash separated
	Content string
	SHA     string
	Size    int64
	MTime   time.Time
}

type Options struct {
	Pattern string   // doublestar glob relative to root; "**/*.md" recurses
	Exclude []string // doublestar globs relative to root
}

var defaultSkips = map[string]struct{}{
	".git": {}, "node_modules": {}, "vendor": {}, "dist": {}, "build": {}, ".next": {}, ".cache": {},
}

// Index lists the files of root matching opt.Pattern in path order and
// reads each one wholesale. A matched file that is not UTF-8 text fails the
// whole call.
func Index(root string, opt Options) ([]FileDoc, error) {
	if opt.Pattern == "" {
		opt.Pattern = DefaultPattern
	}
	if !doublestar.ValidatePattern(opt.Pattern) {
		return nil, errs.Inputf("index", "invalid pattern %q", opt.Pattern)
	}
	info, err := os.Stat(root)
	if err != nil {
		return nil, errs.Input("index", err)
	}
	if !info.IsDir() {
		return nil, errs.Inputf("index", "%s is not a directory", root)
	}

	matches, err := doublestar.Glob(os.DirFS(root), opt.Pattern)
	if err != nil {
		return nil, errs.Input("index", err)
	}
	sort.Strings(matches)

	var docs []FileDoc
	for _, rel := range matches {
		if skipped(rel) || (len(opt.Exclude) > 0 && matchAny(rel, opt.Exclude)) {
			continue
		}
		full := filepath.Join(root, filepath.FromSlash(rel))
		fi, err := os.Stat(full)
		if err != nil {
			return nil, errs.Input("index", err)
		}
		if fi.IsDir() {
			continue
		}
		b, err := os.ReadFile(full)
		if err != nil {
			return nil, errs.Input("index", err)
		}
		if looksBinary(b) || !utf8.Valid(b) {
			return nil, errs.Inputf("index", "%s is not a text file", rel)
		}
		docs = append(docs, FileDoc{
			Path:    rel,
			Content: string(b),
			SHA:     sha256Hex(b),
			Size:    fi.Size(),
			MTime:   fi.ModTime().UTC(),
		})
	}
	return docs, nil
}

// skipped reports whether rel lies under a vendored or VCS directory.
func skipped(rel string) bool {
	dir := path.Dir(rel)
	if dir == "." {
		return false
	}
	for _, seg := range strings.Split(dir, "/") {
		if _, ok := defaultSkips[seg]; ok {
			return true
		}
	}
	return false
}

func looksBinary(b []byte) bool {
	// Heuristic: reject if contains NUL byte in first 8000 bytes
	n := len(b)
	if n > 8000 {
		n = 8000
	}
	for i := 0; i < n; i++ {
		if b[i] == 0 {
			return true
		}
	}
	return false
}

func sha256Hex(b []byte) string {
	h := sha256.Sum256(b)
	return fmt.Sprintf("%x", h[:])
}

func matchAny(rel string, patterns []string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}
