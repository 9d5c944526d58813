package indexer

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docrag/internal/errs"
)

func write(t *testing.T, dir, rel string, b []byte) {
	t.Helper()
	p := filepath.Join(dir, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, os.WriteFile(p, b, 0o644))
}

func paths(docs []FileDoc) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.Path
	}
	return out
}

func TestIndexDefaultPatternIsFlatMarkdown(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "b.md", []byte("# b\n"))
	write(t, dir, "a.md", []byte("hello\nworld\n"))
	write(t, dir, "notes.txt", []byte("skip me"))
	write(t, dir, "sub/c.md", []byte("nested"))

	docs, err := Index(dir, Options{})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "b.md"}, paths(docs))
	assert.Equal(t, "hello\nworld\n", docs[0].Content)
	assert.Equal(t, int64(12), docs[0].Size)
	assert.Len(t, docs[0].SHA, 64)
	assert.False(t, docs[0].MTime.IsZero())
}

func TestIndexRecursivePatternAndExclude(t *testing.T) {
	dir := t.TempDir()
	write(t, dir, "a.md", []byte("a"))
	write(t, dir, "sub/c.md", []byte("c"))
	write(t, dir, "sub/deeper/d.md", []byte("d"))
	write(t, dir, "node_modules/pkg/readme.md", []byte("vendored"))
	write(t, dir, "drafts/x.md", []byte("draft"))

	docs, err := Index(dir, Options{Pattern: "**/*.md", Exclude: []string{"drafts/**"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a.md", "sub/c.md", "sub/deeper/d.md"}, paths(docs))
}

func TestIndexEmptyDir(t *testing.T) {
	docs, err := Index(t.TempDir(), Options{})
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestIndexInputErrors(t *testing.T) {
	_, err := Index(filepath.Join(t.TempDir(), "missing"), Options{})
	assert.True(t, errors.Is(err, errs.ErrInput))

	dir := t.TempDir()
	write(t, dir, "file.md", []byte("x"))
	_, err = Index(filepath.Join(dir, "file.md"), Options{})
	assert.True(t, errors.Is(err, errs.ErrInput))

	_, err = Index(dir, Options{Pattern: "[unclosed"})
	assert.True(t, errors.Is(err, errs.ErrInput))

	bin := t.TempDir()
	write(t, bin, "ok.md", []byte("fine"))
	write(t, bin, "bin.md", append([]byte{0, 1, 2}, 'x'))
	_, err = Index(bin, Options{})
	assert.True(t, errors.Is(err, errs.ErrInput))

	latin := t.TempDir()
	write(t, latin, "l.md", []byte{'c', 'a', 'f', 0xe9})
	_, err = Index(latin, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "l.md")
}
