// Package chunker splits document text into overlapping, word-bounded chunks.
//
// The splitter works on a character budget, not on tokens. Each word costs
// len(word)+1 (the join separator). A chunk is closed when the next word
// would push the running length past the size, so a chunk may end up a
// little longer than the size. The next chunk starts with the tail of the
// previous one: floor(overlap / averageWordLength) words.
package chunker

import (
	"strings"

	"docrag/internal/models"
)

const (
	DefaultSize    = 800
	DefaultOverlap = 200
)

// Split returns the ordered chunks of text. It never returns an empty slice:
// text without any words comes back verbatim as a single chunk.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	words := strings.Fields(text)

	var chunks []string
	var cur []string
	curLen := 0
	for _, w := range words {
		wl := len(w) + 1
		if curLen+wl > size && len(cur) > 0 {
			chunks = append(chunks, strings.Join(cur, " "))
			cur = tail(cur, retainCount(overlap, curLen, len(cur)))
			curLen = len(strings.Join(cur, " "))
		}
		cur = append(cur, w)
		curLen += wl
	}
	if len(cur) > 0 {
		chunks = append(chunks, strings.Join(cur, " "))
	}
	if len(chunks) == 0 {
		return []string{text}
	}
	return chunks
}

// retainCount is the number of trailing words carried into the next chunk.
// It is capped at n-1 so that every closed chunk advances through the text.
func retainCount(overlap, curLen, n int) int {
	if overlap == 0 || n == 0 || curLen == 0 {
		return 0
	}
	avg := float64(curLen) / float64(n)
	k := int(float64(overlap) / avg)
	if k >= n {
		k = n - 1
	}
	return k
}

// tail copies the last k words so the retained slice does not alias the
// closed chunk's backing array.
func tail(words []string, k int) []string {
	if k <= 0 {
		return nil
	}
	out := make([]string, k, k+64)
	copy(out, words[len(words)-k:])
	return out
}

// Document splits one source file and stamps chunk metadata.
func Document(sourceFile, text string, size, overlap int) []models.Chunk {
	parts := Split(text, size, overlap)
	out := make([]models.Chunk, len(parts))
	for i, p := range parts {
		out[i] = models.Chunk{
			Content:             p,
			SourceFile:          sourceFile,
			Index:               i,
			TotalChunksInSource: len(parts),
		}
	}
	return out
}
