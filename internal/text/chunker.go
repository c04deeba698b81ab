// Package text splits extracted page text into overlapping, bounded-size
// passages suitable for embedding. Every chunk is an exact substring of the
// input, so concatenating chunks with the overlap removed reconstructs the
// original page.
package text

import (
	"strings"
	"unicode/utf8"
)

const (
	DefaultChunkSize    = 600
	DefaultChunkOverlap = 100
)

// PageMeta is the provenance attached to every chunk of a page.
type PageMeta struct {
	Document string
	Page     int
}

// Chunk is a bounded passage of text traceable to one (document, page) pair.
type Chunk struct {
	Content  string
	Document string
	Page     int
}

// ChunkPage splits non-empty page text into chunks of at most size bytes,
// adjacent chunks overlapping by at most overlap bytes. Ordering within the
// page is preserved.
func ChunkPage(text string, meta PageMeta, size, overlap int) []Chunk {
	parts := Split(text, size, overlap)
	chunks := make([]Chunk, 0, len(parts))
	for _, p := range parts {
		chunks = append(chunks, Chunk{Content: p, Document: meta.Document, Page: meta.Page})
	}
	return chunks
}

// Split cuts text into passages of at most size bytes, preferring paragraph,
// then sentence, then word boundaries before a hard cut. Each passage after
// the first starts overlap bytes before the previous passage's end (less when
// the previous passage is too short to rewind into).
func Split(text string, size, overlap int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		return []string{text}
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	var chunks []string
	start, prevEnd := 0, 0
	for start < len(text) {
		if len(text)-start <= size {
			chunks = append(chunks, text[start:])
			break
		}

		// The cut must land past the previous chunk's end, otherwise a chunk
		// would be swallowed whole by its predecessor and reconstruction
		// would no longer hold.
		lo := start
		if prevEnd > lo {
			lo = prevEnd
		}
		cut := breakPoint(text, lo, start+size)

		chunks = append(chunks, text[start:cut])
		prevEnd = cut

		next := cut - overlap
		if next <= start {
			next = cut
		}
		start = next
	}
	return chunks
}

// breakPoint picks the end of the next chunk: the last natural boundary in
// (lo, hi], falling back to a hard cut at hi kept on a rune boundary.
func breakPoint(text string, lo, hi int) int {
	window := text[lo:hi]

	if i := strings.LastIndex(window, "\n\n"); i > 0 {
		return lo + i + 2
	}

	best := -1
	for _, sep := range []string{". ", ".\n", "! ", "!\n", "? ", "?\n"} {
		if i := strings.LastIndex(window, sep); i > best {
			best = i
		}
	}
	if best > 0 {
		return lo + best + 2
	}

	if i := strings.LastIndexAny(window, " \t\n"); i > 0 {
		return lo + i + 1
	}

	cut := hi
	for cut > lo && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == lo {
		cut = hi
	}
	return cut
}
