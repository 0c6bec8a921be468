// Package chunker splits document content into bounded chunks along an
// ordered preference list of boundaries.
package chunker

import (
	"strings"

	"github.com/kxddry/wikirag/internal/domain"
)

// DefaultChunkSize is the target chunk length in runes.
const DefaultChunkSize = 500

// DefaultOverlap is the number of runes carried over between chunks.
const DefaultOverlap = 50

// separators, in priority order: paragraph break, line break, Japanese
// sentence and clause terminators, whitespace. Raw character cut is the
// final fallback when none is available within the window.
var separators = []string{"\n\n", "\n", "。", "、", " "}

// Splitter cuts text into chunks of at most the target size, preferring the
// highest-priority boundary available within the budget. Splitting is
// deterministic: identical content yields identical chunks on every run.
type Splitter struct {
	chunkSize int
	overlap   int
}

// NewSplitter creates a Splitter. Non-positive size falls back to the
// default; overlap is clamped below the chunk size so every step makes
// progress.
func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{chunkSize: chunkSize, overlap: overlap}
}

// Split implements domain.Chunker. Chunk indices are 0-based and sequential
// within the document; whitespace-only pieces are discarded.
func (s *Splitter) Split(doc domain.Document) []domain.Chunk {
	runes := []rune(doc.Content)
	var chunks []domain.Chunk

	start := 0
	for start < len(runes) {
		end := start + s.chunkSize
		if end >= len(runes) {
			end = len(runes)
		}
		cut := end
		if end < len(runes) {
			cut = s.boundary(runes, start, end)
		}

		text := strings.TrimSpace(string(runes[start:cut]))
		if text != "" {
			chunks = append(chunks, domain.Chunk{
				ParentTitle: doc.Title,
				ParentURL:   doc.URL,
				Index:       len(chunks),
				Text:        text,
			})
		}

		if cut >= len(runes) {
			break
		}
		next := cut - s.overlap
		if next <= start {
			// overlap would stall the walk; resume at the cut
			next = cut
		}
		start = next
	}
	return chunks
}

// boundary returns the cut position in (start, end] after the latest
// occurrence of the highest-priority separator found inside the window.
// When no separator fits, the raw window end is the cut.
func (s *Splitter) boundary(runes []rune, start, end int) int {
	window := string(runes[start:end])
	for _, sep := range separators {
		idx := strings.LastIndex(window, sep)
		if idx <= 0 {
			continue
		}
		return start + len([]rune(window[:idx])) + len([]rune(sep))
	}
	return end
}
