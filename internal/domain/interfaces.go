package domain

import "context"

// Encoder converts free text into a weighted sparse term vector.
type Encoder interface {
	Encode(ctx context.Context, text string) (SparseVector, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
// Splitting must be deterministic: identical content yields identical
// chunk boundaries, count and ordering on every run.
type Chunker interface {
	Split(document Document) []Chunk
}

// Generator streams incremental text from the generation backend. emit is
// called once per fragment in arrival order; a non-nil return from emit
// stops the stream and is returned unchanged.
type Generator interface {
	Stream(ctx context.Context, prompt string, emit func(fragment string) error) error
}
