package domain

// Document represents a single wiki page loaded from a source.
// It is the source of truth for one page and is never mutated after load.
type Document struct {
	Title   string `json:"title"`
	Content string `json:"content"`
	URL     string `json:"url"`
}

// Chunk is a bounded contiguous slice of a document's content, the unit of
// vectorization and indexing. Index is 0-based and sequential within the
// parent document. ParentURL carries the parent page's URL so a chunk can be
// written to the index without looking the document up again.
type Chunk struct {
	ParentTitle string
	ParentURL   string
	Index       int
	Text        string
	Vector      SparseVector
}

// SparseVector maps sanitized vocabulary tokens to positive importance
// weights. Entries with zero or negative weight must never be stored; token
// keys never contain '.' (reserved by the index field-naming scheme).
type SparseVector map[string]float64

// SearchHit is one ranked retrieval result. Score is the aggregate
// rank-feature value, not a probability.
type SearchHit struct {
	Title   string  `json:"title"`
	Content string  `json:"content"`
	URL     string  `json:"url"`
	Score   float64 `json:"score"`
}

// Source is the response-facing projection of a SearchHit carried in the
// metadata frame of the streaming protocol.
type Source struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// Query is one user request against the pipeline.
type Query struct {
	Text string
	TopK int
}
