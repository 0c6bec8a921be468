// Package searchstore defines the interface to the backing search index.
package searchstore

import (
	"context"

	"github.com/kxddry/wikirag/internal/domain"
)

// Storage persists vectorized chunks and supports weighted sparse search.
// Implementations are safe for concurrent use; connections are pooled at
// construction and reused across requests.
type Storage interface {
	// EnsureIndex creates the index with its fixed schema if it does not
	// exist yet. Idempotent: an existing index is left untouched.
	EnsureIndex(ctx context.Context) error

	// Ping reports whether the backing store is reachable.
	Ping(ctx context.Context) error

	// BulkIndex writes the chunks in one bulk operation. A rejected
	// document fails the whole call with domain.ErrBulkRejected and
	// per-document detail; documents accepted before the rejection stay
	// committed.
	BulkIndex(ctx context.Context, chunks []domain.Chunk) error

	// Search ranks indexed chunks against the query vector: each matching
	// token contributes query weight times stored weight, documents need
	// only match one token, and hits come back in descending aggregate
	// score truncated to topK.
	Search(ctx context.Context, vector domain.SparseVector, topK int) ([]domain.SearchHit, error)
}
