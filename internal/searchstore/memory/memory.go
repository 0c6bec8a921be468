// Package memory is an in-process searchstore.Storage used in tests and
// small local setups. It scores with the same rule the rank-feature query
// documents: sum of query weight times stored weight over matching tokens.
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/kxddry/wikirag/internal/domain"
)

// Storage keeps indexed chunks in memory.
type Storage struct {
	mu      sync.RWMutex
	created bool
	chunks  []domain.Chunk
}

// NewStorage creates an empty in-memory store.
func NewStorage() *Storage { return &Storage{} }

// EnsureIndex marks the index as created. Idempotent; existing contents are
// left untouched.
func (s *Storage) EnsureIndex(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = true
	return nil
}

// Ping always succeeds.
func (s *Storage) Ping(ctx context.Context) error { return nil }

// BulkIndex appends the chunks.
func (s *Storage) BulkIndex(ctx context.Context, chunks []domain.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = append(s.chunks, chunks...)
	return nil
}

// Len reports how many chunks are indexed.
func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Search ranks chunks by the sum of query weight times stored weight over
// tokens present in both vectors. Only chunks matching at least one token
// are returned; ties keep insertion order.
func (s *Storage) Search(ctx context.Context, vector domain.SparseVector, topK int) ([]domain.SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var hits []domain.SearchHit
	for _, ch := range s.chunks {
		score := 0.0
		matched := false
		for token, weight := range vector {
			if stored, ok := ch.Vector[token]; ok {
				score += weight * stored
				matched = true
			}
		}
		if !matched {
			continue
		}
		hits = append(hits, domain.SearchHit{
			Title:   ch.ParentTitle,
			Content: ch.Text,
			URL:     ch.ParentURL,
			Score:   score,
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if topK > 0 && topK < len(hits) {
		hits = hits[:topK]
	}
	return hits, nil
}
