// Package retrieval fetches ranked context for a query vector. Retrieval
// failure degrades to empty context instead of failing the request, and the
// result value makes "zero matches" and "backend failure" distinguishable.
package retrieval

import (
	"context"
	"log/slog"
	"time"

	"github.com/kxddry/wikirag/internal/domain"
	"github.com/kxddry/wikirag/internal/searchstore"
)

// DefaultTimeout bounds index queries on the request path.
const DefaultTimeout = 10 * time.Second

// Result is the outcome of one retrieval. Degraded marks a transport or
// backend failure; Hits may legitimately be empty without degradation when
// nothing matched or the query vector was empty.
type Result struct {
	Hits     []domain.SearchHit
	Degraded bool
	Reason   string
}

// Sources projects the hits into the response-facing metadata shape.
func (r Result) Sources() []domain.Source {
	sources := make([]domain.Source, 0, len(r.Hits))
	for _, h := range r.Hits {
		sources = append(sources, domain.Source{Title: h.Title, URL: h.URL, Score: h.Score})
	}
	return sources
}

// Searcher ranks stored chunks against sparse query vectors.
type Searcher struct {
	store   searchstore.Storage
	timeout time.Duration
	log     *slog.Logger
}

// NewSearcher creates a Searcher over the given store.
func NewSearcher(store searchstore.Storage, timeout time.Duration, log *slog.Logger) *Searcher {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Searcher{store: store, timeout: timeout, log: log}
}

// Search retrieves up to topK hits for the vector. An empty vector
// short-circuits to an empty result without touching the store. Store
// failures are logged and returned as a degraded result.
func (s *Searcher) Search(ctx context.Context, vector domain.SparseVector, topK int) Result {
	if len(vector) == 0 {
		return Result{}
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	hits, err := s.store.Search(ctx, vector, topK)
	if err != nil {
		s.log.Warn("search degraded, proceeding without context", "error", err)
		return Result{Degraded: true, Reason: err.Error()}
	}
	return Result{Hits: hits}
}
