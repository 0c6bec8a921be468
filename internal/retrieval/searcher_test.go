package retrieval

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kxddry/wikirag/internal/domain"
)

type fakeStore struct {
	hits        []domain.SearchHit
	err         error
	searchCalls int
}

func (f *fakeStore) EnsureIndex(ctx context.Context) error { return nil }
func (f *fakeStore) Ping(ctx context.Context) error        { return nil }
func (f *fakeStore) BulkIndex(ctx context.Context, chunks []domain.Chunk) error {
	return nil
}

func (f *fakeStore) Search(ctx context.Context, vector domain.SparseVector, topK int) ([]domain.SearchHit, error) {
	f.searchCalls++
	if f.err != nil {
		return nil, f.err
	}
	return f.hits, nil
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func TestSearch_ReturnsHits(t *testing.T) {
	store := &fakeStore{hits: []domain.SearchHit{
		{Title: "Foo", Content: "text", URL: "u", Score: 2.5},
	}}
	s := NewSearcher(store, 0, discard())

	res := s.Search(context.Background(), domain.SparseVector{"splade": 1.0}, 5)
	assert.False(t, res.Degraded)
	require.Len(t, res.Hits, 1)
	assert.Equal(t, "Foo", res.Hits[0].Title)
}

func TestSearch_EmptyVectorSkipsStore(t *testing.T) {
	store := &fakeStore{}
	s := NewSearcher(store, 0, discard())

	res := s.Search(context.Background(), domain.SparseVector{}, 5)
	assert.False(t, res.Degraded)
	assert.Empty(t, res.Hits)
	assert.Zero(t, store.searchCalls)
}

func TestSearch_StoreFailureDegrades(t *testing.T) {
	store := &fakeStore{err: errors.New("connection refused")}
	s := NewSearcher(store, 0, discard())

	res := s.Search(context.Background(), domain.SparseVector{"splade": 1.0}, 5)
	assert.True(t, res.Degraded)
	assert.Empty(t, res.Hits)
	assert.Contains(t, res.Reason, "connection refused")
}

func TestResult_Sources(t *testing.T) {
	res := Result{Hits: []domain.SearchHit{
		{Title: "A", Content: "long content never exposed", URL: "ua", Score: 3},
		{Title: "B", Content: "more", URL: "ub", Score: 1},
	}}
	sources := res.Sources()
	require.Len(t, sources, 2)
	assert.Equal(t, domain.Source{Title: "A", URL: "ua", Score: 3}, sources[0])
	assert.Equal(t, domain.Source{Title: "B", URL: "ub", Score: 1}, sources[1])
}

func TestResult_SourcesEmptyNotNil(t *testing.T) {
	assert.NotNil(t, Result{}.Sources())
}
