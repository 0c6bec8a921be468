package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kxddry/wikirag/internal/domain"
	"github.com/kxddry/wikirag/internal/protocol"
	"github.com/kxddry/wikirag/internal/retrieval"
)

type fakeEncoder struct {
	vec domain.SparseVector
	err error
}

func (f fakeEncoder) Encode(ctx context.Context, text string) (domain.SparseVector, error) {
	return f.vec, f.err
}

type fakeStore struct {
	hits        []domain.SearchHit
	err         error
	searchCalls int
}

func (f *fakeStore) EnsureIndex(ctx context.Context) error                      { return nil }
func (f *fakeStore) Ping(ctx context.Context) error                             { return nil }
func (f *fakeStore) BulkIndex(ctx context.Context, chunks []domain.Chunk) error { return nil }
func (f *fakeStore) Search(ctx context.Context, vector domain.SparseVector, topK int) ([]domain.SearchHit, error) {
	f.searchCalls++
	return f.hits, f.err
}

type fakeGenerator struct {
	fragments []string
	err       error
	prompt    string
}

func (f *fakeGenerator) Stream(ctx context.Context, prompt string, emit func(string) error) error {
	f.prompt = prompt
	for _, frag := range f.fragments {
		if err := emit(frag); err != nil {
			return err
		}
	}
	return f.err
}

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newOrchestrator(enc domain.Encoder, store *fakeStore, gen *fakeGenerator) *Orchestrator {
	searcher := retrieval.NewSearcher(store, 0, discard())
	return NewOrchestrator(enc, searcher, gen, discard())
}

func parse(t *testing.T, raw []byte) (*protocol.Metadata, string) {
	t.Helper()
	var p protocol.Parser
	text, err := p.Feed(raw)
	require.NoError(t, err)
	meta, ok := p.Metadata()
	require.True(t, ok, "stream must open with a metadata frame")
	return meta, text
}

func TestAnswer_StreamsMetadataThenText(t *testing.T) {
	store := &fakeStore{hits: []domain.SearchHit{
		{Title: "Foo", Content: "SPLADE is a sparse retrieval model.", URL: "https://scrapbox.io/wiki/Foo", Score: 2.5},
	}}
	gen := &fakeGenerator{fragments: []string{"SPLADE is ", "a sparse retrieval model."}}
	o := newOrchestrator(fakeEncoder{vec: domain.SparseVector{"splade": 1.0}}, store, gen)

	var buf bytes.Buffer
	require.NoError(t, o.Answer(context.Background(), domain.Query{Text: "What is SPLADE?"}, &buf))

	meta, text := parse(t, buf.Bytes())
	require.Len(t, meta.Sources, 1)
	assert.Equal(t, "Foo", meta.Sources[0].Title)
	assert.Equal(t, "https://scrapbox.io/wiki/Foo", meta.Sources[0].URL)
	assert.Equal(t, "SPLADE is a sparse retrieval model.", text)

	assert.Contains(t, gen.prompt, "What is SPLADE?")
	assert.Contains(t, gen.prompt, "SPLADE is a sparse retrieval model.")
}

func TestAnswer_EncoderFailureWritesNothing(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{}
	o := newOrchestrator(fakeEncoder{err: domain.ErrUpstreamUnavailable}, store, gen)

	var buf bytes.Buffer
	err := o.Answer(context.Background(), domain.Query{Text: "q"}, &buf)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Zero(t, buf.Len())
	assert.Zero(t, store.searchCalls)
}

func TestAnswer_DegradedRetrievalProceedsWithoutContext(t *testing.T) {
	store := &fakeStore{err: errors.New("index unreachable")}
	gen := &fakeGenerator{fragments: []string{"general answer"}}
	o := newOrchestrator(fakeEncoder{vec: domain.SparseVector{"splade": 1.0}}, store, gen)

	var buf bytes.Buffer
	require.NoError(t, o.Answer(context.Background(), domain.Query{Text: "q"}, &buf))

	meta, text := parse(t, buf.Bytes())
	assert.Empty(t, meta.Sources)
	assert.Equal(t, "general answer", text)
	assert.Contains(t, gen.prompt, "関連する情報がナレッジベースで見つかりませんでした")
}

func TestAnswer_EmptyVectorSkipsRetrieval(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{fragments: []string{"answer"}}
	o := newOrchestrator(fakeEncoder{vec: domain.SparseVector{}}, store, gen)

	var buf bytes.Buffer
	require.NoError(t, o.Answer(context.Background(), domain.Query{Text: "q"}, &buf))
	assert.Zero(t, store.searchCalls)
}

func TestAnswer_GeneratorFailureAppendsInlineError(t *testing.T) {
	store := &fakeStore{}
	gen := &fakeGenerator{fragments: []string{"partial "}, err: domain.ErrUpstreamUnavailable}
	o := newOrchestrator(fakeEncoder{vec: domain.SparseVector{"splade": 1.0}}, store, gen)

	var buf bytes.Buffer
	// the stream already opened, so the call itself succeeds
	require.NoError(t, o.Answer(context.Background(), domain.Query{Text: "q"}, &buf))

	_, text := parse(t, buf.Bytes())
	assert.Contains(t, text, "partial ")
	assert.Contains(t, text, "[Error: 回答の生成に失敗しました。生成サービスに接続できません。]")
}

func TestAnswer_DefaultsTopK(t *testing.T) {
	var gotTopK int
	searcher := retrieval.NewSearcher(topKRecorder{&gotTopK}, 0, discard())
	o := NewOrchestrator(fakeEncoder{vec: domain.SparseVector{"t": 1.0}}, searcher, &fakeGenerator{}, discard())

	var buf bytes.Buffer
	require.NoError(t, o.Answer(context.Background(), domain.Query{Text: "q"}, &buf))
	assert.Equal(t, DefaultTopK, gotTopK)
}

type topKRecorder struct{ topK *int }

func (r topKRecorder) EnsureIndex(ctx context.Context) error                      { return nil }
func (r topKRecorder) Ping(ctx context.Context) error                             { return nil }
func (r topKRecorder) BulkIndex(ctx context.Context, chunks []domain.Chunk) error { return nil }
func (r topKRecorder) Search(ctx context.Context, vector domain.SparseVector, topK int) ([]domain.SearchHit, error) {
	*r.topK = topK
	return nil, nil
}
