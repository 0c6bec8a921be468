package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kxddry/wikirag/internal/chunker"
	"github.com/kxddry/wikirag/internal/domain"
	"github.com/kxddry/wikirag/internal/generate"
	"github.com/kxddry/wikirag/internal/ingest"
	"github.com/kxddry/wikirag/internal/protocol"
	"github.com/kxddry/wikirag/internal/retrieval"
	"github.com/kxddry/wikirag/internal/searchstore"
	"github.com/kxddry/wikirag/internal/searchstore/memory"
	"github.com/kxddry/wikirag/internal/service"
)

// wordEncoder vectorizes by lowercased word so retrieval works end to end
// without a model backend.
type wordEncoder struct{ err error }

func (e wordEncoder) Encode(ctx context.Context, text string) (domain.SparseVector, error) {
	if e.err != nil {
		return nil, e.err
	}
	vec := domain.SparseVector{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(strings.ReplaceAll(w, ".", "_"), "?_,!")
		if w != "" {
			vec[w] = 1.0
		}
	}
	return vec, nil
}

type failingStore struct{ memory.Storage }

func (f *failingStore) Ping(ctx context.Context) error { return errors.New("down") }

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newTestAPI(t *testing.T, enc domain.Encoder, store searchstore.Storage, gen domain.Generator) *httptest.Server {
	t.Helper()
	searcher := retrieval.NewSearcher(store, 0, discard())
	orch := service.NewOrchestrator(enc, searcher, gen, discard())
	srv := httptest.NewServer(NewAPI(orch, store, discard()).Routes())
	t.Cleanup(srv.Close)
	return srv
}

// fakeOllama streams a fixed answer in NDJSON fragments.
func fakeOllama(t *testing.T, answer string) *generate.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for _, frag := range strings.SplitAfter(answer, " ") {
			rec, _ := json.Marshal(map[string]any{"response": frag, "done": false})
			w.Write(append(rec, '\n'))
		}
		io.WriteString(w, `{"response":"","done":true}`+"\n")
	}))
	t.Cleanup(srv.Close)
	return generate.NewClient(generate.Config{URL: srv.URL, Model: "gemma3"})
}

type staticGenerator struct{ text string }

func (g staticGenerator) Stream(ctx context.Context, prompt string, emit func(string) error) error {
	return emit(g.text)
}

func postQuery(t *testing.T, url, body string) *http.Response {
	t.Helper()
	resp, err := http.Post(url+"/query", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func TestQuery_MalformedJSON(t *testing.T) {
	srv := newTestAPI(t, wordEncoder{}, memory.NewStorage(), staticGenerator{})
	resp := postQuery(t, srv.URL, `{not json`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuery_EmptyUserQuery(t *testing.T) {
	srv := newTestAPI(t, wordEncoder{}, memory.NewStorage(), staticGenerator{})
	resp := postQuery(t, srv.URL, `{"user_query": "   "}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Contains(t, out["detail"], "user_query")
}

func TestQuery_NegativeTopK(t *testing.T) {
	srv := newTestAPI(t, wordEncoder{}, memory.NewStorage(), staticGenerator{})
	resp := postQuery(t, srv.URL, `{"user_query": "q", "top_k": -1}`)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestQuery_EncoderDownReturns503(t *testing.T) {
	srv := newTestAPI(t, wordEncoder{err: domain.ErrUpstreamUnavailable}, memory.NewStorage(), staticGenerator{})
	resp := postQuery(t, srv.URL, `{"user_query": "What is SPLADE?"}`)
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
}

func TestQuery_EndToEnd(t *testing.T) {
	store := memory.NewStorage()

	// ingest one page the way the indexer does
	pipeline := ingest.NewPipeline(wordEncoder{}, chunker.NewSplitter(500, 50), store,
		ingest.Config{BatchSize: 50, ReadyRetries: 1, ReadyBackoff: 1}, discard())
	report, err := pipeline.Run(context.Background(), fixedSource{docs: []domain.Document{
		{Title: "Foo", Content: "SPLADE is a sparse retrieval model.", URL: "https://scrapbox.io/wiki/Foo"},
		{Title: "Pasta", Content: "Boil water, add salt.", URL: "https://scrapbox.io/wiki/Pasta"},
	}})
	require.NoError(t, err)
	require.Equal(t, 2, report.Indexed)

	gen := fakeOllama(t, "SPLADE expands queries into weighted terms.")
	srv := newTestAPI(t, wordEncoder{}, store, gen)

	resp := postQuery(t, srv.URL, `{"user_query": "What is SPLADE?", "top_k": 3}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	var p protocol.Parser
	text, err := p.Feed(raw)
	require.NoError(t, err)
	meta, ok := p.Metadata()
	require.True(t, ok)
	require.NotEmpty(t, meta.Sources)
	assert.Equal(t, "Foo", meta.Sources[0].Title)
	assert.Equal(t, "https://scrapbox.io/wiki/Foo", meta.Sources[0].URL)
	assert.Equal(t, "SPLADE expands queries into weighted terms.", text)
}

func TestHealth_Connected(t *testing.T) {
	srv := newTestAPI(t, wordEncoder{}, memory.NewStorage(), staticGenerator{})
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "up", out["status"])
	assert.Equal(t, "connected", out["elasticsearch"])
}

func TestHealth_StoreDown(t *testing.T) {
	srv := newTestAPI(t, wordEncoder{}, &failingStore{}, staticGenerator{})
	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "up", out["status"])
	assert.Equal(t, "disconnected", out["elasticsearch"])
}

type fixedSource struct{ docs []domain.Document }

func (s fixedSource) Name() string                                  { return "fixture" }
func (s fixedSource) Documents() ([]domain.Document, []string, error) { return s.docs, nil, nil }
