// Package elastic implements searchstore.Storage on Elasticsearch using the
// rank_features field type: every token of a chunk's sparse vector is its
// own rankable feature.
package elastic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"

	"github.com/kxddry/wikirag/internal/domain"
)

// DefaultIndex is the index name used when none is configured.
const DefaultIndex = "scrapbox-index"

// mapping is the fixed index schema. Creation is idempotent; re-running
// ingestion never redefines it.
const mapping = `{
  "mappings": {
    "properties": {
      "title": {"type": "text", "analyzer": "keyword"},
      "content": {"type": "text"},
      "url": {"type": "keyword"},
      "sparse_vector": {"type": "rank_features"},
      "chunk_id": {"type": "integer"}
    }
  }
}`

// Storage is an Elasticsearch-backed search store. The underlying client
// pools connections and is safe for concurrent use.
type Storage struct {
	es    *elasticsearch.Client
	index string
}

// Config configures the Elasticsearch storage.
type Config struct {
	URL   string
	Index string
}

// NewStorage builds a Storage over a pooled Elasticsearch client.
func NewStorage(cfg Config) (*Storage, error) {
	index := cfg.Index
	if index == "" {
		index = DefaultIndex
	}
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{cfg.URL},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	return &Storage{es: es, index: index}, nil
}

// EnsureIndex creates the index with the rank_features mapping unless it
// already exists.
func (s *Storage) EnsureIndex(ctx context.Context) error {
	res, err := s.es.Indices.Exists([]string{s.index}, s.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("check index %s: %w", s.index, err)
	}
	defer res.Body.Close()
	if res.StatusCode == 200 {
		return nil
	}
	if res.StatusCode != 404 {
		return fmt.Errorf("check index %s: unexpected status %s", s.index, res.Status())
	}

	created, err := s.es.Indices.Create(s.index,
		s.es.Indices.Create.WithBody(strings.NewReader(mapping)),
		s.es.Indices.Create.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("create index %s: %w", s.index, err)
	}
	defer created.Body.Close()
	if created.IsError() {
		return fmt.Errorf("create index %s: %s", s.index, created.Status())
	}
	return nil
}

// Ping reports store reachability.
func (s *Storage) Ping(ctx context.Context) error {
	res, err := s.es.Ping(s.es.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("ping elasticsearch: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("ping elasticsearch: %s", res.Status())
	}
	return nil
}

// indexedChunk is the document shape written to the index.
type indexedChunk struct {
	Title        string              `json:"title"`
	Content      string              `json:"content"`
	URL          string              `json:"url"`
	SparseVector domain.SparseVector `json:"sparse_vector"`
	ChunkID      int                 `json:"chunk_id"`
}

// BulkIndex writes the chunks in a single bulk request. Any rejected
// document fails the call with domain.ErrBulkRejected carrying per-document
// detail; earlier accepted documents stay committed.
func (s *Storage) BulkIndex(ctx context.Context, chunks []domain.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	body, err := bulkBody(chunks)
	if err != nil {
		return err
	}

	res, err := s.es.Bulk(bytes.NewReader(body),
		s.es.Bulk.WithIndex(s.index),
		s.es.Bulk.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("bulk index: %w", err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return fmt.Errorf("bulk index: %s: %w", res.Status(), domain.ErrBulkRejected)
	}

	var out struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Status int `json:"status"`
			Error  struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return fmt.Errorf("decode bulk response: %w", err)
	}
	if !out.Errors {
		return nil
	}

	var detail []string
	for i, item := range out.Items {
		for op, r := range item {
			if r.Status >= 300 {
				detail = append(detail, fmt.Sprintf("item %d (%s): %s: %s", i, op, r.Error.Type, r.Error.Reason))
			}
		}
	}
	return fmt.Errorf("bulk index rejected %d document(s): %s: %w",
		len(detail), strings.Join(detail, "; "), domain.ErrBulkRejected)
}

// bulkBody renders the newline-delimited bulk payload. Documents carry no
// explicit ID: re-ingesting appends new rows, a clean reload recreates the
// index.
func bulkBody(chunks []domain.Chunk) ([]byte, error) {
	var buf bytes.Buffer
	for _, ch := range chunks {
		buf.WriteString(`{"index":{}}`)
		buf.WriteByte('\n')
		doc, err := json.Marshal(indexedChunk{
			Title:        ch.ParentTitle,
			Content:      ch.Text,
			URL:          ch.ParentURL,
			SparseVector: ch.Vector,
			ChunkID:      ch.Index,
		})
		if err != nil {
			return nil, fmt.Errorf("marshal chunk %d of %q: %w", ch.Index, ch.ParentTitle, err)
		}
		buf.Write(doc)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// BuildQuery translates a sparse vector into the ranked search request: one
// rank_feature clause per token, boosted by the query weight, combined
// disjunctively so a document need only match one clause. Clauses are
// emitted in sorted token order so identical vectors yield identical
// request bodies.
func BuildQuery(vector domain.SparseVector, topK int) map[string]any {
	tokens := make([]string, 0, len(vector))
	for token := range vector {
		tokens = append(tokens, token)
	}
	sort.Strings(tokens)

	clauses := make([]map[string]any, 0, len(tokens))
	for _, token := range tokens {
		clauses = append(clauses, map[string]any{
			"rank_feature": map[string]any{
				"field": "sparse_vector." + token,
				"boost": vector[token],
			},
		})
	}
	return map[string]any{
		"query": map[string]any{
			"bool": map[string]any{"should": clauses},
		},
		"size": topK,
	}
}

// Search executes the rank-feature query and returns hits in descending
// score order.
func (s *Storage) Search(ctx context.Context, vector domain.SparseVector, topK int) ([]domain.SearchHit, error) {
	body, err := json.Marshal(BuildQuery(vector, topK))
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	res, err := s.es.Search(
		s.es.Search.WithContext(ctx),
		s.es.Search.WithIndex(s.index),
		s.es.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("search %s: %w", s.index, err)
	}
	defer res.Body.Close()
	if res.IsError() {
		return nil, fmt.Errorf("search %s: %s", s.index, res.Status())
	}

	var out struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					Title   string `json:"title"`
					Content string `json:"content"`
					URL     string `json:"url"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	hits := make([]domain.SearchHit, 0, len(out.Hits.Hits))
	for _, h := range out.Hits.Hits {
		hits = append(hits, domain.SearchHit{
			Title:   h.Source.Title,
			Content: h.Source.Content,
			URL:     h.Source.URL,
			Score:   h.Score,
		})
	}
	return hits, nil
}
