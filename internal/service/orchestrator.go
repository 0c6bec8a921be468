// Package service sequences the query pipeline: vectorize, retrieve,
// prompt, stream.
package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/kxddry/wikirag/internal/domain"
	"github.com/kxddry/wikirag/internal/prompt"
	"github.com/kxddry/wikirag/internal/protocol"
	"github.com/kxddry/wikirag/internal/retrieval"
)

// DefaultTopK is the number of chunks retrieved when the request does not
// say otherwise.
const DefaultTopK = 5

// Orchestrator owns the lifecycle of one query request. Per-request state
// stays on the stack; the held clients are pooled, read-only and safe for
// concurrent use.
type Orchestrator struct {
	encoder   domain.Encoder
	searcher  *retrieval.Searcher
	generator domain.Generator
	log       *slog.Logger
}

// NewOrchestrator wires the pipeline stages together.
func NewOrchestrator(encoder domain.Encoder, searcher *retrieval.Searcher, generator domain.Generator, log *slog.Logger) *Orchestrator {
	return &Orchestrator{encoder: encoder, searcher: searcher, generator: generator, log: log}
}

// Answer runs the pipeline for one query and streams the response to w.
// Nothing is written before vectorization succeeds, so an encoder failure
// returns domain.ErrUpstreamUnavailable with the stream still unopened.
// Retrieval failure degrades to empty context and proceeds. Once the
// metadata frame is flushed it cannot be retracted: a generator failure
// mid-stream is appended as an inline error fragment instead.
func (o *Orchestrator) Answer(ctx context.Context, q domain.Query, w io.Writer) error {
	if q.TopK <= 0 {
		q.TopK = DefaultTopK
	}

	vector, err := o.encoder.Encode(ctx, q.Text)
	if err != nil {
		return fmt.Errorf("vectorize query: %w", err)
	}
	o.log.Info("query vectorized", "terms", len(vector), "top_k", q.TopK)

	result := o.searcher.Search(ctx, vector, q.TopK)
	instructions := prompt.Build(q.Text, result.Hits)

	if err := protocol.WriteMetadata(w, result.Sources()); err != nil {
		return err
	}
	flush(w)

	err = o.generator.Stream(ctx, instructions, func(fragment string) error {
		if _, err := io.WriteString(w, fragment); err != nil {
			return err
		}
		flush(w)
		return nil
	})
	if err != nil {
		o.log.Error("generation interrupted", "error", err)
		// the stream is already open; surface the failure inline
		io.WriteString(w, "\n[Error: 回答の生成に失敗しました。生成サービスに接続できません。]")
		flush(w)
	}
	return nil
}

func flush(w io.Writer) {
	if f, ok := w.(http.Flusher); ok {
		f.Flush()
	}
}
