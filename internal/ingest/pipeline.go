// Package ingest populates the search index from a document source:
// chunking, sparse vectorization and batched bulk writes, run as an
// offline, single-threaded batch job.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kxddry/wikirag/internal/domain"
	"github.com/kxddry/wikirag/internal/searchstore"
)

// DefaultBatchSize is the number of chunks flushed per bulk write.
const DefaultBatchSize = 50

// Defaults for the readiness gate run before any write.
const (
	DefaultReadyRetries = 10
	DefaultReadyBackoff = 3 * time.Second
)

// ErrStoreNotReady marks an exhausted readiness gate: the backing store
// never answered within the retry budget and the run performed no writes.
var ErrStoreNotReady = errors.New("search store not ready")

// BatchOutcome records one bulk flush.
type BatchOutcome struct {
	Size  int
	Error string
}

// Report accumulates the outcome of one ingestion run and is returned to
// the caller rather than only logged.
type Report struct {
	Documents int
	Chunks    int
	Indexed   int
	Warnings  []string
	Batches   []BatchOutcome
}

func (r *Report) warnf(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

// Pipeline wires chunking, encoding and bulk writes together.
type Pipeline struct {
	encoder      domain.Encoder
	chunker      domain.Chunker
	store        searchstore.Storage
	batchSize    int
	readyRetries int
	readyBackoff time.Duration
	log          *slog.Logger
}

// Config configures a Pipeline.
type Config struct {
	BatchSize    int
	ReadyRetries int
	ReadyBackoff time.Duration
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(encoder domain.Encoder, chunker domain.Chunker, store searchstore.Storage, cfg Config, log *slog.Logger) *Pipeline {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.ReadyRetries <= 0 {
		cfg.ReadyRetries = DefaultReadyRetries
	}
	if cfg.ReadyBackoff <= 0 {
		cfg.ReadyBackoff = DefaultReadyBackoff
	}
	return &Pipeline{
		encoder:      encoder,
		chunker:      chunker,
		store:        store,
		batchSize:    cfg.BatchSize,
		readyRetries: cfg.ReadyRetries,
		readyBackoff: cfg.ReadyBackoff,
		log:          log,
	}
}

// Run ingests every document of the source. The index is created if missing
// (idempotent), the store's liveness is gated with bounded retries before
// any write, and chunks are flushed in fixed-size batches. A rejected batch
// aborts the run fail-fast: earlier batches stay committed and the report
// records the failure. The report is returned alongside the error so
// callers see partial progress either way.
func (p *Pipeline) Run(ctx context.Context, src Source) (*Report, error) {
	report := &Report{}

	if err := p.store.EnsureIndex(ctx); err != nil {
		return report, fmt.Errorf("ensure index: %w", err)
	}
	if err := p.waitReady(ctx); err != nil {
		return report, err
	}

	docs, warnings, err := src.Documents()
	if err != nil {
		return report, fmt.Errorf("enumerate %s: %w", src.Name(), err)
	}
	report.Warnings = append(report.Warnings, warnings...)
	report.Documents = len(docs)

	var batch []domain.Chunk
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := p.store.BulkIndex(ctx, batch)
		outcome := BatchOutcome{Size: len(batch)}
		if err != nil {
			outcome.Error = err.Error()
			report.Batches = append(report.Batches, outcome)
			return fmt.Errorf("flush batch of %d: %w", len(batch), err)
		}
		report.Batches = append(report.Batches, outcome)
		report.Indexed += len(batch)
		p.log.Info("flushed batch", "chunks", len(batch), "indexed", report.Indexed)
		batch = batch[:0]
		return nil
	}

	for _, doc := range docs {
		chunks := p.chunker.Split(doc)
		report.Chunks += len(chunks)
		p.log.Info("processing document", "title", doc.Title, "chunks", len(chunks))

		for _, ch := range chunks {
			// the title prefix improves token relevance of the vector
			vec, err := p.encoder.Encode(ctx, doc.Title+"\n"+ch.Text)
			if err != nil {
				report.warnf("encode chunk %d of %q: %v", ch.Index, doc.Title, err)
				continue
			}
			if len(vec) == 0 {
				report.warnf("empty sparse vector for chunk %d of %q", ch.Index, doc.Title)
				continue
			}
			ch.Vector = vec
			batch = append(batch, ch)
			if len(batch) >= p.batchSize {
				if err := flush(); err != nil {
					return report, err
				}
			}
		}
	}

	if err := flush(); err != nil {
		return report, err
	}
	p.log.Info("ingestion finished",
		"documents", report.Documents,
		"chunks", report.Chunks,
		"indexed", report.Indexed,
		"warnings", len(report.Warnings),
	)
	return report, nil
}

// waitReady polls the store's liveness with a fixed backoff. Exhausting the
// retry budget is a fatal connectivity error; no writes have happened yet.
func (p *Pipeline) waitReady(ctx context.Context) error {
	var lastErr error
	for attempt := 1; attempt <= p.readyRetries; attempt++ {
		if lastErr = p.store.Ping(ctx); lastErr == nil {
			return nil
		}
		p.log.Warn("search store not ready", "attempt", attempt, "retries", p.readyRetries, "error", lastErr)
		if attempt == p.readyRetries {
			break
		}
		select {
		case <-time.After(p.readyBackoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w after %d attempts: %v", ErrStoreNotReady, p.readyRetries, lastErr)
}
