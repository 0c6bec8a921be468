package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/kxddry/wikirag/internal/chunker"
	"github.com/kxddry/wikirag/internal/config"
	"github.com/kxddry/wikirag/internal/encoder"
	"github.com/kxddry/wikirag/internal/ingest"
	"github.com/kxddry/wikirag/internal/searchstore/elastic"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "Path to config YAML")
	file := flag.String("file", "", "Path to Scrapbox JSON export file")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	if *file == "" {
		fmt.Println("Usage: indexer [--config=config.yaml] --file=export.json")
		os.Exit(1)
	}

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	store, err := elastic.NewStorage(elastic.Config{
		URL:   cfg.Elasticsearch.URL,
		Index: cfg.Elasticsearch.Index,
	})
	if err != nil {
		log.Error("failed to connect search store", "error", err)
		os.Exit(1)
	}

	enc := encoder.NewClient(encoder.Config{
		URL:     cfg.Encoder.URL,
		Timeout: time.Duration(cfg.Encoder.IngestTimeoutSecs) * time.Second,
	})
	splitter := chunker.NewSplitter(cfg.Chunker.ChunkSize, cfg.Chunker.Overlap)
	pipeline := ingest.NewPipeline(enc, splitter, store, ingest.Config{
		BatchSize:    cfg.Ingest.BatchSize,
		ReadyRetries: cfg.Ingest.ReadyRetries,
		ReadyBackoff: time.Duration(cfg.Ingest.ReadyBackoffSecs) * time.Second,
	}, log)

	report, err := pipeline.Run(context.Background(), ingest.NewScrapboxExport(*file))
	printReport(report)
	if err != nil {
		log.Error("ingestion failed", "error", err)
		os.Exit(1)
	}
}

func printReport(r *ingest.Report) {
	fmt.Printf("documents: %d\nchunks: %d\nindexed: %d\n", r.Documents, r.Chunks, r.Indexed)
	for _, b := range r.Batches {
		if b.Error != "" {
			fmt.Printf("batch of %d FAILED: %s\n", b.Size, b.Error)
		}
	}
	for _, w := range r.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
}
