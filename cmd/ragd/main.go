package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/kxddry/wikirag/internal/config"
	"github.com/kxddry/wikirag/internal/encoder"
	"github.com/kxddry/wikirag/internal/generate"
	"github.com/kxddry/wikirag/internal/retrieval"
	"github.com/kxddry/wikirag/internal/searchstore/elastic"
	"github.com/kxddry/wikirag/internal/server"
	"github.com/kxddry/wikirag/internal/service"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "Path to config YAML")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

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
		Timeout: time.Duration(cfg.Encoder.TimeoutSecs) * time.Second,
	})
	gen := generate.NewClient(generate.Config{
		URL:         cfg.Generator.URL,
		Model:       cfg.Generator.Model,
		Temperature: cfg.Generator.Temperature,
		TopP:        cfg.Generator.TopP,
	})
	searcher := retrieval.NewSearcher(store, time.Duration(cfg.Elasticsearch.SearchTimeoutSecs)*time.Second, log)
	orch := service.NewOrchestrator(enc, searcher, gen, log)

	api := server.NewAPI(orch, store, log)
	srv := server.NewServer(fmt.Sprintf(":%d", cfg.Server.Port), api.Routes())

	log.Info("starting query API", "addr", srv.Addr, "index", cfg.Elasticsearch.Index)
	if err := srv.ListenAndServe(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
