package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/kxddry/wikirag/internal/config"
	"github.com/kxddry/wikirag/internal/server"
	"github.com/kxddry/wikirag/internal/sparse"
	"github.com/kxddry/wikirag/internal/sparse/mlm"
)

func main() {
	_ = godotenv.Load()

	cfgPath := flag.String("config", "config.yaml", "Path to config YAML")
	port := flag.Int("port", 8001, "Listen port")
	flag.Parse()

	log := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	scorer := mlm.NewClient(mlm.Config{
		URL:     cfg.Scorer.URL,
		Timeout: time.Duration(cfg.Scorer.TimeoutSecs) * time.Second,
	})
	enc := sparse.NewEncoder(scorer, cfg.Scorer.MaxTokens)

	api := server.NewEncodeAPI(enc, log)
	srv := server.NewServer(fmt.Sprintf(":%d", *port), api.Routes())

	log.Info("starting encoder service", "addr", srv.Addr, "scorer", cfg.Scorer.URL)
	if err := srv.ListenAndServe(); err != nil {
		log.Error("server stopped", "error", err)
		os.Exit(1)
	}
}
