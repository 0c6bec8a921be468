// Package config loads application configuration from a YAML file with
// environment-variable overrides matching the deployment .env contract.
package config

import (
	"errors"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures an HTTP listener.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// ElasticsearchConfig holds connection details for the search store.
type ElasticsearchConfig struct {
	URL               string `yaml:"url"`
	Index             string `yaml:"index"`
	SearchTimeoutSecs int    `yaml:"search_timeout_secs"`
}

// EncoderConfig points at the sparse-encoder service.
type EncoderConfig struct {
	URL               string `yaml:"url"`
	TimeoutSecs       int    `yaml:"timeout_secs"`
	IngestTimeoutSecs int    `yaml:"ingest_timeout_secs"`
}

// ScorerConfig points the encoder service at its MLM scoring backend.
type ScorerConfig struct {
	URL         string `yaml:"url"`
	MaxTokens   int    `yaml:"max_tokens"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// GeneratorConfig selects the generation backend and model.
type GeneratorConfig struct {
	URL         string  `yaml:"url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	TopP        float64 `yaml:"top_p"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	ChunkSize int `yaml:"chunk_size"`
	Overlap   int `yaml:"overlap"`
}

// IngestConfig configures the ingestion batch job.
type IngestConfig struct {
	BatchSize        int `yaml:"batch_size"`
	ReadyRetries     int `yaml:"ready_retries"`
	ReadyBackoffSecs int `yaml:"ready_backoff_secs"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server        ServerConfig        `yaml:"server"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Encoder       EncoderConfig       `yaml:"encoder"`
	Scorer        ScorerConfig        `yaml:"scorer"`
	Generator     GeneratorConfig     `yaml:"generator"`
	Chunker       ChunkerConfig       `yaml:"chunker"`
	Ingest        IngestConfig        `yaml:"ingest"`
}

// Load reads a config from the given path. A missing file yields the
// defaults; environment variables override either way.
func Load(path string) (*AppConfig, error) {
	cfg := defaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	return cfg, nil
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Server:        ServerConfig{Port: 8000},
		Elasticsearch: ElasticsearchConfig{URL: "http://localhost:9200", Index: "scrapbox-index", SearchTimeoutSecs: 10},
		Encoder:       EncoderConfig{URL: "http://localhost:8001/encode", TimeoutSecs: 30, IngestTimeoutSecs: 60},
		Scorer:        ScorerConfig{URL: "http://localhost:8002/score", MaxTokens: 512, TimeoutSecs: 30},
		Generator:     GeneratorConfig{URL: "http://localhost:11434/api/generate", Model: "gemma3", Temperature: 0.7, TopP: 0.9},
		Chunker:       ChunkerConfig{ChunkSize: 500, Overlap: 50},
		Ingest:        IngestConfig{BatchSize: 50, ReadyRetries: 10, ReadyBackoffSecs: 3},
	}
}

func applyDefaults(cfg *AppConfig) {
	def := defaultConfig()
	if cfg.Server.Port == 0 {
		cfg.Server.Port = def.Server.Port
	}
	if cfg.Elasticsearch.URL == "" {
		cfg.Elasticsearch.URL = def.Elasticsearch.URL
	}
	if cfg.Elasticsearch.Index == "" {
		cfg.Elasticsearch.Index = def.Elasticsearch.Index
	}
	if cfg.Elasticsearch.SearchTimeoutSecs == 0 {
		cfg.Elasticsearch.SearchTimeoutSecs = def.Elasticsearch.SearchTimeoutSecs
	}
	if cfg.Encoder.URL == "" {
		cfg.Encoder.URL = def.Encoder.URL
	}
	if cfg.Encoder.TimeoutSecs == 0 {
		cfg.Encoder.TimeoutSecs = def.Encoder.TimeoutSecs
	}
	if cfg.Encoder.IngestTimeoutSecs == 0 {
		cfg.Encoder.IngestTimeoutSecs = def.Encoder.IngestTimeoutSecs
	}
	if cfg.Scorer.URL == "" {
		cfg.Scorer.URL = def.Scorer.URL
	}
	if cfg.Scorer.MaxTokens == 0 {
		cfg.Scorer.MaxTokens = def.Scorer.MaxTokens
	}
	if cfg.Scorer.TimeoutSecs == 0 {
		cfg.Scorer.TimeoutSecs = def.Scorer.TimeoutSecs
	}
	if cfg.Generator.URL == "" {
		cfg.Generator.URL = def.Generator.URL
	}
	if cfg.Generator.Model == "" {
		cfg.Generator.Model = def.Generator.Model
	}
	if cfg.Generator.Temperature == 0 {
		cfg.Generator.Temperature = def.Generator.Temperature
	}
	if cfg.Generator.TopP == 0 {
		cfg.Generator.TopP = def.Generator.TopP
	}
	if cfg.Chunker.ChunkSize == 0 {
		cfg.Chunker.ChunkSize = def.Chunker.ChunkSize
	}
	if cfg.Chunker.Overlap == 0 {
		cfg.Chunker.Overlap = def.Chunker.Overlap
	}
	if cfg.Ingest.BatchSize == 0 {
		cfg.Ingest.BatchSize = def.Ingest.BatchSize
	}
	if cfg.Ingest.ReadyRetries == 0 {
		cfg.Ingest.ReadyRetries = def.Ingest.ReadyRetries
	}
	if cfg.Ingest.ReadyBackoffSecs == 0 {
		cfg.Ingest.ReadyBackoffSecs = def.Ingest.ReadyBackoffSecs
	}
}

// applyEnv applies the .env overrides used by the deployment.
func applyEnv(cfg *AppConfig) {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("ELASTICSEARCH_URL"); v != "" {
		cfg.Elasticsearch.URL = v
	}
	if v := os.Getenv("INDEX_NAME"); v != "" {
		cfg.Elasticsearch.Index = v
	}
	if v := os.Getenv("SPLADE_API_URL"); v != "" {
		cfg.Encoder.URL = v
	}
	if v := os.Getenv("MLM_SCORER_URL"); v != "" {
		cfg.Scorer.URL = v
	}
	if v := os.Getenv("OLLAMA_URL"); v != "" {
		cfg.Generator.URL = v
	}
	if v := os.Getenv("LLM_MODEL"); v != "" {
		cfg.Generator.Model = v
	}
}
