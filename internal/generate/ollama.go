// Package generate streams text from an Ollama-compatible generation
// backend: newline-delimited JSON records, each optionally carrying a text
// fragment and a completion flag.
package generate

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kxddry/wikirag/internal/domain"
)

// scanBufSize caps a single NDJSON line; generator fragments are short but
// the default scanner buffer is too small for long model warm-up records.
const scanBufSize = 1024 * 1024

// Client streams completions over HTTP. Generation is intentionally
// unbounded in total duration: the caller sees progress incrementally, so
// no request timeout is set and cancellation flows through the context.
type Client struct {
	url         string
	model       string
	temperature float64
	topP        float64
	client      *http.Client
}

// Config configures the generator client.
type Config struct {
	URL         string
	Model       string
	Temperature float64
	TopP        float64
}

// NewClient creates a generator client.
func NewClient(cfg Config) *Client {
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.7
	}
	topP := cfg.TopP
	if topP == 0 {
		topP = 0.9
	}
	return &Client{
		url:         cfg.URL,
		model:       cfg.Model,
		temperature: temperature,
		topP:        topP,
		client:      &http.Client{},
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Options map[string]any `json:"options"`
}

type generateRecord struct {
	Response string `json:"response"`
	Done     bool   `json:"done"`
}

// Stream implements domain.Generator. Fragments pass to emit exactly as the
// backend produces them; the stream ends on the first done record or on
// exhaustion of backend output. An unreachable backend or non-success
// status surfaces as domain.ErrUpstreamUnavailable; a transport failure
// after the stream opened is returned for the caller to recover inline.
func (c *Client) Stream(ctx context.Context, prompt string, emit func(string) error) error {
	data, err := json.Marshal(generateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: true,
		Options: map[string]any{
			"temperature": c.temperature,
			"top_p":       c.topP,
		},
	})
	if err != nil {
		return fmt.Errorf("marshal generate request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("build generate request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("generator unreachable: %w", domain.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("generator returned %s: %w", resp.Status, domain.ErrUpstreamUnavailable)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), scanBufSize)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var rec generateRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			// tolerate odd records in the stream
			continue
		}
		if rec.Response != "" {
			if err := emit(rec.Response); err != nil {
				return err
			}
		}
		if rec.Done {
			return nil
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("generator stream interrupted: %w", err)
	}
	return nil
}
