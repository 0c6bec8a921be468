// Package mlm is the HTTP client for the masked-language-model scoring
// backend consumed by the sparse encoder.
package mlm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kxddry/wikirag/internal/domain"
	"github.com/kxddry/wikirag/internal/sparse"
)

// Client calls the scorer's POST /score endpoint.
type Client struct {
	url    string
	client *http.Client
}

// Config configures the scorer client.
type Config struct {
	URL     string
	Timeout time.Duration
}

// NewClient creates a scorer client. The timeout bounds the full request;
// truncated input keeps the forward pass cost bounded.
func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		url:    cfg.URL,
		client: &http.Client{Timeout: timeout},
	}
}

type scoreRequest struct {
	Text      string `json:"text"`
	MaxTokens int    `json:"max_tokens"`
}

type scoreResponse struct {
	Rows []struct {
		Attention int                `json:"attention"`
		Scores    map[string]float64 `json:"scores"`
	} `json:"rows"`
}

// Score implements sparse.Scorer. Transport failures and non-success
// statuses surface as domain.ErrUpstreamUnavailable.
func (c *Client) Score(ctx context.Context, text string, maxTokens int) (*sparse.TermScores, error) {
	data, err := json.Marshal(scoreRequest{Text: text, MaxTokens: maxTokens})
	if err != nil {
		return nil, fmt.Errorf("marshal score request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("scorer unreachable: %w", domain.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("scorer returned %s: %w", resp.Status, domain.ErrUpstreamUnavailable)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode score response: %w", err)
	}

	scores := &sparse.TermScores{Rows: make([]sparse.PositionScores, len(out.Rows))}
	for i, row := range out.Rows {
		scores.Rows[i] = sparse.PositionScores{Attention: row.Attention, Scores: row.Scores}
	}
	return scores, nil
}
