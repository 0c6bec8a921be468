// Package encoder is the HTTP client for the sparse-encoder service.
package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kxddry/wikirag/internal/domain"
)

// Client calls POST /encode on the encoder service. It is safe for
// concurrent use; the underlying connection pool is shared.
type Client struct {
	url    string
	client *http.Client
}

// Config configures the encoder client.
type Config struct {
	URL     string
	Timeout time.Duration
}

// NewClient creates an encoder client. Truncated input bounds the backend's
// compute cost, so a request-level timeout of tens of seconds is safe.
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

type encodeRequest struct {
	Text string `json:"text"`
}

type encodeResponse struct {
	SparseVector domain.SparseVector `json:"sparse_vector"`
}

// Encode implements domain.Encoder. An unreachable backend or non-success
// status surfaces as domain.ErrUpstreamUnavailable.
func (c *Client) Encode(ctx context.Context, text string) (domain.SparseVector, error) {
	data, err := json.Marshal(encodeRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("marshal encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("build encode request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("encoder unreachable: %w", domain.ErrUpstreamUnavailable)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("encoder returned %s: %w", resp.Status, domain.ErrUpstreamUnavailable)
	}

	var out encodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode encode response: %w", err)
	}
	if out.SparseVector == nil {
		out.SparseVector = domain.SparseVector{}
	}
	return out.SparseVector, nil
}
