package tui

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/kxddry/wikirag/internal/domain"
	"github.com/kxddry/wikirag/internal/protocol"
)

// Event is one update from a running query stream.
type Event struct {
	Sources []domain.Source
	Text    string
	Err     error
	Done    bool
}

// StreamClient consumes the query API's streaming wire format.
type StreamClient struct {
	url    string
	client *http.Client
}

// NewStreamClient creates a client for the query endpoint at url.
// Generation is unbounded, so the HTTP client carries no timeout.
func NewStreamClient(url string) *StreamClient {
	return &StreamClient{url: url, client: &http.Client{}}
}

// Query posts the question and emits events as frames arrive: sources once
// the metadata frame is complete, then text fragments, then done. The
// channel closes after the final event.
func (c *StreamClient) Query(ctx context.Context, question string, topK int) <-chan Event {
	events := make(chan Event)
	go func() {
		defer close(events)

		payload, _ := json.Marshal(map[string]any{"user_query": question, "top_k": topK})
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
		if err != nil {
			events <- Event{Err: err}
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.client.Do(req)
		if err != nil {
			events <- Event{Err: err}
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(resp.Body)
			events <- Event{Err: fmt.Errorf("query API returned %s: %s", resp.Status, bytes.TrimSpace(body))}
			return
		}

		parser := &protocol.Parser{}
		metaSeen := false
		buf := make([]byte, 4096)
		for {
			n, err := resp.Body.Read(buf)
			if n > 0 {
				text, perr := parser.Feed(buf[:n])
				if perr != nil {
					events <- Event{Err: perr}
					return
				}
				if !metaSeen {
					if meta, ok := parser.Metadata(); ok {
						metaSeen = true
						events <- Event{Sources: meta.Sources}
					}
				}
				if text != "" {
					events <- Event{Text: text}
				}
			}
			if err == io.EOF {
				events <- Event{Done: true}
				return
			}
			if err != nil {
				events <- Event{Err: err}
				return
			}
		}
	}()
	return events
}
