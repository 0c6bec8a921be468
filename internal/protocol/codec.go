// Package protocol frames and parses the streaming wire format: one JSON
// metadata record, a fixed delimiter, then incremental generated text.
package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/kxddry/wikirag/internal/domain"
)

// Delimiter separates the metadata frame from the generated text.
const Delimiter = "\n---\n"

// MetadataType is the type tag of the metadata frame.
const MetadataType = "metadata"

// Metadata is the first and only structured frame of a response stream.
type Metadata struct {
	Type    string          `json:"type"`
	Sources []domain.Source `json:"sources"`
}

// WriteMetadata serializes the metadata frame followed by the delimiter.
// It must be called exactly once, before any text is written.
func WriteMetadata(w io.Writer, sources []domain.Source) error {
	if sources == nil {
		sources = []domain.Source{}
	}
	data, err := json.Marshal(Metadata{Type: MetadataType, Sources: sources})
	if err != nil {
		return fmt.Errorf("marshal metadata frame: %w", err)
	}
	if _, err := w.Write(append(data, []byte(Delimiter)...)); err != nil {
		return fmt.Errorf("write metadata frame: %w", err)
	}
	return nil
}

// Parser incrementally decodes a response stream. The delimiter may arrive
// split across any number of reads, or together with metadata and text in
// one read; Feed buffers until the first delimiter occurrence, splits there
// exactly once, and passes everything after it through as text.
type Parser struct {
	buf  []byte
	meta *Metadata
}

// Feed consumes one network read and returns any generated text it
// completes. Before the delimiter has been seen the text is always empty;
// the read containing the delimiter yields the remainder after it.
func (p *Parser) Feed(data []byte) (string, error) {
	if p.meta != nil {
		return string(data), nil
	}
	p.buf = append(p.buf, data...)

	i := bytes.Index(p.buf, []byte(Delimiter))
	if i < 0 {
		return "", nil
	}

	var meta Metadata
	if err := json.Unmarshal(p.buf[:i], &meta); err != nil {
		return "", fmt.Errorf("decode metadata frame: %w", err)
	}
	if meta.Type != MetadataType {
		return "", fmt.Errorf("unexpected frame type %q", meta.Type)
	}
	p.meta = &meta

	rest := string(p.buf[i+len(Delimiter):])
	p.buf = nil
	return rest, nil
}

// Metadata returns the parsed metadata frame once the delimiter has been
// seen.
func (p *Parser) Metadata() (*Metadata, bool) {
	if p.meta == nil {
		return nil, false
	}
	return p.meta, true
}
