package protocol

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kxddry/wikirag/internal/domain"
)

func TestWriteMetadata(t *testing.T) {
	var buf bytes.Buffer
	sources := []domain.Source{{Title: "Foo", URL: "https://scrapbox.io/wiki/Foo", Score: 1.5}}
	require.NoError(t, WriteMetadata(&buf, sources))

	out := buf.String()
	assert.Contains(t, out, `"type":"metadata"`)
	assert.Contains(t, out, `"Foo"`)
	assert.True(t, bytes.HasSuffix(buf.Bytes(), []byte(Delimiter)))
}

func TestWriteMetadata_NilSourcesEncodesEmptyArray(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteMetadata(&buf, nil))
	assert.Contains(t, buf.String(), `"sources":[]`)
}

// A stream must parse identically no matter where the network fragments it,
// including splits inside the delimiter itself.
func TestParser_EverySplitPoint(t *testing.T) {
	stream := []byte(`{"type":"metadata","sources":[{"title":"Foo","url":"u","score":2}]}` + Delimiter + "Hello")

	for off := 0; off <= len(stream); off++ {
		t.Run(fmt.Sprintf("offset_%d", off), func(t *testing.T) {
			var p Parser
			var text string

			first, err := p.Feed(stream[:off])
			require.NoError(t, err)
			text += first
			second, err := p.Feed(stream[off:])
			require.NoError(t, err)
			text += second

			meta, ok := p.Metadata()
			require.True(t, ok)
			require.Len(t, meta.Sources, 1)
			assert.Equal(t, "Foo", meta.Sources[0].Title)
			assert.Equal(t, "Hello", text)
		})
	}
}

func TestParser_ByteAtATime(t *testing.T) {
	stream := []byte(`{"type":"metadata","sources":[]}` + Delimiter + "chunked text")

	var p Parser
	var text string
	for i := range stream {
		got, err := p.Feed(stream[i : i+1])
		require.NoError(t, err)
		text += got
	}

	_, ok := p.Metadata()
	require.True(t, ok)
	assert.Equal(t, "chunked text", text)
}

func TestParser_NoTextBeforeDelimiter(t *testing.T) {
	var p Parser
	got, err := p.Feed([]byte(`{"type":"metadata","sour`))
	require.NoError(t, err)
	assert.Empty(t, got)
	_, ok := p.Metadata()
	assert.False(t, ok)
}

func TestParser_RejectsUnknownFrameType(t *testing.T) {
	var p Parser
	_, err := p.Feed([]byte(`{"type":"banner","sources":[]}` + Delimiter))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "banner")
}

func TestParser_RejectsMalformedMetadata(t *testing.T) {
	var p Parser
	_, err := p.Feed([]byte(`not json` + Delimiter + "text"))
	require.Error(t, err)
}

func TestParser_RoundTrip(t *testing.T) {
	var buf bytes.Buffer
	sources := []domain.Source{{Title: "A", URL: "ua", Score: 3}, {Title: "B", URL: "ub", Score: 1}}
	require.NoError(t, WriteMetadata(&buf, sources))
	buf.WriteString("generated answer")

	var p Parser
	text, err := p.Feed(buf.Bytes())
	require.NoError(t, err)
	meta, ok := p.Metadata()
	require.True(t, ok)
	assert.Equal(t, sources, meta.Sources)
	assert.Equal(t, "generated answer", text)
}
