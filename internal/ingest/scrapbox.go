package ingest

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/kxddry/wikirag/internal/domain"
)

// Source enumerates the documents of one corpus. Per-document problems are
// reported as warnings so a single bad page never aborts a run; a non-nil
// error means the source itself could not be read.
type Source interface {
	Name() string
	Documents() ([]domain.Document, []string, error)
}

// ScrapboxExport reads a Scrapbox project export file:
// {"name": ..., "pages": [{"title": ..., "lines": [...]}, ...]}.
type ScrapboxExport struct {
	path string
}

// NewScrapboxExport creates a source over the export file at path.
func NewScrapboxExport(path string) *ScrapboxExport {
	return &ScrapboxExport{path: path}
}

// Name returns the export file path.
func (s *ScrapboxExport) Name() string { return s.path }

type scrapboxExportFile struct {
	Name  string `json:"name"`
	Pages []struct {
		Title string   `json:"title"`
		Lines []string `json:"lines"`
	} `json:"pages"`
}

// Documents parses the export. Pages without a title are skipped with a
// warning. Page URLs follow the Scrapbox scheme, spaces replaced by
// underscores.
func (s *ScrapboxExport) Documents() ([]domain.Document, []string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, nil, fmt.Errorf("read export %s: %w", s.path, err)
	}
	var export scrapboxExportFile
	if err := json.Unmarshal(data, &export); err != nil {
		return nil, nil, fmt.Errorf("parse export %s: %w", s.path, err)
	}

	var docs []domain.Document
	var warnings []string
	for i, page := range export.Pages {
		if page.Title == "" {
			warnings = append(warnings, fmt.Sprintf("page %d has no title, skipped", i))
			continue
		}
		safeTitle := strings.ReplaceAll(page.Title, " ", "_")
		docs = append(docs, domain.Document{
			Title:   page.Title,
			Content: strings.Join(page.Lines, "\n"),
			URL:     fmt.Sprintf("https://scrapbox.io/%s/%s", export.Name, safeTitle),
		})
	}
	return docs, warnings, nil
}
