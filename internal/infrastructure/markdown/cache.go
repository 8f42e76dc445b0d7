// Package markdown persists the enriched whole-document rendering so
// readers get it without re-running enrichment. The cache is derived
// data: losing it is recoverable, so writes are best-effort at the call
// site.
package markdown

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

type Cache struct {
	storage ports.ObjectStorage
}

func NewCache(storage ports.ObjectStorage) *Cache {
	return &Cache{storage: storage}
}

type metadata struct {
	DocumentID string    `json:"document_id"`
	Filename   string    `json:"filename"`
	PageCount  int       `json:"page_count"`
	Images     int       `json:"images"`
	RenderedAt time.Time `json:"rendered_at"`
}

func (c *Cache) Put(ctx context.Context, doc *domain.Document, enriched *domain.EnrichedDocument) error {
	if err := c.storage.Save(ctx, markdownKey(doc.ID, doc.Filename), strings.NewReader(enriched.Markdown)); err != nil {
		return fmt.Errorf("store markdown: %w", err)
	}

	images := 0
	for _, page := range doc.Pages {
		images += len(page.Images)
	}
	meta := metadata{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		PageCount:  doc.PageCount,
		Images:     images,
		RenderedAt: time.Now().UTC(),
	}
	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	if err := c.storage.Save(ctx, metadataKey(doc.ID), bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("store metadata: %w", err)
	}
	return nil
}

// Get returns the cached rendering. A miss reports ErrDocumentNotFound;
// callers fall back to rendering from stored pages.
func (c *Cache) Get(ctx context.Context, documentID string) (string, error) {
	keys, err := c.storage.List(ctx, fmt.Sprintf("markdown/%s_", documentID))
	if err != nil {
		return "", fmt.Errorf("list markdown cache: %w", err)
	}
	if len(keys) == 0 {
		return "", domain.WrapError(domain.ErrDocumentNotFound, "markdown cache",
			fmt.Errorf("no rendering for %s", documentID))
	}

	reader, err := c.storage.Open(ctx, keys[0])
	if err != nil {
		return "", fmt.Errorf("open markdown cache: %w", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return "", fmt.Errorf("read markdown cache: %w", err)
	}
	return string(raw), nil
}

func markdownKey(documentID, filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	return fmt.Sprintf("markdown/%s_%s.md", documentID, stem)
}

func metadataKey(documentID string) string {
	return fmt.Sprintf("metadata/%s.json", documentID)
}
