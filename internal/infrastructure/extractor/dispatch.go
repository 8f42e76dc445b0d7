// Package extractor routes a stored document to the page extractor for
// its file type.
package extractor

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/extractor/sheet"
)

type Dispatcher struct {
	byExt map[string]ports.PageExtractor
}

func NewDispatcher(storage ports.ObjectStorage) *Dispatcher {
	pdfExtractor := pdf.NewExtractor(storage)
	textExtractor := plaintext.NewExtractor(storage)
	sheetExtractor := sheet.NewExtractor(storage)
	return &Dispatcher{byExt: map[string]ports.PageExtractor{
		".pdf":      pdfExtractor,
		".txt":      textExtractor,
		".md":       textExtractor,
		".markdown": textExtractor,
		".xlsx":     sheetExtractor,
		".xlsm":     sheetExtractor,
	}}
}

// SupportedExtensions returns the dispatchable extensions sorted, with
// leading dots, for upload validation and error messages.
func (d *Dispatcher) SupportedExtensions() []string {
	exts := make([]string, 0, len(d.byExt))
	for ext := range d.byExt {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

func (d *Dispatcher) ExtractPages(ctx context.Context, doc *domain.Document) ([]domain.Page, error) {
	ext := strings.ToLower(filepath.Ext(doc.Filename))
	impl, ok := d.byExt[ext]
	if !ok {
		return nil, domain.WrapError(domain.ErrExtraction, "dispatch extractor",
			fmt.Errorf("unsupported file type %q", ext))
	}
	return impl.ExtractPages(ctx, doc)
}
