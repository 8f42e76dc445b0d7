package pdf

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

// ExtractPages reads the stored PDF and returns one entry per page in
// source order. A page whose text extraction fails keeps its slot with
// empty text so page numbers stay aligned with the source document; a
// document that cannot be parsed at all fails extraction.
func (e *Extractor) ExtractPages(ctx context.Context, doc *domain.Document) ([]domain.Page, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "open source document", err)
	}
	defer reader.Close()

	raw, err := io.ReadAll(reader)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "read source document", err)
	}

	r, err := pdf.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "parse pdf", err)
	}

	total := r.NumPage()
	if total == 0 {
		return nil, domain.WrapError(domain.ErrExtraction, "parse pdf",
			fmt.Errorf("no pages in %s", doc.Filename))
	}

	pages := make([]domain.Page, 0, total)
	for num := 1; num <= total; num++ {
		page := r.Page(num)
		text := ""
		if !page.V.IsNull() {
			if extracted, err := page.GetPlainText(nil); err == nil {
				text = extracted
			}
		}
		pages = append(pages, domain.Page{Number: num, Text: strings.TrimSpace(text)})
	}
	return pages, nil
}
