package plaintext

import (
	"context"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

// ExtractPages treats the whole file as a single page. Plain text and
// markdown carry no page structure of their own; citations for these
// documents always point at page 1.
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

	if !utf8.Valid(raw) {
		return nil, domain.WrapError(domain.ErrExtraction, "decode text",
			fmt.Errorf("%s is not valid utf-8", doc.Filename))
	}

	return []domain.Page{{Number: 1, Text: strings.TrimSpace(string(raw))}}, nil
}
