package sheet

import (
	"context"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

type Extractor struct {
	storage ports.ObjectStorage
}

func NewExtractor(storage ports.ObjectStorage) *Extractor {
	return &Extractor{storage: storage}
}

// ExtractPages maps each worksheet to one page, in workbook order. The
// sheet name leads the page text and cells are tab separated, one row per
// line, so tabular answers cite the sheet they came from.
func (e *Extractor) ExtractPages(ctx context.Context, doc *domain.Document) ([]domain.Page, error) {
	reader, err := e.storage.Open(ctx, doc.StoragePath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "open source document", err)
	}
	defer reader.Close()

	f, err := excelize.OpenReader(reader)
	if err != nil {
		return nil, domain.WrapError(domain.ErrExtraction, "parse workbook", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, domain.WrapError(domain.ErrExtraction, "parse workbook",
			fmt.Errorf("no sheets in %s", doc.Filename))
	}

	pages := make([]domain.Page, 0, len(sheets))
	for i, name := range sheets {
		rows, err := f.GetRows(name)
		if err != nil {
			return nil, domain.WrapError(domain.ErrExtraction, fmt.Sprintf("read sheet %s", name), err)
		}

		var b strings.Builder
		b.WriteString(name)
		for _, row := range rows {
			line := strings.TrimRight(strings.Join(row, "\t"), "\t")
			if strings.TrimSpace(line) == "" {
				continue
			}
			b.WriteString("\n")
			b.WriteString(line)
		}
		pages = append(pages, domain.Page{Number: i + 1, Text: b.String()})
	}
	return pages, nil
}
