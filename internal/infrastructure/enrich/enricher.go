package enrich

import (
	"fmt"
	"strings"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

const imageSectionHeader = "\n\n---\n**[IMAGES ON THIS PAGE]:**\n"

type Enricher struct{}

func New() *Enricher {
	return &Enricher{}
}

// EnrichPage returns the page text with its image section appended. Pages
// without images come back verbatim: no empty section is emitted, so
// image-free pages embed without boilerplate.
func EnrichPage(page domain.Page) string {
	if len(page.Images) == 0 {
		return page.Text
	}

	var b strings.Builder
	b.WriteString(page.Text)
	b.WriteString(imageSectionHeader)
	for _, img := range page.Images {
		desc := img.Description
		if desc == "" {
			desc = domain.PlaceholderDescription
		}
		fmt.Fprintf(&b, "\n- **Image: %s**\n  %s\n", img.Filename, desc)
	}
	return b.String()
}

// Enrich derives the enriched representation of a document: per-page
// enriched text plus a whole-document markdown rendering with page-boundary
// markers. The markdown is for inspection and caching only; chunking always
// operates per page so page attribution stays exact.
func (e *Enricher) Enrich(doc *domain.Document) *domain.EnrichedDocument {
	out := &domain.EnrichedDocument{
		DocumentID: doc.ID,
		Filename:   doc.Filename,
		Pages:      make([]domain.EnrichedPage, 0, len(doc.Pages)),
	}

	var md strings.Builder
	for _, page := range doc.Pages {
		text := EnrichPage(page)
		out.Pages = append(out.Pages, domain.EnrichedPage{
			Number: page.Number,
			Text:   text,
		})
		fmt.Fprintf(&md, "## Page %d\n\n%s\n\n", page.Number, text)
	}
	out.Markdown = md.String()
	return out
}
