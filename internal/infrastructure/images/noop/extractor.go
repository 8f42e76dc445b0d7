// Package noop disables image extraction. Documents flow through the
// pipeline text-only, which keeps deployments without poppler installed
// fully functional.
package noop

import (
	"context"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type Extractor struct{}

func NewExtractor() *Extractor { return &Extractor{} }

func (e *Extractor) ExtractImages(ctx context.Context, doc *domain.Document) ([]domain.ImageDescriptor, error) {
	return nil, nil
}
