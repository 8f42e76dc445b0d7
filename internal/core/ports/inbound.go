package ports

import (
	"context"
	"io"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

// DocumentIngestor is the inbound contract for document upload orchestration.
type DocumentIngestor interface {
	Upload(ctx context.Context, filename, mimeType string, body io.Reader) (*domain.Document, error)
}

// DocumentProcessor runs the asynchronous enrichment pipeline for one
// uploaded document.
type DocumentProcessor interface {
	ProcessByID(ctx context.Context, documentID string) error
}

// CorpusQueryService is the inbound contract for retrieval and answering.
// AnswerContext assembles the cited context bundle without touching the
// answer generator; Ask feeds the bundle to it.
type CorpusQueryService interface {
	AnswerContext(ctx context.Context, question string, limit int) (*domain.ContextBundle, error)
	Ask(ctx context.Context, question string, limit int) (*domain.Answer, error)
}

// DocumentReader is the inbound read model for document state and artifacts.
type DocumentReader interface {
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, limit int) ([]domain.Document, error)
	PageImages(ctx context.Context, id string, page int) ([]domain.ImageDescriptor, error)
	Markdown(ctx context.Context, id string) (string, error)
	Stats(ctx context.Context) (domain.CorpusStats, error)
}
