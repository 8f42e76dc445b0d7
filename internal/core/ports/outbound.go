package ports

import (
	"context"
	"io"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

// DocumentRepository persists document, page, and image-descriptor state.
type DocumentRepository interface {
	Create(ctx context.Context, doc *domain.Document) error
	GetByID(ctx context.Context, id string) (*domain.Document, error)
	List(ctx context.Context, limit int) ([]domain.Document, error)
	FindByFilename(ctx context.Context, filename string) ([]domain.Document, error)
	UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error
	SavePages(ctx context.Context, documentID string, pages []domain.Page) error
	AttachImages(ctx context.Context, doc *domain.Document, descriptors []domain.ImageDescriptor) error
	ImagesForPage(ctx context.Context, documentID string, page int) ([]domain.ImageDescriptor, error)
	Stats(ctx context.Context) (domain.CorpusStats, error)
}

// ObjectStorage stores source documents and rendered artifacts.
type ObjectStorage interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
	List(ctx context.Context, prefix string) ([]string, error)
}

// MessageQueue publishes/consumes processing events.
type MessageQueue interface {
	PublishDocumentIngested(ctx context.Context, documentID string) error
	SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// PageExtractor turns a stored document into ordered page texts. Failure is
// fatal to the document: there are no pages to work with.
type PageExtractor interface {
	ExtractPages(ctx context.Context, doc *domain.Document) ([]domain.Page, error)
}

// ImageExtractor pulls embedded raster images out of a stored document,
// returning descriptors in page order with status pending.
type ImageExtractor interface {
	ExtractImages(ctx context.Context, doc *domain.Document) ([]domain.ImageDescriptor, error)
}

// ImageDescriber produces a natural-language description for one image.
type ImageDescriber interface {
	Describe(ctx context.Context, imagePath string) (string, error)
}

// Embedder builds vectors for chunks and query text. The same instance must
// serve both paths: mixed embedding spaces degrade relevance with no error
// signal.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Chunker splits enriched page text into bounded, overlapping chunks.
type Chunker interface {
	Split(text string) []string
}

// Enricher merges image descriptions into page text and renders the
// whole-document markdown, without mutating the source document.
type Enricher interface {
	Enrich(doc *domain.Document) *domain.EnrichedDocument
}

// VectorStore indexes chunk embeddings and answers similarity queries.
// IndexChunks upserts by chunk id; Search returns at most limit results by
// descending cosine similarity, never an error for an empty index.
type VectorStore interface {
	IndexChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error
	Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedChunk, error)
	DeleteDocument(ctx context.Context, documentID string) error
	Stats(ctx context.Context) (domain.IndexStats, error)
}

// AnswerGenerator creates the final user-facing answer from a bundle.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, question string, bundle *domain.ContextBundle) (string, error)
}

// MarkdownCache persists the enriched whole-document markdown rendering.
// Writes are best-effort; the cache is a rendering, not a source of truth.
type MarkdownCache interface {
	Put(ctx context.Context, doc *domain.Document, enriched *domain.EnrichedDocument) error
	Get(ctx context.Context, documentID string) (string, error)
}
