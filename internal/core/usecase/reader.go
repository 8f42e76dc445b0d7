package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

// DocumentReadUseCase is the read model behind the document endpoints.
type DocumentReadUseCase struct {
	repo     ports.DocumentRepository
	mdCache  ports.MarkdownCache
	enricher ports.Enricher
	vectorDB ports.VectorStore
}

func NewDocumentReadUseCase(
	repo ports.DocumentRepository,
	mdCache ports.MarkdownCache,
	enricher ports.Enricher,
	vectorDB ports.VectorStore,
) *DocumentReadUseCase {
	return &DocumentReadUseCase{
		repo:     repo,
		mdCache:  mdCache,
		enricher: enricher,
		vectorDB: vectorDB,
	}
}

func (uc *DocumentReadUseCase) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	return uc.repo.GetByID(ctx, id)
}

func (uc *DocumentReadUseCase) List(ctx context.Context, limit int) ([]domain.Document, error) {
	return uc.repo.List(ctx, limit)
}

func (uc *DocumentReadUseCase) PageImages(ctx context.Context, id string, page int) ([]domain.ImageDescriptor, error) {
	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if page < 1 || page > doc.PageCount {
		return nil, domain.WrapError(domain.ErrInvalidInput, "page images",
			fmt.Errorf("page %d outside 1..%d", page, doc.PageCount))
	}
	return uc.repo.ImagesForPage(ctx, id, page)
}

// Markdown serves the cached rendering when present and re-derives it
// from stored pages on a miss. Enrichment is deterministic, so the two
// paths agree.
func (uc *DocumentReadUseCase) Markdown(ctx context.Context, id string) (string, error) {
	if text, err := uc.mdCache.Get(ctx, id); err == nil {
		return text, nil
	} else if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		return "", err
	}

	doc, err := uc.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	if len(doc.Pages) == 0 {
		return "", domain.WrapError(domain.ErrDocumentNotFound, "document markdown",
			fmt.Errorf("no pages stored for %s", id))
	}
	return uc.enricher.Enrich(doc).Markdown, nil
}

func (uc *DocumentReadUseCase) Stats(ctx context.Context) (domain.CorpusStats, error) {
	stats, err := uc.repo.Stats(ctx)
	if err != nil {
		return domain.CorpusStats{}, err
	}
	indexStats, err := uc.vectorDB.Stats(ctx)
	if err != nil {
		return domain.CorpusStats{}, fmt.Errorf("index stats: %w", err)
	}
	stats.Chunks = indexStats.Chunks
	return stats, nil
}
