package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

// PipelineObserver receives progress signals from the processing
// pipeline. Implementations must be safe for concurrent use.
type PipelineObserver interface {
	StageCompleted(stage string)
	ImageDescribed(failed bool)
	ImagesDropped(count int)
	ChunksIndexed(indexed, skipped int)
}

type noopObserver struct{}

func (noopObserver) StageCompleted(string)  {}
func (noopObserver) ImageDescribed(bool)    {}
func (noopObserver) ImagesDropped(int)      {}
func (noopObserver) ChunksIndexed(int, int) {}

type ProcessOptions struct {
	// DescribePoolSize bounds concurrent vision calls; DescribeTimeout
	// caps each call so one stuck image surfaces as a per-item failure.
	DescribePoolSize int
	DescribeTimeout  time.Duration
	Observer         PipelineObserver
}

type ProcessDocumentUseCase struct {
	repo           ports.DocumentRepository
	pageExtractor  ports.PageExtractor
	imageExtractor ports.ImageExtractor
	describer      ports.ImageDescriber
	enricher       ports.Enricher
	mdCache        ports.MarkdownCache
	chunker        ports.Chunker
	embedder       ports.Embedder
	vectorDB       ports.VectorStore

	describePoolSize int
	describeTimeout  time.Duration
	observer         PipelineObserver
}

func NewProcessDocumentUseCase(
	repo ports.DocumentRepository,
	pageExtractor ports.PageExtractor,
	imageExtractor ports.ImageExtractor,
	describer ports.ImageDescriber,
	enricher ports.Enricher,
	mdCache ports.MarkdownCache,
	chunker ports.Chunker,
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	options ProcessOptions,
) *ProcessDocumentUseCase {
	poolSize := options.DescribePoolSize
	if poolSize <= 0 {
		poolSize = 3
	}
	timeout := options.DescribeTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	observer := options.Observer
	if observer == nil {
		observer = noopObserver{}
	}
	return &ProcessDocumentUseCase{
		repo:             repo,
		pageExtractor:    pageExtractor,
		imageExtractor:   imageExtractor,
		describer:        describer,
		enricher:         enricher,
		mdCache:          mdCache,
		chunker:          chunker,
		embedder:         embedder,
		vectorDB:         vectorDB,
		describePoolSize: poolSize,
		describeTimeout:  timeout,
		observer:         observer,
	}
}

// ProcessByID drives one document through the enrichment state machine:
// extract text, extract and describe images, enrich, chunk, embed, index.
// Per-item failures (one image, one chunk) are absorbed and logged; a
// whole-document failure marks the document failed with no index entries.
func (uc *ProcessDocumentUseCase) ProcessByID(ctx context.Context, documentID string) error {
	doc, err := uc.repo.GetByID(ctx, documentID)
	if err != nil {
		return fmt.Errorf("fetch document by id: %w", err)
	}

	if err := uc.runPipeline(ctx, doc); err != nil {
		if failErr := uc.markStatus(ctx, documentID, domain.StatusFailed, err.Error()); failErr != nil {
			return fmt.Errorf("%w; mark failed status: %v", err, failErr)
		}
		return err
	}
	return nil
}

func (uc *ProcessDocumentUseCase) runPipeline(ctx context.Context, doc *domain.Document) error {
	if err := uc.extractText(ctx, doc); err != nil {
		return err
	}
	descriptors, err := uc.extractImages(ctx, doc)
	if err != nil {
		return err
	}
	if err := uc.describeAndAttach(ctx, doc, descriptors); err != nil {
		return err
	}
	enriched, err := uc.enrich(ctx, doc)
	if err != nil {
		return err
	}
	chunks, err := uc.chunkPages(ctx, doc, enriched)
	if err != nil {
		return err
	}
	return uc.embedAndIndex(ctx, doc, chunks)
}

func (uc *ProcessDocumentUseCase) extractText(ctx context.Context, doc *domain.Document) error {
	pages, err := uc.pageExtractor.ExtractPages(ctx, doc)
	if err != nil {
		return domain.WrapError(domain.ErrExtraction, "extract pages", err)
	}
	if len(pages) == 0 {
		return domain.WrapError(domain.ErrExtraction, "extract pages", errors.New("no pages extracted"))
	}

	if err := uc.repo.SavePages(ctx, doc.ID, pages); err != nil {
		return fmt.Errorf("save pages: %w", err)
	}
	doc.Pages = pages
	doc.PageCount = len(pages)

	return uc.advance(ctx, doc, domain.StatusTextExtracted)
}

// extractImages is best-effort: images are enrichment, not correctness,
// so a missing or failing extraction tool degrades to a text-only
// document instead of failing it.
func (uc *ProcessDocumentUseCase) extractImages(ctx context.Context, doc *domain.Document) ([]domain.ImageDescriptor, error) {
	descriptors, err := uc.imageExtractor.ExtractImages(ctx, doc)
	if err != nil {
		slog.Warn("image extraction failed, continuing text-only",
			"document_id", doc.ID, "error", err)
		descriptors = nil
	}
	if err := uc.advance(ctx, doc, domain.StatusImagesExtracted); err != nil {
		return nil, err
	}
	return descriptors, nil
}

// describeAndAttach runs the vision calls through a bounded worker pool.
// Results land in a positional slice so extraction order survives the
// concurrency; a failed description keeps its slot with the placeholder.
func (uc *ProcessDocumentUseCase) describeAndAttach(ctx context.Context, doc *domain.Document, descriptors []domain.ImageDescriptor) error {
	if len(descriptors) > 0 {
		sem := make(chan struct{}, uc.describePoolSize)
		var wg sync.WaitGroup
		for i := range descriptors {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				sem <- struct{}{}
				defer func() { <-sem }()
				uc.describeOne(ctx, &descriptors[i])
			}(i)
		}
		wg.Wait()
	}

	// Attach even an empty set: AttachImages replaces the stored
	// descriptors, so re-processing a document that lost its images
	// clears the stale rows instead of serving them forever.
	kept := uc.dropUnknownPages(doc, descriptors)
	if err := uc.repo.AttachImages(ctx, doc, kept); err != nil {
		return fmt.Errorf("attach images: %w", err)
	}

	return uc.advance(ctx, doc, domain.StatusImagesDescribed)
}

func (uc *ProcessDocumentUseCase) describeOne(ctx context.Context, descriptor *domain.ImageDescriptor) {
	callCtx, cancel := context.WithTimeout(ctx, uc.describeTimeout)
	defer cancel()

	text, err := uc.describer.Describe(callCtx, descriptor.Path)
	if err != nil {
		slog.Warn("image description failed, using placeholder",
			"document_id", descriptor.DocumentID,
			"page", descriptor.Page,
			"filename", descriptor.Filename,
			"error", domain.WrapError(domain.ErrDescription, "describe image", err),
		)
		descriptor.Description = domain.PlaceholderDescription
		descriptor.Status = domain.ImageStatusFailed
		uc.observer.ImageDescribed(true)
		return
	}
	descriptor.Description = text
	descriptor.Status = domain.ImageStatusSuccess
	uc.observer.ImageDescribed(false)
}

// dropUnknownPages discards descriptors that reference pages the
// document does not have. Page numbers need not be contiguous, so
// membership is checked against the actual page set, not the count. A
// bad descriptor is an extractor artifact, never fatal to the batch.
func (uc *ProcessDocumentUseCase) dropUnknownPages(doc *domain.Document, descriptors []domain.ImageDescriptor) []domain.ImageDescriptor {
	pageSet := make(map[int]struct{}, len(doc.Pages))
	for _, page := range doc.Pages {
		pageSet[page.Number] = struct{}{}
	}

	kept := make([]domain.ImageDescriptor, 0, len(descriptors))
	dropped := 0
	for _, d := range descriptors {
		if _, ok := pageSet[d.Page]; !ok {
			dropped++
			slog.Warn("image descriptor dropped",
				"document_id", doc.ID,
				"filename", d.Filename,
				"error", domain.WrapError(domain.ErrUnknownPage, "attach image",
					fmt.Errorf("page %d is not a page of the document", d.Page)),
			)
			continue
		}
		kept = append(kept, d)
	}
	uc.observer.ImagesDropped(dropped)
	return kept
}

func (uc *ProcessDocumentUseCase) enrich(ctx context.Context, doc *domain.Document) (*domain.EnrichedDocument, error) {
	enriched := uc.enricher.Enrich(doc)

	// The markdown cache is a derived rendering; losing a write is
	// recoverable and never stalls the pipeline.
	if err := uc.mdCache.Put(ctx, doc, enriched); err != nil {
		slog.Warn("markdown cache write failed", "document_id", doc.ID, "error", err)
	}

	if err := uc.advance(ctx, doc, domain.StatusEnriched); err != nil {
		return nil, err
	}
	return enriched, nil
}

func (uc *ProcessDocumentUseCase) chunkPages(ctx context.Context, doc *domain.Document, enriched *domain.EnrichedDocument) ([]domain.Chunk, error) {
	var chunks []domain.Chunk
	for _, page := range enriched.Pages {
		for ordinal, text := range uc.chunker.Split(page.Text) {
			chunks = append(chunks, domain.Chunk{
				ID:         domain.ChunkID(doc.ID, page.Number, ordinal),
				DocumentID: doc.ID,
				Page:       page.Number,
				Ordinal:    ordinal,
				Kind:       domain.ChunkKindText,
				Text:       text,
			})
		}
	}
	if len(chunks) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "chunk document",
			errors.New("chunking produced zero chunks"))
	}

	if err := uc.advance(ctx, doc, domain.StatusChunked); err != nil {
		return nil, err
	}
	return chunks, nil
}

// embedAndIndex embeds chunk by chunk, skipping chunks the embedder
// cannot vectorize, and upserts survivors in page/ordinal order so
// insertion-order tie-breaks stay reproducible across re-processing.
func (uc *ProcessDocumentUseCase) embedAndIndex(ctx context.Context, doc *domain.Document, chunks []domain.Chunk) error {
	kept := make([]domain.Chunk, 0, len(chunks))
	vectors := make([][]float32, 0, len(chunks))
	skipped := 0
	for _, chunk := range chunks {
		vecs, err := uc.embedder.Embed(ctx, []string{chunk.Text})
		if err != nil {
			if domain.IsKind(err, domain.ErrEmbedding) {
				skipped++
				slog.Warn("chunk skipped, embedding failed",
					"document_id", doc.ID, "chunk_id", chunk.ID, "error", err)
				continue
			}
			return fmt.Errorf("embed chunk %s: %w", chunk.ID, err)
		}
		if len(vecs) != 1 {
			return domain.WrapError(domain.ErrEmbedding, "embed chunk",
				fmt.Errorf("%d vectors for one chunk", len(vecs)))
		}
		kept = append(kept, chunk)
		vectors = append(vectors, vecs[0])
	}
	if len(kept) == 0 {
		return domain.WrapError(domain.ErrEmbedding, "index document",
			errors.New("no chunk produced a usable vector"))
	}

	if err := uc.vectorDB.IndexChunks(ctx, doc, kept, vectors); err != nil {
		return fmt.Errorf("index chunks in vector db: %w", err)
	}
	uc.observer.ChunksIndexed(len(kept), skipped)

	uc.supersede(ctx, doc)

	return uc.advance(ctx, doc, domain.StatusIndexed)
}

// supersede drops index partitions of older documents that share this
// filename but carry different content. The new partition is already
// live, so queries never lose coverage mid-swap.
func (uc *ProcessDocumentUseCase) supersede(ctx context.Context, doc *domain.Document) {
	others, err := uc.repo.FindByFilename(ctx, doc.Filename)
	if err != nil {
		slog.Warn("supersession lookup failed", "document_id", doc.ID, "error", err)
		return
	}
	for _, other := range others {
		if other.ID == doc.ID {
			continue
		}
		if err := uc.vectorDB.DeleteDocument(ctx, other.ID); err != nil {
			slog.Warn("supersession delete failed",
				"document_id", doc.ID, "superseded_id", other.ID, "error", err)
			continue
		}
		slog.Info("superseded prior document index",
			"document_id", doc.ID, "superseded_id", other.ID, "filename", doc.Filename)
	}
}

func (uc *ProcessDocumentUseCase) advance(ctx context.Context, doc *domain.Document, status domain.DocumentStatus) error {
	if err := uc.markStatus(ctx, doc.ID, status, ""); err != nil {
		return fmt.Errorf("set status=%s: %w", status, err)
	}
	doc.Status = status
	uc.observer.StageCompleted(string(status))
	return nil
}

func (uc *ProcessDocumentUseCase) markStatus(ctx context.Context, documentID string, status domain.DocumentStatus, errMessage string) error {
	return uc.repo.UpdateStatus(ctx, documentID, status, errMessage)
}
