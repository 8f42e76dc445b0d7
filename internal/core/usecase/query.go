package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

const DefaultTopK = 5

type QueryUseCase struct {
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	repo      ports.DocumentRepository
	generator ports.AnswerGenerator
	topK      int
}

func NewQueryUseCase(
	embedder ports.Embedder,
	vectorDB ports.VectorStore,
	repo ports.DocumentRepository,
	generator ports.AnswerGenerator,
	topK int,
) *QueryUseCase {
	if topK <= 0 {
		topK = DefaultTopK
	}
	return &QueryUseCase{
		embedder:  embedder,
		vectorDB:  vectorDB,
		repo:      repo,
		generator: generator,
		topK:      topK,
	}
}

// AnswerContext retrieves the cited context for a question without
// calling the answer generator: embed the query, search, keep the best
// chunk per page, resolve that page's display images, render labeled
// source blocks in descending score order.
func (uc *QueryUseCase) AnswerContext(ctx context.Context, question string, limit int) (*domain.ContextBundle, error) {
	if strings.TrimSpace(question) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "answer context",
			fmt.Errorf("empty question"))
	}
	if limit <= 0 {
		limit = uc.topK
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	chunks, err := uc.vectorDB.Search(ctx, queryVector, limit)
	if err != nil {
		return nil, fmt.Errorf("search vector db: %w", err)
	}

	sources := uc.assembleSources(ctx, chunks)
	return &domain.ContextBundle{
		Question: question,
		Sources:  sources,
		Context:  renderContext(sources),
	}, nil
}

// Ask feeds the assembled bundle to the answer generator. Retrieval
// stands on its own: AnswerContext never depends on the generator.
func (uc *QueryUseCase) Ask(ctx context.Context, question string, limit int) (*domain.Answer, error) {
	bundle, err := uc.AnswerContext(ctx, question, limit)
	if err != nil {
		return nil, err
	}

	text, err := uc.generator.GenerateAnswer(ctx, question, bundle)
	if err != nil {
		return nil, fmt.Errorf("generate answer: %w", err)
	}

	return &domain.Answer{
		Text:    text,
		Sources: bundle.Sources,
	}, nil
}

// assembleSources deduplicates by (document, page). Results arrive in
// descending score order, so the first chunk seen for a page is its best
// one; a page is never cited twice.
func (uc *QueryUseCase) assembleSources(ctx context.Context, chunks []domain.RetrievedChunk) []domain.SourceBlock {
	type pageKey struct {
		doc  string
		page int
	}
	seen := make(map[pageKey]struct{}, len(chunks))

	sources := make([]domain.SourceBlock, 0, len(chunks))
	for _, chunk := range chunks {
		key := pageKey{doc: chunk.DocumentID, page: chunk.Page}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		images, err := uc.repo.ImagesForPage(ctx, chunk.DocumentID, chunk.Page)
		if err != nil {
			// Missing display artifacts degrade the bundle, never fail it.
			slog.Warn("page image lookup failed",
				"document_id", chunk.DocumentID, "page", chunk.Page, "error", err)
			images = nil
		}

		sources = append(sources, domain.SourceBlock{
			Index:      len(sources) + 1,
			DocumentID: chunk.DocumentID,
			Filename:   chunk.Filename,
			Page:       chunk.Page,
			Text:       chunk.Text,
			Score:      chunk.Score,
			Images:     images,
		})
	}
	return sources
}

func renderContext(sources []domain.SourceBlock) string {
	if len(sources) == 0 {
		return ""
	}
	var b strings.Builder
	for i, src := range sources {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Source %d - Page %d] (%s, score %.4f)\n%s",
			src.Index, src.Page, src.Filename, src.Score, src.Text)
	}
	return b.String()
}
