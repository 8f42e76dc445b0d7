package usecase

import (
	"context"
	"strings"
	"testing"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/embed/local"
	"github.com/kirillkom/pdf-rag-assistant/internal/infrastructure/vector/memory"
)

// indexTexts loads one chunk per text into the store, pages numbered by
// the given page slice.
func indexTexts(t *testing.T, store *memory.Store, embedder *local.Embedder, doc *domain.Document, pages []int, texts []string) {
	t.Helper()
	chunks := make([]domain.Chunk, len(texts))
	ordinals := make(map[int]int)
	for i, text := range texts {
		ordinal := ordinals[pages[i]]
		ordinals[pages[i]] = ordinal + 1
		chunks[i] = domain.Chunk{
			ID:         domain.ChunkID(doc.ID, pages[i], ordinal),
			DocumentID: doc.ID,
			Page:       pages[i],
			Ordinal:    ordinal,
			Kind:       domain.ChunkKindText,
			Text:       text,
		}
	}
	vectors, err := embedder.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed() error = %v", err)
	}
	if err := store.IndexChunks(context.Background(), doc, chunks, vectors); err != nil {
		t.Fatalf("IndexChunks() error = %v", err)
	}
}

func TestAnswerContextReturnsExactMatchFirst(t *testing.T) {
	store := memory.NewStore()
	embedder := local.New(128)
	doc := &domain.Document{ID: "docQ", Filename: "corpus.pdf"}
	repo := newRepoFake(doc)

	texts := []string{
		"alpha bravo charlie",
		"delta echo foxtrot",
		"golf hotel india",
		"juliet kilo lima",
		"mike november oscar",
		"papa quebec romeo",
		"sierra tango uniform",
		"victor whiskey xray",
		"yankee zulu alpha",
		"bravo delta golf",
	}
	pages := []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	indexTexts(t, store, embedder, doc, pages, texts)

	uc := NewQueryUseCase(embedder, store, repo, &generatorFake{}, 5)
	bundle, err := uc.AnswerContext(context.Background(), "delta echo foxtrot", 5)
	if err != nil {
		t.Fatalf("AnswerContext() error = %v", err)
	}
	if len(bundle.Sources) == 0 {
		t.Fatalf("expected sources")
	}
	first := bundle.Sources[0]
	if first.Text != "delta echo foxtrot" {
		t.Fatalf("expected exact-match chunk first, got %q (score %f)", first.Text, first.Score)
	}
	if first.Score < 0.9999 {
		t.Fatalf("expected self-similarity ~1.0, got %f", first.Score)
	}
	for _, src := range bundle.Sources[1:] {
		if src.Score > first.Score {
			t.Fatalf("sources not in descending score order")
		}
	}
}

func TestAnswerContextDeduplicatesByPage(t *testing.T) {
	store := memory.NewStore()
	embedder := local.New(128)
	doc := &domain.Document{ID: "docD", Filename: "dup.pdf"}
	repo := newRepoFake(doc)

	// Two chunks on page 7 speak about the same topic; both score high
	// for the query, only one may be cited.
	texts := []string{
		"quarterly revenue grew strongly",
		"revenue grew in the quarter again",
		"unrelated appendix material",
	}
	pages := []int{7, 7, 2}
	indexTexts(t, store, embedder, doc, pages, texts)

	uc := NewQueryUseCase(embedder, store, repo, &generatorFake{}, 5)
	bundle, err := uc.AnswerContext(context.Background(), "revenue grew", 5)
	if err != nil {
		t.Fatalf("AnswerContext() error = %v", err)
	}

	pagesSeen := make(map[int]int)
	for _, src := range bundle.Sources {
		pagesSeen[src.Page]++
	}
	if pagesSeen[7] != 1 {
		t.Fatalf("expected exactly one source for page 7, got %d", pagesSeen[7])
	}
	if bundle.Sources[0].Page != 7 {
		t.Fatalf("expected page 7 ranked first, got page %d", bundle.Sources[0].Page)
	}
}

func TestAnswerContextResolvesPageImages(t *testing.T) {
	store := memory.NewStore()
	embedder := local.New(128)
	doc := &domain.Document{
		ID:       "docI",
		Filename: "figures.pdf",
		Pages: []domain.Page{
			{Number: 1, Text: "intro", Images: []domain.ImageDescriptor{
				{DocumentID: "docI", Page: 1, Filename: "fig1.png", Path: "images/docI/fig1.png",
					Description: "A diagram of layers.", Status: domain.ImageStatusSuccess},
			}},
		},
	}
	repo := newRepoFake(doc)
	indexTexts(t, store, embedder, doc, []int{1}, []string{"intro with a figure about layers"})

	uc := NewQueryUseCase(embedder, store, repo, &generatorFake{}, 5)
	bundle, err := uc.AnswerContext(context.Background(), "figure layers", 5)
	if err != nil {
		t.Fatalf("AnswerContext() error = %v", err)
	}
	if len(bundle.Sources) != 1 {
		t.Fatalf("expected one source, got %d", len(bundle.Sources))
	}
	images := bundle.Sources[0].Images
	if len(images) != 1 || images[0].Filename != "fig1.png" {
		t.Fatalf("expected fig1.png resolved, got %v", images)
	}
	if !strings.Contains(bundle.Context, "[Source 1 - Page 1]") {
		t.Fatalf("context missing source label: %q", bundle.Context)
	}
}

func TestAnswerContextEmptyIndexReturnsEmptyBundle(t *testing.T) {
	uc := NewQueryUseCase(local.New(64), memory.NewStore(), newRepoFake(), &generatorFake{}, 5)

	bundle, err := uc.AnswerContext(context.Background(), "anything at all", 5)
	if err != nil {
		t.Fatalf("AnswerContext() error = %v", err)
	}
	if len(bundle.Sources) != 0 {
		t.Fatalf("expected no sources on empty index, got %d", len(bundle.Sources))
	}
	if bundle.Context != "" {
		t.Fatalf("expected empty context, got %q", bundle.Context)
	}
}

func TestAnswerContextRejectsEmptyQuestion(t *testing.T) {
	uc := NewQueryUseCase(local.New(64), memory.NewStore(), newRepoFake(), &generatorFake{}, 5)

	_, err := uc.AnswerContext(context.Background(), "   ", 5)
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestAskFeedsRenderedBundleToGenerator(t *testing.T) {
	store := memory.NewStore()
	embedder := local.New(128)
	doc := &domain.Document{ID: "docG", Filename: "gen.pdf"}
	repo := newRepoFake(doc)
	indexTexts(t, store, embedder, doc, []int{4}, []string{"the answer lives on page four"})

	generator := &generatorFake{answer: "It is on page four."}
	uc := NewQueryUseCase(embedder, store, repo, generator, 5)

	answer, err := uc.Ask(context.Background(), "where does the answer live", 5)
	if err != nil {
		t.Fatalf("Ask() error = %v", err)
	}
	if answer.Text != "It is on page four." {
		t.Fatalf("unexpected answer text %q", answer.Text)
	}
	if generator.bundle == nil || !strings.Contains(generator.bundle.Context, "page four") {
		t.Fatalf("generator did not receive the rendered bundle")
	}
	if len(answer.Sources) != 1 || answer.Sources[0].Page != 4 {
		t.Fatalf("expected page 4 citation, got %v", answer.Sources)
	}
}
