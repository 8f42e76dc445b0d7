package enrich

import (
	"strings"
	"testing"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

func TestEnrichPageWithoutImagesIsVerbatim(t *testing.T) {
	page := domain.Page{Number: 1, Text: "Plain page text.\n\nSecond paragraph."}

	got := EnrichPage(page)
	if got != page.Text {
		t.Fatalf("EnrichPage() = %q, want raw text unchanged", got)
	}
	if strings.Contains(got, "[IMAGES ON THIS PAGE]") {
		t.Fatalf("image section emitted for image-free page")
	}
}

func TestEnrichPageAppendsImageSection(t *testing.T) {
	page := domain.Page{
		Number: 3,
		Text:   "Figure 1 shows the model.",
		Images: []domain.ImageDescriptor{
			{Page: 3, Filename: "fig1.png", Description: "A diagram of layers.", Status: domain.ImageStatusSuccess},
		},
	}

	got := EnrichPage(page)
	if !strings.HasPrefix(got, page.Text) {
		t.Fatalf("enriched text does not start with raw text: %q", got)
	}
	want := page.Text + "\n\n---\n**[IMAGES ON THIS PAGE]:**\n\n- **Image: fig1.png**\n  A diagram of layers.\n"
	if got != want {
		t.Fatalf("EnrichPage() = %q, want %q", got, want)
	}
}

func TestEnrichPageKeepsFailedImageSlots(t *testing.T) {
	page := domain.Page{
		Number: 5,
		Text:   "Three figures on this page.",
		Images: []domain.ImageDescriptor{
			{Page: 5, Filename: "a.png", Description: "First chart.", Status: domain.ImageStatusSuccess},
			{Page: 5, Filename: "b.png", Description: domain.PlaceholderDescription, Status: domain.ImageStatusFailed},
			{Page: 5, Filename: "c.png", Description: "Third chart.", Status: domain.ImageStatusSuccess},
		},
	}

	got := EnrichPage(page)
	for _, name := range []string{"a.png", "b.png", "c.png"} {
		if !strings.Contains(got, "**Image: "+name+"**") {
			t.Fatalf("missing entry for %s in %q", name, got)
		}
	}
	if !strings.Contains(got, domain.PlaceholderDescription) {
		t.Fatalf("failed image lost its placeholder slot")
	}
	if strings.Index(got, "a.png") > strings.Index(got, "b.png") ||
		strings.Index(got, "b.png") > strings.Index(got, "c.png") {
		t.Fatalf("image entries out of extraction order: %q", got)
	}
}

func TestEnrichPageUsesPlaceholderForEmptyDescription(t *testing.T) {
	page := domain.Page{
		Number: 2,
		Text:   "Text.",
		Images: []domain.ImageDescriptor{
			{Page: 2, Filename: "x.png", Status: domain.ImageStatusPending},
		},
	}

	got := EnrichPage(page)
	if !strings.Contains(got, domain.PlaceholderDescription) {
		t.Fatalf("expected placeholder for empty description, got %q", got)
	}
}

func TestEnrichDocumentRendersPageMarkers(t *testing.T) {
	doc := &domain.Document{
		ID:       "doc-1",
		Filename: "paper.pdf",
		Pages: []domain.Page{
			{Number: 1, Text: "First page."},
			{Number: 2, Text: "Second page.", Images: []domain.ImageDescriptor{
				{Page: 2, Filename: "fig.png", Description: "A bar chart."},
			}},
		},
	}

	enriched := New().Enrich(doc)
	if len(enriched.Pages) != 2 {
		t.Fatalf("expected 2 enriched pages, got %d", len(enriched.Pages))
	}
	if enriched.Pages[0].Text != "First page." {
		t.Fatalf("image-free page mutated: %q", enriched.Pages[0].Text)
	}
	if !strings.Contains(enriched.Markdown, "## Page 1\n\n") || !strings.Contains(enriched.Markdown, "## Page 2\n\n") {
		t.Fatalf("markdown missing page markers: %q", enriched.Markdown)
	}
	if !strings.Contains(enriched.Markdown, "A bar chart.") {
		t.Fatalf("markdown missing image description")
	}
	if doc.Pages[1].Text != "Second page." {
		t.Fatalf("source document mutated by enrichment")
	}
}

func TestEnrichIsDeterministic(t *testing.T) {
	doc := &domain.Document{
		ID: "doc-1",
		Pages: []domain.Page{
			{Number: 1, Text: "Alpha.", Images: []domain.ImageDescriptor{
				{Page: 1, Filename: "one.png", Description: "First."},
				{Page: 1, Filename: "two.png", Description: "Second."},
			}},
		},
	}

	first := New().Enrich(doc)
	second := New().Enrich(doc)
	if first.Markdown != second.Markdown {
		t.Fatalf("enrichment not deterministic")
	}
	if first.Pages[0].Text != second.Pages[0].Text {
		t.Fatalf("page enrichment not deterministic")
	}
}
