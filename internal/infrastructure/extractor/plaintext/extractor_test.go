package plaintext

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type fakeStorage struct {
	files map[string][]byte
}

func (f *fakeStorage) Save(ctx context.Context, key string, data io.Reader) error { return nil }

func (f *fakeStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.files[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *fakeStorage) List(ctx context.Context, prefix string) ([]string, error) { return nil, nil }

func TestExtractPagesSinglePage(t *testing.T) {
	storage := &fakeStorage{files: map[string][]byte{
		"docs/notes.txt": []byte("  First line.\nSecond line.\n\n"),
	}}
	e := NewExtractor(storage)

	pages, err := e.ExtractPages(context.Background(), &domain.Document{
		Filename:    "notes.txt",
		StoragePath: "docs/notes.txt",
	})
	if err != nil {
		t.Fatalf("ExtractPages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("expected 1 page, got %d", len(pages))
	}
	if pages[0].Number != 1 {
		t.Fatalf("page number = %d, want 1", pages[0].Number)
	}
	if pages[0].Text != "First line.\nSecond line." {
		t.Fatalf("unexpected text: %q", pages[0].Text)
	}
}

func TestExtractPagesEmptyFile(t *testing.T) {
	storage := &fakeStorage{files: map[string][]byte{"docs/empty.txt": []byte("   \n")}}
	e := NewExtractor(storage)

	pages, err := e.ExtractPages(context.Background(), &domain.Document{
		Filename:    "empty.txt",
		StoragePath: "docs/empty.txt",
	})
	if err != nil {
		t.Fatalf("ExtractPages: %v", err)
	}
	if len(pages) != 1 || pages[0].Text != "" {
		t.Fatalf("empty file should yield one empty page, got %+v", pages)
	}
}

func TestExtractPagesRejectsBinary(t *testing.T) {
	storage := &fakeStorage{files: map[string][]byte{"docs/blob.txt": {0xff, 0xfe, 0x00, 0x01}}}
	e := NewExtractor(storage)

	_, err := e.ExtractPages(context.Background(), &domain.Document{
		Filename:    "blob.txt",
		StoragePath: "docs/blob.txt",
	})
	if !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
}

func TestExtractPagesMissingObject(t *testing.T) {
	e := NewExtractor(&fakeStorage{files: map[string][]byte{}})

	_, err := e.ExtractPages(context.Background(), &domain.Document{
		Filename:    "gone.txt",
		StoragePath: "docs/gone.txt",
	})
	if !errors.Is(err, domain.ErrExtraction) {
		t.Fatalf("err = %v, want ErrExtraction", err)
	}
}
