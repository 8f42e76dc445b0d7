package poppler

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type fakeStorage struct {
	files map[string][]byte
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{files: make(map[string][]byte)}
}

func (f *fakeStorage) Save(ctx context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.files[key] = raw
	return nil
}

func (f *fakeStorage) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	raw, ok := f.files[key]
	if !ok {
		return nil, errors.New("no such object")
	}
	return io.NopCloser(bytes.NewReader(raw)), nil
}

func (f *fakeStorage) List(ctx context.Context, prefix string) ([]string, error) { return nil, nil }

// fakeRunner stands in for pdfimages: it drops files next to the output
// root the way the real binary does.
type fakeRunner struct {
	produce map[string][]byte
	err     error
	calls   int
}

func (r *fakeRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	r.calls++
	if r.err != nil {
		return []byte("pdfimages: boom"), r.err
	}
	root := args[len(args)-1]
	dir := filepath.Dir(root)
	for file, content := range r.produce {
		if err := os.WriteFile(filepath.Join(dir, file), content, 0o644); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func TestExtractImagesRenamesAndStores(t *testing.T) {
	storage := newFakeStorage()
	storage.files["docs/report.pdf"] = []byte("%PDF-1.4 stub")
	runner := &fakeRunner{produce: map[string][]byte{
		"img-001-000.png": []byte("png-a"),
		"img-001-001.png": []byte("png-b"),
		"img-003-002.png": []byte("png-c"),
	}}
	e := NewExtractor(storage, runner)

	doc := &domain.Document{ID: "doc1", Filename: "report.pdf", StoragePath: "docs/report.pdf"}
	got, err := e.ExtractImages(context.Background(), doc)
	if err != nil {
		t.Fatalf("ExtractImages: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 descriptors, got %d", len(got))
	}

	wantNames := []string{
		"report_page_1_img_1.png",
		"report_page_1_img_2.png",
		"report_page_3_img_1.png",
	}
	for i, d := range got {
		if d.Filename != wantNames[i] {
			t.Fatalf("descriptor %d filename = %q, want %q", i, d.Filename, wantNames[i])
		}
		if d.Status != domain.ImageStatusPending {
			t.Fatalf("descriptor %d status = %q, want pending", i, d.Status)
		}
		if d.DocumentID != "doc1" {
			t.Fatalf("descriptor %d document id = %q", i, d.DocumentID)
		}
		if _, ok := storage.files[d.Path]; !ok {
			t.Fatalf("descriptor %d path %q not stored", i, d.Path)
		}
	}
	if got[0].Page != 1 || got[1].Page != 1 || got[2].Page != 3 {
		t.Fatalf("pages: %d, %d, %d", got[0].Page, got[1].Page, got[2].Page)
	}
	if got[2].Path != "images/doc1/report_page_3_img_1.png" {
		t.Fatalf("storage key: %q", got[2].Path)
	}
}

func TestExtractImagesSkipsNonPDF(t *testing.T) {
	runner := &fakeRunner{}
	e := NewExtractor(newFakeStorage(), runner)

	got, err := e.ExtractImages(context.Background(), &domain.Document{
		ID: "doc1", Filename: "notes.txt", StoragePath: "docs/notes.txt",
	})
	if err != nil || got != nil {
		t.Fatalf("non-pdf should be a no-op, got %v, %v", got, err)
	}
	if runner.calls != 0 {
		t.Fatalf("pdfimages should not run for non-pdf input")
	}
}

func TestExtractImagesNoImages(t *testing.T) {
	storage := newFakeStorage()
	storage.files["docs/plain.pdf"] = []byte("%PDF-1.4 stub")
	e := NewExtractor(storage, &fakeRunner{produce: map[string][]byte{}})

	got, err := e.ExtractImages(context.Background(), &domain.Document{
		ID: "doc1", Filename: "plain.pdf", StoragePath: "docs/plain.pdf",
	})
	if err != nil {
		t.Fatalf("ExtractImages: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected no descriptors, got %d", len(got))
	}
}

func TestExtractImagesRunnerFailure(t *testing.T) {
	storage := newFakeStorage()
	storage.files["docs/report.pdf"] = []byte("%PDF-1.4 stub")
	e := NewExtractor(storage, &fakeRunner{err: errors.New("exit status 1")})

	_, err := e.ExtractImages(context.Background(), &domain.Document{
		ID: "doc1", Filename: "report.pdf", StoragePath: "docs/report.pdf",
	})
	if err == nil {
		t.Fatalf("expected error when pdfimages fails")
	}
}
