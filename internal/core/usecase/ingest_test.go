package usecase

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

func TestIngestUploadSuccess(t *testing.T) {
	repo := newRepoFake()
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue, nil)

	doc, err := uc.Upload(context.Background(), "annual report 1.pdf", "application/pdf", bytes.NewBufferString("%PDF-1.4 hello"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if len(doc.ID) != 16 {
		t.Fatalf("expected 16-char content id, got %q", doc.ID)
	}
	if doc.Status != domain.StatusUploaded {
		t.Fatalf("expected status uploaded, got %s", doc.Status)
	}
	if len(queue.published) != 1 || queue.published[0] != doc.ID {
		t.Fatalf("expected one queued event for %s, got %v", doc.ID, queue.published)
	}
	if !strings.HasSuffix(doc.StoragePath, "_annual_report_1.pdf") {
		t.Fatalf("expected sanitized storage key, got %s", doc.StoragePath)
	}
	if storage.objects[doc.StoragePath] != "%PDF-1.4 hello" {
		t.Fatalf("stored payload mismatch")
	}
}

func TestIngestUploadRejectsUnsupportedType(t *testing.T) {
	uc := NewIngestDocumentUseCase(newRepoFake(), newStorageFake(), &queueFake{}, nil)

	_, err := uc.Upload(context.Background(), "malware.exe", "application/octet-stream", bytes.NewBufferString("MZ"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIngestUploadAcceptsEveryExtractableFormat(t *testing.T) {
	uc := NewIngestDocumentUseCase(newRepoFake(), newStorageFake(), &queueFake{}, nil)

	for i, name := range []string{"a.pdf", "b.txt", "c.md", "d.markdown", "e.xlsx", "f.xlsm"} {
		body := bytes.NewBufferString(strings.Repeat("x", i+1))
		if _, err := uc.Upload(context.Background(), name, "application/octet-stream", body); err != nil {
			t.Fatalf("Upload(%s) error = %v", name, err)
		}
	}
}

func TestIngestUploadHonorsCallerExtensionList(t *testing.T) {
	uc := NewIngestDocumentUseCase(newRepoFake(), newStorageFake(), &queueFake{}, []string{".PDF"})

	if _, err := uc.Upload(context.Background(), "ok.pdf", "application/pdf", bytes.NewBufferString("x")); err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	_, err := uc.Upload(context.Background(), "notes.md", "text/markdown", bytes.NewBufferString("y"))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for extension outside caller list, got %v", err)
	}
}

func TestIngestUploadRejectsEmptyBody(t *testing.T) {
	uc := NewIngestDocumentUseCase(newRepoFake(), newStorageFake(), &queueFake{}, nil)

	_, err := uc.Upload(context.Background(), "empty.txt", "text/plain", bytes.NewBuffer(nil))
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestIngestUploadIdenticalBytesYieldSameDocument(t *testing.T) {
	repo := newRepoFake()
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue, nil)

	first, err := uc.Upload(context.Background(), "notes.md", "text/markdown", bytes.NewBufferString("same bytes"))
	if err != nil {
		t.Fatalf("first Upload() error = %v", err)
	}
	second, err := uc.Upload(context.Background(), "notes.md", "text/markdown", bytes.NewBufferString("same bytes"))
	if err != nil {
		t.Fatalf("second Upload() error = %v", err)
	}
	if first.ID != second.ID {
		t.Fatalf("identical content produced different ids: %s vs %s", first.ID, second.ID)
	}
	if len(queue.published) != 1 {
		t.Fatalf("duplicate upload must not be re-queued, got %d events", len(queue.published))
	}
}

func TestIngestUploadRequeuesFailedDocument(t *testing.T) {
	repo := newRepoFake()
	storage := newStorageFake()
	queue := &queueFake{}
	uc := NewIngestDocumentUseCase(repo, storage, queue, nil)

	doc, err := uc.Upload(context.Background(), "paper.pdf", "application/pdf", bytes.NewBufferString("content"))
	if err != nil {
		t.Fatalf("Upload() error = %v", err)
	}
	if err := repo.UpdateStatus(context.Background(), doc.ID, domain.StatusFailed, "extraction failed"); err != nil {
		t.Fatalf("UpdateStatus() error = %v", err)
	}

	again, err := uc.Upload(context.Background(), "paper.pdf", "application/pdf", bytes.NewBufferString("content"))
	if err != nil {
		t.Fatalf("retry Upload() error = %v", err)
	}
	if again.Status != domain.StatusUploaded {
		t.Fatalf("expected failed document reset to uploaded, got %s", again.Status)
	}
	if len(queue.published) != 2 {
		t.Fatalf("expected failed document requeued, got %d events", len(queue.published))
	}
}

func TestIngestUploadQueueError(t *testing.T) {
	queue := &queueFake{err: errors.New("queue down")}
	uc := NewIngestDocumentUseCase(newRepoFake(), newStorageFake(), queue, nil)

	_, err := uc.Upload(context.Background(), "report.txt", "text/plain", bytes.NewBufferString("hello"))
	if err == nil {
		t.Fatalf("expected error")
	}
	if !strings.Contains(err.Error(), "publish ingestion event") {
		t.Fatalf("expected publish error, got %v", err)
	}
}
