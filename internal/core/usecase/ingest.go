package usecase

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

// maxUploadBytes bounds how much of an upload is buffered for hashing.
const maxUploadBytes = 100 << 20

// defaultExtensions mirrors the extractor dispatcher's format table for
// callers that do not supply their own list.
var defaultExtensions = []string{".pdf", ".txt", ".md", ".markdown", ".xlsx", ".xlsm"}

type IngestDocumentUseCase struct {
	repo      ports.DocumentRepository
	storage   ports.ObjectStorage
	queue     ports.MessageQueue
	supported map[string]struct{}
}

// NewIngestDocumentUseCase validates uploads against supported, normally
// the extractor dispatcher's SupportedExtensions, so the upload gate and
// the extraction stage accept the same formats. An empty list falls back
// to the default table.
func NewIngestDocumentUseCase(
	repo ports.DocumentRepository,
	storage ports.ObjectStorage,
	queue ports.MessageQueue,
	supported []string,
) *IngestDocumentUseCase {
	if len(supported) == 0 {
		supported = defaultExtensions
	}
	set := make(map[string]struct{}, len(supported))
	for _, ext := range supported {
		set[strings.ToLower(ext)] = struct{}{}
	}
	return &IngestDocumentUseCase{
		repo:      repo,
		storage:   storage,
		queue:     queue,
		supported: set,
	}
}

// Upload stores the payload, registers the document, and queues it for
// processing. Document ids derive from content, so re-uploading identical
// bytes is an idempotent hit on the existing document instead of a
// duplicate ingestion.
func (uc *IngestDocumentUseCase) Upload(
	ctx context.Context,
	filename, mimeType string,
	body io.Reader,
) (*domain.Document, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := uc.supported[ext]; !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document",
			fmt.Errorf("unsupported file type %q", ext))
	}

	payload, err := io.ReadAll(io.LimitReader(body, maxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read upload body: %w", err)
	}
	if len(payload) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document",
			fmt.Errorf("empty upload"))
	}
	if len(payload) > maxUploadBytes {
		return nil, domain.WrapError(domain.ErrInvalidInput, "upload document",
			fmt.Errorf("upload exceeds %d bytes", maxUploadBytes))
	}

	id := contentID(payload)

	if existing, err := uc.repo.GetByID(ctx, id); err == nil {
		return uc.handleDuplicate(ctx, existing)
	} else if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		return nil, fmt.Errorf("check existing document: %w", err)
	}

	storageKey := fmt.Sprintf("%s_%s", id, sanitizeFilename(filename))
	now := time.Now().UTC()

	if err := uc.storage.Save(ctx, storageKey, bytes.NewReader(payload)); err != nil {
		return nil, fmt.Errorf("save to object storage: %w", err)
	}

	doc := &domain.Document{
		ID:          id,
		Filename:    filename,
		MimeType:    mimeType,
		StoragePath: storageKey,
		Status:      domain.StatusUploaded,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := uc.repo.Create(ctx, doc); err != nil {
		return nil, fmt.Errorf("create document metadata: %w", err)
	}

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}

	return doc, nil
}

// handleDuplicate re-queues a failed document so retrying an upload heals
// it; anything else is already queued or done and is returned as-is.
func (uc *IngestDocumentUseCase) handleDuplicate(ctx context.Context, doc *domain.Document) (*domain.Document, error) {
	if doc.Status != domain.StatusFailed {
		slog.Info("duplicate upload ignored", "document_id", doc.ID, "status", doc.Status)
		return doc, nil
	}

	if err := uc.repo.UpdateStatus(ctx, doc.ID, domain.StatusUploaded, ""); err != nil {
		return nil, fmt.Errorf("reset failed document: %w", err)
	}
	doc.Status = domain.StatusUploaded
	doc.Error = ""

	if err := uc.queue.PublishDocumentIngested(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("publish ingestion event: %w", err)
	}
	slog.Info("failed document requeued", "document_id", doc.ID)
	return doc, nil
}

func contentID(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])[:16]
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "" {
		return "document.bin"
	}
	return base
}
