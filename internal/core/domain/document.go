package domain

import (
	"fmt"
	"time"
)

type DocumentStatus string

const (
	StatusUploaded        DocumentStatus = "uploaded"
	StatusTextExtracted   DocumentStatus = "text_extracted"
	StatusImagesExtracted DocumentStatus = "images_extracted"
	StatusImagesDescribed DocumentStatus = "images_described"
	StatusEnriched        DocumentStatus = "enriched"
	StatusChunked         DocumentStatus = "chunked"
	StatusIndexed         DocumentStatus = "indexed"
	StatusFailed          DocumentStatus = "failed"
)

type Document struct {
	ID          string         `json:"id"`
	Filename    string         `json:"filename"`
	MimeType    string         `json:"mime_type"`
	StoragePath string         `json:"storage_path"`
	PageCount   int            `json:"page_count"`
	Status      DocumentStatus `json:"status"`
	Error       string         `json:"error,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`

	Pages []Page `json:"pages,omitempty"`
}

// Page holds one page's raw text plus its extracted images in extraction
// order. Enriched text is derived on demand, never stored here.
type Page struct {
	Number int               `json:"number"`
	Text   string            `json:"text"`
	Images []ImageDescriptor `json:"images,omitempty"`
}

type ImageStatus string

const (
	ImageStatusPending ImageStatus = "pending"
	ImageStatusSuccess ImageStatus = "success"
	ImageStatusFailed  ImageStatus = "failed"
)

// PlaceholderDescription stands in when description generation fails, so
// every extracted image keeps its slot in the page's image section.
const PlaceholderDescription = "[Image from document - description unavailable]"

type ImageDescriptor struct {
	DocumentID  string      `json:"document_id"`
	Page        int         `json:"page"`
	Filename    string      `json:"filename"`
	Path        string      `json:"path"`
	Description string      `json:"description"`
	Status      ImageStatus `json:"status"`
}

// ChunkKindText is the only chunk kind: image descriptions are merged into
// page text before chunking, never indexed as separate units.
const ChunkKindText = "text"

type Chunk struct {
	ID         string `json:"id"`
	DocumentID string `json:"document_id"`
	Page       int    `json:"page"`
	Ordinal    int    `json:"ordinal"`
	Kind       string `json:"kind"`
	Text       string `json:"text"`
}

// ChunkID is deterministic so re-processing a document upserts the same
// records instead of duplicating them.
func ChunkID(documentID string, page, ordinal int) string {
	return fmt.Sprintf("%s:%d:%d", documentID, page, ordinal)
}

type EnrichedPage struct {
	Number int    `json:"number"`
	Text   string `json:"text"`
}

type EnrichedDocument struct {
	DocumentID string         `json:"document_id"`
	Filename   string         `json:"filename"`
	Pages      []EnrichedPage `json:"pages"`
	Markdown   string         `json:"markdown"`
}
