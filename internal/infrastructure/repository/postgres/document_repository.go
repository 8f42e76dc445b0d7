package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *DocumentRepository) EnsureSchema(ctx context.Context) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Serialize bootstrap DDL across api/worker startups.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, int64(2026082101)); err != nil {
		return fmt.Errorf("acquire schema lock: %w", err)
	}

	const query = `
CREATE TABLE IF NOT EXISTS documents (
	id TEXT PRIMARY KEY,
	filename TEXT NOT NULL,
	mime_type TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	page_count INTEGER NOT NULL DEFAULT 0,
	status TEXT NOT NULL,
	error_message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_documents_status ON documents(status);
CREATE INDEX IF NOT EXISTS idx_documents_filename ON documents(filename);
CREATE INDEX IF NOT EXISTS idx_documents_created_at ON documents(created_at DESC);

CREATE TABLE IF NOT EXISTS document_pages (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	page_number INTEGER NOT NULL,
	content TEXT NOT NULL,
	PRIMARY KEY (document_id, page_number)
);

CREATE TABLE IF NOT EXISTS document_images (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	page_number INTEGER NOT NULL,
	position INTEGER NOT NULL,
	filename TEXT NOT NULL,
	storage_path TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL,
	PRIMARY KEY (document_id, page_number, position)
);
`
	if _, err := tx.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("execute schema ddl: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema tx: %w", err)
	}
	return nil
}

func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO documents (
	id, filename, mime_type, storage_path, page_count, status, error_message, created_at, updated_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`,
		doc.ID, doc.Filename, doc.MimeType, doc.StoragePath, doc.PageCount,
		string(doc.Status), doc.Error, doc.CreatedAt, doc.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	return nil
}

// GetByID returns the document hydrated with its pages and per-page
// image descriptors.
func (r *DocumentRepository) GetByID(ctx context.Context, id string) (*domain.Document, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, filename, mime_type, storage_path, page_count, status, error_message, created_at, updated_at
FROM documents
WHERE id = $1
`, id)

	doc, err := scanDocument(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
		}
		return nil, fmt.Errorf("scan document: %w", err)
	}

	if err := r.loadPages(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (r *DocumentRepository) List(ctx context.Context, limit int) ([]domain.Document, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx, `
SELECT id, filename, mime_type, storage_path, page_count, status, error_message, created_at, updated_at
FROM documents
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

func (r *DocumentRepository) FindByFilename(ctx context.Context, filename string) ([]domain.Document, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, filename, mime_type, storage_path, page_count, status, error_message, created_at, updated_at
FROM documents
WHERE filename = $1
ORDER BY created_at DESC
`, filename)
	if err != nil {
		return nil, fmt.Errorf("find documents by filename: %w", err)
	}
	defer rows.Close()

	return collectDocuments(rows)
}

func (r *DocumentRepository) UpdateStatus(ctx context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	res, err := r.db.ExecContext(ctx, `
UPDATE documents
SET status = $2, error_message = $3, updated_at = $4
WHERE id = $1
`, id, string(status), errMessage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update document status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update document status result: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "update document status", fmt.Errorf("id %s", id))
	}
	return nil
}

// SavePages replaces the page set in one transaction and keeps the
// document's page_count in step with it.
func (r *DocumentRepository) SavePages(ctx context.Context, documentID string, pages []domain.Page) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin pages tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_pages WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("delete pages: %w", err)
	}
	for _, page := range pages {
		if _, err := tx.ExecContext(ctx, `
INSERT INTO document_pages (document_id, page_number, content) VALUES ($1,$2,$3)
`, documentID, page.Number, page.Text); err != nil {
			return fmt.Errorf("insert page %d: %w", page.Number, err)
		}
	}

	res, err := tx.ExecContext(ctx, `
UPDATE documents SET page_count = $2, updated_at = $3 WHERE id = $1
`, documentID, len(pages), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update page count: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update page count result: %w", err)
	}
	if affected == 0 {
		return domain.WrapError(domain.ErrDocumentNotFound, "save pages", fmt.Errorf("id %s", documentID))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit pages tx: %w", err)
	}
	return nil
}

// AttachImages replaces the document's image descriptors and hydrates
// doc.Pages with them. Callers validate page membership beforehand;
// repeated attachment during re-processing is idempotent.
func (r *DocumentRepository) AttachImages(ctx context.Context, doc *domain.Document, descriptors []domain.ImageDescriptor) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin images tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_images WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("delete images: %w", err)
	}

	positions := make(map[int]int)
	for _, d := range descriptors {
		position := positions[d.Page]
		positions[d.Page] = position + 1
		if _, err := tx.ExecContext(ctx, `
INSERT INTO document_images (document_id, page_number, position, filename, storage_path, description, status)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, doc.ID, d.Page, position, d.Filename, d.Path, d.Description, string(d.Status)); err != nil {
			return fmt.Errorf("insert image %s: %w", d.Filename, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit images tx: %w", err)
	}

	byPage := make(map[int][]domain.ImageDescriptor)
	for _, d := range descriptors {
		byPage[d.Page] = append(byPage[d.Page], d)
	}
	for i := range doc.Pages {
		doc.Pages[i].Images = byPage[doc.Pages[i].Number]
	}
	return nil
}

func (r *DocumentRepository) ImagesForPage(ctx context.Context, documentID string, page int) ([]domain.ImageDescriptor, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT filename, storage_path, description, status
FROM document_images
WHERE document_id = $1 AND page_number = $2
ORDER BY position
`, documentID, page)
	if err != nil {
		return nil, fmt.Errorf("query page images: %w", err)
	}
	defer rows.Close()

	var out []domain.ImageDescriptor
	for rows.Next() {
		d := domain.ImageDescriptor{DocumentID: documentID, Page: page}
		var status string
		if err := rows.Scan(&d.Filename, &d.Path, &d.Description, &status); err != nil {
			return nil, fmt.Errorf("scan page image: %w", err)
		}
		d.Status = domain.ImageStatus(status)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate page images: %w", err)
	}
	return out, nil
}

func (r *DocumentRepository) Stats(ctx context.Context) (domain.CorpusStats, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM documents),
	(SELECT COUNT(*) FROM document_pages),
	(SELECT COUNT(*) FROM document_images)
`)
	var stats domain.CorpusStats
	if err := row.Scan(&stats.Documents, &stats.Pages, &stats.Images); err != nil {
		return domain.CorpusStats{}, fmt.Errorf("scan corpus stats: %w", err)
	}
	return stats, nil
}

func (r *DocumentRepository) loadPages(ctx context.Context, doc *domain.Document) error {
	rows, err := r.db.QueryContext(ctx, `
SELECT page_number, content
FROM document_pages
WHERE document_id = $1
ORDER BY page_number
`, doc.ID)
	if err != nil {
		return fmt.Errorf("query pages: %w", err)
	}
	defer rows.Close()

	index := make(map[int]int)
	for rows.Next() {
		var page domain.Page
		if err := rows.Scan(&page.Number, &page.Text); err != nil {
			return fmt.Errorf("scan page: %w", err)
		}
		index[page.Number] = len(doc.Pages)
		doc.Pages = append(doc.Pages, page)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate pages: %w", err)
	}
	if len(doc.Pages) == 0 {
		return nil
	}

	imageRows, err := r.db.QueryContext(ctx, `
SELECT page_number, filename, storage_path, description, status
FROM document_images
WHERE document_id = $1
ORDER BY page_number, position
`, doc.ID)
	if err != nil {
		return fmt.Errorf("query images: %w", err)
	}
	defer imageRows.Close()

	for imageRows.Next() {
		d := domain.ImageDescriptor{DocumentID: doc.ID}
		var status string
		if err := imageRows.Scan(&d.Page, &d.Filename, &d.Path, &d.Description, &status); err != nil {
			return fmt.Errorf("scan image: %w", err)
		}
		d.Status = domain.ImageStatus(status)
		if i, ok := index[d.Page]; ok {
			doc.Pages[i].Images = append(doc.Pages[i].Images, d)
		}
	}
	if err := imageRows.Err(); err != nil {
		return fmt.Errorf("iterate images: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var doc domain.Document
	var status string
	// error_message is nullable in the schema.
	var errMsg sql.NullString
	err := row.Scan(
		&doc.ID, &doc.Filename, &doc.MimeType, &doc.StoragePath, &doc.PageCount,
		&status, &errMsg, &doc.CreatedAt, &doc.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	doc.Status = domain.DocumentStatus(status)
	doc.Error = errMsg.String
	return &doc, nil
}

func collectDocuments(rows *sql.Rows) ([]domain.Document, error) {
	var out []domain.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document row: %w", err)
		}
		out = append(out, *doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}
	return out, nil
}
