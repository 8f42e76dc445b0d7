package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type repoFake struct {
	mu   sync.Mutex
	docs map[string]*domain.Document

	statusLog   []domain.DocumentStatus
	savedPages  map[string][]domain.Page
	attached    []domain.ImageDescriptor
	attachCalls int

	createErr error
	pagesErr  error
	imagesErr error
}

func newRepoFake(docs ...*domain.Document) *repoFake {
	f := &repoFake{
		docs:       make(map[string]*domain.Document),
		savedPages: make(map[string][]domain.Page),
	}
	for _, doc := range docs {
		copyDoc := *doc
		f.docs[doc.ID] = &copyDoc
	}
	return f
}

func (f *repoFake) Create(_ context.Context, doc *domain.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	copyDoc := *doc
	f.docs[doc.ID] = &copyDoc
	return nil
}

func (f *repoFake) GetByID(_ context.Context, id string) (*domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrDocumentNotFound, "get document", fmt.Errorf("id %s", id))
	}
	copyDoc := *doc
	return &copyDoc, nil
}

func (f *repoFake) List(_ context.Context, _ int) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]domain.Document, 0, len(f.docs))
	for _, doc := range f.docs {
		out = append(out, *doc)
	}
	return out, nil
}

func (f *repoFake) FindByFilename(_ context.Context, filename string) ([]domain.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Document
	for _, doc := range f.docs {
		if doc.Filename == filename {
			out = append(out, *doc)
		}
	}
	return out, nil
}

func (f *repoFake) UpdateStatus(_ context.Context, id string, status domain.DocumentStatus, errMessage string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[id]
	if !ok {
		return domain.WrapError(domain.ErrDocumentNotFound, "update status", fmt.Errorf("id %s", id))
	}
	doc.Status = status
	doc.Error = errMessage
	f.statusLog = append(f.statusLog, status)
	return nil
}

func (f *repoFake) SavePages(_ context.Context, documentID string, pages []domain.Page) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pagesErr != nil {
		return f.pagesErr
	}
	f.savedPages[documentID] = pages
	if doc, ok := f.docs[documentID]; ok {
		doc.PageCount = len(pages)
		doc.Pages = pages
	}
	return nil
}

func (f *repoFake) AttachImages(_ context.Context, doc *domain.Document, descriptors []domain.ImageDescriptor) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attachCalls++
	f.attached = append([]domain.ImageDescriptor(nil), descriptors...)
	byPage := make(map[int][]domain.ImageDescriptor)
	for _, d := range descriptors {
		byPage[d.Page] = append(byPage[d.Page], d)
	}
	for i := range doc.Pages {
		doc.Pages[i].Images = byPage[doc.Pages[i].Number]
	}
	if stored, ok := f.docs[doc.ID]; ok {
		stored.Pages = doc.Pages
	}
	return nil
}

func (f *repoFake) ImagesForPage(_ context.Context, documentID string, page int) ([]domain.ImageDescriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.imagesErr != nil {
		return nil, f.imagesErr
	}
	doc, ok := f.docs[documentID]
	if !ok {
		return nil, nil
	}
	for _, p := range doc.Pages {
		if p.Number == page {
			return p.Images, nil
		}
	}
	return nil, nil
}

func (f *repoFake) Stats(_ context.Context) (domain.CorpusStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := domain.CorpusStats{Documents: len(f.docs)}
	for _, doc := range f.docs {
		stats.Pages += len(doc.Pages)
		for _, p := range doc.Pages {
			stats.Images += len(p.Images)
		}
	}
	return stats, nil
}

type storageFake struct {
	mu      sync.Mutex
	objects map[string]string
	saveErr error
}

func newStorageFake() *storageFake {
	return &storageFake{objects: make(map[string]string)}
}

func (f *storageFake) Save(_ context.Context, key string, data io.Reader) error {
	if f.saveErr != nil {
		return f.saveErr
	}
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[key] = string(raw)
	return nil
}

func (f *storageFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	body, ok := f.objects[key]
	if !ok {
		return nil, fmt.Errorf("no object %s", key)
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

func (f *storageFake) List(_ context.Context, prefix string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var keys []string
	for key := range f.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishDocumentIngested(_ context.Context, documentID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, documentID)
	return nil
}

func (f *queueFake) SubscribeDocumentIngested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type pageExtractorFake struct {
	pages []domain.Page
	err   error
}

func (f *pageExtractorFake) ExtractPages(context.Context, *domain.Document) ([]domain.Page, error) {
	return f.pages, f.err
}

type imageExtractorFake struct {
	descriptors []domain.ImageDescriptor
	err         error
}

func (f *imageExtractorFake) ExtractImages(context.Context, *domain.Document) ([]domain.ImageDescriptor, error) {
	return f.descriptors, f.err
}

// describerFake fails every path listed in failPaths and echoes a
// deterministic description otherwise.
type describerFake struct {
	mu        sync.Mutex
	failPaths map[string]struct{}
	calls     int
}

func newDescriberFake(failPaths ...string) *describerFake {
	f := &describerFake{failPaths: make(map[string]struct{})}
	for _, p := range failPaths {
		f.failPaths[p] = struct{}{}
	}
	return f
}

func (f *describerFake) Describe(_ context.Context, imagePath string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if _, fail := f.failPaths[imagePath]; fail {
		return "", domain.WrapError(domain.ErrDescription, "describe image", errors.New("vision model down"))
	}
	return "Description of " + imagePath, nil
}

type generatorFake struct {
	answer   string
	err      error
	question string
	bundle   *domain.ContextBundle
}

func (f *generatorFake) GenerateAnswer(_ context.Context, question string, bundle *domain.ContextBundle) (string, error) {
	f.question = question
	f.bundle = bundle
	if f.err != nil {
		return "", f.err
	}
	return f.answer, nil
}

type mdCacheFake struct {
	mu       sync.Mutex
	markdown map[string]string
	putErr   error
}

func newMdCacheFake() *mdCacheFake {
	return &mdCacheFake{markdown: make(map[string]string)}
}

func (f *mdCacheFake) Put(_ context.Context, doc *domain.Document, enriched *domain.EnrichedDocument) error {
	if f.putErr != nil {
		return f.putErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.markdown[doc.ID] = enriched.Markdown
	return nil
}

func (f *mdCacheFake) Get(_ context.Context, documentID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	text, ok := f.markdown[documentID]
	if !ok {
		return "", domain.WrapError(domain.ErrDocumentNotFound, "markdown cache", fmt.Errorf("no rendering for %s", documentID))
	}
	return text, nil
}
