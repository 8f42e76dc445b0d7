// Package poppler extracts embedded page images from PDFs by shelling out
// to pdfimages. Extracted files are renamed to a stable per-page scheme
// and stored in object storage so descriptions and API reads never depend
// on worker-local scratch space.
package poppler

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
	"github.com/kirillkom/pdf-rag-assistant/internal/core/ports"
)

// CommandRunner executes one external command and returns its combined
// output. It exists so tests can stand in for the poppler binaries.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type execRunner struct{}

func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

func DefaultRunner() CommandRunner { return execRunner{} }

// producedName matches pdfimages -p output: root-<page>-<index>.png with
// zero-padded numbers.
var producedName = regexp.MustCompile(`^img-(\d+)-(\d+)\.png$`)

type Extractor struct {
	storage ports.ObjectStorage
	runner  CommandRunner
}

func NewExtractor(storage ports.ObjectStorage, runner CommandRunner) *Extractor {
	if runner == nil {
		runner = DefaultRunner()
	}
	return &Extractor{storage: storage, runner: runner}
}

// ExtractImages pulls raster images out of a stored PDF and returns
// pending descriptors ordered by page, then by position on the page.
// Non-PDF documents have no embedded images and return an empty result.
func (e *Extractor) ExtractImages(ctx context.Context, doc *domain.Document) ([]domain.ImageDescriptor, error) {
	if strings.ToLower(filepath.Ext(doc.Filename)) != ".pdf" {
		return nil, nil
	}

	scratch, err := os.MkdirTemp("", "pageimages-*")
	if err != nil {
		return nil, fmt.Errorf("create scratch dir: %w", err)
	}
	defer os.RemoveAll(scratch)

	srcPath := filepath.Join(scratch, "source.pdf")
	if err := e.fetchSource(ctx, doc.StoragePath, srcPath); err != nil {
		return nil, err
	}

	root := filepath.Join(scratch, "img")
	out, err := e.runner.Run(ctx, "pdfimages", "-p", "-png", srcPath, root)
	if err != nil {
		return nil, fmt.Errorf("run pdfimages: %w: %s", err, bytes.TrimSpace(out))
	}

	produced, err := collectProduced(scratch)
	if err != nil {
		return nil, err
	}

	stem := strings.TrimSuffix(doc.Filename, filepath.Ext(doc.Filename))
	descriptors := make([]domain.ImageDescriptor, 0, len(produced))
	perPage := make(map[int]int)
	for _, p := range produced {
		perPage[p.page]++
		name := fmt.Sprintf("%s_page_%d_img_%d.png", stem, p.page, perPage[p.page])
		key := fmt.Sprintf("images/%s/%s", doc.ID, name)

		f, err := os.Open(filepath.Join(scratch, p.file))
		if err != nil {
			return nil, fmt.Errorf("open extracted image: %w", err)
		}
		saveErr := e.storage.Save(ctx, key, f)
		f.Close()
		if saveErr != nil {
			return nil, fmt.Errorf("store extracted image: %w", saveErr)
		}

		descriptors = append(descriptors, domain.ImageDescriptor{
			DocumentID: doc.ID,
			Page:       p.page,
			Filename:   name,
			Path:       key,
			Status:     domain.ImageStatusPending,
		})
	}
	return descriptors, nil
}

func (e *Extractor) fetchSource(ctx context.Context, storagePath, dst string) error {
	reader, err := e.storage.Open(ctx, storagePath)
	if err != nil {
		return fmt.Errorf("open source document: %w", err)
	}
	defer reader.Close()

	f, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create scratch copy: %w", err)
	}
	defer f.Close()

	if _, err := io.Copy(f, reader); err != nil {
		return fmt.Errorf("copy source document: %w", err)
	}
	return nil
}

type producedImage struct {
	file  string
	page  int
	index int
}

func collectProduced(dir string) ([]producedImage, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("list extracted images: %w", err)
	}

	produced := make([]producedImage, 0, len(entries))
	for _, entry := range entries {
		m := producedName.FindStringSubmatch(entry.Name())
		if m == nil {
			continue
		}
		page, _ := strconv.Atoi(m[1])
		index, _ := strconv.Atoi(m[2])
		produced = append(produced, producedImage{file: entry.Name(), page: page, index: index})
	}
	sort.Slice(produced, func(i, j int) bool {
		if produced[i].page != produced[j].page {
			return produced[i].page < produced[j].page
		}
		return produced[i].index < produced[j].index
	})
	return produced, nil
}
