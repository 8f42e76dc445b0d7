// Package memory is a brute-force in-process vector store. It is the
// default index backend: no external service, exact cosine scores, and
// fully deterministic ordering. Suitable for corpora that fit in RAM.
package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

type record struct {
	chunk    domain.Chunk
	filename string
	vector   []float32
}

type Store struct {
	mu      sync.RWMutex
	records map[string]*record
	order   []string
	byDoc   map[string]map[string]struct{}
	dim     int
}

func NewStore() *Store {
	return &Store{
		records: make(map[string]*record),
		byDoc:   make(map[string]map[string]struct{}),
	}
}

// IndexChunks upserts by chunk id. A re-indexed chunk keeps its original
// insertion position so repeated processing of the same document cannot
// shuffle equal-score search results.
func (s *Store) IndexChunks(ctx context.Context, doc *domain.Document, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return domain.WrapError(domain.ErrInvalidInput, "index chunks",
			fmt.Errorf("%d chunks, %d vectors", len(chunks), len(vectors)))
	}
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dim == 0 {
		s.dim = len(vectors[0])
	}
	for i, v := range vectors {
		if len(v) == 0 || len(v) != s.dim {
			return domain.WrapError(domain.ErrInvalidInput, "index chunks",
				fmt.Errorf("vector %d has dimension %d, index dimension %d", i, len(v), s.dim))
		}
	}

	for i, chunk := range chunks {
		vec := make([]float32, len(vectors[i]))
		copy(vec, vectors[i])

		if existing, ok := s.records[chunk.ID]; ok {
			existing.chunk = chunk
			existing.filename = doc.Filename
			existing.vector = vec
			continue
		}
		s.records[chunk.ID] = &record{chunk: chunk, filename: doc.Filename, vector: vec}
		s.order = append(s.order, chunk.ID)
		set, ok := s.byDoc[chunk.DocumentID]
		if !ok {
			set = make(map[string]struct{})
			s.byDoc[chunk.DocumentID] = set
		}
		set[chunk.ID] = struct{}{}
	}
	return nil
}

// Search scores every record and returns the top limit by descending
// cosine similarity. Equal scores rank by insertion order. An empty index
// returns no results and no error.
func (s *Store) Search(ctx context.Context, queryVector []float32, limit int) ([]domain.RetrievedChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.records) == 0 || limit <= 0 {
		return nil, nil
	}
	if len(queryVector) != s.dim {
		return nil, domain.WrapError(domain.ErrSearch, "vector search",
			fmt.Errorf("query dimension %d, index dimension %d", len(queryVector), s.dim))
	}

	results := make([]domain.RetrievedChunk, 0, len(s.order))
	for _, id := range s.order {
		rec := s.records[id]
		results = append(results, domain.RetrievedChunk{
			ChunkID:    rec.chunk.ID,
			DocumentID: rec.chunk.DocumentID,
			Filename:   rec.filename,
			Page:       rec.chunk.Page,
			Kind:       rec.chunk.Kind,
			Text:       rec.chunk.Text,
			Score:      cosine(queryVector, rec.vector),
		})
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > limit {
		results = results[:limit]
	}
	return results, nil
}

// DeleteDocument drops every chunk of one document. Unknown ids are a
// no-op. An emptied index forgets its dimension so a rebuilt corpus may
// use a different embedder.
func (s *Store) DeleteDocument(ctx context.Context, documentID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids, ok := s.byDoc[documentID]
	if !ok {
		return nil
	}
	for id := range ids {
		delete(s.records, id)
	}
	delete(s.byDoc, documentID)

	kept := s.order[:0]
	for _, id := range s.order {
		if _, gone := ids[id]; !gone {
			kept = append(kept, id)
		}
	}
	s.order = kept

	if len(s.records) == 0 {
		s.dim = 0
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (domain.IndexStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := domain.IndexStats{
		Documents: len(s.byDoc),
		Chunks:    len(s.records),
		ByDoc:     make(map[string]int, len(s.byDoc)),
	}
	for docID, ids := range s.byDoc {
		stats.ByDoc[docID] = len(ids)
	}
	return stats, nil
}

// cosine normalizes both operands: stored vectors may come from an
// embedder that does not emit unit vectors.
func cosine(a, b []float32) float64 {
	var dot, normA, normB float64
	for i := range a {
		av, bv := float64(a[i]), float64(b[i])
		dot += av * bv
		normA += av * av
		normB += bv * bv
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
