// Package local provides a deterministic hashing embedder. Tokens are
// hashed into a fixed number of buckets and weighted by log-scaled term
// frequency, so equal text always produces equal vectors without any
// external model service. Quality is lexical, not semantic; the embedder
// exists so the pipeline runs self-contained and swaps cleanly for a model
// backed implementation.
package local

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/kirillkom/pdf-rag-assistant/internal/core/domain"
)

// DefaultDimension matches the common footprint of small sentence
// embedding models so a later swap keeps collection shapes unchanged.
const DefaultDimension = 384

type Embedder struct {
	dim int
}

func New(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dim: dimension}
}

// Dimension reports the fixed length of every vector this embedder emits.
func (e *Embedder) Dimension() int { return e.dim }

func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, text := range texts {
		vec, err := e.embedOne(text)
		if err != nil {
			return nil, err
		}
		out = append(out, vec)
	}
	return out, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	return e.embedOne(text)
}

// embedOne accumulates token counts per bucket, then walks buckets in index
// order to apply weights and the L2 norm. Iteration stays off maps so the
// float accumulation order, and therefore the output, is stable.
func (e *Embedder) embedOne(text string) ([]float32, error) {
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return nil, domain.WrapError(domain.ErrEmbedding, "embed text", errors.New("no tokens"))
	}

	counts := make([]float64, e.dim)
	for _, token := range tokens {
		counts[hashToken(token)%uint32(e.dim)]++
	}

	weights := make([]float64, e.dim)
	var sumSquares float64
	for i, c := range counts {
		if c == 0 {
			continue
		}
		w := 1 + math.Log(c)
		weights[i] = w
		sumSquares += w * w
	}

	norm := math.Sqrt(sumSquares)
	vec := make([]float32, e.dim)
	for i, w := range weights {
		if w == 0 {
			continue
		}
		vec[i] = float32(w / norm)
	}
	return vec, nil
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}

func tokenize(s string) []string {
	if s == "" {
		return nil
	}
	out := make([]string, 0, 32)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			out = append(out, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		out = append(out, b.String())
	}
	return out
}
