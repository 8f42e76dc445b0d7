package chunking

import (
	"strings"
	"testing"
)

func TestSplitEmptyInput(t *testing.T) {
	s := NewSplitter(100, 10)
	if got := s.Split(""); got != nil {
		t.Fatalf("Split(\"\") = %v, want nil", got)
	}
	if got := s.Split("   \n\t  "); got != nil {
		t.Fatalf("Split(whitespace) = %v, want nil", got)
	}
}

func TestSplitShortTextYieldsOneChunk(t *testing.T) {
	s := NewSplitter(500, 50)
	got := s.Split("A page shorter than the chunk limit.")
	if len(got) != 1 {
		t.Fatalf("expected exactly one chunk, got %d", len(got))
	}
	if got[0] != "A page shorter than the chunk limit." {
		t.Fatalf("unexpected chunk: %q", got[0])
	}
}

func TestSplitBoundsChunkLength(t *testing.T) {
	s := NewSplitter(80, 10)
	text := strings.Repeat("alpha beta gamma delta epsilon zeta ", 40)

	chunks := s.Split(text)
	if len(chunks) < 2 {
		t.Fatalf("expected multiple chunks, got %d", len(chunks))
	}
	for i, c := range chunks {
		if n := len([]rune(c)); n > 80 {
			t.Fatalf("chunk %d has %d runes, limit 80", i, n)
		}
	}
}

func TestSplitPrefersParagraphBreak(t *testing.T) {
	first := strings.Repeat("a", 70)
	second := strings.Repeat("b", 70)
	s := NewSplitter(80, 0)

	chunks := s.Split(first + "\n\n" + second)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d: %q", len(chunks), chunks)
	}
	if chunks[0] != first {
		t.Fatalf("first chunk crosses the paragraph break: %q", chunks[0])
	}
	if chunks[1] != second {
		t.Fatalf("second chunk: %q", chunks[1])
	}
}

func TestSplitFallsBackToWhitespace(t *testing.T) {
	text := strings.Repeat("word ", 50)
	s := NewSplitter(60, 0)

	for i, c := range s.Split(text) {
		if strings.Contains(c, "wo rd") {
			t.Fatalf("chunk %d split inside a word: %q", i, c)
		}
		if !strings.HasPrefix(c, "word") || !strings.HasSuffix(c, "word") {
			t.Fatalf("chunk %d not cut at whitespace: %q", i, c)
		}
	}
}

func TestSplitHardCutWithoutBoundary(t *testing.T) {
	text := strings.Repeat("x", 250)
	s := NewSplitter(100, 0)

	chunks := s.Split(text)
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if len(chunks[0]) != 100 || len(chunks[1]) != 100 || len(chunks[2]) != 50 {
		t.Fatalf("unexpected hard-cut sizes: %d/%d/%d", len(chunks[0]), len(chunks[1]), len(chunks[2]))
	}
}

func TestSplitOverlapRepeatsTrailingRunes(t *testing.T) {
	text := strings.Repeat("y", 150)
	s := NewSplitter(100, 20)

	chunks := s.Split(text)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if len(chunks[1]) != 70 {
		t.Fatalf("second chunk should restart 20 runes back, got len %d", len(chunks[1]))
	}
}

func TestSplitDeterministic(t *testing.T) {
	text := strings.Repeat("the quick brown fox jumps over the lazy dog.\n\n", 30)
	s := NewSplitter(120, 15)

	first := s.Split(text)
	second := s.Split(text)
	if len(first) != len(second) {
		t.Fatalf("chunk counts differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("chunk %d differs between runs", i)
		}
	}
}

func TestNewSplitterGuards(t *testing.T) {
	s := NewSplitter(0, -5)
	if s.ChunkSize != 500 || s.Overlap != 0 {
		t.Fatalf("defaults not applied: size=%d overlap=%d", s.ChunkSize, s.Overlap)
	}
	s = NewSplitter(200, 300)
	if s.Overlap != 50 {
		t.Fatalf("oversized overlap should clamp to size/4, got %d", s.Overlap)
	}
}
