package chunking

import (
	"strings"
	"unicode"
)

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 500
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split cuts text into chunks of at most ChunkSize runes. Cuts prefer a
// paragraph break, then any whitespace, inside a lookback window of a
// quarter chunk; otherwise the cut is hard. The trailing Overlap runes of
// one chunk repeat at the head of the next so a sentence or image entry is
// not truncated across a boundary. Output is deterministic for identical
// input and configuration.
func (s *Splitter) Split(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	if len(runes) <= s.ChunkSize {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	lookback := s.ChunkSize / 4
	out := make([]string, 0, len(runes)/s.ChunkSize+1)
	start := 0
	for start < len(runes) {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = cutPoint(runes, start, end, lookback)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// cutPoint walks back from the hard limit looking for a paragraph break,
// then for any whitespace. Boundaries beyond the lookback window are
// ignored: a hard cut keeps chunk sizes bounded.
func cutPoint(runes []rune, start, limit, lookback int) int {
	low := limit - lookback
	if low <= start {
		low = start + 1
	}

	for i := limit; i >= low; i-- {
		if runes[i-1] == '\n' && runes[i] == '\n' {
			return i
		}
	}
	for i := limit; i >= low; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return limit
}
