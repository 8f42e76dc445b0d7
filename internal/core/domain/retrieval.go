package domain

type RetrievedChunk struct {
	ChunkID    string  `json:"chunk_id"`
	DocumentID string  `json:"document_id"`
	Filename   string  `json:"filename"`
	Page       int     `json:"page"`
	Kind       string  `json:"kind"`
	Text       string  `json:"text"`
	Score      float64 `json:"score"`
}

// SourceBlock is one cited source in a context bundle: the best chunk for
// its (document, page) pair plus the page's display images.
type SourceBlock struct {
	Index      int               `json:"index"`
	DocumentID string            `json:"document_id"`
	Filename   string            `json:"filename"`
	Page       int               `json:"page"`
	Text       string            `json:"text"`
	Score      float64           `json:"score"`
	Images     []ImageDescriptor `json:"images,omitempty"`
}

// ContextBundle is the sole input handed to the answer generator. Sources
// are ordered by descending score; Context is the rendered text form.
type ContextBundle struct {
	Question string        `json:"question"`
	Sources  []SourceBlock `json:"sources"`
	Context  string        `json:"context"`
}

type Answer struct {
	Text    string        `json:"text"`
	Sources []SourceBlock `json:"sources"`
}

type IndexStats struct {
	Documents int            `json:"documents"`
	Chunks    int            `json:"chunks"`
	ByDoc     map[string]int `json:"by_doc,omitempty"`
}

type CorpusStats struct {
	Documents int `json:"documents"`
	Pages     int `json:"pages"`
	Images    int `json:"images"`
	Chunks    int `json:"chunks"`
}
