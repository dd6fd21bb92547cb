package external

import "context"

// PassthroughReranker concatenates each source's title and snippet, one
// line per source, in their given order,
// without any semantic reranking or content extraction. A production
// deployment would plug a real reranker/content-extraction service behind
// the same Reranker interface; this is the zero-dependency default.
type PassthroughReranker struct{}

// NewPassthroughReranker returns the default Reranker.
func NewPassthroughReranker() Reranker {
	return &PassthroughReranker{}
}

func (r *PassthroughReranker) Process(ctx context.Context, sources []SourceRecord, maxSources int, query string, proMode bool) (*RerankedBlock, error) {
	if maxSources > 0 && maxSources < len(sources) {
		sources = sources[:maxSources]
	}

	var text string
	for _, s := range sources {
		text += s.Title + ": " + s.Snippet + "\n"
	}
	return &RerankedBlock{Text: text, Organic: sources}, nil
}
