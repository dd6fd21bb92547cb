// Package external declares the contracts the orchestrator consumes from
// collaborators that are explicitly out of scope: the language-model
// provider, the web-search-and-rerank provider, and the sandboxed code
// executor. Alongside the interfaces it holds one default network-calling
// implementation of each (OpenAILLM, SerperSearch, PassthroughReranker,
// HTTPCodeExecutor); deterministic fakes for tests live in the fake
// subpackage.
package external

import "context"

// Message is one turn of a chat-style prompt submitted to an LLMProvider.
type Message struct {
	Role    string
	Content string
}

// LLMProvider generates text from a sequence of messages. Implementations
// must be safe for concurrent use — the Orchestrator and the Tool Adapters
// may call Generate from multiple sessions simultaneously.
type LLMProvider interface {
	// Generate returns the provider's completion for messages. stopTokens,
	// when non-empty, are sequences the provider should stop generation at.
	// No streaming is assumed.
	Generate(ctx context.Context, messages []Message, stopTokens []string) (string, error)
}

// SourceRecord is one organic search result as returned by a SearchProvider,
// ordered by server-assigned relevance.
type SourceRecord struct {
	Title   string
	Link    string
	Snippet string
}

// SearchProvider performs a web search for query and returns ordered
// organic results.
type SearchProvider interface {
	GetSources(ctx context.Context, query string) ([]SourceRecord, error)
}

// RerankedBlock is the output of a Reranker: a text block ready to hand to
// an LLMProvider, plus the organic source list to be recorded on the
// Session.
type RerankedBlock struct {
	Text    string
	Organic []SourceRecord
}

// Reranker fetches and reranks the content behind a list of sources,
// truncating to maxSources, and concatenates it into a single block for
// the query. proMode hints at a more thorough (and slower) extraction pass.
type Reranker interface {
	Process(ctx context.Context, sources []SourceRecord, maxSources int, query string, proMode bool) (*RerankedBlock, error)
}

// CodeExecutor runs a single script in an isolated sandbox and returns its
// captured stdout, or an error if execution raised.
type CodeExecutor interface {
	Run(ctx context.Context, source string) (string, error)
}
