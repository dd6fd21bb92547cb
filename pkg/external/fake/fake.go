// Package fake provides deterministic in-memory doubles of the external
// collaborator interfaces, for use in orchestrator and tool-adapter tests.
package fake

import (
	"context"
	"errors"
	"sync"

	"github.com/go-research/deepresearch/pkg/external"
)

// LLM is a scriptable external.LLMProvider. Responses are consumed in
// order; calling Generate past the end of the script repeats the last
// response, if any, or returns ErrScriptExhausted.
type LLM struct {
	mu        sync.Mutex
	Responses []string
	Err       error
	calls     int
	Calls     []string // one prompt per call (its messages concatenated), for assertions
}

var ErrScriptExhausted = errors.New("fake: llm response script exhausted")

func (f *LLM) Generate(ctx context.Context, messages []external.Message, stopTokens []string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var prompt string
	for _, m := range messages {
		prompt += m.Content
	}
	f.Calls = append(f.Calls, prompt)

	if f.Err != nil {
		return "", f.Err
	}
	if f.calls >= len(f.Responses) {
		if len(f.Responses) == 0 {
			return "", ErrScriptExhausted
		}
		return f.Responses[len(f.Responses)-1], nil
	}
	resp := f.Responses[f.calls]
	f.calls++
	return resp, nil
}

// Search is a scriptable external.SearchProvider.
type Search struct {
	Results []external.SourceRecord
	Err     error
}

func (f *Search) GetSources(ctx context.Context, query string) ([]external.SourceRecord, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	return f.Results, nil
}

// Reranker is a scriptable external.Reranker that just concatenates
// snippets, truncated to maxSources.
type Reranker struct {
	Err error
}

func (f *Reranker) Process(ctx context.Context, sources []external.SourceRecord, maxSources int, query string, proMode bool) (*external.RerankedBlock, error) {
	if f.Err != nil {
		return nil, f.Err
	}
	if maxSources < len(sources) {
		sources = sources[:maxSources]
	}
	var text string
	for _, s := range sources {
		text += s.Snippet + "\n"
	}
	return &external.RerankedBlock{Text: text, Organic: sources}, nil
}

// CodeExecutor is a scriptable external.CodeExecutor.
type CodeExecutor struct {
	Stdout string
	Err    error
}

func (f *CodeExecutor) Run(ctx context.Context, source string) (string, error) {
	if f.Err != nil {
		return "", f.Err
	}
	return f.Stdout, nil
}
