// Package tools implements the three concrete Tool Adapters — Search,
// Code, and LLM — behind a uniform invocation surface.
package tools

import (
	"context"
	"fmt"
	"time"

	"github.com/go-research/deepresearch/pkg/apperr"
	"github.com/go-research/deepresearch/pkg/external"
	"github.com/go-research/deepresearch/pkg/templates"
)

// QueryCache is the subset of pkg/cache.Cache the Search adapter needs to
// skip a repeated reword round trip for an identical resolved input.
type QueryCache interface {
	Get(ctx context.Context, query string) (string, bool)
	Set(ctx context.Context, query, rewordedQuery string, ttl time.Duration)
}

const rewordCacheTTL = 10 * time.Minute

// Adapter is the uniform interface every concrete tool adapter implements:
// invoke a resolved input and return a string result plus any sources
// gathered, or a typed failure. Adapters are idempotent from the caller's
// viewpoint — a retry is always a fresh invocation — and never mutate
// Session state directly; the Orchestrator records whatever they return.
type Adapter interface {
	Invoke(ctx context.Context, resolvedInput string) (string, []external.SourceRecord, error)
}

// QueryProvider is implemented by adapters that derive a distinct query
// string from resolvedInput before acting on it. The Orchestrator uses it
// to record the query actually used, separately from the adapter's result.
type QueryProvider interface {
	InvokeWithQuery(ctx context.Context, resolvedInput string) (result, query string, sources []external.SourceRecord, err error)
}

// SearchAdapter rewrites the resolved input into a search query, submits
// it to the search provider, reranks/extracts the top results, and asks
// the LLM to answer the original query from that context.
type SearchAdapter struct {
	LLM        external.LLMProvider
	Search     external.SearchProvider
	Rerank     external.Reranker
	MaxSources int
	ProMode    bool
	Cache      QueryCache // optional; nil disables reword caching
}

func (a *SearchAdapter) Invoke(ctx context.Context, resolvedInput string) (string, []external.SourceRecord, error) {
	result, _, sources, err := a.InvokeWithQuery(ctx, resolvedInput)
	return result, sources, err
}

// InvokeWithQuery behaves like Invoke but additionally returns the reworded
// query actually submitted to the search provider, which resolvedInput
// itself is not — it is the raw tool_input before the reword LLM call.
func (a *SearchAdapter) InvokeWithQuery(ctx context.Context, resolvedInput string) (string, string, []external.SourceRecord, error) {
	query, ok := a.cachedReword(ctx, resolvedInput)
	if !ok {
		rewordResp, err := a.LLM.Generate(ctx, msgs(templates.Reword(resolvedInput)), nil)
		if err != nil {
			return "", "", nil, apperr.New("tools.Search", apperr.KindToolCallTransport, true, err)
		}
		query = extractRewordedQuery(rewordResp)
		if a.Cache != nil {
			a.Cache.Set(ctx, resolvedInput, query, rewordCacheTTL)
		}
	}

	results, err := a.Search.GetSources(ctx, query)
	if err != nil {
		return "", query, nil, apperr.New("tools.Search", apperr.KindToolCallTransport, true, err)
	}

	maxSources := a.MaxSources
	if maxSources <= 0 {
		maxSources = 3
	}
	if maxSources < len(results) {
		results = results[:maxSources]
	}

	block, err := a.Rerank.Process(ctx, results, maxSources, query, a.ProMode)
	if err != nil {
		return "", query, nil, apperr.New("tools.Search", apperr.KindToolCallTransport, true, err)
	}

	summaryResp, err := a.LLM.Generate(ctx, msgs(templates.Summary(query, block.Text)), nil)
	if err != nil {
		return "", query, nil, apperr.New("tools.Search", apperr.KindToolCallTransport, true, err)
	}

	answer, ok := extractAnswer(summaryResp)
	if !ok {
		// Unsatisfactory-result: the raw summary is surfaced as step
		// content for observability but is not treated as the result.
		return summaryResp, query, block.Organic, apperr.New("tools.Search", apperr.KindSearchUnsatisfactory, true,
			fmt.Errorf("search summary carried no <answer> tag"))
	}

	return answer, query, block.Organic, nil
}

// CodeAdapter asks the LLM for a single executable script and runs it in
// the sandboxed executor.
type CodeAdapter struct {
	LLM      external.LLMProvider
	Executor external.CodeExecutor
}

func (a *CodeAdapter) Invoke(ctx context.Context, resolvedInput string) (string, []external.SourceRecord, error) {
	resp, err := a.LLM.Generate(ctx, msgs(templates.Code(resolvedInput)), nil)
	if err != nil {
		return "", nil, apperr.New("tools.Code", apperr.KindToolCallTransport, true, err)
	}

	source, ok := extractLastFencedCode(resp)
	if !ok {
		return "", nil, apperr.New("tools.Code", apperr.KindCodeExecutionFailure, true,
			fmt.Errorf("no fenced code block in LLM response"))
	}

	stdout, err := a.Executor.Run(ctx, source)
	if err != nil {
		return "", nil, apperr.New("tools.Code", apperr.KindCodeExecutionFailure, true, err)
	}

	return stdout, nil, nil
}

// LLMAdapter submits resolvedInput to the LLM with the COMMONSENSE
// template for a pure-reasoning step.
type LLMAdapter struct {
	LLM external.LLMProvider
}

func (a *LLMAdapter) Invoke(ctx context.Context, resolvedInput string) (string, []external.SourceRecord, error) {
	resp, err := a.LLM.Generate(ctx, msgs(templates.Commonsense(resolvedInput)), nil)
	if err != nil {
		return "", nil, apperr.New("tools.LLM", apperr.KindToolCallTransport, true, err)
	}

	if reason, ok := extractReplan(resp); ok {
		return "", nil, apperr.New("tools.LLM", apperr.KindLLMReplanRequest, true,
			fmt.Errorf("llm requested replan: %s", reason))
	}

	if answer, ok := extractAnswer(resp); ok {
		return answer, nil, nil
	}

	// Permissive fallback: no tag present, use the whole response.
	return resp, nil, nil
}

func (a *SearchAdapter) cachedReword(ctx context.Context, resolvedInput string) (string, bool) {
	if a.Cache == nil {
		return "", false
	}
	return a.Cache.Get(ctx, resolvedInput)
}

func msgs(content string) []external.Message {
	return []external.Message{{Role: "user", Content: content}}
}
