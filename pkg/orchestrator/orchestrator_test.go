package orchestrator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-research/deepresearch/pkg/apperr"
	"github.com/go-research/deepresearch/pkg/config"
	"github.com/go-research/deepresearch/pkg/external"
	"github.com/go-research/deepresearch/pkg/external/fake"
	"github.com/go-research/deepresearch/pkg/plan"
	"github.com/go-research/deepresearch/pkg/session"
	"github.com/go-research/deepresearch/pkg/stream"
	"github.com/go-research/deepresearch/pkg/tools"
)

func newTestOrchestrator(t *testing.T, llm *fake.LLM, maxReplanIter int) (*Orchestrator, *session.Store) {
	t.Helper()

	store := session.NewStore(time.Hour, time.Hour)
	t.Cleanup(store.Stop)

	bus := stream.NewBus(0, nil)
	t.Cleanup(bus.Stop)

	cfg := config.Default()
	cfg.MaxReplanIter = maxReplanIter
	cfg.RecursionLimit = 30

	searchFake := &fake.Search{Results: []external.SourceRecord{{Title: "t", Link: "https://example.com/a", Snippet: "s"}}}
	rerankFake := &fake.Reranker{}
	codeFake := &fake.CodeExecutor{Stdout: "42"}

	adapters := map[plan.Tool]tools.Adapter{
		plan.ToolSearch: &tools.SearchAdapter{LLM: llm, Search: searchFake, Rerank: rerankFake, MaxSources: 3},
		plan.ToolCode:   &tools.CodeAdapter{LLM: llm, Executor: codeFake},
		plan.ToolLLM:    &tools.LLMAdapter{LLM: llm},
	}

	return &Orchestrator{
		Config:   cfg,
		Store:    store,
		Bus:      bus,
		LLM:      llm,
		Adapters: adapters,
	}, store
}

func TestRunSingleSearchHappyPath(t *testing.T) {
	llm := &fake.LLM{Responses: []string{
		"Plan: look something up\n#E1 = Search[capital of France]\n",
		"<reworded_query>capital of France</reworded_query>",
		"<answer>Paris</answer>",
		"<answer>The capital of France is Paris.</answer>",
	}}
	o, store := newTestOrchestrator(t, llm, 1)

	id := store.Create("what is the capital of France?")
	err := o.Run(context.Background(), id, "what is the capital of France?")
	require.NoError(t, err)

	sess, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, session.StatusCompleted, sess.Status)
	assert.Equal(t, "The capital of France is Paris.", sess.Answer)
	require.Len(t, sess.Sources, 1)
	assert.Equal(t, "https://example.com/a", sess.Sources[0].Link)

	var searchStep *session.Step
	for i := range sess.Steps {
		if sess.Steps[i].Kind == session.StepSearch {
			searchStep = &sess.Steps[i]
		}
	}
	require.NotNil(t, searchStep)
	require.NotNil(t, searchStep.Metadata)
	assert.Equal(t, "capital of France", searchStep.Metadata.SearchQuery,
		"search_query must hold the reworded query, not the adapter's answer")
	assert.Equal(t, "Paris", searchStep.Content)
	assert.Greater(t, searchStep.Metadata.ExecutionTime, time.Duration(0))
}

func TestRunReplansOnUnsatisfactorySearch(t *testing.T) {
	llm := &fake.LLM{Responses: []string{
		"Plan: look something up\n#E1 = Search[obscure trivia]\n",
		"<reworded_query>obscure trivia</reworded_query>",
		"no answer tag here, summary was inconclusive",
		"", // reflection
		"Plan: look something up again\n#E1 = Search[obscure trivia refined]\n",
		"<reworded_query>obscure trivia refined</reworded_query>",
		"<answer>42</answer>",
		"<answer>The answer is 42.</answer>",
	}}
	o, store := newTestOrchestrator(t, llm, 1)

	id := store.Create("obscure trivia question")
	err := o.Run(context.Background(), id, "obscure trivia question")
	require.NoError(t, err)

	sess, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, session.StatusCompleted, sess.Status)
	assert.Equal(t, "The answer is 42.", sess.Answer)
}

func TestRunFailsWhenReplanBudgetExhausted(t *testing.T) {
	llm := &fake.LLM{Responses: []string{
		"not a parseable plan at all",
		"", // reflection
		"still not a parseable plan",
	}}
	o, store := newTestOrchestrator(t, llm, 1)

	id := store.Create("impossible query")
	err := o.Run(context.Background(), id, "impossible query")
	require.Error(t, err)

	var oe *apperr.OrchestratorError
	require.ErrorAs(t, err, &oe)
	assert.False(t, oe.Recoverable)
	assert.Equal(t, apperr.KindPlanUnparseableAfterReplan, oe.Kind)

	sess, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, session.StatusError, sess.Status)
}

func TestRunTimesOutDistinctFromCancellation(t *testing.T) {
	llm := &fake.LLM{Responses: []string{
		"Plan: look something up\n#E1 = Search[slow query]\n",
	}}
	o, store := newTestOrchestrator(t, llm, 1)

	ctx, cancel := context.WithTimeout(context.Background(), time.Nanosecond)
	defer cancel()
	time.Sleep(time.Millisecond)

	id := store.Create("a query that times out")
	store.SetCancelFunc(id, cancel)

	err := o.Run(ctx, id, "a query that times out")
	require.Error(t, err)

	var oe *apperr.OrchestratorError
	require.ErrorAs(t, err, &oe)
	assert.Equal(t, apperr.KindTimeout, oe.Kind)

	sess, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, session.StatusError, sess.Status, "a timeout must terminate as error, not cancelled")
}

func TestRunStopsOnCancellation(t *testing.T) {
	llm := &fake.LLM{Responses: []string{
		"Plan: look something up\n#E1 = Search[slow query]\n",
	}}
	o, store := newTestOrchestrator(t, llm, 1)

	ctx, cancel := context.WithCancel(context.Background())
	id := store.Create("a query that gets cancelled")
	store.SetCancelFunc(id, cancel)

	cancel()
	err := o.Run(ctx, id, "a query that gets cancelled")
	require.ErrorIs(t, err, apperr.ErrCancelled)

	sess, ok := store.Get(id)
	require.True(t, ok)
	assert.Equal(t, session.StatusCancelled, sess.Status)
}
