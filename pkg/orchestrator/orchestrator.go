// Package orchestrator implements the Orchestrator state machine (C4):
// Idle -> Planning -> Executing(i) -> Solving -> Done, with the lateral
// Reflecting -> Planning replan path and the Failed/Cancelled terminals.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"github.com/go-research/deepresearch/pkg/apperr"
	"github.com/go-research/deepresearch/pkg/config"
	"github.com/go-research/deepresearch/pkg/external"
	"github.com/go-research/deepresearch/pkg/logger"
	"github.com/go-research/deepresearch/pkg/plan"
	"github.com/go-research/deepresearch/pkg/session"
	"github.com/go-research/deepresearch/pkg/stream"
	"github.com/go-research/deepresearch/pkg/telemetry"
	"github.com/go-research/deepresearch/pkg/templates"
	"github.com/go-research/deepresearch/pkg/tools"
)

type state int

const (
	statePlanning state = iota
	stateExecuting
	stateReflecting
	stateSolving
	stateDone
	stateFailed
	stateCancelled
	stateTimedOut
)

// Orchestrator drives a single session's run to completion. One instance
// per process is reused across sessions; a Run call owns its Session
// exclusively until it returns.
type Orchestrator struct {
	Config   *config.OrchestratorConfig
	Store    *session.Store
	Bus      *stream.Bus
	LLM      external.LLMProvider
	Adapters map[plan.Tool]tools.Adapter
	Logger   logger.Logger
	Tracing  telemetry.Tracing // optional; nil disables span creation
}

// Run executes the full plan/execute/replan/solve loop for sessionID and
// returns only once the session has reached a terminal state. The caller
// (the Run Scheduler) owns ctx and is responsible for timeout/cancellation.
func (o *Orchestrator) Run(ctx context.Context, sessionID, query string) error {
	log := o.Logger
	if log == nil {
		log = logger.NewDefaultLogger()
	}

	st := statePlanning
	var steps []plan.PlanStep
	results := make(map[string]string)
	var allSources []session.Source
	var previousPlanText string
	var reflectionText string
	replanIter := 0
	transitions := 0
	index := 0
	started := time.Now()
	var failKind string
	var failMsg string

	for {
		if ctx.Err() != nil {
			st = cancellationState(ctx)
		}

		transitions++
		if transitions > o.Config.RecursionLimit {
			return o.fail(sessionID, apperr.KindRecursionLimitExceeded,
				fmt.Errorf("exceeded recursion limit of %d transitions", o.Config.RecursionLimit))
		}

		switch st {
		case statePlanning:
			var promptText string
			if previousPlanText == "" {
				promptText = templates.Plan(query)
			} else {
				promptText = templates.Replan(query, previousPlanText, reflectionText)
			}

			planStepID := uuid.New().String()
			o.emitStepUpdate(sessionID, planStepID, "plan", "running", "plan", "", nil)

			resp, err := o.LLM.Generate(ctx, []external.Message{{Role: "user", Content: promptText}}, nil)
			if err != nil {
				o.emitStepUpdate(sessionID, planStepID, "plan", "failed", "plan", err.Error(), nil)
				previousPlanText = promptText
				st, failKind, failMsg = o.nextAfterFailure(sessionID, apperr.KindToolCallTransport, err, replanIter)
				break
			}

			parsed, perr := plan.Parse(resp)
			if perr != nil || len(parsed.Steps) == 0 {
				reason := "plan parser produced no steps"
				if perr != nil {
					reason = perr.Error()
				}
				o.emitStepUpdate(sessionID, planStepID, "plan", "failed", "plan", reason, nil)
				previousPlanText = resp
				parseFailKind := apperr.KindPlanParseEmpty
				if replanIter >= o.Config.MaxReplanIter {
					parseFailKind = apperr.KindPlanUnparseableAfterReplan
				}
				st, failKind, failMsg = o.nextAfterFailure(sessionID, parseFailKind, fmt.Errorf("%s", reason), replanIter)
				break
			}

			steps = parsed.Steps
			results = make(map[string]string)
			index = 0
			o.emitStepUpdate(sessionID, planStepID, "plan", "completed", "plan", resp,
				map[string]interface{}{"plan_steps": resp})
			previousPlanText = resp
			st = stateExecuting

		case stateExecuting:
			if index >= len(steps) {
				st = stateSolving
				break
			}

			current := steps[index]
			resolvedInput := plan.Resolve(current.ToolInput, results)
			stepID := uuid.New().String()
			kind := toolKind(current.Tool)

			o.emitStepUpdate(sessionID, stepID, kind, "running", current.Description, resolvedInput, nil)

			adapter, ok := o.Adapters[current.Tool]
			if !ok {
				noAdapterErr := fmt.Errorf("no adapter registered for tool %q", current.Tool)
				st, failKind, failMsg = o.nextAfterFailure(sessionID, apperr.KindToolCallTransport, noAdapterErr, replanIter)
				break
			}

			spanCtx := ctx
			var span trace.Span
			if o.Tracing != nil {
				spanCtx, span = o.Tracing.StartStepSpan(ctx, telemetry.StepMetadata{SessionID: sessionID, Kind: kind, Tool: string(current.Tool)})
			}
			stepStarted := time.Now()

			var result, searchQuery string
			var sources []external.SourceRecord
			var err error
			if qp, ok := adapter.(tools.QueryProvider); ok {
				result, searchQuery, sources, err = qp.InvokeWithQuery(spanCtx, resolvedInput)
			} else {
				result, sources, err = adapter.Invoke(spanCtx, resolvedInput)
			}
			stepDuration := time.Since(stepStarted)

			if span != nil {
				o.Tracing.RecordStepDuration(telemetry.StepMetadata{SessionID: sessionID, Kind: kind, Tool: string(current.Tool)}, stepDuration, err)
				span.End()
			}

			if ctx.Err() != nil {
				st = cancellationState(ctx)
				break
			}

			if err != nil {
				kindStr, _ := classifyToolErr(err)
				content := err.Error()
				if result != "" {
					content = result
				}
				o.emitStepUpdate(sessionID, stepID, kind, "failed", current.Description, content,
					map[string]interface{}{"error": err.Error()})
				st, failKind, failMsg = o.nextAfterFailure(sessionID, kindStr, err, replanIter)
				break
			}

			results[current.Binding] = result
			var stepSources []session.Source
			if len(sources) > 0 {
				for _, s := range sources {
					src := session.Source{Title: s.Title, Link: s.Link, Snippet: s.Snippet}
					stepSources = append(stepSources, src)
					allSources = append(allSources, src)
				}
				o.Store.SetSources(sessionID, allSources)
			}

			o.emitStepUpdate(sessionID, stepID, kind, "completed", current.Description, result,
				metadataFor(current.Tool, result, searchQuery, stepSources, stepDuration))

			index++

		case stateReflecting:
			if replanIter >= o.Config.MaxReplanIter {
				st = stateSolving
				break
			}

			reflResp, err := o.LLM.Generate(ctx, []external.Message{{Role: "user",
				Content: templates.Reflection(query, previousPlanText)}}, nil)
			if err != nil {
				reflResp = ""
			}
			reflectionText = reflResp
			replanIter++
			st = statePlanning

		case stateSolving:
			evidence := plan.RenderWithEvidence(&plan.Plan{Steps: steps}, results)
			solveStepID := uuid.New().String()
			o.emitStepUpdate(sessionID, solveStepID, "solve", "running", "solve", "", nil)

			solveResp, err := o.LLM.Generate(ctx, []external.Message{{Role: "user",
				Content: templates.Solver(query, evidence)}}, nil)
			if err != nil {
				solveResp = ""
			}
			answer := extractPermissiveAnswer(solveResp)

			o.Store.SetAnswer(sessionID, answer)
			o.emitStepUpdate(sessionID, solveStepID, "solve", "completed", "solve", answer, nil)

			o.Store.MarkTerminal(sessionID, session.StatusCompleted, "")
			o.Bus.Broadcast(stream.NewSearchCompleteEvent(sessionID, solveResp, len(steps), time.Since(started), answer))
			st = stateDone

		case stateDone:
			return nil

		case stateFailed:
			o.Store.MarkTerminal(sessionID, session.StatusError, failMsg)
			o.Bus.Broadcast(stream.NewErrorEvent(sessionID, failMsg, "", false, failKind))
			return apperr.New("orchestrator.Run", failKind, false, fmt.Errorf("%s", failMsg))

		case stateCancelled:
			o.Store.MarkTerminal(sessionID, session.StatusCancelled, "cancelled")
			return apperr.ErrCancelled

		case stateTimedOut:
			o.Store.MarkTerminal(sessionID, session.StatusError, apperr.ErrTimeout.Error())
			o.Bus.Broadcast(stream.NewErrorEvent(sessionID, apperr.ErrTimeout.Error(), "", false, apperr.KindTimeout))
			return apperr.New("orchestrator.Run", apperr.KindTimeout, false, apperr.ErrTimeout)
		}
	}
}

// cancellationState classifies an expired ctx: a scheduler-imposed deadline
// terminates as stateTimedOut (status=error, kind=timeout), while an
// explicit user cancellation terminates as stateCancelled. Both share a
// CancelFunc at the Store (pkg/session/store.go Cancel), so ctx.Err() is
// the only place this distinction can be made.
func cancellationState(ctx context.Context) state {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return stateTimedOut
	}
	return stateCancelled
}

func (o *Orchestrator) fail(sessionID, kind string, err error) error {
	o.Store.MarkTerminal(sessionID, session.StatusError, err.Error())
	o.Bus.Broadcast(stream.NewErrorEvent(sessionID, err.Error(), "", false, kind))
	return apperr.New("orchestrator.Run", kind, false, err)
}

// nextAfterFailure decides whether a failure at kind should trigger
// Reflecting (replan budget remains) or Failed (budget exhausted),
// emitting the corresponding error event either way. It returns the next
// state plus the kind/message to report if that state turns out to be
// stateFailed.
func (o *Orchestrator) nextAfterFailure(sessionID, kind string, err error, replanIter int) (state, string, string) {
	recoverable := replanIter < o.Config.MaxReplanIter
	o.Bus.Broadcast(stream.NewErrorEvent(sessionID, err.Error(), "", recoverable, kind))
	if recoverable {
		return stateReflecting, "", ""
	}
	return stateFailed, kind, err.Error()
}

func (o *Orchestrator) emitStepUpdate(sessionID, stepID, stepType, status, title, content string, metadata map[string]interface{}) {
	stepKind := session.StepKind(stepType)
	stepStatus := session.StepStatus(status)

	var md *session.Metadata
	if metadata != nil {
		md = &session.Metadata{}
		if v, ok := metadata["plan_steps"].(string); ok {
			md.PlanSteps = v
		}
		if v, ok := metadata["error"].(string); ok {
			md.Error = v
		}
		if v, ok := metadata["search_query"].(string); ok {
			md.SearchQuery = v
		}
		if v, ok := metadata["code_result"].(string); ok {
			md.CodeResult = v
		}
		if v, ok := metadata["llm_result"].(string); ok {
			md.LLMResult = v
		}
		if v, ok := metadata["sources"].([]session.Source); ok {
			md.Sources = v
		}
		if v, ok := metadata["execution_time"].(time.Duration); ok {
			md.ExecutionTime = v
		}
	}

	o.Store.AddOrReplaceStep(sessionID, session.Step{
		ID: stepID, Kind: stepKind, Status: stepStatus, Title: title, Content: content,
		Timestamp: time.Now(), Metadata: md,
	})
	o.Bus.Broadcast(stream.NewStepUpdateEvent(sessionID, stepID, stepType, status, title, content, metadata))
}

func toolKind(t plan.Tool) string {
	switch t {
	case plan.ToolSearch:
		return "search"
	case plan.ToolCode:
		return "code"
	case plan.ToolLLM:
		return "llm"
	default:
		return "llm"
	}
}

// metadataFor builds the step_update metadata for a completed tool step.
// searchQuery is the query actually submitted to the search provider (the
// reworded form of resolvedInput, not the result) and is only meaningful
// for plan.ToolSearch.
func metadataFor(t plan.Tool, result, searchQuery string, sources []session.Source, execTime time.Duration) map[string]interface{} {
	md := map[string]interface{}{"execution_time": execTime}
	if len(sources) > 0 {
		md["sources"] = sources
	}
	switch t {
	case plan.ToolSearch:
		md["search_query"] = searchQuery
	case plan.ToolCode:
		md["code_result"] = result
	default:
		md["llm_result"] = result
	}
	return md
}

func classifyToolErr(err error) (kind string, recoverable bool) {
	var oe *apperr.OrchestratorError
	if as, ok := err.(*apperr.OrchestratorError); ok {
		oe = as
	}
	if oe != nil {
		return oe.Kind, oe.Recoverable
	}
	return apperr.KindToolCallTransport, true
}

func extractPermissiveAnswer(resp string) string {
	const openTag, closeTag = "<answer>", "</answer>"
	start := indexOf(resp, openTag)
	if start < 0 {
		return resp
	}
	start += len(openTag)
	end := indexOf(resp[start:], closeTag)
	if end < 0 {
		return resp
	}
	return resp[start : start+end]
}

func indexOf(s, substr string) int {
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			return i
		}
	}
	return -1
}
