// Package apperr defines the error kinds raised across the orchestrator
// and its supporting components.
package apperr

import (
	"errors"
	"fmt"
)

// Sentinel errors for comparison using errors.Is().
var (
	ErrInvalidQuery               = errors.New("invalid query")
	ErrCapacity                   = errors.New("concurrency capacity exceeded")
	ErrPlanParseEmpty             = errors.New("plan parse produced no steps")
	ErrPlanUnparseableAfterReplan = errors.New("plan unparseable after replan budget exhausted")
	ErrSearchUnsatisfactory       = errors.New("search adapter returned unsatisfactory result")
	ErrCodeExecutionFailure       = errors.New("code adapter execution failed")
	ErrLLMReplanRequest           = errors.New("llm adapter requested replan")
	ErrToolCallTransport          = errors.New("tool call transport error")
	ErrTimeout                    = errors.New("session timeout")
	ErrCancelled                  = errors.New("session cancelled")
	ErrSubscriberSend             = errors.New("subscriber send failed")
	ErrSessionNotFound            = errors.New("session not found")
	ErrSessionNotActive           = errors.New("session not active")
	ErrRecursionLimitExceeded     = errors.New("recursion limit exceeded")
)

// Kind names used in OrchestratorError and surfaced verbatim in error events.
const (
	KindInvalidQuery               = "invalid_query"
	KindCapacity                   = "capacity"
	KindPlanParseEmpty             = "plan_parse_empty"
	KindPlanUnparseableAfterReplan = "plan_unparseable_after_replan"
	KindSearchUnsatisfactory       = "search_unsatisfactory"
	KindCodeExecutionFailure       = "code_execution_failure"
	KindLLMReplanRequest           = "llm_replan_request"
	KindToolCallTransport          = "tool_call_transport"
	KindTimeout                    = "timeout"
	KindCancelled                  = "cancelled"
	KindSubscriberSend             = "subscriber_send"
	KindRecursionLimitExceeded     = "recursion_limit_exceeded"
	KindSessionNotFound            = "session_not_found"
	KindSessionNotActive           = "session_not_active"
)

// OrchestratorError carries the error kind and recoverability of a failure
// raised anywhere in the plan/execute/replan loop.
type OrchestratorError struct {
	Op          string // operation that failed, e.g. "orchestrator.Execute"
	Kind        string // one of the Kind* constants
	Message     string
	Recoverable bool // true when the orchestrator intends to replan, not terminate
	Err         error
}

func (e *OrchestratorError) Error() string {
	if e.Op != "" && e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
	}
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return e.Kind
}

func (e *OrchestratorError) Unwrap() error {
	return e.Err
}

// New builds an OrchestratorError wrapping err under kind, recoverable as given.
func New(op, kind string, recoverable bool, err error) *OrchestratorError {
	return &OrchestratorError{Op: op, Kind: kind, Recoverable: recoverable, Err: err}
}

// IsRecoverable reports whether err is an OrchestratorError that should
// trigger a Reflecting transition rather than a terminal Failed state.
func IsRecoverable(err error) bool {
	var oe *OrchestratorError
	if errors.As(err, &oe) {
		return oe.Recoverable
	}
	return errors.Is(err, ErrPlanParseEmpty) ||
		errors.Is(err, ErrSearchUnsatisfactory) ||
		errors.Is(err, ErrCodeExecutionFailure) ||
		errors.Is(err, ErrLLMReplanRequest) ||
		errors.Is(err, ErrToolCallTransport)
}

// IsTerminal reports whether err always ends the session regardless of
// remaining replan budget.
func IsTerminal(err error) bool {
	return errors.Is(err, ErrPlanUnparseableAfterReplan) ||
		errors.Is(err, ErrTimeout) ||
		errors.Is(err, ErrCancelled)
}
