// Package session implements the in-memory Session Store: the keyed run
// state, step history, cancellation handle, and source list for every
// active or recently-terminal query.
package session

import "time"

// Status is a Session's lifecycle state. Transitions form a DAG:
// running -> {completed, error, cancelled}; there is no transition out of
// a terminal state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusError     Status = "error"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether s is one of the states a Session cannot leave.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusError || s == StatusCancelled
}

// StepKind names the state-machine node a Step was produced by.
type StepKind string

const (
	StepPlan   StepKind = "plan"
	StepSearch StepKind = "search"
	StepCode   StepKind = "code"
	StepLLM    StepKind = "llm"
	StepSolve  StepKind = "solve"
	StepReplan StepKind = "replan"
)

// StepStatus transitions only forward: pending -> running -> {completed, failed}.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepCompleted StepStatus = "completed"
	StepFailed    StepStatus = "failed"
)

// Source is a deduplicated (by Link) search result surfaced to the client.
type Source struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Metadata carries the optional, step-kind-specific detail of a Step.
type Metadata struct {
	SearchQuery   string        `json:"search_query,omitempty"`
	CodeResult    string        `json:"code_result,omitempty"`
	LLMResult     string        `json:"llm_result,omitempty"`
	PlanSteps     string        `json:"plan_steps,omitempty"`
	ExecutionTime time.Duration `json:"execution_time,omitempty"`
	Sources       []Source      `json:"sources,omitempty"`
	Error         string        `json:"error,omitempty"`
}

// Step is a single observable unit of work inside a Session, tied to one
// node of the Orchestrator's state machine. Only the owning Orchestrator
// mutates a Step; it persists with its Session.
type Step struct {
	ID        string     `json:"id"`
	Kind      StepKind   `json:"kind"`
	Status    StepStatus `json:"status"`
	Title     string     `json:"title"`
	Content   string     `json:"content"`
	Timestamp time.Time  `json:"timestamp"`
	Metadata  *Metadata  `json:"metadata,omitempty"`
}

// Session is the full server-side lifecycle object for one user query.
// Created on query submission; mutated only by the owning Orchestrator
// while running; destroyed by the sweeper once terminal and past the idle
// threshold.
type Session struct {
	ID        string    `json:"id"`
	Query     string    `json:"query"`
	Status    Status    `json:"status"`
	Steps     []Step    `json:"steps"`
	Answer    string    `json:"answer,omitempty"`
	Sources   []Source  `json:"sources,omitempty"`
	StartTime time.Time `json:"start_time"`
	EndTime   time.Time `json:"end_time,omitempty"`
	Duration  float64   `json:"duration_seconds,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// Clone returns a deep-enough defensive copy of s, safe for a caller to
// read or retain without racing the owning Orchestrator.
func (s *Session) Clone() *Session {
	cp := *s
	cp.Steps = make([]Step, len(s.Steps))
	copy(cp.Steps, s.Steps)
	cp.Sources = make([]Source, len(s.Sources))
	copy(cp.Sources, s.Sources)
	return &cp
}
