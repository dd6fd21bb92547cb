// Package scheduler implements the Run Scheduler (C6): it owns the
// lifecycle of the background goroutine backing each session's
// Orchestrator.Run call, enforcing the per-session timeout and the global
// concurrency cap, and coordinating the new_chat reset.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/go-research/deepresearch/pkg/apperr"
	"github.com/go-research/deepresearch/pkg/config"
	"github.com/go-research/deepresearch/pkg/logger"
	"github.com/go-research/deepresearch/pkg/session"
	"github.com/go-research/deepresearch/pkg/stream"
)

// Runner is the interface the scheduler drives. *orchestrator.Orchestrator
// satisfies it; tests can substitute a fake.
type Runner interface {
	Run(ctx context.Context, sessionID, query string) error
}

// Scheduler bounds global concurrency with a buffered-channel semaphore and
// gives each session its own cancellable, timed-out context, grounded on
// the teacher's PlanExecutor semaphore pattern.
type Scheduler struct {
	cfg    *config.OrchestratorConfig
	store  *session.Store
	bus    *stream.Bus
	runner Runner
	logger logger.Logger

	sem chan struct{}

	mu      sync.Mutex
	wg      sync.WaitGroup
	cancels map[string]context.CancelFunc
}

// New constructs a Scheduler bounding concurrent runs to cfg.MaxConcurrentSearches.
func New(cfg *config.OrchestratorConfig, store *session.Store, bus *stream.Bus, runner Runner, log logger.Logger) *Scheduler {
	if log == nil {
		log = logger.NewDefaultLogger()
	}
	maxConcurrency := cfg.MaxConcurrentSearches
	if maxConcurrency <= 0 {
		maxConcurrency = 10
	}
	return &Scheduler{
		cfg:     cfg,
		store:   store,
		bus:     bus,
		runner:  runner,
		logger:  log,
		sem:     make(chan struct{}, maxConcurrency),
		cancels: make(map[string]context.CancelFunc),
	}
}

// Start allocates a Session for query and spawns its Orchestrator.Run in a
// background goroutine bound by the per-session timeout. It returns
// apperr.ErrCapacity immediately, without creating a session, if the global
// concurrency cap is already saturated.
func (s *Scheduler) Start(query string) (string, error) {
	select {
	case s.sem <- struct{}{}:
	default:
		return "", apperr.New("scheduler.Start", apperr.KindCapacity, false, apperr.ErrCapacity)
	}

	id := s.store.Create(query)
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.SearchTimeout())

	s.mu.Lock()
	s.cancels[id] = cancel
	s.mu.Unlock()
	s.store.SetCancelFunc(id, cancel)

	s.wg.Add(1)
	go s.run(ctx, cancel, id, query)

	return id, nil
}

func (s *Scheduler) run(ctx context.Context, cancel context.CancelFunc, id, query string) {
	defer s.wg.Done()
	defer func() { <-s.sem }()
	defer cancel()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, id)
		s.mu.Unlock()
	}()

	if err := s.runner.Run(ctx, id, query); err != nil {
		s.logger.Warn("session run ended with error", "session_id", id, "error", err)
	}
}

// Cancel requests cancellation of an active session. Errors mirror
// session.Store.Cancel: ErrSessionNotFound, ErrSessionNotActive.
func (s *Scheduler) Cancel(id string) error {
	return s.store.Cancel(id)
}

// NewChat cancels every active session, waits up to 5 seconds for all of
// them to leave the active set, clears the store, and broadcasts one
// session_reset event. A run still active after 5 seconds is not waited
// for; the store is cleared regardless.
// The global concurrency semaphore is left untouched; each cancelled run
// releases its own slot as it exits.
func (s *Scheduler) NewChat() {
	ids := s.store.ActiveIDs()
	for _, id := range ids {
		_ = s.store.Cancel(id)
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		if len(s.store.ActiveIDs()) == 0 || time.Now().After(deadline) {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.store.ClearAll()
	s.bus.Broadcast(stream.NewSessionResetEvent("conversation reset", "new_chat"))
}

// Wait blocks until every spawned run goroutine has exited. Intended for
// graceful shutdown.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
