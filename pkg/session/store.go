package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/go-research/deepresearch/pkg/apperr"
)

// Stats summarizes the store's current contents, returned by the /stats
// endpoint.
type Stats struct {
	TotalSessions    int `json:"total_sessions"`
	ActiveSessions   int `json:"active_sessions"`
	TerminalSessions int `json:"terminal_sessions"`
}

type entry struct {
	mu     sync.Mutex
	sess   *Session
	cancel context.CancelFunc
}

// Store is the in-memory keyed Session Store (C5). All operations are safe
// under concurrent callers; active sessions are tracked in a separate set
// so IsActive is constant-time. A single writer owns a given session_id at
// a time — the Orchestrator task that created it — enforced here by a
// per-session mutex.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	active   map[string]struct{}

	idleTTL       time.Duration
	sweepInterval time.Duration
	stop          chan struct{}
	stopOnce      sync.Once
}

// NewStore constructs a Store and starts its background sweeper.
func NewStore(idleTTL, sweepInterval time.Duration) *Store {
	s := &Store{
		sessions:      make(map[string]*entry),
		active:        make(map[string]struct{}),
		idleTTL:       idleTTL,
		sweepInterval: sweepInterval,
		stop:          make(chan struct{}),
	}
	go s.sweepLoop()
	return s
}

// Stop halts the background sweeper. Safe to call more than once.
func (s *Store) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Create allocates a new running Session for query and registers it active.
func (s *Store) Create(query string) string {
	id := uuid.New().String()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[id] = &entry{sess: &Session{
		ID:        id,
		Query:     query,
		Status:    StatusRunning,
		StartTime: time.Now(),
	}}
	s.active[id] = struct{}{}
	return id
}

// SetCancelFunc records the cancellation handle for a running session, so
// Cancel can later trigger it.
func (s *Store) SetCancelFunc(id string, cancel context.CancelFunc) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	e.cancel = cancel
	e.mu.Unlock()
}

// Get returns a defensive copy of the session, or false if unknown.
func (s *Store) Get(id string) (*Session, bool) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sess.Clone(), true
}

// IsActive reports whether id is in the active set, in constant time.
func (s *Store) IsActive(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.active[id]
	return ok
}

// AddOrReplaceStep is idempotent by step id: an existing id is overwritten
// in place, a new id is appended. A no-op once the session is terminal.
func (s *Store) AddOrReplaceStep(id string, step Step) {
	s.withSession(id, func(sess *Session) {
		if sess.Status.IsTerminal() {
			return
		}
		for i := range sess.Steps {
			if sess.Steps[i].ID == step.ID {
				sess.Steps[i] = step
				return
			}
		}
		sess.Steps = append(sess.Steps, step)
	})
}

// SetAnswer records the final answer. A no-op once terminal.
func (s *Store) SetAnswer(id, answer string) {
	s.withSession(id, func(sess *Session) {
		if sess.Status.IsTerminal() {
			return
		}
		sess.Answer = answer
	})
}

// SetSources replaces the session's source list, deduplicated by Link with
// first-seen order preserved (P8).
func (s *Store) SetSources(id string, sources []Source) {
	s.withSession(id, func(sess *Session) {
		if sess.Status.IsTerminal() {
			return
		}
		seen := make(map[string]bool, len(sources))
		deduped := make([]Source, 0, len(sources))
		for _, src := range sources {
			if src.Link == "" || seen[src.Link] {
				continue
			}
			seen[src.Link] = true
			deduped = append(deduped, src)
		}
		sess.Sources = deduped
	})
}

// MarkTerminal transitions the session to status (one of completed, error,
// cancelled), setting EndTime/Duration and clearing it from the active
// set. A no-op if the session is already terminal (P4).
func (s *Store) MarkTerminal(id string, status Status, errMsg string) {
	now := time.Now()
	s.withSession(id, func(sess *Session) {
		if sess.Status.IsTerminal() {
			return
		}
		sess.Status = status
		sess.Error = errMsg
		sess.EndTime = now
		sess.Duration = now.Sub(sess.StartTime).Seconds()
	})

	s.mu.Lock()
	delete(s.active, id)
	s.mu.Unlock()
}

// Cancel triggers the session's cancellation handle, if one is registered.
// Idempotent: cancelling an already-cancelled context.CancelFunc is safe.
func (s *Store) Cancel(id string) error {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return apperr.ErrSessionNotFound
	}
	if !s.IsActive(id) {
		return apperr.ErrSessionNotActive
	}

	e.mu.Lock()
	cancel := e.cancel
	e.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// ClearAll removes every session and active entry, used by new_chat after
// every active session has been cancelled and settled.
func (s *Store) ClearAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]*entry)
	s.active = make(map[string]struct{})
}

// Stats summarizes the store.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	total := len(s.sessions)
	activeCount := len(s.active)
	return Stats{
		TotalSessions:    total,
		ActiveSessions:   activeCount,
		TerminalSessions: total - activeCount,
	}
}

// ActiveIDs returns a snapshot of currently active session ids.
func (s *Store) ActiveIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

func (s *Store) withSession(id string, fn func(*Session)) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.sess)
}

func (s *Store) sweepLoop() {
	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.sweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Store) sweep() {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.sessions {
		e.mu.Lock()
		terminal := e.sess.Status.IsTerminal()
		endTime := e.sess.EndTime
		e.mu.Unlock()

		if terminal && !endTime.IsZero() && now.Sub(endTime) > s.idleTTL {
			delete(s.sessions, id)
			delete(s.active, id)
		}
	}
}
