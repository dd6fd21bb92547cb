package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore() *Store {
	return NewStore(30*time.Minute, time.Hour) // hourly sweep never fires during a test
}

func TestCreateAndGet(t *testing.T) {
	s := newTestStore()
	defer s.Stop()

	id := s.Create("who wrote it")
	sess, ok := s.Get(id)
	require.True(t, ok)
	assert.Equal(t, StatusRunning, sess.Status)
	assert.True(t, s.IsActive(id))
}

func TestAddOrReplaceStepIdempotent(t *testing.T) {
	s := newTestStore()
	defer s.Stop()

	id := s.Create("q")
	s.AddOrReplaceStep(id, Step{ID: "step-1", Kind: StepPlan, Status: StepRunning})
	s.AddOrReplaceStep(id, Step{ID: "step-2", Kind: StepSearch, Status: StepRunning})
	s.AddOrReplaceStep(id, Step{ID: "step-1", Kind: StepPlan, Status: StepCompleted})

	sess, _ := s.Get(id)
	require.Len(t, sess.Steps, 2)
	assert.Equal(t, StepCompleted, sess.Steps[0].Status)
}

func TestMarkTerminalIsNoOpOnceTerminal(t *testing.T) {
	s := newTestStore()
	defer s.Stop()

	id := s.Create("q")
	s.MarkTerminal(id, StatusCompleted, "")
	s.MarkTerminal(id, StatusError, "should not apply")

	sess, _ := s.Get(id)
	assert.Equal(t, StatusCompleted, sess.Status)
	assert.Empty(t, sess.Error)
	assert.False(t, s.IsActive(id))
}

func TestSetSourcesDedupesByLinkPreservingOrder(t *testing.T) {
	s := newTestStore()
	defer s.Stop()

	id := s.Create("q")
	s.SetSources(id, []Source{
		{Title: "a", Link: "https://a"},
		{Title: "b", Link: "https://b"},
		{Title: "a-dup", Link: "https://a"},
	})

	sess, _ := s.Get(id)
	require.Len(t, sess.Sources, 2)
	assert.Equal(t, "https://a", sess.Sources[0].Link)
	assert.Equal(t, "https://b", sess.Sources[1].Link)
}

func TestCancelUnknownSessionReturnsError(t *testing.T) {
	s := newTestStore()
	defer s.Stop()

	err := s.Cancel("does-not-exist")
	assert.Error(t, err)
}

func TestCancelInactiveSessionReturnsError(t *testing.T) {
	s := newTestStore()
	defer s.Stop()

	id := s.Create("q")
	s.MarkTerminal(id, StatusCompleted, "")

	err := s.Cancel(id)
	assert.Error(t, err)
}

func TestClearAllEmptiesStore(t *testing.T) {
	s := newTestStore()
	defer s.Stop()

	s.Create("a")
	s.Create("b")
	s.ClearAll()

	stats := s.Stats()
	assert.Equal(t, 0, stats.TotalSessions)
}

func TestStatsReflectsActiveAndTerminal(t *testing.T) {
	s := newTestStore()
	defer s.Stop()

	id1 := s.Create("a")
	s.Create("b")
	s.MarkTerminal(id1, StatusCompleted, "")

	stats := s.Stats()
	assert.Equal(t, 2, stats.TotalSessions)
	assert.Equal(t, 1, stats.ActiveSessions)
	assert.Equal(t, 1, stats.TerminalSessions)
}
