package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-research/deepresearch/pkg/apperr"
	"github.com/go-research/deepresearch/pkg/config"
	"github.com/go-research/deepresearch/pkg/session"
	"github.com/go-research/deepresearch/pkg/stream"
)

type fakeScheduler struct {
	startID       string
	startErr      error
	cancelErr     error
	newChatCalled bool
}

func (f *fakeScheduler) Start(query string) (string, error) { return f.startID, f.startErr }
func (f *fakeScheduler) Cancel(id string) error              { return f.cancelErr }
func (f *fakeScheduler) NewChat()                             { f.newChatCalled = true }

func newTestServer(t *testing.T, store *session.Store, bus *stream.Bus, sched SessionScheduler) http.Handler {
	t.Helper()
	cfg := config.Default()
	s := New(cfg, store, bus, sched, nil, "test-version")
	return s.Handler(nil)
}

func TestHandleStartSearchRejectsEmptyQuery(t *testing.T) {
	store := session.NewStore(time.Hour, time.Hour)
	defer store.Stop()
	bus := stream.NewBus(0, nil)
	defer bus.Stop()
	h := newTestServer(t, store, bus, &fakeScheduler{})

	body, _ := json.Marshal(searchRequest{Query: ""})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	var eb errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &eb))
	assert.Equal(t, apperr.KindInvalidQuery, eb.ErrorCode)
}

func TestHandleStartSearchSuccess(t *testing.T) {
	store := session.NewStore(time.Hour, time.Hour)
	defer store.Stop()
	bus := stream.NewBus(0, nil)
	defer bus.Stop()
	h := newTestServer(t, store, bus, &fakeScheduler{startID: "sess-1"})

	body, _ := json.Marshal(searchRequest{Query: "what is the capital of France?"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/search", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp searchStartedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "sess-1", resp.SearchID)
	assert.Equal(t, "started", resp.Status)
}

func TestHandleGetSearchUnknownIDReturns404(t *testing.T) {
	store := session.NewStore(time.Hour, time.Hour)
	defer store.Stop()
	bus := stream.NewBus(0, nil)
	defer bus.Stop()
	h := newTestServer(t, store, bus, &fakeScheduler{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/does-not-exist", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleGetSearchReturnsFullSession(t *testing.T) {
	store := session.NewStore(time.Hour, time.Hour)
	defer store.Stop()
	bus := stream.NewBus(0, nil)
	defer bus.Stop()
	id := store.Create("a query")
	h := newTestServer(t, store, bus, &fakeScheduler{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/search/"+id, nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var sess session.Session
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))
	assert.Equal(t, id, sess.ID)
	assert.Equal(t, "a query", sess.Query)
}

func TestHandleCancelSearchInactiveReturns409(t *testing.T) {
	store := session.NewStore(time.Hour, time.Hour)
	defer store.Stop()
	bus := stream.NewBus(0, nil)
	defer bus.Stop()
	h := newTestServer(t, store, bus, &fakeScheduler{cancelErr: apperr.ErrSessionNotActive})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/search/some-id/cancel", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleNewChatInvokesScheduler(t *testing.T) {
	store := session.NewStore(time.Hour, time.Hour)
	defer store.Stop()
	bus := stream.NewBus(0, nil)
	defer bus.Stop()
	sched := &fakeScheduler{}
	h := newTestServer(t, store, bus, sched)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/new-chat", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, sched.newChatCalled)
}

func TestHandleHealth(t *testing.T) {
	store := session.NewStore(time.Hour, time.Hour)
	defer store.Stop()
	bus := stream.NewBus(0, nil)
	defer bus.Stop()
	h := newTestServer(t, store, bus, &fakeScheduler{})

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "test-version", resp.Version)
}

func TestHandleStatsReflectsStore(t *testing.T) {
	store := session.NewStore(time.Hour, time.Hour)
	defer store.Stop()
	store.Create("q1")
	bus := stream.NewBus(0, nil)
	defer bus.Stop()
	h := newTestServer(t, store, bus, &fakeScheduler{})

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp statsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Sessions)
	assert.Equal(t, 1, resp.ActiveSearches)
}
