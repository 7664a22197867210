package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conorfennell/revq/internal/scheduler"
	"github.com/conorfennell/revq/internal/storage"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

type testServer struct {
	t   *testing.T
	srv *Server
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	db, err := storage.Open(filepath.Join(t.TempDir(), "revq.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sched, err := scheduler.New(db, scheduler.Config{})
	require.NoError(t, err)

	srv := NewServer(db, sched, sched.Params().NewState, Options{
		RequestTimeout: time.Second,
		Now:            func() time.Time { return t0 },
	})
	n := 0
	srv.newID = func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
	return &testServer{t: t, srv: srv}
}

func (ts *testServer) do(method, path, owner, body string) (int, map[string]any) {
	ts.t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if owner != "" {
		req.Header.Set(OwnerHeader, owner)
	}
	rec := httptest.NewRecorder()
	ts.srv.ServeHTTP(rec, req)

	var out map[string]any
	if rec.Body.Len() > 0 {
		require.NoError(ts.t, json.Unmarshal(rec.Body.Bytes(), &out))
	}
	return rec.Code, out
}

func TestMissingOwner(t *testing.T) {
	ts := newTestServer(t)
	code, body := ts.do(http.MethodGet, "/sets", "", "")
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Contains(t, body["error"], OwnerHeader)
}

func TestSetLifecycle(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.do(http.MethodPost, "/sets", "alice", `{"name": ""}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(http.MethodPost, "/sets", "alice", `{"name": "x", "colour": "red"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := ts.do(http.MethodPost, "/sets", "alice", `{"name": " Biology ", "description": "cells"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.Equal(t, "id-1", body["id"])
	assert.Equal(t, "Biology", body["name"])

	code, body = ts.do(http.MethodGet, "/sets", "alice", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["sets"], 1)

	code, _ = ts.do(http.MethodGet, "/sets/id-1", "bob", "")
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do(http.MethodDelete, "/sets/id-1", "alice", "")
	assert.Equal(t, http.StatusNoContent, code)

	code, _ = ts.do(http.MethodGet, "/sets/id-1", "alice", "")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestReviewFlow(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.do(http.MethodPost, "/sets", "alice", `{"name": "Biology"}`)
	require.Equal(t, http.StatusCreated, code)

	code, _ = ts.do(http.MethodPost, "/sets/id-1/items", "bob", `{"question_image_url": "q.png", "answer_image_url": "a.png"}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, _ = ts.do(http.MethodPost, "/sets/id-1/items", "alice", `{"question_image_url": "q.png"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	for _, q := range []string{"q1.png", "q2.png"} {
		code, _ = ts.do(http.MethodPost, "/sets/id-1/items", "alice", fmt.Sprintf(`{"question_image_url": %q, "answer_image_url": "a.png"}`, q))
		require.Equal(t, http.StatusCreated, code)
	}

	code, body := ts.do(http.MethodGet, "/review/queue", "alice", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"id-2", "id-3"}, body["item_ids"])

	code, _ = ts.do(http.MethodPost, "/items/id-2/answers", "alice", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = ts.do(http.MethodPost, "/items/id-2/answers", "bob", `{"remembered": true}`)
	assert.Equal(t, http.StatusNotFound, code)

	code, body = ts.do(http.MethodPost, "/items/id-2/answers", "alice", `{"remembered": true}`)
	require.Equal(t, http.StatusOK, code)
	review := body["review"].(map[string]any)
	assert.Equal(t, float64(1), review["interval_days"])
	assert.Equal(t, "2025-06-16T10:00:00Z", review["next_due_at"])

	code, body = ts.do(http.MethodGet, "/review/queue?set=id-1", "alice", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"id-3"}, body["item_ids"])

	code, body = ts.do(http.MethodGet, "/review/queue?as_of=2025-06-16T10:00:00Z", "alice", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"id-3", "id-2"}, body["item_ids"])

	code, _ = ts.do(http.MethodGet, "/review/queue?as_of=tomorrow", "alice", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, body = ts.do(http.MethodGet, "/review/summary", "alice", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["due"])

	code, body = ts.do(http.MethodGet, "/items/id-2", "alice", "")
	require.Equal(t, http.StatusOK, code)
	assert.NotNil(t, body["review"].(map[string]any)["last_answered_at"])

	code, _ = ts.do(http.MethodDelete, "/items/id-2", "alice", "")
	assert.Equal(t, http.StatusNoContent, code)

	code, body = ts.do(http.MethodGet, "/sets/id-1/items", "alice", "")
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, body["items"], 1)
}

func TestEmptyQueue(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(http.MethodGet, "/review/queue", "nobody", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{}, body["item_ids"])
}

func TestAnswerWithExplicitTime(t *testing.T) {
	ts := newTestServer(t)
	ts.do(http.MethodPost, "/sets", "alice", `{"name": "Biology"}`)
	ts.do(http.MethodPost, "/sets/id-1/items", "alice", `{"question_image_url": "q.png", "answer_image_url": "a.png"}`)

	code, body := ts.do(http.MethodPost, "/items/id-2/answers", "alice", `{"remembered": false, "at": "2025-07-01T08:00:00Z"}`)
	require.Equal(t, http.StatusOK, code)
	review := body["review"].(map[string]any)
	assert.Equal(t, float64(1), review["lapse_count"])
	assert.Equal(t, "2025-07-02T08:00:00Z", review["next_due_at"])
}
