// Package web exposes sets, items and the review scheduler over a JSON API.
//
// Authentication is handled in front of this server; the caller's account
// arrives in the X-Owner-ID header.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/conorfennell/revq/internal/domain"
	"github.com/conorfennell/revq/internal/queue"
	"github.com/conorfennell/revq/internal/scheduler"
	"github.com/conorfennell/revq/internal/storage"
	"github.com/conorfennell/revq/internal/validate"
)

// OwnerHeader carries the id of the authenticated account.
const OwnerHeader = "X-Owner-ID"

// Store is the set and item storage the server needs.
type Store interface {
	CreateSet(ctx context.Context, set domain.Set) (domain.Set, error)
	GetSet(ctx context.Context, setID, ownerID string) (domain.Set, error)
	ListSets(ctx context.Context, ownerID string) ([]domain.Set, error)
	DeleteSet(ctx context.Context, setID, ownerID string) error
	CreateItem(ctx context.Context, item domain.Item, initial domain.ReviewState) error
	FindItem(ctx context.Context, itemID, ownerID string) (storage.ItemView, error)
	ListItems(ctx context.Context, setID, ownerID string) ([]storage.ItemView, error)
	DeleteItem(ctx context.Context, itemID, ownerID string) error
	Summaries(ctx context.Context, ownerID string, asOf time.Time) ([]storage.SetSummary, error)
}

// Reviewer is the scheduling surface the server needs.
type Reviewer interface {
	RecordAnswer(ctx context.Context, itemID, ownerID string, remembered bool, at time.Time) (domain.ReviewState, error)
	GetDueQueue(ctx context.Context, ownerID, setID string, asOf time.Time) (iter.Seq[string], error)
}

// Server holds the dependencies for the HTTP server.
type Server struct {
	db      Store
	sched   Reviewer
	newItem func(createdAt time.Time) domain.ReviewState
	router  *http.ServeMux
	log     *slog.Logger
	timeout time.Duration
	now     func() time.Time
	newID   func() string
}

// Options tunes a Server. Zero values produce defaults.
type Options struct {
	RequestTimeout time.Duration    // zero → no per-request timeout
	Logger         *slog.Logger     // nil → slog.Default
	Now            func() time.Time // nil → time.Now
}

// NewServer creates and configures a new server. newItem builds the
// review state of a freshly created item.
func NewServer(db Store, sched Reviewer, newItem func(time.Time) domain.ReviewState, opts Options) *Server {
	s := &Server{
		db:      db,
		sched:   sched,
		newItem: newItem,
		router:  http.NewServeMux(),
		log:     opts.Logger,
		timeout: opts.RequestTimeout,
		now:     opts.Now,
		newID:   uuid.NewString,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if s.timeout > 0 {
		ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
		defer cancel()
		r = r.WithContext(ctx)
	}
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.HandleFunc("GET /sets", s.owned(s.handleListSets))
	s.router.HandleFunc("POST /sets", s.owned(s.handleCreateSet))
	s.router.HandleFunc("GET /sets/{id}", s.owned(s.handleGetSet))
	s.router.HandleFunc("DELETE /sets/{id}", s.owned(s.handleDeleteSet))
	s.router.HandleFunc("GET /sets/{id}/items", s.owned(s.handleListItems))
	s.router.HandleFunc("POST /sets/{id}/items", s.owned(s.handleCreateItem))
	s.router.HandleFunc("GET /items/{id}", s.owned(s.handleGetItem))
	s.router.HandleFunc("DELETE /items/{id}", s.owned(s.handleDeleteItem))
	s.router.HandleFunc("POST /items/{id}/answers", s.owned(s.handlePostAnswer))
	s.router.HandleFunc("GET /review/queue", s.owned(s.handleGetQueue))
	s.router.HandleFunc("GET /review/summary", s.owned(s.handleGetSummary))
}

type ownedHandler func(w http.ResponseWriter, r *http.Request, ownerID string)

// owned rejects requests that carry no owner.
func (s *Server) owned(h ownedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		owner := r.Header.Get(OwnerHeader)
		if owner == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + OwnerHeader + " header"})
			return
		}
		h(w, r, owner)
	}
}

type setRequest struct {
	Name        string `json:"name" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type setResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toSetResponse(set domain.Set) setResponse {
	return setResponse{ID: set.ID, Name: set.Name, Description: set.Description, CreatedAt: set.CreatedAt}
}

func (s *Server) handleListSets(w http.ResponseWriter, r *http.Request, owner string) {
	sets, err := s.db.ListSets(r.Context(), owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]setResponse, 0, len(sets))
	for _, set := range sets {
		out = append(out, toSetResponse(set))
	}
	writeJSON(w, http.StatusOK, map[string]any{"sets": out})
}

func (s *Server) handleCreateSet(w http.ResponseWriter, r *http.Request, owner string) {
	var req setRequest
	if !s.decode(w, r, &req) {
		return
	}
	set, err := s.db.CreateSet(r.Context(), domain.Set{
		ID:          s.newID(),
		OwnerID:     owner,
		Name:        req.Name,
		Description: req.Description,
		CreatedAt:   s.now().UTC(),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSetResponse(set))
}

func (s *Server) handleGetSet(w http.ResponseWriter, r *http.Request, owner string) {
	set, err := s.db.GetSet(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toSetResponse(set))
}

func (s *Server) handleDeleteSet(w http.ResponseWriter, r *http.Request, owner string) {
	if err := s.db.DeleteSet(r.Context(), r.PathValue("id"), owner); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type itemRequest struct {
	QuestionImageURL string `json:"question_image_url" validate:"required"`
	AnswerImageURL   string `json:"answer_image_url" validate:"required"`
}

type stateResponse struct {
	LastAnsweredAt *time.Time `json:"last_answered_at"`
	NextDueAt      time.Time  `json:"next_due_at"`
	IntervalDays   int        `json:"interval_days"`
	EaseFactor     float64    `json:"ease_factor"`
	LapseCount     int        `json:"lapse_count"`
}

type itemResponse struct {
	ID               string        `json:"id"`
	SetID            string        `json:"set_id"`
	QuestionImageURL string        `json:"question_image_url"`
	AnswerImageURL   string        `json:"answer_image_url"`
	CreatedAt        time.Time     `json:"created_at"`
	Review           stateResponse `json:"review"`
}

func toStateResponse(st domain.ReviewState) stateResponse {
	return stateResponse{
		LastAnsweredAt: st.LastAnsweredAt,
		NextDueAt:      st.NextDueAt,
		IntervalDays:   st.IntervalDays,
		EaseFactor:     st.EaseFactor,
		LapseCount:     st.LapseCount,
	}
}

func toItemResponse(it domain.Item, st domain.ReviewState) itemResponse {
	return itemResponse{
		ID:               it.ID,
		SetID:            it.SetID,
		QuestionImageURL: it.QuestionImageURL,
		AnswerImageURL:   it.AnswerImageURL,
		CreatedAt:        it.CreatedAt,
		Review:           toStateResponse(st),
	}
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request, owner string) {
	setID := r.PathValue("id")
	// An unknown set is a 404, not an empty list.
	if _, err := s.db.GetSet(r.Context(), setID, owner); err != nil {
		s.writeError(w, r, err)
		return
	}
	items, err := s.db.ListItems(r.Context(), setID, owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	out := make([]itemResponse, 0, len(items))
	for _, it := range items {
		out = append(out, toItemResponse(it.Item, it.State))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (s *Server) handleCreateItem(w http.ResponseWriter, r *http.Request, owner string) {
	var req itemRequest
	if !s.decode(w, r, &req) {
		return
	}
	now := s.now().UTC()
	item := domain.Item{
		ID:               s.newID(),
		SetID:            r.PathValue("id"),
		OwnerID:          owner,
		QuestionImageURL: req.QuestionImageURL,
		AnswerImageURL:   req.AnswerImageURL,
		CreatedAt:        now,
	}
	initial := s.newItem(now)
	if err := s.db.CreateItem(r.Context(), item, initial); err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toItemResponse(item, initial))
}

func (s *Server) handleGetItem(w http.ResponseWriter, r *http.Request, owner string) {
	it, err := s.db.FindItem(r.Context(), r.PathValue("id"), owner)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toItemResponse(it.Item, it.State))
}

func (s *Server) handleDeleteItem(w http.ResponseWriter, r *http.Request, owner string) {
	if err := s.db.DeleteItem(r.Context(), r.PathValue("id"), owner); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type answerRequest struct {
	Remembered *bool      `json:"remembered" validate:"required"`
	At         *time.Time `json:"at"`
}

// handlePostAnswer records a review outcome and returns the new state.
func (s *Server) handlePostAnswer(w http.ResponseWriter, r *http.Request, owner string) {
	var req answerRequest
	if !s.decode(w, r, &req) {
		return
	}
	at := s.now().UTC()
	if req.At != nil {
		at = req.At.UTC()
	}

	itemID := r.PathValue("id")
	st, err := s.sched.RecordAnswer(r.Context(), itemID, owner, *req.Remembered, at)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"item_id": itemID, "review": toStateResponse(st)})
}

// handleGetQueue returns the ordered ids of the owner's due items.
func (s *Server) handleGetQueue(w http.ResponseWriter, r *http.Request, owner string) {
	asOf, ok := s.asOf(w, r)
	if !ok {
		return
	}
	setID := r.URL.Query().Get("set")
	seq, err := s.sched.GetDueQueue(r.Context(), owner, setID, asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"as_of": asOf, "item_ids": queue.Collect(seq)})
}

type summaryResponse struct {
	SetID string `json:"set_id"`
	Name  string `json:"name"`
	Items int    `json:"items"`
	Due   int    `json:"due"`
}

func (s *Server) handleGetSummary(w http.ResponseWriter, r *http.Request, owner string) {
	asOf, ok := s.asOf(w, r)
	if !ok {
		return
	}
	summaries, err := s.db.Summaries(r.Context(), owner, asOf)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	total := 0
	out := make([]summaryResponse, 0, len(summaries))
	for _, sm := range summaries {
		total += sm.Due
		out = append(out, summaryResponse{SetID: sm.SetID, Name: sm.Name, Items: sm.Items, Due: sm.Due})
	}
	writeJSON(w, http.StatusOK, map[string]any{"as_of": asOf, "due": total, "sets": out})
}

func (s *Server) asOf(w http.ResponseWriter, r *http.Request) (time.Time, bool) {
	raw := r.URL.Query().Get("as_of")
	if raw == "" {
		return s.now().UTC(), true
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "as_of must be an RFC 3339 timestamp"})
		return time.Time{}, false
	}
	return t.UTC(), true
}

// decode reads a JSON body into dst and validates it.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

// writeError maps domain and scheduler errors onto status codes.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound), errors.Is(err, scheduler.ErrItemNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrInvalidInput), errors.Is(err, scheduler.ErrInvalidOutcome):
		status = http.StatusBadRequest
	case errors.Is(err, scheduler.ErrStoreUnavailable),
		errors.Is(err, context.DeadlineExceeded):
		status = http.StatusServiceUnavailable
	}

	if status >= 500 {
		s.log.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorBody{Error: http.StatusText(status)})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}
