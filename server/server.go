// Package server exposes conversation sessions over HTTP and websockets:
// session lifecycle endpoints, turn submission, and a streaming transport
// for delta-by-delta replies.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/parleyhq/parley/controller"
	"github.com/parleyhq/parley/core/protocol"
	"github.com/parleyhq/parley/history"
	"github.com/parleyhq/parley/session"
)

// Server routes browser requests onto a shared Controller. Sessions are
// tracked in-process; a restart drops them and clients start fresh.
type Server struct {
	cfg     Config
	ctrl    *controller.Controller
	logger  *slog.Logger
	mux     *http.ServeMux
	archive history.Store // nil when archiving is disabled

	mu       sync.RWMutex
	sessions map[string]*session.Session
}

// New creates a Server around an initialized Controller.
func New(cfg Config, ctrl *controller.Controller, logger *slog.Logger) (*Server, error) {
	if ctrl == nil {
		return nil, errors.New("controller is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	archive, err := history.NewStore(&cfg.History)
	if err != nil {
		return nil, err
	}

	s := &Server{
		cfg:      cfg,
		ctrl:     ctrl,
		logger:   logger,
		mux:      http.NewServeMux(),
		archive:  archive,
		sessions: make(map[string]*session.Session),
	}

	s.routes()
	return s, nil
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)

	s.mux.HandleFunc("POST /v1/sessions", s.handleSessionCreate)
	s.mux.HandleFunc("GET /v1/sessions/{id}", s.handleSessionGet)
	s.mux.HandleFunc("DELETE /v1/sessions/{id}", s.handleSessionDelete)
	s.mux.HandleFunc("POST /v1/sessions/{id}/reset", s.handleSessionReset)
	s.mux.HandleFunc("POST /v1/sessions/{id}/turns", s.handleTurn)
	s.mux.HandleFunc("GET /v1/sessions/{id}/stream", s.handleStream)

	s.mux.HandleFunc("GET /v1/history", s.handleHistoryList)
	s.mux.HandleFunc("GET /v1/history/{id}", s.handleHistoryGet)

	s.mux.HandleFunc("GET /{$}", s.handleIndex)
}

// Handler returns the mux wrapped in the middleware chain.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = Recover(s.logger, h)
	h = AccessLog(s.logger, h)
	h = RequestID(h)
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSessionCreate(w http.ResponseWriter, r *http.Request) {
	sess, err := s.ctrl.NewSession(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	s.sessions[sess.ID()] = sess
	s.mu.Unlock()

	writeJSON(w, http.StatusCreated, viewOf(sess))
}

func (s *Server) handleSessionGet(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.PathValue("id"))
	if !ok {
		s.writeError(w, r, errSessionNotFound)
		return
	}
	writeJSON(w, http.StatusOK, viewOf(sess))
}

func (s *Server) handleSessionDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.lookup(id)
	if !ok {
		s.writeError(w, r, errSessionNotFound)
		return
	}

	s.ctrl.CloseSession(sess)
	s.archiveSession(r.Context(), sess)
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	sess, ok := s.lookup(id)
	if !ok {
		s.writeError(w, r, errSessionNotFound)
		return
	}

	s.archiveSession(r.Context(), sess)

	fresh, err := s.ctrl.ResetSession(r.Context(), sess)
	if err != nil {
		// The old session is already retired; drop it so clients see 404
		// rather than a closed husk.
		s.mu.Lock()
		delete(s.sessions, id)
		s.mu.Unlock()
		s.writeError(w, r, err)
		return
	}

	s.mu.Lock()
	delete(s.sessions, id)
	s.sessions[fresh.ID()] = fresh
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, viewOf(fresh))
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.PathValue("id"))
	if !ok {
		s.writeError(w, r, errSessionNotFound)
		return
	}

	var body struct {
		Text string `json:"text"`
	}
	if err := readJSON(r, &body); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody("bad_request", err.Error()))
		return
	}

	turn, err := s.ctrl.SubmitTurn(r.Context(), sess, body.Text)
	if errors.Is(err, controller.ErrEmptyReply) {
		writeJSON(w, http.StatusOK, map[string]any{"turn": nil})
		return
	}
	if err != nil {
		s.writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"turn": turn})
}

func (s *Server) handleHistoryList(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		writeJSON(w, http.StatusOK, map[string]any{"sessions": []string{}})
		return
	}
	ids, err := s.archive.List(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": ids})
}

func (s *Server) handleHistoryGet(w http.ResponseWriter, r *http.Request) {
	if s.archive == nil {
		s.writeError(w, r, errSessionNotFound)
		return
	}
	a, err := s.archive.Load(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// archiveSession persists the transcript of a session being retired. Best
// effort: an archive failure is logged, never surfaced to the client.
func (s *Server) archiveSession(ctx context.Context, sess *session.Session) {
	if s.archive == nil {
		return
	}
	turns := sess.Transcript()
	if len(turns) == 0 {
		return
	}

	a := history.Archive{
		SessionID: sess.ID(),
		ThreadRef: sess.ThreadRef(),
		ClosedAt:  time.Now().UTC(),
		Turns:     turns,
	}
	if err := s.archive.Save(ctx, a); err != nil {
		s.logger.Warn("archive failed", "session_id", sess.ID(), "error", err)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = io.WriteString(w, indexHTML)
}

func (s *Server) lookup(id string) (*session.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

var errSessionNotFound = errors.New("session not found")

// classify maps the controller's error taxonomy onto an HTTP status, a
// wire-level error code shared by the JSON and websocket transports, and a
// client-safe message. The wrapped error detail stays in the server log.
func classify(err error) (status int, code, message string) {
	switch {
	case errors.Is(err, errSessionNotFound), errors.Is(err, session.ErrClosed),
		errors.Is(err, history.ErrNotFound):
		return http.StatusNotFound, "session_not_found", "session not found"
	case errors.Is(err, session.ErrBusy):
		return http.StatusConflict, "session_busy", "a turn is already awaiting a reply"
	case errors.Is(err, controller.ErrTimeout):
		return http.StatusGatewayTimeout, "timeout", "the agent did not reply in time"
	case errors.Is(err, controller.ErrRunFailed):
		return http.StatusBadGateway, "agent_run_failed", "the agent could not complete a reply"
	case errors.Is(err, controller.ErrRemoteUnavailable):
		return http.StatusBadGateway, "remote_unavailable", "the agent service is unreachable"
	default:
		return http.StatusInternalServerError, "internal", "internal error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code, message := classify(err)

	reqID, _ := RequestIDFrom(r.Context())
	if status >= 500 {
		s.logger.Warn("request failed", "request_id", reqID, "path", r.URL.Path, "code", code, "error", err)
	} else {
		s.logger.Debug("request rejected", "request_id", reqID, "path", r.URL.Path, "code", code, "error", err)
	}
	writeJSON(w, status, errorBody(code, message))
}

type sessionView struct {
	ID         string          `json:"id"`
	ThreadRef  string          `json:"thread_ref"`
	Status     session.Status  `json:"status"`
	Transcript []protocol.Turn `json:"transcript"`
}

func viewOf(sess *session.Session) sessionView {
	transcript := sess.Transcript()
	if transcript == nil {
		transcript = []protocol.Turn{}
	}
	return sessionView{
		ID:         sess.ID(),
		ThreadRef:  sess.ThreadRef(),
		Status:     sess.Status(),
		Transcript: transcript,
	}
}

func errorBody(code, message string) map[string]any {
	return map[string]any{"error": map[string]any{"code": code, "message": message}}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	return dec.Decode(v)
}
