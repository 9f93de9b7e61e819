// Package server exposes interview sessions over a JSON HTTP API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/spigell/interviewd/internal/dialog"
	"github.com/spigell/interviewd/internal/interview"
	"github.com/spigell/interviewd/internal/logger"
	"go.uber.org/zap"
)

const (
	maxBodyBytes    = 64 << 10
	shutdownTimeout = 10 * time.Second
)

// Interviewer runs the turn pipeline. *dialog.Orchestrator implements it.
type Interviewer interface {
	Start(ctx context.Context, candidate, role string) (*interview.Session, dialog.Reply)
	Process(ctx context.Context, s *interview.Session, text string) dialog.Reply
}

// SessionGauge tracks sessions held in memory. *metrics.Recorder implements it.
type SessionGauge interface {
	SessionOpened()
	SessionClosed()
}

// PersistFunc stores a completed session. It is called once per session.
type PersistFunc func(ctx context.Context, s *interview.Session) error

type Options struct {
	Interviewer Interviewer
	Persist     PersistFunc
	Gauge       SessionGauge
	Metrics     http.Handler
	Logger      *zap.Logger
}

type entry struct {
	mu        sync.Mutex
	session   *interview.Session
	persisted bool
}

// Server holds live sessions. The registry lock only guards the map; turns of one
// session are serialized by the entry lock so different sessions never wait on each other.
type Server struct {
	interviewer Interviewer
	persist     PersistFunc
	gauge       SessionGauge
	metrics     http.Handler
	logger      *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*entry
}

func New(opts Options) (*Server, error) {
	if opts.Interviewer == nil {
		return nil, errors.New("interviewer is required")
	}

	return &Server{
		interviewer: opts.Interviewer,
		persist:     opts.Persist,
		gauge:       opts.Gauge,
		metrics:     opts.Metrics,
		logger:      logger.ForComponent(opts.Logger, "server"),
		sessions:    make(map[string]*entry),
	}, nil
}

// Router builds the chi router with all routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(s.logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api/v1/sessions", func(r chi.Router) {
		r.Post("/", s.handleCreate)
		r.Get("/{id}", s.handleGet)
		r.Post("/{id}/turns", s.handleTurn)
	})

	return r
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// A turn may wait on several generations in a row.
		WriteTimeout: 3 * time.Minute,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down http server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type createRequest struct {
	Candidate string `json:"candidate"`
	Role      string `json:"role"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
	dialog.Reply
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	n := len(s.sessions)
	s.mu.RUnlock()

	JSON(w, http.StatusOK, map[string]any{"status": "ok", "sessions": n})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	req.Candidate = strings.TrimSpace(req.Candidate)
	req.Role = strings.TrimSpace(req.Role)
	if req.Candidate == "" || req.Role == "" {
		Error(w, http.StatusBadRequest, "candidate and role are required")
		return
	}

	session, reply := s.interviewer.Start(r.Context(), req.Candidate, req.Role)

	s.mu.Lock()
	s.sessions[session.ID] = &entry{session: session}
	s.mu.Unlock()
	if s.gauge != nil {
		s.gauge.SessionOpened()
	}

	JSON(w, http.StatusCreated, sessionResponse{SessionID: session.ID, Reply: reply})
}

type turnRequest struct {
	Message string `json:"message"`
}

func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	e := s.lookup(chi.URLParam(r, "id"))
	if e == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	var req turnRequest
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	reply := s.interviewer.Process(r.Context(), e.session, req.Message)
	if reply.Complete && !e.persisted {
		e.persisted = true
		s.finish(r.Context(), e.session)
	}

	JSON(w, http.StatusOK, sessionResponse{SessionID: e.session.ID, Reply: reply})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	e := s.lookup(chi.URLParam(r, "id"))
	if e == nil {
		Error(w, http.StatusNotFound, "session not found")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	JSON(w, http.StatusOK, e.session)
}

func (s *Server) lookup(id string) *entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sessions[id]
}

// finish persists a completed session. Persistence errors are logged; the reply is
// already final and the session stays readable from memory.
func (s *Server) finish(ctx context.Context, session *interview.Session) {
	if s.gauge != nil {
		s.gauge.SessionClosed()
	}
	if s.persist == nil {
		return
	}

	log := logger.WithFields(s.logger, logger.SessionFields(session.ID, string(session.Stage))...)
	if err := s.persist(context.WithoutCancel(ctx), session); err != nil {
		log.Error("persisting completed session", zap.Error(err))
		return
	}
	log.Info("completed session persisted")
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}
