// Package server implements the /events REST resource the tracker syncs
// against, backed by SQLite.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"

	appLog "timetrack/internal/log"
	"timetrack/internal/model"
	"timetrack/internal/remote"
)

const (
	defaultTitle   = "New event"
	maxRequestBody = 1 << 20
)

// Repository is the storage behind the server.
type Repository interface {
	List(ctx context.Context) ([]model.Event, error)
	Get(ctx context.Context, id int64) (model.Event, error)
	Create(ctx context.Context, d model.Draft) (model.Event, error)
	Replace(ctx context.Context, e model.Event) (model.Event, error)
	Delete(ctx context.Context, id int64) error
}

// Server provides the HTTP API for the events collection.
type Server struct {
	repo  Repository
	title string
	mux   *http.ServeMux
}

// NewServer constructs a new Server. title replaces empty event titles.
func NewServer(repo Repository, title string) *Server {
	if strings.TrimSpace(title) == "" {
		title = defaultTitle
	}
	s := &Server{
		repo:  repo,
		title: title,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.mux)
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func ListenAndServe(ctx context.Context, addr string, s *Server) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+addr)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	appLog.Info("shutting down HTTP server")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /events", s.handleList)
	s.mux.HandleFunc("POST /events", s.handleCreate)
	s.mux.HandleFunc("GET /events/{id}", s.handleGet)
	s.mux.HandleFunc("PUT /events/{id}", s.handleReplace)
	s.mux.HandleFunc("DELETE /events/{id}", s.handleDelete)
}

// logRequests logs each request with the caller's request id, if any.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		start := time.Now()
		next.ServeHTTP(sw, r)
		appLog.Debug("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", sw.status,
			"request_id", r.Header.Get(remote.RequestIDHeader),
			"duration", time.Since(start),
		)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	list, err := s.repo.List(r.Context())
	if err != nil {
		s.storageError(w, "list", err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	e, err := s.repo.Get(r.Context(), id)
	if err != nil {
		s.storageError(w, "get", err)
		return
	}
	writeJSON(w, http.StatusOK, e)
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var d model.Draft
	if !decodeBody(w, r, &d) {
		return
	}
	d.Title = s.normalizeTitle(d.Title)

	created, err := s.repo.Create(r.Context(), d)
	if err != nil {
		s.storageError(w, "create", err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// handleReplace overwrites the event; the id in the path wins over any id
// in the body.
func (s *Server) handleReplace(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var e model.Event
	if !decodeBody(w, r, &e) {
		return
	}
	e.ID = id
	e.Title = s.normalizeTitle(e.Title)

	updated, err := s.repo.Replace(r.Context(), e)
	if err != nil {
		s.storageError(w, "replace", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := s.repo.Delete(r.Context(), id); err != nil {
		s.storageError(w, "delete", err)
		return
	}
	writeJSON(w, http.StatusOK, struct{}{})
}

func (s *Server) normalizeTitle(title string) string {
	t := norm.NFC.String(strings.TrimSpace(title))
	if t == "" {
		return s.title
	}
	return t
}

func (s *Server) storageError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, ErrNotFound) {
		writeError(w, http.StatusNotFound, "event not found")
		return
	}
	appLog.Error("events storage failed", err, "op", op)
	writeError(w, http.StatusInternalServerError, "storage error")
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid event id: "+raw)
		return 0, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	if err := dec.Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "malformed JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
