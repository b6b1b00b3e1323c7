// SPDX-License-Identifier: MIT

// Package api exposes the opgate control surface: aggregate status, the
// configured operations, manual source toggling, and the episode journal.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/ManuGH/opgate/internal/config"
	"github.com/ManuGH/opgate/internal/journal"
	oplog "github.com/ManuGH/opgate/internal/log"
	"github.com/ManuGH/opgate/internal/notify"
	"github.com/ManuGH/opgate/internal/source"
)

// Checker is a readiness probe for one backing dependency.
type Checker struct {
	Name  string
	Check func(ctx context.Context) error
}

// Deps carries everything the API server reads or mutates.
type Deps struct {
	Tracker    *notify.Tracker
	Operations []config.Operation
	Sources    map[string]source.Source
	Manual     map[string]*source.Manual // subset of Sources that can be toggled
	Journal    *journal.Journal          // nil disables /api/episodes
	Checkers   []Checker
	Version    string
}

// Server is the opgate HTTP control server.
type Server struct {
	deps   Deps
	router chi.Router
	logger zerolog.Logger
}

// New creates the API server and mounts all routes.
func New(deps Deps) *Server {
	s := &Server{
		deps:   deps,
		logger: oplog.WithComponent("api"),
	}

	r := chi.NewRouter()
	r.Use(recoverer)
	r.Use(requestID)
	r.Use(requestLogger)

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(rateLimit(120, time.Minute))
		r.Get("/status", s.handleStatus)
		r.Get("/operations", s.handleOperations)
		r.Post("/operations/{name}/active", s.handleSetActive)
		r.Get("/episodes", s.handleEpisodes)
	})

	s.router = r
	return s
}

// Handler returns the mounted HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Warn().Err(err).Msg("failed to encode response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.deps.Version,
	})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	checks := make(map[string]string, len(s.deps.Checkers))
	ready := true
	for _, c := range s.deps.Checkers {
		if err := c.Check(ctx); err != nil {
			checks[c.Name] = err.Error()
			ready = false
		} else {
			checks[c.Name] = "ok"
		}
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	s.writeJSON(w, status, map[string]any{
		"ready":  ready,
		"checks": checks,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, s.deps.Tracker.Snapshot())
}

type operationView struct {
	Name   string            `json:"name"`
	Source config.SourceKind `json:"source"`
	Active bool              `json:"active"`
}

func (s *Server) handleOperations(w http.ResponseWriter, _ *http.Request) {
	views := make([]operationView, 0, len(s.deps.Operations))
	for _, op := range s.deps.Operations {
		view := operationView{Name: op.Name, Source: op.Source}
		if src, ok := s.deps.Sources[op.Name]; ok {
			view.Active = src.Active()
		}
		views = append(views, view)
	}
	s.writeJSON(w, http.StatusOK, views)
}

type setActiveRequest struct {
	Active bool `json:"active"`
}

func (s *Server) handleSetActive(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if _, ok := s.deps.Sources[name]; !ok {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("unknown operation %q", name))
		return
	}

	manual, ok := s.deps.Manual[name]
	if !ok {
		s.writeError(w, http.StatusConflict, fmt.Sprintf("operation %q is not manually controlled", name))
		return
	}

	var req setActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	manual.Set(req.Active)
	s.logger.Info().
		Str("operation", name).
		Bool("active", req.Active).
		Str("request_id", oplog.RequestIDFromContext(r.Context())).
		Msg("manual source toggled")

	s.writeJSON(w, http.StatusOK, operationView{
		Name:   name,
		Source: config.SourceManual,
		Active: req.Active,
	})
}

func (s *Server) handleEpisodes(w http.ResponseWriter, r *http.Request) {
	if s.deps.Journal == nil {
		s.writeError(w, http.StatusNotImplemented, "episode journal is disabled")
		return
	}

	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 1000 {
			s.writeError(w, http.StatusBadRequest, "limit must be an integer between 1 and 1000")
			return
		}
		limit = parsed
	}

	episodes, err := s.deps.Journal.Recent(r.Context(), limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to query episodes")
		s.writeError(w, http.StatusInternalServerError, "failed to query episodes")
		return
	}
	if episodes == nil {
		episodes = []journal.Episode{}
	}
	s.writeJSON(w, http.StatusOK, episodes)
}
