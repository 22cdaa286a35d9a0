// Package server exposes the resolution pipeline over HTTP for callers
// that submit work and poll for results. Resolutions run asynchronously:
// submission returns a request id immediately, status and results are
// fetched by polling that id. Compatibility checks are quick enough to
// answer synchronously.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/matzehuels/stackfuse/pkg/errors"
	"github.com/matzehuels/stackfuse/pkg/jobs"
	"github.com/matzehuels/stackfuse/pkg/pipeline"
)

// Server handles the HTTP API. Construct it with New.
type Server struct {
	runner  *pipeline.Runner
	tracker *jobs.Tracker
	logger  *log.Logger

	// base holds the pipeline settings each request inherits; the request
	// body only contributes repositories and per-run switches.
	base pipeline.Options
}

// New creates a server around a pipeline runner. base carries the
// pipeline defaults configured at startup (depth, timeouts, solvers).
func New(runner *pipeline.Runner, base pipeline.Options, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		runner:  runner,
		tracker: jobs.NewTracker(),
		logger:  logger,
		base:    base,
	}
}

// Routes builds the HTTP handler.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Post("/resolutions", s.handleSubmit)
		r.Get("/resolutions", s.handleList)
		r.Get("/resolutions/{id}", s.handleStatus)
		r.Post("/compat", s.handleCompat)
	})
	return r
}

// resolutionRequest is the submission body for resolutions and
// compatibility checks.
type resolutionRequest struct {
	Repos []repoRef `json:"repos"`

	// Strict fails the run instead of recording incompatible pairs.
	Strict bool `json:"strict,omitempty"`
}

type repoRef struct {
	ID   string `json:"id"`
	Root string `json:"root"`
}

func (req *resolutionRequest) options(base pipeline.Options) pipeline.Options {
	opts := base
	opts.Repos = nil
	for _, r := range req.Repos {
		opts.Repos = append(opts.Repos, pipeline.RepoInput{ID: r.ID, Root: r.Root})
	}
	opts.Strict = req.Strict
	return opts
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req resolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "undecodable request body"))
		return
	}

	opts := req.options(s.base)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		writeError(w, err)
		return
	}

	repoIDs := make([]string, len(opts.Repos))
	for i, repo := range opts.Repos {
		repoIDs[i] = repo.ID
	}
	id := s.tracker.Create(repoIDs)

	// The request context dies with the connection; the job must not.
	go s.run(context.Background(), id, opts)

	writeJSON(w, http.StatusAccepted, map[string]string{"id": id})
}

// run drives one resolution in the background, reporting progress through
// the tracker.
func (s *Server) run(ctx context.Context, id string, opts pipeline.Options) {
	s.tracker.Advance(id, jobs.StateAnalyzing)

	opts.SkipSolve = false
	opts.OnSolveStart = func() { s.tracker.Advance(id, jobs.StateSolving) }
	result, err := s.runner.Execute(ctx, opts)
	if err != nil {
		s.logger.Warn("resolution failed", "id", id, "err", err)
		s.tracker.Fail(id, err)
		return
	}
	s.tracker.Complete(id, result.Resolution)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	job, err := s.tracker.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.tracker.List())
}

func (s *Server) handleCompat(w http.ResponseWriter, r *http.Request) {
	var req resolutionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidInput, err, "undecodable request body"))
		return
	}

	opts := req.options(s.base)
	opts.SkipSolve = true
	opts.Strict = false
	result, err := s.runner.Execute(r.Context(), opts)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result.Compat)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps error codes onto HTTP statuses and renders a stable
// error body.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch errors.GetCode(err) {
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidPath:
		status = http.StatusBadRequest
	case errors.ErrCodeNotFound, errors.ErrCodeFileNotFound, errors.ErrCodeRequestNotFound:
		status = http.StatusNotFound
	case errors.ErrCodeDependencyConflict, errors.ErrCodeCompatibility:
		status = http.StatusUnprocessableEntity
	case errors.ErrCodeSolverUnavailable:
		status = http.StatusServiceUnavailable
	case errors.ErrCodeResolutionTimeout:
		status = http.StatusGatewayTimeout
	}

	writeJSON(w, status, map[string]string{
		"code":  string(errors.GetCode(err)),
		"error": errors.UserMessage(err),
	})
}
