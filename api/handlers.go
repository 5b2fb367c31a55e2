package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/go-chi/chi/v5"

	"ray/runner"
	"ray/runner/storage"
)

// Server holds what the handlers need.
type Server struct {
	Store    *storage.Storage
	Projects *runner.ProjectsConfig
	// Run deploys one project. It is called from its own goroutine.
	Run   runner.RunFunc
	Guard *runner.Guard
	Log   *slog.Logger
	// BaseContext is the parent of triggered runs; it defaults to
	// context.Background().
	BaseContext context.Context

	runs sync.WaitGroup
}

// Wait blocks until every run triggered through the API has returned.
func (s *Server) Wait() {
	s.runs.Wait()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]string{"error": fmt.Sprintf(format, args...)})
}

// GetRuns returns the most recent runs of every project.
func (s *Server) GetRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Store.GetRuns(limitParam(r, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get runs: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetRun returns a single run with its stages.
func (s *Server) GetRun(w http.ResponseWriter, r *http.Request) {
	runID, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid run ID %q", chi.URLParam(r, "id"))
		return
	}

	run, err := s.Store.GetRun(runID)
	if errors.Is(err, storage.ErrRunNotFound) {
		writeError(w, http.StatusNotFound, "run %d not found", runID)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get run: %v", err)
		return
	}

	stages, err := s.Store.GetStageExecutions(runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get stages: %v", err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		Run    *storage.Run              `json:"run"`
		Stages []*storage.StageExecution `json:"stages"`
	}{run, stages})
}

// ProjectResponse is a configured project with its validation result.
type ProjectResponse struct {
	runner.ProjectConfig
	Valid   bool   `json:"valid"`
	Error   string `json:"error,omitempty"`
	Running bool   `json:"running"`
}

// MarshalJSON keeps the project's own encoding and adds the status fields.
func (p ProjectResponse) MarshalJSON() ([]byte, error) {
	project, err := json.Marshal(p.ProjectConfig)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(project, &fields); err != nil {
		return nil, err
	}
	fields["valid"] = p.Valid
	fields["running"] = p.Running
	if p.Error != "" {
		fields["error"] = p.Error
	}
	return json.Marshal(fields)
}

// GetProjects returns all configured projects
func (s *Server) GetProjects(w http.ResponseWriter, r *http.Request) {
	projects := make([]ProjectResponse, 0, len(s.Projects.Projects))
	for _, project := range s.Projects.Projects {
		pr := ProjectResponse{ProjectConfig: project, Valid: true, Running: s.Guard.Running(project.Name)}
		if err := project.Validate(); err != nil {
			pr.Valid = false
			pr.Error = err.Error()
		}
		projects = append(projects, pr)
	}
	writeJSON(w, http.StatusOK, projects)
}

// GetProjectRuns returns runs for a specific project
func (s *Server) GetProjectRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := s.Store.GetRunsByProject(chi.URLParam(r, "name"), limitParam(r, 100))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get runs: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, runs)
}

// GetProjectStats returns aggregated run counts for a project.
func (s *Server) GetProjectStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.Store.GetProjectStats(chi.URLParam(r, "name"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to get project stats: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// PostProjectRun triggers a pipeline run for a specific project. The run
// happens in the background; the response only says it was accepted.
func (s *Server) PostProjectRun(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	project, err := s.Projects.GetProject(name)
	if err != nil {
		writeError(w, http.StatusNotFound, "%v", err)
		return
	}
	if err := project.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "invalid project: %v", err)
		return
	}
	if !s.Guard.TryAcquire(project.Name) {
		writeError(w, http.StatusConflict, "project %s is already running", project.Name)
		return
	}

	ctx := s.BaseContext
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := *project
	s.Log.Info("triggering pipeline", "project", cfg.Name, "remote", r.RemoteAddr)

	s.runs.Add(1)
	go func() {
		defer s.runs.Done()
		defer s.Guard.Release(cfg.Name)
		if err := s.Run(ctx, cfg); err != nil {
			s.Log.Error("triggered run failed", "project", cfg.Name, "error", err)
			return
		}
		s.Log.Info("triggered run completed", "project", cfg.Name)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{
		"message": fmt.Sprintf("Pipeline started for %s", cfg.Name),
		"status":  "starting",
	})
}

func limitParam(r *http.Request, def int) int {
	if n, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil && n > 0 && n <= 1000 {
		return n
	}
	return def
}
