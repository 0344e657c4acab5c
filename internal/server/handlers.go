// File: internal/server/handlers.go
package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/socialgenius/loginforge/internal/auth"
	"github.com/socialgenius/loginforge/internal/observability"
)

// googleAuthRequest is the submit payload. The password never appears in
// any log or response.
type googleAuthRequest struct {
	BusinessID string `json:"business_id"`
	Email      string `json:"email"`
	Password   string `json:"password"`
}

type googleAuthResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// handleGoogleAuth validates the payload and submits the attempt. The
// response is immediate; the attempt runs in the background.
func (s *Server) handleGoogleAuth(w http.ResponseWriter, r *http.Request) {
	var req googleAuthRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON payload")
		return
	}
	if req.BusinessID == "" {
		s.writeError(w, http.StatusBadRequest, "business_id is required")
		return
	}
	creds := auth.Credentials{Email: req.Email, Password: req.Password}
	if err := creds.Validate(); err != nil {
		s.writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	task := s.runner.Submit(req.BusinessID, creds)
	s.logger.Info("Login attempt submitted",
		zap.String("task_id", task.ID),
		zap.String("business_id", req.BusinessID),
		zap.String("email", observability.MaskEmail(req.Email)))

	s.writeJSON(w, http.StatusAccepted, googleAuthResponse{
		TaskID: task.ID,
		Status: string(task.Status),
	})
}

// handleTaskStatus returns the current task snapshot.
func (s *Server) handleTaskStatus(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	task, ok := s.registry.Get(taskID)
	if !ok {
		s.writeError(w, http.StatusNotFound, "task not found")
		return
	}
	s.writeJSON(w, http.StatusOK, task)
}

// handleTerminate cancels a running task.
func (s *Server) handleTerminate(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	if !s.registry.Terminate(taskID) {
		s.writeError(w, http.StatusNotFound, "task not found or already finished")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID, "status": "terminated"})
}

// handleScreenshotList returns the artifact names captured for an attempt.
func (s *Server) handleScreenshotList(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	taskID := chi.URLParam(r, "taskID")

	names, err := s.recorder.List(businessID + "/" + taskID)
	if err != nil {
		s.writeError(w, http.StatusInternalServerError, "failed to list screenshots")
		return
	}
	if names == nil {
		names = []string{}
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"screenshots": names})
}

// handleScreenshotFile serves one artifact as a PNG.
func (s *Server) handleScreenshotFile(w http.ResponseWriter, r *http.Request) {
	businessID := chi.URLParam(r, "businessID")
	taskID := chi.URLParam(r, "taskID")
	name := chi.URLParam(r, "name")

	path, err := s.recorder.Path(businessID+"/"+taskID, name)
	if err != nil {
		s.writeError(w, http.StatusNotFound, "screenshot not found")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, path)
}

// handleHealth reports liveness. Probe logging is rate limited so
// aggressive load-balancer intervals do not drown the log.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.healthLogLimiter.Allow() {
		s.logger.Debug("Health check", zap.String("remote", r.RemoteAddr))
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
