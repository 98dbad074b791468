// Package http implements the REST API for the Oqu Learning Hub.
package http

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/oqu-hub/oqu-learning-hub/internal/application/command"
	"github.com/oqu-hub/oqu-learning-hub/internal/application/query"
	"github.com/oqu-hub/oqu-learning-hub/internal/domain/shared"
	"github.com/oqu-hub/oqu-learning-hub/pkg/logger"
	"github.com/oqu-hub/oqu-learning-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// HEALTH & STATUS HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleRoot serves the root endpoint with basic API information.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	info := map[string]interface{}{
		"name":        "Oqu Learning Hub API",
		"version":     "v1",
		"description": "Learner progress and gamification engine",
		"endpoints": map[string]string{
			"health":      "/health",
			"completions": "/api/v1/completions",
			"stats":       "/api/v1/stats",
			"dashboard":   "/api/v1/dashboard",
			"courses":     "/api/v1/courses",
		},
	}

	writeJSON(w, http.StatusOK, info)
}

// handleHealth handles the health check endpoint.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Healthy {
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		writeJSON(w, http.StatusOK, status)
		return
	}

	// Default health response
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"uptime":  s.Uptime().String(),
		"version": "v1",
	})
}

// handleReady handles the readiness probe endpoint (for Kubernetes).
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.HealthChecker != nil {
		status := s.deps.HealthChecker.Check(r.Context())
		if !status.Ready {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not_ready",
				"reason": status.Message,
			})
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

// handleLive handles the liveness probe endpoint (for Kubernetes).
func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// handleMetrics handles the metrics endpoint.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	metrics := map[string]interface{}{
		"uptime_seconds": s.Uptime().Seconds(),
		"running":        s.IsRunning(),
	}

	writeJSON(w, http.StatusOK, metrics)
}

// ══════════════════════════════════════════════════════════════════════════════
// COMPLETION HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// recordCompletionRequest is the request body for POST /api/v1/completions.
type recordCompletionRequest struct {
	LessonID    string `json:"lesson_id"`
	CourseID    string `json:"course_id"`
	CompletedAt string `json:"completed_at,omitempty"` // RFC 3339, optional
}

// recordCompletionResponse is the response body for POST /api/v1/completions.
type recordCompletionResponse struct {
	AlreadyCompleted bool     `json:"already_completed"`
	XPAwarded        int      `json:"xp_awarded"`
	XPTotal          int      `json:"xp_total"`
	CurrentStreak    int      `json:"current_streak"`
	LongestStreak    int      `json:"longest_streak"`
	NewBadges        []string `json:"new_badges"`
	CoursePercent    float64  `json:"course_percent"`
	CourseCompleted  bool     `json:"course_completed"`

	// Reconciliation is "pending" when crediting did not fully finish
	// and the background worker will complete it.
	Reconciliation string `json:"reconciliation,omitempty"`
}

// handleRecordCompletion handles POST /api/v1/completions
func (s *Server) handleRecordCompletion(w http.ResponseWriter, r *http.Request) {
	learnerID := getLearnerID(r.Context())
	if learnerID == "" {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Learner authentication is required")
		return
	}

	if s.deps.RecordCompletionHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Completion handler not configured")
		return
	}

	var req recordCompletionRequest
	body := http.MaxBytesReader(w, r.Body, s.config.MaxBodyBytes)
	if err := json.NewDecoder(body).Decode(&req); err != nil {
		if errors.Is(err, io.EOF) {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body is required")
			return
		}
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Request body is not valid JSON")
		return
	}

	cmd := command.RecordCompletionCommand{
		LearnerID:     shared.LearnerID(learnerID),
		LessonID:      shared.LessonID(req.LessonID),
		CourseID:      shared.CourseID(req.CourseID),
		Timezone:      s.timezoneFor(r),
		CorrelationID: getRequestID(r.Context()),
	}

	if req.CompletedAt != "" {
		completedAt, err := time.Parse(time.RFC3339, req.CompletedAt)
		if err != nil {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "completed_at must be RFC 3339")
			return
		}
		cmd.CompletedAt = completedAt
	}

	result, err := s.deps.RecordCompletionHandler.Handle(r.Context(), cmd)

	switch {
	case err == nil:
		// Full success; repeat calls land here too with AlreadyCompleted set.
		writeJSON(w, http.StatusOK, toCompletionResponse(result))

	case shared.IsPartialCompletion(err):
		// Completion is durable but some crediting step failed.
		// The reconciliation worker will finish the job.
		s.logger.Warn("completion credited partially",
			logger.LearnerID(learnerID),
			logger.LessonID(req.LessonID),
			logger.Err(err),
		)
		resp := toCompletionResponse(result)
		resp.Reconciliation = "pending"
		writeJSON(w, http.StatusAccepted, resp)

	case shared.IsValidation(err):
		writeJSONErrorWithDetails(w, http.StatusBadRequest, "invalid_request", "Completion request is invalid", err.Error())

	case shared.IsNotFound(err):
		writeJSONError(w, http.StatusNotFound, "not_found", "Lesson or course not found")

	case shared.IsRetryable(err):
		writeJSONError(w, http.StatusServiceUnavailable, "service_unavailable", "Storage is temporarily unavailable, please retry")

	default:
		s.logger.Error("failed to record completion",
			logger.LearnerID(learnerID),
			logger.LessonID(req.LessonID),
			logger.Err(err),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to record completion")
	}
}

func toCompletionResponse(result *command.RecordCompletionResult) recordCompletionResponse {
	if result == nil {
		return recordCompletionResponse{NewBadges: []string{}}
	}

	badges := make([]string, 0, len(result.NewBadges))
	for _, b := range result.NewBadges {
		badges = append(badges, b.String())
	}

	return recordCompletionResponse{
		AlreadyCompleted: result.AlreadyCompleted,
		XPAwarded:        result.XPAwarded.Int(),
		XPTotal:          result.XPTotal.Int(),
		CurrentStreak:    result.Streak.CurrentStreak,
		LongestStreak:    result.Streak.LongestStreak,
		NewBadges:        badges,
		CoursePercent:    result.CourseProgress.Percent,
		CourseCompleted:  result.CourseCompleted,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STATS & DASHBOARD HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleGetStats handles GET /api/v1/stats
func (s *Server) handleGetStats(w http.ResponseWriter, r *http.Request) {
	learnerID := getLearnerID(r.Context())
	if learnerID == "" {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Learner authentication is required")
		return
	}

	if s.deps.GetStatsHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Stats handler not configured")
		return
	}

	q := query.GetStatsQuery{
		LearnerID: shared.LearnerID(learnerID),
		Today:     s.todayFor(r),
	}

	result, err := s.deps.GetStatsHandler.Handle(r.Context(), q)
	if err != nil {
		if shared.IsValidation(err) {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Learner ID is invalid")
			return
		}
		s.logger.Error("failed to get stats", logger.Err(err), logger.LearnerID(learnerID))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get stats")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetDashboard handles GET /api/v1/dashboard
func (s *Server) handleGetDashboard(w http.ResponseWriter, r *http.Request) {
	learnerID := getLearnerID(r.Context())
	if learnerID == "" {
		writeJSONError(w, http.StatusUnauthorized, "unauthorized", "Learner authentication is required")
		return
	}

	if s.deps.GetDashboardHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Dashboard handler not configured")
		return
	}

	q := query.GetDashboardQuery{
		LearnerID: shared.LearnerID(learnerID),
		Today:     s.todayFor(r),
	}

	result, err := s.deps.GetDashboardHandler.Handle(r.Context(), q)
	if err != nil {
		if shared.IsValidation(err) {
			writeJSONError(w, http.StatusBadRequest, "invalid_request", "Learner ID is invalid")
			return
		}
		s.logger.Error("failed to get dashboard", logger.Err(err), logger.LearnerID(learnerID))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get dashboard")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ══════════════════════════════════════════════════════════════════════════════
// COURSE HANDLERS
// ══════════════════════════════════════════════════════════════════════════════

// handleListCourses handles GET /api/v1/courses
func (s *Server) handleListCourses(w http.ResponseWriter, r *http.Request) {
	if s.deps.ListCoursesHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Course handler not configured")
		return
	}

	result, err := s.deps.ListCoursesHandler.Handle(r.Context())
	if err != nil {
		s.logger.Error("failed to list courses", logger.Err(err))
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to list courses")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// handleGetCourseProgress handles GET /api/v1/courses/{id}/progress
// Anonymous requests are allowed: they see the course manifest with no
// completions and non-free lessons locked.
func (s *Server) handleGetCourseProgress(w http.ResponseWriter, r *http.Request) {
	courseID := r.PathValue("id")
	if courseID == "" {
		writeJSONError(w, http.StatusBadRequest, "invalid_request", "Course ID is required")
		return
	}

	if s.deps.GetCourseProgressHandler == nil {
		writeJSONError(w, http.StatusNotImplemented, "not_implemented", "Progress handler not configured")
		return
	}

	q := query.GetCourseProgressQuery{
		LearnerID: shared.LearnerID(getLearnerID(r.Context())),
		CourseID:  shared.CourseID(courseID),
	}

	result, err := s.deps.GetCourseProgressHandler.Handle(r.Context(), q)
	if err != nil {
		if shared.IsNotFound(err) {
			writeJSONError(w, http.StatusNotFound, "not_found", "Course not found")
			return
		}
		s.logger.Error("failed to get course progress",
			logger.Err(err),
			logger.CourseID(courseID),
		)
		writeJSONError(w, http.StatusInternalServerError, "internal_error", "Failed to get course progress")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// timezoneFor resolves the timezone for a request: the learner's header
// when present, the platform default otherwise.
func (s *Server) timezoneFor(r *http.Request) string {
	if tz := getLearnerTimezone(r.Context()); tz != "" {
		return tz
	}
	return s.config.DefaultTimezone
}

// todayFor derives today's calendar date in the learner's timezone.
// With neither header nor configured default the day boundary is UTC.
func (s *Server) todayFor(r *http.Request) shared.Date {
	return shared.DateOf(timeutil.InZone(time.Now(), s.timezoneFor(r)))
}
