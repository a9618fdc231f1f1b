// Package handlers provides HTTP API request handlers.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/form-automation/tracker/internal/model"
	"github.com/form-automation/tracker/internal/repository"
	"github.com/form-automation/tracker/internal/tracker"
)

// StatusHandler exposes the tracker's state over HTTP. It only consumes the
// core's outputs: job snapshots, the recent-activity buffer and the
// connection status.
type StatusHandler struct {
	tracker *tracker.Tracker
	repo    *repository.JobRepository
}

// NewStatusHandler creates a new StatusHandler. The repository may be nil
// when history is not configured; the history route then returns 404.
func NewStatusHandler(t *tracker.Tracker, repo *repository.JobRepository) *StatusHandler {
	return &StatusHandler{
		tracker: t,
		repo:    repo,
	}
}

// ConnectionResponse represents the connection state in API responses.
type ConnectionResponse struct {
	Status     string `json:"status"`
	Phase      string `json:"phase"`
	UserID     string `json:"userId,omitempty"`
	LastUpdate string `json:"lastUpdate,omitempty"`
}

// JobResponse represents a job in API responses.
type JobResponse struct {
	ID            string                `json:"id"`
	Status        string                `json:"status"`
	ErrorMessage  string                `json:"errorMessage,omitempty"`
	ProgressCount int                   `json:"progressCount"`
	Latest        *model.ProgressEvent  `json:"latest,omitempty"`
	Progress      []model.ProgressEvent `json:"progress,omitempty"`
	CreatedAt     string                `json:"createdAt"`
	StartedAt     string                `json:"startedAt,omitempty"`
	CompletedAt   string                `json:"completedAt,omitempty"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// toJobResponse converts a model.Job to JobResponse. Progress is included
// only when withProgress is set; list responses carry just the count and the
// latest event.
func toJobResponse(j *model.Job, withProgress bool) *JobResponse {
	resp := &JobResponse{
		ID:            j.ID,
		Status:        string(j.Status),
		ErrorMessage:  j.ErrorMessage,
		ProgressCount: len(j.Progress),
		Latest:        j.LatestProgress(),
		CreatedAt:     j.CreatedAt.Format(time.RFC3339),
	}
	if j.StartedAt != nil {
		resp.StartedAt = j.StartedAt.Format(time.RFC3339)
	}
	if j.CompletedAt != nil {
		resp.CompletedAt = j.CompletedAt.Format(time.RFC3339)
	}
	if withProgress {
		resp.Progress = j.Progress
	}
	return resp
}

// GetConnection handles GET /api/connection - reports the connection status.
func (h *StatusHandler) GetConnection(c *gin.Context) {
	resp := ConnectionResponse{
		Status: string(h.tracker.Status()),
		Phase:  string(h.tracker.Phase()),
		UserID: h.tracker.UserID(),
	}
	if last := h.tracker.LastUpdate(); !last.IsZero() {
		resp.LastUpdate = last.Format(time.RFC3339)
	}
	c.JSON(http.StatusOK, resp)
}

// Connect handles POST /api/connection - opens the channel for a user.
func (h *StatusHandler) Connect(c *gin.Context) {
	var req model.ConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Invalid request body: "+err.Error())
		return
	}

	if err := h.tracker.Connect(req.UserID); err != nil {
		if errors.Is(err, model.ErrUserIDRequired) {
			sendError(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
			return
		}
		sendError(c, http.StatusConflict, "TRACKER_CLOSED", err.Error())
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"status": string(h.tracker.Status())})
}

// Disconnect handles DELETE /api/connection - closes the channel
// intentionally, with no reconnect.
func (h *StatusHandler) Disconnect(c *gin.Context) {
	h.tracker.Disconnect()
	c.JSON(http.StatusOK, gin.H{"status": string(h.tracker.Status())})
}

// ListJobs handles GET /api/jobs - lists all known jobs.
func (h *StatusHandler) ListJobs(c *gin.Context) {
	jobs := h.tracker.Store().List()

	resp := make([]*JobResponse, 0, len(jobs))
	for _, j := range jobs {
		resp = append(resp, toJobResponse(j, false))
	}
	c.JSON(http.StatusOK, gin.H{"jobs": resp})
}

// GetJob handles GET /api/jobs/:id - returns one job with its full progress
// sequence.
func (h *StatusHandler) GetJob(c *gin.Context) {
	id := c.Param("id")

	job, ok := h.tracker.Store().Get(id)
	if !ok {
		sendError(c, http.StatusNotFound, "JOB_NOT_FOUND", "Job "+id+" not found")
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job, true))
}

// GetJobHistory handles GET /api/jobs/:id/history - returns the persisted
// history row for a job.
func (h *StatusHandler) GetJobHistory(c *gin.Context) {
	if h.repo == nil {
		sendError(c, http.StatusNotFound, "HISTORY_DISABLED", "Job history is not configured")
		return
	}

	id := c.Param("id")
	job, err := h.repo.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			sendError(c, http.StatusNotFound, "JOB_NOT_FOUND", "Job "+id+" not found")
			return
		}
		sendError(c, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load history: "+err.Error())
		return
	}
	c.JSON(http.StatusOK, toJobResponse(job, true))
}

// GetActivity handles GET /api/activity - returns the most recent progress
// events across all jobs, oldest first.
func (h *StatusHandler) GetActivity(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"events": h.tracker.Activity().Recent()})
}

// RegisterRoutes registers the status handler routes on a Gin router group.
func (h *StatusHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/connection", h.GetConnection)
	rg.POST("/connection", h.Connect)
	rg.DELETE("/connection", h.Disconnect)
	rg.GET("/jobs", h.ListJobs)
	rg.GET("/jobs/:id", h.GetJob)
	rg.GET("/jobs/:id/history", h.GetJobHistory)
	rg.GET("/activity", h.GetActivity)
}
