package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/minhnq-dev/jobmatch-be/internal/api/dto"
	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
	"github.com/minhnq-dev/jobmatch-be/internal/core/dispatcher"
	"github.com/minhnq-dev/jobmatch-be/internal/core/statestore"
)

// JobHandler handles tracked-job HTTP requests
type JobHandler struct {
	logger     *slog.Logger
	store      *statestore.Store
	dispatcher *dispatcher.Dispatcher
}

// NewJobHandler creates a new JobHandler instance
func NewJobHandler(deps *Dependencies) *JobHandler {
	return &JobHandler{
		logger:     deps.Logger,
		store:      deps.Store,
		dispatcher: deps.Dispatcher,
	}
}

// ListJobs handles GET /api/v1/users/:user_id/jobs
// The optional states query parameter is a comma-separated state filter;
// without it the active states are returned.
func (h *JobHandler) ListJobs(c *gin.Context) {
	userID := c.Param("user_id")

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	states := domain.ActiveStates
	if req.States != "" {
		states = make([]domain.State, 0)
		for _, raw := range strings.Split(req.States, ",") {
			state, err := domain.ParseState(strings.TrimSpace(raw))
			if err != nil {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": err.Error(),
				})
				return
			}
			states = append(states, state)
		}
	}

	records := h.store.ListByUserAndStates(c.Request.Context(), userID, states...)

	jobs := make([]dto.JobDTO, len(records))
	for i, rec := range records {
		jobs[i] = toJobDTO(rec)
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{Jobs: jobs})
}

// GetJob handles GET /api/v1/jobs/:platform/:external_id
func (h *JobHandler) GetJob(c *gin.Context) {
	key := domain.JobKey(c.Param("platform"), c.Param("external_id"))

	rec, err := h.store.Get(c.Request.Context(), key)
	if err != nil {
		if errors.Is(err, domain.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "job not found",
			})
			return
		}
		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, toJobDTO(rec))
}

// Decide handles POST /api/v1/jobs/:platform/:external_id/decision
// The body carries the user's accept or reject decision for a presented job.
func (h *JobHandler) Decide(c *gin.Context) {
	key := domain.JobKey(c.Param("platform"), c.Param("external_id"))

	var req dto.DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "decision must be accept or reject",
		})
		return
	}

	var (
		rec *domain.JobRecord
		err error
	)
	if req.Decision == "accept" {
		rec, err = h.dispatcher.Accept(c.Request.Context(), key)
	} else {
		rec, err = h.dispatcher.Reject(c.Request.Context(), key)
	}
	if err != nil {
		h.respondTransitionError(c, key, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(rec))
}

// SubmitBid handles POST /api/v1/jobs/:platform/:external_id/bid
// Runs the full bid pipeline synchronously; the response carries the final
// state (bid_confirmed or bid_failed with its reason).
func (h *JobHandler) SubmitBid(c *gin.Context) {
	key := domain.JobKey(c.Param("platform"), c.Param("external_id"))

	rec, err := h.dispatcher.SubmitBid(c.Request.Context(), key)
	if err != nil {
		h.respondTransitionError(c, key, err)
		return
	}

	c.JSON(http.StatusOK, toJobDTO(rec))
}

// respondTransitionError maps lifecycle errors to HTTP statuses: 404 for
// unknown keys, 409 for lost races and non-edges, 500 otherwise.
func (h *JobHandler) respondTransitionError(c *gin.Context, key string, err error) {
	if errors.Is(err, domain.ErrJobNotFound) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "job not found",
		})
		return
	}

	var conflict *domain.ConflictError
	var invalid *domain.InvalidTransitionError
	if errors.As(err, &conflict) || errors.As(err, &invalid) {
		c.JSON(http.StatusConflict, gin.H{
			"error": err.Error(),
		})
		return
	}

	h.logger.Error("Job operation failed",
		slog.String("job_key", key),
		slog.String("error", err.Error()),
	)
	c.JSON(http.StatusInternalServerError, gin.H{
		"error": "operation failed",
	})
}

func toJobDTO(rec *domain.JobRecord) dto.JobDTO {
	return dto.JobDTO{
		JobKey:       rec.Key(),
		Platform:     rec.Platform,
		ExternalID:   rec.ExternalID,
		UserID:       rec.UserID,
		Title:        rec.Title,
		Description:  rec.Description,
		BudgetMin:    rec.BudgetMin,
		BudgetMax:    rec.BudgetMax,
		Currency:     rec.Currency,
		JobType:      rec.JobType,
		State:        string(rec.State),
		StateNote:    rec.StateNote,
		PostedAt:     formatTime(rec.PostedAt),
		DiscoveredAt: formatTime(rec.DiscoveredAt),
		UpdatedAt:    formatTime(rec.UpdatedAt),
	}
}
