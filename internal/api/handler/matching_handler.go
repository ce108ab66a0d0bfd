package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minhnq-dev/jobmatch-be/internal/api/dto"
	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
	"github.com/minhnq-dev/jobmatch-be/internal/core/scheduler"
)

// MatchingHandler starts and stops per-user matching loops
type MatchingHandler struct {
	logger    *slog.Logger
	profiles  ProfileStore
	scheduler *scheduler.Scheduler
}

// NewMatchingHandler creates a new MatchingHandler instance
func NewMatchingHandler(deps *Dependencies) *MatchingHandler {
	return &MatchingHandler{
		logger:    deps.Logger,
		profiles:  deps.Profiles,
		scheduler: deps.Scheduler,
	}
}

// StartMatching handles POST /api/v1/users/:user_id/matching/start
func (h *MatchingHandler) StartMatching(c *gin.Context) {
	userID := c.Param("user_id")

	// A loop without a profile would tick uselessly, reject up front.
	if _, err := h.profiles.Get(c.Request.Context(), userID); err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "profile not found, create one before starting matching",
			})
			return
		}
		h.logger.Error("Failed to check profile before start",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to start matching",
		})
		return
	}

	h.scheduler.Start(userID)

	c.JSON(http.StatusOK, dto.MatchingStatusResponse{
		UserID:  userID,
		Running: true,
	})
}

// StopMatching handles POST /api/v1/users/:user_id/matching/stop
func (h *MatchingHandler) StopMatching(c *gin.Context) {
	userID := c.Param("user_id")

	h.scheduler.Stop(userID)

	c.JSON(http.StatusOK, dto.MatchingStatusResponse{
		UserID:  userID,
		Running: false,
	})
}

// GetMatchingStatus handles GET /api/v1/users/:user_id/matching
func (h *MatchingHandler) GetMatchingStatus(c *gin.Context) {
	userID := c.Param("user_id")

	c.JSON(http.StatusOK, dto.MatchingStatusResponse{
		UserID:  userID,
		Running: h.scheduler.IsRunning(userID),
	})
}
