package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minhnq-dev/jobmatch-be/internal/api/dto"
	"github.com/minhnq-dev/jobmatch-be/internal/core/domain"
)

// ProfileHandler handles profile-related HTTP requests
type ProfileHandler struct {
	logger   *slog.Logger
	profiles ProfileStore
}

// NewProfileHandler creates a new ProfileHandler instance
func NewProfileHandler(deps *Dependencies) *ProfileHandler {
	return &ProfileHandler{
		logger:   deps.Logger,
		profiles: deps.Profiles,
	}
}

// UpsertProfile handles PUT /api/v1/profiles/:user_id
func (h *ProfileHandler) UpsertProfile(c *gin.Context) {
	userID := c.Param("user_id")

	var req dto.UpsertProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid profile request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body: " + err.Error(),
		})
		return
	}

	profile := &domain.ProfileRecord{
		UserID:         userID,
		Skills:         req.Skills,
		Categories:     req.Categories,
		Platforms:      req.Platforms,
		BudgetMin:      req.BudgetMin,
		BudgetMax:      req.BudgetMax,
		HourlyRate:     req.HourlyRate,
		Currency:       req.Currency,
		Experience:     req.Experience,
		SampleLinks:    req.SampleLinks,
		MaxTrackedJobs: req.MaxTrackedJobs,
	}

	if err := h.profiles.Upsert(c.Request.Context(), profile); err != nil {
		h.logger.Error("Failed to save profile",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusBadRequest, gin.H{
			"error": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, toProfileResponse(profile))
}

// GetProfile handles GET /api/v1/profiles/:user_id
func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID := c.Param("user_id")

	profile, err := h.profiles.Get(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, domain.ErrProfileNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "profile not found",
			})
			return
		}
		h.logger.Error("Failed to get profile",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get profile",
		})
		return
	}

	c.JSON(http.StatusOK, toProfileResponse(profile))
}

func toProfileResponse(p *domain.ProfileRecord) dto.ProfileResponse {
	return dto.ProfileResponse{
		UserID:         p.UserID,
		Skills:         p.Skills,
		Categories:     p.Categories,
		Platforms:      p.Platforms,
		BudgetMin:      p.BudgetMin,
		BudgetMax:      p.BudgetMax,
		HourlyRate:     p.HourlyRate,
		Currency:       p.Currency,
		Experience:     p.Experience,
		SampleLinks:    p.SampleLinks,
		MaxTrackedJobs: p.MaxTrackedJobs,
	}
}
