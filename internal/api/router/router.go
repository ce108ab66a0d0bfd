package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/minhnq-dev/jobmatch-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(RequestIDMiddleware())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status": "unhealthy",
					"error":  err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "jobmatch-service",
		})
	})

	profileHandler := handler.NewProfileHandler(deps)
	matchingHandler := handler.NewMatchingHandler(deps)
	jobHandler := handler.NewJobHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		profiles := v1.Group("/profiles")
		{
			// PUT /api/v1/profiles/:user_id - Create or replace a profile
			profiles.PUT("/:user_id", profileHandler.UpsertProfile)

			// GET /api/v1/profiles/:user_id - Get a profile
			profiles.GET("/:user_id", profileHandler.GetProfile)
		}

		users := v1.Group("/users/:user_id")
		{
			// POST /api/v1/users/:user_id/matching/start - Start the polling loop
			users.POST("/matching/start", matchingHandler.StartMatching)

			// POST /api/v1/users/:user_id/matching/stop - Stop the polling loop
			users.POST("/matching/stop", matchingHandler.StopMatching)

			// GET /api/v1/users/:user_id/matching - Loop status
			users.GET("/matching", matchingHandler.GetMatchingStatus)

			// GET /api/v1/users/:user_id/jobs - List tracked jobs, ?states= filter
			users.GET("/jobs", jobHandler.ListJobs)
		}

		jobs := v1.Group("/jobs/:platform/:external_id")
		{
			// GET /api/v1/jobs/:platform/:external_id - Tracked job details
			jobs.GET("", jobHandler.GetJob)

			// POST /api/v1/jobs/:platform/:external_id/decision - Accept or reject
			jobs.POST("/decision", jobHandler.Decide)

			// POST /api/v1/jobs/:platform/:external_id/bid - Run the bid pipeline
			jobs.POST("/bid", jobHandler.SubmitBid)
		}
	}

	return r
}
