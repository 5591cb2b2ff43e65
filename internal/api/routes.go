package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"dealflow/server/config"
	"dealflow/server/internal/database"
	"dealflow/server/internal/snapshot"
)

func SetupRoutes(router *gin.Engine, db *database.Database, snapshots *snapshot.Store, generator *snapshot.Service, cfg *config.Config) {
	handler := NewHandler(db, snapshots, generator, cfg, nil)

	router.GET("/api/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	pipelines := router.Group("/api/pipelines")
	{
		pipelines.GET("", handler.ListPipelines)
		pipelines.POST("", handler.CreatePipeline)
		pipelines.GET("/:id", handler.GetPipeline)
		pipelines.PUT("/:id", handler.UpdatePipeline)
		pipelines.DELETE("/:id", handler.DeletePipeline)
		pipelines.PATCH("/:id/stage", handler.MoveToStage)
		pipelines.PATCH("/:id/contact", handler.UpdateContact)
		pipelines.PATCH("/:id/close", handler.CloseDeal)
		pipelines.PATCH("/:id/lose", handler.LoseDeal)

		pipelines.GET("/agent/:agentId", handler.ListByAgent)
		pipelines.GET("/stage/:stage", handler.ListByStage)
		pipelines.GET("/active", handler.ListActive)
		pipelines.GET("/urgent", handler.ListUrgent)
		pipelines.GET("/high-probability", handler.ListHighProbability)
		pipelines.GET("/follow-up", handler.ListFollowUp)
		pipelines.GET("/upcoming-actions", handler.ListUpcomingActions)

		pipelines.GET("/analytics/overview", handler.AnalyticsOverview)
		pipelines.GET("/analytics/stages", handler.AnalyticsStages)
		pipelines.GET("/analytics/agents", handler.AnalyticsAgents)
		pipelines.GET("/analytics/sources", handler.AnalyticsSources)
		pipelines.GET("/analytics/velocity", handler.AnalyticsVelocity)
		pipelines.GET("/analytics/trends", handler.AnalyticsTrends)
		pipelines.GET("/analytics/top-performers", handler.AnalyticsTopPerformers)
		pipelines.POST("/analytics/generate", handler.GenerateSnapshot)
	}
}
