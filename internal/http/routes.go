package http

import (
	"github.com/gin-gonic/gin"

	"tracker_gateway/internal/downstream"
	"tracker_gateway/internal/http/controllers"
	"tracker_gateway/internal/http/middleware"
	"tracker_gateway/internal/session"
)

// SetupRoutes wires the gateway's small HTTP surface per §4.4/§6: the
// OwnTracks ingestion endpoint, the admin command-delivery API, the
// WebSocket downstream feed, and a health check.
func SetupRoutes(
	router *gin.Engine,
	registry *session.Registry,
	control *controllers.ControlController,
	hub *downstream.WebSocketHub,
	adminTokenHash string,
) {
	owntracksController := controllers.NewOwnTracksController(registry, hub)

	router.POST("/owntracks", owntracksController.Report)

	router.GET("/ws", hub.Handle)

	admin := router.Group("/api/v1")
	admin.Use(middleware.AdminAuth(adminTokenHash))
	{
		admin.POST("/commands", control.SendCommand)
	}

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
}
