// Package http provides the gateway's HTTP transport: the OwnTracks
// ingestion endpoint, the admin command API, and the WebSocket downstream
// feed, built on the same gin.Engine + CORS-middleware pattern as the
// teacher's server.go.
package http

import (
	"os"

	"github.com/gin-gonic/gin"

	"tracker_gateway/internal/downstream"
	"tracker_gateway/internal/http/controllers"
	"tracker_gateway/internal/session"
	"tracker_gateway/pkg/colors"
)

// Server is the gateway's HTTP listener.
type Server struct {
	router *gin.Engine
	port   string
}

// NewServer builds a gin-backed Server wired to the shared session
// registry, command dispatcher and WebSocket hub.
func NewServer(port string, registry *session.Registry, control *controllers.ControlController, hub *downstream.WebSocketHub, adminTokenHash string) *Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if os.Getenv("LOG_HTTP") == "true" {
		router.Use(gin.Logger())
	}
	router.Use(corsMiddleware())

	SetupRoutes(router, registry, control, hub, adminTokenHash)

	return &Server{router: router, port: port}
}

// Start runs the HTTP server; it blocks until the listener errors.
func (s *Server) Start() error {
	colors.PrintServer("🌐", "HTTP server listening on port %s", s.port)
	return s.router.Run(":" + s.port)
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin == "" {
			origin = "*"
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", origin)
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	}
}
