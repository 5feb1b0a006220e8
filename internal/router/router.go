package router

import (
	"github.com/gin-gonic/gin"

	"github.com/raki39/FRONTGraph-sub001/internal/handler"
	"github.com/raki39/FRONTGraph-sub001/internal/middleware"
)

// SetupRouter wires middleware and routes.
func SetupRouter(h *handler.Handlers) *gin.Engine {
	r := gin.New()

	r.Use(middleware.RecoveryMiddleware())
	r.Use(middleware.LoggingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		hist := v1.Group("/history")
		{
			hist.POST("/context", h.History.RetrieveContext)
			hist.POST("/capture", h.History.CaptureExchange)
		}

		sessions := v1.Group("/sessions")
		{
			sessions.GET("", h.Session.ListSessions)
			sessions.GET("/:id", h.Session.GetSession)
			sessions.GET("/:id/messages", h.Session.GetMessages)
		}
	}

	return r
}
