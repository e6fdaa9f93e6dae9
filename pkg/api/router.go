package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the engine endpoints; mode is a gin mode and maxBodyBytes caps request bodies
func NewRouter(server *Server, mode string, maxBodyBytes int64) *gin.Engine {
	gin.SetMode(mode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(requestLogger(server.logger))
	r.Use(bodyLimit(maxBodyBytes))

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := r.Group("/api/v1")
	{
		v1.GET("/rules/templates", server.Templates)
		v1.POST("/rules/validate", server.ValidateRules)
		v1.POST("/evaluate", server.Evaluate)
		v1.POST("/generate", server.Generate)

		conflicts := v1.Group("/conflicts")
		{
			conflicts.POST("/propose", server.Propose)
			conflicts.POST("/apply", server.Apply)
		}
	}
	return r
}
