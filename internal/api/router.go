// Package api assembles the REST control surface of a running simulation:
// run status and pacing controls, the read-only reporting endpoints, and
// the per-strategy trigger interface.
package api

import (
	"github.com/gin-gonic/gin"

	"gridsim/internal/api/handlers"
	"gridsim/internal/api/middleware"
	"gridsim/internal/sim"
)

// NewRouter wires all endpoints over the given simulation.
func NewRouter(s *sim.Simulation) *gin.Engine {
	router := gin.New()
	router.Use(middleware.CORS())
	router.Use(middleware.Logger())
	router.Use(middleware.Recovery())

	control := handlers.NewControlHandler(s)
	areas := handlers.NewAreaHandler(s)
	triggers := handlers.NewTriggerHandler(s)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.GET("/status", control.Status)
		api.POST("/pause", control.Pause)
		api.POST("/resume", control.Resume)
		api.POST("/slowdown", control.Slowdown)

		api.GET("/areas", areas.ListAreas)
		api.GET("/areas/:name", areas.GetArea)
		api.GET("/results", areas.GetResults)

		api.GET("/areas/:name/triggers", triggers.ListTriggers)
		api.POST("/areas/:name/triggers/:trigger", triggers.FireTrigger)
	}

	return router
}
