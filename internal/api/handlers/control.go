package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gridsim/internal/api/models"
	"gridsim/internal/sim"
)

// ControlHandler exposes run state and the pacing controls.
type ControlHandler struct {
	sim *sim.Simulation
}

func NewControlHandler(s *sim.Simulation) *ControlHandler {
	return &ControlHandler{sim: s}
}

// Status handles GET /api/status
func (h *ControlHandler) Status(c *gin.Context) {
	c.JSON(http.StatusOK, h.sim.Status())
}

// Pause handles POST /api/pause
func (h *ControlHandler) Pause(c *gin.Context) {
	h.sim.Pause()
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

// Resume handles POST /api/resume
func (h *ControlHandler) Resume(c *gin.Context) {
	h.sim.Resume()
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

// Slowdown handles POST /api/slowdown
func (h *ControlHandler) Slowdown(c *gin.Context) {
	var req models.SlowdownRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_REQUEST",
				Message: err.Error(),
			},
		})
		return
	}
	if err := h.sim.SetSlowdown(req.Slowdown); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "INVALID_SLOWDOWN",
				Message: err.Error(),
			},
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"slowdown": req.Slowdown})
}
