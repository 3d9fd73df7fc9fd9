package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"gridsim/internal/api/models"
	"gridsim/internal/sim"
	"gridsim/internal/strategy"
)

// TriggerHandler exposes the per-strategy control actions.
type TriggerHandler struct {
	sim *sim.Simulation
}

func NewTriggerHandler(s *sim.Simulation) *TriggerHandler {
	return &TriggerHandler{sim: s}
}

// ListTriggers handles GET /api/areas/:name/triggers
func (h *TriggerHandler) ListTriggers(c *gin.Context) {
	t, ok := h.findTriggerable(c)
	if !ok {
		return
	}
	out := make([]models.TriggerInfo, 0)
	for _, trig := range t.Triggers() {
		info := models.TriggerInfo{
			Name:   trig.Name,
			Help:   trig.Help,
			Params: trig.Params,
		}
		if trig.State != nil {
			info.State = trig.State()
		}
		out = append(out, info)
	}
	c.JSON(http.StatusOK, gin.H{"triggers": out})
}

// FireTrigger handles POST /api/areas/:name/triggers/:trigger
func (h *TriggerHandler) FireTrigger(c *gin.Context) {
	t, ok := h.findTriggerable(c)
	if !ok {
		return
	}
	var params map[string]any
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&params); err != nil {
			c.JSON(http.StatusBadRequest, models.ErrorResponse{
				Error: models.ErrorDetail{
					Code:    "INVALID_REQUEST",
					Message: err.Error(),
				},
			})
			return
		}
	}

	name := c.Param("trigger")
	state, err := t.FireTrigger(name, params)
	if err != nil {
		status := http.StatusInternalServerError
		code := "TRIGGER_FAILED"
		if errors.Is(err, strategy.ErrUnknownTrigger) {
			status = http.StatusNotFound
			code = "UNKNOWN_TRIGGER"
		}
		c.JSON(status, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    code,
				Message: err.Error(),
			},
		})
		return
	}
	c.JSON(http.StatusOK, models.TriggerResult{
		Trigger: name,
		Area:    c.Param("name"),
		State:   state,
	})
}

func (h *TriggerHandler) findTriggerable(c *gin.Context) (strategy.Triggerable, bool) {
	name := c.Param("name")
	a := h.sim.Root().FindArea(name)
	if a == nil || a.Strategy == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "AREA_NOT_FOUND",
				Message: "no strategy-bearing area named " + name,
			},
		})
		return nil, false
	}
	t, ok := a.Strategy.(strategy.Triggerable)
	if !ok {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "NO_TRIGGERS",
				Message: "strategy of area " + name + " exposes no triggers",
			},
		})
		return nil, false
	}
	return t, true
}
