package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gridsim/internal/api/models"
	"gridsim/internal/area"
	"gridsim/internal/export"
	"gridsim/internal/sim"
	"gridsim/internal/stats"
	"gridsim/internal/strategy"
)

// AreaHandler serves the read-only reporting surface over the area tree.
type AreaHandler struct {
	sim *sim.Simulation
}

func NewAreaHandler(s *sim.Simulation) *AreaHandler {
	return &AreaHandler{sim: s}
}

// ListAreas handles GET /api/areas
func (h *AreaHandler) ListAreas(c *gin.Context) {
	var out []models.AreaInfo
	h.sim.Root().Walk(func(a *area.Area) {
		info := models.AreaInfo{
			Name: a.Name,
			ID:   a.ID,
			Type: area.Classify(a),
		}
		if a.Strategy != nil {
			info.StrategyType = strategyType(a.Strategy)
		}
		for _, child := range a.Children {
			info.Children = append(info.Children, child.Name)
		}
		out = append(out, info)
	})
	c.JSON(http.StatusOK, gin.H{"areas": out})
}

// GetArea handles GET /api/areas/:name
func (h *AreaHandler) GetArea(c *gin.Context) {
	a, ok := h.findArea(c)
	if !ok {
		return
	}
	slots := make([]stats.SlotSummary, 0, len(a.PastSlots()))
	for _, slot := range a.PastSlots() {
		slots = append(slots, stats.Summarize(a.PastMarket(slot)))
	}
	c.JSON(http.StatusOK, gin.H{
		"name":  a.Name,
		"id":    a.ID,
		"type":  area.Classify(a),
		"slots": slots,
	})
}

// GetResults handles GET /api/results
func (h *AreaHandler) GetResults(c *gin.Context) {
	c.JSON(http.StatusOK, export.BuildSummary(h.sim.Root()))
}

func (h *AreaHandler) findArea(c *gin.Context) (*area.Area, bool) {
	name := c.Param("name")
	a := h.sim.Root().FindArea(name)
	if a == nil {
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error: models.ErrorDetail{
				Code:    "AREA_NOT_FOUND",
				Message: "no area named " + name,
			},
		})
		return nil, false
	}
	return a, true
}

func strategyType(s strategy.Strategy) string {
	switch s.(type) {
	case *strategy.CommercialProducer:
		return "commercial_producer"
	case *strategy.CellTowerLoad:
		return "cell_tower_load"
	case *strategy.Load:
		return "load"
	case *strategy.PV:
		return "pv"
	case *strategy.Storage:
		return "storage"
	case *strategy.BalancingTrader:
		return "balancing_trader"
	}
	return "custom"
}
