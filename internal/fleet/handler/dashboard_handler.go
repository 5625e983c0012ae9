package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/tyrefleet/internal/fleet/service"
)

// DashboardHandler 车队总览看板
type DashboardHandler struct {
	inventorySvc  *service.InventoryService
	inspectionSvc *service.InspectionService
}

func NewDashboardHandler(inventorySvc *service.InventoryService, inspectionSvc *service.InspectionService) *DashboardHandler {
	return &DashboardHandler{inventorySvc: inventorySvc, inspectionSvc: inspectionSvc}
}

// Overview GET /dashboard/overview
// 聚合库存快照、未了结告警与当月检查指标，两部分各自走缓存
func (h *DashboardHandler) Overview(c *gin.Context) {
	ctx := c.Request.Context()

	inventory, err := h.inventorySvc.Overview(ctx)
	if err != nil {
		RespondError(c, err)
		return
	}
	metrics, err := h.inspectionSvc.Metrics(ctx)
	if err != nil {
		RespondError(c, err)
		return
	}

	Success(c, gin.H{
		"inventory":          inventory,
		"inspection_metrics": metrics,
	})
}
