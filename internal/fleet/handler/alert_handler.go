package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/tyrefleet/internal/fleet/service"
)

type AlertHandler struct {
	svc *service.AlertService
}

func NewAlertHandler(svc *service.AlertService) *AlertHandler {
	return &AlertHandler{svc: svc}
}

// ListAlerts GET /alerts
func (h *AlertHandler) ListAlerts(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := CollectFilters(c, "severity", "status", "module", "condition", "entity_ref")

	items, total, err := h.svc.ListAlerts(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取告警列表失败: "+err.Error())
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, pageSize, total)})
}

// GetAlert GET /alerts/:id
func (h *AlertHandler) GetAlert(c *gin.Context) {
	alert, err := h.svc.GetAlert(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, alert)
}

// Acknowledge POST /alerts/:id/acknowledge
func (h *AlertHandler) Acknowledge(c *gin.Context) {
	alert, err := h.svc.Acknowledge(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, alert)
}

// Resolve POST /alerts/:id/resolve
func (h *AlertHandler) Resolve(c *gin.Context) {
	var req struct {
		Notes string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	alert, err := h.svc.Resolve(c.Request.Context(), c.Param("id"), GetUserID(c), req.Notes)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, alert)
}

// Evaluate POST /alerts/evaluate 手动触发一轮全量阈值评估
func (h *AlertHandler) Evaluate(c *gin.Context) {
	if err := h.svc.EvaluateAll(c.Request.Context()); err != nil {
		InternalError(c, "阈值评估失败: "+err.Error())
		return
	}
	Success(c, nil)
}
