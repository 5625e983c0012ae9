package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/tyrefleet/internal/fleet/service"
)

type UnitHandler struct {
	svc           *service.UnitService
	assignmentSvc *service.AssignmentService
}

func NewUnitHandler(svc *service.UnitService) *UnitHandler {
	return &UnitHandler{svc: svc}
}

// SetAssignmentService 注入装配服务，单体维度的装配操作与历史查询用
func (h *UnitHandler) SetAssignmentService(svc *service.AssignmentService) {
	h.assignmentSvc = svc
}

// ListUnits GET /units
func (h *UnitHandler) ListUnits(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := CollectFilters(c, "status", "condition", "sku_code", "location", "search")

	items, total, err := h.svc.ListUnits(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取单体列表失败: "+err.Error())
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, pageSize, total)})
}

// GetUnit GET /units/:id
func (h *UnitHandler) GetUnit(c *gin.Context) {
	unit, open, err := h.svc.GetUnit(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"unit": unit, "open_assignment": open})
}

// CreateUnit POST /units
func (h *UnitHandler) CreateUnit(c *gin.Context) {
	var req service.CreateUnitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	unit, err := h.svc.CreateUnit(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, unit)
}

// ScrapUnit POST /units/:id/scrap
func (h *UnitHandler) ScrapUnit(c *gin.Context) {
	unit, err := h.svc.Scrap(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, unit)
}

// AssignUnit POST /units/:id/assign
func (h *UnitHandler) AssignUnit(c *gin.Context) {
	var req service.AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	assignment, err := h.assignmentSvc.Assign(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, assignment)
}

// UnitHistory GET /units/:id/history
func (h *UnitHandler) UnitHistory(c *gin.Context) {
	afterID := c.Query("after_id")
	limit := parseLimit(c)

	items, err := h.assignmentSvc.HistoryByUnit(c.Request.Context(), c.Param("id"), afterID, limit)
	if err != nil {
		RespondError(c, err)
		return
	}

	nextCursor := ""
	if n := len(items); n > 0 && n == limit {
		nextCursor = items[n-1].ID
	}
	Success(c, gin.H{"items": items, "next_cursor": nextCursor})
}
