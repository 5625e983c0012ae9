package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/tyrefleet/internal/fleet/service"
)

type VehicleHandler struct {
	svc           *service.VehicleService
	assignmentSvc *service.AssignmentService
}

func NewVehicleHandler(svc *service.VehicleService) *VehicleHandler {
	return &VehicleHandler{svc: svc}
}

// SetAssignmentService 注入装配服务，车辆维度的装配历史查询用
func (h *VehicleHandler) SetAssignmentService(svc *service.AssignmentService) {
	h.assignmentSvc = svc
}

// ListVehicles GET /vehicles
func (h *VehicleHandler) ListVehicles(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := CollectFilters(c, "category", "status", "search")

	items, total, err := h.svc.ListVehicles(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取车辆列表失败: "+err.Error())
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, pageSize, total)})
}

// GetVehicle GET /vehicles/:id
func (h *VehicleHandler) GetVehicle(c *gin.Context) {
	vehicle, open, err := h.svc.GetVehicle(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"vehicle": vehicle, "open_assignments": open})
}

// CreateVehicle POST /vehicles
func (h *VehicleHandler) CreateVehicle(c *gin.Context) {
	var req service.CreateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	vehicle, err := h.svc.CreateVehicle(c.Request.Context(), &req, GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, vehicle)
}

// UpdateVehicle PUT /vehicles/:id
func (h *VehicleHandler) UpdateVehicle(c *gin.Context) {
	var req service.UpdateVehicleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	vehicle, err := h.svc.UpdateVehicle(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, vehicle)
}

// UpdateOdometer PUT /vehicles/:id/odometer
func (h *VehicleHandler) UpdateOdometer(c *gin.Context) {
	var req struct {
		Odometer float64 `json:"odometer" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	vehicle, err := h.svc.UpdateOdometer(c.Request.Context(), c.Param("id"), req.Odometer)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, vehicle)
}

// SlotHistory GET /vehicles/:id/positions/:position/history
func (h *VehicleHandler) SlotHistory(c *gin.Context) {
	afterID := c.Query("after_id")
	limit := parseLimit(c)

	items, err := h.assignmentSvc.HistoryBySlot(c.Request.Context(),
		c.Param("id"), c.Param("position"), afterID, limit)
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
