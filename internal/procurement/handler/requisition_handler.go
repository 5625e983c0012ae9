package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/tyrefleet/internal/procurement/service"
)

type RequisitionHandler struct {
	svc *service.RequisitionService
}

func NewRequisitionHandler(svc *service.RequisitionService) *RequisitionHandler {
	return &RequisitionHandler{svc: svc}
}

// ListRequisitions GET /requisitions
func (h *RequisitionHandler) ListRequisitions(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := CollectFilters(c, "status", "requested_by", "search")

	items, total, err := h.svc.ListRequisitions(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取请购单列表失败: "+err.Error())
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, pageSize, total)})
}

// GetRequisition GET /requisitions/:id
func (h *RequisitionHandler) GetRequisition(c *gin.Context) {
	requisition, err := h.svc.GetRequisition(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, requisition)
}

// CreateRequisition POST /requisitions
func (h *RequisitionHandler) CreateRequisition(c *gin.Context) {
	var req service.CreateRequisitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	requisition, err := h.svc.CreateRequisition(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, requisition)
}

// UpdateItems PUT /requisitions/:id/items
func (h *RequisitionHandler) UpdateItems(c *gin.Context) {
	var req struct {
		Items []service.RequisitionItemRequest `json:"items" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	requisition, err := h.svc.UpdateItems(c.Request.Context(), c.Param("id"), req.Items)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, requisition)
}

// Submit POST /requisitions/:id/submit
func (h *RequisitionHandler) Submit(c *gin.Context) {
	requisition, err := h.svc.Submit(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, requisition)
}

// Approve POST /requisitions/:id/approve
func (h *RequisitionHandler) Approve(c *gin.Context) {
	requisition, err := h.svc.Approve(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, requisition)
}

// Reject POST /requisitions/:id/reject
func (h *RequisitionHandler) Reject(c *gin.Context) {
	requisition, err := h.svc.Reject(c.Request.Context(), c.Param("id"), GetUserID(c))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, requisition)
}
