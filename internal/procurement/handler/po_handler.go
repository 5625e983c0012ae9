package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/tyrefleet/internal/procurement/service"
)

type POHandler struct {
	svc *service.POService
}

func NewPOHandler(svc *service.POService) *POHandler {
	return &POHandler{svc: svc}
}

// ListPurchaseOrders GET /purchase-orders
func (h *POHandler) ListPurchaseOrders(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := CollectFilters(c, "status", "requisition_id", "supplier", "search")

	items, total, err := h.svc.ListPurchaseOrders(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取采购订单列表失败: "+err.Error())
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, pageSize, total)})
}

// GetPurchaseOrder GET /purchase-orders/:id
func (h *POHandler) GetPurchaseOrder(c *gin.Context) {
	po, err := h.svc.GetPurchaseOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, po)
}

// CreatePurchaseOrder POST /purchase-orders
func (h *POHandler) CreatePurchaseOrder(c *gin.Context) {
	var req service.CreatePORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	po, err := h.svc.CreateFromRequisition(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, po)
}

// AdvancePO POST /purchase-orders/:id/advance
func (h *POHandler) AdvancePO(c *gin.Context) {
	var req service.AdvancePORequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	po, err := h.svc.AdvancePO(c.Request.Context(), c.Param("id"), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, po)
}
