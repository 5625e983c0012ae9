package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/tyrefleet/internal/fleet/service"
)

type CatalogHandler struct {
	svc *service.CatalogService
}

func NewCatalogHandler(svc *service.CatalogService) *CatalogHandler {
	return &CatalogHandler{svc: svc}
}

// ListSKUs GET /skus
func (h *CatalogHandler) ListSKUs(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := CollectFilters(c, "brand", "category", "search")

	items, total, err := h.svc.ListSKUs(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取型号列表失败: "+err.Error())
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, pageSize, total)})
}

// GetSKU GET /skus/:id
func (h *CatalogHandler) GetSKU(c *gin.Context) {
	sku, err := h.svc.GetSKU(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, sku)
}

// CreateSKU POST /skus
func (h *CatalogHandler) CreateSKU(c *gin.Context) {
	var req service.CreateSKURequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	sku, err := h.svc.CreateSKU(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Created(c, sku)
}

// UpdateSKU PUT /skus/:id
func (h *CatalogHandler) UpdateSKU(c *gin.Context) {
	var req service.UpdateSKURequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	sku, err := h.svc.UpdateSKU(c.Request.Context(), c.Param("id"), &req)
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, sku)
}

// DeleteSKU DELETE /skus/:id
func (h *CatalogHandler) DeleteSKU(c *gin.Context) {
	if err := h.svc.DeleteSKU(c.Request.Context(), c.Param("id")); err != nil {
		RespondError(c, err)
		return
	}
	Success(c, nil)
}
