package handler

import (
	"fmt"
	"net/url"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/tyrefleet/internal/fleet/service"
)

type InventoryHandler struct {
	svc *service.InventoryService
}

func NewInventoryHandler(svc *service.InventoryService) *InventoryHandler {
	return &InventoryHandler{svc: svc}
}

// Overview GET /inventory/overview
func (h *InventoryHandler) Overview(c *gin.Context) {
	overview, err := h.svc.Overview(c.Request.Context())
	if err != nil {
		InternalError(c, "获取库存总览失败: "+err.Error())
		return
	}
	Success(c, overview)
}

// StockBreakdown GET /inventory/stock
func (h *InventoryHandler) StockBreakdown(c *gin.Context) {
	rows, err := h.svc.StockBreakdown(c.Request.Context())
	if err != nil {
		InternalError(c, "获取库存分布失败: "+err.Error())
		return
	}
	Success(c, gin.H{"items": rows})
}

// ExportStock GET /inventory/stock/export
func (h *InventoryHandler) ExportStock(c *gin.Context) {
	buf, fileName, err := h.svc.ExportStockXLSX(c.Request.Context())
	if err != nil {
		InternalError(c, "导出库存失败: "+err.Error())
		return
	}

	c.Header("Content-Disposition",
		fmt.Sprintf(`attachment; filename*=UTF-8''%s`, url.PathEscape(fileName)))
	c.Data(200, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
}
