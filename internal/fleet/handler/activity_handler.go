package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/tyrefleet/internal/fleet/repository"
)

type ActivityHandler struct {
	repo *repository.ActivityLogRepository
}

func NewActivityHandler(repo *repository.ActivityLogRepository) *ActivityHandler {
	return &ActivityHandler{repo: repo}
}

// ListByEntity GET /activities/:entityType/:entityId
func (h *ActivityHandler) ListByEntity(c *gin.Context) {
	page, pageSize := GetPagination(c)

	items, total, err := h.repo.FindByEntity(c.Request.Context(),
		c.Param("entityType"), c.Param("entityId"), page, pageSize)
	if err != nil {
		InternalError(c, "获取操作日志失败: "+err.Error())
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, pageSize, total)})
}
