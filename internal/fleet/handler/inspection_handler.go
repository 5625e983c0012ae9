package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/tyrefleet/internal/fleet/service"
)

type InspectionHandler struct {
	svc *service.InspectionService
}

func NewInspectionHandler(svc *service.InspectionService) *InspectionHandler {
	return &InspectionHandler{svc: svc}
}

// ListInspections GET /inspections
func (h *InspectionHandler) ListInspections(c *gin.Context) {
	page, pageSize := GetPagination(c)
	filters := CollectFilters(c, "unit_id", "vehicle_id", "outcome", "inspector_id", "search")

	items, total, err := h.svc.ListInspections(c.Request.Context(), page, pageSize, filters)
	if err != nil {
		InternalError(c, "获取检查列表失败: "+err.Error())
		return
	}
	Success(c, ListResponse{Items: items, Pagination: NewPagination(page, pageSize, total)})
}

// GetInspection GET /inspections/:id
func (h *InspectionHandler) GetInspection(c *gin.Context) {
	inspection, err := h.svc.GetInspection(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, inspection)
}

// RecordInspection POST /inspections
func (h *InspectionHandler) RecordInspection(c *gin.Context) {
	var req service.RecordInspectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		BadRequest(c, "参数错误: "+err.Error())
		return
	}

	inspection, err := h.svc.Record(c.Request.Context(), GetUserID(c), &req)
	if err != nil {
		// 检查记录本身可能已落库，错误只反映后续迁移
		RespondError(c, err)
		return
	}
	Created(c, inspection)
}

// Metrics GET /inspections/metrics
func (h *InspectionHandler) Metrics(c *gin.Context) {
	metrics, err := h.svc.Metrics(c.Request.Context())
	if err != nil {
		InternalError(c, "获取检查指标失败: "+err.Error())
		return
	}
	Success(c, metrics)
}

// UploadReport POST /inspections/:id/report
func (h *InspectionHandler) UploadReport(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		BadRequest(c, "缺少上传文件: "+err.Error())
		return
	}

	src, err := file.Open()
	if err != nil {
		InternalError(c, "读取上传文件失败: "+err.Error())
		return
	}
	defer src.Close()

	url, err := h.svc.AttachReport(c.Request.Context(), c.Param("id"),
		src, file.Filename, file.Size, file.Header.Get("Content-Type"))
	if err != nil {
		RespondError(c, err)
		return
	}
	Success(c, gin.H{"report_url": url})
}
