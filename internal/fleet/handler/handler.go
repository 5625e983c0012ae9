package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/bitfantasy/tyrefleet/internal/fleet/service"
	"github.com/bitfantasy/tyrefleet/internal/shared/apperr"
)

// Handlers 处理器集合
type Handlers struct {
	Catalog    *CatalogHandler
	Vehicle    *VehicleHandler
	Unit       *UnitHandler
	Assignment *AssignmentHandler
	Inspection *InspectionHandler
	Inventory  *InventoryHandler
	Alert      *AlertHandler
	Activity   *ActivityHandler
	Dashboard  *DashboardHandler
}

// NewHandlers 创建处理器集合
func NewHandlers(
	catalogSvc *service.CatalogService,
	vehicleSvc *service.VehicleService,
	unitSvc *service.UnitService,
	assignmentSvc *service.AssignmentService,
	inspectionSvc *service.InspectionService,
	inventorySvc *service.InventoryService,
	alertSvc *service.AlertService,
	activityHandler *ActivityHandler,
) *Handlers {
	return &Handlers{
		Catalog:    NewCatalogHandler(catalogSvc),
		Vehicle:    NewVehicleHandler(vehicleSvc),
		Unit:       NewUnitHandler(unitSvc),
		Assignment: NewAssignmentHandler(assignmentSvc),
		Inspection: NewInspectionHandler(inspectionSvc),
		Inventory:  NewInventoryHandler(inventorySvc),
		Alert:      NewAlertHandler(alertSvc),
		Activity:   activityHandler,
		Dashboard:  NewDashboardHandler(inventorySvc, inspectionSvc),
	}
}

// Response 通用响应结构
type Response struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// ListResponse 列表响应结构
type ListResponse struct {
	Items      interface{} `json:"items"`
	Pagination *Pagination `json:"pagination"`
}

// Pagination 分页信息
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	Total      int `json:"total"`
	TotalPages int `json:"total_pages"`
}

// NewPagination 构造分页信息
func NewPagination(page, pageSize int, total int64) *Pagination {
	totalPages := int(total) / pageSize
	if int(total)%pageSize > 0 {
		totalPages++
	}
	return &Pagination{
		Page:       page,
		PageSize:   pageSize,
		Total:      int(total),
		TotalPages: totalPages,
	}
}

// Success 成功响应
func Success(c *gin.Context, data interface{}) {
	c.JSON(200, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Created 创建成功响应
func Created(c *gin.Context, data interface{}) {
	c.JSON(201, Response{
		Code:    0,
		Message: "success",
		Data:    data,
	})
}

// Error 错误响应
func Error(c *gin.Context, code int, message string) {
	statusCode := code / 100
	if statusCode < 100 || statusCode > 599 {
		statusCode = 500
	}
	c.JSON(statusCode, Response{
		Code:    code,
		Message: message,
	})
}

// BadRequest 参数错误响应
func BadRequest(c *gin.Context, message string) {
	Error(c, 40000, message)
}

// NotFound 资源不存在响应
func NotFound(c *gin.Context, message string) {
	Error(c, 40400, message)
}

// Conflict 状态冲突响应
func Conflict(c *gin.Context, message string) {
	Error(c, 40900, message)
}

// UnprocessableEntity 业务规则拒绝响应
func UnprocessableEntity(c *gin.Context, message string) {
	Error(c, 42200, message)
}

// InternalError 服务器错误响应
func InternalError(c *gin.Context, message string) {
	Error(c, 50000, message)
}

// RespondError 按错误类别映射响应码。状态机拒绝与一致性缺陷
// 分别用42200/50010，便于调用方区分可重试与需要人工介入
func RespondError(c *gin.Context, err error) {
	switch apperr.KindOf(err) {
	case apperr.KindNotFound:
		NotFound(c, err.Error())
	case apperr.KindConflict:
		Conflict(c, err.Error())
	case apperr.KindInvalidTransition:
		UnprocessableEntity(c, err.Error())
	case apperr.KindValidation:
		BadRequest(c, err.Error())
	case apperr.KindConsistency:
		Error(c, 50010, err.Error())
	default:
		InternalError(c, err.Error())
	}
}

// GetUserID 从上下文获取用户ID
func GetUserID(c *gin.Context) string {
	userID, _ := c.Get("user_id")
	if id, ok := userID.(string); ok {
		return id
	}
	return ""
}

// GetPagination 从请求获取分页参数
func GetPagination(c *gin.Context) (page, pageSize int) {
	page = 1
	pageSize = 20

	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 0 {
			page = v
		}
	}

	if ps := c.Query("page_size"); ps != "" {
		if v, err := strconv.Atoi(ps); err == nil && v > 0 && v <= 100 {
			pageSize = v
		}
	}

	return page, pageSize
}

// CollectFilters 收集列表过滤参数
func CollectFilters(c *gin.Context, keys ...string) map[string]string {
	filters := make(map[string]string)
	for _, key := range keys {
		if v := c.Query(key); v != "" {
			filters[key] = v
		}
	}
	return filters
}

// parseLimit 游标分页的limit参数，默认100，上限500
func parseLimit(c *gin.Context) int {
	limit := 100
	if l := c.Query("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 500 {
		limit = 500
	}
	return limit
}
