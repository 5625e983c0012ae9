package handler

import (
	fleethandler "github.com/bitfantasy/tyrefleet/internal/fleet/handler"
	"github.com/bitfantasy/tyrefleet/internal/procurement/service"
)

// Handlers 采购处理器集合
type Handlers struct {
	Requisition *RequisitionHandler
	PO          *POHandler
}

// NewHandlers 创建采购处理器集合
func NewHandlers(requisitionSvc *service.RequisitionService, poSvc *service.POService) *Handlers {
	return &Handlers{
		Requisition: NewRequisitionHandler(requisitionSvc),
		PO:          NewPOHandler(poSvc),
	}
}

// 响应与分页辅助沿用fleet侧的统一封装
var (
	Success        = fleethandler.Success
	Created        = fleethandler.Created
	BadRequest     = fleethandler.BadRequest
	InternalError  = fleethandler.InternalError
	RespondError   = fleethandler.RespondError
	GetUserID      = fleethandler.GetUserID
	GetPagination  = fleethandler.GetPagination
	CollectFilters = fleethandler.CollectFilters
	NewPagination  = fleethandler.NewPagination
)

// ListResponse 列表响应结构
type ListResponse = fleethandler.ListResponse
