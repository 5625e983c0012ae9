package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"github.com/bitfantasy/tyrefleet/internal/fleet/repository"
	"github.com/bitfantasy/tyrefleet/internal/shared/apperr"
)

// UnitService 轮胎单体登记服务
type UnitService struct {
	unitRepo       *repository.UnitRepository
	skuRepo        *repository.SKURepository
	assignmentRepo *repository.AssignmentRepository
	activityRepo   *repository.ActivityLogRepository
	db             *gorm.DB

	alertSvc     *AlertService
	inventorySvc *InventoryService
}

// SetAlertService 注入告警服务，登记与报废后同步评估库存阈值
func (s *UnitService) SetAlertService(alertSvc *AlertService) {
	s.alertSvc = alertSvc
}

// SetInventoryService 注入库存服务，库存变化后失效总览缓存
func (s *UnitService) SetInventoryService(inventorySvc *InventoryService) {
	s.inventorySvc = inventorySvc
}

// afterInventoryChange 库存变化后的同步后置动作，失败不影响主操作
func (s *UnitService) afterInventoryChange(ctx context.Context, skuCode string) {
	if s.inventorySvc != nil {
		s.inventorySvc.InvalidateCache(ctx)
	}
	if s.alertSvc != nil && skuCode != "" {
		s.alertSvc.EvaluateThresholds(ctx, skuCode)
	}
}

func NewUnitService(
	unitRepo *repository.UnitRepository,
	skuRepo *repository.SKURepository,
	assignmentRepo *repository.AssignmentRepository,
	activityRepo *repository.ActivityLogRepository,
	db *gorm.DB,
) *UnitService {
	return &UnitService{
		unitRepo:       unitRepo,
		skuRepo:        skuRepo,
		assignmentRepo: assignmentRepo,
		activityRepo:   activityRepo,
		db:             db,
	}
}

// ListUnits 获取单体列表
func (s *UnitService) ListUnits(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Unit, int64, error) {
	return s.unitRepo.FindAll(ctx, page, pageSize, filters)
}

// GetUnit 获取单体详情，附带当前开放的装配记录
func (s *UnitService) GetUnit(ctx context.Context, id string) (*entity.Unit, *entity.Assignment, error) {
	unit, err := s.unitRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil, apperr.NotFound("单体 %s 不存在", id)
		}
		return nil, nil, err
	}

	open, err := s.assignmentRepo.FindOpenByUnit(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return unit, open, nil
}

// CreateUnitRequest 创建单体请求
type CreateUnitRequest struct {
	SKUCode      string  `json:"sku_code" binding:"required"`
	SerialNo     string  `json:"serial_no" binding:"required"`
	TreadDepth   float64 `json:"tread_depth"`
	Location     string  `json:"location"`
	SourcePOCode string  `json:"source_po_code"`
}

// CreateUnit 创建单体。采购收货与人工登记共用此入口
func (s *UnitService) CreateUnit(ctx context.Context, userID string, req *CreateUnitRequest) (*entity.Unit, error) {
	sku, err := s.skuRepo.FindByCode(ctx, req.SKUCode)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("型号 %s 不存在", req.SKUCode)
		}
		return nil, err
	}

	if existing, err := s.unitRepo.FindBySerial(ctx, req.SerialNo); err == nil && existing != nil {
		return nil, apperr.Conflict("序列号 %s 已存在", req.SerialNo)
	} else if err != nil && err != repository.ErrNotFound {
		return nil, err
	}

	location := req.Location
	if location == "" {
		location = sku.PreferredWarehouse
	}

	unit := &entity.Unit{
		ID:           uuid.New().String()[:32],
		SerialNo:     req.SerialNo,
		SKUCode:      sku.Code,
		TreadDepth:   req.TreadDepth,
		Condition:    entity.UnitConditionGood,
		Status:       entity.UnitStatusInStock,
		Location:     location,
		SourcePOCode: req.SourcePOCode,
	}

	if err := s.unitRepo.Create(ctx, unit); err != nil {
		return nil, err
	}

	s.activityRepo.LogActivity(ctx, "unit", unit.ID, unit.SerialNo,
		"create", "", entity.UnitStatusInStock,
		fmt.Sprintf("单体入库: %s (%s)", unit.SerialNo, sku.Code), userID)

	s.afterInventoryChange(ctx, unit.SKUCode)
	return unit, nil
}

// Scrap 报废单体。存在开放装配记录时必须先拆卸
func (s *UnitService) Scrap(ctx context.Context, unitID, userID string) (*entity.Unit, error) {
	var unit *entity.Unit

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		unit, err = s.unitRepo.LockByID(ctx, tx, unitID)
		if err != nil {
			if err == repository.ErrNotFound {
				return apperr.NotFound("单体 %s 不存在", unitID)
			}
			return err
		}

		if unit.Status == entity.UnitStatusScrapped {
			return apperr.InvalidTransition("单体 %s 已报废", unit.SerialNo)
		}

		open, err := s.assignmentRepo.FindOpenByUnitTx(ctx, tx, unitID)
		if err != nil {
			return err
		}
		if open != nil {
			return apperr.InvalidTransition("单体 %s 仍装配在车辆上，需先拆卸", unit.SerialNo)
		}

		fromStatus := unit.Status
		now := time.Now()
		unit.Status = entity.UnitStatusScrapped
		unit.Location = ""
		unit.ScrappedAt = &now

		if err := tx.Save(unit).Error; err != nil {
			return err
		}

		s.activityRepo.LogActivity(ctx, "unit", unit.ID, unit.SerialNo,
			"scrap", fromStatus, entity.UnitStatusScrapped,
			fmt.Sprintf("单体报废: %s", unit.SerialNo), userID)
		return nil
	})

	if err != nil {
		return nil, err
	}

	s.afterInventoryChange(ctx, unit.SKUCode)
	return unit, nil
}

// CreateFromDelivery 采购收货入库，在调用方事务内创建单体。
// 序列号冲突返回Conflict，收货事务整体回滚
func (s *UnitService) CreateFromDelivery(ctx context.Context, tx *gorm.DB, skuCode, serialNo, poCode string) error {
	var sku entity.SKU
	if err := tx.Where("code = ?", skuCode).First(&sku).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return apperr.NotFound("型号 %s 不存在", skuCode)
		}
		return err
	}

	var count int64
	if err := tx.Model(&entity.Unit{}).Where("serial_no = ?", serialNo).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return apperr.Conflict("序列号 %s 已存在", serialNo)
	}

	unit := &entity.Unit{
		ID:           uuid.New().String()[:32],
		SerialNo:     serialNo,
		SKUCode:      sku.Code,
		TreadDepth:   0, // 待首检测量
		Condition:    entity.UnitConditionGood,
		Status:       entity.UnitStatusInStock,
		Location:     sku.PreferredWarehouse,
		SourcePOCode: poCode,
	}
	if err := tx.Create(unit).Error; err != nil {
		return err
	}

	s.activityRepo.LogActivity(ctx, "unit", unit.ID, unit.SerialNo,
		"create", "", entity.UnitStatusInStock,
		fmt.Sprintf("采购订单 %s 收货入库", poCode), "system")
	return nil
}
