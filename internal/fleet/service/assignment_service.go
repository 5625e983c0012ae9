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

// AssignmentService 装配台账服务。装配/拆卸是库存与车辆之间的唯一通道，
// 跨实体不变量（单体至多一条开放记录、轮位至多一条开放记录）在这里的
// 事务临界区内保证
type AssignmentService struct {
	assignmentRepo *repository.AssignmentRepository
	unitRepo       *repository.UnitRepository
	vehicleRepo    *repository.VehicleRepository
	skuRepo        *repository.SKURepository
	inspectionRepo *repository.InspectionRepository
	activityRepo   *repository.ActivityLogRepository
	db             *gorm.DB

	alertSvc     *AlertService
	inventorySvc *InventoryService
}

func NewAssignmentService(
	assignmentRepo *repository.AssignmentRepository,
	unitRepo *repository.UnitRepository,
	vehicleRepo *repository.VehicleRepository,
	skuRepo *repository.SKURepository,
	inspectionRepo *repository.InspectionRepository,
	activityRepo *repository.ActivityLogRepository,
	db *gorm.DB,
) *AssignmentService {
	return &AssignmentService{
		assignmentRepo: assignmentRepo,
		unitRepo:       unitRepo,
		vehicleRepo:    vehicleRepo,
		skuRepo:        skuRepo,
		inspectionRepo: inspectionRepo,
		activityRepo:   activityRepo,
		db:             db,
	}
}

// SetAlertService 注入告警服务，装配成功后同步触发库存阈值评估
func (s *AssignmentService) SetAlertService(alertSvc *AlertService) {
	s.alertSvc = alertSvc
}

// SetInventoryService 注入库存聚合服务，写路径失效缓存
func (s *AssignmentService) SetInventoryService(inventorySvc *InventoryService) {
	s.inventorySvc = inventorySvc
}

// AssignRequest 装配请求
type AssignRequest struct {
	VehicleID string  `json:"vehicle_id" binding:"required"`
	Position  string  `json:"position" binding:"required"`
	Odometer  float64 `json:"odometer"`
}

// Assign 将在库单体装配到车辆轮位
func (s *AssignmentService) Assign(ctx context.Context, unitID, userID string, req *AssignRequest) (*entity.Assignment, error) {
	if req.Odometer < 0 {
		return nil, apperr.Validation("里程表读数不能为负数")
	}

	vehicle, err := s.vehicleRepo.FindByID(ctx, req.VehicleID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("车辆 %s 不存在", req.VehicleID)
		}
		return nil, err
	}
	if len(vehicle.AxlePositions) > 0 && !vehicle.AxlePositions.Contains(req.Position) {
		return nil, apperr.Validation("车辆 %s 没有轮位 %s", vehicle.PlateNo, req.Position)
	}

	var assignment *entity.Assignment
	var skuCode string

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		unit, err := s.unitRepo.LockByID(ctx, tx, unitID)
		if err != nil {
			if err == repository.ErrNotFound {
				return apperr.NotFound("单体 %s 不存在", unitID)
			}
			return err
		}
		skuCode = unit.SKUCode

		switch unit.Status {
		case entity.UnitStatusInStock:
			// 允许装配
		case entity.UnitStatusScrapped, entity.UnitStatusQuarantined:
			return apperr.InvalidTransition("单体 %s 状态为 %s，不允许装配", unit.SerialNo, unit.Status)
		default:
			return apperr.Conflict("单体 %s 当前不可用（状态 %s）", unit.SerialNo, unit.Status)
		}

		occupied, err := s.assignmentRepo.FindOpenBySlotTx(ctx, tx, req.VehicleID, req.Position)
		if err != nil {
			return err
		}
		if occupied != nil {
			return apperr.Conflict("车辆 %s 轮位 %s 已被占用", vehicle.PlateNo, req.Position)
		}

		assignment = &entity.Assignment{
			ID:               uuid.New().String()[:32],
			UnitID:           unit.ID,
			VehicleID:        req.VehicleID,
			Position:         req.Position,
			AssignedOdometer: req.Odometer,
			AssignedAt:       time.Now(),
			AssignedBy:       userID,
		}
		if err := tx.Create(assignment).Error; err != nil {
			return err
		}

		unit.Status = entity.UnitStatusAssigned
		unit.Location = ""
		if err := tx.Save(unit).Error; err != nil {
			return err
		}

		// 车辆里程表只前进不回退
		if req.Odometer > vehicle.CurrentOdometer {
			if err := tx.Model(&entity.Vehicle{}).
				Where("id = ? AND current_odometer < ?", vehicle.ID, req.Odometer).
				Update("current_odometer", req.Odometer).Error; err != nil {
				return err
			}
		}

		s.activityRepo.LogActivity(ctx, "unit", unit.ID, unit.SerialNo,
			"assign", entity.UnitStatusInStock, entity.UnitStatusAssigned,
			fmt.Sprintf("装配到 %s / %s，里程 %.1f", vehicle.PlateNo, req.Position, req.Odometer), userID)
		return nil
	})

	if err != nil {
		return nil, err
	}

	s.afterInventoryChange(ctx, skuCode)
	return assignment, nil
}

// UnassignRequest 拆卸请求
type UnassignRequest struct {
	Odometer float64 `json:"odometer"`
	Reason   string  `json:"reason"`
}

// Unassign 关闭装配记录并把单体转回库存。若单体最近一次检查结论
// 待定，则拆卸后转入检查中而非在库
func (s *AssignmentService) Unassign(ctx context.Context, assignmentID, userID string, req *UnassignRequest) (*entity.Assignment, error) {
	targetStatus := entity.UnitStatusInStock
	if a, err := s.assignmentRepo.FindByID(ctx, assignmentID); err == nil && a != nil {
		latest, err := s.inspectionRepo.FindLatestByUnit(ctx, a.UnitID)
		if err != nil {
			return nil, err
		}
		if latest != nil && latest.Outcome == entity.InspectionOutcomePending {
			targetStatus = entity.UnitStatusInInspection
		}
	}
	return s.unassign(ctx, assignmentID, userID, req, targetStatus)
}

// unassign 拆卸实现。targetStatus为拆卸后单体的目标状态，
// 检查评估器强制拆卸时传quarantined
func (s *AssignmentService) unassign(ctx context.Context, assignmentID, userID string, req *UnassignRequest, targetStatus string) (*entity.Assignment, error) {
	var assignment *entity.Assignment

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a entity.Assignment
		if err := tx.Where("id = ?", assignmentID).First(&a).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return apperr.NotFound("装配记录 %s 不存在", assignmentID)
			}
			return err
		}
		assignment = &a

		if !assignment.Open() {
			return apperr.InvalidTransition("装配记录 %s 已关闭", assignmentID)
		}
		if req.Odometer < assignment.AssignedOdometer {
			return apperr.Validation("拆卸里程 %.1f 小于装配里程 %.1f", req.Odometer, assignment.AssignedOdometer)
		}

		unit, err := s.unitRepo.LockByID(ctx, tx, assignment.UnitID)
		if err != nil {
			if err == repository.ErrNotFound {
				return apperr.Consistency("装配记录 %s 引用的单体 %s 不存在", assignmentID, assignment.UnitID)
			}
			return err
		}

		now := time.Now()
		odometer := req.Odometer
		assignment.RemovedOdometer = &odometer
		assignment.RemovedAt = &now
		assignment.RemovedBy = userID
		assignment.RemovalReason = req.Reason
		if err := tx.Save(assignment).Error; err != nil {
			return err
		}

		fromStatus := unit.Status
		if !entity.CanTransitionStatus(fromStatus, targetStatus) {
			return apperr.InvalidTransition("单体 %s 不允许从 %s 迁移到 %s", unit.SerialNo, fromStatus, targetStatus)
		}

		unit.Status = targetStatus
		unit.CumulativeKm += assignment.Distance()
		if targetStatus == entity.UnitStatusInStock {
			unit.Location = s.preferredWarehouse(ctx, unit.SKUCode)
		}
		if err := tx.Save(unit).Error; err != nil {
			return err
		}

		s.activityRepo.LogActivity(ctx, "unit", unit.ID, unit.SerialNo,
			"unassign", fromStatus, targetStatus,
			fmt.Sprintf("自轮位 %s 拆卸，里程 %.1f，原因 %s", assignment.Position, req.Odometer, req.Reason), userID)
		return nil
	})

	if err != nil {
		return nil, err
	}

	if s.inventorySvc != nil {
		s.inventorySvc.InvalidateCache(ctx)
	}
	return assignment, nil
}

// HistoryByUnit 单体装配历史，时间正序，游标可续读
func (s *AssignmentService) HistoryByUnit(ctx context.Context, unitID, afterID string, limit int) ([]entity.Assignment, error) {
	if _, err := s.unitRepo.FindByID(ctx, unitID); err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("单体 %s 不存在", unitID)
		}
		return nil, err
	}
	items, err := s.assignmentRepo.HistoryByUnit(ctx, unitID, afterID, limit)
	if err == repository.ErrNotFound {
		return nil, apperr.NotFound("游标 %s 不存在", afterID)
	}
	return items, err
}

// HistoryBySlot (车辆,轮位)装配历史，时间正序，游标可续读
func (s *AssignmentService) HistoryBySlot(ctx context.Context, vehicleID, position, afterID string, limit int) ([]entity.Assignment, error) {
	if _, err := s.vehicleRepo.FindByID(ctx, vehicleID); err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("车辆 %s 不存在", vehicleID)
		}
		return nil, err
	}
	items, err := s.assignmentRepo.HistoryBySlot(ctx, vehicleID, position, afterID, limit)
	if err == repository.ErrNotFound {
		return nil, apperr.NotFound("游标 %s 不存在", afterID)
	}
	return items, err
}

// afterInventoryChange 库存变化后的同步后置动作：失效缓存并评估阈值。
// 评估失败不影响主操作结果
func (s *AssignmentService) afterInventoryChange(ctx context.Context, skuCode string) {
	if s.inventorySvc != nil {
		s.inventorySvc.InvalidateCache(ctx)
	}
	if s.alertSvc != nil && skuCode != "" {
		s.alertSvc.EvaluateThresholds(ctx, skuCode)
	}
}

func (s *AssignmentService) preferredWarehouse(ctx context.Context, skuCode string) string {
	sku, err := s.skuRepo.FindByCode(ctx, skuCode)
	if err != nil {
		return ""
	}
	return sku.PreferredWarehouse
}
