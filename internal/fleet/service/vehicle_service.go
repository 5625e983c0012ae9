package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"github.com/bitfantasy/tyrefleet/internal/fleet/repository"
	"github.com/bitfantasy/tyrefleet/internal/shared/apperr"
)

// VehicleService 车辆档案服务
type VehicleService struct {
	vehicleRepo    *repository.VehicleRepository
	assignmentRepo *repository.AssignmentRepository
	activityRepo   *repository.ActivityLogRepository
	db             *gorm.DB
}

func NewVehicleService(
	vehicleRepo *repository.VehicleRepository,
	assignmentRepo *repository.AssignmentRepository,
	activityRepo *repository.ActivityLogRepository,
	db *gorm.DB,
) *VehicleService {
	return &VehicleService{
		vehicleRepo:    vehicleRepo,
		assignmentRepo: assignmentRepo,
		activityRepo:   activityRepo,
		db:             db,
	}
}

// ListVehicles 获取车辆列表
func (s *VehicleService) ListVehicles(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Vehicle, int64, error) {
	return s.vehicleRepo.FindAll(ctx, page, pageSize, filters)
}

// GetVehicle 获取车辆详情及当前在装情况
func (s *VehicleService) GetVehicle(ctx context.Context, id string) (*entity.Vehicle, []entity.Assignment, error) {
	vehicle, err := s.vehicleRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, nil, apperr.NotFound("车辆 %s 不存在", id)
		}
		return nil, nil, err
	}
	open, err := s.assignmentRepo.FindOpenByVehicle(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	return vehicle, open, nil
}

// CreateVehicleRequest 创建车辆请求
type CreateVehicleRequest struct {
	PlateNo         string   `json:"plate_no" binding:"required"`
	Category        string   `json:"category"`
	AxlePositions   []string `json:"axle_positions"`
	CurrentOdometer float64  `json:"current_odometer"`
}

// CreateVehicle 登记车辆
func (s *VehicleService) CreateVehicle(ctx context.Context, req *CreateVehicleRequest, userID string) (*entity.Vehicle, error) {
	if req.CurrentOdometer < 0 {
		return nil, apperr.Validation("里程表读数不能为负数")
	}

	seen := make(map[string]bool, len(req.AxlePositions))
	for _, pos := range req.AxlePositions {
		if pos == "" {
			return nil, apperr.Validation("轮位标识不能为空")
		}
		if seen[pos] {
			return nil, apperr.Validation("轮位 %s 重复", pos)
		}
		seen[pos] = true
	}

	if existing, err := s.vehicleRepo.FindByPlate(ctx, req.PlateNo); err == nil && existing != nil {
		return nil, apperr.Conflict("车牌号 %s 已存在", req.PlateNo)
	} else if err != nil && err != repository.ErrNotFound {
		return nil, err
	}

	vehicle := &entity.Vehicle{
		ID:              uuid.New().String()[:32],
		PlateNo:         req.PlateNo,
		Category:        req.Category,
		AxlePositions:   entity.StringArray(req.AxlePositions),
		CurrentOdometer: req.CurrentOdometer,
		Status:          entity.VehicleStatusActive,
	}
	if err := s.vehicleRepo.Create(ctx, vehicle); err != nil {
		return nil, fmt.Errorf("创建车辆失败: %w", err)
	}

	s.activityRepo.LogActivity(ctx, "vehicle", vehicle.ID, vehicle.PlateNo,
		"create", "", entity.VehicleStatusActive, "登记车辆", userID)
	return vehicle, nil
}

// UpdateVehicleRequest 更新车辆请求
type UpdateVehicleRequest struct {
	Category      *string   `json:"category"`
	AxlePositions *[]string `json:"axle_positions"`
	Status        *string   `json:"status"`
}

// UpdateVehicle 更新车辆档案。收窄轮位表前先检查待移除轮位没有在装单体
func (s *VehicleService) UpdateVehicle(ctx context.Context, id string, req *UpdateVehicleRequest) (*entity.Vehicle, error) {
	vehicle, err := s.vehicleRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("车辆 %s 不存在", id)
		}
		return nil, err
	}

	if req.Category != nil {
		vehicle.Category = *req.Category
	}
	if req.Status != nil {
		if !entity.ValidVehicleStatus(*req.Status) {
			return nil, apperr.Validation("无效的车辆状态: %s", *req.Status)
		}
		vehicle.Status = *req.Status
	}
	if req.AxlePositions != nil {
		next := entity.StringArray(*req.AxlePositions)
		open, err := s.assignmentRepo.FindOpenByVehicle(ctx, id)
		if err != nil {
			return nil, err
		}
		for _, a := range open {
			if len(next) > 0 && !next.Contains(a.Position) {
				return nil, apperr.Conflict("轮位 %s 仍有在装单体，不允许移除", a.Position)
			}
		}
		vehicle.AxlePositions = next
	}

	if err := s.vehicleRepo.Update(ctx, vehicle); err != nil {
		return nil, err
	}
	return vehicle, nil
}

// UpdateOdometer 上报车辆里程。里程表只前进不回退，回退上报报错
func (s *VehicleService) UpdateOdometer(ctx context.Context, id string, odometer float64) (*entity.Vehicle, error) {
	vehicle, err := s.vehicleRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("车辆 %s 不存在", id)
		}
		return nil, err
	}
	if odometer < vehicle.CurrentOdometer {
		return nil, apperr.Validation("里程 %.1f 小于车辆当前里程 %.1f", odometer, vehicle.CurrentOdometer)
	}

	if err := s.vehicleRepo.UpdateOdometer(ctx, id, odometer); err != nil {
		return nil, err
	}
	vehicle.CurrentOdometer = odometer
	return vehicle, nil
}
