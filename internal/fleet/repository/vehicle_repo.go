package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"gorm.io/gorm"
)

// VehicleRepository 车辆仓库
type VehicleRepository struct {
	db *gorm.DB
}

func NewVehicleRepository(db *gorm.DB) *VehicleRepository {
	return &VehicleRepository{db: db}
}

// FindAll 查询车辆列表
func (r *VehicleRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Vehicle, int64, error) {
	var items []entity.Vehicle
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Vehicle{})

	if category := filters["category"]; category != "" {
		query = query.Where("category = ?", category)
	}
	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("plate_no ILIKE ?", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("plate_no ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 按ID查找车辆
func (r *VehicleRepository) FindByID(ctx context.Context, id string) (*entity.Vehicle, error) {
	var vehicle entity.Vehicle
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&vehicle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}

// Create 创建车辆
func (r *VehicleRepository) Create(ctx context.Context, vehicle *entity.Vehicle) error {
	return r.db.WithContext(ctx).Create(vehicle).Error
}

// Update 更新车辆
func (r *VehicleRepository) Update(ctx context.Context, vehicle *entity.Vehicle) error {
	return r.db.WithContext(ctx).Save(vehicle).Error
}

// UpdateOdometer 更新车辆当前里程表读数（只前进不回退）
func (r *VehicleRepository) UpdateOdometer(ctx context.Context, id string, odometer float64) error {
	return r.db.WithContext(ctx).Model(&entity.Vehicle{}).
		Where("id = ? AND current_odometer < ?", id, odometer).
		Update("current_odometer", odometer).Error
}

// FindByPlate 按车牌号查找车辆
func (r *VehicleRepository) FindByPlate(ctx context.Context, plateNo string) (*entity.Vehicle, error) {
	var vehicle entity.Vehicle
	err := r.db.WithContext(ctx).Where("plate_no = ?", plateNo).First(&vehicle).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &vehicle, nil
}
