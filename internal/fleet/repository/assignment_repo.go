package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"gorm.io/gorm"
)

// AssignmentRepository 装配台账仓库
type AssignmentRepository struct {
	db *gorm.DB
}

func NewAssignmentRepository(db *gorm.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// FindByID 按ID查找装配记录
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*entity.Assignment, error) {
	var assignment entity.Assignment
	err := r.db.WithContext(ctx).
		Preload("Unit").
		Where("id = ?", id).
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &assignment, nil
}

// FindOpenByUnit 查找单体当前开放的装配记录，不存在返回nil
func (r *AssignmentRepository) FindOpenByUnit(ctx context.Context, unitID string) (*entity.Assignment, error) {
	return r.findOpen(ctx, r.db, "unit_id = ?", unitID)
}

// FindOpenByUnitTx 事务内查找单体开放装配记录
func (r *AssignmentRepository) FindOpenByUnitTx(ctx context.Context, tx *gorm.DB, unitID string) (*entity.Assignment, error) {
	return r.findOpen(ctx, tx, "unit_id = ?", unitID)
}

// FindOpenBySlotTx 事务内查找槽位开放装配记录
func (r *AssignmentRepository) FindOpenBySlotTx(ctx context.Context, tx *gorm.DB, vehicleID, position string) (*entity.Assignment, error) {
	return r.findOpen(ctx, tx, "vehicle_id = ? AND position = ?", vehicleID, position)
}

func (r *AssignmentRepository) findOpen(ctx context.Context, db *gorm.DB, query string, args ...interface{}) (*entity.Assignment, error) {
	var assignment entity.Assignment
	err := db.WithContext(ctx).
		Where(query, args...).
		Where("removed_at IS NULL").
		First(&assignment).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &assignment, nil
}

// Create 创建装配记录
func (r *AssignmentRepository) Create(ctx context.Context, assignment *entity.Assignment) error {
	return r.db.WithContext(ctx).Create(assignment).Error
}

// HistoryByUnit 按单体查询装配历史，时间正序，(afterID, limit)游标分页可续读
func (r *AssignmentRepository) HistoryByUnit(ctx context.Context, unitID, afterID string, limit int) ([]entity.Assignment, error) {
	return r.history(ctx, afterID, limit, "unit_id = ?", unitID)
}

// HistoryBySlot 按(车辆,轮位)查询装配历史，时间正序，游标分页可续读
func (r *AssignmentRepository) HistoryBySlot(ctx context.Context, vehicleID, position, afterID string, limit int) ([]entity.Assignment, error) {
	return r.history(ctx, afterID, limit, "vehicle_id = ? AND position = ?", vehicleID, position)
}

func (r *AssignmentRepository) history(ctx context.Context, afterID string, limit int, query string, args ...interface{}) ([]entity.Assignment, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := r.db.WithContext(ctx).Where(query, args...)

	if afterID != "" {
		// 以上一页末条记录的(assigned_at, id)为游标
		var cursor entity.Assignment
		if err := r.db.WithContext(ctx).Select("id", "assigned_at").Where("id = ?", afterID).First(&cursor).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrNotFound
			}
			return nil, err
		}
		q = q.Where("(assigned_at, id) > (?, ?)", cursor.AssignedAt, cursor.ID)
	}

	var items []entity.Assignment
	err := q.Order("assigned_at ASC, id ASC").Limit(limit).Find(&items).Error
	return items, err
}

// FindOpenByVehicle 某车辆全部开放装配记录，按轮位正序（Preload单体）
func (r *AssignmentRepository) FindOpenByVehicle(ctx context.Context, vehicleID string) ([]entity.Assignment, error) {
	var items []entity.Assignment
	err := r.db.WithContext(ctx).
		Preload("Unit").
		Where("vehicle_id = ? AND removed_at IS NULL", vehicleID).
		Order("position ASC").
		Find(&items).Error
	return items, err
}
