package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"gorm.io/gorm"
)

// AlertRepository 告警仓库
type AlertRepository struct {
	db *gorm.DB
}

func NewAlertRepository(db *gorm.DB) *AlertRepository {
	return &AlertRepository{db: db}
}

// FindAll 查询告警列表
func (r *AlertRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Alert, int64, error) {
	var items []entity.Alert
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Alert{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if severity := filters["severity"]; severity != "" {
		query = query.Where("severity = ?", severity)
	}
	if module := filters["module"]; module != "" {
		query = query.Where("module = ?", module)
	}
	if entityRef := filters["entity_ref"]; entityRef != "" {
		query = query.Where("entity_ref = ?", entityRef)
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 按ID查找告警
func (r *AlertRepository) FindByID(ctx context.Context, id string) (*entity.Alert, error) {
	var alert entity.Alert
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &alert, nil
}

// FindUnresolvedByKey 按去重键查找未了结告警，不存在返回nil
func (r *AlertRepository) FindUnresolvedByKey(ctx context.Context, module, entityRef, condition string) (*entity.Alert, error) {
	return r.findUnresolvedByKey(ctx, r.db, module, entityRef, condition)
}

func (r *AlertRepository) findUnresolvedByKey(ctx context.Context, db *gorm.DB, module, entityRef, condition string) (*entity.Alert, error) {
	var alert entity.Alert
	err := db.WithContext(ctx).
		Where("module = ? AND entity_ref = ? AND condition = ?", module, entityRef, condition).
		Where("status <> ?", entity.AlertStatusResolved).
		First(&alert).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &alert, nil
}

// Create 创建告警
func (r *AlertRepository) Create(ctx context.Context, alert *entity.Alert) error {
	return r.db.WithContext(ctx).Create(alert).Error
}

// Update 更新告警
func (r *AlertRepository) Update(ctx context.Context, alert *entity.Alert) error {
	return r.db.WithContext(ctx).Save(alert).Error
}

// CountOpen 统计未了结告警数，按级别分组
func (r *AlertRepository) CountOpen(ctx context.Context) (map[string]int64, error) {
	type row struct {
		Severity string
		Count    int64
	}
	var rows []row
	err := r.db.WithContext(ctx).Model(&entity.Alert{}).
		Select("severity, COUNT(*) AS count").
		Where("status <> ?", entity.AlertStatusResolved).
		Group("severity").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[string]int64, len(rows))
	for _, r := range rows {
		counts[r.Severity] = r.Count
	}
	return counts, nil
}
