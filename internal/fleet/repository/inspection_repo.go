package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"gorm.io/gorm"
)

// InspectionRepository 检查记录仓库
type InspectionRepository struct {
	db *gorm.DB
}

func NewInspectionRepository(db *gorm.DB) *InspectionRepository {
	return &InspectionRepository{db: db}
}

// FindAll 查询检查记录列表
func (r *InspectionRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Inspection, int64, error) {
	var items []entity.Inspection
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Inspection{})

	if unitID := filters["unit_id"]; unitID != "" {
		query = query.Where("unit_id = ?", unitID)
	}
	if vehicleID := filters["vehicle_id"]; vehicleID != "" {
		query = query.Where("vehicle_id = ?", vehicleID)
	}
	if outcome := filters["outcome"]; outcome != "" {
		query = query.Where("outcome = ?", outcome)
	}
	if inspectorID := filters["inspector_id"]; inspectorID != "" {
		query = query.Where("inspector_id = ?", inspectorID)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("code ILIKE ? OR issues ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Unit").
		Order("inspected_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 按ID查找检查记录
func (r *InspectionRepository) FindByID(ctx context.Context, id string) (*entity.Inspection, error) {
	var inspection entity.Inspection
	err := r.db.WithContext(ctx).
		Preload("Unit").
		Where("id = ?", id).
		First(&inspection).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &inspection, nil
}

// FindLatestByUnit 按检查时间取单体最近一次检查，无记录返回nil
func (r *InspectionRepository) FindLatestByUnit(ctx context.Context, unitID string) (*entity.Inspection, error) {
	var inspection entity.Inspection
	err := r.db.WithContext(ctx).
		Where("unit_id = ?", unitID).
		Order("inspected_at DESC, created_at DESC").
		First(&inspection).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inspection, nil
}

// Create 创建检查记录。记录不可变，本仓库不提供Update
func (r *InspectionRepository) Create(ctx context.Context, inspection *entity.Inspection) error {
	return r.db.WithContext(ctx).Create(inspection).Error
}

// SetReportURL 补登检验报告文件地址，是检查记录唯一允许的后置写入
func (r *InspectionRepository) SetReportURL(ctx context.Context, id, url string) error {
	return r.db.WithContext(ctx).Model(&entity.Inspection{}).
		Where("id = ?", id).
		Update("report_url", url).Error
}

// GenerateCode 生成检查编码 INS-{year}-{4位}
func (r *InspectionRepository) GenerateCode(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("INS-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.Inspection{}).
		Select("COALESCE(MAX(code), '')").
		Where("code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "INS-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("INS-%s-%04d", year, seq), nil
}

// MetricsWindow 统计某时间窗内的检查数与通过数
func (r *InspectionRepository) MetricsWindow(ctx context.Context, from, to time.Time) (total, passed, failed int64, err error) {
	row := r.db.WithContext(ctx).Raw(`
		SELECT
			COUNT(*) AS total,
			COUNT(CASE WHEN outcome = 'passed' THEN 1 END) AS passed,
			COUNT(CASE WHEN outcome = 'failed' THEN 1 END) AS failed
		FROM fleet_inspections
		WHERE inspected_at >= ? AND inspected_at < ?
	`, from, to).Row()
	err = row.Scan(&total, &passed, &failed)
	return total, passed, failed, err
}
