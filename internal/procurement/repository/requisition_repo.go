package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/tyrefleet/internal/procurement/entity"
	"gorm.io/gorm"
)

// RequisitionRepository 请购单仓库
type RequisitionRepository struct {
	db *gorm.DB
}

func NewRequisitionRepository(db *gorm.DB) *RequisitionRepository {
	return &RequisitionRepository{db: db}
}

// FindAll 查询请购单列表
func (r *RequisitionRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Requisition, int64, error) {
	var items []entity.Requisition
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Requisition{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if requestedBy := filters["requested_by"]; requestedBy != "" {
		query = query.Where("requested_by = ?", requestedBy)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("title ILIKE ? OR code ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("Items").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 按ID查找请购单（含行项）
func (r *RequisitionRepository) FindByID(ctx context.Context, id string) (*entity.Requisition, error) {
	var req entity.Requisition
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("sort_order ASC")
		}).
		Where("id = ?", id).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &req, nil
}

// FindUnclosedByAlert 查找某告警已有的未终结请购建议，防重复
func (r *RequisitionRepository) FindUnclosedByAlert(ctx context.Context, alertID string) (*entity.Requisition, error) {
	var req entity.Requisition
	err := r.db.WithContext(ctx).
		Where("source_alert_id = ?", alertID).
		Where("status NOT IN ?", []string{entity.RequisitionStatusRejected, entity.RequisitionStatusClosed}).
		First(&req).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &req, nil
}

// Create 创建请购单
func (r *RequisitionRepository) Create(ctx context.Context, req *entity.Requisition) error {
	return r.db.WithContext(ctx).Create(req).Error
}

// Update 更新请购单
func (r *RequisitionRepository) Update(ctx context.Context, req *entity.Requisition) error {
	return r.db.WithContext(ctx).Save(req).Error
}

// ReplaceItems 替换草稿请购单的全部行项
func (r *RequisitionRepository) ReplaceItems(ctx context.Context, requisitionID string, items []entity.RequisitionItem) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("requisition_id = ?", requisitionID).Delete(&entity.RequisitionItem{}).Error; err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return tx.Create(&items).Error
	})
}

// GenerateCode 生成请购单编码 REQ-{year}-{4位}
func (r *RequisitionRepository) GenerateCode(ctx context.Context) (string, error) {
	year := time.Now().Format("2006")
	prefix := fmt.Sprintf("REQ-%s-", year)

	var maxCode string
	err := r.db.WithContext(ctx).
		Model(&entity.Requisition{}).
		Select("COALESCE(MAX(code), '')").
		Where("code LIKE ?", prefix+"%").
		Scan(&maxCode).Error
	if err != nil {
		return "", err
	}

	var seq int
	if maxCode != "" {
		fmt.Sscanf(maxCode, "REQ-"+year+"-%04d", &seq)
	}
	seq++
	return fmt.Sprintf("REQ-%s-%04d", year, seq), nil
}
