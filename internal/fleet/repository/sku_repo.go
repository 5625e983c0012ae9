package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"gorm.io/gorm"
)

// SKURepository 轮胎型号仓库
type SKURepository struct {
	db *gorm.DB
}

func NewSKURepository(db *gorm.DB) *SKURepository {
	return &SKURepository{db: db}
}

// FindAll 查询型号列表
func (r *SKURepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.SKU, int64, error) {
	var items []entity.SKU
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.SKU{})

	if brand := filters["brand"]; brand != "" {
		query = query.Where("brand = ?", brand)
	}
	if category := filters["category"]; category != "" {
		query = query.Where("category = ?", category)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("code ILIKE ? OR model ILIKE ?", "%"+search+"%", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Order("code ASC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByCode 按型号编码查找
func (r *SKURepository) FindByCode(ctx context.Context, code string) (*entity.SKU, error) {
	var sku entity.SKU
	err := r.db.WithContext(ctx).Where("code = ?", code).First(&sku).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sku, nil
}

// FindByID 按ID查找
func (r *SKURepository) FindByID(ctx context.Context, id string) (*entity.SKU, error) {
	var sku entity.SKU
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&sku).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &sku, nil
}

// Create 创建型号
func (r *SKURepository) Create(ctx context.Context, sku *entity.SKU) error {
	return r.db.WithContext(ctx).Create(sku).Error
}

// Update 更新型号
func (r *SKURepository) Update(ctx context.Context, sku *entity.SKU) error {
	return r.db.WithContext(ctx).Save(sku).Error
}

// Delete 删除型号（被单体引用时由service层拒绝）
func (r *SKURepository) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Where("id = ?", id).Delete(&entity.SKU{}).Error
}

// CountUnits 统计引用该型号的单体数
func (r *SKURepository) CountUnits(ctx context.Context, code string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Unit{}).Where("sku_code = ?", code).Count(&count).Error
	return count, err
}

// CodesWithThresholds 返回配置了库存阈值的型号编码
func (r *SKURepository) CodesWithThresholds(ctx context.Context) ([]string, error) {
	var codes []string
	err := r.db.WithContext(ctx).Model(&entity.SKU{}).
		Where("reorder_point > 0 OR min_stock_level > 0").
		Order("code ASC").
		Pluck("code", &codes).Error
	return codes, err
}
