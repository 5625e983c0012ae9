package repository

import (
	"context"
	"errors"

	"github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// UnitRepository 轮胎单体仓库
type UnitRepository struct {
	db *gorm.DB
}

func NewUnitRepository(db *gorm.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

// FindAll 查询单体列表
func (r *UnitRepository) FindAll(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Unit, int64, error) {
	var items []entity.Unit
	var total int64

	query := r.db.WithContext(ctx).Model(&entity.Unit{})

	if status := filters["status"]; status != "" {
		query = query.Where("status = ?", status)
	}
	if condition := filters["condition"]; condition != "" {
		query = query.Where("condition = ?", condition)
	}
	if skuCode := filters["sku_code"]; skuCode != "" {
		query = query.Where("sku_code = ?", skuCode)
	}
	if location := filters["location"]; location != "" {
		query = query.Where("location = ?", location)
	}
	if search := filters["search"]; search != "" {
		query = query.Where("serial_no ILIKE ?", "%"+search+"%")
	}

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * pageSize
	err := query.
		Preload("SKU").
		Order("created_at DESC").
		Offset(offset).
		Limit(pageSize).
		Find(&items).Error

	return items, total, err
}

// FindByID 按ID查找单体
func (r *UnitRepository) FindByID(ctx context.Context, id string) (*entity.Unit, error) {
	var unit entity.Unit
	err := r.db.WithContext(ctx).
		Preload("SKU").
		Where("id = ?", id).
		First(&unit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &unit, nil
}

// FindBySerial 按序列号查找单体
func (r *UnitRepository) FindBySerial(ctx context.Context, serialNo string) (*entity.Unit, error) {
	var unit entity.Unit
	err := r.db.WithContext(ctx).Where("serial_no = ?", serialNo).First(&unit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &unit, nil
}

// LockByID 事务内按ID加行锁查找，装配/拆卸/报废的临界区使用
func (r *UnitRepository) LockByID(ctx context.Context, tx *gorm.DB, id string) (*entity.Unit, error) {
	var unit entity.Unit
	err := tx.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&unit).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &unit, nil
}

// Create 创建单体
func (r *UnitRepository) Create(ctx context.Context, unit *entity.Unit) error {
	return r.db.WithContext(ctx).Create(unit).Error
}

// Update 更新单体
func (r *UnitRepository) Update(ctx context.Context, unit *entity.Unit) error {
	return r.db.WithContext(ctx).Save(unit).Error
}

// CountInStockBySKU 统计某型号当前在库数量
func (r *UnitRepository) CountInStockBySKU(ctx context.Context, skuCode string) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&entity.Unit{}).
		Where("sku_code = ? AND status = ?", skuCode, entity.UnitStatusInStock).
		Count(&count).Error
	return count, err
}

// StatusSnapshot 按状态统计单体数量。单条SQL保证各计数出自同一快照，
// 相加必然等于总数
type StatusSnapshot struct {
	Total        int64 `json:"total"`
	InStock      int64 `json:"in_stock"`
	Assigned     int64 `json:"assigned"`
	InInspection int64 `json:"in_inspection"`
	Quarantined  int64 `json:"quarantined"`
	Scrapped     int64 `json:"scrapped"`

	// 待更换：condition为worn或damaged的单体，不论当前状态
	NeedsReplacement int64 `json:"needs_replacement"`
}

// CountByStatus 单体状态快照
func (r *UnitRepository) CountByStatus(ctx context.Context) (*StatusSnapshot, error) {
	var snap StatusSnapshot
	err := r.db.WithContext(ctx).Model(&entity.Unit{}).
		Select(`COUNT(*) AS total,
			COUNT(*) FILTER (WHERE status = 'in_stock') AS in_stock,
			COUNT(*) FILTER (WHERE status = 'assigned') AS assigned,
			COUNT(*) FILTER (WHERE status = 'in_inspection') AS in_inspection,
			COUNT(*) FILTER (WHERE status = 'quarantined') AS quarantined,
			COUNT(*) FILTER (WHERE status = 'scrapped') AS scrapped,
			COUNT(*) FILTER (WHERE condition IN ('worn', 'damaged')) AS needs_replacement`).
		Scan(&snap).Error
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// StockRow 某型号在某库位的在库数量
type StockRow struct {
	SKUCode  string `json:"sku_code"`
	Brand    string `json:"brand"`
	Model    string `json:"model"`
	Size     string `json:"size"`
	Location string `json:"location"`
	Quantity int64  `json:"quantity"`
}

// StockBreakdown 在库单体按(型号,库位)分组统计，型号、库位正序
func (r *UnitRepository) StockBreakdown(ctx context.Context) ([]StockRow, error) {
	var rows []StockRow
	err := r.db.WithContext(ctx).Model(&entity.Unit{}).
		Select(`fleet_units.sku_code, fleet_skus.brand, fleet_skus.model, fleet_skus.size,
			fleet_units.location, COUNT(*) AS quantity`).
		Joins("JOIN fleet_skus ON fleet_skus.code = fleet_units.sku_code").
		Where("fleet_units.status = ?", entity.UnitStatusInStock).
		Group("fleet_units.sku_code, fleet_skus.brand, fleet_skus.model, fleet_skus.size, fleet_units.location").
		Order("fleet_units.sku_code ASC, fleet_units.location ASC").
		Find(&rows).Error
	return rows, err
}
