package service

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"github.com/bitfantasy/tyrefleet/internal/fleet/repository"
	"github.com/bitfantasy/tyrefleet/internal/shared/apperr"
)

// CatalogService 型号主数据服务
type CatalogService struct {
	skuRepo *repository.SKURepository
}

func NewCatalogService(skuRepo *repository.SKURepository) *CatalogService {
	return &CatalogService{skuRepo: skuRepo}
}

// ListSKUs 获取型号列表
func (s *CatalogService) ListSKUs(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.SKU, int64, error) {
	return s.skuRepo.FindAll(ctx, page, pageSize, filters)
}

// GetSKU 获取型号详情
func (s *CatalogService) GetSKU(ctx context.Context, code string) (*entity.SKU, error) {
	sku, err := s.skuRepo.FindByCode(ctx, code)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("型号 %s 不存在", code)
		}
		return nil, err
	}
	return sku, nil
}

// CreateSKURequest 创建型号请求
type CreateSKURequest struct {
	Code               string          `json:"code" binding:"required"`
	Brand              string          `json:"brand" binding:"required"`
	Model              string          `json:"model" binding:"required"`
	Size               string          `json:"size" binding:"required"`
	Category           string          `json:"category" binding:"required"`
	Retreadable        bool            `json:"retreadable"`
	MaxRetreads        int             `json:"max_retreads"`
	MinTreadDepth      float64         `json:"min_tread_depth"`
	ReorderPoint       int             `json:"reorder_point"`
	MinStockLevel      int             `json:"min_stock_level"`
	PreferredWarehouse string          `json:"preferred_warehouse"`
	LeadTimeDays       int             `json:"lead_time_days"`
	UnitCost           decimal.Decimal `json:"unit_cost"`
}

// CreateSKU 创建型号
func (s *CatalogService) CreateSKU(ctx context.Context, userID string, req *CreateSKURequest) (*entity.SKU, error) {
	if !entity.ValidSKUCategory(req.Category) {
		return nil, apperr.Validation("无效的型号类别: %s", req.Category)
	}
	if req.ReorderPoint < 0 || req.MinStockLevel < 0 {
		return nil, apperr.Validation("补货点和最低库存不能为负数")
	}
	if req.UnitCost.IsNegative() {
		return nil, apperr.Validation("单价不能为负数")
	}

	if existing, err := s.skuRepo.FindByCode(ctx, req.Code); err == nil && existing != nil {
		return nil, apperr.Conflict("型号编码 %s 已存在", req.Code)
	} else if err != nil && err != repository.ErrNotFound {
		return nil, err
	}

	sku := &entity.SKU{
		ID:                 uuid.New().String()[:32],
		Code:               req.Code,
		Brand:              req.Brand,
		Model:              req.Model,
		Size:               req.Size,
		Category:           req.Category,
		Retreadable:        req.Retreadable,
		MaxRetreads:        req.MaxRetreads,
		MinTreadDepth:      req.MinTreadDepth,
		ReorderPoint:       req.ReorderPoint,
		MinStockLevel:      req.MinStockLevel,
		PreferredWarehouse: req.PreferredWarehouse,
		LeadTimeDays:       req.LeadTimeDays,
		UnitCost:           req.UnitCost,
		CreatedBy:          userID,
	}

	if sku.MinTreadDepth <= 0 {
		sku.MinTreadDepth = 3 // 法规最低花纹深度缺省值
	}

	if err := s.skuRepo.Create(ctx, sku); err != nil {
		return nil, err
	}
	return sku, nil
}

// UpdateSKURequest 更新型号请求
type UpdateSKURequest struct {
	Brand              *string          `json:"brand"`
	Model              *string          `json:"model"`
	Size               *string          `json:"size"`
	Retreadable        *bool            `json:"retreadable"`
	MaxRetreads        *int             `json:"max_retreads"`
	MinTreadDepth      *float64         `json:"min_tread_depth"`
	ReorderPoint       *int             `json:"reorder_point"`
	MinStockLevel      *int             `json:"min_stock_level"`
	PreferredWarehouse *string          `json:"preferred_warehouse"`
	LeadTimeDays       *int             `json:"lead_time_days"`
	UnitCost           *decimal.Decimal `json:"unit_cost"`
}

// UpdateSKU 更新型号
func (s *CatalogService) UpdateSKU(ctx context.Context, code string, req *UpdateSKURequest) (*entity.SKU, error) {
	sku, err := s.GetSKU(ctx, code)
	if err != nil {
		return nil, err
	}

	if req.Brand != nil {
		sku.Brand = *req.Brand
	}
	if req.Model != nil {
		sku.Model = *req.Model
	}
	if req.Size != nil {
		sku.Size = *req.Size
	}
	if req.Retreadable != nil {
		sku.Retreadable = *req.Retreadable
	}
	if req.MaxRetreads != nil {
		sku.MaxRetreads = *req.MaxRetreads
	}
	if req.MinTreadDepth != nil {
		sku.MinTreadDepth = *req.MinTreadDepth
	}
	if req.ReorderPoint != nil {
		if *req.ReorderPoint < 0 {
			return nil, apperr.Validation("补货点不能为负数")
		}
		sku.ReorderPoint = *req.ReorderPoint
	}
	if req.MinStockLevel != nil {
		if *req.MinStockLevel < 0 {
			return nil, apperr.Validation("最低库存不能为负数")
		}
		sku.MinStockLevel = *req.MinStockLevel
	}
	if req.PreferredWarehouse != nil {
		sku.PreferredWarehouse = *req.PreferredWarehouse
	}
	if req.LeadTimeDays != nil {
		sku.LeadTimeDays = *req.LeadTimeDays
	}
	if req.UnitCost != nil {
		if req.UnitCost.IsNegative() {
			return nil, apperr.Validation("单价不能为负数")
		}
		sku.UnitCost = *req.UnitCost
	}

	if err := s.skuRepo.Update(ctx, sku); err != nil {
		return nil, err
	}
	return sku, nil
}

// DeleteSKU 删除型号。仍被任何单体引用时拒绝
func (s *CatalogService) DeleteSKU(ctx context.Context, code string) error {
	sku, err := s.GetSKU(ctx, code)
	if err != nil {
		return err
	}

	count, err := s.skuRepo.CountUnits(ctx, sku.Code)
	if err != nil {
		return err
	}
	if count > 0 {
		return apperr.Conflict("型号 %s 仍被 %d 条单体引用，不能删除", sku.Code, count)
	}

	return s.skuRepo.Delete(ctx, sku.ID)
}
