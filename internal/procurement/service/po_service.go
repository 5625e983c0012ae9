package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/bitfantasy/tyrefleet/internal/procurement/entity"
	"github.com/bitfantasy/tyrefleet/internal/procurement/repository"
	"github.com/bitfantasy/tyrefleet/internal/shared/apperr"
)

// UnitCreator 收货入库时创建单体。fleet侧实现，main里注入
type UnitCreator interface {
	CreateFromDelivery(ctx context.Context, tx *gorm.DB, skuCode, serialNo, poCode string) error
}

// ThresholdEvaluator 入库后重新评估库存阈值。fleet侧实现
type ThresholdEvaluator interface {
	EvaluateThresholds(ctx context.Context, skuCode string) error
}

// CacheInvalidator 入库后失效库存缓存。fleet侧实现
type CacheInvalidator interface {
	InvalidateCache(ctx context.Context)
}

// POService 采购订单服务。PO状态只允许相邻推进，delivered一步
// 在同一事务内创建单体并关闭来源请购单
type POService struct {
	poRepo          *repository.PORepository
	requisitionRepo *repository.RequisitionRepository
	db              *gorm.DB
	logger          *zap.Logger

	unitCreator UnitCreator
	evaluator   ThresholdEvaluator
	invalidator CacheInvalidator
}

func NewPOService(
	poRepo *repository.PORepository,
	requisitionRepo *repository.RequisitionRepository,
	db *gorm.DB,
	logger *zap.Logger,
) *POService {
	return &POService{
		poRepo:          poRepo,
		requisitionRepo: requisitionRepo,
		db:              db,
		logger:          logger,
	}
}

// SetUnitCreator 注入单体创建实现
func (s *POService) SetUnitCreator(creator UnitCreator) {
	s.unitCreator = creator
}

// SetThresholdEvaluator 注入阈值评估实现
func (s *POService) SetThresholdEvaluator(evaluator ThresholdEvaluator) {
	s.evaluator = evaluator
}

// SetCacheInvalidator 注入缓存失效实现
func (s *POService) SetCacheInvalidator(invalidator CacheInvalidator) {
	s.invalidator = invalidator
}

// ListPurchaseOrders 获取采购订单列表
func (s *POService) ListPurchaseOrders(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.PurchaseOrder, int64, error) {
	return s.poRepo.FindAll(ctx, page, pageSize, filters)
}

// GetPurchaseOrder 获取采购订单详情（含行项）
func (s *POService) GetPurchaseOrder(ctx context.Context, id string) (*entity.PurchaseOrder, error) {
	po, err := s.poRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("采购订单 %s 不存在", id)
		}
		return nil, err
	}
	return po, nil
}

// CreatePORequest 由请购单生成采购订单的请求
type CreatePORequest struct {
	RequisitionID string     `json:"requisition_id" binding:"required"`
	SupplierName  string     `json:"supplier_name" binding:"required"`
	ExpectedDate  *time.Time `json:"expected_date"`
	Notes         string     `json:"notes"`
}

// CreateFromRequisition 由已审批请购单生成采购订单，行项快照自请购单行项。
// 同一请购单同时只允许存在一张未关闭PO
func (s *POService) CreateFromRequisition(ctx context.Context, userID string, req *CreatePORequest) (*entity.PurchaseOrder, error) {
	requisition, err := s.requisitionRepo.FindByID(ctx, req.RequisitionID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("请购单 %s 不存在", req.RequisitionID)
		}
		return nil, err
	}
	if requisition.Status != entity.RequisitionStatusApproved {
		return nil, apperr.InvalidTransition("请购单 %s 状态为 %s，仅已审批可生成采购订单", requisition.Code, requisition.Status)
	}
	if len(requisition.Items) == 0 {
		return nil, apperr.Validation("请购单 %s 没有行项", requisition.Code)
	}

	existing, err := s.poRepo.FindUnclosedByRequisition(ctx, requisition.ID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, apperr.Conflict("请购单 %s 已存在未关闭采购订单 %s", requisition.Code, existing.Code)
	}

	code, err := s.poRepo.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成PO编码失败: %w", err)
	}

	po := &entity.PurchaseOrder{
		ID:            uuid.New().String()[:32],
		Code:          code,
		RequisitionID: requisition.ID,
		SupplierName:  req.SupplierName,
		Status:        entity.POStatusCreated,
		TotalAmount:   requisition.TotalAmount,
		Currency:      "CNY",
		ExpectedDate:  req.ExpectedDate,
		CreatedBy:     userID,
		Notes:         req.Notes,
	}
	for i, item := range requisition.Items {
		itemID := item.ID
		po.Items = append(po.Items, entity.POItem{
			ID:                uuid.New().String()[:32],
			POID:              po.ID,
			RequisitionItemID: &itemID,
			SKUCode:           item.SKUCode,
			Brand:             item.Brand,
			Model:             item.Model,
			Size:              item.Size,
			Quantity:          item.Quantity,
			UnitCost:          item.UnitCost,
			TotalAmount:       item.TotalAmount,
			SortOrder:         i,
		})
	}

	if err := s.poRepo.Create(ctx, po); err != nil {
		return nil, fmt.Errorf("创建采购订单失败: %w", err)
	}
	return po, nil
}

// AdvancePORequest 推进PO状态的请求。Serials仅delivered一步使用：
// 按行项ID提供序列号，缺省时按 {PO编码}-{行序}-{件序} 生成
type AdvancePORequest struct {
	Status  string              `json:"status" binding:"required"`
	Serials map[string][]string `json:"serials"`
}

// AdvancePO 推进采购订单状态，仅允许相邻前进一步。推进到delivered时
// 在同一事务内按行项数量创建单体并关闭来源请购单；任一序列号冲突则
// 整单收货回滚
func (s *POService) AdvancePO(ctx context.Context, id, userID string, req *AdvancePORequest) (*entity.PurchaseOrder, error) {
	po, err := s.GetPurchaseOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entity.CanAdvancePO(po.Status, req.Status) {
		return nil, apperr.InvalidTransition("采购订单 %s 不允许从 %s 推进到 %s", po.Code, po.Status, req.Status)
	}

	now := time.Now()
	switch req.Status {
	case entity.POStatusSent:
		po.SentAt = &now
	case entity.POStatusDelivered:
		return s.deliver(ctx, po, userID, req.Serials, now)
	case entity.POStatusClosed:
		po.ClosedAt = &now
	}

	po.Status = req.Status
	if err := s.poRepo.Update(ctx, po); err != nil {
		return nil, err
	}
	return po, nil
}

// deliver 收货：创建单体、PO转delivered、请购单关闭，单个事务
func (s *POService) deliver(ctx context.Context, po *entity.PurchaseOrder, userID string, serials map[string][]string, now time.Time) (*entity.PurchaseOrder, error) {
	if s.unitCreator == nil {
		return nil, apperr.Validation("收货入库未配置")
	}

	skuCodes := make([]string, 0, len(po.Items))
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, item := range po.Items {
			provided := serials[item.ID]
			if len(provided) > 0 && len(provided) != item.Quantity {
				return apperr.Validation("行项 %s 序列号数量 %d 与收货数量 %d 不一致", item.SKUCode, len(provided), item.Quantity)
			}
			for n := 1; n <= item.Quantity; n++ {
				serialNo := fmt.Sprintf("%s-%d-%d", po.Code, item.SortOrder+1, n)
				if len(provided) > 0 {
					serialNo = provided[n-1]
				}
				if err := s.unitCreator.CreateFromDelivery(ctx, tx, item.SKUCode, serialNo, po.Code); err != nil {
					return err
				}
			}
			skuCodes = append(skuCodes, item.SKUCode)
		}

		po.Status = entity.POStatusDelivered
		po.DeliveredAt = &now
		if err := tx.Omit("Items", "Requisition").Save(po).Error; err != nil {
			return err
		}

		// 收货即关闭来源请购单
		closedAt := now
		return tx.Model(&entity.Requisition{}).
			Where("id = ? AND status = ?", po.RequisitionID, entity.RequisitionStatusApproved).
			Updates(map[string]interface{}{
				"status":    entity.RequisitionStatusClosed,
				"closed_at": closedAt,
			}).Error
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("采购订单收货完成",
		zap.String("code", po.Code), zap.String("operator", userID))

	if s.invalidator != nil {
		s.invalidator.InvalidateCache(ctx)
	}
	if s.evaluator != nil {
		seen := make(map[string]bool, len(skuCodes))
		for _, code := range skuCodes {
			if seen[code] {
				continue
			}
			seen[code] = true
			if err := s.evaluator.EvaluateThresholds(ctx, code); err != nil {
				s.logger.Warn("收货后阈值评估失败", zap.String("sku_code", code), zap.Error(err))
			}
		}
	}
	return po, nil
}
