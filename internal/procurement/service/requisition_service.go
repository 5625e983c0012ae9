package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	fleetrepo "github.com/bitfantasy/tyrefleet/internal/fleet/repository"
	"github.com/bitfantasy/tyrefleet/internal/procurement/entity"
	"github.com/bitfantasy/tyrefleet/internal/procurement/repository"
	"github.com/bitfantasy/tyrefleet/internal/shared/apperr"
)

// RequisitionService 请购单服务。请购单聚合行项，草稿态可改，
// 提交后走 pending→approved/rejected 审批流
type RequisitionService struct {
	requisitionRepo *repository.RequisitionRepository
	skuRepo         *fleetrepo.SKURepository
	db              *gorm.DB
	logger          *zap.Logger
}

func NewRequisitionService(
	requisitionRepo *repository.RequisitionRepository,
	skuRepo *fleetrepo.SKURepository,
	db *gorm.DB,
	logger *zap.Logger,
) *RequisitionService {
	return &RequisitionService{
		requisitionRepo: requisitionRepo,
		skuRepo:         skuRepo,
		db:              db,
		logger:          logger,
	}
}

// ListRequisitions 获取请购单列表
func (s *RequisitionService) ListRequisitions(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Requisition, int64, error) {
	return s.requisitionRepo.FindAll(ctx, page, pageSize, filters)
}

// GetRequisition 获取请购单详情（含行项）
func (s *RequisitionService) GetRequisition(ctx context.Context, id string) (*entity.Requisition, error) {
	req, err := s.requisitionRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("请购单 %s 不存在", id)
		}
		return nil, err
	}
	return req, nil
}

// RequisitionItemRequest 请购单行项请求
type RequisitionItemRequest struct {
	SKUCode  string  `json:"sku_code" binding:"required"`
	Quantity int     `json:"quantity" binding:"required"`
	UnitCost *string `json:"unit_cost"` // 不传时取SKU单价
	Notes    string  `json:"notes"`
}

// CreateRequisitionRequest 创建请购单请求
type CreateRequisitionRequest struct {
	Title string                   `json:"title"`
	Notes string                   `json:"notes"`
	Items []RequisitionItemRequest `json:"items" binding:"required"`
}

// CreateRequisition 创建草稿态请购单
func (s *RequisitionService) CreateRequisition(ctx context.Context, userID string, req *CreateRequisitionRequest) (*entity.Requisition, error) {
	items, total, err := s.buildItems(ctx, req.Items)
	if err != nil {
		return nil, err
	}

	code, err := s.requisitionRepo.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成请购单编码失败: %w", err)
	}

	requisition := &entity.Requisition{
		ID:          uuid.New().String()[:32],
		Code:        code,
		Title:       req.Title,
		Status:      entity.RequisitionStatusDraft,
		RequestedBy: userID,
		TotalAmount: total,
		Notes:       req.Notes,
	}
	if requisition.Title == "" {
		requisition.Title = fmt.Sprintf("请购单 %s", code)
	}
	for i := range items {
		items[i].RequisitionID = requisition.ID
		items[i].SortOrder = i
	}
	requisition.Items = items

	if err := s.requisitionRepo.Create(ctx, requisition); err != nil {
		return nil, fmt.Errorf("创建请购单失败: %w", err)
	}
	return requisition, nil
}

// UpdateItems 整体替换行项，仅草稿态允许
func (s *RequisitionService) UpdateItems(ctx context.Context, id string, itemReqs []RequisitionItemRequest) (*entity.Requisition, error) {
	requisition, err := s.GetRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	if requisition.Status != entity.RequisitionStatusDraft {
		return nil, apperr.InvalidTransition("请购单 %s 状态为 %s，仅草稿允许修改行项", requisition.Code, requisition.Status)
	}

	items, total, err := s.buildItems(ctx, itemReqs)
	if err != nil {
		return nil, err
	}
	for i := range items {
		items[i].RequisitionID = requisition.ID
		items[i].SortOrder = i
	}

	if err := s.requisitionRepo.ReplaceItems(ctx, requisition.ID, items); err != nil {
		return nil, err
	}
	requisition.TotalAmount = total
	if err := s.requisitionRepo.Update(ctx, requisition); err != nil {
		return nil, err
	}
	requisition.Items = items
	return requisition, nil
}

// buildItems 校验行项并从SKU取快照字段
func (s *RequisitionService) buildItems(ctx context.Context, itemReqs []RequisitionItemRequest) ([]entity.RequisitionItem, decimal.Decimal, error) {
	if len(itemReqs) == 0 {
		return nil, decimal.Zero, apperr.Validation("请购单至少包含一个行项")
	}

	items := make([]entity.RequisitionItem, 0, len(itemReqs))
	total := decimal.Zero
	for _, ir := range itemReqs {
		if ir.Quantity <= 0 {
			return nil, decimal.Zero, apperr.Validation("行项 %s 数量必须为正整数", ir.SKUCode)
		}
		sku, err := s.skuRepo.FindByCode(ctx, ir.SKUCode)
		if err != nil {
			if err == fleetrepo.ErrNotFound {
				return nil, decimal.Zero, apperr.NotFound("型号 %s 不存在", ir.SKUCode)
			}
			return nil, decimal.Zero, err
		}

		unitCost := sku.UnitCost
		if ir.UnitCost != nil {
			unitCost, err = decimal.NewFromString(*ir.UnitCost)
			if err != nil || unitCost.IsNegative() {
				return nil, decimal.Zero, apperr.Validation("行项 %s 单价无效", ir.SKUCode)
			}
		}
		lineTotal := unitCost.Mul(decimal.NewFromInt(int64(ir.Quantity)))

		items = append(items, entity.RequisitionItem{
			ID:          uuid.New().String()[:32],
			SKUCode:     sku.Code,
			Brand:       sku.Brand,
			Model:       sku.Model,
			Size:        sku.Size,
			Quantity:    ir.Quantity,
			UnitCost:    unitCost,
			TotalAmount: lineTotal,
			Notes:       ir.Notes,
		})
		total = total.Add(lineTotal)
	}
	return items, total, nil
}

// Submit 提交审批 draft→pending
func (s *RequisitionService) Submit(ctx context.Context, id, userID string) (*entity.Requisition, error) {
	requisition, err := s.GetRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entity.CanTransitionRequisition(requisition.Status, entity.RequisitionStatusPending) {
		return nil, apperr.InvalidTransition("请购单 %s 不允许从 %s 提交", requisition.Code, requisition.Status)
	}
	if len(requisition.Items) == 0 {
		return nil, apperr.Validation("请购单 %s 没有行项，不能提交", requisition.Code)
	}

	now := time.Now()
	requisition.Status = entity.RequisitionStatusPending
	requisition.SubmittedAt = &now
	if err := s.requisitionRepo.Update(ctx, requisition); err != nil {
		return nil, err
	}
	return requisition, nil
}

// Approve 审批通过 pending→approved
func (s *RequisitionService) Approve(ctx context.Context, id, userID string) (*entity.Requisition, error) {
	return s.review(ctx, id, userID, entity.RequisitionStatusApproved)
}

// Reject 驳回 pending→rejected（终态）
func (s *RequisitionService) Reject(ctx context.Context, id, userID string) (*entity.Requisition, error) {
	return s.review(ctx, id, userID, entity.RequisitionStatusRejected)
}

func (s *RequisitionService) review(ctx context.Context, id, userID, target string) (*entity.Requisition, error) {
	requisition, err := s.GetRequisition(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entity.CanTransitionRequisition(requisition.Status, target) {
		return nil, apperr.InvalidTransition("请购单 %s 不允许从 %s 迁移到 %s", requisition.Code, requisition.Status, target)
	}

	now := time.Now()
	requisition.Status = target
	requisition.ReviewedBy = &userID
	requisition.ReviewedAt = &now
	if err := s.requisitionRepo.Update(ctx, requisition); err != nil {
		return nil, err
	}
	return requisition, nil
}

// SuggestFromAlert 低库存告警生成补货建议单（草稿态）。同一告警
// 已有未关闭请购单时幂等跳过
func (s *RequisitionService) SuggestFromAlert(ctx context.Context, alertID, skuCode string, suggestedQty int) error {
	existing, err := s.requisitionRepo.FindUnclosedByAlert(ctx, alertID)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	sku, err := s.skuRepo.FindByCode(ctx, skuCode)
	if err != nil {
		if err == fleetrepo.ErrNotFound {
			return apperr.NotFound("型号 %s 不存在", skuCode)
		}
		return err
	}
	if suggestedQty < 1 {
		suggestedQty = 1
	}

	code, err := s.requisitionRepo.GenerateCode(ctx)
	if err != nil {
		return fmt.Errorf("生成请购单编码失败: %w", err)
	}

	lineTotal := sku.UnitCost.Mul(decimal.NewFromInt(int64(suggestedQty)))
	requisition := &entity.Requisition{
		ID:            uuid.New().String()[:32],
		Code:          code,
		Title:         fmt.Sprintf("低库存补货建议 %s", skuCode),
		Status:        entity.RequisitionStatusDraft,
		SourceAlertID: &alertID,
		RequestedBy:   "system",
		TotalAmount:   lineTotal,
		Notes:         fmt.Sprintf("库存告警 %s 自动生成", alertID),
		Items: []entity.RequisitionItem{{
			ID:          uuid.New().String()[:32],
			SKUCode:     sku.Code,
			Brand:       sku.Brand,
			Model:       sku.Model,
			Size:        sku.Size,
			Quantity:    suggestedQty,
			UnitCost:    sku.UnitCost,
			TotalAmount: lineTotal,
		}},
	}
	requisition.Items[0].RequisitionID = requisition.ID

	if err := s.requisitionRepo.Create(ctx, requisition); err != nil {
		return fmt.Errorf("创建补货建议单失败: %w", err)
	}
	s.logger.Info("低库存补货建议单已生成",
		zap.String("code", code), zap.String("sku_code", skuCode), zap.Int("quantity", suggestedQty))
	return nil
}
