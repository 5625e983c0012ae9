package service

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"github.com/bitfantasy/tyrefleet/internal/fleet/repository"
	"github.com/bitfantasy/tyrefleet/internal/shared/apperr"
	"github.com/bitfantasy/tyrefleet/internal/shared/notify"
)

// RequisitionSuggester 低库存触发补货建议。采购模块实现，main里注入，
// 避免fleet与procurement互相引用
type RequisitionSuggester interface {
	SuggestFromAlert(ctx context.Context, alertID, skuCode string, suggestedQty int) error
}

// AlertService 告警与阈值引擎。评估是同步的、幂等的：同一逻辑键
// (module, entity_ref, condition)至多一条未了结告警
type AlertService struct {
	alertRepo *repository.AlertRepository
	skuRepo   *repository.SKURepository
	unitRepo  *repository.UnitRepository
	logger    *zap.Logger

	notifier  *notify.Client
	suggester RequisitionSuggester
}

func NewAlertService(
	alertRepo *repository.AlertRepository,
	skuRepo *repository.SKURepository,
	unitRepo *repository.UnitRepository,
	logger *zap.Logger,
) *AlertService {
	return &AlertService{
		alertRepo: alertRepo,
		skuRepo:   skuRepo,
		unitRepo:  unitRepo,
		logger:    logger,
	}
}

// SetNotifier 注入webhook通知客户端
func (s *AlertService) SetNotifier(notifier *notify.Client) {
	s.notifier = notifier
}

// SetRequisitionSuggester 注入补货建议实现
func (s *AlertService) SetRequisitionSuggester(suggester RequisitionSuggester) {
	s.suggester = suggester
}

// ListAlerts 获取告警列表
func (s *AlertService) ListAlerts(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Alert, int64, error) {
	return s.alertRepo.FindAll(ctx, page, pageSize, filters)
}

// GetAlert 获取告警详情
func (s *AlertService) GetAlert(ctx context.Context, id string) (*entity.Alert, error) {
	alert, err := s.alertRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("告警 %s 不存在", id)
		}
		return nil, err
	}
	return alert, nil
}

// EvaluateThresholds 评估某型号的库存阈值。低于reorder_point产生
// warning，低于min_stock_level升级critical；回到阈值之上自动了结。
// 评估可重复执行，去重保证不产生重复告警
func (s *AlertService) EvaluateThresholds(ctx context.Context, skuCode string) error {
	sku, err := s.skuRepo.FindByCode(ctx, skuCode)
	if err != nil {
		if err == repository.ErrNotFound {
			return apperr.NotFound("型号 %s 不存在", skuCode)
		}
		return err
	}
	if sku.ReorderPoint <= 0 && sku.MinStockLevel <= 0 {
		return nil
	}

	count, err := s.unitRepo.CountInStockBySKU(ctx, skuCode)
	if err != nil {
		return fmt.Errorf("统计型号 %s 在库数量失败: %w", skuCode, err)
	}

	existing, err := s.alertRepo.FindUnresolvedByKey(ctx,
		entity.AlertModuleInventory, skuCode, entity.AlertConditionLowStock)
	if err != nil {
		return err
	}

	severity := ""
	switch {
	case sku.MinStockLevel > 0 && count <= int64(sku.MinStockLevel):
		severity = entity.AlertSeverityCritical
	case sku.ReorderPoint > 0 && count <= int64(sku.ReorderPoint):
		severity = entity.AlertSeverityWarning
	}

	// 库存恢复，自动了结未了结的低库存告警
	if severity == "" {
		if existing != nil {
			now := time.Now()
			resolver := "system"
			existing.Status = entity.AlertStatusResolved
			existing.ResolutionNotes = fmt.Sprintf("库存恢复到 %d，自动了结", count)
			existing.ResolvedBy = &resolver
			existing.ResolvedAt = &now
			if err := s.alertRepo.Update(ctx, existing); err != nil {
				return err
			}
		}
		return nil
	}

	description := fmt.Sprintf("型号 %s 在库 %d，已触及补货点 %d", skuCode, count, sku.ReorderPoint)
	if severity == entity.AlertSeverityCritical {
		description = fmt.Sprintf("型号 %s 在库 %d，已触及最低库存 %d", skuCode, count, sku.MinStockLevel)
	}

	if existing != nil {
		// 级别或描述变化时原地更新，不产生新行
		if existing.Severity != severity || existing.Description != description {
			existing.Severity = severity
			existing.Description = description
			if err := s.alertRepo.Update(ctx, existing); err != nil {
				return err
			}
		}
		return nil
	}

	alert := &entity.Alert{
		ID:          uuid.New().String()[:32],
		Severity:    severity,
		Status:      entity.AlertStatusOpen,
		Module:      entity.AlertModuleInventory,
		EntityRef:   skuCode,
		Condition:   entity.AlertConditionLowStock,
		Description: description,
	}
	if err := s.alertRepo.Create(ctx, alert); err != nil {
		return err
	}

	s.dispatch(ctx, alert)

	// 补货建议：建议补到reorder_point之上
	if s.suggester != nil {
		qty := sku.ReorderPoint - int(count)
		if qty < 1 {
			qty = 1
		}
		if err := s.suggester.SuggestFromAlert(ctx, alert.ID, skuCode, qty); err != nil {
			s.logger.Warn("生成补货建议失败",
				zap.String("sku_code", skuCode), zap.Error(err))
		}
	}
	return nil
}

// EvaluateAll 对所有配置了阈值的型号做一轮评估（定时任务入口）
func (s *AlertService) EvaluateAll(ctx context.Context) error {
	codes, err := s.skuRepo.CodesWithThresholds(ctx)
	if err != nil {
		return err
	}
	for _, code := range codes {
		if err := s.EvaluateThresholds(ctx, code); err != nil {
			s.logger.Warn("阈值评估失败", zap.String("sku_code", code), zap.Error(err))
		}
	}
	return nil
}

// RaiseDataQuality 上报数据质量告警（info级），同键去重。
// 失败只记日志，不影响主流程
func (s *AlertService) RaiseDataQuality(ctx context.Context, entityRef, description string) {
	existing, err := s.alertRepo.FindUnresolvedByKey(ctx,
		entity.AlertModuleInspection, entityRef, entity.AlertConditionDataQuality)
	if err != nil {
		s.logger.Warn("查询数据质量告警失败", zap.String("entity_ref", entityRef), zap.Error(err))
		return
	}
	if existing != nil {
		return
	}

	alert := &entity.Alert{
		ID:          uuid.New().String()[:32],
		Severity:    entity.AlertSeverityInfo,
		Status:      entity.AlertStatusOpen,
		Module:      entity.AlertModuleInspection,
		EntityRef:   entityRef,
		Condition:   entity.AlertConditionDataQuality,
		Description: description,
	}
	if err := s.alertRepo.Create(ctx, alert); err != nil {
		s.logger.Warn("创建数据质量告警失败", zap.String("entity_ref", entityRef), zap.Error(err))
		return
	}
	s.dispatch(ctx, alert)
}

// Acknowledge 确认告警。确认后仍计入去重，直到resolve
func (s *AlertService) Acknowledge(ctx context.Context, id, userID string) (*entity.Alert, error) {
	alert, err := s.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status != entity.AlertStatusOpen {
		return nil, apperr.InvalidTransition("告警 %s 状态为 %s，不允许确认", id, alert.Status)
	}

	now := time.Now()
	alert.Status = entity.AlertStatusAcknowledged
	alert.AcknowledgedBy = &userID
	alert.AcknowledgedAt = &now
	if err := s.alertRepo.Update(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// Resolve 了结告警
func (s *AlertService) Resolve(ctx context.Context, id, userID, notes string) (*entity.Alert, error) {
	alert, err := s.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if alert.Status == entity.AlertStatusResolved {
		return nil, apperr.InvalidTransition("告警 %s 已了结", id)
	}

	now := time.Now()
	alert.Status = entity.AlertStatusResolved
	alert.ResolutionNotes = notes
	alert.ResolvedBy = &userID
	alert.ResolvedAt = &now
	if err := s.alertRepo.Update(ctx, alert); err != nil {
		return nil, err
	}
	return alert, nil
}

// dispatch 投递告警事件到webhook，失败只记日志
func (s *AlertService) dispatch(ctx context.Context, alert *entity.Alert) {
	if s.notifier == nil {
		return
	}
	event := &notify.AlertEvent{
		AlertID:     alert.ID,
		Severity:    alert.Severity,
		Module:      alert.Module,
		EntityRef:   alert.EntityRef,
		Condition:   alert.Condition,
		Description: alert.Description,
		CreatedAt:   alert.CreatedAt,
	}
	if err := s.notifier.SendAlert(ctx, event); err != nil {
		s.logger.Warn("投递告警webhook失败", zap.String("alert_id", alert.ID), zap.Error(err))
	}
}
