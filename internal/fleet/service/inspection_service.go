package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/bitfantasy/tyrefleet/internal/fleet/entity"
	"github.com/bitfantasy/tyrefleet/internal/fleet/repository"
	"github.com/bitfantasy/tyrefleet/internal/shared/apperr"
	"github.com/bitfantasy/tyrefleet/internal/shared/storage"
)

// InspectionService 检查评估服务。检查记录驱动单体状况/状态迁移，
// 本服务是单体condition的唯一写入方
type InspectionService struct {
	inspectionRepo *repository.InspectionRepository
	unitRepo       *repository.UnitRepository
	vehicleRepo    *repository.VehicleRepository
	skuRepo        *repository.SKURepository
	assignmentRepo *repository.AssignmentRepository
	activityRepo   *repository.ActivityLogRepository
	db             *gorm.DB

	assignmentSvc *AssignmentService
	alertSvc      *AlertService
	store         *storage.ObjectStore
	cache         *redis.Client
}

func NewInspectionService(
	inspectionRepo *repository.InspectionRepository,
	unitRepo *repository.UnitRepository,
	vehicleRepo *repository.VehicleRepository,
	skuRepo *repository.SKURepository,
	assignmentRepo *repository.AssignmentRepository,
	activityRepo *repository.ActivityLogRepository,
	db *gorm.DB,
) *InspectionService {
	return &InspectionService{
		inspectionRepo: inspectionRepo,
		unitRepo:       unitRepo,
		vehicleRepo:    vehicleRepo,
		skuRepo:        skuRepo,
		assignmentRepo: assignmentRepo,
		activityRepo:   activityRepo,
		db:             db,
	}
}

// SetAssignmentService 注入装配服务，检查不合格时强制拆卸
func (s *InspectionService) SetAssignmentService(svc *AssignmentService) {
	s.assignmentSvc = svc
}

// SetAlertService 注入告警服务，数据质量问题以info告警上报
func (s *InspectionService) SetAlertService(svc *AlertService) {
	s.alertSvc = svc
}

// SetObjectStore 注入对象存储，支持检验报告附件
func (s *InspectionService) SetObjectStore(store *storage.ObjectStore) {
	s.store = store
}

// SetCache 注入redis缓存
func (s *InspectionService) SetCache(cache *redis.Client) {
	s.cache = cache
}

// ListInspections 获取检查记录列表
func (s *InspectionService) ListInspections(ctx context.Context, page, pageSize int, filters map[string]string) ([]entity.Inspection, int64, error) {
	return s.inspectionRepo.FindAll(ctx, page, pageSize, filters)
}

// GetInspection 获取检查记录详情
func (s *InspectionService) GetInspection(ctx context.Context, id string) (*entity.Inspection, error) {
	inspection, err := s.inspectionRepo.FindByID(ctx, id)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("检查记录 %s 不存在", id)
		}
		return nil, err
	}
	return inspection, nil
}

// RecordInspectionRequest 登记检查请求
type RecordInspectionRequest struct {
	UnitID          string   `json:"unit_id" binding:"required"`
	Outcome         string   `json:"outcome" binding:"required"` // passed/failed/pending
	TreadDepth      *float64 `json:"tread_depth"` // nil表示未测量
	Pressure        *float64 `json:"pressure"`
	OdometerReading *float64 `json:"odometer_reading"`
	Issues          string   `json:"issues"`
}

// Record 登记检查并执行状态迁移。检查记录先落库，后续迁移失败不回滚
// 检查记录本身（检查是事实，不因下游失败而消失）
func (s *InspectionService) Record(ctx context.Context, inspectorID string, req *RecordInspectionRequest) (*entity.Inspection, error) {
	if !entity.ValidInspectionOutcome(req.Outcome) {
		return nil, apperr.Validation("无效的检查结论: %s", req.Outcome)
	}
	if req.TreadDepth != nil && *req.TreadDepth < 0 {
		return nil, apperr.Validation("花纹深度不能为负数")
	}

	unit, err := s.unitRepo.FindByID(ctx, req.UnitID)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.NotFound("单体 %s 不存在", req.UnitID)
		}
		return nil, err
	}
	if unit.Status == entity.UnitStatusScrapped {
		return nil, apperr.InvalidTransition("单体 %s 已报废，不再接受检查登记", unit.SerialNo)
	}

	sku, err := s.skuRepo.FindByCode(ctx, unit.SKUCode)
	if err != nil {
		if err == repository.ErrNotFound {
			return nil, apperr.Consistency("单体 %s 引用的型号 %s 不存在", unit.SerialNo, unit.SKUCode)
		}
		return nil, err
	}

	open, err := s.assignmentRepo.FindOpenByUnit(ctx, req.UnitID)
	if err != nil {
		return nil, err
	}

	code, err := s.inspectionRepo.GenerateCode(ctx)
	if err != nil {
		return nil, fmt.Errorf("生成检查编码失败: %w", err)
	}

	inspection := &entity.Inspection{
		ID:              uuid.New().String()[:32],
		Code:            code,
		UnitID:          unit.ID,
		InspectorID:     inspectorID,
		InspectedAt:     time.Now(),
		Outcome:         req.Outcome,
		TreadDepth:      req.TreadDepth,
		Pressure:        req.Pressure,
		OdometerReading: req.OdometerReading,
		Issues:          req.Issues,
	}
	if open != nil {
		inspection.AssignmentID = &open.ID
		inspection.VehicleID = &open.VehicleID
	}

	// 先落库，检查记录不可变也不回滚
	if err := s.inspectionRepo.Create(ctx, inspection); err != nil {
		return nil, err
	}

	if err := s.applyOutcome(ctx, inspectorID, inspection, unit, sku, open); err != nil {
		return inspection, err
	}
	return inspection, nil
}

// applyOutcome 根据检查结论推进单体状况/状态
func (s *InspectionService) applyOutcome(ctx context.Context, inspectorID string, inspection *entity.Inspection, unit *entity.Unit, sku *entity.SKU, open *entity.Assignment) error {
	// 单体自称在装但台账无开放记录，属于一致性缺陷，如实上报
	if unit.Status == entity.UnitStatusAssigned && open == nil {
		return apperr.Consistency("单体 %s 状态为assigned但台账无开放装配记录", unit.SerialNo)
	}

	switch inspection.Outcome {
	case entity.InspectionOutcomeFailed:
		if inspection.TreadDepth != nil && *inspection.TreadDepth < sku.MinTreadDepth {
			return s.quarantine(ctx, inspectorID, inspection, unit, sku, open)
		}
		// 花纹深度尚可但检查不合格：标记损坏；在装单体留待拆卸时处置
		if _, err := s.updateCondition(ctx, unit, entity.UnitConditionDamaged, inspection.TreadDepth); err != nil {
			return err
		}
		if unit.Status != entity.UnitStatusAssigned && unit.Status != entity.UnitStatusInInspection {
			return s.moveStatus(ctx, inspectorID, unit, entity.UnitStatusInInspection, "检查不合格，待复核")
		}
		return nil

	case entity.InspectionOutcomePassed:
		if _, err := s.updateCondition(ctx, unit, entity.UnitConditionGood, inspection.TreadDepth); err != nil {
			return err
		}
		if unit.Status == entity.UnitStatusAssigned || unit.Status == entity.UnitStatusInStock {
			return nil
		}
		return s.moveStatus(ctx, inspectorID, unit, entity.UnitStatusInStock, "检查合格，转回库存")

	case entity.InspectionOutcomePending:
		// 结论待定：状况不动；在装单体保持在装，拆卸时再转检查中
		if unit.Status == entity.UnitStatusAssigned || unit.Status == entity.UnitStatusInInspection {
			return nil
		}
		return s.moveStatus(ctx, inspectorID, unit, entity.UnitStatusInInspection, "检查结论待定")
	}
	return nil
}

// quarantine 花纹深度低于型号下限的不合格处置：磨损+隔离，强制拆卸
func (s *InspectionService) quarantine(ctx context.Context, inspectorID string, inspection *entity.Inspection, unit *entity.Unit, sku *entity.SKU, open *entity.Assignment) error {
	if _, err := s.updateCondition(ctx, unit, entity.UnitConditionWorn, inspection.TreadDepth); err != nil {
		return err
	}

	if open != nil {
		odometer, fallback := s.removalOdometer(ctx, inspection, open)
		_, err := s.assignmentSvc.unassign(ctx, open.ID, inspectorID, &UnassignRequest{
			Odometer: odometer,
			Reason:   entity.RemovalReasonInspectionFailed,
		}, entity.UnitStatusQuarantined)
		if err != nil {
			return err
		}
		if fallback != "" && s.alertSvc != nil {
			s.alertSvc.RaiseDataQuality(ctx, unit.SerialNo,
				fmt.Sprintf("检查 %s 缺少里程读数，强制拆卸使用%s", inspection.Code, fallback))
		}
		return nil
	}

	return s.moveStatus(ctx, inspectorID, unit, entity.UnitStatusQuarantined,
		fmt.Sprintf("花纹深度 %.2fmm 低于型号下限 %.2fmm，隔离", *inspection.TreadDepth, sku.MinTreadDepth))
}

// removalOdometer 强制拆卸里程：检查读数优先，缺失时退化到车辆当前
// 里程或装配里程，退化情况作为数据质量问题上报而非硬失败
func (s *InspectionService) removalOdometer(ctx context.Context, inspection *entity.Inspection, open *entity.Assignment) (float64, string) {
	if inspection.OdometerReading != nil {
		return *inspection.OdometerReading, ""
	}
	if vehicle, err := s.vehicleRepo.FindByID(ctx, open.VehicleID); err == nil && vehicle.CurrentOdometer >= open.AssignedOdometer {
		return vehicle.CurrentOdometer, "车辆当前里程"
	}
	return open.AssignedOdometer, "装配时里程"
}

// updateCondition 更新状况与花纹深度
func (s *InspectionService) updateCondition(ctx context.Context, unit *entity.Unit, condition string, treadDepth *float64) (*entity.Unit, error) {
	unit.Condition = condition
	if treadDepth != nil {
		unit.TreadDepth = *treadDepth
	}
	if err := s.unitRepo.Update(ctx, unit); err != nil {
		return nil, err
	}
	return unit, nil
}

func (s *InspectionService) moveStatus(ctx context.Context, operatorID string, unit *entity.Unit, target, reason string) error {
	from := unit.Status
	if !entity.CanTransitionStatus(from, target) {
		return apperr.InvalidTransition("单体 %s 不允许从 %s 迁移到 %s", unit.SerialNo, from, target)
	}
	unit.Status = target
	if target == entity.UnitStatusInStock {
		if unit.Location == "" {
			if sku, err := s.skuRepo.FindByCode(ctx, unit.SKUCode); err == nil {
				unit.Location = sku.PreferredWarehouse
			}
		}
	} else {
		unit.Location = ""
	}
	if err := s.unitRepo.Update(ctx, unit); err != nil {
		return err
	}
	s.activityRepo.LogActivity(ctx, "unit", unit.ID, unit.SerialNo,
		"status_change", from, target, reason, operatorID)
	return nil
}

// AttachReport 上传检验报告附件并回填报告地址
func (s *InspectionService) AttachReport(ctx context.Context, id string, reader io.Reader, fileName string, fileSize int64, contentType string) (string, error) {
	if s.store == nil {
		return "", apperr.Validation("对象存储未配置，无法上传报告")
	}

	inspection, err := s.GetInspection(ctx, id)
	if err != nil {
		return "", err
	}

	objectName, err := s.store.PutReport(ctx, reader, fileName, fileSize, contentType)
	if err != nil {
		return "", err
	}

	if err := s.inspectionRepo.SetReportURL(ctx, inspection.ID, objectName); err != nil {
		return "", err
	}
	return objectName, nil
}

const (
	inspectionMetricsCacheKey = "tyrefleet:inspection:metrics"
	inspectionMetricsCacheTTL = 5 * time.Minute
)

// InspectionMetrics 当月检查指标与环比
type InspectionMetrics struct {
	MonthTotal   int64   `json:"month_total"`
	MonthPassed  int64   `json:"month_passed"`
	MonthFailed  int64   `json:"month_failed"`
	PassRate     float64 `json:"pass_rate"`      // 当月通过率（%），无检查时为0
	TotalChange  float64 `json:"total_change"`   // 检查数环比（%）
	HasPriorData bool    `json:"has_prior_data"` // 上月是否有检查，false时环比读作无基数
}

// Metrics 当月检查指标。环比基数为0时变化率报0并以has_prior_data标注，
// 不做除零外推
func (s *InspectionService) Metrics(ctx context.Context) (*InspectionMetrics, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, inspectionMetricsCacheKey).Bytes(); err == nil {
			var cached InspectionMetrics
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	now := time.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	prevStart := monthStart.AddDate(0, -1, 0)

	total, passed, failed, err := s.inspectionRepo.MetricsWindow(ctx, monthStart, monthStart.AddDate(0, 1, 0))
	if err != nil {
		return nil, fmt.Errorf("统计当月检查指标失败: %w", err)
	}
	prevTotal, _, _, err := s.inspectionRepo.MetricsWindow(ctx, prevStart, monthStart)
	if err != nil {
		return nil, fmt.Errorf("统计上月检查指标失败: %w", err)
	}

	metrics := &InspectionMetrics{
		MonthTotal:   total,
		MonthPassed:  passed,
		MonthFailed:  failed,
		HasPriorData: prevTotal > 0,
	}
	if total > 0 {
		metrics.PassRate = float64(passed) / float64(total) * 100
	}
	if prevTotal > 0 {
		metrics.TotalChange = (float64(total) - float64(prevTotal)) / float64(prevTotal) * 100
	}

	if s.cache != nil {
		if raw, err := json.Marshal(metrics); err == nil {
			s.cache.Set(ctx, inspectionMetricsCacheKey, raw, inspectionMetricsCacheTTL)
		}
	}
	return metrics, nil
}
