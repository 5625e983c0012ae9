package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/bitfantasy/tyrefleet/internal/fleet/repository"
)

const (
	inventoryOverviewCacheKey = "tyrefleet:inventory:overview"
	inventoryCacheTTL         = 5 * time.Minute
)

// InventoryOverview 库存总览。各状态计数出自同一SQL快照
type InventoryOverview struct {
	Snapshot   *repository.StatusSnapshot `json:"snapshot"`
	Stock      []repository.StockRow      `json:"stock"`
	OpenAlerts map[string]int64           `json:"open_alerts"`
	CachedAt   time.Time                  `json:"cached_at"`
}

// InventoryService 库存聚合服务。只读派生视图，数据以装配台账和
// 单体登记为准
type InventoryService struct {
	unitRepo  *repository.UnitRepository
	alertRepo *repository.AlertRepository
	cache     *redis.Client
	logger    *zap.Logger
}

func NewInventoryService(unitRepo *repository.UnitRepository, alertRepo *repository.AlertRepository, logger *zap.Logger) *InventoryService {
	return &InventoryService{
		unitRepo:  unitRepo,
		alertRepo: alertRepo,
		logger:    logger,
	}
}

// SetCache 注入redis缓存，未注入时每次直查数据库
func (s *InventoryService) SetCache(cache *redis.Client) {
	s.cache = cache
}

// Overview 库存总览，redis缓存5分钟，写路径主动失效
func (s *InventoryService) Overview(ctx context.Context) (*InventoryOverview, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, inventoryOverviewCacheKey).Bytes(); err == nil {
			var cached InventoryOverview
			if err := json.Unmarshal(raw, &cached); err == nil {
				return &cached, nil
			}
		}
	}

	snap, err := s.unitRepo.CountByStatus(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计单体状态失败: %w", err)
	}
	stock, err := s.unitRepo.StockBreakdown(ctx)
	if err != nil {
		return nil, fmt.Errorf("统计库存分布失败: %w", err)
	}
	alerts, err := s.alertRepo.CountOpen(ctx)
	if err != nil {
		return nil, err
	}

	overview := &InventoryOverview{
		Snapshot:   snap,
		Stock:      stock,
		OpenAlerts: alerts,
		CachedAt:   time.Now(),
	}

	if s.cache != nil {
		if raw, err := json.Marshal(overview); err == nil {
			if err := s.cache.Set(ctx, inventoryOverviewCacheKey, raw, inventoryCacheTTL).Err(); err != nil {
				s.logger.Warn("写入库存总览缓存失败", zap.Error(err))
			}
		}
	}
	return overview, nil
}

// StockBreakdown 在库数量按(型号,库位)分组，稳定正序
func (s *InventoryService) StockBreakdown(ctx context.Context) ([]repository.StockRow, error) {
	return s.unitRepo.StockBreakdown(ctx)
}

// InvalidateCache 失效库存总览缓存。装配/拆卸/入库/报废后调用，
// 失败只记日志
func (s *InventoryService) InvalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, inventoryOverviewCacheKey).Err(); err != nil {
		s.logger.Warn("失效库存总览缓存失败", zap.Error(err))
	}
}

// ExportStockXLSX 导出库存分布Excel
func (s *InventoryService) ExportStockXLSX(ctx context.Context) (*bytes.Buffer, string, error) {
	rows, err := s.unitRepo.StockBreakdown(ctx)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	sheet := "库存分布"
	f.SetSheetName("Sheet1", sheet)

	headers := []string{"型号编码", "品牌", "型号", "规格", "库位", "在库数量"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		f.SetCellValue(sheet, cell, h)
	}

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#DDEBF7"}, Pattern: 1},
	})
	f.SetCellStyle(sheet, "A1", "F1", headerStyle)
	f.SetColWidth(sheet, "A", "A", 18)
	f.SetColWidth(sheet, "B", "E", 14)

	for i, row := range rows {
		r := i + 2
		f.SetCellValue(sheet, fmt.Sprintf("A%d", r), row.SKUCode)
		f.SetCellValue(sheet, fmt.Sprintf("B%d", r), row.Brand)
		f.SetCellValue(sheet, fmt.Sprintf("C%d", r), row.Model)
		f.SetCellValue(sheet, fmt.Sprintf("D%d", r), row.Size)
		f.SetCellValue(sheet, fmt.Sprintf("E%d", r), row.Location)
		f.SetCellValue(sheet, fmt.Sprintf("F%d", r), row.Quantity)
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("生成Excel失败: %w", err)
	}
	fileName := fmt.Sprintf("库存分布_%s.xlsx", time.Now().Format("20060102"))
	return buf, fileName, nil
}
