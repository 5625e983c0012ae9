package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// SKU 轮胎型号主数据
type SKU struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	Code     string `json:"code" gorm:"size:50;uniqueIndex;not null"`
	Brand    string `json:"brand" gorm:"size:100;not null"`
	Model    string `json:"model" gorm:"size:100;not null"`
	Size     string `json:"size" gorm:"size:50;not null"` // 如 295/80R22.5
	Category string `json:"category" gorm:"size:20;not null"` // steer/drive/trailer

	// 翻新
	Retreadable bool `json:"retreadable" gorm:"default:false"`
	MaxRetreads int  `json:"max_retreads" gorm:"default:0"`

	// 检验阈值
	MinTreadDepth float64 `json:"min_tread_depth" gorm:"type:decimal(5,2);default:3"` // mm

	// 补货规则
	ReorderPoint       int    `json:"reorder_point" gorm:"default:0"`
	MinStockLevel      int    `json:"min_stock_level" gorm:"default:0"`
	PreferredWarehouse string `json:"preferred_warehouse" gorm:"size:32"`
	LeadTimeDays       int    `json:"lead_time_days" gorm:"default:0"`

	UnitCost decimal.Decimal `json:"unit_cost" gorm:"type:decimal(15,2)"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (SKU) TableName() string {
	return "fleet_skus"
}

// SKU类别
const (
	SKUCategorySteer   = "steer"
	SKUCategoryDrive   = "drive"
	SKUCategoryTrailer = "trailer"
)

// ValidSKUCategory 校验SKU类别
func ValidSKUCategory(category string) bool {
	switch category {
	case SKUCategorySteer, SKUCategoryDrive, SKUCategoryTrailer:
		return true
	}
	return false
}
