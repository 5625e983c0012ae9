package entity

import "time"

// Unit 轮胎单体，按序列号追踪的单条物理轮胎
type Unit struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	SerialNo string `json:"serial_no" gorm:"size:50;uniqueIndex;not null"`
	SKUCode  string `json:"sku_code" gorm:"size:50;not null;index"`

	CumulativeKm float64 `json:"cumulative_km" gorm:"type:decimal(12,1);default:0"`
	TreadDepth   float64 `json:"tread_depth" gorm:"type:decimal(5,2)"` // mm
	RetreadCount int     `json:"retread_count" gorm:"default:0"`

	Condition string `json:"condition" gorm:"size:20;default:good"`     // good/worn/damaged
	Status    string `json:"status" gorm:"size:20;default:in_stock"`    // in_stock/assigned/in_inspection/quarantined/scrapped
	Location  string `json:"location" gorm:"size:32"`                   // 仓库编码，装车后为空

	SourcePOCode string `json:"source_po_code" gorm:"size:32"` // 来源采购订单

	ScrappedAt *time.Time `json:"scrapped_at"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`

	// 关联（只读，查询时Preload）
	SKU *SKU `json:"sku,omitempty" gorm:"foreignKey:SKUCode;references:Code"`
}

func (Unit) TableName() string {
	return "fleet_units"
}

// 单体状态
const (
	UnitStatusInStock      = "in_stock"
	UnitStatusAssigned     = "assigned"
	UnitStatusInInspection = "in_inspection"
	UnitStatusQuarantined  = "quarantined"
	UnitStatusScrapped     = "scrapped"
)

// 单体状况
const (
	UnitConditionGood    = "good"
	UnitConditionWorn    = "worn"
	UnitConditionDamaged = "damaged"
)

// unitStatusTransitions 合法的状态迁移表。scrapped为终态，不出现在源状态中
var unitStatusTransitions = map[string][]string{
	UnitStatusInStock:      {UnitStatusAssigned, UnitStatusInInspection, UnitStatusQuarantined, UnitStatusScrapped},
	UnitStatusAssigned:     {UnitStatusInStock, UnitStatusInInspection, UnitStatusQuarantined},
	UnitStatusInInspection: {UnitStatusInStock, UnitStatusAssigned, UnitStatusQuarantined},
	UnitStatusQuarantined:  {UnitStatusInStock, UnitStatusScrapped},
}

// CanTransitionStatus 判断单体状态迁移是否合法
func CanTransitionStatus(from, to string) bool {
	if from == to {
		return true
	}
	for _, t := range unitStatusTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

