package entity

import "time"

// Alert 告警。逻辑键为(module, entity_ref, condition)，同一键下
// 至多存在一条未resolve的告警，避免重复评估造成告警风暴
type Alert struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	Severity string `json:"severity" gorm:"size:20;not null"` // critical/warning/info/success
	Status   string `json:"status" gorm:"size:20;default:open;index"` // open/acknowledged/resolved

	Module    string `json:"module" gorm:"size:50;not null;index:idx_alert_dedup"`
	EntityRef string `json:"entity_ref" gorm:"size:64;not null;index:idx_alert_dedup"`
	Condition string `json:"condition" gorm:"size:50;not null;index:idx_alert_dedup"`

	Description string `json:"description" gorm:"type:text"`

	AcknowledgedBy *string    `json:"acknowledged_by" gorm:"size:32"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`

	ResolutionNotes string     `json:"resolution_notes" gorm:"type:text"`
	ResolvedBy      *string    `json:"resolved_by" gorm:"size:32"`
	ResolvedAt      *time.Time `json:"resolved_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Alert) TableName() string {
	return "fleet_alerts"
}

// 告警级别
const (
	AlertSeverityCritical = "critical"
	AlertSeverityWarning  = "warning"
	AlertSeverityInfo     = "info"
	AlertSeveritySuccess  = "success"
)

// 告警状态
const (
	AlertStatusOpen         = "open"
	AlertStatusAcknowledged = "acknowledged"
	AlertStatusResolved     = "resolved"
)

// 告警来源模块
const (
	AlertModuleInventory  = "inventory"
	AlertModuleInspection = "inspection"
)

// 告警条件
const (
	AlertConditionLowStock    = "low_stock"
	AlertConditionDataQuality = "data_quality"
)

// Unresolved 是否计入去重（open与acknowledged都算未了结）
func (a *Alert) Unresolved() bool {
	return a.Status != AlertStatusResolved
}
