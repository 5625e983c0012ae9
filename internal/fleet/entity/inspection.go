package entity

import "time"

// Inspection 检查记录。记录一经落库不再修改，更正以新记录表示
type Inspection struct {
	ID           string  `json:"id" gorm:"primaryKey;size:32"`
	Code         string  `json:"code" gorm:"size:32;uniqueIndex;not null"` // INS-{year}-{seq}
	UnitID       string  `json:"unit_id" gorm:"size:32;not null;index"`
	VehicleID    *string `json:"vehicle_id" gorm:"size:32;index"`
	AssignmentID *string `json:"assignment_id" gorm:"size:32"` // 检查时开放的装配记录

	InspectorID string    `json:"inspector_id" gorm:"size:32;not null;index"`
	InspectedAt time.Time `json:"inspected_at" gorm:"not null"`

	Outcome    string   `json:"outcome" gorm:"size:20;not null"` // passed/failed/pending
	TreadDepth *float64 `json:"tread_depth" gorm:"type:decimal(5,2)"` // mm，nil表示未测量
	Pressure   *float64 `json:"pressure" gorm:"type:decimal(6,1)"`    // kPa

	OdometerReading *float64 `json:"odometer_reading" gorm:"type:decimal(12,1)"`

	Issues    string `json:"issues" gorm:"type:text"`
	ReportURL string `json:"report_url" gorm:"size:500"`

	CreatedAt time.Time `json:"created_at"`

	// 关联（只读）
	Unit *Unit `json:"unit,omitempty" gorm:"foreignKey:UnitID"`
}

func (Inspection) TableName() string {
	return "fleet_inspections"
}

// 检查结论
const (
	InspectionOutcomePassed  = "passed"
	InspectionOutcomeFailed  = "failed"
	InspectionOutcomePending = "pending"
)

// ValidInspectionOutcome 校验检查结论取值
func ValidInspectionOutcome(outcome string) bool {
	switch outcome {
	case InspectionOutcomePassed, InspectionOutcomeFailed, InspectionOutcomePending:
		return true
	}
	return false
}
