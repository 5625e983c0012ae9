package entity

import "time"

// Assignment 装配台账记录。一条记录是某单体在某车辆某轮位上的一段装配区间，
// RemovedAt为空表示区间仍开放。记录只关闭不删除，保留完整装配历史
type Assignment struct {
	ID        string `json:"id" gorm:"primaryKey;size:32"`
	UnitID    string `json:"unit_id" gorm:"size:32;not null;index"`
	VehicleID string `json:"vehicle_id" gorm:"size:32;not null;index:idx_assignment_slot"`
	Position  string `json:"position" gorm:"size:50;not null;index:idx_assignment_slot"`

	AssignedOdometer float64   `json:"assigned_odometer" gorm:"type:decimal(12,1);not null"`
	AssignedAt       time.Time `json:"assigned_at" gorm:"not null"`
	AssignedBy       string    `json:"assigned_by" gorm:"size:32"`

	RemovedOdometer *float64   `json:"removed_odometer" gorm:"type:decimal(12,1)"`
	RemovedAt       *time.Time `json:"removed_at"`
	RemovedBy       string     `json:"removed_by" gorm:"size:32"`
	RemovalReason   string     `json:"removal_reason" gorm:"size:50"` // rotation/wear/damage/inspection_failed/scrap

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联（只读）
	Unit    *Unit    `json:"unit,omitempty" gorm:"foreignKey:UnitID"`
	Vehicle *Vehicle `json:"vehicle,omitempty" gorm:"foreignKey:VehicleID"`
}

func (Assignment) TableName() string {
	return "fleet_assignments"
}

// 拆卸原因
const (
	RemovalReasonRotation         = "rotation"
	RemovalReasonWear             = "wear"
	RemovalReasonDamage           = "damage"
	RemovalReasonInspectionFailed = "inspection_failed"
	RemovalReasonScrap            = "scrap"
)

// Open 装配区间是否仍开放
func (a *Assignment) Open() bool {
	return a.RemovedAt == nil
}

// Distance 本段装配行驶里程，未关闭时为0
func (a *Assignment) Distance() float64 {
	if a.RemovedOdometer == nil {
		return 0
	}
	return *a.RemovedOdometer - a.AssignedOdometer
}
