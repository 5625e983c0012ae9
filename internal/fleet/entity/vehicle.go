package entity

import "time"

// Vehicle 车辆
type Vehicle struct {
	ID       string `json:"id" gorm:"primaryKey;size:32"`
	PlateNo  string `json:"plate_no" gorm:"size:32;uniqueIndex;not null"`
	Category string `json:"category" gorm:"size:30"` // tractor/rigid/trailer/bus
	Model    string `json:"model" gorm:"size:100"`

	// 轮位布局，如 ["steer-left","steer-right","drive-1-left-outer",...]
	AxlePositions StringArray `json:"axle_positions" gorm:"type:jsonb"`

	CurrentOdometer float64 `json:"current_odometer" gorm:"type:decimal(12,1);default:0"` // km
	Status          string  `json:"status" gorm:"size:20;default:active"` // active/maintenance/retired

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (Vehicle) TableName() string {
	return "fleet_vehicles"
}

// 车辆状态
const (
	VehicleStatusActive      = "active"
	VehicleStatusMaintenance = "maintenance"
	VehicleStatusRetired     = "retired"
)

// ValidVehicleStatus 校验车辆状态取值
func ValidVehicleStatus(status string) bool {
	switch status {
	case VehicleStatusActive, VehicleStatusMaintenance, VehicleStatusRetired:
		return true
	}
	return false
}
