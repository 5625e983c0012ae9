package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 车队仓库集合
type Repositories struct {
	SKU         *SKURepository
	Vehicle     *VehicleRepository
	Unit        *UnitRepository
	Assignment  *AssignmentRepository
	Inspection  *InspectionRepository
	Alert       *AlertRepository
	ActivityLog *ActivityLogRepository
}

// NewRepositories 创建车队仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		SKU:         NewSKURepository(db),
		Vehicle:     NewVehicleRepository(db),
		Unit:        NewUnitRepository(db),
		Assignment:  NewAssignmentRepository(db),
		Inspection:  NewInspectionRepository(db),
		Alert:       NewAlertRepository(db),
		ActivityLog: NewActivityLogRepository(db),
	}
}
