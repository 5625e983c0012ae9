package repository

import (
	"errors"

	"gorm.io/gorm"
)

var (
	ErrNotFound = errors.New("record not found")
)

// Repositories 采购仓库集合
type Repositories struct {
	Requisition *RequisitionRepository
	PO          *PORepository
}

// NewRepositories 创建采购仓库集合
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		Requisition: NewRequisitionRepository(db),
		PO:          NewPORepository(db),
	}
}
