package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Requisition 请购单
type Requisition struct {
	ID     string `json:"id" gorm:"primaryKey;size:32"`
	Code   string `json:"code" gorm:"size:32;uniqueIndex;not null"` // REQ-{year}-{seq}
	Title  string `json:"title" gorm:"size:200"`
	Status string `json:"status" gorm:"size:20;default:draft"` // draft/pending/approved/rejected/closed

	// 来源：人工创建或库存告警建议
	SourceAlertID *string `json:"source_alert_id" gorm:"size:32"`

	RequestedBy string     `json:"requested_by" gorm:"size:32"`
	SubmittedAt *time.Time `json:"submitted_at"`
	ReviewedBy  *string    `json:"reviewed_by" gorm:"size:32"` // 审批人，通过与驳回均记录
	ReviewedAt  *time.Time `json:"reviewed_at"`
	ClosedAt    *time.Time `json:"closed_at"`

	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(15,2)"`
	Notes       string          `json:"notes" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// 关联
	Items []RequisitionItem `json:"items,omitempty" gorm:"foreignKey:RequisitionID"`
}

func (Requisition) TableName() string {
	return "proc_requisitions"
}

// 请购单状态
const (
	RequisitionStatusDraft    = "draft"
	RequisitionStatusPending  = "pending"
	RequisitionStatusApproved = "approved"
	RequisitionStatusRejected = "rejected"
	RequisitionStatusClosed   = "closed"
)

// requisitionTransitions 合法的请购单状态迁移。rejected与closed为终态
var requisitionTransitions = map[string][]string{
	RequisitionStatusDraft:    {RequisitionStatusPending},
	RequisitionStatusPending:  {RequisitionStatusApproved, RequisitionStatusRejected},
	RequisitionStatusApproved: {RequisitionStatusClosed},
}

// CanTransitionRequisition 判断请购单状态迁移是否合法
func CanTransitionRequisition(from, to string) bool {
	for _, t := range requisitionTransitions[from] {
		if t == to {
			return true
		}
	}
	return false
}

// RequisitionItem 请购单行项
type RequisitionItem struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	RequisitionID string `json:"requisition_id" gorm:"size:32;not null;index"`

	SKUCode string `json:"sku_code" gorm:"size:50;not null"`
	// SKU快照字段，下单后不随主数据变化
	Brand string `json:"brand" gorm:"size:100"`
	Model string `json:"model" gorm:"size:100"`
	Size  string `json:"size" gorm:"size:50"`

	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitCost    decimal.Decimal `json:"unit_cost" gorm:"type:decimal(15,2)"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(15,2)"`

	SortOrder int       `json:"sort_order" gorm:"default:0"`
	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (RequisitionItem) TableName() string {
	return "proc_requisition_items"
}
