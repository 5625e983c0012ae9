package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// PurchaseOrder 采购订单，由已审批的请购单生成
type PurchaseOrder struct {
	ID            string `json:"id" gorm:"primaryKey;size:32"`
	Code          string `json:"code" gorm:"size:32;uniqueIndex;not null"` // PO-{year}-{seq}
	RequisitionID string `json:"requisition_id" gorm:"size:32;not null;index"`

	SupplierName string `json:"supplier_name" gorm:"size:200"`
	Status       string `json:"status" gorm:"size:20;default:created"` // created/sent/acknowledged/delivered/closed

	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(15,2)"`
	Currency    string          `json:"currency" gorm:"size:10;default:CNY"`

	ExpectedDate *time.Time `json:"expected_date"`
	SentAt       *time.Time `json:"sent_at"`
	DeliveredAt  *time.Time `json:"delivered_at"`
	ClosedAt     *time.Time `json:"closed_at"`

	CreatedBy string    `json:"created_by" gorm:"size:32"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Notes     string    `json:"notes" gorm:"type:text"`

	// 关联
	Items       []POItem     `json:"items,omitempty" gorm:"foreignKey:POID"`
	Requisition *Requisition `json:"requisition,omitempty" gorm:"foreignKey:RequisitionID"`
}

func (PurchaseOrder) TableName() string {
	return "proc_purchase_orders"
}

// PO状态，只允许按顺序逐级推进
const (
	POStatusCreated      = "created"
	POStatusSent         = "sent"
	POStatusAcknowledged = "acknowledged"
	POStatusDelivered    = "delivered"
	POStatusClosed       = "closed"
)

// poStatusOrder PO状态推进顺序
var poStatusOrder = []string{
	POStatusCreated,
	POStatusSent,
	POStatusAcknowledged,
	POStatusDelivered,
	POStatusClosed,
}

// POStatusRank 返回状态在推进序列中的位置，未知状态返回-1
func POStatusRank(status string) int {
	for i, s := range poStatusOrder {
		if s == status {
			return i
		}
	}
	return -1
}

// CanAdvancePO 判断PO是否允许从from推进到to（仅允许相邻前进一步）
func CanAdvancePO(from, to string) bool {
	fi, ti := POStatusRank(from), POStatusRank(to)
	return fi >= 0 && ti >= 0 && ti == fi+1
}

// POItem 采购订单行项，自请购单行项快照
type POItem struct {
	ID                string  `json:"id" gorm:"primaryKey;size:32"`
	POID              string  `json:"po_id" gorm:"size:32;not null;index"`
	RequisitionItemID *string `json:"requisition_item_id" gorm:"size:32"`

	SKUCode string `json:"sku_code" gorm:"size:50;not null"`
	Brand   string `json:"brand" gorm:"size:100"`
	Model   string `json:"model" gorm:"size:100"`
	Size    string `json:"size" gorm:"size:50"`

	Quantity    int             `json:"quantity" gorm:"not null"`
	UnitCost    decimal.Decimal `json:"unit_cost" gorm:"type:decimal(15,2)"`
	TotalAmount decimal.Decimal `json:"total_amount" gorm:"type:decimal(15,2)"`

	SortOrder int       `json:"sort_order" gorm:"default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (POItem) TableName() string {
	return "proc_po_items"
}
