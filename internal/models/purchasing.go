package models

import "github.com/google/uuid"

// Supplier provides materials or services.
type Supplier struct {
	TenantModel
	Name          string `gorm:"not null" json:"name" binding:"required"`
	ContactPerson string `json:"contact_person"`
	Email         string `json:"email"`
	Phone         string `json:"phone"`
	Category      string `json:"category"`
}

func (Supplier) TableName() string { return "suppliers" }

// Purchase is a purchase request or order.
type Purchase struct {
	TenantModel
	SupplierID  *uuid.UUID `gorm:"type:uuid" json:"supplier_id"`
	Type        string     `json:"type"`
	TotalAmount float64    `json:"total_amount"`
	Status      string     `gorm:"not null;default:Pending" json:"status"`
}

func (Purchase) TableName() string { return "purchases" }

const (
	QuotationPending  = "Pending"
	QuotationAccepted = "Accepted"
	QuotationRejected = "Rejected"
)

// PurchaseQuotation is a supplier's answer to a request for quotation.
type PurchaseQuotation struct {
	TenantModel
	RFQID      *uuid.UUID `gorm:"column:rfq_id;type:uuid" json:"rfq_id"`
	SupplierID *uuid.UUID `gorm:"type:uuid" json:"supplier_id"`
	Amount     float64    `json:"amount"`
	ValidUntil string     `json:"valid_until"`
	Notes      string     `json:"notes"`
	Status     string     `gorm:"not null;default:Pending" json:"status"`
}

func (PurchaseQuotation) TableName() string { return "purchase_quotations" }
