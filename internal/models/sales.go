package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

// Customer is a buyer or client of the tenant.
type Customer struct {
	TenantModel
	Name    string `gorm:"not null" json:"name" binding:"required"`
	Email   string `json:"email"`
	Phone   string `json:"phone"`
	Address string `json:"address"`
}

func (Customer) TableName() string { return "customers" }

// InvoiceLine is one line of a sales invoice.
type InvoiceLine struct {
	Description string  `json:"description"`
	Quantity    float64 `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// SalesInvoice is an outgoing invoice.
type SalesInvoice struct {
	TenantModel
	CustomerID  *uuid.UUID                       `gorm:"type:uuid" json:"customer_id"`
	UnitID      *uuid.UUID                       `gorm:"type:uuid" json:"unit_id"`
	Number      string                           `json:"number"`
	IssueDate   string                           `json:"issue_date"`
	DueDate     string                           `json:"due_date"`
	Items       datatypes.JSONSlice[InvoiceLine] `gorm:"type:jsonb" json:"items"`
	TotalAmount float64                          `json:"total_amount"`
	PaidAmount  float64                          `json:"paid_amount"`
	Status      string                           `gorm:"not null;default:Draft" json:"status"`
}

func (SalesInvoice) TableName() string { return "sales_invoices" }

const (
	ChequeIn      = "In"
	ChequeOut     = "Out"
	ChequePending = "Pending"
	ChequeCleared = "Cleared"
	ChequeBounced = "Bounced"
)

// Cheque is an inward (customer) or outward (supplier) cheque.
type Cheque struct {
	TenantModel
	Number     string  `gorm:"not null" json:"number" binding:"required"`
	Amount     float64 `json:"amount"`
	Type       string  `gorm:"not null" json:"type" binding:"omitempty,oneof=In Out"`
	Entity     string  `json:"entity"`
	Purpose    string  `json:"purpose"`
	ReceivedAt string  `json:"received_at"`
	DueAt      string  `json:"due_at"`
	Status     string  `gorm:"not null;default:Pending" json:"status"`
}

func (Cheque) TableName() string { return "cheques" }
