package models

import "github.com/google/uuid"

// Expense is an outgoing payment booked against the tenant.
type Expense struct {
	TenantModel
	ProjectID   *uuid.UUID `gorm:"type:uuid" json:"project_id"`
	Date        string     `json:"date"`
	Amount      float64    `json:"amount"`
	Category    string     `json:"category"`
	Description string     `json:"description"`
	Status      string     `gorm:"not null;default:Pending" json:"status"`
}

func (Expense) TableName() string { return "expenses" }

const (
	AssetInUse       = "In Use"
	AssetMaintenance = "Maintenance"
	AssetRetired     = "Retired"
)

// Asset is a fixed asset tracked by the tenant.
type Asset struct {
	TenantModel
	Name               string     `gorm:"not null" json:"name" binding:"required"`
	SerialNumber       string     `json:"serial_number"`
	Description        string     `json:"description"`
	Value              float64    `json:"value"`
	Status             string     `gorm:"not null;default:'In Use'" json:"status"`
	AssignedToEmployee *uuid.UUID `gorm:"type:uuid" json:"assigned_to_employee"`
}

func (Asset) TableName() string { return "assets" }
