package models

import (
	"github.com/google/uuid"
	"gorm.io/datatypes"
)

const (
	UnitAvailable    = "Available"
	UnitSold         = "Sold"
	UnitInstallments = "Installments"
	UnitOccupied     = "Occupied"
)

// Project groups units (Real Estate) or client work (Service & Marketing).
type Project struct {
	TenantModel
	Name        string  `gorm:"not null" json:"name" binding:"required"`
	Location    string  `json:"location"`
	Description string  `json:"description"`
	TotalUnits  int     `json:"total_units"`
	Revenue     float64 `json:"revenue"`
}

func (Project) TableName() string { return "projects" }

// Unit is a sellable or rentable property unit.
type Unit struct {
	TenantModel
	ProjectID     *uuid.UUID                  `gorm:"type:uuid" json:"project_id"`
	Name          string                      `gorm:"not null" json:"name" binding:"required"`
	Type          string                      `json:"type"`
	Price         float64                     `json:"price"`
	PricePerMeter float64                     `json:"price_per_meter"`
	Rooms         int                         `json:"rooms"`
	IsFinished    bool                        `json:"is_finished"`
	Facilities    datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"facilities"`
	Photos        datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"photos"`
	Status        string                      `gorm:"not null;default:Available" json:"status"`
	Consumer      string                      `json:"consumer"`
	PaidAmount    float64                     `json:"paid_amount"`
	Salesperson   string                      `json:"salesperson"`
	Commission    float64                     `json:"commission"`
}

func (Unit) TableName() string { return "units" }
