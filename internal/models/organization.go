package models

import (
	"time"

	"github.com/google/uuid"
)

// SubscriptionPlan gates which features a tenant sees.
type SubscriptionPlan string

const (
	PlanSilver   SubscriptionPlan = "Silver"
	PlanGold     SubscriptionPlan = "Gold"
	PlanPlatinum SubscriptionPlan = "Platinum"
)

// Rank orders plans from lowest to highest; unknown plans rank as Silver.
func (p SubscriptionPlan) Rank() int {
	switch p {
	case PlanPlatinum:
		return 3
	case PlanGold:
		return 2
	default:
		return 1
	}
}

// ModuleType changes terminology and which entities apply to a tenant.
type ModuleType string

const (
	ModuleRealEstate       ModuleType = "Real Estate"
	ModuleServiceMarketing ModuleType = "Service & Marketing"
)

// Organization represents a tenant.
type Organization struct {
	ID                 uuid.UUID        `json:"id"`
	Name               string           `json:"name"`
	Subdomain          string           `json:"subdomain"`
	SubscriptionPlan   SubscriptionPlan `json:"subscription_plan"`
	ModuleType         ModuleType       `json:"module_type"`
	SubscriptionStatus string           `json:"subscription_status"`
	CreatedAt          time.Time        `json:"created_at"`
	UpdatedAt          time.Time        `json:"updated_at"`
}

const (
	StatusActive    = "Active"
	StatusSuspended = "Suspended"
)
