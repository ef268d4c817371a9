package models

import (
	"time"

	"github.com/google/uuid"
)

// TenantModel holds the columns shared by every tenant-owned row.
type TenantModel struct {
	ID             uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	OrganizationID uuid.UUID `gorm:"type:uuid;not null;index" json:"organization_id"`
	CreatedAt      time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

// Entity is implemented by pointers to tenant-owned record types.
type Entity interface {
	TableName() string
	GetID() uuid.UUID
	SetID(id uuid.UUID)
	Tenant() uuid.UUID
	SetTenant(orgID uuid.UUID)
	Created() time.Time
	SetCreated(t time.Time)
	Touch(now time.Time)
}

func (m *TenantModel) GetID() uuid.UUID { return m.ID }

func (m *TenantModel) SetID(id uuid.UUID) { m.ID = id }

func (m *TenantModel) Tenant() uuid.UUID { return m.OrganizationID }

func (m *TenantModel) SetTenant(id uuid.UUID) { m.OrganizationID = id }

func (m *TenantModel) Created() time.Time { return m.CreatedAt }

func (m *TenantModel) SetCreated(t time.Time) { m.CreatedAt = t }

// Touch stamps UpdatedAt and, for new rows, CreatedAt.
func (m *TenantModel) Touch(now time.Time) {
	if m.CreatedAt.IsZero() {
		m.CreatedAt = now
	}
	m.UpdatedAt = now
}

// ProtectedColumns can never be changed by a partial update.
var ProtectedColumns = map[string]struct{}{
	"id":              {},
	"organization_id": {},
	"created_at":      {},
}
