package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	RoleSuperadmin = "Superadmin"
	RoleAdmin      = "Admin"
	RoleEmployee   = "Employee"
)

// User is an admin credential holder scoped to one organization.
type User struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Username       string    `json:"username"`
	PasswordHash   string    `json:"-"`
	Role           string    `json:"role"`
	FullName       string    `json:"full_name"`
	ProfilePicture *string   `json:"profile_picture"`
	CreatedAt      time.Time `json:"created_at"`
}

// UserPublic is User without sensitive fields for API responses.
type UserPublic struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	Username       string    `json:"username"`
	Role           string    `json:"role"`
	FullName       string    `json:"full_name"`
	CreatedAt      time.Time `json:"created_at"`
}

// ToPublic converts User to UserPublic.
func (u *User) ToPublic() UserPublic {
	return UserPublic{
		ID:             u.ID,
		OrganizationID: u.OrganizationID,
		Username:       u.Username,
		Role:           u.Role,
		FullName:       u.FullName,
		CreatedAt:      u.CreatedAt,
	}
}
