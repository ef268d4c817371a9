package models

import "github.com/google/uuid"

// Session identifies the authenticated tenant, user and role for a request.
// It is built once at login and carried in the session cookie.
type Session struct {
	UserID           uuid.UUID        `json:"userId"`
	OrgID            uuid.UUID        `json:"orgId"`
	Role             string           `json:"role"`
	Username         string           `json:"username"`
	FullName         string           `json:"fullName"`
	OrgName          string           `json:"orgName"`
	ProfilePicture   *string          `json:"profilePicture"`
	SubscriptionPlan SubscriptionPlan `json:"subscriptionPlan"`
	ModuleType       ModuleType       `json:"moduleType"`
	IsEmployee       bool             `json:"isEmployee"`
}

// IsSuperadmin reports whether the session belongs to a platform operator.
func (s Session) IsSuperadmin() bool { return s.Role == RoleSuperadmin }
