package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/invoica/backend/internal/models"
	"github.com/invoica/backend/pkg/response"
)

// RequireRole returns a middleware that allows only the given roles.
func RequireRole(roles ...string) gin.HandlerFunc {
	allowed := make(map[string]struct{})
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		s, ok := CurrentSession(c)
		if !ok {
			response.Unauthorized(c, "missing session")
			c.Abort()
			return
		}
		if _, ok := allowed[s.Role]; !ok {
			response.Forbidden(c, "insufficient permissions")
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequirePlan rejects sessions whose organization is on a lower plan than min.
// Superadmins pass regardless of plan.
func RequirePlan(min models.SubscriptionPlan) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := CurrentSession(c)
		if !ok {
			response.Unauthorized(c, "missing session")
			c.Abort()
			return
		}
		if !s.IsSuperadmin() && s.SubscriptionPlan.Rank() < min.Rank() {
			response.Forbidden(c, "upgrade to "+string(min)+" to use this feature")
			c.Abort()
			return
		}
		c.Next()
	}
}
