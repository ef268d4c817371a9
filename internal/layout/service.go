package layout

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/invoica/backend/internal/middleware"
	"github.com/invoica/backend/internal/models"
	"github.com/invoica/backend/pkg/response"
)

// Service serves navigation, building it on cache misses.
type Service struct {
	cache  Cache
	logger *zap.Logger
}

// NewService creates a layout service.
func NewService(cache Cache, logger *zap.Logger) *Service {
	return &Service{cache: cache, logger: logger}
}

// For returns the navigation of s. Cache failures fall back to building it.
func (s *Service) For(ctx context.Context, sess models.Session) Navigation {
	if nav, err := s.cache.Get(ctx, sess.OrgID, sess.Role); err != nil {
		s.logger.Warn("layout cache read", zap.Error(err))
	} else if nav != nil && nav.SubscriptionPlan == sess.SubscriptionPlan && nav.ModuleType == sess.ModuleType {
		return *nav
	}
	nav := Build(sess)
	if err := s.cache.Set(ctx, sess.OrgID, nav); err != nil {
		s.logger.Warn("layout cache write", zap.Error(err))
	}
	return nav
}

// Invalidate drops every cached navigation of the organization.
func (s *Service) Invalidate(ctx context.Context, orgID uuid.UUID) error {
	return s.cache.Invalidate(ctx, orgID)
}

// Handle serves GET /layout.
func (s *Service) Handle(c *gin.Context) {
	sess, ok := middleware.CurrentSession(c)
	if !ok {
		response.Unauthorized(c, "not signed in")
		return
	}
	response.OK(c, s.For(c.Request.Context(), sess))
}
