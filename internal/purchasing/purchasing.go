package purchasing

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/invoica/backend/internal/middleware"
	"github.com/invoica/backend/internal/models"
	"github.com/invoica/backend/internal/resources"
	"github.com/invoica/backend/internal/tenantdata"
	"github.com/invoica/backend/pkg/response"
)

// Service runs the quotation approval workflow.
type Service struct {
	registry *resources.Registry
	logger   *zap.Logger
}

// NewService creates a purchasing service.
func NewService(registry *resources.Registry, logger *zap.Logger) *Service {
	return &Service{registry: registry, logger: logger}
}

// ApproveQuotation accepts one quotation and rejects every other quotation
// answering the same request. The updates are independent writes: a failure
// part way leaves the earlier ones in place.
func (s *Service) ApproveQuotation(ctx context.Context, orgID, id uuid.UUID) (*models.PurchaseQuotation, error) {
	quotes, err := resources.Collection[models.PurchaseQuotation](s.registry, orgID)
	if err != nil {
		return nil, err
	}
	rows, err := quotes.Fetch(ctx)
	if err != nil {
		return nil, err
	}
	var target *models.PurchaseQuotation
	for i := range rows {
		if rows[i].ID == id {
			target = &rows[i]
			break
		}
	}
	if target == nil {
		return nil, tenantdata.ErrNotFound
	}

	accepted, err := quotes.Patch(ctx, id, map[string]any{"status": models.QuotationAccepted})
	if err != nil {
		return nil, err
	}
	if target.RFQID == nil {
		return accepted, nil
	}
	for _, q := range rows {
		if q.ID == id || q.RFQID == nil || *q.RFQID != *target.RFQID || q.Status == models.QuotationRejected {
			continue
		}
		if _, err := quotes.Patch(ctx, q.ID, map[string]any{"status": models.QuotationRejected}); err != nil {
			return nil, err
		}
	}
	s.logger.Info("quotation approved", zap.String("organization_id", orgID.String()), zap.String("quotation_id", id.String()))
	return accepted, nil
}

// Register mounts the purchasing routes.
func (s *Service) Register(r gin.IRouter) {
	r.POST("/purchasing/quotations/:id/approve", s.Approve)
}

// Approve handles POST /purchasing/quotations/:id/approve.
func (s *Service) Approve(c *gin.Context) {
	sess, _ := middleware.CurrentSession(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	q, err := s.ApproveQuotation(c.Request.Context(), sess.OrgID, id)
	switch {
	case errors.Is(err, tenantdata.ErrNotFound):
		response.NotFound(c, "quotation not found")
	case errors.Is(err, tenantdata.ErrMissingTenant):
		response.BadRequest(c, err.Error())
	case err != nil:
		s.logger.Error("approve quotation", zap.String("quotation_id", id.String()), zap.Error(err))
		response.Internal(c, "failed to approve quotation")
	default:
		response.OK(c, q)
	}
}
