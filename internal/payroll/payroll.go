package payroll

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/invoica/backend/internal/middleware"
	"github.com/invoica/backend/internal/models"
	"github.com/invoica/backend/internal/resources"
	"github.com/invoica/backend/internal/tenantdata"
	"github.com/invoica/backend/pkg/response"
)

const (
	// SalaryCategory is the expense category of salary payments.
	SalaryCategory = "Salaries"
	// ExpenseApproved is the status of booked salary payments.
	ExpenseApproved = "Approved"
)

// ErrInvalidAmount means a negative day count or penalty.
var ErrInvalidAmount = errors.New("amount must not be negative")

// Service runs salary payments and penalties.
type Service struct {
	registry *resources.Registry
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a payroll service.
func NewService(registry *resources.Registry, logger *zap.Logger) *Service {
	return &Service{registry: registry, logger: logger, now: time.Now}
}

// Amount returns the salary due to a staff member. Monthly staff receive
// their base salary minus accumulated penalties; daily staff receive their
// daily rate times the days worked, minus penalties.
func Amount(s models.Staff, days int) float64 {
	if s.EmploymentType == models.EmploymentDaily {
		return s.DailyRate*float64(days) - s.Penalties
	}
	return s.BaseSalary - s.Penalties
}

func (s *Service) staff(ctx context.Context, orgID, staffID uuid.UUID) (*tenantdata.Collection[models.Staff, *models.Staff], *models.Staff, error) {
	if orgID == uuid.Nil {
		return nil, nil, tenantdata.ErrMissingTenant
	}
	c, err := resources.Collection[models.Staff](s.registry, orgID)
	if err != nil {
		return nil, nil, err
	}
	rows, err := c.Fetch(ctx)
	if err != nil {
		return nil, nil, err
	}
	for i := range rows {
		if rows[i].ID == staffID {
			return c, &rows[i], nil
		}
	}
	return nil, nil, tenantdata.ErrNotFound
}

// PaySalary books the salary as an approved expense, then clears the staff
// member's penalties and vacations. The two writes are not atomic.
func (s *Service) PaySalary(ctx context.Context, orgID, staffID uuid.UUID, days int) (*models.Expense, error) {
	if days < 0 {
		return nil, ErrInvalidAmount
	}
	staff, member, err := s.staff(ctx, orgID, staffID)
	if err != nil {
		return nil, err
	}
	expenses, err := resources.Collection[models.Expense](s.registry, orgID)
	if err != nil {
		return nil, err
	}
	description := fmt.Sprintf("Salary payment: %s", member.FullName)
	if member.EmploymentType == models.EmploymentDaily {
		description += fmt.Sprintf(" (days worked: %d)", days)
	}
	expense, err := expenses.Upsert(ctx, &models.Expense{
		ProjectID:   member.ProjectID,
		Date:        s.now().Format(time.DateOnly),
		Amount:      Amount(*member, days),
		Category:    SalaryCategory,
		Description: description,
		Status:      ExpenseApproved,
	})
	if err != nil {
		return nil, err
	}
	if _, err := staff.Patch(ctx, staffID, map[string]any{"penalties": 0, "vacations": 0}); err != nil {
		return nil, fmt.Errorf("reset penalties: %w", err)
	}
	s.logger.Info("salary paid", zap.String("organization_id", orgID.String()), zap.String("staff_id", staffID.String()), zap.Float64("amount", expense.Amount))
	return expense, nil
}

// AddPenalty adds amount to the staff member's accumulated penalties.
func (s *Service) AddPenalty(ctx context.Context, orgID, staffID uuid.UUID, amount float64) (*models.Staff, error) {
	if amount < 0 {
		return nil, ErrInvalidAmount
	}
	staff, member, err := s.staff(ctx, orgID, staffID)
	if err != nil {
		return nil, err
	}
	return staff.Patch(ctx, staffID, map[string]any{"penalties": member.Penalties + amount})
}

type payRequest struct {
	Days int `json:"days" binding:"gte=0"`
}

type penaltyRequest struct {
	Amount float64 `json:"amount" binding:"required,gt=0"`
}

// Register mounts the payroll routes.
func (s *Service) Register(r gin.IRouter) {
	r.POST("/payroll/staff/:id/pay", s.Pay)
	r.POST("/payroll/staff/:id/penalties", s.Penalty)
}

// Pay handles POST /payroll/staff/:id/pay.
func (s *Service) Pay(c *gin.Context) {
	sess, _ := middleware.CurrentSession(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	var req payRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	expense, err := s.PaySalary(c.Request.Context(), sess.OrgID, id, req.Days)
	if err != nil {
		s.fail(c, err)
		return
	}
	response.Created(c, expense)
}

// Penalty handles POST /payroll/staff/:id/penalties.
func (s *Service) Penalty(c *gin.Context) {
	sess, _ := middleware.CurrentSession(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	var req penaltyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	staff, err := s.AddPenalty(c.Request.Context(), sess.OrgID, id, req.Amount)
	if err != nil {
		s.fail(c, err)
		return
	}
	response.OK(c, staff)
}

func (s *Service) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, tenantdata.ErrNotFound):
		response.NotFound(c, "staff member not found")
	case errors.Is(err, tenantdata.ErrMissingTenant), errors.Is(err, ErrInvalidAmount):
		response.BadRequest(c, err.Error())
	default:
		s.logger.Error("payroll request failed", zap.Error(err))
		response.Internal(c, "payroll request failed")
	}
}
