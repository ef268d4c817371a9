package dashboard

import (
	"context"
	"math"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/invoica/backend/internal/middleware"
	"github.com/invoica/backend/internal/models"
	"github.com/invoica/backend/internal/resources"
	"github.com/invoica/backend/pkg/response"
)

// ProjectProgress is the sales progress of one project.
type ProjectProgress struct {
	ProjectID uuid.UUID `json:"project_id"`
	Name      string    `json:"name"`
	Units     int       `json:"units"`
	Sold      int       `json:"sold"`
	Progress  int       `json:"progress"`
}

// Summary holds the dashboard KPIs of one organization.
type Summary struct {
	TotalUnits       int               `json:"total_units"`
	OccupiedUnits    int               `json:"occupied_units"`
	Occupancy        int               `json:"occupancy"`
	PortfolioValue   float64           `json:"portfolio_value"`
	Projects         []ProjectProgress `json:"projects"`
	TotalExpenses    float64           `json:"total_expenses"`
	PendingChequeIn  float64           `json:"pending_cheque_in"`
	PendingChequeOut float64           `json:"pending_cheque_out"`
}

// Compute derives the KPIs from the tenant's rows.
func Compute(units []models.Unit, projects []models.Project, expenses []models.Expense, cheques []models.Cheque) Summary {
	s := Summary{TotalUnits: len(units), Projects: []ProjectProgress{}}
	perProject := make(map[uuid.UUID]*ProjectProgress, len(projects))
	for _, p := range projects {
		s.Projects = append(s.Projects, ProjectProgress{ProjectID: p.ID, Name: p.Name})
	}
	for i := range s.Projects {
		perProject[s.Projects[i].ProjectID] = &s.Projects[i]
	}

	for _, u := range units {
		s.PortfolioValue += u.Price
		// installment plans count toward project progress only
		if u.Status == models.UnitSold || u.Status == models.UnitOccupied {
			s.OccupiedUnits++
		}
		if u.ProjectID == nil {
			continue
		}
		p, ok := perProject[*u.ProjectID]
		if !ok {
			continue
		}
		p.Units++
		if u.Status == models.UnitSold || u.Status == models.UnitInstallments {
			p.Sold++
		}
	}
	s.Occupancy = percent(s.OccupiedUnits, s.TotalUnits)
	for i := range s.Projects {
		s.Projects[i].Progress = percent(s.Projects[i].Sold, s.Projects[i].Units)
	}

	for _, e := range expenses {
		s.TotalExpenses += e.Amount
	}
	for _, c := range cheques {
		if c.Status != models.ChequePending {
			continue
		}
		switch c.Type {
		case models.ChequeIn:
			s.PendingChequeIn += c.Amount
		case models.ChequeOut:
			s.PendingChequeOut += c.Amount
		}
	}
	return s
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) * 100 / float64(total)))
}

// Service loads dashboard data through tenant collections.
type Service struct {
	registry *resources.Registry
	logger   *zap.Logger
}

// NewService creates a dashboard service.
func NewService(registry *resources.Registry, logger *zap.Logger) *Service {
	return &Service{registry: registry, logger: logger}
}

// Summary loads and computes the KPIs of orgID.
func (s *Service) Summary(ctx context.Context, orgID uuid.UUID) (Summary, error) {
	units, err := fetch[models.Unit](ctx, s.registry, orgID)
	if err != nil {
		return Summary{}, err
	}
	projects, err := fetch[models.Project](ctx, s.registry, orgID)
	if err != nil {
		return Summary{}, err
	}
	expenses, err := fetch[models.Expense](ctx, s.registry, orgID)
	if err != nil {
		return Summary{}, err
	}
	cheques, err := fetch[models.Cheque](ctx, s.registry, orgID)
	if err != nil {
		return Summary{}, err
	}
	return Compute(units, projects, expenses, cheques), nil
}

func fetch[T any, PT interface {
	*T
	models.Entity
}](ctx context.Context, reg *resources.Registry, orgID uuid.UUID) ([]T, error) {
	c, err := resources.Collection[T, PT](reg, orgID)
	if err != nil {
		return nil, err
	}
	return c.Fetch(ctx)
}

// Handle serves GET /dashboard.
func (s *Service) Handle(c *gin.Context) {
	sess, _ := middleware.CurrentSession(c)
	sum, err := s.Summary(c.Request.Context(), sess.OrgID)
	if err != nil {
		s.logger.Error("dashboard summary", zap.String("organization_id", sess.OrgID.String()), zap.Error(err))
		response.Internal(c, "failed to load dashboard")
		return
	}
	response.OK(c, sum)
}
