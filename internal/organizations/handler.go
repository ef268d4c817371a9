package organizations

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/invoica/backend/internal/models"
	"github.com/invoica/backend/pkg/response"
	"github.com/invoica/backend/pkg/utils"
)

// Subdomain must be lowercase alphanumeric and hyphens only, 2–64 chars.
var subdomainRegex = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{1,63}$`)

// DefaultAdminUsername is the login of the admin created with every organization.
const DefaultAdminUsername = "admin"

// Store persists organizations.
type Store interface {
	List(ctx context.Context) ([]models.Organization, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Organization, error)
	Create(ctx context.Context, org *models.Organization, admin *models.User) error
	Update(ctx context.Context, org *models.Organization) error
}

// LayoutInvalidator drops cached navigation of an organization.
type LayoutInvalidator interface {
	Invalidate(ctx context.Context, orgID uuid.UUID) error
}

// Handler handles superadmin organization endpoints.
type Handler struct {
	store         Store
	layout        LayoutInvalidator
	adminPassword string
	logger        *zap.Logger
}

// NewHandler creates an organizations handler. adminPassword is the initial
// password of each new organization's admin user.
func NewHandler(store Store, layout LayoutInvalidator, adminPassword string, logger *zap.Logger) *Handler {
	return &Handler{store: store, layout: layout, adminPassword: adminPassword, logger: logger}
}

// Register mounts the routes. r must only admit superadmins.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/organizations", h.List)
	r.POST("/organizations", h.Create)
	r.PATCH("/organizations/:id", h.Update)
}

// CreateOrganizationRequest is the body for POST /organizations.
type CreateOrganizationRequest struct {
	Name             string                  `json:"name" binding:"required"`
	Subdomain        string                  `json:"subdomain" binding:"required"`
	SubscriptionPlan models.SubscriptionPlan `json:"subscription_plan" binding:"omitempty,oneof=Silver Gold Platinum"`
	ModuleType       models.ModuleType       `json:"module_type" binding:"omitempty,oneof='Real Estate' 'Service & Marketing'"`
}

// UpdateOrganizationRequest is the body for PATCH /organizations/:id.
type UpdateOrganizationRequest struct {
	Name               *string                  `json:"name"`
	Subdomain          *string                  `json:"subdomain"`
	SubscriptionPlan   *models.SubscriptionPlan `json:"subscription_plan" binding:"omitempty,oneof=Silver Gold Platinum"`
	ModuleType         *models.ModuleType       `json:"module_type" binding:"omitempty,oneof='Real Estate' 'Service & Marketing'"`
	SubscriptionStatus *string                  `json:"subscription_status" binding:"omitempty,oneof=Active Suspended"`
}

// List handles GET /organizations.
func (h *Handler) List(c *gin.Context) {
	orgs, err := h.store.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list organizations", zap.Error(err))
		response.Internal(c, "failed to load organizations")
		return
	}
	if orgs == nil {
		orgs = []models.Organization{}
	}
	response.OK(c, orgs)
}

// Create handles POST /organizations. The organization starts Active with an
// "admin" user holding the configured initial password.
func (h *Handler) Create(c *gin.Context) {
	var body CreateOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	org := &models.Organization{
		Name:               strings.TrimSpace(body.Name),
		Subdomain:          strings.ToLower(strings.TrimSpace(body.Subdomain)),
		SubscriptionPlan:   body.SubscriptionPlan,
		ModuleType:         body.ModuleType,
		SubscriptionStatus: models.StatusActive,
	}
	if org.SubscriptionPlan == "" {
		org.SubscriptionPlan = models.PlanSilver
	}
	if org.ModuleType == "" {
		org.ModuleType = models.ModuleRealEstate
	}
	if msg := validate(org); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	hash, err := utils.HashPassword(h.adminPassword)
	if err != nil {
		response.Internal(c, "failed to create organization")
		return
	}
	admin := &models.User{Username: DefaultAdminUsername, PasswordHash: hash, Role: models.RoleAdmin, FullName: org.Name + " Admin"}
	if err := h.store.Create(c.Request.Context(), org, admin); err != nil {
		h.fail(c, err)
		return
	}
	h.logger.Info("organization created", zap.String("organization_id", org.ID.String()), zap.String("subdomain", org.Subdomain))
	response.Created(c, gin.H{"organization": org, "admin": admin.ToPublic()})
}

// Update handles PATCH /organizations/:id and invalidates the cached layout.
func (h *Handler) Update(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid organization id")
		return
	}
	var body UpdateOrganizationRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	org, err := h.store.Get(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	if body.Name != nil {
		org.Name = strings.TrimSpace(*body.Name)
	}
	if body.Subdomain != nil {
		org.Subdomain = strings.ToLower(strings.TrimSpace(*body.Subdomain))
	}
	if body.SubscriptionPlan != nil {
		org.SubscriptionPlan = *body.SubscriptionPlan
	}
	if body.ModuleType != nil {
		org.ModuleType = *body.ModuleType
	}
	if body.SubscriptionStatus != nil {
		org.SubscriptionStatus = *body.SubscriptionStatus
	}
	if msg := validate(org); msg != "" {
		response.BadRequest(c, msg)
		return
	}
	if err := h.store.Update(c.Request.Context(), org); err != nil {
		h.fail(c, err)
		return
	}
	if err := h.layout.Invalidate(c.Request.Context(), org.ID); err != nil {
		h.logger.Warn("invalidate layout", zap.String("organization_id", org.ID.String()), zap.Error(err))
	}
	response.OK(c, org)
}

func validate(org *models.Organization) string {
	if !subdomainRegex.MatchString(org.Subdomain) {
		return "subdomain must be 2–64 chars, lowercase letters, numbers, hyphens only"
	}
	if len(org.Name) < 1 || len(org.Name) > 255 {
		return "name must be 1–255 characters"
	}
	return ""
}

func (h *Handler) fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "Organization not found")
	case errors.Is(err, ErrDuplicate):
		response.Conflict(c, ErrDuplicate.Error())
	default:
		h.logger.Error("organization request failed", zap.Error(err))
		response.Internal(c, "organization request failed")
	}
}
