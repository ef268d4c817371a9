package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/invoica/backend/internal/models"
	"github.com/invoica/backend/pkg/utils"
)

// Login failure messages shown to users.
const (
	MsgFieldsRequired  = "All fields are required."
	MsgOrgNotFound     = "Organization not found."
	MsgInvalidEmployee = "Invalid employee email."
	MsgInvalidUsername = "Invalid username credentials."
	MsgInvalidPassword = "Invalid password."
)

const (
	redirectSuperadmin  = "/superadmin"
	redirectHome        = "/"
	redirectAfterLogout = "/login"
)

// ErrNotFound is returned by a Store when no row matches.
var ErrNotFound = errors.New("not found")

// Store looks up the records a login is resolved against.
type Store interface {
	// FindOrganization returns the oldest organization whose name or
	// subdomain contains ident, case-insensitively.
	FindOrganization(ctx context.Context, ident string) (*models.Organization, error)
	FindUser(ctx context.Context, orgID uuid.UUID, username string) (*models.User, error)
	FindStaffByEmail(ctx context.Context, orgID uuid.UUID, email string) (*models.Staff, error)
	UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error
}

// LayoutInvalidator drops cached navigation for an organization.
type LayoutInvalidator interface {
	Invalidate(ctx context.Context, orgID uuid.UUID) error
}

// Credentials is a login attempt.
type Credentials struct {
	Organization string `json:"organization" form:"organization"`
	Username     string `json:"username" form:"username"`
	Password     string `json:"password" form:"password"`
	IsEmployee   bool   `json:"isEmployee" form:"isEmployee"`
}

// Result is the outcome of a login. Exactly one of Session and Error is set.
type Result struct {
	Session  *models.Session `json:"session,omitempty"`
	Redirect string          `json:"redirect,omitempty"`
	Error    string          `json:"error,omitempty"`
}

// OK reports whether the login succeeded.
func (r Result) OK() bool { return r.Session != nil }

func failure(msg string) Result { return Result{Error: msg} }

// Resolver turns credentials into a session.
type Resolver struct {
	store          Store
	layout         LayoutInvalidator
	legacyEmployee string
	logger         *zap.Logger
}

// NewResolver creates a resolver. legacyEmployeePassword is accepted for staff
// without a stored credential; empty disables it. layout may be nil.
func NewResolver(store Store, layout LayoutInvalidator, legacyEmployeePassword string, logger *zap.Logger) *Resolver {
	return &Resolver{store: store, layout: layout, legacyEmployee: legacyEmployeePassword, logger: logger}
}

// Login resolves cred. Wrong input yields a failed Result; error is reserved
// for backend failures.
func (r *Resolver) Login(ctx context.Context, cred Credentials) (Result, error) {
	cred.Organization = strings.TrimSpace(cred.Organization)
	cred.Username = strings.TrimSpace(cred.Username)
	if cred.Organization == "" || cred.Username == "" || cred.Password == "" {
		return failure(MsgFieldsRequired), nil
	}

	org, err := r.store.FindOrganization(ctx, cred.Organization)
	if errors.Is(err, ErrNotFound) {
		return failure(MsgOrgNotFound), nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("find organization: %w", err)
	}

	var (
		session *models.Session
		res     Result
	)
	if cred.IsEmployee {
		session, res, err = r.employee(ctx, org, cred)
	} else {
		session, res, err = r.admin(ctx, org, cred)
	}
	if err != nil || session == nil {
		return res, err
	}

	if r.layout != nil {
		if err := r.layout.Invalidate(ctx, org.ID); err != nil {
			r.logger.Warn("invalidate layout cache", zap.String("organization_id", org.ID.String()), zap.Error(err))
		}
	}
	r.logger.Info("login", zap.String("organization_id", org.ID.String()), zap.String("role", session.Role), zap.Bool("employee", session.IsEmployee))
	return Result{Session: session, Redirect: RedirectFor(*session)}, nil
}

func (r *Resolver) employee(ctx context.Context, org *models.Organization, cred Credentials) (*models.Session, Result, error) {
	staff, err := r.store.FindStaffByEmail(ctx, org.ID, cred.Username)
	if errors.Is(err, ErrNotFound) {
		return nil, failure(MsgInvalidEmployee), nil
	}
	if err != nil {
		return nil, Result{}, fmt.Errorf("find staff: %w", err)
	}

	ok := false
	if staff.PasswordHash != nil && *staff.PasswordHash != "" {
		ok = utils.CheckPassword(cred.Password, *staff.PasswordHash)
	} else if r.legacyEmployee != "" {
		ok, _ = utils.VerifyPassword(cred.Password, r.legacyEmployee)
	}
	if !ok {
		return nil, failure(MsgInvalidPassword), nil
	}

	var picture *string
	if staff.AvatarURL != "" {
		p := staff.AvatarURL
		picture = &p
	}
	return &models.Session{
		UserID:           staff.ID,
		OrgID:            org.ID,
		Role:             models.RoleEmployee,
		Username:         staff.Email,
		FullName:         staff.FullName,
		OrgName:          org.Name,
		ProfilePicture:   picture,
		SubscriptionPlan: org.SubscriptionPlan,
		ModuleType:       org.ModuleType,
		IsEmployee:       true,
	}, Result{}, nil
}

func (r *Resolver) admin(ctx context.Context, org *models.Organization, cred Credentials) (*models.Session, Result, error) {
	user, err := r.store.FindUser(ctx, org.ID, cred.Username)
	if errors.Is(err, ErrNotFound) {
		return nil, failure(MsgInvalidUsername), nil
	}
	if err != nil {
		return nil, Result{}, fmt.Errorf("find user: %w", err)
	}

	ok, rehash := utils.VerifyPassword(cred.Password, user.PasswordHash)
	if !ok {
		return nil, failure(MsgInvalidPassword), nil
	}
	if rehash {
		r.upgradeHash(ctx, user.ID, cred.Password)
	}

	return &models.Session{
		UserID:           user.ID,
		OrgID:            org.ID,
		Role:             user.Role,
		Username:         user.Username,
		FullName:         user.FullName,
		OrgName:          org.Name,
		ProfilePicture:   user.ProfilePicture,
		SubscriptionPlan: org.SubscriptionPlan,
		ModuleType:       org.ModuleType,
		IsEmployee:       false,
	}, Result{}, nil
}

func (r *Resolver) upgradeHash(ctx context.Context, userID uuid.UUID, password string) {
	hash, err := utils.HashPassword(password)
	if err == nil {
		err = r.store.UpdatePasswordHash(ctx, userID, hash)
	}
	if err != nil {
		r.logger.Warn("rehash legacy password", zap.String("user_id", userID.String()), zap.Error(err))
	}
}

// RedirectFor returns where a freshly logged-in session lands.
func RedirectFor(s models.Session) string {
	if s.IsSuperadmin() {
		return redirectSuperadmin
	}
	return redirectHome
}
