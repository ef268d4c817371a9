package auth

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invoica/backend/internal/models"
)

// Repository reads login records from PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// FindOrganization matches ident against organization name or subdomain.
func (r *Repository) FindOrganization(ctx context.Context, ident string) (*models.Organization, error) {
	const q = `SELECT id, name, subdomain, subscription_plan, module_type, subscription_status, created_at, updated_at
		FROM organizations
		WHERE name ILIKE $1 ESCAPE '\' OR subdomain ILIKE $1 ESCAPE '\'
		ORDER BY created_at
		LIMIT 1`
	var o models.Organization
	err := r.pool.QueryRow(ctx, q, containsPattern(ident)).Scan(&o.ID, &o.Name, &o.Subdomain,
		&o.SubscriptionPlan, &o.ModuleType, &o.SubscriptionStatus, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &o, nil
}

// FindUser returns the admin user with username in the organization.
func (r *Repository) FindUser(ctx context.Context, orgID uuid.UUID, username string) (*models.User, error) {
	const q = `SELECT id, organization_id, username, password_hash, role, full_name, profile_picture, created_at
		FROM users WHERE organization_id = $1 AND username = $2`
	var u models.User
	err := r.pool.QueryRow(ctx, q, orgID, username).Scan(&u.ID, &u.OrganizationID, &u.Username,
		&u.PasswordHash, &u.Role, &u.FullName, &u.ProfilePicture, &u.CreatedAt)
	if err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

// FindStaffByEmail returns the staff member with email in the organization.
func (r *Repository) FindStaffByEmail(ctx context.Context, orgID uuid.UUID, email string) (*models.Staff, error) {
	const q = `SELECT id, organization_id, full_name, email, avatar_url, password_hash
		FROM staff WHERE organization_id = $1 AND email = $2
		ORDER BY created_at
		LIMIT 1`
	var s models.Staff
	err := r.pool.QueryRow(ctx, q, orgID, email).Scan(&s.ID, &s.OrganizationID, &s.FullName,
		&s.Email, &s.AvatarURL, &s.PasswordHash)
	if err != nil {
		return nil, notFound(err)
	}
	return &s, nil
}

// UpdatePasswordHash replaces a user's stored credential.
func (r *Repository) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	_, err := r.pool.Exec(ctx, `UPDATE users SET password_hash = $2 WHERE id = $1`, userID, hash)
	return err
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds an ILIKE pattern matching s anywhere, with wildcards in s taken literally.
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}
