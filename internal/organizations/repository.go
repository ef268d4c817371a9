package organizations

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/invoica/backend/internal/models"
)

var (
	// ErrNotFound means no organization has the given id.
	ErrNotFound = errors.New("organization not found")
	// ErrDuplicate means the subdomain is taken.
	ErrDuplicate = errors.New("an organization with this subdomain already exists")
)

// Repository handles organization persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an organizations repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const orgColumns = `id, name, subdomain, subscription_plan, module_type, subscription_status, created_at, updated_at`

func scanOrg(row pgx.Row) (*models.Organization, error) {
	var o models.Organization
	err := row.Scan(&o.ID, &o.Name, &o.Subdomain, &o.SubscriptionPlan, &o.ModuleType, &o.SubscriptionStatus, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// List returns every organization, newest first.
func (r *Repository) List(ctx context.Context) ([]models.Organization, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orgColumns+` FROM organizations ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []models.Organization
	for rows.Next() {
		o, err := scanOrg(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *o)
	}
	return out, rows.Err()
}

// Create inserts the organization and its admin user in one transaction.
func (r *Repository) Create(ctx context.Context, org *models.Organization, admin *models.User) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	const qOrg = `INSERT INTO organizations (name, subdomain, subscription_plan, module_type, subscription_status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at, updated_at`
	err = tx.QueryRow(ctx, qOrg, org.Name, org.Subdomain, org.SubscriptionPlan, org.ModuleType, org.SubscriptionStatus).
		Scan(&org.ID, &org.CreatedAt, &org.UpdatedAt)
	if err != nil {
		return mapError(err)
	}

	admin.OrganizationID = org.ID
	const qUser = `INSERT INTO users (organization_id, username, password_hash, role, full_name)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`
	err = tx.QueryRow(ctx, qUser, admin.OrganizationID, admin.Username, admin.PasswordHash, admin.Role, admin.FullName).
		Scan(&admin.ID, &admin.CreatedAt)
	if err != nil {
		return fmt.Errorf("create admin user: %w", mapError(err))
	}
	return tx.Commit(ctx)
}

// Update changes the editable fields of an organization.
func (r *Repository) Update(ctx context.Context, org *models.Organization) error {
	const q = `UPDATE organizations
		SET name = $2, subdomain = $3, subscription_plan = $4, module_type = $5, subscription_status = $6, updated_at = NOW()
		WHERE id = $1
		RETURNING ` + orgColumns
	o, err := scanOrg(r.pool.QueryRow(ctx, q, org.ID, org.Name, org.Subdomain, org.SubscriptionPlan, org.ModuleType, org.SubscriptionStatus))
	if err != nil {
		return mapError(err)
	}
	*org = *o
	return nil
}

// Get returns one organization.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Organization, error) {
	o, err := scanOrg(r.pool.QueryRow(ctx, `SELECT `+orgColumns+` FROM organizations WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return o, nil
}

func mapError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return ErrDuplicate
	}
	return err
}
