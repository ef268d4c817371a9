package tenantdata

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"gorm.io/gorm/schema"

	"github.com/invoica/backend/internal/models"
)

// Source is the backend storage of one tenant table. Every call is constrained
// to a single organization.
type Source[T any] interface {
	// List returns the tenant's rows, newest first.
	List(ctx context.Context, orgID uuid.UUID) ([]T, error)
	// Upsert inserts row or updates it by id. A row owned by another
	// tenant is left untouched and ErrNotFound is returned.
	Upsert(ctx context.Context, orgID uuid.UUID, row *T) error
	// Patch changes the given columns of one row and returns the result.
	Patch(ctx context.Context, orgID, id uuid.UUID, fields map[string]any) (*T, error)
	// Delete removes one row; ErrNotFound if the tenant has no such row.
	Delete(ctx context.Context, orgID, id uuid.UUID) error
}

var schemaCache = &sync.Map{}

// columns lists the writable columns of an entity.
type columns struct {
	// upsert are assigned on conflict: everything writable except the protected columns.
	upsert []string
	// patchable may be named by a partial update.
	patchable map[string]struct{}
}

func columnsOf[T any]() (columns, error) {
	s, err := schema.Parse(new(T), schemaCache, schema.NamingStrategy{})
	if err != nil {
		return columns{}, fmt.Errorf("parse schema: %w", err)
	}
	cols := columns{patchable: make(map[string]struct{})}
	for _, f := range s.Fields {
		if f.DBName == "" || !f.Creatable || !f.Updatable {
			continue
		}
		if _, protected := models.ProtectedColumns[f.DBName]; protected {
			continue
		}
		cols.upsert = append(cols.upsert, f.DBName)
		if f.DBName != "updated_at" {
			cols.patchable[f.DBName] = struct{}{}
		}
	}
	return cols, nil
}

func (c columns) check(fields map[string]any) ([]string, error) {
	names := make([]string, 0, len(fields))
	for k := range fields {
		if _, ok := c.patchable[k]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownColumn, k)
		}
		names = append(names, k)
	}
	return names, nil
}
