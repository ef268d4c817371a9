package tenantdata

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/invoica/backend/internal/models"
)

// GormSource stores one tenant table in PostgreSQL through gorm.
type GormSource[T any, PT interface {
	*T
	models.Entity
}] struct {
	db    *gorm.DB
	table string
	cols  columns
}

// NewGormSource creates a source for T's table.
func NewGormSource[T any, PT interface {
	*T
	models.Entity
}](db *gorm.DB) (*GormSource[T, PT], error) {
	cols, err := columnsOf[T]()
	if err != nil {
		return nil, err
	}
	var zero T
	return &GormSource[T, PT]{db: db, table: PT(&zero).TableName(), cols: cols}, nil
}

func (s *GormSource[T, PT]) List(ctx context.Context, orgID uuid.UUID) ([]T, error) {
	var rows []T
	err := s.db.WithContext(ctx).
		Where("organization_id = ?", orgID).
		Order("created_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, mapPostgresError(err)
	}
	return rows, nil
}

func (s *GormSource[T, PT]) Upsert(ctx context.Context, orgID uuid.UUID, row *T) error {
	p := PT(row)
	p.SetTenant(orgID)
	if p.GetID() == uuid.Nil {
		p.SetID(uuid.New())
	}
	p.Touch(time.Now().UTC())

	res := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(s.cols.upsert),
		// an id owned by another tenant must not be taken over
		Where: clause.Where{Exprs: []clause.Expression{clause.Expr{
			SQL:  "?.organization_id = excluded.organization_id",
			Vars: []any{clause.Table{Name: s.table}},
		}}},
	}, clause.Returning{}).Create(row)
	if res.Error != nil {
		return mapPostgresError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormSource[T, PT]) Patch(ctx context.Context, orgID, id uuid.UUID, fields map[string]any) (*T, error) {
	names, err := s.cols.check(fields)
	if err != nil {
		return nil, err
	}

	var row T
	err = s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, orgID).
		First(&row).Error
	if err != nil {
		return nil, mapPostgresError(err)
	}
	if err := overlay(&row, fields); err != nil {
		return nil, err
	}
	p := PT(&row)
	p.SetID(id)
	p.SetTenant(orgID)
	p.Touch(time.Now().UTC())

	res := s.db.WithContext(ctx).
		Model(&row).
		Where("organization_id = ?", orgID).
		Select(append(names, "updated_at")).
		Updates(&row)
	if res.Error != nil {
		return nil, mapPostgresError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrNotFound
	}
	return &row, nil
}

func (s *GormSource[T, PT]) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	res := s.db.WithContext(ctx).
		Where("id = ? AND organization_id = ?", id, orgID).
		Delete(new(T))
	if res.Error != nil {
		return mapPostgresError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// overlay writes JSON-shaped field values onto row.
func overlay[T any](row *T, fields map[string]any) error {
	b, err := json.Marshal(fields)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	if err := json.Unmarshal(b, row); err != nil {
		return fmt.Errorf("invalid field value: %w", err)
	}
	return nil
}
