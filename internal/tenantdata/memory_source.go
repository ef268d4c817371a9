package tenantdata

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/invoica/backend/internal/models"
)

// MemorySource is an in-memory Source for development and testing.
// Rows are deep-copied on the way in and out.
type MemorySource[T any, PT interface {
	*T
	models.Entity
}] struct {
	mu   sync.RWMutex
	rows map[uuid.UUID]T
	cols columns
	now  func() time.Time
}

// NewMemorySource creates an empty in-memory source.
func NewMemorySource[T any, PT interface {
	*T
	models.Entity
}]() *MemorySource[T, PT] {
	cols, err := columnsOf[T]()
	if err != nil {
		panic(err)
	}
	return &MemorySource[T, PT]{rows: make(map[uuid.UUID]T), cols: cols, now: time.Now}
}

func (s *MemorySource[T, PT]) List(_ context.Context, orgID uuid.UUID) ([]T, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]T, 0, len(s.rows))
	for _, r := range s.rows {
		if PT(&r).Tenant() != orgID {
			continue
		}
		out = append(out, clone(r))
	}
	sort.SliceStable(out, func(i, j int) bool {
		return PT(&out[i]).Created().After(PT(&out[j]).Created())
	})
	return out, nil
}

func (s *MemorySource[T, PT]) Upsert(_ context.Context, orgID uuid.UUID, row *T) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := PT(row)
	p.SetTenant(orgID)
	if p.GetID() == uuid.Nil {
		p.SetID(uuid.New())
	}
	now := s.now().UTC()
	stored := clone(*row)
	sp := PT(&stored)
	if existing, ok := s.rows[p.GetID()]; ok {
		ep := PT(&existing)
		if ep.Tenant() != orgID {
			return ErrNotFound
		}
		sp.SetCreated(ep.Created())
	}
	sp.Touch(now)
	s.rows[sp.GetID()] = stored
	*row = clone(stored)
	return nil
}

func (s *MemorySource[T, PT]) Patch(_ context.Context, orgID, id uuid.UUID, fields map[string]any) (*T, error) {
	if _, err := s.cols.check(fields); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rows[id]
	if !ok || PT(&existing).Tenant() != orgID {
		return nil, ErrNotFound
	}
	row := clone(existing)
	if err := overlay(&row, fields); err != nil {
		return nil, err
	}
	PT(&row).Touch(s.now().UTC())
	s.rows[id] = row
	out := clone(row)
	return &out, nil
}

func (s *MemorySource[T, PT]) Delete(_ context.Context, orgID, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.rows[id]
	if !ok || PT(&existing).Tenant() != orgID {
		return ErrNotFound
	}
	delete(s.rows, id)
	return nil
}

func clone[T any](v T) T {
	b, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out T
	if err := json.Unmarshal(b, &out); err != nil {
		return v
	}
	return out
}
