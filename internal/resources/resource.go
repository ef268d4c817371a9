package resources

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/gin-gonic/gin/binding"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/invoica/backend/internal/changefeed"
	"github.com/invoica/backend/internal/models"
	"github.com/invoica/backend/internal/tenantdata"
)

// Resource exposes one tenant table without its row type.
type Resource interface {
	Table() string
	// Feature is the navigation key that gates access by plan.
	Feature() string
	List(ctx context.Context, orgID uuid.UUID) (any, error)
	Upsert(ctx context.Context, orgID uuid.UUID, body []byte) (any, error)
	Patch(ctx context.Context, orgID, id uuid.UUID, fields map[string]any) (any, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) error
	// Watch mounts a live collection and calls fn with every snapshot until stop.
	Watch(ctx context.Context, orgID uuid.UUID, fn func(snapshot any)) (stop func(), err error)
}

// ValidationError wraps a rejected request body.
type ValidationError struct{ Err error }

func (e *ValidationError) Error() string { return e.Err.Error() }
func (e *ValidationError) Unwrap() error { return e.Err }

type resource[T any, PT interface {
	*T
	models.Entity
}] struct {
	feature string
	source  tenantdata.Source[T]
	feed    changefeed.Feed
	logger  *zap.Logger
	table   string
}

func (r *resource[T, PT]) collection(orgID uuid.UUID) *tenantdata.Collection[T, PT] {
	opts := []tenantdata.Option{tenantdata.WithLogger(r.logger)}
	if r.feed != nil {
		opts = append(opts, tenantdata.WithFeed(r.feed))
	}
	return tenantdata.New[T, PT](r.source, orgID, opts...)
}

func (r *resource[T, PT]) Table() string   { return r.table }
func (r *resource[T, PT]) Feature() string { return r.feature }

func (r *resource[T, PT]) List(ctx context.Context, orgID uuid.UUID) (any, error) {
	rows, err := r.collection(orgID).Fetch(ctx)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []T{}
	}
	return rows, nil
}

func (r *resource[T, PT]) Upsert(ctx context.Context, orgID uuid.UUID, body []byte) (any, error) {
	var row T
	if err := json.Unmarshal(body, &row); err != nil {
		return nil, &ValidationError{Err: fmt.Errorf("invalid body: %w", err)}
	}
	if err := binding.Validator.ValidateStruct(&row); err != nil {
		return nil, &ValidationError{Err: err}
	}
	return r.collection(orgID).Upsert(ctx, &row)
}

func (r *resource[T, PT]) Patch(ctx context.Context, orgID, id uuid.UUID, fields map[string]any) (any, error) {
	return r.collection(orgID).Patch(ctx, id, fields)
}

func (r *resource[T, PT]) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	return r.collection(orgID).Remove(ctx, id)
}

func (r *resource[T, PT]) Watch(ctx context.Context, orgID uuid.UUID, fn func(snapshot any)) (func(), error) {
	c := r.collection(orgID)
	c.OnChange(func(s tenantdata.Snapshot[T]) {
		if s.State == tenantdata.StateLoading {
			return
		}
		fn(s)
	})
	if _, err := c.Mount(ctx); err != nil {
		c.Close()
		return nil, err
	}
	return c.Close, nil
}

// Registry maps table names to resources.
type Registry struct {
	byTable map[string]Resource
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byTable: make(map[string]Resource)}
}

// Get returns the resource for table.
func (r *Registry) Get(table string) (Resource, bool) {
	res, ok := r.byTable[table]
	return res, ok
}

// Tables returns the registered table names, sorted.
func (r *Registry) Tables() []string {
	out := make([]string, 0, len(r.byTable))
	for t := range r.byTable {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Add registers source as the backing store of T's table.
func Add[T any, PT interface {
	*T
	models.Entity
}](reg *Registry, source tenantdata.Source[T], feature string, feed changefeed.Feed, logger *zap.Logger) {
	var zero T
	table := PT(&zero).TableName()
	reg.byTable[table] = &resource[T, PT]{feature: feature, source: source, feed: feed, logger: logger, table: table}
}

// ErrUnregistered means no resource is registered for the row type.
var ErrUnregistered = errors.New("table not registered")

// Collection returns a typed collection of T scoped to orgID, backed by the
// registered source of T's table.
func Collection[T any, PT interface {
	*T
	models.Entity
}](reg *Registry, orgID uuid.UUID) (*tenantdata.Collection[T, PT], error) {
	var zero T
	table := PT(&zero).TableName()
	res, ok := reg.byTable[table].(*resource[T, PT])
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnregistered, table)
	}
	return res.collection(orgID), nil
}
