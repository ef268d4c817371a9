package tenantdata

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/invoica/backend/internal/changefeed"
	"github.com/invoica/backend/internal/models"
)

// State is the load state of a Collection.
type State string

const (
	StateIdle    State = "idle"
	StateLoading State = "loading"
	StateReady   State = "ready"
	StateError   State = "error"
)

// Snapshot is a point-in-time copy of a collection.
type Snapshot[T any] struct {
	Table          string    `json:"table"`
	OrganizationID uuid.UUID `json:"organization_id"`
	State          State     `json:"state"`
	Rows           []T       `json:"rows"`
	Error          string    `json:"error,omitempty"`
}

// Option configures a Collection.
type Option func(*options)

type options struct {
	feed   changefeed.Feed
	logger *zap.Logger
}

// WithFeed enables live updates and change announcements through feed.
func WithFeed(feed changefeed.Feed) Option {
	return func(o *options) { o.feed = feed }
}

// WithLogger sets the logger used for background failures.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.logger = l }
}

// Collection is the set of rows of one table visible to one organization.
// It keeps the last fetched rows, the load state and the last error, and can
// follow the (table, tenant) change channel to stay current.
type Collection[T any, PT interface {
	*T
	models.Entity
}] struct {
	table  string
	source Source[T]
	feed   changefeed.Feed
	logger *zap.Logger

	mu        sync.Mutex
	tenant    uuid.UUID
	rows      []T
	state     State
	err       error
	issued    uint64 // last fetch generation handed out
	applied   uint64 // generation of the rows currently held
	live      *subscription
	liveCtx   context.Context
	nextSub   uint64
	listeners []func(Snapshot[T])
	closed    bool
}

type subscription struct {
	id     uint64
	cancel func()
}

// New creates a collection of T scoped to orgID. A nil orgID yields an empty,
// read-only collection.
func New[T any, PT interface {
	*T
	models.Entity
}](source Source[T], orgID uuid.UUID, opts ...Option) *Collection[T, PT] {
	o := options{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(&o)
	}
	var zero T
	return &Collection[T, PT]{
		table:  PT(&zero).TableName(),
		source: source,
		feed:   o.feed,
		logger: o.logger,
		tenant: orgID,
		state:  StateIdle,
	}
}

// Table returns the table name of T.
func (c *Collection[T, PT]) Table() string { return c.table }

// Tenant returns the organization the collection is scoped to.
func (c *Collection[T, PT]) Tenant() uuid.UUID {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tenant
}

// Err returns the last recorded error, if any.
func (c *Collection[T, PT]) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Snapshot returns a copy of the current state.
func (c *Collection[T, PT]) Snapshot() Snapshot[T] {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// OnChange registers fn to receive a snapshot after every state change.
func (c *Collection[T, PT]) OnChange(fn func(Snapshot[T])) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.listeners = append(c.listeners, fn)
}

// Fetch reloads the tenant's rows, newest first. Without a tenant it returns
// no rows and no error. On failure the previous rows are kept and the error is
// recorded as well as returned.
func (c *Collection[T, PT]) Fetch(ctx context.Context) ([]T, error) {
	c.mu.Lock()
	tenant := c.tenant
	if tenant == uuid.Nil {
		c.rows, c.err, c.state = nil, nil, StateReady
		snap := c.snapshotLocked()
		c.mu.Unlock()
		c.emit(snap)
		return nil, nil
	}
	c.issued++
	gen := c.issued
	c.state = StateLoading
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)

	rows, err := c.source.List(ctx, tenant)

	c.mu.Lock()
	if gen <= c.applied {
		// a newer fetch or a rescope already landed
		c.mu.Unlock()
		return rows, err
	}
	c.applied = gen
	if err != nil {
		c.err, c.state = err, StateError
		snap = c.snapshotLocked()
		c.mu.Unlock()
		c.logger.Warn("fetch failed", zap.String("table", c.table), zap.String("organization_id", tenant.String()), zap.Error(err))
		c.emit(snap)
		return nil, err
	}
	c.rows = ownedBy[T, PT](rows, tenant)
	c.err = nil
	if gen == c.issued {
		c.state = StateReady
	}
	out := append([]T(nil), c.rows...)
	snap = c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
	return out, nil
}

// Upsert writes row for the collection's tenant, inserting it when it has no
// id. The organization id is always forced to the scope tenant. The returned
// row is the stored one, as seen by the refetch that follows the write.
func (c *Collection[T, PT]) Upsert(ctx context.Context, row *T) (*T, error) {
	tenant, err := c.writeTenant()
	if err != nil {
		return nil, err
	}
	p := PT(row)
	p.SetTenant(tenant)
	if p.GetID() == uuid.Nil {
		p.SetID(uuid.New())
	}
	if err := c.source.Upsert(ctx, tenant, row); err != nil {
		c.fail(err)
		return nil, err
	}
	id := p.GetID()
	rows := c.afterWrite(ctx, changefeed.OpUpsert, id)
	for i := range rows {
		if PT(&rows[i]).GetID() == id {
			return &rows[i], nil
		}
	}
	return row, nil
}

// Patch changes the named columns of one row.
func (c *Collection[T, PT]) Patch(ctx context.Context, id uuid.UUID, fields map[string]any) (*T, error) {
	tenant, err := c.writeTenant()
	if err != nil {
		return nil, err
	}
	row, err := c.source.Patch(ctx, tenant, id, fields)
	if err != nil {
		c.fail(err)
		return nil, err
	}
	c.afterWrite(ctx, changefeed.OpUpdate, id)
	return row, nil
}

// Remove deletes one row of the tenant. Ids of other tenants are never touched.
func (c *Collection[T, PT]) Remove(ctx context.Context, id uuid.UUID) error {
	tenant, err := c.writeTenant()
	if err != nil {
		return err
	}
	if err := c.source.Delete(ctx, tenant, id); err != nil {
		c.fail(err)
		return err
	}
	c.afterWrite(ctx, changefeed.OpDelete, id)
	return nil
}

// Subscribe follows the (table, tenant) change channel and refetches on every
// event. The subscription ends when stop is called, ctx is done, the collection
// is closed or rescoped to another tenant. Without a feed or tenant it is a no-op.
func (c *Collection[T, PT]) Subscribe(ctx context.Context) (stop func(), err error) {
	c.mu.Lock()
	if c.live != nil {
		s := c.live
		c.mu.Unlock()
		return c.stopFunc(s.id), nil
	}
	tenant, closed := c.tenant, c.closed
	c.mu.Unlock()
	if c.feed == nil || tenant == uuid.Nil || closed {
		return func() {}, nil
	}

	cancel, err := c.feed.Subscribe(ctx, c.table, tenant, func(changefeed.Event) {
		if _, err := c.Fetch(ctx); err != nil && !errors.Is(err, context.Canceled) {
			c.logger.Debug("refetch after change failed", zap.String("table", c.table), zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.live != nil || c.closed || c.tenant != tenant {
		c.mu.Unlock()
		cancel()
		return c.Subscribe(ctx)
	}
	c.nextSub++
	c.live = &subscription{id: c.nextSub, cancel: cancel}
	c.liveCtx = ctx
	id := c.nextSub
	c.mu.Unlock()
	stop = c.stopFunc(id)
	context.AfterFunc(ctx, stop)
	return stop, nil
}

// Mount subscribes and performs the initial fetch.
func (c *Collection[T, PT]) Mount(ctx context.Context) (stop func(), err error) {
	stop, err = c.Subscribe(ctx)
	if err != nil {
		return nil, err
	}
	if _, err := c.Fetch(ctx); err != nil {
		c.logger.Debug("initial fetch failed", zap.String("table", c.table), zap.Error(err))
	}
	return stop, nil
}

// Rescope points the collection at another organization. Held rows are
// dropped, in-flight fetches are discarded, and a live subscription moves to
// the new tenant's channel.
func (c *Collection[T, PT]) Rescope(orgID uuid.UUID) error {
	c.mu.Lock()
	if orgID == c.tenant {
		c.mu.Unlock()
		return nil
	}
	live, liveCtx := c.live, c.liveCtx
	c.live, c.liveCtx = nil, nil
	c.tenant = orgID
	c.rows, c.err, c.state = nil, nil, StateIdle
	c.applied = c.issued
	snap := c.snapshotLocked()
	c.mu.Unlock()

	if live != nil {
		live.cancel()
	}
	c.emit(snap)
	if live == nil || liveCtx.Err() != nil {
		return nil
	}
	_, err := c.Mount(liveCtx)
	return err
}

// Close ends any live subscription and stops change notifications.
func (c *Collection[T, PT]) Close() {
	c.mu.Lock()
	live := c.live
	c.live, c.liveCtx = nil, nil
	c.closed = true
	c.listeners = nil
	c.mu.Unlock()
	if live != nil {
		live.cancel()
	}
}

// Live reports whether a change subscription is active.
func (c *Collection[T, PT]) Live() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live != nil
}

func (c *Collection[T, PT]) stopFunc(id uint64) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			live := c.live
			if live == nil || live.id != id {
				c.mu.Unlock()
				return
			}
			c.live, c.liveCtx = nil, nil
			c.mu.Unlock()
			live.cancel()
		})
	}
}

func (c *Collection[T, PT]) writeTenant() (uuid.UUID, error) {
	tenant := c.Tenant()
	if tenant == uuid.Nil {
		c.fail(ErrMissingTenant)
		return uuid.Nil, ErrMissingTenant
	}
	return tenant, nil
}

func (c *Collection[T, PT]) fail(err error) {
	c.mu.Lock()
	c.err = err
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.emit(snap)
}

// afterWrite announces the change and refetches. It returns the refetched
// rows, or nil when the refresh failed.
func (c *Collection[T, PT]) afterWrite(ctx context.Context, op changefeed.Op, id uuid.UUID) []T {
	tenant := c.Tenant()
	if c.feed != nil {
		ev := changefeed.Event{Table: c.table, OrganizationID: tenant, Op: op, ID: id, At: time.Now().Unix()}
		if err := c.feed.Publish(ctx, ev); err != nil {
			c.logger.Warn("publish change event", zap.String("table", c.table), zap.Error(err))
		}
	}
	// the write succeeded; a failed refresh is recorded in the state
	rows, _ := c.Fetch(ctx)
	return rows
}

func (c *Collection[T, PT]) snapshotLocked() Snapshot[T] {
	s := Snapshot[T]{
		Table:          c.table,
		OrganizationID: c.tenant,
		State:          c.state,
		Rows:           append([]T{}, c.rows...),
	}
	if c.err != nil {
		s.Error = c.err.Error()
	}
	return s
}

func (c *Collection[T, PT]) emit(s Snapshot[T]) {
	c.mu.Lock()
	listeners := append([]func(Snapshot[T]){}, c.listeners...)
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}

// ownedBy drops rows belonging to other tenants.
func ownedBy[T any, PT interface {
	*T
	models.Entity
}](rows []T, tenant uuid.UUID) []T {
	out := rows[:0:0]
	for i := range rows {
		if PT(&rows[i]).Tenant() == tenant {
			out = append(out, rows[i])
		}
	}
	return out
}
