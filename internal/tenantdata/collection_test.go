package tenantdata

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/invoica/backend/internal/changefeed"
	"github.com/invoica/backend/internal/models"
)

func newUnits(t *testing.T, org uuid.UUID, opts ...Option) (*Collection[models.Unit, *models.Unit], *MemorySource[models.Unit, *models.Unit]) {
	t.Helper()
	src := NewMemorySource[models.Unit]()
	return New[models.Unit](src, org, opts...), src
}

func TestCollection_FetchWithoutTenant(t *testing.T) {
	c, _ := newUnits(t, uuid.Nil)

	rows, err := c.Fetch(context.Background())
	require.NoError(t, err)
	require.Empty(t, rows)
	require.Equal(t, StateReady, c.Snapshot().State)
}

func TestCollection_WritesWithoutTenant(t *testing.T) {
	c, _ := newUnits(t, uuid.Nil)
	ctx := context.Background()

	_, err := c.Upsert(ctx, &models.Unit{Name: "A-1"})
	require.ErrorIs(t, err, ErrMissingTenant)
	require.Equal(t, "Missing organization ID", err.Error())

	err = c.Remove(ctx, uuid.New())
	require.ErrorIs(t, err, ErrMissingTenant)
	require.Equal(t, "Missing organization ID", c.Snapshot().Error)
}

func TestCollection_UpsertForcesTenantAndRefetches(t *testing.T) {
	org, other := uuid.New(), uuid.New()
	c, _ := newUnits(t, org)
	ctx := context.Background()

	row, err := c.Upsert(ctx, &models.Unit{Name: "A-1", TenantModel: models.TenantModel{OrganizationID: other}})
	require.NoError(t, err)
	require.Equal(t, org, row.OrganizationID)
	require.NotEqual(t, uuid.Nil, row.ID)

	snap := c.Snapshot()
	require.Equal(t, StateReady, snap.State)
	require.Len(t, snap.Rows, 1)
	require.Equal(t, "A-1", snap.Rows[0].Name)
}

func TestCollection_FetchNewestFirst(t *testing.T) {
	org := uuid.New()
	c, src := newUnits(t, org)
	ctx := context.Background()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"first", "second", "third"} {
		ts := base.Add(time.Duration(i) * time.Hour)
		src.now = func() time.Time { return ts }
		_, err := c.Upsert(ctx, &models.Unit{Name: name})
		require.NoError(t, err)
	}

	rows, err := c.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	require.Equal(t, []string{"third", "second", "first"}, []string{rows[0].Name, rows[1].Name, rows[2].Name})
}

func TestCollection_CrossTenantWritesTouchNothing(t *testing.T) {
	orgA, orgB := uuid.New(), uuid.New()
	src := NewMemorySource[models.Unit]()
	a := New[models.Unit](src, orgA)
	b := New[models.Unit](src, orgB)
	ctx := context.Background()

	owned, err := a.Upsert(ctx, &models.Unit{Name: "A-1", Price: 100})
	require.NoError(t, err)

	t.Run("delete with foreign id", func(t *testing.T) {
		err := b.Remove(ctx, owned.ID)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("upsert with foreign id", func(t *testing.T) {
		hijack := &models.Unit{Name: "stolen", TenantModel: models.TenantModel{ID: owned.ID}}
		_, err := b.Upsert(ctx, hijack)
		require.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("patch with foreign id", func(t *testing.T) {
		_, err := b.Patch(ctx, owned.ID, map[string]any{"price": 1})
		require.ErrorIs(t, err, ErrNotFound)
	})

	rows, err := a.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "A-1", rows[0].Name)
	require.Equal(t, float64(100), rows[0].Price)

	rows, err = b.Fetch(ctx)
	require.NoError(t, err)
	require.Empty(t, rows)
}

func TestCollection_UpdateKeepsCreatedAt(t *testing.T) {
	org := uuid.New()
	c, src := newUnits(t, org)
	ctx := context.Background()

	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return created }
	row, err := c.Upsert(ctx, &models.Unit{Name: "A-1"})
	require.NoError(t, err)

	src.now = func() time.Time { return created.Add(time.Hour) }
	update := *row
	update.CreatedAt = time.Time{}
	update.Status = models.UnitSold
	_, err = c.Upsert(ctx, &update)
	require.NoError(t, err)

	rows, err := c.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, models.UnitSold, rows[0].Status)
	require.True(t, rows[0].CreatedAt.Equal(created))
	require.True(t, rows[0].UpdatedAt.After(created))
}

// copyingSource writes a copy of the row, leaving the caller's value as it
// was before the write, like a database that does not return stored columns.
type copyingSource struct {
	Source[models.Unit]
}

func (s copyingSource) Upsert(ctx context.Context, orgID uuid.UUID, row *models.Unit) error {
	cp := *row
	return s.Source.Upsert(ctx, orgID, &cp)
}

func TestCollection_UpsertReturnsStoredRow(t *testing.T) {
	org := uuid.New()
	mem := NewMemorySource[models.Unit]()
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	mem.now = func() time.Time { return created }
	c := New[models.Unit](copyingSource{Source: mem}, org)
	ctx := context.Background()

	first, err := c.Upsert(ctx, &models.Unit{Name: "A-1"})
	require.NoError(t, err)
	require.True(t, first.CreatedAt.Equal(created))

	mem.now = func() time.Time { return created.Add(time.Hour) }
	update := models.Unit{TenantModel: models.TenantModel{ID: first.ID}, Name: "A-1", Status: models.UnitSold}
	got, err := c.Upsert(ctx, &update)
	require.NoError(t, err)
	require.Equal(t, first.ID, got.ID)
	require.Equal(t, models.UnitSold, got.Status)
	require.True(t, got.CreatedAt.Equal(created), "created_at %s", got.CreatedAt)
	require.True(t, got.UpdatedAt.Equal(created.Add(time.Hour)))
}

func TestCollection_Patch(t *testing.T) {
	org := uuid.New()
	c, _ := newUnits(t, org)
	ctx := context.Background()

	row, err := c.Upsert(ctx, &models.Unit{Name: "A-1", Price: 100})
	require.NoError(t, err)

	t.Run("updates named columns", func(t *testing.T) {
		got, err := c.Patch(ctx, row.ID, map[string]any{"status": models.UnitSold, "photos": []string{"a.jpg"}})
		require.NoError(t, err)
		require.Equal(t, models.UnitSold, got.Status)
		require.Equal(t, []string{"a.jpg"}, []string(got.Photos))
		require.Equal(t, float64(100), got.Price)
	})

	t.Run("rejects protected columns", func(t *testing.T) {
		_, err := c.Patch(ctx, row.ID, map[string]any{"organization_id": uuid.New().String()})
		require.ErrorIs(t, err, ErrUnknownColumn)
	})

	t.Run("rejects unknown columns", func(t *testing.T) {
		_, err := c.Patch(ctx, row.ID, map[string]any{"nope": 1})
		require.ErrorIs(t, err, ErrUnknownColumn)
	})
}

type flakySource struct {
	Source[models.Unit]
	mu   sync.Mutex
	fail error
}

func (s *flakySource) List(ctx context.Context, orgID uuid.UUID) ([]models.Unit, error) {
	s.mu.Lock()
	err := s.fail
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return s.Source.List(ctx, orgID)
}

func TestCollection_FetchFailureKeepsStaleRows(t *testing.T) {
	org := uuid.New()
	src := &flakySource{Source: NewMemorySource[models.Unit]()}
	c := New[models.Unit](src, org)
	ctx := context.Background()

	_, err := c.Upsert(ctx, &models.Unit{Name: "A-1"})
	require.NoError(t, err)

	src.mu.Lock()
	src.fail = errors.New("connection refused")
	src.mu.Unlock()

	_, err = c.Fetch(ctx)
	require.Error(t, err)

	snap := c.Snapshot()
	require.Equal(t, StateError, snap.State)
	require.Equal(t, "connection refused", snap.Error)
	require.Len(t, snap.Rows, 1)
}

type gatedSource struct {
	Source[models.Unit]
	gates chan chan struct{}
}

func (s *gatedSource) List(ctx context.Context, orgID uuid.UUID) ([]models.Unit, error) {
	rows, err := s.Source.List(ctx, orgID)
	gate := <-s.gates
	<-gate
	return rows, err
}

func TestCollection_StaleFetchDoesNotOverwriteNewer(t *testing.T) {
	org := uuid.New()
	mem := NewMemorySource[models.Unit]()
	ctx := context.Background()
	require.NoError(t, mem.Upsert(ctx, org, &models.Unit{Name: "old"}))

	src := &gatedSource{Source: mem, gates: make(chan chan struct{}, 2)}
	c := New[models.Unit](src, org)

	slow, fast := make(chan struct{}), make(chan struct{})
	src.gates <- slow

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Fetch(ctx)
	}()
	require.Eventually(t, func() bool { return len(src.gates) == 0 }, time.Second, time.Millisecond)

	require.NoError(t, mem.Upsert(ctx, org, &models.Unit{Name: "new"}))
	src.gates <- fast
	close(fast)
	rows, err := c.Fetch(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	close(slow)
	<-done
	require.Len(t, c.Snapshot().Rows, 2)
}

func TestCollection_SubscribeRefetchesOnChange(t *testing.T) {
	org := uuid.New()
	feed := changefeed.NewMemoryFeed()
	src := NewMemorySource[models.Unit]()
	c := New[models.Unit](src, org, WithFeed(feed))
	ctx := context.Background()

	stop, err := c.Mount(ctx)
	require.NoError(t, err)
	require.True(t, c.Live())
	require.Equal(t, 1, feed.Subscribers("units", org))

	// a write from elsewhere, announced on the channel
	require.NoError(t, src.Upsert(ctx, org, &models.Unit{Name: "remote"}))
	require.NoError(t, feed.Publish(ctx, changefeed.Event{Table: "units", OrganizationID: org, Op: changefeed.OpInsert}))

	require.Eventually(t, func() bool { return len(c.Snapshot().Rows) == 1 }, time.Second, 5*time.Millisecond)

	stop()
	require.False(t, c.Live())
	require.Eventually(t, func() bool { return feed.Subscribers("units", org) == 0 }, time.Second, 5*time.Millisecond)
}

func TestCollection_OtherTenantEventsIgnored(t *testing.T) {
	orgA, orgB := uuid.New(), uuid.New()
	feed := changefeed.NewMemoryFeed()
	src := NewMemorySource[models.Unit]()
	c := New[models.Unit](src, orgA, WithFeed(feed))
	ctx := context.Background()

	var mu sync.Mutex
	var fetches int
	c.OnChange(func(s Snapshot[models.Unit]) {
		if s.State == StateLoading {
			mu.Lock()
			fetches++
			mu.Unlock()
		}
	})
	stop, err := c.Subscribe(ctx)
	require.NoError(t, err)
	defer stop()

	require.NoError(t, feed.Publish(ctx, changefeed.Event{Table: "units", OrganizationID: orgB, Op: changefeed.OpInsert}))
	time.Sleep(20 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	require.Zero(t, fetches)
}

func TestCollection_RescopeMovesSubscription(t *testing.T) {
	orgA, orgB := uuid.New(), uuid.New()
	feed := changefeed.NewMemoryFeed()
	src := NewMemorySource[models.Unit]()
	ctx := context.Background()
	require.NoError(t, src.Upsert(ctx, orgA, &models.Unit{Name: "a"}))
	require.NoError(t, src.Upsert(ctx, orgB, &models.Unit{Name: "b1"}))
	require.NoError(t, src.Upsert(ctx, orgB, &models.Unit{Name: "b2"}))

	c := New[models.Unit](src, orgA, WithFeed(feed))
	_, err := c.Mount(ctx)
	require.NoError(t, err)
	require.Len(t, c.Snapshot().Rows, 1)

	require.NoError(t, c.Rescope(orgB))
	require.Equal(t, orgB, c.Tenant())
	require.Len(t, c.Snapshot().Rows, 2)
	require.Eventually(t, func() bool {
		return feed.Subscribers("units", orgA) == 0 && feed.Subscribers("units", orgB) == 1
	}, time.Second, 5*time.Millisecond)

	c.Close()
	require.False(t, c.Live())
	require.Eventually(t, func() bool { return feed.Subscribers("units", orgB) == 0 }, time.Second, 5*time.Millisecond)
}

func TestCollection_ContextCancelEndsSubscription(t *testing.T) {
	org := uuid.New()
	feed := changefeed.NewMemoryFeed()
	c, _ := newUnits(t, org, WithFeed(feed))

	ctx, cancel := context.WithCancel(context.Background())
	_, err := c.Subscribe(ctx)
	require.NoError(t, err)
	cancel()

	require.Eventually(t, func() bool { return !c.Live() && feed.Subscribers("units", org) == 0 }, time.Second, 5*time.Millisecond)
}

func TestCollection_WritesPublishEvents(t *testing.T) {
	org := uuid.New()
	feed := changefeed.NewMemoryFeed()
	c, _ := newUnits(t, org, WithFeed(feed))
	ctx := context.Background()

	got := make(chan changefeed.Event, 4)
	stop, err := feed.Subscribe(ctx, "units", org, func(ev changefeed.Event) { got <- ev })
	require.NoError(t, err)
	defer stop()

	row, err := c.Upsert(ctx, &models.Unit{Name: "A-1"})
	require.NoError(t, err)

	select {
	case ev := <-got:
		require.Equal(t, changefeed.OpUpsert, ev.Op)
		require.Equal(t, row.ID, ev.ID)
	case <-time.After(time.Second):
		t.Fatal("no change event published")
	}
}
