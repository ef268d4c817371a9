package layout

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/invoica/backend/internal/middleware"
	"github.com/invoica/backend/internal/models"
)

func keys(nav Navigation) []string {
	out := make([]string, 0, len(nav.Items))
	for _, it := range nav.Items {
		out = append(out, it.Key)
	}
	return out
}

func TestBuild_PlanGating(t *testing.T) {
	base := models.Session{OrgID: uuid.New(), Role: models.RoleAdmin, ModuleType: models.ModuleRealEstate}

	silver := base
	silver.SubscriptionPlan = models.PlanSilver
	require.Equal(t, []string{"dashboard", "customers", "invoices", "expenses", "staff", "settings"}, keys(Build(silver)))

	gold := base
	gold.SubscriptionPlan = models.PlanGold
	got := keys(Build(gold))
	require.Contains(t, got, "projects")
	require.Contains(t, got, "payroll")
	require.NotContains(t, got, "assets")

	platinum := base
	platinum.SubscriptionPlan = models.PlanPlatinum
	got = keys(Build(platinum))
	require.Contains(t, got, "assets")
	require.Contains(t, got, "forecasting")
	require.Len(t, got, len(features))
}

func TestBuild_Terminology(t *testing.T) {
	s := models.Session{OrgID: uuid.New(), Role: models.RoleAdmin, SubscriptionPlan: models.PlanGold, ModuleType: models.ModuleServiceMarketing}
	nav := Build(s)
	labels := map[string]Item{}
	for _, it := range nav.Items {
		labels[it.Key] = it
	}
	require.Equal(t, "Client Projects", labels["projects"].Label)
	require.Equal(t, "Services", labels["units"].Label)
	require.Equal(t, "/services", labels["units"].Path)

	s.ModuleType = models.ModuleRealEstate
	for _, it := range Build(s).Items {
		labels[it.Key] = it
	}
	require.Equal(t, "Projects", labels["projects"].Label)
	require.Equal(t, "Units", labels["units"].Label)
}

func TestBuild_EmployeeAndSuperadmin(t *testing.T) {
	emp := models.Session{OrgID: uuid.New(), Role: models.RoleEmployee, IsEmployee: true, SubscriptionPlan: models.PlanPlatinum}
	require.NotContains(t, keys(Build(emp)), "settings")
	require.NotContains(t, keys(Build(emp)), "payroll")

	root := models.Session{OrgID: uuid.New(), Role: models.RoleSuperadmin, SubscriptionPlan: models.PlanSilver}
	got := keys(Build(root))
	require.Contains(t, got, "assets")
	require.Equal(t, "organizations", got[len(got)-1])
}

func TestMinPlan(t *testing.T) {
	require.Equal(t, models.PlanPlatinum, MinPlan("assets"))
	require.Equal(t, models.PlanGold, MinPlan("cheques"))
	require.Equal(t, models.PlanSilver, MinPlan("unknown"))
	require.True(t, AdminOnly("payroll"))
	require.False(t, AdminOnly("customers"))
}

type memoryCache struct {
	mu    sync.Mutex
	items map[string]Navigation
	sets  int
}

func (m *memoryCache) Get(_ context.Context, orgID uuid.UUID, role string) (*Navigation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	nav, ok := m.items[cacheKey(orgID, role)]
	if !ok {
		return nil, nil
	}
	return &nav, nil
}

func (m *memoryCache) Set(_ context.Context, orgID uuid.UUID, nav Navigation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items[cacheKey(orgID, nav.Role)] = nav
	m.sets++
	return nil
}

func (m *memoryCache) Invalidate(_ context.Context, orgID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, role := range cachedRoles {
		delete(m.items, cacheKey(orgID, role))
	}
	return nil
}

func TestService_CachesUntilInvalidated(t *testing.T) {
	cache := &memoryCache{items: map[string]Navigation{}}
	svc := NewService(cache, zap.NewNop())
	ctx := context.Background()
	s := models.Session{OrgID: uuid.New(), Role: models.RoleAdmin, SubscriptionPlan: models.PlanSilver}

	svc.For(ctx, s)
	svc.For(ctx, s)
	require.Equal(t, 1, cache.sets)

	require.NoError(t, svc.Invalidate(ctx, s.OrgID))
	svc.For(ctx, s)
	require.Equal(t, 2, cache.sets)

	// a plan change in the session is never served stale
	s.SubscriptionPlan = models.PlanPlatinum
	nav := svc.For(ctx, s)
	require.Contains(t, keys(nav), "assets")
}

func TestService_Handle(t *testing.T) {
	gin.SetMode(gin.TestMode)
	svc := NewService(&memoryCache{items: map[string]Navigation{}}, zap.NewNop())
	s := models.Session{OrgID: uuid.New(), Role: models.RoleAdmin, SubscriptionPlan: models.PlanGold}

	r := gin.New()
	r.GET("/layout", func(c *gin.Context) { c.Set(middleware.ContextSession, s) }, svc.Handle)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/layout", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"key":"payroll"`)
}

func TestCacheKey(t *testing.T) {
	org := uuid.MustParse("00000000-0000-0000-0000-000000000001")
	require.Equal(t, "layout:00000000-0000-0000-0000-000000000001:Admin", cacheKey(org, models.RoleAdmin))
}
