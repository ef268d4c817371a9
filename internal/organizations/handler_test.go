package organizations

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/invoica/backend/internal/models"
	"github.com/invoica/backend/pkg/utils"
)

type memoryStore struct {
	mu     sync.Mutex
	orgs   map[uuid.UUID]models.Organization
	admins map[uuid.UUID]models.User
	clock  time.Time
}

func newMemoryStore() *memoryStore {
	return &memoryStore{orgs: map[uuid.UUID]models.Organization{}, admins: map[uuid.UUID]models.User{}, clock: time.Unix(1700000000, 0)}
}

func (m *memoryStore) List(context.Context) ([]models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.Organization
	for _, o := range m.orgs {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *memoryStore) Get(_ context.Context, id uuid.UUID) (*models.Organization, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orgs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &o, nil
}

func (m *memoryStore) taken(subdomain string, except uuid.UUID) bool {
	for _, o := range m.orgs {
		if o.Subdomain == subdomain && o.ID != except {
			return true
		}
	}
	return false
}

func (m *memoryStore) Create(_ context.Context, org *models.Organization, admin *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.taken(org.Subdomain, uuid.Nil) {
		return ErrDuplicate
	}
	m.clock = m.clock.Add(time.Minute)
	org.ID, org.CreatedAt, org.UpdatedAt = uuid.New(), m.clock, m.clock
	admin.ID, admin.OrganizationID = uuid.New(), org.ID
	m.orgs[org.ID] = *org
	m.admins[org.ID] = *admin
	return nil
}

func (m *memoryStore) Update(_ context.Context, org *models.Organization) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.orgs[org.ID]; !ok {
		return ErrNotFound
	}
	if m.taken(org.Subdomain, org.ID) {
		return ErrDuplicate
	}
	m.orgs[org.ID] = *org
	return nil
}

type recordingLayout struct{ invalidated []uuid.UUID }

func (r *recordingLayout) Invalidate(_ context.Context, orgID uuid.UUID) error {
	r.invalidated = append(r.invalidated, orgID)
	return nil
}

func newRouter(store Store, layout LayoutInvalidator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(store, layout, "initial-pass", zap.NewNop()).Register(r)
	return r
}

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestCreate_AddsActiveOrgWithAdmin(t *testing.T) {
	store := newMemoryStore()
	r := newRouter(store, &recordingLayout{})

	rec := do(r, http.MethodPost, "/organizations", `{"name":"Nile Homes","subdomain":" Nile-Homes ","subscription_plan":"Gold"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	orgs, _ := store.List(context.Background())
	require.Len(t, orgs, 1)
	org := orgs[0]
	require.Equal(t, "nile-homes", org.Subdomain)
	require.Equal(t, models.StatusActive, org.SubscriptionStatus)
	require.Equal(t, models.PlanGold, org.SubscriptionPlan)
	require.Equal(t, models.ModuleRealEstate, org.ModuleType)

	admin := store.admins[org.ID]
	require.Equal(t, DefaultAdminUsername, admin.Username)
	require.Equal(t, models.RoleAdmin, admin.Role)
	require.True(t, utils.CheckPassword("initial-pass", admin.PasswordHash))
	require.NotContains(t, rec.Body.String(), admin.PasswordHash)

	rec = do(r, http.MethodPost, "/organizations", `{"name":"Copy","subdomain":"nile-homes"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestCreate_Validation(t *testing.T) {
	r := newRouter(newMemoryStore(), &recordingLayout{})
	for _, body := range []string{
		`{"name":"X"}`,
		`{"name":"X","subdomain":"bad domain"}`,
		`{"name":"X","subdomain":"ok","subscription_plan":"Bronze"}`,
		`{"name":"X","subdomain":"ok","module_type":"Retail"}`,
	} {
		require.Equal(t, http.StatusBadRequest, do(r, http.MethodPost, "/organizations", body).Code, body)
	}
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/organizations", `{"name":"X","subdomain":"ok","module_type":"Service & Marketing"}`).Code)
}

func TestList_NewestFirst(t *testing.T) {
	store := newMemoryStore()
	r := newRouter(store, &recordingLayout{})
	require.Equal(t, http.StatusOK, do(r, http.MethodGet, "/organizations", "").Code)

	do(r, http.MethodPost, "/organizations", `{"name":"First","subdomain":"first"}`)
	do(r, http.MethodPost, "/organizations", `{"name":"Second","subdomain":"second"}`)

	rec := do(r, http.MethodGet, "/organizations", "")
	var body struct {
		Data []models.Organization `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	require.Equal(t, "Second", body.Data[0].Name)
}

func TestUpdate_InvalidatesLayout(t *testing.T) {
	store := newMemoryStore()
	layout := &recordingLayout{}
	r := newRouter(store, layout)
	do(r, http.MethodPost, "/organizations", `{"name":"Acme","subdomain":"acme"}`)
	orgs, _ := store.List(context.Background())
	id := orgs[0].ID

	rec := do(r, http.MethodPatch, "/organizations/"+id.String(), `{"subscription_plan":"Platinum","module_type":"Service & Marketing"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	got, _ := store.Get(context.Background(), id)
	require.Equal(t, models.PlanPlatinum, got.SubscriptionPlan)
	require.Equal(t, models.ModuleServiceMarketing, got.ModuleType)
	require.Equal(t, "acme", got.Subdomain)
	require.Equal(t, []uuid.UUID{id}, layout.invalidated)

	require.Equal(t, http.StatusNotFound, do(r, http.MethodPatch, "/organizations/"+uuid.NewString(), `{"name":"x"}`).Code)
	require.Equal(t, http.StatusBadRequest, do(r, http.MethodPatch, "/organizations/nope", `{}`).Code)
}
