package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/invoica/backend/internal/auth"
	"github.com/invoica/backend/internal/models"
)

func sessionCookie(t *testing.T, codec *auth.Codec, s models.Session) *http.Cookie {
	t.Helper()
	token, err := codec.Encode(s)
	require.NoError(t, err)
	return &http.Cookie{Name: auth.CookieName, Value: token}
}

func TestSessionAndRoles(t *testing.T) {
	gin.SetMode(gin.TestMode)
	codec := auth.NewCodec("secret", time.Hour, false)

	r := gin.New()
	r.Use(Session(codec))
	r.GET("/me", func(c *gin.Context) {
		s, _ := CurrentSession(c)
		c.String(http.StatusOK, s.Username)
	})
	r.GET("/root", RequireRole(models.RoleSuperadmin), func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/assets", RequirePlan(models.PlanPlatinum), func(c *gin.Context) { c.Status(http.StatusOK) })

	admin := models.Session{UserID: uuid.New(), OrgID: uuid.New(), Role: models.RoleAdmin, Username: "admin", SubscriptionPlan: models.PlanGold}
	root := models.Session{UserID: uuid.New(), OrgID: uuid.New(), Role: models.RoleSuperadmin, Username: "root", SubscriptionPlan: models.PlanSilver}

	do := func(path string, cookie *http.Cookie) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if cookie != nil {
			req.AddCookie(cookie)
		}
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusUnauthorized, do("/me", nil).Code)
	require.Equal(t, http.StatusUnauthorized, do("/me", &http.Cookie{Name: auth.CookieName, Value: "junk"}).Code)

	rec := do("/me", sessionCookie(t, codec, admin))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "admin", rec.Body.String())

	require.Equal(t, http.StatusForbidden, do("/root", sessionCookie(t, codec, admin)).Code)
	require.Equal(t, http.StatusOK, do("/root", sessionCookie(t, codec, root)).Code)

	require.Equal(t, http.StatusForbidden, do("/assets", sessionCookie(t, codec, admin)).Code)
	require.Equal(t, http.StatusOK, do("/assets", sessionCookie(t, codec, root)).Code)
}

func TestCORS_AllowsCredentialedOrigin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	require.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	require.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set("Origin", "http://evil.test")
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogger(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	r := gin.New()
	r.Use(Logger(zap.New(core)))
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	require.Equal(t, zap.ErrorLevel, entries[0].Level)
	require.Equal(t, "/boom", entries[0].ContextMap()["path"])
}
