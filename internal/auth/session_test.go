package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/invoica/backend/internal/models"
)

func testSession() models.Session {
	pic := "https://cdn.test/a.png"
	return models.Session{
		UserID:           uuid.New(),
		OrgID:            uuid.New(),
		Role:             models.RoleAdmin,
		Username:         "admin",
		FullName:         "Ada Admin",
		OrgName:          "Acme",
		ProfilePicture:   &pic,
		SubscriptionPlan: models.PlanPlatinum,
		ModuleType:       models.ModuleRealEstate,
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	codec := NewCodec("secret", 7*24*time.Hour, false)
	s := testSession()

	token, err := codec.Encode(s)
	require.NoError(t, err)

	got, err := codec.Decode(token)
	require.NoError(t, err)
	require.Equal(t, s, got)
}

func TestCodec_RejectsTamperedAndExpired(t *testing.T) {
	codec := NewCodec("secret", time.Hour, false)
	token, err := codec.Encode(testSession())
	require.NoError(t, err)

	_, err = NewCodec("other", time.Hour, false).Decode(token)
	require.ErrorIs(t, err, ErrInvalidSession)

	codec.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = codec.Decode(token)
	require.ErrorIs(t, err, ErrInvalidSession)

	_, err = codec.Decode("not-a-token")
	require.ErrorIs(t, err, ErrInvalidSession)
}

func TestCodec_Cookie(t *testing.T) {
	codec := NewCodec("secret", 7*24*time.Hour, true)
	rec := httptest.NewRecorder()
	require.NoError(t, codec.SetCookie(rec, testSession()))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	require.Equal(t, CookieName, c.Name)
	require.True(t, c.HttpOnly)
	require.True(t, c.Secure)
	require.Equal(t, "/", c.Path)
	require.Equal(t, 604800, c.MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(c)
	s, ok := codec.FromRequest(req)
	require.True(t, ok)
	require.Equal(t, "admin", s.Username)

	rec = httptest.NewRecorder()
	codec.ClearCookie(rec)
	cleared := rec.Result().Cookies()[0]
	require.Equal(t, CookieName, cleared.Name)
	require.Equal(t, -1, cleared.MaxAge)
}

func TestCodec_InsecureOutsideProduction(t *testing.T) {
	rec := httptest.NewRecorder()
	require.NoError(t, NewCodec("secret", time.Hour, false).SetCookie(rec, testSession()))
	require.False(t, rec.Result().Cookies()[0].Secure)
}
