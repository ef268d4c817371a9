package auth

import (
	"errors"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/invoica/backend/internal/models"
)

// CookieName is the name of the session cookie.
const CookieName = "invoica_session"

var ErrInvalidSession = errors.New("invalid session")

type sessionClaims struct {
	models.Session
	jwt.RegisteredClaims
}

// Codec signs sessions into cookie values and reads them back.
type Codec struct {
	secret []byte
	maxAge time.Duration
	secure bool
	now    func() time.Time
}

// NewCodec creates a session codec. secure marks cookies Secure (production).
func NewCodec(secret string, maxAge time.Duration, secure bool) *Codec {
	return &Codec{secret: []byte(secret), maxAge: maxAge, secure: secure, now: time.Now}
}

// Encode signs s as an HS256 token.
func (c *Codec) Encode(s models.Session) (string, error) {
	now := c.now()
	claims := sessionClaims{
		Session: s,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   s.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.maxAge)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode verifies a token and returns the session it carries.
func (c *Codec) Decode(token string) (models.Session, error) {
	var claims sessionClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return models.Session{}, ErrInvalidSession
	}
	if claims.UserID == uuid.Nil || claims.OrgID == uuid.Nil {
		return models.Session{}, ErrInvalidSession
	}
	return claims.Session, nil
}

// SetCookie writes the session cookie.
func (c *Codec) SetCookie(w http.ResponseWriter, s models.Session) error {
	value, err := c.Encode(s)
	if err != nil {
		return err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(c.maxAge / time.Second),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// ClearCookie expires the session cookie.
func (c *Codec) ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// FromRequest returns the session of r, if it carries a valid cookie.
func (c *Codec) FromRequest(r *http.Request) (models.Session, bool) {
	cookie, err := r.Cookie(CookieName)
	if err != nil || cookie.Value == "" {
		return models.Session{}, false
	}
	s, err := c.Decode(cookie.Value)
	if err != nil {
		return models.Session{}, false
	}
	return s, true
}
