package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/invoica/backend/internal/auth"
	"github.com/invoica/backend/internal/models"
	"github.com/invoica/backend/pkg/response"
)

// ContextSession is the gin context key holding the request's models.Session.
const ContextSession = "session"

// Session requires a valid session cookie and stores the session in context.
func Session(codec *auth.Codec) gin.HandlerFunc {
	return func(c *gin.Context) {
		s, ok := codec.FromRequest(c.Request)
		if !ok {
			response.Unauthorized(c, "not signed in")
			c.Abort()
			return
		}
		c.Set(ContextSession, s)
		c.Next()
	}
}

// CurrentSession returns the session stored by Session.
func CurrentSession(c *gin.Context) (models.Session, bool) {
	v, ok := c.Get(ContextSession)
	if !ok {
		return models.Session{}, false
	}
	s, ok := v.(models.Session)
	return s, ok
}
