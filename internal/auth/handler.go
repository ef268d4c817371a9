package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/invoica/backend/pkg/response"
)

// Handler handles auth HTTP endpoints.
type Handler struct {
	resolver *Resolver
	codec    *Codec
	logger   *zap.Logger
}

// NewHandler creates an auth handler.
func NewHandler(resolver *Resolver, codec *Codec, logger *zap.Logger) *Handler {
	return &Handler{resolver: resolver, codec: codec, logger: logger}
}

// Register mounts the auth routes.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/auth/login", h.Login)
	r.POST("/auth/logout", h.Logout)
	r.GET("/auth/session", h.Session)
}

// Login handles POST /auth/login. JSON clients get the result in the
// envelope; HTML form posts are redirected.
func (h *Handler) Login(c *gin.Context) {
	var cred Credentials
	if err := c.ShouldBind(&cred); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}

	res, err := h.resolver.Login(c.Request.Context(), cred)
	if err != nil {
		h.logger.Error("login failed", zap.Error(err))
		response.Internal(c, "login failed")
		return
	}
	if !res.OK() {
		response.Unauthorized(c, res.Error)
		return
	}

	if err := h.codec.SetCookie(c.Writer, *res.Session); err != nil {
		h.logger.Error("encode session", zap.Error(err))
		response.Internal(c, "login failed")
		return
	}
	if isFormPost(c) {
		c.Redirect(http.StatusSeeOther, res.Redirect)
		return
	}
	response.OK(c, res)
}

// Logout handles POST /auth/logout. Always succeeds.
func (h *Handler) Logout(c *gin.Context) {
	h.codec.ClearCookie(c.Writer)
	if isFormPost(c) {
		c.Redirect(http.StatusSeeOther, redirectAfterLogout)
		return
	}
	response.OK(c, gin.H{"redirect": redirectAfterLogout})
}

// Session handles GET /auth/session.
func (h *Handler) Session(c *gin.Context) {
	s, ok := h.codec.FromRequest(c.Request)
	if !ok {
		response.Unauthorized(c, "not signed in")
		return
	}
	response.OK(c, s)
}

func isFormPost(c *gin.Context) bool {
	ct := c.ContentType()
	return strings.HasPrefix(ct, "application/x-www-form-urlencoded") || strings.HasPrefix(ct, "multipart/form-data")
}
