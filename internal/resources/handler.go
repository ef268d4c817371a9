package resources

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/invoica/backend/internal/layout"
	"github.com/invoica/backend/internal/middleware"
	"github.com/invoica/backend/internal/models"
	"github.com/invoica/backend/internal/tenantdata"
	"github.com/invoica/backend/pkg/csvexport"
	"github.com/invoica/backend/pkg/queue"
	"github.com/invoica/backend/pkg/response"
)

// Exports schedules background CSV exports.
type Exports interface {
	EnqueueExport(ctx context.Context, payload queue.ExportPayload) (string, error)
	Status(ctx context.Context, jobID string) (*queue.ExportStatus, error)
}

// Handler serves the generic tenant table API.
type Handler struct {
	registry *Registry
	exports  Exports
	logger   *zap.Logger
}

// NewHandler creates a resources handler. exports may be nil, which disables
// background exports.
func NewHandler(registry *Registry, exports Exports, logger *zap.Logger) *Handler {
	return &Handler{registry: registry, exports: exports, logger: logger}
}

// Register mounts the table routes. r must run behind middleware.Session.
func (h *Handler) Register(r gin.IRouter) {
	r.GET("/exports/:id", h.ExportStatus)
	r.GET("/tables", h.Tables)

	t := r.Group("/:table", h.resolve)
	t.GET("", h.List)
	t.POST("", h.Upsert)
	t.GET("/export.csv", h.ExportCSV)
	t.POST("/exports", h.Export)
	t.PATCH("/:id", h.Patch)
	t.DELETE("/:id", h.Delete)
}

const ctxResource = "resource"

// resolve looks up the table and checks the session's plan against it.
func (h *Handler) resolve(c *gin.Context) {
	res, ok := h.registry.Get(c.Param("table"))
	if !ok {
		response.NotFound(c, "unknown table")
		c.Abort()
		return
	}
	s, ok := middleware.CurrentSession(c)
	if !ok {
		response.Unauthorized(c, "missing session")
		c.Abort()
		return
	}
	need := layout.MinPlan(res.Feature())
	if !s.IsSuperadmin() && s.SubscriptionPlan.Rank() < need.Rank() {
		response.Forbidden(c, "upgrade to "+string(need)+" to use this feature")
		c.Abort()
		return
	}
	if s.IsEmployee && layout.AdminOnly(res.Feature()) {
		response.Forbidden(c, "insufficient permissions")
		c.Abort()
		return
	}
	c.Set(ctxResource, res)
	c.Next()
}

func current(c *gin.Context) (Resource, models.Session) {
	res := c.MustGet(ctxResource).(Resource)
	s, _ := middleware.CurrentSession(c)
	return res, s
}

// Tables handles GET /tables.
func (h *Handler) Tables(c *gin.Context) {
	response.OK(c, h.registry.Tables())
}

// List handles GET /:table.
func (h *Handler) List(c *gin.Context) {
	res, s := current(c)
	rows, err := res.List(c.Request.Context(), s.OrgID)
	if err != nil {
		h.fail(c, res, err)
		return
	}
	response.OK(c, rows)
}

// Upsert handles POST /:table. A body without an id inserts a new row.
func (h *Handler) Upsert(c *gin.Context) {
	res, s := current(c)
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		response.BadRequest(c, "invalid request")
		return
	}
	row, err := res.Upsert(c.Request.Context(), s.OrgID, body)
	if err != nil {
		h.fail(c, res, err)
		return
	}
	response.OK(c, row)
}

// Patch handles PATCH /:table/:id.
func (h *Handler) Patch(c *gin.Context) {
	res, s := current(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	var fields map[string]any
	if err := c.ShouldBindJSON(&fields); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	row, err := res.Patch(c.Request.Context(), s.OrgID, id, fields)
	if err != nil {
		h.fail(c, res, err)
		return
	}
	response.OK(c, row)
}

// Delete handles DELETE /:table/:id.
func (h *Handler) Delete(c *gin.Context) {
	res, s := current(c)
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return
	}
	if err := res.Delete(c.Request.Context(), s.OrgID, id); err != nil {
		h.fail(c, res, err)
		return
	}
	response.NoContent(c)
}

// ExportCSV handles GET /:table/export.csv and streams the tenant's rows.
func (h *Handler) ExportCSV(c *gin.Context) {
	res, s := current(c)
	rows, err := res.List(c.Request.Context(), s.OrgID)
	if err != nil {
		h.fail(c, res, err)
		return
	}
	out, err := csvexport.Marshal(rows)
	if err != nil {
		h.fail(c, res, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s.csv"`, res.Table()))
	c.Data(http.StatusOK, "text/csv; charset=utf-8", []byte(out))
}

// Export handles POST /:table/exports and schedules a background export.
func (h *Handler) Export(c *gin.Context) {
	res, s := current(c)
	if h.exports == nil {
		response.ServiceUnavailable(c, "exports are disabled")
		return
	}
	if s.OrgID == uuid.Nil {
		response.BadRequest(c, tenantdata.ErrMissingTenant.Error())
		return
	}
	jobID, err := h.exports.EnqueueExport(c.Request.Context(), queue.ExportPayload{
		OrganizationID: s.OrgID,
		Table:          res.Table(),
		RequestedBy:    s.UserID,
	})
	if err != nil {
		h.logger.Error("enqueue export", zap.String("table", res.Table()), zap.Error(err))
		response.Internal(c, "failed to schedule export")
		return
	}
	response.Accepted(c, gin.H{"job_id": jobID, "status": queue.ExportPending})
}

// ExportStatus handles GET /exports/:id.
func (h *Handler) ExportStatus(c *gin.Context) {
	if h.exports == nil {
		response.ServiceUnavailable(c, "exports are disabled")
		return
	}
	s, _ := middleware.CurrentSession(c)
	st, err := h.exports.Status(c.Request.Context(), c.Param("id"))
	if errors.Is(err, queue.ErrStatusNotFound) || (err == nil && st.OrganizationID != s.OrgID) {
		response.NotFound(c, queue.ErrStatusNotFound.Error())
		return
	}
	if err != nil {
		h.logger.Error("export status", zap.Error(err))
		response.Internal(c, "failed to read export status")
		return
	}
	response.OK(c, st)
}

func (h *Handler) fail(c *gin.Context, res Resource, err error) {
	var verr *ValidationError
	switch {
	case errors.Is(err, tenantdata.ErrMissingTenant):
		response.BadRequest(c, err.Error())
	case errors.Is(err, tenantdata.ErrNotFound):
		response.NotFound(c, err.Error())
	case errors.Is(err, tenantdata.ErrUnknownColumn), errors.As(err, &verr):
		response.BadRequest(c, err.Error())
	case errors.Is(err, tenantdata.ErrConflict):
		response.Conflict(c, err.Error())
	default:
		h.logger.Error("table request failed", zap.String("table", res.Table()), zap.Error(err))
		response.Internal(c, "request failed")
	}
}
