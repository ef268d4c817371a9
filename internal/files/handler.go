package files

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/invoica/backend/internal/middleware"
	"github.com/invoica/backend/pkg/response"
	"github.com/invoica/backend/pkg/storage"
)

// Store is the object storage the handler writes to.
type Store interface {
	Upload(ctx context.Context, b storage.Bucket, key, contentType string, body io.Reader, size int64) (string, error)
	PublicURL(b storage.Bucket, key string) string
	Delete(ctx context.Context, b storage.Bucket, key string) error
}

// Handler serves tenant file uploads for the documents and photos buckets.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates a files handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	return &Handler{store: store, logger: logger}
}

// Register mounts the file routes.
func (h *Handler) Register(r gin.IRouter) {
	r.POST("/files/:bucket", h.Upload)
	r.GET("/files/:bucket/url", h.URL)
	r.DELETE("/files/:bucket", h.Delete)
}

func (h *Handler) target(c *gin.Context, p string) (storage.Bucket, string, bool) {
	bucket, err := storage.ParseBucket(c.Param("bucket"))
	if err != nil {
		response.NotFound(c, err.Error())
		return "", "", false
	}
	sess, _ := middleware.CurrentSession(c)
	key, err := storage.ObjectKey(sess.OrgID, p)
	if err != nil {
		response.BadRequest(c, err.Error())
		return "", "", false
	}
	return bucket, key, true
}

// Upload handles POST /files/:bucket with multipart fields "file" and an
// optional "path" (defaults to the file name). Existing objects are replaced.
func (h *Handler) Upload(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, storage.MaxUploadSize+1<<20)
	fh, err := c.FormFile("file")
	if err != nil {
		response.BadRequest(c, "file required")
		return
	}
	if fh.Size > storage.MaxUploadSize {
		response.BadRequest(c, "file too large (max 10MB)")
		return
	}
	p := c.PostForm("path")
	if p == "" {
		p = path.Base(fh.Filename)
	}
	bucket, key, ok := h.target(c, p)
	if !ok {
		return
	}
	f, err := fh.Open()
	if err != nil {
		response.BadRequest(c, "unreadable file")
		return
	}
	defer f.Close()

	contentType := fh.Header.Get("Content-Type")
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = storage.ContentTypeFor(fh.Filename)
	}
	url, err := h.store.Upload(c.Request.Context(), bucket, key, contentType, f, fh.Size)
	if err != nil {
		h.logger.Error("file upload failed", zap.String("bucket", string(bucket)), zap.String("key", key), zap.Error(err))
		if errors.Is(err, storage.ErrUnknownBucket) {
			response.NotFound(c, err.Error())
			return
		}
		response.Internal(c, "upload failed")
		return
	}
	response.Created(c, gin.H{"path": key, "url": url})
}

// URL handles GET /files/:bucket/url?path=.
func (h *Handler) URL(c *gin.Context) {
	bucket, key, ok := h.target(c, c.Query("path"))
	if !ok {
		return
	}
	response.OK(c, gin.H{"path": key, "url": h.store.PublicURL(bucket, key)})
}

// Delete handles DELETE /files/:bucket?path=.
func (h *Handler) Delete(c *gin.Context) {
	bucket, key, ok := h.target(c, c.Query("path"))
	if !ok {
		return
	}
	if err := h.store.Delete(c.Request.Context(), bucket, key); err != nil {
		h.logger.Error("file delete failed", zap.String("bucket", string(bucket)), zap.String("key", key), zap.Error(err))
		response.Internal(c, "delete failed")
		return
	}
	response.NoContent(c)
}
