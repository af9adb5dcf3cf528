package handler

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jmerrifield20/filechain/internal/contentstore"
	"github.com/jmerrifield20/filechain/internal/ledger"
	"github.com/jmerrifield20/filechain/internal/upload"
	"go.uber.org/zap"
)

// minCIDLength is the shortest string /download accepts as a CID.
const minCIDLength = 10

// FileHandler serves uploads and content retrieval.
type FileHandler struct {
	svc     *upload.Service
	gateway func(cid string) string
	logger  *zap.Logger
}

// NewFileHandler creates a new FileHandler. Downloads redirect to the
// local /files route until SetGateway is called.
func NewFileHandler(svc *upload.Service, logger *zap.Logger) *FileHandler {
	return &FileHandler{svc: svc, logger: logger}
}

// SetGateway sets the function that maps a CID to a public download URL.
func (h *FileHandler) SetGateway(fn func(cid string) string) {
	h.gateway = fn
}

// Register mounts the file routes on the given router group.
func (h *FileHandler) Register(rg *gin.RouterGroup) {
	rg.POST("/files", h.Upload)
	rg.GET("/files/:cid", h.Fetch)
	rg.POST("/download", h.Download)
}

// Upload handles POST /files with the multipart field "file".
func (h *FileHandler) Upload(c *gin.Context) {
	fh, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file part in request"})
		return
	}
	if fh.Filename == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file selected"})
		return
	}
	if fh.Size > h.svc.MaxBytes() {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
		return
	}

	f, err := fh.Open()
	if err != nil {
		h.logger.Error("open multipart file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, h.svc.MaxBytes()+1))
	if err != nil {
		h.logger.Error("read multipart file", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}

	entry, err := h.svc.Upload(c.Request.Context(), fh.Filename, data)
	if err != nil {
		status, msg := uploadErrorStatus(err)
		if status >= http.StatusInternalServerError {
			h.logger.Error("upload failed", zap.String("filename", fh.Filename), zap.Error(err))
		}
		c.JSON(status, gin.H{"error": msg})
		return
	}
	RecordLedgerAppend()

	c.JSON(http.StatusCreated, gin.H{
		"message": "file uploaded",
		"entry":   entry,
	})
}

// Fetch handles GET /files/:cid and returns the stored bytes.
func (h *FileHandler) Fetch(c *gin.Context) {
	cid := c.Param("cid")
	if !contentstore.ValidCID(cid) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid cid"})
		return
	}

	data, err := h.svc.Fetch(c.Request.Context(), cid)
	if err != nil {
		if errors.Is(err, contentstore.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "content not found"})
			return
		}
		status, msg := storeErrorStatus(err)
		h.logger.Error("content fetch failed", zap.String("cid", cid), zap.Error(err))
		c.JSON(status, gin.H{"error": msg})
		return
	}

	c.Header("Cache-Control", "public, max-age=31536000, immutable")
	c.Data(http.StatusOK, "application/octet-stream", data)
}

// Download handles POST /download with the form field "ipfs_hash" and redirects to
// the gateway URL for the CID, or to the local fetch route without a gateway.
func (h *FileHandler) Download(c *gin.Context) {
	cid := strings.TrimSpace(c.PostForm("ipfs_hash"))
	if cid == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ipfs_hash is required"})
		return
	}
	if len(cid) < minCIDLength || !contentstore.ValidCID(cid) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ipfs_hash"})
		return
	}

	target := "/api/v1/files/" + cid
	if h.gateway != nil {
		target = h.gateway(cid)
	}
	c.Redirect(http.StatusFound, target)
}

// uploadErrorStatus maps upload and store errors to an HTTP status and message.
func uploadErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, upload.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, "file too large"
	case errors.Is(err, upload.ErrInvalidFilename):
		return http.StatusBadRequest, "invalid filename"
	case errors.Is(err, upload.ErrFileTypeNotAllowed):
		return http.StatusBadRequest, "file type not allowed"
	case errors.Is(err, upload.ErrEmptyFile):
		return http.StatusBadRequest, "file is empty"
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest, "invalid ledger entry"
	case errors.Is(err, ledger.ErrPersistence):
		return http.StatusInternalServerError, "failed to record upload"
	default:
		return storeErrorStatus(err)
	}
}

// storeErrorStatus maps content store errors to an HTTP status and message.
func storeErrorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, contentstore.ErrPermanentAuth):
		return http.StatusUnauthorized, "storage backend rejected credentials"
	case errors.Is(err, contentstore.ErrTransient):
		return http.StatusServiceUnavailable, "storage backend temporarily unavailable"
	case errors.Is(err, contentstore.ErrUnavailable):
		return http.StatusBadGateway, "storage backend unavailable"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
