package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/middleware"
	"github.com/smartresidence/resident-backend/internal/services"
)

// allowedUploadPrefixes keeps callers from scattering objects across
// arbitrary key prefixes.
var allowedUploadPrefixes = map[string]bool{
	"logos":    true,
	"tickets":  true,
	"blog":     true,
	"profiles": true,
	"notices":  true,
}

// UploadHandler accepts multipart file uploads and stores them in the object
// store. It returns public URLs; callers persist the URL on the owning
// entity themselves.
type UploadHandler struct {
	uploadSvc *services.UploadService
	logger    *logrus.Logger
}

// NewUploadHandler creates a new upload handler
func NewUploadHandler(uploadSvc *services.UploadService, logger *logrus.Logger) *UploadHandler {
	return &UploadHandler{
		uploadSvc: uploadSvc,
		logger:    logger,
	}
}

// Upload handles POST /api/v1/:panel/uploads?prefix=tickets with one or more
// files under the "files" field. All files land or none do.
func (h *UploadHandler) Upload(c *gin.Context) {
	prefix := c.Query("prefix")
	if !allowedUploadPrefixes[prefix] {
		respondBadRequest(c, "Unknown upload prefix")
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		respondBadRequest(c, "Invalid multipart form")
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		respondBadRequest(c, "No files provided")
		return
	}

	uploads := make([]services.Upload, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			respondBadRequest(c, "Unreadable file "+fh.Filename)
			return
		}

		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			respondBadRequest(c, "Unreadable file "+fh.Filename)
			return
		}

		uploads = append(uploads, services.Upload{
			Prefix:      prefix,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	urls, err := h.uploadSvc.StoreAll(c.Request.Context(), h.scopeID(c), uploads)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"urls": urls})
}

// scopeID returns the apartment the upload belongs to. Superadmin uploads
// (blog covers) have no apartment and land under the zero scope.
func (h *UploadHandler) scopeID(c *gin.Context) uuid.UUID {
	if identity, ok := middleware.GetIdentity(c); ok && identity.ApartmentID != nil {
		return *identity.ApartmentID
	}
	return uuid.Nil
}
