package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/pkg/pagination"
)

// WebsiteHandler serves the unauthenticated marketing-site endpoints
type WebsiteHandler struct {
	db     database.DB
	logger *logrus.Logger
}

// NewWebsiteHandler creates a new website handler
func NewWebsiteHandler(db database.DB, logger *logrus.Logger) *WebsiteHandler {
	return &WebsiteHandler{
		db:     db,
		logger: logger,
	}
}

// ListPosts handles GET /api/v1/website/blog — published posts only,
// newest first.
func (h *WebsiteHandler) ListPosts(c *gin.Context) {
	params := pagination.FromValues(c.Request.URL.Query())
	repo := database.NewBlogPostRepository(h.db)

	posts, err := repo.ListPublished(params.Limit, params.Offset())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	total, err := repo.CountPublished()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, pagination.NewEnvelope(posts, total, params))
}

// GetPost handles GET /api/v1/website/blog/:slug. Unpublished posts are
// invisible here regardless of slug.
func (h *WebsiteHandler) GetPost(c *gin.Context) {
	slug := strings.TrimSpace(c.Param("slug"))
	if slug == "" {
		respondBadRequest(c, "Slug is required")
		return
	}

	post, err := database.NewBlogPostRepository(h.db).GetBySlug(slug)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if post == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Status: "not_found", Message: "Post not found"})
		return
	}

	c.JSON(http.StatusOK, post)
}
