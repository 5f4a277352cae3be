package handlers

import (
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/config"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/internal/models"
	"github.com/smartresidence/resident-backend/internal/services"
	"github.com/smartresidence/resident-backend/pkg/pagination"
	"golang.org/x/crypto/bcrypt"
)

// SuperadminHandler serves the platform owner's panel: apartments,
// apartment-admin accounts, subscription billing and the marketing blog.
type SuperadminHandler struct {
	db              database.DB
	subscriptionSvc *services.SubscriptionService
	cronSvc         *services.CronService
	config          *config.Config
	logger          *logrus.Logger
}

// NewSuperadminHandler creates a new superadmin handler
func NewSuperadminHandler(db database.DB, subscriptionSvc *services.SubscriptionService, cronSvc *services.CronService, cfg *config.Config, logger *logrus.Logger) *SuperadminHandler {
	return &SuperadminHandler{
		db:              db,
		subscriptionSvc: subscriptionSvc,
		cronSvc:         cronSvc,
		config:          cfg,
		logger:          logger,
	}
}

// CreateApartmentRequest represents a new apartment complex
type CreateApartmentRequest struct {
	Name    string `json:"name" binding:"required"`
	Address string `json:"address" binding:"required"`
}

// CreateApartment handles POST /api/v1/superadmin/apartments
func (h *SuperadminHandler) CreateApartment(c *gin.Context) {
	var req CreateApartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	apartment, err := database.NewApartmentRepository(h.db).CreateApartment(req.Name, req.Address)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithField("apartment_id", apartment.ID).Info("Apartment created")
	c.JSON(http.StatusCreated, apartment)
}

// ListApartments handles GET /api/v1/superadmin/apartments
func (h *SuperadminHandler) ListApartments(c *gin.Context) {
	params := pagination.FromValues(c.Request.URL.Query())
	repo := database.NewApartmentRepository(h.db)

	apartments, err := repo.ListApartments(params.Limit, params.Offset())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	total, err := repo.CountApartments()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, pagination.NewEnvelope(apartments, total, params))
}

// GetApartment handles GET /api/v1/superadmin/apartments/:apartmentID
func (h *SuperadminHandler) GetApartment(c *gin.Context) {
	id, ok := parseUUIDParam(c, "apartmentID")
	if !ok {
		return
	}

	apartment, err := database.NewApartmentRepository(h.db).GetApartmentByID(id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if apartment == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Status: "not_found", Message: "Apartment not found"})
		return
	}

	c.JSON(http.StatusOK, apartment)
}

// UpdateApartmentRequest updates an apartment's profile
type UpdateApartmentRequest struct {
	Name    string  `json:"name" binding:"required"`
	Address string  `json:"address" binding:"required"`
	LogoURL *string `json:"logo_url,omitempty"`
}

// UpdateApartment handles PUT /api/v1/superadmin/apartments/:apartmentID
func (h *SuperadminHandler) UpdateApartment(c *gin.Context) {
	id, ok := parseUUIDParam(c, "apartmentID")
	if !ok {
		return
	}

	var req UpdateApartmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	if err := database.NewApartmentRepository(h.db).UpdateApartment(id, req.Name, req.Address, req.LogoURL); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Apartment updated"})
}

// UpdateApartmentStatusRequest flips an apartment between active and inactive
type UpdateApartmentStatusRequest struct {
	Status models.ApartmentStatus `json:"status" binding:"required"`
}

// UpdateApartmentStatus handles PATCH /api/v1/superadmin/apartments/:apartmentID/status
func (h *SuperadminHandler) UpdateApartmentStatus(c *gin.Context) {
	id, ok := parseUUIDParam(c, "apartmentID")
	if !ok {
		return
	}

	var req UpdateApartmentStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	if req.Status != models.ApartmentActive && req.Status != models.ApartmentInactive {
		respondBadRequest(c, "Status must be active or inactive")
		return
	}

	if err := database.NewApartmentRepository(h.db).UpdateStatus(id, req.Status); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{"apartment_id": id, "status": req.Status}).Info("Apartment status changed")
	c.JSON(http.StatusOK, gin.H{"message": "Status updated"})
}

// CreateAdminRequest creates an apartment-admin account
type CreateAdminRequest struct {
	ApartmentID uuid.UUID `json:"apartment_id" binding:"required"`
	Name        string    `json:"name" binding:"required"`
	Email       string    `json:"email" binding:"required,email"`
	Password    string    `json:"password" binding:"required,min=8"`
}

// CreateAdmin handles POST /api/v1/superadmin/admins
func (h *SuperadminHandler) CreateAdmin(c *gin.Context) {
	var req CreateAdminRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.config.Auth.BcryptCost)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	admin, err := database.NewAdminUserRepository(h.db).CreateAdminUser(&req.ApartmentID, models.RoleAdmin, req.Name, req.Email, string(hash))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, admin)
}

// ListAdmins handles GET /api/v1/superadmin/apartments/:apartmentID/admins
func (h *SuperadminHandler) ListAdmins(c *gin.Context) {
	apartmentID, ok := parseUUIDParam(c, "apartmentID")
	if !ok {
		return
	}

	admins, err := database.NewAdminUserRepository(h.db).ListAdminsByApartment(apartmentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": admins})
}

// CreateSubscriptionRequest opens a billing period. Amounts travel as strings
// so the client controls their exact decimal representation; first_payment is
// optional and books the opening installment together with the period.
type CreateSubscriptionRequest struct {
	ApartmentID  uuid.UUID                `json:"apartment_id" binding:"required"`
	Type         models.SubscriptionType  `json:"type" binding:"required"`
	Pattern      models.PaymentPattern    `json:"pattern" binding:"required"`
	Price        string                   `json:"price" binding:"required"`
	FirstPayment string                   `json:"first_payment"`
	StartAt      time.Time                `json:"start_at" binding:"required"`
	EndAt        time.Time                `json:"end_at" binding:"required"`
}

// CreateSubscription handles POST /api/v1/superadmin/subscriptions
func (h *SuperadminHandler) CreateSubscription(c *gin.Context) {
	var req CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	price, err := decimal.NewFromString(req.Price)
	if err != nil {
		respondBadRequest(c, "Invalid price")
		return
	}

	firstPayment := decimal.Zero
	if req.FirstPayment != "" {
		if firstPayment, err = decimal.NewFromString(req.FirstPayment); err != nil {
			respondBadRequest(c, "Invalid first_payment")
			return
		}
	}

	sub, err := h.subscriptionSvc.CreateSubscription(req.ApartmentID, req.Type, req.Pattern, price, firstPayment, req.StartAt, req.EndAt)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, sub)
}

// ListSubscriptions handles GET /api/v1/superadmin/apartments/:apartmentID/subscriptions
func (h *SuperadminHandler) ListSubscriptions(c *gin.Context) {
	apartmentID, ok := parseUUIDParam(c, "apartmentID")
	if !ok {
		return
	}

	params := pagination.FromValues(c.Request.URL.Query())

	subs, total, err := h.subscriptionSvc.ListSubscriptions(apartmentID, params.Limit, params.Offset())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, pagination.NewEnvelope(subs, total, params))
}

// GetSubscription handles GET /api/v1/superadmin/subscriptions/:subscriptionID
func (h *SuperadminHandler) GetSubscription(c *gin.Context) {
	id, ok := parseUUIDParam(c, "subscriptionID")
	if !ok {
		return
	}

	sub, histories, err := h.subscriptionSvc.GetSubscription(id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subscription": sub,
		"installments": histories,
	})
}

// InstallmentRequest books or corrects a payment
type InstallmentRequest struct {
	Amount string  `json:"amount" binding:"required"`
	Note   *string `json:"note,omitempty"`
}

// RecordInstallment handles POST /api/v1/superadmin/subscriptions/:subscriptionID/installments
func (h *SuperadminHandler) RecordInstallment(c *gin.Context) {
	subscriptionID, ok := parseUUIDParam(c, "subscriptionID")
	if !ok {
		return
	}

	var req InstallmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondBadRequest(c, "Invalid amount")
		return
	}

	history, err := h.subscriptionSvc.RecordInstallment(subscriptionID, amount, req.Note)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, history)
}

// CorrectInstallment handles PUT /api/v1/superadmin/subscriptions/:subscriptionID/installments/:installmentID
func (h *SuperadminHandler) CorrectInstallment(c *gin.Context) {
	subscriptionID, ok := parseUUIDParam(c, "subscriptionID")
	if !ok {
		return
	}
	installmentID, ok := parseUUIDParam(c, "installmentID")
	if !ok {
		return
	}

	var req InstallmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		respondBadRequest(c, "Invalid amount")
		return
	}

	if err := h.subscriptionSvc.CorrectLatestInstallment(subscriptionID, installmentID, amount, req.Note); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Installment corrected"})
}

// DeleteInstallment handles DELETE /api/v1/superadmin/subscriptions/:subscriptionID/installments/:installmentID
func (h *SuperadminHandler) DeleteInstallment(c *gin.Context) {
	subscriptionID, ok := parseUUIDParam(c, "subscriptionID")
	if !ok {
		return
	}
	installmentID, ok := parseUUIDParam(c, "installmentID")
	if !ok {
		return
	}

	if err := h.subscriptionSvc.RemoveLatestInstallment(subscriptionID, installmentID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Installment removed"})
}

var slugSanitizer = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(title string) string {
	slug := slugSanitizer.ReplaceAllString(strings.ToLower(title), "-")
	return strings.Trim(slug, "-")
}

// CreateBlogPostRequest creates a blog post; when publish_at is in the future
// the scheduler flips it to published later.
type CreateBlogPostRequest struct {
	Title     string     `json:"title" binding:"required"`
	Slug      string     `json:"slug,omitempty"`
	Body      string     `json:"body" binding:"required"`
	CoverURL  *string    `json:"cover_url,omitempty"`
	PublishAt *time.Time `json:"publish_at,omitempty"`
}

// CreateBlogPost handles POST /api/v1/superadmin/blog
func (h *SuperadminHandler) CreateBlogPost(c *gin.Context) {
	var req CreateBlogPostRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	slug := req.Slug
	if slug == "" {
		slug = slugify(req.Title)
	}
	if slug == "" {
		respondBadRequest(c, "Title produces an empty slug")
		return
	}

	now := time.Now()
	post := &models.BlogPost{
		ID:        uuid.New(),
		Title:     req.Title,
		Slug:      slug,
		Body:      req.Body,
		CoverURL:  req.CoverURL,
		Published: req.PublishAt == nil || !req.PublishAt.After(now),
		PublishAt: req.PublishAt,
		CreatedAt: now,
	}

	if err := database.NewBlogPostRepository(h.db).Create(post); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, post)
}

// DeleteBlogPost handles DELETE /api/v1/superadmin/blog/:postID
func (h *SuperadminHandler) DeleteBlogPost(c *gin.Context) {
	id, ok := parseUUIDParam(c, "postID")
	if !ok {
		return
	}

	if err := database.NewBlogPostRepository(h.db).Delete(id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted"})
}

// DashboardStats handles GET /api/v1/superadmin/stats
func (h *SuperadminHandler) DashboardStats(c *gin.Context) {
	apartments, err := database.NewApartmentRepository(h.db).CountApartments()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	posts, err := database.NewBlogPostRepository(h.db).CountPublished()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"apartments":      apartments,
		"published_posts": posts,
	})
}

// TriggerMoveOuts handles POST /api/v1/superadmin/cron/move-outs
func (h *SuperadminHandler) TriggerMoveOuts(c *gin.Context) {
	h.cronSvc.RunDueMoveOutsNow()
	c.JSON(http.StatusOK, gin.H{"message": "Job triggered"})
}

// TriggerSubscriptionRoll handles POST /api/v1/superadmin/cron/subscriptions
func (h *SuperadminHandler) TriggerSubscriptionRoll(c *gin.Context) {
	h.cronSvc.RunSubscriptionRollNow()
	c.JSON(http.StatusOK, gin.H{"message": "Job triggered"})
}

// CronStatus handles GET /api/v1/superadmin/cron/status
func (h *SuperadminHandler) CronStatus(c *gin.Context) {
	c.JSON(http.StatusOK, h.cronSvc.GetJobStatus())
}
