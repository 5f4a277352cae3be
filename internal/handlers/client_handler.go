package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/internal/middleware"
	"github.com/smartresidence/resident-backend/internal/models"
	"github.com/smartresidence/resident-backend/internal/services"
	"github.com/smartresidence/resident-backend/pkg/pagination"
)

// ClientHandler serves the resident app: the resident's flats and gate
// passes, occupancy requests, visitors, maintenance tickets and notices.
type ClientHandler struct {
	db           database.DB
	occupancySvc *services.OccupancyService
	approvalSvc  *services.ApprovalService
	notifier     *services.NotificationService
	logger       *logrus.Logger
}

// NewClientHandler creates a new client handler
func NewClientHandler(db database.DB, occupancySvc *services.OccupancyService, approvalSvc *services.ApprovalService, notifier *services.NotificationService, logger *logrus.Logger) *ClientHandler {
	return &ClientHandler{
		db:           db,
		occupancySvc: occupancySvc,
		approvalSvc:  approvalSvc,
		notifier:     notifier,
		logger:       logger,
	}
}

// MyFlats handles GET /api/v1/client/flats — every flat the resident
// currently belongs to, with their role in each.
func (h *ClientHandler) MyFlats(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	rows, err := h.occupancySvc.ListClientFlats(h.db, identity.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": rows})
}

// flatRole returns the resident's occupancy row for a flat, or nil
func (h *ClientHandler) flatRole(clientID, flatID uuid.UUID) (*models.FlatCurrentClient, error) {
	rows, err := h.occupancySvc.ListClientFlats(h.db, clientID)
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		if row.FlatID == flatID {
			return row, nil
		}
	}
	return nil, nil
}

// MyGatePass handles GET /api/v1/client/flats/:flatID/gate-pass
func (h *ClientHandler) MyGatePass(c *gin.Context) {
	flatID, ok := parseUUIDParam(c, "flatID")
	if !ok {
		return
	}

	identity := middleware.MustGetIdentity(c)

	pass, err := database.NewGatePassRepository(h.db).GetByClient(flatID, identity.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if pass == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Status: "not_found", Message: "No gate pass for this flat"})
		return
	}

	c.JSON(http.StatusOK, pass)
}

// SubmitOccupancyRequest asks the admin for an occupancy change
type SubmitOccupancyRequest struct {
	FlatID      uuid.UUID           `json:"flat_id" binding:"required"`
	Type        models.RequestType  `json:"type" binding:"required"`
	OccupTy     models.OccupantType `json:"occupant_type"`
	Residing    bool                `json:"residing"`
	MoveOutDate *time.Time          `json:"move_out_date"`
}

// SubmitRequest handles POST /api/v1/client/requests
func (h *ClientHandler) SubmitRequest(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	var req SubmitOccupancyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	request, err := h.approvalSvc.SubmitRequest(middleware.ApartmentID(c), req.FlatID, identity.UserID, req.Type, req.OccupTy, req.Residing, req.MoveOutDate)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, request)
}

// MyRequests handles GET /api/v1/client/requests — the resident's pending and
// resolved requests, newest first.
func (h *ClientHandler) MyRequests(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)
	params := pagination.FromValues(c.Request.URL.Query())

	requests, err := database.NewRequestRepository(h.db).ListByClient(identity.UserID, params.Limit, params.Offset())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": requests})
}

// MyVisitors handles GET /api/v1/client/flats/:flatID/visitors — parties the
// gate registered against one of the resident's flats.
func (h *ClientHandler) MyVisitors(c *gin.Context) {
	flatID, ok := parseUUIDParam(c, "flatID")
	if !ok {
		return
	}

	identity := middleware.MustGetIdentity(c)

	role, err := h.flatRole(identity.UserID, flatID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if role == nil {
		c.JSON(http.StatusForbidden, ErrorResponse{Status: "forbidden", Message: "You do not belong to this flat"})
		return
	}

	params := pagination.FromValues(c.Request.URL.Query())

	parties, err := database.NewPartyRepository(h.db).ListByFlat(flatID, params.Limit, params.Offset())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": parties})
}

// UpdateProfileRequest edits the resident's own profile
type UpdateProfileRequest struct {
	Name     string  `json:"name" binding:"required"`
	Email    *string `json:"email"`
	PhotoURL *string `json:"photo_url"`
}

// UpdateProfile handles PUT /api/v1/client/profile
func (h *ClientHandler) UpdateProfile(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	repo := database.NewClientUserRepository(h.db)

	if err := repo.UpdateProfile(identity.UserID, req.Name, req.Email, req.PhotoURL); err != nil {
		respondError(c, h.logger, err)
		return
	}

	client, err := repo.GetClientUserByID(identity.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, client)
}

// GetProfile handles GET /api/v1/client/profile
func (h *ClientHandler) GetProfile(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	client, err := database.NewClientUserRepository(h.db).GetClientUserByID(identity.UserID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if client == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Status: "not_found", Message: "Account not found"})
		return
	}

	c.JSON(http.StatusOK, client)
}

// FCMTokenRequest registers or removes a device push token
type FCMTokenRequest struct {
	Token string `json:"token" binding:"required"`
}

// AddFCMToken handles POST /api/v1/client/fcm-tokens
func (h *ClientHandler) AddFCMToken(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	var req FCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	if err := database.NewClientUserRepository(h.db).AddFCMToken(identity.UserID, req.Token); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Device registered"})
}

// RemoveFCMToken handles DELETE /api/v1/client/fcm-tokens
func (h *ClientHandler) RemoveFCMToken(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	var req FCMTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	if err := database.NewClientUserRepository(h.db).RemoveFCMToken(identity.UserID, req.Token); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Device removed"})
}

// CreateTicketRequest reports a maintenance issue in one of the resident's flats
type CreateTicketRequest struct {
	FlatID   uuid.UUID `json:"flat_id" binding:"required"`
	Title    string    `json:"title" binding:"required"`
	Body     string    `json:"body" binding:"required"`
	PhotoURL *string   `json:"photo_url"`
}

// CreateTicket handles POST /api/v1/client/tickets
func (h *ClientHandler) CreateTicket(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)

	var req CreateTicketRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	role, err := h.flatRole(identity.UserID, req.FlatID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if role == nil {
		c.JSON(http.StatusForbidden, ErrorResponse{Status: "forbidden", Message: "You do not belong to this flat"})
		return
	}

	now := time.Now()
	ticket := &models.MaintenanceTicket{
		ID:          uuid.New(),
		ApartmentID: middleware.ApartmentID(c),
		FlatID:      req.FlatID,
		ClientID:    identity.UserID,
		Title:       req.Title,
		Body:        req.Body,
		PhotoURL:    req.PhotoURL,
		Status:      models.TicketOpen,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := database.NewTicketRepository(h.db).Create(ticket); err != nil {
		respondError(c, h.logger, err)
		return
	}

	go h.notifier.EmailApartmentAdmins(ticket.ApartmentID, "New maintenance ticket",
		"A resident reported: "+ticket.Title, "")

	c.JSON(http.StatusCreated, ticket)
}

// MyTickets handles GET /api/v1/client/tickets
func (h *ClientHandler) MyTickets(c *gin.Context) {
	identity := middleware.MustGetIdentity(c)
	params := pagination.FromValues(c.Request.URL.Query())

	tickets, err := database.NewTicketRepository(h.db).ListByClient(identity.UserID, params.Limit, params.Offset())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": tickets})
}

// ListNotices handles GET /api/v1/client/notices
func (h *ClientHandler) ListNotices(c *gin.Context) {
	apartmentID := middleware.ApartmentID(c)
	params := pagination.FromValues(c.Request.URL.Query())
	repo := database.NewNoticeRepository(h.db)

	notices, err := repo.List(apartmentID, params.Limit, params.Offset())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	total, err := repo.Count(apartmentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, pagination.NewEnvelope(notices, total, params))
}
