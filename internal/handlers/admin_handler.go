package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/config"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/internal/middleware"
	"github.com/smartresidence/resident-backend/internal/models"
	"github.com/smartresidence/resident-backend/internal/services"
	"github.com/smartresidence/resident-backend/pkg/pagination"
	"github.com/smartresidence/resident-backend/pkg/validator"
	"golang.org/x/crypto/bcrypt"
)

// AdminHandler serves the apartment-admin panel: building structure,
// residents, guard accounts, notices and maintenance tickets. Every query is
// scoped to the apartment carried in the admin's token.
type AdminHandler struct {
	db             database.DB
	approvalSvc    *services.ApprovalService
	occupancySvc   *services.OccupancyService
	notifier       *services.NotificationService
	phoneValidator *validator.PhoneValidator
	config         *config.Config
	logger         *logrus.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(
	db database.DB,
	approvalSvc *services.ApprovalService,
	occupancySvc *services.OccupancyService,
	notifier *services.NotificationService,
	phoneValidator *validator.PhoneValidator,
	cfg *config.Config,
	logger *logrus.Logger,
) *AdminHandler {
	return &AdminHandler{
		db:             db,
		approvalSvc:    approvalSvc,
		occupancySvc:   occupancySvc,
		notifier:       notifier,
		phoneValidator: phoneValidator,
		config:         cfg,
		logger:         logger,
	}
}

// NameRequest is the shared body for creating blocks, floors and offline residents
type NameRequest struct {
	Name string `json:"name" binding:"required"`
}

// CreateBlock handles POST /api/v1/admin/blocks
func (h *AdminHandler) CreateBlock(c *gin.Context) {
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	block, err := database.NewFlatRepository(h.db).CreateBlock(middleware.ApartmentID(c), req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, block)
}

// ListBlocks handles GET /api/v1/admin/blocks
func (h *AdminHandler) ListBlocks(c *gin.Context) {
	blocks, err := database.NewFlatRepository(h.db).ListBlocks(middleware.ApartmentID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": blocks})
}

// CreateFloor handles POST /api/v1/admin/blocks/:blockID/floors
func (h *AdminHandler) CreateFloor(c *gin.Context) {
	blockID, ok := parseUUIDParam(c, "blockID")
	if !ok {
		return
	}

	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	floor, err := database.NewFlatRepository(h.db).CreateFloor(blockID, req.Name)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, floor)
}

// ListFloors handles GET /api/v1/admin/blocks/:blockID/floors
func (h *AdminHandler) ListFloors(c *gin.Context) {
	blockID, ok := parseUUIDParam(c, "blockID")
	if !ok {
		return
	}

	floors, err := database.NewFlatRepository(h.db).ListFloors(blockID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": floors})
}

// CreateFlatRequest adds a unit to a floor
type CreateFlatRequest struct {
	FloorID uuid.UUID `json:"floor_id" binding:"required"`
	Number  string    `json:"number" binding:"required"`
}

// CreateFlat handles POST /api/v1/admin/flats
func (h *AdminHandler) CreateFlat(c *gin.Context) {
	var req CreateFlatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	flat, err := database.NewFlatRepository(h.db).CreateFlat(middleware.ApartmentID(c), req.FloorID, req.Number)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, flat)
}

// ListFlats handles GET /api/v1/admin/flats
func (h *AdminHandler) ListFlats(c *gin.Context) {
	apartmentID := middleware.ApartmentID(c)
	params := pagination.FromValues(c.Request.URL.Query())
	repo := database.NewFlatRepository(h.db)

	flats, err := repo.ListFlats(apartmentID, params.Limit, params.Offset())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	total, err := repo.CountFlats(apartmentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, pagination.NewEnvelope(flats, total, params))
}

// ArchiveFlat handles DELETE /api/v1/admin/flats/:flatID. Archived flats keep
// their history but leave the listings. A flat with occupants cannot be
// archived.
func (h *AdminHandler) ArchiveFlat(c *gin.Context) {
	flatID, ok := parseUUIDParam(c, "flatID")
	if !ok {
		return
	}

	occupants, err := h.occupancySvc.ListFlatOccupants(h.db, flatID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if len(occupants) > 0 {
		c.JSON(http.StatusConflict, ErrorResponse{
			Status:  "conflict",
			Message: "Flat still has occupants; vacate them first",
		})
		return
	}

	if err := database.NewFlatRepository(h.db).ArchiveFlat(flatID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Flat archived"})
}

// ListFlatOccupants handles GET /api/v1/admin/flats/:flatID/occupants
func (h *AdminHandler) ListFlatOccupants(c *gin.Context) {
	flatID, ok := parseUUIDParam(c, "flatID")
	if !ok {
		return
	}

	occupants, err := h.occupancySvc.ListFlatOccupants(h.db, flatID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": occupants})
}

// ListResidents handles GET /api/v1/admin/residents
func (h *AdminHandler) ListResidents(c *gin.Context) {
	apartmentID := middleware.ApartmentID(c)
	params := pagination.FromValues(c.Request.URL.Query())
	repo := database.NewClientUserRepository(h.db)

	residents, err := repo.ListClientUsers(apartmentID, params.Limit, params.Offset())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	total, err := repo.CountClientUsers(apartmentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, pagination.NewEnvelope(residents, total, params))
}

// CreateOfflineResident handles POST /api/v1/admin/residents/offline.
// Offline residents are proxy records for people without the app; they carry
// a synthetic contact id instead of a phone number and can never log in.
func (h *AdminHandler) CreateOfflineResident(c *gin.Context) {
	var req NameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	syntheticID := "offline-" + uuid.NewString()
	resident, err := database.NewClientUserRepository(h.db).CreateOfflineClientUser(middleware.ApartmentID(c), req.Name, syntheticID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, resident)
}

// AssignOccupantRequest places a resident into a flat directly, bypassing the
// request queue
type AssignOccupantRequest struct {
	FlatID   uuid.UUID           `json:"flat_id" binding:"required"`
	ClientID uuid.UUID           `json:"client_id" binding:"required"`
	Type     models.OccupantType `json:"type" binding:"required"`
	Residing bool                `json:"residing"`
}

// AssignOccupant handles POST /api/v1/admin/occupancies
func (h *AdminHandler) AssignOccupant(c *gin.Context) {
	var req AssignOccupantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	row, err := h.approvalSvc.AdminAssign(middleware.ApartmentID(c), req.FlatID, req.ClientID, req.Type, req.Residing)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, row)
}

// VacateOccupant handles DELETE /api/v1/admin/flats/:flatID/occupants/:clientID
func (h *AdminHandler) VacateOccupant(c *gin.Context) {
	flatID, ok := parseUUIDParam(c, "flatID")
	if !ok {
		return
	}
	clientID, ok := parseUUIDParam(c, "clientID")
	if !ok {
		return
	}

	if err := h.approvalSvc.AdminVacate(middleware.ApartmentID(c), flatID, clientID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Occupant removed"})
}

// CreateGuardRequest creates a gate-panel account
type CreateGuardRequest struct {
	Name     string `json:"name" binding:"required"`
	Phone    string `json:"phone" binding:"required"`
	Password string `json:"password" binding:"required,min=8"`
}

// CreateGuard handles POST /api/v1/admin/guards
func (h *AdminHandler) CreateGuard(c *gin.Context) {
	var req CreateGuardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	phone, err := h.phoneValidator.Validate(req.Phone)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Status:  "invalid_phone",
			Message: err.Error(),
		})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), h.config.Auth.BcryptCost)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	guard, err := database.NewGuardRepository(h.db).CreateGuard(middleware.ApartmentID(c), req.Name, phone, string(hash))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, guard)
}

// ListGuards handles GET /api/v1/admin/guards
func (h *AdminHandler) ListGuards(c *gin.Context) {
	guards, err := database.NewGuardRepository(h.db).ListGuards(middleware.ApartmentID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": guards})
}

// DeleteGuard handles DELETE /api/v1/admin/guards/:guardID
func (h *AdminHandler) DeleteGuard(c *gin.Context) {
	guardID, ok := parseUUIDParam(c, "guardID")
	if !ok {
		return
	}

	repo := database.NewGuardRepository(h.db)

	guard, err := repo.GetGuardByID(guardID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if guard == nil || guard.ApartmentID != middleware.ApartmentID(c) {
		c.JSON(http.StatusNotFound, ErrorResponse{Status: "not_found", Message: "Guard not found"})
		return
	}

	if err := repo.DeleteGuard(guardID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Guard deleted"})
}

// CreateNoticeRequest posts an apartment-wide announcement
type CreateNoticeRequest struct {
	Title string `json:"title" binding:"required"`
	Body  string `json:"body" binding:"required"`
}

// CreateNotice handles POST /api/v1/admin/notices. Every resident of the
// apartment gets a push notification.
func (h *AdminHandler) CreateNotice(c *gin.Context) {
	apartmentID := middleware.ApartmentID(c)

	var req CreateNoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	notice := &models.Notice{
		ID:          uuid.New(),
		ApartmentID: apartmentID,
		Title:       req.Title,
		Body:        req.Body,
		CreatedAt:   time.Now(),
	}

	if err := database.NewNoticeRepository(h.db).Create(notice); err != nil {
		respondError(c, h.logger, err)
		return
	}

	go h.notifyResidents(apartmentID, notice.Title, notice.Body)

	c.JSON(http.StatusCreated, notice)
}

// notifyResidents pushes a notice to every resident of the apartment,
// paging through the roster. Best effort; failures are logged and skipped.
func (h *AdminHandler) notifyResidents(apartmentID uuid.UUID, title, body string) {
	repo := database.NewClientUserRepository(h.db)

	total, err := repo.CountClientUsers(apartmentID)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to count residents for notice fan-out")
		return
	}

	for offset := 0; offset < total; offset += 200 {
		residents, err := repo.ListClientUsers(apartmentID, 200, offset)
		if err != nil {
			h.logger.WithError(err).Warn("Failed to page residents for notice fan-out")
			return
		}

		ids := make([]uuid.UUID, 0, len(residents))
		for _, r := range residents {
			ids = append(ids, r.ID)
		}
		h.notifier.PushToClients(ids, title, body, map[string]string{"type": "notice"})
	}
}

// ListNotices handles GET /api/v1/admin/notices
func (h *AdminHandler) ListNotices(c *gin.Context) {
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

// DeleteNotice handles DELETE /api/v1/admin/notices/:noticeID
func (h *AdminHandler) DeleteNotice(c *gin.Context) {
	noticeID, ok := parseUUIDParam(c, "noticeID")
	if !ok {
		return
	}

	repo := database.NewNoticeRepository(h.db)

	notice, err := repo.GetByID(noticeID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if notice == nil || notice.ApartmentID != middleware.ApartmentID(c) {
		c.JSON(http.StatusNotFound, ErrorResponse{Status: "not_found", Message: "Notice not found"})
		return
	}

	if err := repo.Delete(noticeID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Notice deleted"})
}

// ListTickets handles GET /api/v1/admin/tickets?status=open
func (h *AdminHandler) ListTickets(c *gin.Context) {
	apartmentID := middleware.ApartmentID(c)
	params := pagination.FromValues(c.Request.URL.Query())
	repo := database.NewTicketRepository(h.db)

	var status *models.TicketStatus
	if s := c.Query("status"); s != "" {
		ts := models.TicketStatus(s)
		if ts != models.TicketOpen && ts != models.TicketInProgress && ts != models.TicketClosed {
			respondBadRequest(c, "Unknown ticket status")
			return
		}
		status = &ts
	}

	tickets, err := repo.ListByApartment(apartmentID, status, params.Limit, params.Offset())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	total, err := repo.CountByApartment(apartmentID, status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, pagination.NewEnvelope(tickets, total, params))
}

// UpdateTicketStatusRequest moves a ticket along its lifecycle
type UpdateTicketStatusRequest struct {
	Status models.TicketStatus `json:"status" binding:"required"`
}

// UpdateTicketStatus handles PATCH /api/v1/admin/tickets/:ticketID/status.
// The reporting resident is notified of the change.
func (h *AdminHandler) UpdateTicketStatus(c *gin.Context) {
	ticketID, ok := parseUUIDParam(c, "ticketID")
	if !ok {
		return
	}

	var req UpdateTicketStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	if req.Status != models.TicketOpen && req.Status != models.TicketInProgress && req.Status != models.TicketClosed {
		respondBadRequest(c, "Unknown ticket status")
		return
	}

	repo := database.NewTicketRepository(h.db)

	ticket, err := repo.GetByID(ticketID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if ticket == nil || ticket.ApartmentID != middleware.ApartmentID(c) {
		c.JSON(http.StatusNotFound, ErrorResponse{Status: "not_found", Message: "Ticket not found"})
		return
	}

	if err := repo.UpdateStatus(ticketID, req.Status); err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.notifier.PushToClient(ticket.ClientID, "Ticket updated",
		"Your maintenance ticket is now "+string(req.Status), map[string]string{"ticket_id": ticket.ID.String()})

	c.JSON(http.StatusOK, gin.H{"message": "Ticket updated"})
}

// ListGatePasses handles GET /api/v1/admin/flats/:flatID/gate-passes
func (h *AdminHandler) ListGatePasses(c *gin.Context) {
	flatID, ok := parseUUIDParam(c, "flatID")
	if !ok {
		return
	}

	passes, err := database.NewGatePassRepository(h.db).ListByFlat(flatID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": passes})
}
