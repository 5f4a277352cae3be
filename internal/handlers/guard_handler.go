package handlers

import (
	"net/http"
	"strings"
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

// GuardHandler serves the gate panel: registering visitor parties, the
// check-in/out ledger, gate pass verification and the who-is-inside boards.
type GuardHandler struct {
	db            database.DB
	checkInOutSvc *services.CheckInOutService
	occupancySvc  *services.OccupancyService
	notifier      *services.NotificationService
	logger        *logrus.Logger
}

// NewGuardHandler creates a new guard handler
func NewGuardHandler(db database.DB, checkInOutSvc *services.CheckInOutService, occupancySvc *services.OccupancyService, notifier *services.NotificationService, logger *logrus.Logger) *GuardHandler {
	return &GuardHandler{
		db:            db,
		checkInOutSvc: checkInOutSvc,
		occupancySvc:  occupancySvc,
		notifier:      notifier,
		logger:        logger,
	}
}

// RegisterPartyRequest records a walk-up party at the gate
type RegisterPartyRequest struct {
	Type   models.PartyType `json:"type" binding:"required"`
	FlatID *uuid.UUID       `json:"flat_id"`
	Name   string           `json:"name" binding:"required"`
	Phone  *string          `json:"phone"`
	Detail *string          `json:"detail"`
}

// RegisterParty handles POST /api/v1/guard/parties
func (h *GuardHandler) RegisterParty(c *gin.Context) {
	var req RegisterPartyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	party, err := h.checkInOutSvc.RegisterParty(middleware.ApartmentID(c), req.Type, req.FlatID, req.Name, req.Phone, req.Detail)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, party)
}

// ListParties handles GET /api/v1/guard/parties?type=delivery
func (h *GuardHandler) ListParties(c *gin.Context) {
	apartmentID := middleware.ApartmentID(c)
	params := pagination.FromValues(c.Request.URL.Query())
	repo := database.NewPartyRepository(h.db)

	var partyType *models.PartyType
	if t := c.Query("type"); t != "" {
		pt := models.PartyType(t)
		if !pt.Valid() {
			respondBadRequest(c, "Unknown party type")
			return
		}
		partyType = &pt
	}

	parties, err := repo.List(apartmentID, partyType, params.Limit, params.Offset())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	total, err := repo.Count(apartmentID, partyType)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, pagination.NewEnvelope(parties, total, params))
}

// GateEventRequest identifies the party a gate event applies to
type GateEventRequest struct {
	PartyType models.PartyType `json:"party_type" binding:"required"`
	PartyID   uuid.UUID        `json:"party_id" binding:"required"`
	Approved  bool             `json:"approved"`
}

func (r GateEventRequest) ref() models.PartyRef {
	return models.PartyRef{Type: r.PartyType, ID: r.PartyID}
}

// CheckIn handles POST /api/v1/guard/check-ins
func (h *GuardHandler) CheckIn(c *gin.Context) {
	var req GateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	event, err := h.checkInOutSvc.CheckIn(middleware.ApartmentID(c), req.ref(), req.Approved)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	go h.notifyArrival(req.PartyID)

	c.JSON(http.StatusCreated, event)
}

// notifyArrival pushes a heads-up to a flat's residents when a party tied to
// their flat checks in. Best effort.
func (h *GuardHandler) notifyArrival(partyID uuid.UUID) {
	party, err := database.NewPartyRepository(h.db).GetByID(partyID)
	if err != nil || party == nil || party.FlatID == nil {
		return
	}

	occupants, err := h.occupancySvc.ListFlatOccupants(h.db, *party.FlatID)
	if err != nil {
		h.logger.WithError(err).Warn("Failed to list occupants for arrival notification")
		return
	}

	ids := make([]uuid.UUID, 0, len(occupants))
	for _, o := range occupants {
		ids = append(ids, o.ClientID)
	}
	h.notifier.PushToClients(ids, "Visitor at the gate",
		party.Name+" has checked in", map[string]string{"party_id": party.ID.String()})
}

// CheckOut handles POST /api/v1/guard/check-outs
func (h *GuardHandler) CheckOut(c *gin.Context) {
	var req GateEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	event, err := h.checkInOutSvc.CheckOut(middleware.ApartmentID(c), req.ref())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, event)
}

// Inside handles GET /api/v1/guard/inside — every party whose latest ledger
// event is a check-in.
func (h *GuardHandler) Inside(c *gin.Context) {
	entries, err := h.checkInOutSvc.Inside(middleware.ApartmentID(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
}

// OutsideToday handles GET /api/v1/guard/outside-today — parties that checked
// out since local midnight, with visit durations where known.
func (h *GuardHandler) OutsideToday(c *gin.Context) {
	entries, err := h.checkInOutSvc.OutsideToday(middleware.ApartmentID(c), time.Now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": entries, "count": len(entries)})
}

// PartyHistory handles GET /api/v1/guard/parties/:partyID/history?type=guest
func (h *GuardHandler) PartyHistory(c *gin.Context) {
	partyID, ok := parseUUIDParam(c, "partyID")
	if !ok {
		return
	}

	partyType := models.PartyType(c.Query("type"))
	if !partyType.Valid() {
		respondBadRequest(c, "Unknown party type")
		return
	}

	params := pagination.FromValues(c.Request.URL.Query())

	events, err := h.checkInOutSvc.PartyHistory(middleware.ApartmentID(c), models.PartyRef{Type: partyType, ID: partyID}, params.Limit, params.Offset())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": events})
}

// VerifyGatePass handles GET /api/v1/guard/gate-passes/:code. A valid code
// resolves to the resident and flat it belongs to.
func (h *GuardHandler) VerifyGatePass(c *gin.Context) {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if code == "" {
		respondBadRequest(c, "Gate pass code is required")
		return
	}

	pass, err := database.NewGatePassRepository(h.db).GetByCode(middleware.ApartmentID(c), code)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if pass == nil {
		c.JSON(http.StatusNotFound, ErrorResponse{Status: "not_found", Message: "Invalid gate pass"})
		return
	}

	client, err := database.NewClientUserRepository(h.db).GetClientUserByID(pass.ClientID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	flat, err := database.NewFlatRepository(h.db).GetFlatByID(pass.FlatID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"pass":     pass,
		"resident": client,
		"flat":     flat,
	})
}

// Home handles GET /api/v1/guard/home — the gate panel's landing counts
func (h *GuardHandler) Home(c *gin.Context) {
	apartmentID := middleware.ApartmentID(c)

	inside, err := h.checkInOutSvc.Inside(apartmentID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	outside, err := h.checkInOutSvc.OutsideToday(apartmentID, time.Now())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"inside_count":        len(inside),
		"outside_today_count": len(outside),
	})
}
