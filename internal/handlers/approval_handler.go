package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/internal/middleware"
	"github.com/smartresidence/resident-backend/internal/services"
	"github.com/smartresidence/resident-backend/pkg/pagination"
)

// ApprovalHandler exposes the admin's occupancy-request queue: pending
// requests, approve/reject decisions and the per-flat decision history.
type ApprovalHandler struct {
	db          database.DB
	approvalSvc *services.ApprovalService
	logger      *logrus.Logger
}

// NewApprovalHandler creates a new approval handler
func NewApprovalHandler(db database.DB, approvalSvc *services.ApprovalService, logger *logrus.Logger) *ApprovalHandler {
	return &ApprovalHandler{
		db:          db,
		approvalSvc: approvalSvc,
		logger:      logger,
	}
}

// ListPending handles GET /api/v1/admin/requests
func (h *ApprovalHandler) ListPending(c *gin.Context) {
	params := pagination.FromValues(c.Request.URL.Query())

	requests, total, err := h.approvalSvc.ListPending(middleware.ApartmentID(c), params.Limit, params.Offset())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, pagination.NewEnvelope(requests, total, params))
}

// DecisionRequest carries the optional note shown to the requester
type DecisionRequest struct {
	Message *string `json:"message"`
}

// Approve handles POST /api/v1/admin/requests/:requestID/approve
func (h *ApprovalHandler) Approve(c *gin.Context) {
	requestID, ok := parseUUIDParam(c, "requestID")
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	if err := h.approvalSvc.Approve(requestID, req.Message); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Request approved"})
}

// Reject handles POST /api/v1/admin/requests/:requestID/reject
func (h *ApprovalHandler) Reject(c *gin.Context) {
	requestID, ok := parseUUIDParam(c, "requestID")
	if !ok {
		return
	}

	var req DecisionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	if err := h.approvalSvc.Reject(requestID, req.Message); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Request rejected"})
}

// FlatHistory handles GET /api/v1/admin/flats/:flatID/history. It returns
// resolved requests only, newest first.
func (h *ApprovalHandler) FlatHistory(c *gin.Context) {
	flatID, ok := parseUUIDParam(c, "flatID")
	if !ok {
		return
	}

	params := pagination.FromValues(c.Request.URL.Query())

	history, err := database.NewRequestRepository(h.db).ListHistoryByFlat(flatID, params.Limit, params.Offset())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": history})
}
