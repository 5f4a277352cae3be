package services

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/apperror"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/internal/models"
)

// ApprovalService runs the occupancy request queue: residents submit
// requests, admins approve or reject them, and approval executes the
// requested occupancy transition inside a single transaction.
type ApprovalService struct {
	db        database.DB
	occupancy *OccupancyService
	notifier  *NotificationService
	logger    *logrus.Logger
}

// NewApprovalService creates a new approval service
func NewApprovalService(db database.DB, occupancy *OccupancyService, notifier *NotificationService, logger *logrus.Logger) *ApprovalService {
	return &ApprovalService{
		db:        db,
		occupancy: occupancy,
		notifier:  notifier,
		logger:    logger,
	}
}

// SubmitRequest queues a pending occupancy request. At most one pending
// request per (flat, resident, type) may exist.
func (s *ApprovalService) SubmitRequest(apartmentID, flatID, clientID uuid.UUID, reqType models.RequestType, occType models.OccupantType, residing bool, moveOutDate *time.Time) (*models.OccupancyRequest, error) {
	if !reqType.Valid() {
		return nil, apperror.BadRequestf("unknown request type %q", reqType)
	}

	requestRepo := database.NewRequestRepository(s.db)
	occupancyRepo := database.NewOccupancyRepository(s.db)

	flat, err := database.NewFlatRepository(s.db).GetFlatByID(flatID)
	if err != nil {
		return nil, err
	}
	if flat == nil || flat.ApartmentID != apartmentID {
		return nil, apperror.NotFoundf("flat not found")
	}

	switch reqType {
	case models.RequestAddAccount, models.RequestMoveIn:
		if !occType.Valid() {
			return nil, apperror.BadRequestf("unknown occupant type %q", occType)
		}
		// Cheap pre-check; approval re-validates inside its transaction
		if occType.IsExclusive() {
			holder, err := occupancyRepo.GetByFlatAndType(flatID, occType)
			if err != nil {
				return nil, err
			}
			if holder != nil {
				return nil, apperror.Conflictf("flat already has a %s", occType)
			}
		}

	case models.RequestMoveOut:
		row, err := occupancyRepo.GetByFlatAndClient(flatID, clientID)
		if err != nil {
			return nil, err
		}
		if row == nil {
			return nil, apperror.BadRequestf("resident does not occupy this flat")
		}
		occType = row.Type
		if moveOutDate != nil && moveOutDate.Before(startOfDay(time.Now())) {
			return nil, apperror.BadRequestf("move-out date cannot be in the past")
		}

	case models.RequestBecomeOwner:
		row, err := occupancyRepo.GetByFlatAndClient(flatID, clientID)
		if err != nil {
			return nil, err
		}
		if row == nil || row.Type != models.OccupantTenant {
			return nil, apperror.BadRequestf("only the flat's tenant can request ownership")
		}
		occType = models.OccupantOwner
	}

	pending, err := requestRepo.HasPending(flatID, clientID, reqType)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, apperror.Conflictf("an identical request is already pending")
	}

	req := &models.OccupancyRequest{
		ID:           uuid.New(),
		ApartmentID:  apartmentID,
		FlatID:       flatID,
		ClientID:     clientID,
		RequestType:  reqType,
		OccupantType: occType,
		Residing:     residing,
		MoveOutDate:  moveOutDate,
		Status:       models.RequestPending,
		CreatedAt:    time.Now(),
	}

	if err := requestRepo.Create(req); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": req.ID,
		"flat_id":    flatID,
		"type":       reqType,
	}).Info("Occupancy request submitted")

	return req, nil
}

// Approve resolves a pending request and executes its occupancy transition.
// The whole thing runs in one transaction: if the transition can no longer be
// applied because the role has been filled in the meantime, the request row
// is deleted and a conflict is reported.
func (s *ApprovalService) Approve(requestID uuid.UUID, message *string) error {
	req, err := s.resolve(requestID, models.RequestApproved, message)
	if err != nil {
		return err
	}

	title, body := requestDecisionBody(true, req.FlatID.String())
	s.notifier.PushToClient(req.ClientID, title, body, map[string]string{"request_id": req.ID.String()})

	return nil
}

// Reject resolves a pending request without side effects. A rejection must
// carry a message so the resident learns why.
func (s *ApprovalService) Reject(requestID uuid.UUID, message *string) error {
	if message == nil || strings.TrimSpace(*message) == "" {
		return apperror.BadRequestf("a rejection message is required")
	}

	req, err := s.resolve(requestID, models.RequestRejected, message)
	if err != nil {
		return err
	}

	title, body := requestDecisionBody(false, req.FlatID.String())
	s.notifier.PushToClient(req.ClientID, title, body, map[string]string{"request_id": req.ID.String()})

	return nil
}

// resolve moves a request to a terminal status, applying side effects for
// approvals, and returns the request for post-commit notification.
func (s *ApprovalService) resolve(requestID uuid.UUID, status models.RequestStatus, message *string) (*models.OccupancyRequest, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	requestRepo := database.NewRequestRepository(tx)

	req, err := requestRepo.GetByID(requestID)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, apperror.NotFoundf("request not found")
	}
	if req.Status.Terminal() {
		return nil, apperror.BadRequestf("request is already %s", req.Status)
	}

	var executedAt *time.Time

	if status == models.RequestApproved {
		executed, err := s.execute(tx, req)
		if err != nil {
			if apperror.IsKind(err, apperror.Conflict) {
				// The requested role got filled before approval; the dead
				// request must not linger in the queue.
				s.discard(requestID)
			}
			return nil, err
		}
		if executed {
			now := time.Now()
			executedAt = &now
		}
	}

	resolved, err := requestRepo.Resolve(requestID, status, message, executedAt)
	if err != nil {
		return nil, err
	}
	if !resolved {
		return nil, apperror.BadRequestf("request is no longer pending")
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	s.logger.WithFields(logrus.Fields{
		"request_id": requestID,
		"status":     status,
	}).Info("Occupancy request resolved")

	return req, nil
}

// execute applies an approved request's occupancy transition. Returns whether
// the side effects ran now (deferred move-outs return false and are executed
// by the scheduler on their date).
func (s *ApprovalService) execute(tx *sqlx.Tx, req *models.OccupancyRequest) (bool, error) {
	switch req.RequestType {
	case models.RequestAddAccount, models.RequestMoveIn:
		_, err := s.occupancy.AssignOccupant(tx, req.ApartmentID, req.FlatID, req.ClientID, req.OccupantType, req.Residing)
		return err == nil, err

	case models.RequestBecomeOwner:
		err := s.occupancy.PromoteToOwner(tx, req.FlatID, req.ClientID)
		return err == nil, err

	case models.RequestMoveOut:
		if req.MoveOutDate != nil && req.MoveOutDate.After(time.Now()) {
			return false, nil // executed later by the scheduler
		}
		return true, s.vacateWithHistory(tx, req)

	default:
		return false, apperror.BadRequestf("unknown request type %q", req.RequestType)
	}
}

// vacateWithHistory removes the requester from the flat and writes resolved
// history rows for the family members removed alongside them.
func (s *ApprovalService) vacateWithHistory(tx *sqlx.Tx, req *models.OccupancyRequest) error {
	removed, err := s.occupancy.Vacate(tx, req.FlatID, req.ClientID)
	if err != nil {
		return err
	}

	requestRepo := database.NewRequestRepository(tx)
	now := time.Now()

	for _, row := range removed {
		if row.ClientID == req.ClientID {
			continue // the request row itself records the requester
		}

		history := &models.OccupancyRequest{
			ID:           uuid.New(),
			ApartmentID:  req.ApartmentID,
			FlatID:       req.FlatID,
			ClientID:     row.ClientID,
			RequestType:  models.RequestMoveOut,
			OccupantType: row.Type,
			Residing:     row.Residing,
			Status:       models.RequestApproved,
			DecidedAt:    &now,
			ExecutedAt:   &now,
			CreatedAt:    now,
		}
		if err := requestRepo.InsertResolved(history); err != nil {
			return err
		}
	}

	return nil
}

// discard deletes a request outside the failed transaction
func (s *ApprovalService) discard(requestID uuid.UUID) {
	if err := database.NewRequestRepository(s.db).Delete(requestID); err != nil {
		s.logger.WithError(err).WithField("request_id", requestID).Warn("Failed to discard stale request")
	}
}

// ExecuteDueMoveOuts runs the deferred move-outs whose date has arrived.
// Each request executes in its own transaction so one failure does not block
// the rest; executed_at makes reruns idempotent.
func (s *ApprovalService) ExecuteDueMoveOuts(asOf time.Time) (int, error) {
	due, err := database.NewRequestRepository(s.db).ListDueMoveOuts(asOf)
	if err != nil {
		return 0, err
	}

	executed := 0
	for _, req := range due {
		if err := s.executeDueMoveOut(req); err != nil {
			s.logger.WithError(err).WithField("request_id", req.ID).Warn("Failed to execute due move-out")
			continue
		}
		executed++

		s.notifier.PushToClient(req.ClientID, "Move-out completed",
			"Your scheduled move-out has been completed.", map[string]string{"request_id": req.ID.String()})
	}

	return executed, nil
}

func (s *ApprovalService) executeDueMoveOut(req *models.OccupancyRequest) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.vacateWithHistory(tx, req); err != nil {
		// Already vacated by another path; mark executed so the scheduler
		// stops retrying.
		if apperror.IsKind(err, apperror.NotFound) {
			if err := database.NewRequestRepository(tx).MarkExecuted(req.ID); err != nil {
				return err
			}
			return tx.Commit()
		}
		return err
	}

	if err := database.NewRequestRepository(tx).MarkExecuted(req.ID); err != nil {
		return err
	}

	return tx.Commit()
}

// AdminAssign places a resident into a flat directly, bypassing the queue.
// A resolved history row is written so the audit trail stays complete.
func (s *ApprovalService) AdminAssign(apartmentID, flatID, clientID uuid.UUID, occType models.OccupantType, residing bool) (*models.FlatCurrentClient, error) {
	tx, err := s.db.Beginx()
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	flat, err := database.NewFlatRepository(tx).GetFlatByID(flatID)
	if err != nil {
		return nil, err
	}
	if flat == nil || flat.ApartmentID != apartmentID {
		return nil, apperror.NotFoundf("flat not found")
	}

	row, err := s.occupancy.AssignOccupant(tx, apartmentID, flatID, clientID, occType, residing)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	history := &models.OccupancyRequest{
		ID:           uuid.New(),
		ApartmentID:  apartmentID,
		FlatID:       flatID,
		ClientID:     clientID,
		RequestType:  models.RequestMoveIn,
		OccupantType: occType,
		Residing:     residing,
		Status:       models.RequestApproved,
		DecidedAt:    &now,
		ExecutedAt:   &now,
		CreatedAt:    now,
	}
	if err := database.NewRequestRepository(tx).InsertResolved(history); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return row, nil
}

// AdminVacate removes a resident (and their family, when they hold a primary
// role) on the admin's authority. Same vacate path the approval queue and the
// scheduler use; the history rows carry a move_out record for everyone
// removed, the subject included since no request row exists.
func (s *ApprovalService) AdminVacate(apartmentID, flatID, clientID uuid.UUID) error {
	tx, err := s.db.Beginx()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	removed, err := s.occupancy.Vacate(tx, flatID, clientID)
	if err != nil {
		return err
	}

	requestRepo := database.NewRequestRepository(tx)
	now := time.Now()
	message := "removed by apartment admin"

	for _, row := range removed {
		if row.ApartmentID != apartmentID {
			return apperror.NotFoundf("flat not found")
		}

		history := &models.OccupancyRequest{
			ID:           uuid.New(),
			ApartmentID:  row.ApartmentID,
			FlatID:       row.FlatID,
			ClientID:     row.ClientID,
			RequestType:  models.RequestMoveOut,
			OccupantType: row.Type,
			Residing:     row.Residing,
			Status:       models.RequestApproved,
			Message:      &message,
			DecidedAt:    &now,
			ExecutedAt:   &now,
			CreatedAt:    now,
		}
		if err := requestRepo.InsertResolved(history); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	for _, row := range removed {
		s.notifier.PushToClient(row.ClientID, "Residency ended",
			"You have been removed from your flat by the apartment admin.", nil)
	}

	return nil
}

// ListPending returns an apartment's pending queue page plus the total count
func (s *ApprovalService) ListPending(apartmentID uuid.UUID, limit, offset int) ([]*models.OccupancyRequest, int, error) {
	requestRepo := database.NewRequestRepository(s.db)

	requests, err := requestRepo.ListPending(apartmentID, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := requestRepo.CountPending(apartmentID)
	if err != nil {
		return nil, 0, err
	}

	return requests, total, nil
}

// startOfDay truncates t to local midnight
func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
