package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartresidence/resident-backend/internal/models"
)

// RequestRepository handles occupancy requests: the pending approval queue
// and, once resolved, the immutable occupancy history.
type RequestRepository struct {
	db Queryer
}

// NewRequestRepository creates a new request repository
func NewRequestRepository(db Queryer) *RequestRepository {
	return &RequestRepository{db: db}
}

const requestColumns = `
	id, apartment_id, flat_id, client_id, request_type, occupant_type,
	residing, move_out_date, status, message, decided_at, executed_at, created_at
`

// Create inserts a pending request
func (r *RequestRepository) Create(req *models.OccupancyRequest) error {
	query := `
		INSERT INTO occupancy_requests (
			id, apartment_id, flat_id, client_id, request_type, occupant_type,
			residing, move_out_date, status, message, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(
		query,
		req.ID,
		req.ApartmentID,
		req.FlatID,
		req.ClientID,
		req.RequestType,
		req.OccupantType,
		req.Residing,
		req.MoveOutDate,
		req.Status,
		req.Message,
		req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create occupancy request: %w", err)
	}

	return nil
}

// GetByID retrieves a request by ID
func (r *RequestRepository) GetByID(id uuid.UUID) (*models.OccupancyRequest, error) {
	var req models.OccupancyRequest

	query := `SELECT ` + requestColumns + ` FROM occupancy_requests WHERE id = $1`

	err := r.db.Get(&req, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Request not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get occupancy request by ID: %w", err)
	}

	return &req, nil
}

// HasPending reports whether an unresolved request of the same type already
// exists for the (flat, person) pair.
func (r *RequestRepository) HasPending(flatID, clientID uuid.UUID, requestType models.RequestType) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM occupancy_requests
			WHERE flat_id = $1 AND client_id = $2 AND request_type = $3 AND status = 'pending'
		)
	`

	var exists bool
	err := r.db.QueryRow(query, flatID, clientID, requestType).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check pending request: %w", err)
	}

	return exists, nil
}

// ListPending retrieves pending requests of an apartment with pagination
func (r *RequestRepository) ListPending(apartmentID uuid.UUID, limit, offset int) ([]*models.OccupancyRequest, error) {
	var requests []*models.OccupancyRequest

	query := `
		SELECT ` + requestColumns + `
		FROM occupancy_requests
		WHERE apartment_id = $1 AND status = 'pending'
		ORDER BY created_at
		LIMIT $2 OFFSET $3
	`

	err := r.db.Select(&requests, query, apartmentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending requests: %w", err)
	}

	return requests, nil
}

// CountPending returns the number of pending requests of an apartment
func (r *RequestRepository) CountPending(apartmentID uuid.UUID) (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM occupancy_requests WHERE apartment_id = $1 AND status = 'pending'`

	err := r.db.QueryRow(query, apartmentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count pending requests: %w", err)
	}

	return count, nil
}

// ListHistoryByFlat retrieves resolved requests of a flat (occupancy history)
func (r *RequestRepository) ListHistoryByFlat(flatID uuid.UUID, limit, offset int) ([]*models.OccupancyRequest, error) {
	var requests []*models.OccupancyRequest

	query := `
		SELECT ` + requestColumns + `
		FROM occupancy_requests
		WHERE flat_id = $1 AND status <> 'pending'
		ORDER BY decided_at DESC NULLS LAST
		LIMIT $2 OFFSET $3
	`

	err := r.db.Select(&requests, query, flatID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list request history: %w", err)
	}

	return requests, nil
}

// ListByClient retrieves a resident's own requests, newest first
func (r *RequestRepository) ListByClient(clientID uuid.UUID, limit, offset int) ([]*models.OccupancyRequest, error) {
	var requests []*models.OccupancyRequest

	query := `
		SELECT ` + requestColumns + `
		FROM occupancy_requests
		WHERE client_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	err := r.db.Select(&requests, query, clientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list requests by client: %w", err)
	}

	return requests, nil
}

// Resolve moves a pending request to a terminal status. The WHERE clause
// guards the state machine: resolving an already-resolved row affects
// nothing and the caller treats that as an invalid transition.
func (r *RequestRepository) Resolve(id uuid.UUID, status models.RequestStatus, message *string, executedAt *time.Time) (bool, error) {
	query := `
		UPDATE occupancy_requests
		SET status = $1,
		    message = COALESCE($2, message),
		    decided_at = $3,
		    executed_at = $4
		WHERE id = $5 AND status = 'pending'
	`

	result, err := r.db.Exec(query, status, message, time.Now(), executedAt, id)
	if err != nil {
		return false, fmt.Errorf("failed to resolve occupancy request: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected > 0, nil
}

// MarkExecuted stamps an approved request as executed (deferred move-out)
func (r *RequestRepository) MarkExecuted(id uuid.UUID) error {
	query := `UPDATE occupancy_requests SET executed_at = $1 WHERE id = $2 AND executed_at IS NULL`

	_, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to mark request executed: %w", err)
	}

	return nil
}

// InsertResolved writes a history row directly in a terminal state. Used for
// the family members removed alongside a vacating primary resident.
func (r *RequestRepository) InsertResolved(req *models.OccupancyRequest) error {
	query := `
		INSERT INTO occupancy_requests (
			id, apartment_id, flat_id, client_id, request_type, occupant_type,
			residing, move_out_date, status, message, decided_at, executed_at, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.db.Exec(
		query,
		req.ID,
		req.ApartmentID,
		req.FlatID,
		req.ClientID,
		req.RequestType,
		req.OccupantType,
		req.Residing,
		req.MoveOutDate,
		req.Status,
		req.Message,
		req.DecidedAt,
		req.ExecutedAt,
		req.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert resolved request: %w", err)
	}

	return nil
}

// Delete removes a request row. Only used when approval fails because the
// requested role is already filled; the queue must not keep a dead request.
func (r *RequestRepository) Delete(id uuid.UUID) error {
	query := `DELETE FROM occupancy_requests WHERE id = $1`

	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete occupancy request: %w", err)
	}

	return nil
}

// ListDueMoveOuts returns approved, not-yet-executed move-out requests whose
// date has arrived.
func (r *RequestRepository) ListDueMoveOuts(asOf time.Time) ([]*models.OccupancyRequest, error) {
	var requests []*models.OccupancyRequest

	query := `
		SELECT ` + requestColumns + `
		FROM occupancy_requests
		WHERE request_type = 'move_out'
		  AND status = 'approved'
		  AND executed_at IS NULL
		  AND move_out_date IS NOT NULL
		  AND move_out_date <= $1
		ORDER BY move_out_date
	`

	err := r.db.Select(&requests, query, asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to list due move-outs: %w", err)
	}

	return requests, nil
}
