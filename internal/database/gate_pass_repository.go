package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/smartresidence/resident-backend/internal/models"
)

// GatePassRepository handles gate pass data access
type GatePassRepository struct {
	db Queryer
}

// NewGatePassRepository creates a new gate pass repository
func NewGatePassRepository(db Queryer) *GatePassRepository {
	return &GatePassRepository{db: db}
}

const gatePassColumns = `id, apartment_id, flat_id, client_id, code, created_at`

// Create inserts a gate pass
func (r *GatePassRepository) Create(pass *models.GatePass) error {
	query := `
		INSERT INTO gate_passes (id, apartment_id, flat_id, client_id, code, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`

	_, err := r.db.Exec(query, pass.ID, pass.ApartmentID, pass.FlatID, pass.ClientID, pass.Code, pass.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create gate pass: %w", err)
	}

	return nil
}

// GetByClient retrieves the gate pass of a resident in a flat
func (r *GatePassRepository) GetByClient(flatID, clientID uuid.UUID) (*models.GatePass, error) {
	var pass models.GatePass

	query := `SELECT ` + gatePassColumns + ` FROM gate_passes WHERE flat_id = $1 AND client_id = $2`

	err := r.db.Get(&pass, query, flatID, clientID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Gate pass not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get gate pass: %w", err)
	}

	return &pass, nil
}

// GetByCode retrieves a gate pass by its code within an apartment
func (r *GatePassRepository) GetByCode(apartmentID uuid.UUID, code string) (*models.GatePass, error) {
	var pass models.GatePass

	query := `SELECT ` + gatePassColumns + ` FROM gate_passes WHERE apartment_id = $1 AND code = $2`

	err := r.db.Get(&pass, query, apartmentID, code)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get gate pass by code: %w", err)
	}

	return &pass, nil
}

// ListByFlat retrieves all gate passes of a flat
func (r *GatePassRepository) ListByFlat(flatID uuid.UUID) ([]*models.GatePass, error) {
	var passes []*models.GatePass

	query := `SELECT ` + gatePassColumns + ` FROM gate_passes WHERE flat_id = $1 ORDER BY created_at`

	err := r.db.Select(&passes, query, flatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list gate passes: %w", err)
	}

	return passes, nil
}

// DeleteByClients revokes the gate passes of the given residents in a flat.
// Called when occupants leave a flat so stale passes cannot be presented.
func (r *GatePassRepository) DeleteByClients(flatID uuid.UUID, clientIDs []uuid.UUID) error {
	if len(clientIDs) == 0 {
		return nil
	}

	query := `DELETE FROM gate_passes WHERE flat_id = $1 AND client_id = ANY($2)`

	_, err := r.db.Exec(query, flatID, pq.Array(clientIDs))
	if err != nil {
		return fmt.Errorf("failed to delete gate passes: %w", err)
	}

	return nil
}
