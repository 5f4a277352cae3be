package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartresidence/resident-backend/internal/models"
)

// OccupancyRepository handles the current-occupancy rows of flats.
// Construct it over a transaction to run the occupancy mutations inside
// the approval transaction.
type OccupancyRepository struct {
	db Queryer
}

// NewOccupancyRepository creates a new occupancy repository
func NewOccupancyRepository(db Queryer) *OccupancyRepository {
	return &OccupancyRepository{db: db}
}

const occupancyColumns = `
	id, apartment_id, flat_id, client_id, type, has_owner, residing, moved_in
`

// GetByFlatAndType returns the current occupant row of the given type, if any
func (r *OccupancyRepository) GetByFlatAndType(flatID uuid.UUID, occType models.OccupantType) (*models.FlatCurrentClient, error) {
	var row models.FlatCurrentClient

	query := `SELECT ` + occupancyColumns + ` FROM flat_current_clients WHERE flat_id = $1 AND type = $2`

	err := r.db.Get(&row, query, flatID, occType)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // no current occupant of this type
		}
		return nil, fmt.Errorf("failed to get occupancy by flat and type: %w", err)
	}

	return &row, nil
}

// GetByFlatAndClient returns a person's current occupancy row in a flat
func (r *OccupancyRepository) GetByFlatAndClient(flatID, clientID uuid.UUID) (*models.FlatCurrentClient, error) {
	var row models.FlatCurrentClient

	query := `SELECT ` + occupancyColumns + ` FROM flat_current_clients WHERE flat_id = $1 AND client_id = $2`

	err := r.db.Get(&row, query, flatID, clientID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get occupancy by flat and client: %w", err)
	}

	return &row, nil
}

// ListByFlat returns all current occupancy rows of a flat
func (r *OccupancyRepository) ListByFlat(flatID uuid.UUID) ([]*models.FlatCurrentClient, error) {
	var rows []*models.FlatCurrentClient

	query := `SELECT ` + occupancyColumns + ` FROM flat_current_clients WHERE flat_id = $1 ORDER BY moved_in`

	err := r.db.Select(&rows, query, flatID)
	if err != nil {
		return nil, fmt.Errorf("failed to list occupancy by flat: %w", err)
	}

	return rows, nil
}

// ListByClient returns a person's occupancy rows across flats
func (r *OccupancyRepository) ListByClient(clientID uuid.UUID) ([]*models.FlatCurrentClient, error) {
	var rows []*models.FlatCurrentClient

	query := `SELECT ` + occupancyColumns + ` FROM flat_current_clients WHERE client_id = $1 ORDER BY moved_in`

	err := r.db.Select(&rows, query, clientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list occupancy by client: %w", err)
	}

	return rows, nil
}

// ListFamilyByFlat returns the family rows of the given family type in a flat
func (r *OccupancyRepository) ListFamilyByFlat(flatID uuid.UUID, familyType models.OccupantType) ([]*models.FlatCurrentClient, error) {
	var rows []*models.FlatCurrentClient

	query := `SELECT ` + occupancyColumns + ` FROM flat_current_clients WHERE flat_id = $1 AND type = $2`

	err := r.db.Select(&rows, query, flatID, familyType)
	if err != nil {
		return nil, fmt.Errorf("failed to list family occupancy: %w", err)
	}

	return rows, nil
}

// Insert creates a current-occupancy row
func (r *OccupancyRepository) Insert(row *models.FlatCurrentClient) error {
	query := `
		INSERT INTO flat_current_clients (id, apartment_id, flat_id, client_id, type, has_owner, residing, moved_in)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(
		query,
		row.ID,
		row.ApartmentID,
		row.FlatID,
		row.ClientID,
		row.Type,
		row.HasOwner,
		row.Residing,
		row.MovedIn,
	)
	if err != nil {
		return fmt.Errorf("failed to insert occupancy row: %w", err)
	}

	return nil
}

// Delete removes a current-occupancy row by id
func (r *OccupancyRepository) Delete(id uuid.UUID) error {
	query := `DELETE FROM flat_current_clients WHERE id = $1`

	_, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete occupancy row: %w", err)
	}

	return nil
}

// Retype changes the occupant type of a single row (become-owner transition)
func (r *OccupancyRepository) Retype(id uuid.UUID, occType models.OccupantType) error {
	query := `UPDATE flat_current_clients SET type = $1 WHERE id = $2`

	result, err := r.db.Exec(query, occType, id)
	if err != nil {
		return fmt.Errorf("failed to retype occupancy row: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("occupancy row not found")
	}

	return nil
}

// RetypeFamilies re-types every family row of one family type in a flat.
// Family status follows the primary resident's role.
func (r *OccupancyRepository) RetypeFamilies(flatID uuid.UUID, from, to models.OccupantType) error {
	query := `UPDATE flat_current_clients SET type = $1 WHERE flat_id = $2 AND type = $3`

	_, err := r.db.Exec(query, to, flatID, from)
	if err != nil {
		return fmt.Errorf("failed to retype family occupancy rows: %w", err)
	}

	return nil
}

// SetHasOwnerFlatWide flips has_owner on every occupancy row of a flat
func (r *OccupancyRepository) SetHasOwnerFlatWide(flatID uuid.UUID, hasOwner bool) error {
	query := `UPDATE flat_current_clients SET has_owner = $1 WHERE flat_id = $2`

	_, err := r.db.Exec(query, hasOwner, flatID)
	if err != nil {
		return fmt.Errorf("failed to set has_owner flat-wide: %w", err)
	}

	return nil
}

// NewOccupancyRow builds an occupancy row with a fresh id and moved_in = now
func NewOccupancyRow(apartmentID, flatID, clientID uuid.UUID, occType models.OccupantType, hasOwner, residing bool) *models.FlatCurrentClient {
	return &models.FlatCurrentClient{
		ID:          uuid.New(),
		ApartmentID: apartmentID,
		FlatID:      flatID,
		ClientID:    clientID,
		Type:        occType,
		HasOwner:    hasOwner,
		Residing:    residing,
		MovedIn:     time.Now(),
	}
}
