package database

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/smartresidence/resident-backend/internal/models"
)

// PartyRepository handles visitor party data access
type PartyRepository struct {
	db Queryer
}

// NewPartyRepository creates a new party repository
func NewPartyRepository(db Queryer) *PartyRepository {
	return &PartyRepository{db: db}
}

const partyColumns = `id, apartment_id, type, flat_id, name, phone, detail, created_at`

// Create inserts a visitor party
func (r *PartyRepository) Create(party *models.VisitorParty) error {
	query := `
		INSERT INTO visitor_parties (id, apartment_id, type, flat_id, name, phone, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(
		query,
		party.ID,
		party.ApartmentID,
		party.Type,
		party.FlatID,
		party.Name,
		party.Phone,
		party.Detail,
		party.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create visitor party: %w", err)
	}

	return nil
}

// GetByID retrieves a visitor party by ID
func (r *PartyRepository) GetByID(id uuid.UUID) (*models.VisitorParty, error) {
	var party models.VisitorParty

	query := `SELECT ` + partyColumns + ` FROM visitor_parties WHERE id = $1`

	err := r.db.Get(&party, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Party not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get visitor party by ID: %w", err)
	}

	return &party, nil
}

// GetMany retrieves the parties for a set of IDs in one round trip
func (r *PartyRepository) GetMany(ids []uuid.UUID) (map[uuid.UUID]*models.VisitorParty, error) {
	result := make(map[uuid.UUID]*models.VisitorParty, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	query := `SELECT ` + partyColumns + ` FROM visitor_parties WHERE id = ANY($1)`

	var parties []*models.VisitorParty
	if err := r.db.Select(&parties, query, pq.Array(ids)); err != nil {
		return nil, fmt.Errorf("failed to get visitor parties: %w", err)
	}

	for _, p := range parties {
		result[p.ID] = p
	}

	return result, nil
}

// List retrieves visitor parties of an apartment with pagination, optionally
// filtered by type.
func (r *PartyRepository) List(apartmentID uuid.UUID, partyType *models.PartyType, limit, offset int) ([]*models.VisitorParty, error) {
	var parties []*models.VisitorParty

	query := `
		SELECT ` + partyColumns + `
		FROM visitor_parties
		WHERE apartment_id = $1 AND ($2::text IS NULL OR type = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	err := r.db.Select(&parties, query, apartmentID, partyType, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list visitor parties: %w", err)
	}

	return parties, nil
}

// ListByFlat retrieves visitor parties registered against a flat
func (r *PartyRepository) ListByFlat(flatID uuid.UUID, limit, offset int) ([]*models.VisitorParty, error) {
	var parties []*models.VisitorParty

	query := `
		SELECT ` + partyColumns + `
		FROM visitor_parties
		WHERE flat_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	err := r.db.Select(&parties, query, flatID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list visitor parties by flat: %w", err)
	}

	return parties, nil
}

// Count returns the number of visitor parties of an apartment
func (r *PartyRepository) Count(apartmentID uuid.UUID, partyType *models.PartyType) (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM visitor_parties WHERE apartment_id = $1 AND ($2::text IS NULL OR type = $2)`

	err := r.db.QueryRow(query, apartmentID, partyType).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count visitor parties: %w", err)
	}

	return count, nil
}
