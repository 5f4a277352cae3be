package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartresidence/resident-backend/internal/models"
)

// FlatRepository handles block/floor/flat database operations
type FlatRepository struct {
	db Queryer
}

// NewFlatRepository creates a new flat repository
func NewFlatRepository(db Queryer) *FlatRepository {
	return &FlatRepository{db: db}
}

// CreateBlock creates a block within an apartment
func (r *FlatRepository) CreateBlock(apartmentID uuid.UUID, name string) (*models.Block, error) {
	block := &models.Block{
		ID:          uuid.New(),
		ApartmentID: apartmentID,
		Name:        name,
		CreatedAt:   time.Now(),
	}

	query := `INSERT INTO blocks (id, apartment_id, name, created_at) VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(query, block.ID, block.ApartmentID, block.Name, block.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create block: %w", err)
	}

	return block, nil
}

// ListBlocks lists blocks of an apartment
func (r *FlatRepository) ListBlocks(apartmentID uuid.UUID) ([]*models.Block, error) {
	var blocks []*models.Block

	query := `SELECT id, apartment_id, name, created_at FROM blocks WHERE apartment_id = $1 ORDER BY name`

	err := r.db.Select(&blocks, query, apartmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list blocks: %w", err)
	}

	return blocks, nil
}

// CreateFloor creates a floor within a block
func (r *FlatRepository) CreateFloor(blockID uuid.UUID, name string) (*models.Floor, error) {
	floor := &models.Floor{
		ID:        uuid.New(),
		BlockID:   blockID,
		Name:      name,
		CreatedAt: time.Now(),
	}

	query := `INSERT INTO floors (id, block_id, name, created_at) VALUES ($1, $2, $3, $4)`

	_, err := r.db.Exec(query, floor.ID, floor.BlockID, floor.Name, floor.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create floor: %w", err)
	}

	return floor, nil
}

// ListFloors lists floors of a block
func (r *FlatRepository) ListFloors(blockID uuid.UUID) ([]*models.Floor, error) {
	var floors []*models.Floor

	query := `SELECT id, block_id, name, created_at FROM floors WHERE block_id = $1 ORDER BY name`

	err := r.db.Select(&floors, query, blockID)
	if err != nil {
		return nil, fmt.Errorf("failed to list floors: %w", err)
	}

	return floors, nil
}

// CreateFlat creates a flat on a floor
func (r *FlatRepository) CreateFlat(apartmentID, floorID uuid.UUID, number string) (*models.Flat, error) {
	flat := &models.Flat{
		ID:          uuid.New(),
		ApartmentID: apartmentID,
		FloorID:     floorID,
		Number:      number,
		CreatedAt:   time.Now(),
	}

	query := `
		INSERT INTO flats (id, apartment_id, floor_id, number, archived, created_at)
		VALUES ($1, $2, $3, $4, false, $5)
	`

	_, err := r.db.Exec(query, flat.ID, flat.ApartmentID, flat.FloorID, flat.Number, flat.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create flat: %w", err)
	}

	return flat, nil
}

// GetFlatByID retrieves a flat by ID
func (r *FlatRepository) GetFlatByID(id uuid.UUID) (*models.Flat, error) {
	var flat models.Flat

	query := `
		SELECT id, apartment_id, floor_id, number, archived, created_at
		FROM flats
		WHERE id = $1
	`

	err := r.db.Get(&flat, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Flat not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get flat by ID: %w", err)
	}

	return &flat, nil
}

// ListFlats lists non-archived flats of an apartment with pagination
func (r *FlatRepository) ListFlats(apartmentID uuid.UUID, limit, offset int) ([]*models.Flat, error) {
	var flats []*models.Flat

	query := `
		SELECT id, apartment_id, floor_id, number, archived, created_at
		FROM flats
		WHERE apartment_id = $1 AND archived = false
		ORDER BY number
		LIMIT $2 OFFSET $3
	`

	err := r.db.Select(&flats, query, apartmentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list flats: %w", err)
	}

	return flats, nil
}

// CountFlats returns the number of non-archived flats of an apartment
func (r *FlatRepository) CountFlats(apartmentID uuid.UUID) (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM flats WHERE apartment_id = $1 AND archived = false`

	err := r.db.QueryRow(query, apartmentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count flats: %w", err)
	}

	return count, nil
}

// ArchiveFlat excludes a flat from normal listings without losing history
func (r *FlatRepository) ArchiveFlat(id uuid.UUID) error {
	query := `UPDATE flats SET archived = true WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to archive flat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("flat not found")
	}

	return nil
}
