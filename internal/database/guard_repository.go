package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartresidence/resident-backend/internal/models"
)

// GuardRepository handles security guard accounts
type GuardRepository struct {
	db Queryer
}

// NewGuardRepository creates a new guard repository
func NewGuardRepository(db Queryer) *GuardRepository {
	return &GuardRepository{db: db}
}

// CreateGuard creates a guard account for an apartment gate
func (r *GuardRepository) CreateGuard(apartmentID uuid.UUID, name, phone, passwordHash string) (*models.Guard, error) {
	guard := &models.Guard{
		ID:            uuid.New(),
		ApartmentID:   apartmentID,
		Name:          name,
		Phone:         phone,
		PasswordHash:  passwordHash,
		RefreshTokens: models.StringArray{},
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	query := `
		INSERT INTO guards (id, apartment_id, name, phone, password_hash, refresh_tokens, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(
		query,
		guard.ID,
		guard.ApartmentID,
		guard.Name,
		guard.Phone,
		guard.PasswordHash,
		guard.RefreshTokens,
		guard.CreatedAt,
		guard.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create guard: %w", err)
	}

	return guard, nil
}

const guardColumns = `
	id, apartment_id, name, phone, password_hash, refresh_tokens, created_at, updated_at
`

// GetGuardByPhone retrieves a guard by apartment and phone
func (r *GuardRepository) GetGuardByPhone(apartmentID uuid.UUID, phone string) (*models.Guard, error) {
	var guard models.Guard

	query := `SELECT ` + guardColumns + ` FROM guards WHERE apartment_id = $1 AND phone = $2`

	err := r.db.Get(&guard, query, apartmentID, phone)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Guard not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get guard by phone: %w", err)
	}

	return &guard, nil
}

// GetGuardByID retrieves a guard by ID
func (r *GuardRepository) GetGuardByID(id uuid.UUID) (*models.Guard, error) {
	var guard models.Guard

	query := `SELECT ` + guardColumns + ` FROM guards WHERE id = $1`

	err := r.db.Get(&guard, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get guard by ID: %w", err)
	}

	return &guard, nil
}

// ListGuards lists guards of an apartment
func (r *GuardRepository) ListGuards(apartmentID uuid.UUID) ([]*models.Guard, error) {
	var guards []*models.Guard

	query := `SELECT ` + guardColumns + ` FROM guards WHERE apartment_id = $1 ORDER BY created_at`

	err := r.db.Select(&guards, query, apartmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list guards: %w", err)
	}

	return guards, nil
}

// DeleteGuard removes a guard account
func (r *GuardRepository) DeleteGuard(id uuid.UUID) error {
	query := `DELETE FROM guards WHERE id = $1`

	result, err := r.db.Exec(query, id)
	if err != nil {
		return fmt.Errorf("failed to delete guard: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("guard not found")
	}

	return nil
}

// AppendRefreshToken appends a hashed refresh token (bounded list)
func (r *GuardRepository) AppendRefreshToken(id uuid.UUID, tokenHash string, cap int) error {
	return appendRefreshToken(r.db, "guards", id, tokenHash, cap)
}

// RemoveRefreshToken removes a hashed refresh token
func (r *GuardRepository) RemoveRefreshToken(id uuid.UUID, tokenHash string) error {
	return removeRefreshToken(r.db, "guards", id, tokenHash)
}

// HasRefreshToken reports whether the hashed token is in the guard's list
func (r *GuardRepository) HasRefreshToken(id uuid.UUID, tokenHash string) (bool, error) {
	return hasRefreshToken(r.db, "guards", id, tokenHash)
}
