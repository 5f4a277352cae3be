package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartresidence/resident-backend/internal/models"
)

// ApartmentRepository handles apartment database operations
type ApartmentRepository struct {
	db Queryer
}

// NewApartmentRepository creates a new apartment repository
func NewApartmentRepository(db Queryer) *ApartmentRepository {
	return &ApartmentRepository{db: db}
}

// CreateApartment creates a new apartment complex
func (r *ApartmentRepository) CreateApartment(name, address string) (*models.Apartment, error) {
	apartment := &models.Apartment{
		ID:                 uuid.New(),
		Name:               name,
		Address:            address,
		Status:             models.ApartmentActive,
		SubscriptionStatus: models.SubscriptionDue,
		LastActivityAt:     time.Now(),
		CreatedAt:          time.Now(),
		UpdatedAt:          time.Now(),
	}

	query := `
		INSERT INTO apartments (id, name, address, status, subscription_status, last_activity_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.db.Exec(
		query,
		apartment.ID,
		apartment.Name,
		apartment.Address,
		apartment.Status,
		apartment.SubscriptionStatus,
		apartment.LastActivityAt,
		apartment.CreatedAt,
		apartment.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create apartment: %w", err)
	}

	return apartment, nil
}

// GetApartmentByID retrieves an apartment by ID
func (r *ApartmentRepository) GetApartmentByID(id uuid.UUID) (*models.Apartment, error) {
	var apartment models.Apartment

	query := `
		SELECT id, name, address, status, subscription_status, logo_url,
		       last_activity_at, created_at, updated_at
		FROM apartments
		WHERE id = $1
	`

	err := r.db.Get(&apartment, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Apartment not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get apartment by ID: %w", err)
	}

	return &apartment, nil
}

// ListApartments retrieves apartments with pagination
func (r *ApartmentRepository) ListApartments(limit, offset int) ([]*models.Apartment, error) {
	var apartments []*models.Apartment

	query := `
		SELECT id, name, address, status, subscription_status, logo_url,
		       last_activity_at, created_at, updated_at
		FROM apartments
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	err := r.db.Select(&apartments, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list apartments: %w", err)
	}

	return apartments, nil
}

// CountApartments returns the total number of apartments
func (r *ApartmentRepository) CountApartments() (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM apartments`

	err := r.db.QueryRow(query).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count apartments: %w", err)
	}

	return count, nil
}

// UpdateApartment updates name, address and logo
func (r *ApartmentRepository) UpdateApartment(id uuid.UUID, name, address string, logoURL *string) error {
	query := `
		UPDATE apartments
		SET name = $1,
		    address = $2,
		    logo_url = COALESCE($3, logo_url),
		    updated_at = $4
		WHERE id = $5
	`

	result, err := r.db.Exec(query, name, address, logoURL, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update apartment: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("apartment not found")
	}

	return nil
}

// UpdateStatus updates the apartment activation status
func (r *ApartmentRepository) UpdateStatus(id uuid.UUID, status models.ApartmentStatus) error {
	query := `
		UPDATE apartments
		SET status = $1,
		    updated_at = $2
		WHERE id = $3
	`

	_, err := r.db.Exec(query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update apartment status: %w", err)
	}

	return nil
}

// UpdateSubscriptionStatus mirrors the active subscription's remaining balance
func (r *ApartmentRepository) UpdateSubscriptionStatus(id uuid.UUID, status models.SubscriptionStatus) error {
	query := `
		UPDATE apartments
		SET subscription_status = $1,
		    updated_at = $2
		WHERE id = $3
	`

	_, err := r.db.Exec(query, status, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update apartment subscription status: %w", err)
	}

	return nil
}

// TouchActivity bumps last_activity_at; called on panel writes so the
// stale-apartment job can find abandoned tenants.
func (r *ApartmentRepository) TouchActivity(id uuid.UUID) error {
	query := `UPDATE apartments SET last_activity_at = $1 WHERE id = $2`

	_, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to touch apartment activity: %w", err)
	}

	return nil
}

// ListStaleApartments returns active apartments whose last activity is older
// than the cutoff
func (r *ApartmentRepository) ListStaleApartments(cutoff time.Time) ([]*models.Apartment, error) {
	var apartments []*models.Apartment

	query := `
		SELECT id, name, address, status, subscription_status, logo_url,
		       last_activity_at, created_at, updated_at
		FROM apartments
		WHERE status = 'active' AND last_activity_at < $1
	`

	err := r.db.Select(&apartments, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stale apartments: %w", err)
	}

	return apartments, nil
}
