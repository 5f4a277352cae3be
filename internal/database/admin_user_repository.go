package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartresidence/resident-backend/internal/models"
)

// AdminUserRepository handles super-admin and apartment-admin accounts
type AdminUserRepository struct {
	db Queryer
}

// NewAdminUserRepository creates a new admin user repository
func NewAdminUserRepository(db Queryer) *AdminUserRepository {
	return &AdminUserRepository{db: db}
}

// CreateAdminUser creates an admin account. apartmentID is nil for
// super-admins.
func (r *AdminUserRepository) CreateAdminUser(apartmentID *uuid.UUID, role models.AdminRole, name, email, passwordHash string) (*models.AdminUser, error) {
	admin := &models.AdminUser{
		ID:            uuid.New(),
		ApartmentID:   apartmentID,
		Role:          role,
		Name:          name,
		Email:         email,
		PasswordHash:  passwordHash,
		RefreshTokens: models.StringArray{},
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	query := `
		INSERT INTO admin_users (id, apartment_id, role, name, email, password_hash, refresh_tokens, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.db.Exec(
		query,
		admin.ID,
		admin.ApartmentID,
		admin.Role,
		admin.Name,
		admin.Email,
		admin.PasswordHash,
		admin.RefreshTokens,
		admin.CreatedAt,
		admin.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create admin user: %w", err)
	}

	return admin, nil
}

const adminUserColumns = `
	id, apartment_id, role, name, email, password_hash, refresh_tokens, created_at, updated_at
`

// GetAdminUserByEmail retrieves an admin by email
func (r *AdminUserRepository) GetAdminUserByEmail(email string) (*models.AdminUser, error) {
	var admin models.AdminUser

	query := `SELECT ` + adminUserColumns + ` FROM admin_users WHERE email = $1`

	err := r.db.Get(&admin, query, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // Admin not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get admin user by email: %w", err)
	}

	return &admin, nil
}

// GetAdminUserByID retrieves an admin by ID
func (r *AdminUserRepository) GetAdminUserByID(id uuid.UUID) (*models.AdminUser, error) {
	var admin models.AdminUser

	query := `SELECT ` + adminUserColumns + ` FROM admin_users WHERE id = $1`

	err := r.db.Get(&admin, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get admin user by ID: %w", err)
	}

	return &admin, nil
}

// ListAdminsByApartment lists apartment-admin accounts for one apartment
func (r *AdminUserRepository) ListAdminsByApartment(apartmentID uuid.UUID) ([]*models.AdminUser, error) {
	var admins []*models.AdminUser

	query := `SELECT ` + adminUserColumns + ` FROM admin_users WHERE apartment_id = $1 ORDER BY created_at`

	err := r.db.Select(&admins, query, apartmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to list admin users: %w", err)
	}

	return admins, nil
}

// AppendRefreshToken appends a hashed refresh token (bounded list)
func (r *AdminUserRepository) AppendRefreshToken(id uuid.UUID, tokenHash string, cap int) error {
	return appendRefreshToken(r.db, "admin_users", id, tokenHash, cap)
}

// RemoveRefreshToken removes a hashed refresh token
func (r *AdminUserRepository) RemoveRefreshToken(id uuid.UUID, tokenHash string) error {
	return removeRefreshToken(r.db, "admin_users", id, tokenHash)
}

// HasRefreshToken reports whether the hashed token is in the admin's list
func (r *AdminUserRepository) HasRefreshToken(id uuid.UUID, tokenHash string) (bool, error) {
	return hasRefreshToken(r.db, "admin_users", id, tokenHash)
}
