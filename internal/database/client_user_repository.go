package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartresidence/resident-backend/internal/models"
)

// ClientUserRepository handles resident database operations
type ClientUserRepository struct {
	db Queryer
}

// NewClientUserRepository creates a new client user repository
func NewClientUserRepository(db Queryer) *ClientUserRepository {
	return &ClientUserRepository{db: db}
}

// CreateClientUser creates a self-registered (online) resident
func (r *ClientUserRepository) CreateClientUser(apartmentID uuid.UUID, name, phone string) (*models.ClientUser, error) {
	return r.create(apartmentID, name, phone, false)
}

// CreateOfflineClientUser creates an admin-entered proxy record. The caller
// supplies a synthetic contact id as the phone value.
func (r *ClientUserRepository) CreateOfflineClientUser(apartmentID uuid.UUID, name, syntheticID string) (*models.ClientUser, error) {
	return r.create(apartmentID, name, syntheticID, true)
}

func (r *ClientUserRepository) create(apartmentID uuid.UUID, name, phone string, offline bool) (*models.ClientUser, error) {
	user := &models.ClientUser{
		ID:            uuid.New(),
		ApartmentID:   apartmentID,
		Name:          name,
		Phone:         phone,
		Offline:       offline,
		Verified:      false,
		FCMTokens:     models.StringArray{},
		RefreshTokens: models.StringArray{},
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	query := `
		INSERT INTO client_users (
			id, apartment_id, name, phone, offline, verified, family,
			fcm_tokens, refresh_tokens, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.db.Exec(
		query,
		user.ID,
		user.ApartmentID,
		user.Name,
		user.Phone,
		user.Offline,
		user.Verified,
		user.Family,
		user.FCMTokens,
		user.RefreshTokens,
		user.CreatedAt,
		user.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create client user: %w", err)
	}

	return user, nil
}

const clientUserColumns = `
	id, apartment_id, name, phone, email, photo_url, offline, verified,
	family, fcm_tokens, refresh_tokens, created_at, updated_at
`

// GetClientUserByID retrieves a resident by ID
func (r *ClientUserRepository) GetClientUserByID(id uuid.UUID) (*models.ClientUser, error) {
	var user models.ClientUser

	query := `SELECT ` + clientUserColumns + ` FROM client_users WHERE id = $1`

	err := r.db.Get(&user, query, id)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // User not found, return nil without error
		}
		return nil, fmt.Errorf("failed to get client user by ID: %w", err)
	}

	return &user, nil
}

// GetClientUserByPhone retrieves a resident by phone number
func (r *ClientUserRepository) GetClientUserByPhone(phone string) (*models.ClientUser, error) {
	var user models.ClientUser

	query := `SELECT ` + clientUserColumns + ` FROM client_users WHERE phone = $1 AND offline = false`

	err := r.db.Get(&user, query, phone)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get client user by phone: %w", err)
	}

	return &user, nil
}

// ListClientUsers retrieves residents of an apartment with pagination
func (r *ClientUserRepository) ListClientUsers(apartmentID uuid.UUID, limit, offset int) ([]*models.ClientUser, error) {
	var users []*models.ClientUser

	query := `
		SELECT ` + clientUserColumns + `
		FROM client_users
		WHERE apartment_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	err := r.db.Select(&users, query, apartmentID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list client users: %w", err)
	}

	return users, nil
}

// CountClientUsers returns the number of residents of an apartment
func (r *ClientUserRepository) CountClientUsers(apartmentID uuid.UUID) (int, error) {
	var count int

	query := `SELECT COUNT(*) FROM client_users WHERE apartment_id = $1`

	err := r.db.QueryRow(query, apartmentID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count client users: %w", err)
	}

	return count, nil
}

// SetVerified marks a resident's account verified (on approval)
func (r *ClientUserRepository) SetVerified(id uuid.UUID, verified bool) error {
	query := `UPDATE client_users SET verified = $1, updated_at = $2 WHERE id = $3`

	_, err := r.db.Exec(query, verified, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set client user verified: %w", err)
	}

	return nil
}

// SetFamily marks a resident as a family member
func (r *ClientUserRepository) SetFamily(id uuid.UUID, family bool) error {
	query := `UPDATE client_users SET family = $1, updated_at = $2 WHERE id = $3`

	_, err := r.db.Exec(query, family, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to set client user family flag: %w", err)
	}

	return nil
}

// UpdateProfile updates a resident's profile fields
func (r *ClientUserRepository) UpdateProfile(id uuid.UUID, name string, email, photoURL *string) error {
	query := `
		UPDATE client_users
		SET name = $1,
		    email = COALESCE($2, email),
		    photo_url = COALESCE($3, photo_url),
		    updated_at = $4
		WHERE id = $5
	`

	result, err := r.db.Exec(query, name, email, photoURL, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to update client user profile: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		return fmt.Errorf("client user not found")
	}

	return nil
}

// AppendRefreshToken appends a hashed refresh token to the bounded
// multi-device list, evicting the oldest entries past the cap.
func (r *ClientUserRepository) AppendRefreshToken(id uuid.UUID, tokenHash string, cap int) error {
	return appendRefreshToken(r.db, "client_users", id, tokenHash, cap)
}

// RemoveRefreshToken removes a hashed refresh token (logout / remote logout)
func (r *ClientUserRepository) RemoveRefreshToken(id uuid.UUID, tokenHash string) error {
	return removeRefreshToken(r.db, "client_users", id, tokenHash)
}

// HasRefreshToken reports whether the hashed token is in the user's list
func (r *ClientUserRepository) HasRefreshToken(id uuid.UUID, tokenHash string) (bool, error) {
	return hasRefreshToken(r.db, "client_users", id, tokenHash)
}

// AddFCMToken registers a device token for push notifications
func (r *ClientUserRepository) AddFCMToken(id uuid.UUID, token string) error {
	query := `
		UPDATE client_users
		SET fcm_tokens = array_append(fcm_tokens, $1),
		    updated_at = $2
		WHERE id = $3
		  AND NOT ($1 = ANY(fcm_tokens))
	`

	_, err := r.db.Exec(query, token, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to add FCM token: %w", err)
	}

	return nil
}

// RemoveFCMToken removes a stale device token
func (r *ClientUserRepository) RemoveFCMToken(id uuid.UUID, token string) error {
	query := `
		UPDATE client_users
		SET fcm_tokens = array_remove(fcm_tokens, $1),
		    updated_at = $2
		WHERE id = $3
	`

	_, err := r.db.Exec(query, token, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to remove FCM token: %w", err)
	}

	return nil
}
