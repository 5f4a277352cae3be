package models

import (
	"time"

	"github.com/google/uuid"
)

// ClientUser represents a resident. Online residents self-register and verify
// their phone; offline residents are admin-entered proxy records carrying a
// synthetic contact id instead of a real phone number.
type ClientUser struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	ApartmentID   uuid.UUID   `db:"apartment_id" json:"apartment_id"`
	Name          string      `db:"name" json:"name"`
	Phone         string      `db:"phone" json:"phone"`
	Email         *string     `db:"email" json:"email,omitempty"`
	PhotoURL      *string     `db:"photo_url" json:"photo_url,omitempty"`
	Offline       bool        `db:"offline" json:"offline"`
	Verified      bool        `db:"verified" json:"verified"`
	Family        bool        `db:"family" json:"family"`
	FCMTokens     StringArray `db:"fcm_tokens" json:"-"`
	RefreshTokens StringArray `db:"refresh_tokens" json:"-"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// AdminRole distinguishes the two admin panels
type AdminRole string

const (
	RoleSuperAdmin AdminRole = "superadmin"
	RoleAdmin      AdminRole = "admin"
)

// AdminUser represents a super-admin (apartment_id NULL) or an
// apartment-admin (scoped to one apartment).
type AdminUser struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	ApartmentID   *uuid.UUID  `db:"apartment_id" json:"apartment_id,omitempty"`
	Role          AdminRole   `db:"role" json:"role"`
	Name          string      `db:"name" json:"name"`
	Email         string      `db:"email" json:"email"`
	PasswordHash  string      `db:"password_hash" json:"-"`
	RefreshTokens StringArray `db:"refresh_tokens" json:"-"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// Guard represents a security guard account for the gate panel
type Guard struct {
	ID            uuid.UUID   `db:"id" json:"id"`
	ApartmentID   uuid.UUID   `db:"apartment_id" json:"apartment_id"`
	Name          string      `db:"name" json:"name"`
	Phone         string      `db:"phone" json:"phone"`
	PasswordHash  string      `db:"password_hash" json:"-"`
	RefreshTokens StringArray `db:"refresh_tokens" json:"-"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// OTPVerification is a phone login challenge for the resident panel
type OTPVerification struct {
	ID         int64      `db:"id" json:"id"`
	Phone      string     `db:"phone" json:"phone"`
	OTPCode    string     `db:"otp_code" json:"-"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	Verified   bool       `db:"verified" json:"verified"`
	VerifiedAt *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	Attempts   int        `db:"attempts" json:"attempts"`
	IPAddress  *string    `db:"ip_address" json:"-"`
	UserAgent  *string    `db:"user_agent" json:"-"`
}
