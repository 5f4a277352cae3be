package models

import (
	"time"

	"github.com/google/uuid"
)

// ApartmentStatus represents the activation state of an apartment complex
type ApartmentStatus string

const (
	ApartmentActive   ApartmentStatus = "active"
	ApartmentInactive ApartmentStatus = "inactive"
)

// SubscriptionStatus mirrors the remaining balance of the active subscription
type SubscriptionStatus string

const (
	SubscriptionPaid SubscriptionStatus = "paid"
	SubscriptionDue  SubscriptionStatus = "due"
)

// Apartment represents a tenant apartment complex
type Apartment struct {
	ID                 uuid.UUID          `db:"id" json:"id"`
	Name               string             `db:"name" json:"name"`
	Address            string             `db:"address" json:"address"`
	Status             ApartmentStatus    `db:"status" json:"status"`
	SubscriptionStatus SubscriptionStatus `db:"subscription_status" json:"subscription_status"`
	LogoURL            *string            `db:"logo_url" json:"logo_url,omitempty"`
	LastActivityAt     time.Time          `db:"last_activity_at" json:"last_activity_at"`
	CreatedAt          time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time          `db:"updated_at" json:"updated_at"`
}

// Block is a wing/tower of an apartment complex
type Block struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ApartmentID uuid.UUID `db:"apartment_id" json:"apartment_id"`
	Name        string    `db:"name" json:"name"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Floor is a level within a block
type Floor struct {
	ID        uuid.UUID `db:"id" json:"id"`
	BlockID   uuid.UUID `db:"block_id" json:"block_id"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Flat is a single residential unit. Archived flats are excluded from
// normal listings but kept for occupancy history.
type Flat struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ApartmentID uuid.UUID `db:"apartment_id" json:"apartment_id"`
	FloorID     uuid.UUID `db:"floor_id" json:"floor_id"`
	Number      string    `db:"number" json:"number"`
	Archived    bool      `db:"archived" json:"archived"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
