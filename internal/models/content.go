package models

import (
	"time"

	"github.com/google/uuid"
)

// Notice is an apartment-wide announcement posted by an admin
type Notice struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ApartmentID uuid.UUID `db:"apartment_id" json:"apartment_id"`
	Title       string    `db:"title" json:"title"`
	Body        string    `db:"body" json:"body"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// TicketStatus is the lifecycle of a maintenance ticket
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in_progress"
	TicketClosed     TicketStatus = "closed"
)

// MaintenanceTicket is a resident-reported maintenance issue
type MaintenanceTicket struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	ApartmentID uuid.UUID    `db:"apartment_id" json:"apartment_id"`
	FlatID      uuid.UUID    `db:"flat_id" json:"flat_id"`
	ClientID    uuid.UUID    `db:"client_id" json:"client_id"`
	Title       string       `db:"title" json:"title"`
	Body        string       `db:"body" json:"body"`
	PhotoURL    *string      `db:"photo_url" json:"photo_url,omitempty"`
	Status      TicketStatus `db:"status" json:"status"`
	CreatedAt   time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time    `db:"updated_at" json:"updated_at"`
}

// BlogPost is a marketing-site article; the scheduler publishes posts whose
// publish_at has arrived.
type BlogPost struct {
	ID        uuid.UUID  `db:"id" json:"id"`
	Title     string     `db:"title" json:"title"`
	Slug      string     `db:"slug" json:"slug"`
	Body      string     `db:"body" json:"body"`
	CoverURL  *string    `db:"cover_url" json:"cover_url,omitempty"`
	Published bool       `db:"published" json:"published"`
	PublishAt *time.Time `db:"publish_at" json:"publish_at,omitempty"`
	CreatedAt time.Time  `db:"created_at" json:"created_at"`
}
