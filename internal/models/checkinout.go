package models

import (
	"time"

	"github.com/google/uuid"
)

// PartyType discriminates the kind of party a gate event belongs to
type PartyType string

const (
	PartyGuest    PartyType = "guest"
	PartyDelivery PartyType = "delivery"
	PartyRide     PartyType = "ride"
	PartyService  PartyType = "service"
	PartyStaff    PartyType = "staff"
	PartyVehicle  PartyType = "vehicle"
	PartyGroup    PartyType = "group"
)

// Valid reports whether t is a known party type
func (t PartyType) Valid() bool {
	switch t {
	case PartyGuest, PartyDelivery, PartyRide, PartyService, PartyStaff, PartyVehicle, PartyGroup:
		return true
	}
	return false
}

// PartyRef identifies exactly one checked party: a single discriminant plus
// id instead of one nullable column per variant.
type PartyRef struct {
	Type PartyType `db:"party_type" json:"party_type"`
	ID   uuid.UUID `db:"party_id" json:"party_id"`
}

// EventType is the direction of a gate event
type EventType string

const (
	EventCheckIn  EventType = "checkin"
	EventCheckOut EventType = "checkout"
)

// CheckInOut is one immutable row per physical gate event
type CheckInOut struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ApartmentID uuid.UUID `db:"apartment_id" json:"apartment_id"`
	EventType   EventType `db:"event_type" json:"event_type"`
	PartyType   PartyType `db:"party_type" json:"party_type"`
	PartyID     uuid.UUID `db:"party_id" json:"party_id"`
	Approved    bool      `db:"approved" json:"approved"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Party returns the event's party reference
func (e *CheckInOut) Party() PartyRef {
	return PartyRef{Type: e.PartyType, ID: e.PartyID}
}

// VisitorParty is a tracked party record (guest, delivery, ride, service
// visit, staff, vehicle or group entry). The gate ledger references it by
// PartyRef; the party row itself carries the display data the guard captures.
type VisitorParty struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ApartmentID uuid.UUID `db:"apartment_id" json:"apartment_id"`
	Type        PartyType `db:"type" json:"type"`
	FlatID      *uuid.UUID `db:"flat_id" json:"flat_id,omitempty"`
	Name        string    `db:"name" json:"name"`
	Phone       *string   `db:"phone" json:"phone,omitempty"`
	Detail      *string   `db:"detail" json:"detail,omitempty"` // vehicle plate, courier company, group size note
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Ref returns the party's ledger reference
func (p *VisitorParty) Ref() PartyRef {
	return PartyRef{Type: p.Type, ID: p.ID}
}
