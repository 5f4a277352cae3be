package models

import (
	"time"

	"github.com/google/uuid"
)

// OccupantType is a resident's role relative to a flat
type OccupantType string

const (
	OccupantOwner        OccupantType = "owner"
	OccupantTenant       OccupantType = "tenant"
	OccupantOwnerFamily  OccupantType = "owner_family"
	OccupantTenantFamily OccupantType = "tenant_family"
)

// IsExclusive reports whether at most one occupancy row of this type may
// exist per flat at a time.
func (t OccupantType) IsExclusive() bool {
	return t == OccupantOwner || t == OccupantTenant
}

// FamilyType returns the family variant that follows this primary role.
func (t OccupantType) FamilyType() OccupantType {
	if t == OccupantOwner {
		return OccupantOwnerFamily
	}
	return OccupantTenantFamily
}

// Valid reports whether t is a known occupant type
func (t OccupantType) Valid() bool {
	switch t {
	case OccupantOwner, OccupantTenant, OccupantOwnerFamily, OccupantTenantFamily:
		return true
	}
	return false
}

// FlatCurrentClient is the current-occupancy row: one active row per
// (flat, resident) while they reside. Deleted on move-out; a resolved
// OccupancyRequest history row is written in its place.
type FlatCurrentClient struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	ApartmentID uuid.UUID    `db:"apartment_id" json:"apartment_id"`
	FlatID      uuid.UUID    `db:"flat_id" json:"flat_id"`
	ClientID    uuid.UUID    `db:"client_id" json:"client_id"`
	Type        OccupantType `db:"type" json:"type"`
	HasOwner    bool         `db:"has_owner" json:"has_owner"`
	Residing    bool         `db:"residing" json:"residing"`
	MovedIn     time.Time    `db:"moved_in" json:"moved_in"`
}

// RequestType identifies the occupancy transition a request asks for
type RequestType string

const (
	RequestAddAccount  RequestType = "add_account"
	RequestMoveIn      RequestType = "move_in"
	RequestMoveOut     RequestType = "move_out"
	RequestBecomeOwner RequestType = "become_owner"
)

// Valid reports whether t is a known request type
func (t RequestType) Valid() bool {
	switch t {
	case RequestAddAccount, RequestMoveIn, RequestMoveOut, RequestBecomeOwner:
		return true
	}
	return false
}

// RequestStatus is the approval state machine: pending is the only
// non-terminal state.
type RequestStatus string

const (
	RequestPending  RequestStatus = "pending"
	RequestApproved RequestStatus = "approved"
	RequestRejected RequestStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions
func (s RequestStatus) Terminal() bool {
	return s == RequestApproved || s == RequestRejected
}

// OccupancyRequest is a pending client-initiated request while
// status = pending, and an immutable occupancy history record once resolved.
type OccupancyRequest struct {
	ID           uuid.UUID     `db:"id" json:"id"`
	ApartmentID  uuid.UUID     `db:"apartment_id" json:"apartment_id"`
	FlatID       uuid.UUID     `db:"flat_id" json:"flat_id"`
	ClientID     uuid.UUID     `db:"client_id" json:"client_id"`
	RequestType  RequestType   `db:"request_type" json:"request_type"`
	OccupantType OccupantType  `db:"occupant_type" json:"occupant_type"`
	Residing     bool          `db:"residing" json:"residing"`
	MoveOutDate  *time.Time    `db:"move_out_date" json:"move_out_date,omitempty"`
	Status       RequestStatus `db:"status" json:"status"`
	Message      *string       `db:"message" json:"message,omitempty"`
	DecidedAt    *time.Time    `db:"decided_at" json:"decided_at,omitempty"`
	ExecutedAt   *time.Time    `db:"executed_at" json:"executed_at,omitempty"`
	CreatedAt    time.Time     `db:"created_at" json:"created_at"`
}

// GatePass is a credential code issued to an approved resident for
// physical access verification at the gate.
type GatePass struct {
	ID          uuid.UUID `db:"id" json:"id"`
	ApartmentID uuid.UUID `db:"apartment_id" json:"apartment_id"`
	FlatID      uuid.UUID `db:"flat_id" json:"flat_id"`
	ClientID    uuid.UUID `db:"client_id" json:"client_id"`
	Code        string    `db:"code" json:"code"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
