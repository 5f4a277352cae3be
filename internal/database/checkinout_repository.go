package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/smartresidence/resident-backend/internal/models"
)

// CheckInOutRepository handles the append-only gate event ledger
type CheckInOutRepository struct {
	db Queryer
}

// NewCheckInOutRepository creates a new check-in/out repository
func NewCheckInOutRepository(db Queryer) *CheckInOutRepository {
	return &CheckInOutRepository{db: db}
}

const checkInOutColumns = `id, apartment_id, event_type, party_type, party_id, approved, created_at`

// InsertEvent appends a gate event. Events are never updated or deleted.
func (r *CheckInOutRepository) InsertEvent(event *models.CheckInOut) error {
	query := `
		INSERT INTO check_in_outs (id, apartment_id, event_type, party_type, party_id, approved, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`

	_, err := r.db.Exec(
		query,
		event.ID,
		event.ApartmentID,
		event.EventType,
		event.PartyType,
		event.PartyID,
		event.Approved,
		event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert gate event: %w", err)
	}

	return nil
}

// LatestEventPerParty returns the most recent event of every party that has
// at least one event in the apartment. The "who is inside" view derives from
// these rows: a party is inside when its latest event is an approved checkin.
func (r *CheckInOutRepository) LatestEventPerParty(apartmentID uuid.UUID) ([]*models.CheckInOut, error) {
	var events []*models.CheckInOut

	query := `
		SELECT DISTINCT ON (party_type, party_id) ` + checkInOutColumns + `
		FROM check_in_outs
		WHERE apartment_id = $1
		ORDER BY party_type, party_id, created_at DESC
	`

	err := r.db.Select(&events, query, apartmentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest events per party: %w", err)
	}

	return events, nil
}

// EventsBetween returns every gate event of an apartment inside [from, to),
// oldest first, so the caller can pair checkins with checkouts.
func (r *CheckInOutRepository) EventsBetween(apartmentID uuid.UUID, from, to time.Time) ([]*models.CheckInOut, error) {
	var events []*models.CheckInOut

	query := `
		SELECT ` + checkInOutColumns + `
		FROM check_in_outs
		WHERE apartment_id = $1 AND created_at >= $2 AND created_at < $3
		ORDER BY created_at
	`

	err := r.db.Select(&events, query, apartmentID, from, to)
	if err != nil {
		return nil, fmt.Errorf("failed to get events between: %w", err)
	}

	return events, nil
}

// LatestEvent returns the most recent event of one party, or nil if the
// party has never been through the gate.
func (r *CheckInOutRepository) LatestEvent(apartmentID uuid.UUID, party models.PartyRef) (*models.CheckInOut, error) {
	var event models.CheckInOut

	query := `
		SELECT ` + checkInOutColumns + `
		FROM check_in_outs
		WHERE apartment_id = $1 AND party_type = $2 AND party_id = $3
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.Get(&event, query, apartmentID, party.Type, party.ID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest event: %w", err)
	}

	return &event, nil
}

// LatestEventBefore returns the most recent event of one party strictly
// before the given instant, or nil if there is none. Used to recover the
// check-in of a visit that started before the window under report.
func (r *CheckInOutRepository) LatestEventBefore(apartmentID uuid.UUID, party models.PartyRef, before time.Time) (*models.CheckInOut, error) {
	var event models.CheckInOut

	query := `
		SELECT ` + checkInOutColumns + `
		FROM check_in_outs
		WHERE apartment_id = $1 AND party_type = $2 AND party_id = $3 AND created_at < $4
		ORDER BY created_at DESC
		LIMIT 1
	`

	err := r.db.Get(&event, query, apartmentID, party.Type, party.ID, before)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest event before: %w", err)
	}

	return &event, nil
}

// ListByParty returns a party's full gate history, newest first
func (r *CheckInOutRepository) ListByParty(apartmentID uuid.UUID, party models.PartyRef, limit, offset int) ([]*models.CheckInOut, error) {
	var events []*models.CheckInOut

	query := `
		SELECT ` + checkInOutColumns + `
		FROM check_in_outs
		WHERE apartment_id = $1 AND party_type = $2 AND party_id = $3
		ORDER BY created_at DESC
		LIMIT $4 OFFSET $5
	`

	err := r.db.Select(&events, query, apartmentID, party.Type, party.ID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list events by party: %w", err)
	}

	return events, nil
}
