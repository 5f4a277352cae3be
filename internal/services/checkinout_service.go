package services

import (
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/apperror"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/internal/models"
)

// CheckInOutService runs the gate ledger. The ledger itself is append-only;
// the "who is inside" and "who left today" views are derived from it here
// rather than kept as mutable state.
type CheckInOutService struct {
	db     database.DB
	logger *logrus.Logger
}

// NewCheckInOutService creates a new check-in/out service
func NewCheckInOutService(db database.DB, logger *logrus.Logger) *CheckInOutService {
	return &CheckInOutService{db: db, logger: logger}
}

// InsideEntry is one party currently on the premises
type InsideEntry struct {
	Party       *models.VisitorParty `json:"party"`
	CheckedInAt time.Time            `json:"checked_in_at"`
}

// OutsideEntry is one party that checked out today. Duration is empty when
// the ledger has no matching check-in for the visit.
type OutsideEntry struct {
	Party        *models.VisitorParty `json:"party"`
	CheckedOutAt time.Time            `json:"checked_out_at"`
	Duration     string               `json:"duration,omitempty"`
}

// RegisterParty records a new visitor party at the gate
func (s *CheckInOutService) RegisterParty(apartmentID uuid.UUID, partyType models.PartyType, flatID *uuid.UUID, name string, phone, detail *string) (*models.VisitorParty, error) {
	if !partyType.Valid() {
		return nil, apperror.BadRequestf("unknown party type %q", partyType)
	}
	if name == "" {
		return nil, apperror.BadRequestf("party name is required")
	}

	party := &models.VisitorParty{
		ID:          uuid.New(),
		ApartmentID: apartmentID,
		Type:        partyType,
		FlatID:      flatID,
		Name:        name,
		Phone:       phone,
		Detail:      detail,
		CreatedAt:   time.Now(),
	}

	if err := database.NewPartyRepository(s.db).Create(party); err != nil {
		return nil, err
	}

	return party, nil
}

// CheckIn appends a check-in event for a party. A party already inside
// cannot check in again.
func (s *CheckInOutService) CheckIn(apartmentID uuid.UUID, party models.PartyRef, approved bool) (*models.CheckInOut, error) {
	return s.appendEvent(apartmentID, party, models.EventCheckIn, approved)
}

// CheckOut appends a check-out event for a party. Only a party currently
// inside can check out.
func (s *CheckInOutService) CheckOut(apartmentID uuid.UUID, party models.PartyRef) (*models.CheckInOut, error) {
	return s.appendEvent(apartmentID, party, models.EventCheckOut, true)
}

func (s *CheckInOutService) appendEvent(apartmentID uuid.UUID, party models.PartyRef, eventType models.EventType, approved bool) (*models.CheckInOut, error) {
	if !party.Type.Valid() {
		return nil, apperror.BadRequestf("unknown party type %q", party.Type)
	}

	partyRepo := database.NewPartyRepository(s.db)
	eventRepo := database.NewCheckInOutRepository(s.db)

	record, err := partyRepo.GetByID(party.ID)
	if err != nil {
		return nil, err
	}
	if record == nil || record.ApartmentID != apartmentID || record.Type != party.Type {
		return nil, apperror.NotFoundf("party not found")
	}

	latest, err := eventRepo.LatestEvent(apartmentID, party)
	if err != nil {
		return nil, err
	}

	inside := latest != nil && latest.EventType == models.EventCheckIn && latest.Approved
	if eventType == models.EventCheckIn && inside {
		return nil, apperror.Conflictf("party is already checked in")
	}
	if eventType == models.EventCheckOut && !inside {
		return nil, apperror.Conflictf("party is not checked in")
	}

	event := &models.CheckInOut{
		ID:          uuid.New(),
		ApartmentID: apartmentID,
		EventType:   eventType,
		PartyType:   party.Type,
		PartyID:     party.ID,
		Approved:    approved,
		CreatedAt:   time.Now(),
	}

	if err := eventRepo.InsertEvent(event); err != nil {
		return nil, err
	}

	s.logger.WithFields(logrus.Fields{
		"apartment_id": apartmentID,
		"party_type":   party.Type,
		"party_id":     party.ID,
		"event":        eventType,
	}).Info("Gate event recorded")

	return event, nil
}

// Inside returns everyone currently on the premises: parties whose latest
// ledger event is an approved check-in. Unapproved check-ins never count.
func (s *CheckInOutService) Inside(apartmentID uuid.UUID) ([]InsideEntry, error) {
	eventRepo := database.NewCheckInOutRepository(s.db)

	latest, err := eventRepo.LatestEventPerParty(apartmentID)
	if err != nil {
		return nil, err
	}

	var checkins []*models.CheckInOut
	ids := make([]uuid.UUID, 0, len(latest))
	for _, event := range latest {
		if event.EventType == models.EventCheckIn && event.Approved {
			checkins = append(checkins, event)
			ids = append(ids, event.PartyID)
		}
	}

	parties, err := database.NewPartyRepository(s.db).GetMany(ids)
	if err != nil {
		return nil, err
	}

	entries := make([]InsideEntry, 0, len(checkins))
	for _, event := range checkins {
		party, ok := parties[event.PartyID]
		if !ok {
			continue
		}
		entries = append(entries, InsideEntry{
			Party:       party,
			CheckedInAt: event.CreatedAt,
		})
	}

	return entries, nil
}

// OutsideToday returns the parties whose visit ended today: their latest
// event today is a check-out and they have not re-entered since. Duration is
// paired in memory against the nearest preceding check-in of the same party;
// for visits that began before today the check-in is fetched from the ledger,
// and only a check-out with no check-in on record at all gets an empty
// duration.
func (s *CheckInOutService) OutsideToday(apartmentID uuid.UUID, now time.Time) ([]OutsideEntry, error) {
	from := startOfDay(now)
	to := from.Add(24 * time.Hour)

	eventRepo := database.NewCheckInOutRepository(s.db)

	events, err := eventRepo.EventsBetween(apartmentID, from, to)
	if err != nil {
		return nil, err
	}

	type visit struct {
		checkedOutAt time.Time
		duration     time.Duration
		hasDuration  bool
	}

	lastCheckin := make(map[models.PartyRef]time.Time)
	outside := make(map[models.PartyRef]visit)
	order := make([]models.PartyRef, 0)

	// Events arrive oldest first; the latest event per party wins.
	for _, event := range events {
		ref := event.Party()

		switch event.EventType {
		case models.EventCheckIn:
			if event.Approved {
				lastCheckin[ref] = event.CreatedAt
			}
			// A re-entry cancels the earlier departure
			delete(outside, ref)

		case models.EventCheckOut:
			in, ok := lastCheckin[ref]
			if !ok {
				// Overnight visit: the check-in predates today's window.
				prior, err := eventRepo.LatestEventBefore(apartmentID, ref, from)
				if err != nil {
					return nil, err
				}
				if prior != nil && prior.EventType == models.EventCheckIn && prior.Approved {
					in = prior.CreatedAt
					lastCheckin[ref] = in
					ok = true
				}
			}

			v := visit{checkedOutAt: event.CreatedAt}
			if ok {
				v.duration = event.CreatedAt.Sub(in)
				v.hasDuration = true
			}
			if _, seen := outside[ref]; !seen {
				order = append(order, ref)
			}
			outside[ref] = v
		}
	}

	ids := make([]uuid.UUID, 0, len(outside))
	for _, ref := range order {
		if _, ok := outside[ref]; ok {
			ids = append(ids, ref.ID)
		}
	}

	parties, err := database.NewPartyRepository(s.db).GetMany(ids)
	if err != nil {
		return nil, err
	}

	entries := make([]OutsideEntry, 0, len(outside))
	for _, ref := range order {
		v, ok := outside[ref]
		if !ok {
			continue
		}
		party, ok := parties[ref.ID]
		if !ok {
			continue
		}

		entry := OutsideEntry{
			Party:        party,
			CheckedOutAt: v.checkedOutAt,
		}
		if v.hasDuration {
			entry.Duration = v.duration.Round(time.Second).String()
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// PartyHistory returns a party's gate history, newest first
func (s *CheckInOutService) PartyHistory(apartmentID uuid.UUID, party models.PartyRef, limit, offset int) ([]*models.CheckInOut, error) {
	return database.NewCheckInOutRepository(s.db).ListByParty(apartmentID, party, limit, offset)
}
