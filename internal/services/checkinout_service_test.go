package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/smartresidence/resident-backend/internal/apperror"
	"github.com/smartresidence/resident-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCheckInOutTest(t *testing.T) (*CheckInOutService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock := newTestDB(t)
	return NewCheckInOutService(db, testLogger()), mock
}

var partyRowColumns = []string{"id", "apartment_id", "type", "flat_id", "name", "phone", "detail", "created_at"}

func partyRow(id, apartmentID uuid.UUID, partyType models.PartyType, name string) *sqlmock.Rows {
	return sqlmock.NewRows(partyRowColumns).
		AddRow(id, apartmentID, partyType, nil, name, nil, nil, time.Now())
}

func eventRow(apartmentID uuid.UUID, ref models.PartyRef, eventType models.EventType, approved bool, at time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "apartment_id", "event_type", "party_type", "party_id", "approved", "created_at"}).
		AddRow(uuid.New(), apartmentID, eventType, ref.Type, ref.ID, approved, at)
}

func TestRegisterParty(t *testing.T) {
	svc, mock := setupCheckInOutTest(t)
	apartmentID := uuid.New()

	mock.ExpectExec("INSERT INTO visitor_parties").
		WillReturnResult(sqlmock.NewResult(1, 1))

	party, err := svc.RegisterParty(apartmentID, models.PartyDelivery, nil, "Courier", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, apartmentID, party.ApartmentID)
	assert.Equal(t, models.PartyDelivery, party.Type)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRegisterParty_Invalid(t *testing.T) {
	svc, _ := setupCheckInOutTest(t)

	_, err := svc.RegisterParty(uuid.New(), models.PartyType("drone"), nil, "X", nil, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.BadRequest))

	_, err = svc.RegisterParty(uuid.New(), models.PartyGuest, nil, "", nil, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.BadRequest))
}

func TestCheckIn(t *testing.T) {
	svc, mock := setupCheckInOutTest(t)
	apartmentID := uuid.New()
	ref := models.PartyRef{Type: models.PartyGuest, ID: uuid.New()}

	mock.ExpectQuery("SELECT (.+) FROM visitor_parties WHERE id").
		WithArgs(ref.ID).
		WillReturnRows(partyRow(ref.ID, apartmentID, models.PartyGuest, "Aunt Malini"))
	mock.ExpectQuery("SELECT (.+) FROM check_in_outs").
		WithArgs(apartmentID, ref.Type, ref.ID).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO check_in_outs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	event, err := svc.CheckIn(apartmentID, ref, true)
	require.NoError(t, err)
	assert.Equal(t, models.EventCheckIn, event.EventType)
	assert.True(t, event.Approved)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckIn_AlreadyInside(t *testing.T) {
	svc, mock := setupCheckInOutTest(t)
	apartmentID := uuid.New()
	ref := models.PartyRef{Type: models.PartyGuest, ID: uuid.New()}

	mock.ExpectQuery("SELECT (.+) FROM visitor_parties WHERE id").
		WithArgs(ref.ID).
		WillReturnRows(partyRow(ref.ID, apartmentID, models.PartyGuest, "Aunt Malini"))
	mock.ExpectQuery("SELECT (.+) FROM check_in_outs").
		WithArgs(apartmentID, ref.Type, ref.ID).
		WillReturnRows(eventRow(apartmentID, ref, models.EventCheckIn, true, time.Now().Add(-time.Hour)))

	_, err := svc.CheckIn(apartmentID, ref, true)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.Conflict))
}

func TestCheckIn_AfterRejectedEntry(t *testing.T) {
	svc, mock := setupCheckInOutTest(t)
	apartmentID := uuid.New()
	ref := models.PartyRef{Type: models.PartyService, ID: uuid.New()}

	mock.ExpectQuery("SELECT (.+) FROM visitor_parties WHERE id").
		WithArgs(ref.ID).
		WillReturnRows(partyRow(ref.ID, apartmentID, models.PartyService, "Plumber"))
	// a rejected check-in never put the party inside
	mock.ExpectQuery("SELECT (.+) FROM check_in_outs").
		WithArgs(apartmentID, ref.Type, ref.ID).
		WillReturnRows(eventRow(apartmentID, ref, models.EventCheckIn, false, time.Now().Add(-time.Hour)))
	mock.ExpectExec("INSERT INTO check_in_outs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	_, err := svc.CheckIn(apartmentID, ref, true)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckIn_WrongApartment(t *testing.T) {
	svc, mock := setupCheckInOutTest(t)
	ref := models.PartyRef{Type: models.PartyGuest, ID: uuid.New()}

	mock.ExpectQuery("SELECT (.+) FROM visitor_parties WHERE id").
		WithArgs(ref.ID).
		WillReturnRows(partyRow(ref.ID, uuid.New(), models.PartyGuest, "Aunt Malini"))

	_, err := svc.CheckIn(uuid.New(), ref, true)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.NotFound))
}

func TestCheckOut(t *testing.T) {
	svc, mock := setupCheckInOutTest(t)
	apartmentID := uuid.New()
	ref := models.PartyRef{Type: models.PartyVehicle, ID: uuid.New()}

	mock.ExpectQuery("SELECT (.+) FROM visitor_parties WHERE id").
		WithArgs(ref.ID).
		WillReturnRows(partyRow(ref.ID, apartmentID, models.PartyVehicle, "CAB-1234"))
	mock.ExpectQuery("SELECT (.+) FROM check_in_outs").
		WithArgs(apartmentID, ref.Type, ref.ID).
		WillReturnRows(eventRow(apartmentID, ref, models.EventCheckIn, true, time.Now().Add(-time.Hour)))
	mock.ExpectExec("INSERT INTO check_in_outs").
		WillReturnResult(sqlmock.NewResult(1, 1))

	event, err := svc.CheckOut(apartmentID, ref)
	require.NoError(t, err)
	assert.Equal(t, models.EventCheckOut, event.EventType)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckOut_NotInside(t *testing.T) {
	svc, mock := setupCheckInOutTest(t)
	apartmentID := uuid.New()
	ref := models.PartyRef{Type: models.PartyGuest, ID: uuid.New()}

	mock.ExpectQuery("SELECT (.+) FROM visitor_parties WHERE id").
		WithArgs(ref.ID).
		WillReturnRows(partyRow(ref.ID, apartmentID, models.PartyGuest, "Aunt Malini"))
	mock.ExpectQuery("SELECT (.+) FROM check_in_outs").
		WithArgs(apartmentID, ref.Type, ref.ID).
		WillReturnRows(eventRow(apartmentID, ref, models.EventCheckOut, true, time.Now().Add(-time.Hour)))

	_, err := svc.CheckOut(apartmentID, ref)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.Conflict))
}

func TestInside(t *testing.T) {
	svc, mock := setupCheckInOutTest(t)
	apartmentID := uuid.New()
	insideRef := models.PartyRef{Type: models.PartyGuest, ID: uuid.New()}
	rejectedRef := models.PartyRef{Type: models.PartyDelivery, ID: uuid.New()}
	leftRef := models.PartyRef{Type: models.PartyService, ID: uuid.New()}

	latest := sqlmock.NewRows([]string{"id", "apartment_id", "event_type", "party_type", "party_id", "approved", "created_at"}).
		AddRow(uuid.New(), apartmentID, models.EventCheckIn, insideRef.Type, insideRef.ID, true, time.Now().Add(-time.Hour)).
		AddRow(uuid.New(), apartmentID, models.EventCheckIn, rejectedRef.Type, rejectedRef.ID, false, time.Now().Add(-time.Hour)).
		AddRow(uuid.New(), apartmentID, models.EventCheckOut, leftRef.Type, leftRef.ID, true, time.Now().Add(-time.Hour))

	mock.ExpectQuery("SELECT DISTINCT ON (.+) FROM check_in_outs").
		WithArgs(apartmentID).
		WillReturnRows(latest)
	mock.ExpectQuery("SELECT (.+) FROM visitor_parties WHERE id = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(partyRow(insideRef.ID, apartmentID, models.PartyGuest, "Aunt Malini"))

	entries, err := svc.Inside(apartmentID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, insideRef.ID, entries[0].Party.ID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutsideToday(t *testing.T) {
	svc, mock := setupCheckInOutTest(t)
	apartmentID := uuid.New()
	now := time.Date(2026, 3, 10, 15, 0, 0, 0, time.Local)

	pairedRef := models.PartyRef{Type: models.PartyGuest, ID: uuid.New()}
	unpairedRef := models.PartyRef{Type: models.PartyDelivery, ID: uuid.New()}
	returnedRef := models.PartyRef{Type: models.PartyService, ID: uuid.New()}

	at := func(hour, min int) time.Time {
		return time.Date(2026, 3, 10, hour, min, 0, 0, time.Local)
	}

	events := sqlmock.NewRows([]string{"id", "apartment_id", "event_type", "party_type", "party_id", "approved", "created_at"}).
		AddRow(uuid.New(), apartmentID, models.EventCheckIn, pairedRef.Type, pairedRef.ID, true, at(9, 0)).
		AddRow(uuid.New(), apartmentID, models.EventCheckOut, unpairedRef.Type, unpairedRef.ID, true, at(10, 0)).
		AddRow(uuid.New(), apartmentID, models.EventCheckIn, returnedRef.Type, returnedRef.ID, true, at(10, 30)).
		AddRow(uuid.New(), apartmentID, models.EventCheckOut, pairedRef.Type, pairedRef.ID, true, at(11, 30)).
		AddRow(uuid.New(), apartmentID, models.EventCheckOut, returnedRef.Type, returnedRef.ID, true, at(12, 0)).
		// the service party came back in, cancelling its departure
		AddRow(uuid.New(), apartmentID, models.EventCheckIn, returnedRef.Type, returnedRef.ID, true, at(13, 0))

	mock.ExpectQuery("SELECT (.+) FROM check_in_outs").
		WithArgs(apartmentID, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(events)
	// the courier's checkout has no check-in today, so the ledger is consulted
	mock.ExpectQuery("SELECT (.+) FROM check_in_outs").
		WithArgs(apartmentID, unpairedRef.Type, unpairedRef.ID, sqlmock.AnyArg()).
		WillReturnError(sql.ErrNoRows)

	parties := sqlmock.NewRows(partyRowColumns).
		AddRow(pairedRef.ID, apartmentID, models.PartyGuest, nil, "Aunt Malini", nil, nil, at(8, 0)).
		AddRow(unpairedRef.ID, apartmentID, models.PartyDelivery, nil, "Courier", nil, nil, at(8, 0))
	mock.ExpectQuery("SELECT (.+) FROM visitor_parties WHERE id = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(parties)

	entries, err := svc.OutsideToday(apartmentID, now)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, unpairedRef.ID, entries[0].Party.ID)
	assert.Empty(t, entries[0].Duration, "checkout with no check-in on record has no duration")

	assert.Equal(t, pairedRef.ID, entries[1].Party.ID)
	assert.Equal(t, "2h30m0s", entries[1].Duration)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestOutsideToday_OvernightVisit(t *testing.T) {
	svc, mock := setupCheckInOutTest(t)
	apartmentID := uuid.New()
	now := time.Date(2026, 3, 10, 9, 0, 0, 0, time.Local)
	ref := models.PartyRef{Type: models.PartyGuest, ID: uuid.New()}

	// checked in yesterday evening, out this morning
	checkedIn := time.Date(2026, 3, 9, 22, 0, 0, 0, time.Local)
	checkedOut := time.Date(2026, 3, 10, 7, 30, 0, 0, time.Local)

	mock.ExpectQuery("SELECT (.+) FROM check_in_outs").
		WithArgs(apartmentID, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(eventRow(apartmentID, ref, models.EventCheckOut, true, checkedOut))
	mock.ExpectQuery("SELECT (.+) FROM check_in_outs").
		WithArgs(apartmentID, ref.Type, ref.ID, sqlmock.AnyArg()).
		WillReturnRows(eventRow(apartmentID, ref, models.EventCheckIn, true, checkedIn))

	parties := sqlmock.NewRows(partyRowColumns).
		AddRow(ref.ID, apartmentID, models.PartyGuest, nil, "Aunt Malini", nil, nil, checkedIn)
	mock.ExpectQuery("SELECT (.+) FROM visitor_parties WHERE id = ANY").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(parties)

	entries, err := svc.OutsideToday(apartmentID, now)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.Equal(t, ref.ID, entries[0].Party.ID)
	assert.Equal(t, "9h30m0s", entries[0].Duration)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPartyHistory(t *testing.T) {
	svc, mock := setupCheckInOutTest(t)
	apartmentID := uuid.New()
	ref := models.PartyRef{Type: models.PartyGuest, ID: uuid.New()}

	mock.ExpectQuery("SELECT (.+) FROM check_in_outs").
		WithArgs(apartmentID, ref.Type, ref.ID, 20, 0).
		WillReturnRows(eventRow(apartmentID, ref, models.EventCheckOut, true, time.Now()))

	events, err := svc.PartyHistory(apartmentID, ref, 20, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}
