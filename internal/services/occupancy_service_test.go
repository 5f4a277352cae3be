package services

import (
	"database/sql"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/smartresidence/resident-backend/internal/apperror"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOccupancyTest(t *testing.T) (*OccupancyService, database.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock := newTestDB(t)
	return NewOccupancyService(testLogger()), db, mock
}

func occupancyRow(flatID, clientID uuid.UUID, occType models.OccupantType, hasOwner bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "apartment_id", "flat_id", "client_id", "type", "has_owner", "residing", "moved_in"}).
		AddRow(uuid.New(), uuid.New(), flatID, clientID, occType, hasOwner, true, time.Now())
}

func noOccupancyRow(mock sqlmock.Sqlmock, args ...driver.Value) {
	mock.ExpectQuery("SELECT (.+) FROM flat_current_clients").
		WithArgs(args...).
		WillReturnError(sql.ErrNoRows)
}

func TestAssignOccupant_Owner(t *testing.T) {
	svc, db, mock := setupOccupancyTest(t)
	apartmentID, flatID, clientID := uuid.New(), uuid.New(), uuid.New()

	// not already in the flat, no owner on record, exclusivity check passes
	noOccupancyRow(mock, flatID, clientID)
	noOccupancyRow(mock, flatID, models.OccupantOwner)
	noOccupancyRow(mock, flatID, models.OccupantOwner)
	mock.ExpectExec("INSERT INTO flat_current_clients").
		WithArgs(sqlmock.AnyArg(), apartmentID, flatID, clientID, models.OccupantOwner, true, true, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE flat_current_clients SET has_owner").
		WithArgs(true, flatID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO gate_passes").
		WithArgs(sqlmock.AnyArg(), apartmentID, flatID, clientID, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	row, err := svc.AssignOccupant(db, apartmentID, flatID, clientID, models.OccupantOwner, true)
	require.NoError(t, err)
	assert.Equal(t, models.OccupantOwner, row.Type)
	assert.True(t, row.HasOwner)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignOccupant_SecondTenantRejected(t *testing.T) {
	svc, db, mock := setupOccupancyTest(t)
	flatID, clientID := uuid.New(), uuid.New()

	noOccupancyRow(mock, flatID, clientID)
	noOccupancyRow(mock, flatID, models.OccupantOwner)
	mock.ExpectQuery("SELECT (.+) FROM flat_current_clients").
		WithArgs(flatID, models.OccupantTenant).
		WillReturnRows(occupancyRow(flatID, uuid.New(), models.OccupantTenant, false))

	_, err := svc.AssignOccupant(db, uuid.New(), flatID, clientID, models.OccupantTenant, true)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.Conflict))
}

func TestAssignOccupant_FamilyWithoutPrimary(t *testing.T) {
	svc, db, mock := setupOccupancyTest(t)
	flatID, clientID := uuid.New(), uuid.New()

	noOccupancyRow(mock, flatID, clientID)
	noOccupancyRow(mock, flatID, models.OccupantOwner)
	noOccupancyRow(mock, flatID, models.OccupantTenant) // no tenant for the family to join

	_, err := svc.AssignOccupant(db, uuid.New(), flatID, clientID, models.OccupantTenantFamily, true)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.BadRequest))
}

func TestAssignOccupant_AlreadyInFlat(t *testing.T) {
	svc, db, mock := setupOccupancyTest(t)
	flatID, clientID := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM flat_current_clients").
		WithArgs(flatID, clientID).
		WillReturnRows(occupancyRow(flatID, clientID, models.OccupantTenant, false))

	_, err := svc.AssignOccupant(db, uuid.New(), flatID, clientID, models.OccupantOwner, true)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.Conflict))
}

func TestAssignOccupant_UnknownType(t *testing.T) {
	svc, db, _ := setupOccupancyTest(t)

	_, err := svc.AssignOccupant(db, uuid.New(), uuid.New(), uuid.New(), models.OccupantType("landlord"), true)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.BadRequest))
}

func TestPromoteToOwner(t *testing.T) {
	svc, db, mock := setupOccupancyTest(t)
	flatID, clientID := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM flat_current_clients").
		WithArgs(flatID, clientID).
		WillReturnRows(occupancyRow(flatID, clientID, models.OccupantTenant, false))
	noOccupancyRow(mock, flatID, models.OccupantOwner)
	mock.ExpectExec("UPDATE flat_current_clients SET type").
		WithArgs(models.OccupantOwner, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE flat_current_clients SET type").
		WithArgs(models.OccupantOwnerFamily, flatID, models.OccupantTenantFamily).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec("UPDATE flat_current_clients SET has_owner").
		WithArgs(true, flatID).
		WillReturnResult(sqlmock.NewResult(0, 3))

	err := svc.PromoteToOwner(db, flatID, clientID)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPromoteToOwner_NotTenant(t *testing.T) {
	svc, db, mock := setupOccupancyTest(t)
	flatID, clientID := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM flat_current_clients").
		WithArgs(flatID, clientID).
		WillReturnRows(occupancyRow(flatID, clientID, models.OccupantOwnerFamily, true))

	err := svc.PromoteToOwner(db, flatID, clientID)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.BadRequest))
}

func TestPromoteToOwner_FlatHasOwner(t *testing.T) {
	svc, db, mock := setupOccupancyTest(t)
	flatID, clientID := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM flat_current_clients").
		WithArgs(flatID, clientID).
		WillReturnRows(occupancyRow(flatID, clientID, models.OccupantTenant, true))
	mock.ExpectQuery("SELECT (.+) FROM flat_current_clients").
		WithArgs(flatID, models.OccupantOwner).
		WillReturnRows(occupancyRow(flatID, uuid.New(), models.OccupantOwner, true))

	err := svc.PromoteToOwner(db, flatID, clientID)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.Conflict))
}

func TestVacate_OwnerTakesFamilyAlong(t *testing.T) {
	svc, db, mock := setupOccupancyTest(t)
	flatID, ownerID, familyID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM flat_current_clients").
		WithArgs(flatID, ownerID).
		WillReturnRows(occupancyRow(flatID, ownerID, models.OccupantOwner, true))
	mock.ExpectQuery("SELECT (.+) FROM flat_current_clients").
		WithArgs(flatID, models.OccupantOwnerFamily).
		WillReturnRows(occupancyRow(flatID, familyID, models.OccupantOwnerFamily, true))
	mock.ExpectExec("DELETE FROM flat_current_clients").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM flat_current_clients").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE flat_current_clients SET has_owner").
		WithArgs(false, flatID).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("DELETE FROM gate_passes").
		WithArgs(flatID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	removed, err := svc.Vacate(db, flatID, ownerID)
	require.NoError(t, err)
	require.Len(t, removed, 2)
	assert.Equal(t, ownerID, removed[0].ClientID)
	assert.Equal(t, familyID, removed[1].ClientID)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVacate_FamilyLeavesAlone(t *testing.T) {
	svc, db, mock := setupOccupancyTest(t)
	flatID, clientID := uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM flat_current_clients").
		WithArgs(flatID, clientID).
		WillReturnRows(occupancyRow(flatID, clientID, models.OccupantOwnerFamily, true))
	mock.ExpectExec("DELETE FROM flat_current_clients").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM gate_passes").
		WithArgs(flatID, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	removed, err := svc.Vacate(db, flatID, clientID)
	require.NoError(t, err)
	assert.Len(t, removed, 1)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVacate_NotOccupying(t *testing.T) {
	svc, db, mock := setupOccupancyTest(t)
	flatID, clientID := uuid.New(), uuid.New()

	noOccupancyRow(mock, flatID, clientID)

	_, err := svc.Vacate(db, flatID, clientID)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.NotFound))
}

func TestGeneratePassCode(t *testing.T) {
	seen := make(map[string]bool)

	for i := 0; i < 50; i++ {
		code, err := generatePassCode(8)
		require.NoError(t, err)
		assert.Len(t, code, 8)
		assert.Regexp(t, "^[23456789ABCDEFGHJKMNPQRSTUVWXYZ]{8}$", code)
		seen[code] = true
	}

	assert.Greater(t, len(seen), 45)
}
