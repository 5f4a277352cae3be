package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/smartresidence/resident-backend/internal/apperror"
	"github.com/smartresidence/resident-backend/internal/config"
	"github.com/smartresidence/resident-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupApprovalTest(t *testing.T) (*ApprovalService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock := newTestDB(t)
	notifier := NewNotificationService(db, nil, nil, config.EmailConfig{Mode: "dev"}, "dev", testLogger())
	occupancy := NewOccupancyService(testLogger())

	return NewApprovalService(db, occupancy, notifier, testLogger()), mock
}

var requestRowColumns = []string{
	"id", "apartment_id", "flat_id", "client_id", "request_type", "occupant_type",
	"residing", "move_out_date", "status", "message", "decided_at", "executed_at", "created_at",
}

func pendingRequestRow(id, apartmentID, flatID, clientID uuid.UUID, reqType models.RequestType, occType models.OccupantType, moveOutDate *time.Time) *sqlmock.Rows {
	return sqlmock.NewRows(requestRowColumns).
		AddRow(id, apartmentID, flatID, clientID, reqType, occType, true, moveOutDate, models.RequestPending, nil, nil, nil, time.Now())
}

// expectPushLookup absorbs the best-effort notification that follows a commit
func expectPushLookup(mock sqlmock.Sqlmock) {
	mock.ExpectQuery("SELECT (.+) FROM client_users").
		WillReturnError(sql.ErrNoRows)
}

func TestApprove_MoveIn(t *testing.T) {
	svc, mock := setupApprovalTest(t)
	requestID, apartmentID, flatID, clientID := uuid.New(), uuid.New(), uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM occupancy_requests WHERE id").
		WithArgs(requestID).
		WillReturnRows(pendingRequestRow(requestID, apartmentID, flatID, clientID, models.RequestMoveIn, models.OccupantTenant, nil))
	// occupancy transition inside the same transaction
	noOccupancyRow(mock, flatID, clientID)
	noOccupancyRow(mock, flatID, models.OccupantOwner)
	noOccupancyRow(mock, flatID, models.OccupantTenant)
	mock.ExpectExec("INSERT INTO flat_current_clients").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO gate_passes").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("UPDATE occupancy_requests").
		WithArgs(models.RequestApproved, nil, sqlmock.AnyArg(), sqlmock.AnyArg(), requestID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectPushLookup(mock)

	err := svc.Approve(requestID, nil)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprove_AlreadyResolved(t *testing.T) {
	svc, mock := setupApprovalTest(t)
	requestID := uuid.New()

	decided := time.Now()
	resolved := sqlmock.NewRows(requestRowColumns).
		AddRow(requestID, uuid.New(), uuid.New(), uuid.New(), models.RequestMoveIn, models.OccupantTenant,
			true, nil, models.RequestApproved, nil, &decided, &decided, time.Now())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM occupancy_requests WHERE id").
		WithArgs(requestID).
		WillReturnRows(resolved)
	mock.ExpectRollback()

	err := svc.Approve(requestID, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.BadRequest))
}

func TestApprove_RoleFilledDiscardsRequest(t *testing.T) {
	svc, mock := setupApprovalTest(t)
	requestID, flatID := uuid.New(), uuid.New()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM occupancy_requests WHERE id").
		WithArgs(requestID).
		WillReturnRows(pendingRequestRow(requestID, uuid.New(), flatID, uuid.New(), models.RequestMoveIn, models.OccupantOwner, nil))
	noOccupancyRow(mock, flatID, sqlmock.AnyArg())
	mock.ExpectQuery("SELECT (.+) FROM flat_current_clients").
		WithArgs(flatID, models.OccupantOwner).
		WillReturnRows(occupancyRow(flatID, uuid.New(), models.OccupantOwner, true))
	mock.ExpectQuery("SELECT (.+) FROM flat_current_clients").
		WithArgs(flatID, models.OccupantOwner).
		WillReturnRows(occupancyRow(flatID, uuid.New(), models.OccupantOwner, true))
	// the dead request is removed outside the failed transaction
	mock.ExpectExec("DELETE FROM occupancy_requests").
		WithArgs(requestID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectRollback()

	err := svc.Approve(requestID, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.Conflict))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprove_DeferredMoveOut(t *testing.T) {
	svc, mock := setupApprovalTest(t)
	requestID := uuid.New()
	future := time.Now().Add(72 * time.Hour)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM occupancy_requests WHERE id").
		WithArgs(requestID).
		WillReturnRows(pendingRequestRow(requestID, uuid.New(), uuid.New(), uuid.New(), models.RequestMoveOut, models.OccupantTenant, &future))
	// no occupancy change yet; the scheduler executes on the date
	mock.ExpectExec("UPDATE occupancy_requests").
		WithArgs(models.RequestApproved, nil, sqlmock.AnyArg(), nil, requestID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectPushLookup(mock)

	err := svc.Approve(requestID, nil)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReject(t *testing.T) {
	svc, mock := setupApprovalTest(t)
	requestID := uuid.New()
	message := "no vacancy"

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM occupancy_requests WHERE id").
		WithArgs(requestID).
		WillReturnRows(pendingRequestRow(requestID, uuid.New(), uuid.New(), uuid.New(), models.RequestMoveIn, models.OccupantTenant, nil))
	mock.ExpectExec("UPDATE occupancy_requests").
		WithArgs(models.RequestRejected, &message, sqlmock.AnyArg(), nil, requestID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectPushLookup(mock)

	err := svc.Reject(requestID, &message)
	require.NoError(t, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReject_RequiresMessage(t *testing.T) {
	svc, _ := setupApprovalTest(t)
	blank := "   "

	err := svc.Reject(uuid.New(), nil)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.BadRequest))

	err = svc.Reject(uuid.New(), &blank)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.BadRequest))
}

func TestSubmitRequest_MoveIn(t *testing.T) {
	svc, mock := setupApprovalTest(t)
	apartmentID, flatID, clientID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM flats").
		WithArgs(flatID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "apartment_id", "floor_id", "number", "archived", "created_at"}).
			AddRow(flatID, apartmentID, uuid.New(), "12A", false, time.Now()))
	noOccupancyRow(mock, flatID, models.OccupantTenant)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(flatID, clientID, models.RequestMoveIn).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))
	mock.ExpectExec("INSERT INTO occupancy_requests").
		WillReturnResult(sqlmock.NewResult(1, 1))

	req, err := svc.SubmitRequest(apartmentID, flatID, clientID, models.RequestMoveIn, models.OccupantTenant, true, nil)
	require.NoError(t, err)
	assert.Equal(t, models.RequestPending, req.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSubmitRequest_DuplicatePending(t *testing.T) {
	svc, mock := setupApprovalTest(t)
	apartmentID, flatID, clientID := uuid.New(), uuid.New(), uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM flats").
		WithArgs(flatID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "apartment_id", "floor_id", "number", "archived", "created_at"}).
			AddRow(flatID, apartmentID, uuid.New(), "12A", false, time.Now()))
	noOccupancyRow(mock, flatID, models.OccupantTenant)
	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(flatID, clientID, models.RequestMoveIn).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := svc.SubmitRequest(apartmentID, flatID, clientID, models.RequestMoveIn, models.OccupantTenant, true, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.Conflict))
}

func TestSubmitRequest_WrongApartment(t *testing.T) {
	svc, mock := setupApprovalTest(t)
	flatID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM flats").
		WithArgs(flatID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "apartment_id", "floor_id", "number", "archived", "created_at"}).
			AddRow(flatID, uuid.New(), uuid.New(), "3B", false, time.Now()))

	_, err := svc.SubmitRequest(uuid.New(), flatID, uuid.New(), models.RequestMoveIn, models.OccupantTenant, true, nil)
	require.Error(t, err)
	assert.True(t, apperror.IsKind(err, apperror.NotFound))
}

func TestExecuteDueMoveOuts(t *testing.T) {
	svc, mock := setupApprovalTest(t)
	requestID, apartmentID, flatID, clientID := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	dueDate := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM occupancy_requests").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(requestRowColumns).
			AddRow(requestID, apartmentID, flatID, clientID, models.RequestMoveOut, models.OccupantOwnerFamily,
				true, &dueDate, models.RequestApproved, nil, &dueDate, nil, time.Now()))

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM flat_current_clients").
		WithArgs(flatID, clientID).
		WillReturnRows(occupancyRow(flatID, clientID, models.OccupantOwnerFamily, true))
	mock.ExpectExec("DELETE FROM flat_current_clients").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("DELETE FROM gate_passes").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE occupancy_requests SET executed_at").
		WithArgs(sqlmock.AnyArg(), requestID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectPushLookup(mock)

	executed, err := svc.ExecuteDueMoveOuts(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, executed)

	assert.NoError(t, mock.ExpectationsWereMet())
}

// A move-out already executed by another path must not fail the run: the
// request is stamped executed and the scheduler stops retrying.
func TestExecuteDueMoveOuts_AlreadyVacated(t *testing.T) {
	svc, mock := setupApprovalTest(t)
	requestID, flatID, clientID := uuid.New(), uuid.New(), uuid.New()
	dueDate := time.Now().Add(-24 * time.Hour)

	mock.ExpectQuery("SELECT (.+) FROM occupancy_requests").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows(requestRowColumns).
			AddRow(requestID, uuid.New(), flatID, clientID, models.RequestMoveOut, models.OccupantTenant,
				true, &dueDate, models.RequestApproved, nil, &dueDate, nil, time.Now()))

	mock.ExpectBegin()
	noOccupancyRow(mock, flatID, clientID)
	mock.ExpectExec("UPDATE occupancy_requests SET executed_at").
		WithArgs(sqlmock.AnyArg(), requestID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()
	expectPushLookup(mock)

	executed, err := svc.ExecuteDueMoveOuts(time.Now())
	require.NoError(t, err)
	assert.Equal(t, 1, executed)

	assert.NoError(t, mock.ExpectationsWereMet())
}
