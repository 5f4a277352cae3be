package services

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/smartresidence/resident-backend/internal/config"
	"github.com/smartresidence/resident-backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCronTest(t *testing.T, cfg config.CronConfig) (*CronService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock := newTestDB(t)
	logger := testLogger()

	notifier := NewNotificationService(db, nil, nil, config.EmailConfig{Mode: "dev"}, "dev", logger)
	occupancy := NewOccupancyService(logger)
	approvals := NewApprovalService(db, occupancy, notifier, logger)
	subscription := NewSubscriptionService(db, logger)
	otp := NewOTPService(db, nil, config.AuthConfig{OTPLength: 6, OTPExpiryMinutes: 5, OTPMaxAttempts: 3}, "dev", logger)

	svc, err := NewCronService(db, approvals, subscription, otp, notifier, cfg, logger)
	require.NoError(t, err)

	return svc, mock
}

func TestNewCronService_BadTimezone(t *testing.T) {
	db, _ := newTestDB(t)

	_, err := NewCronService(db, nil, nil, nil, nil, config.CronConfig{Timezone: "Mars/Olympus"}, testLogger())
	require.Error(t, err)
}

func TestCronService_StartAndStop(t *testing.T) {
	svc, _ := setupCronTest(t, config.CronConfig{Timezone: "UTC"})

	require.NoError(t, svc.Start())
	defer svc.Stop()

	status := svc.GetJobStatus()
	assert.Equal(t, true, status["running"])
	assert.Equal(t, 5, status["job_count"])
}

func TestCronService_StatusBeforeStart(t *testing.T) {
	svc, _ := setupCronTest(t, config.CronConfig{Timezone: "UTC"})

	status := svc.GetJobStatus()
	assert.Equal(t, false, status["running"])
	assert.Equal(t, 0, status["job_count"])
}

func TestPublishBlogPostsJob(t *testing.T) {
	svc, mock := setupCronTest(t, config.CronConfig{Timezone: "UTC"})

	mock.ExpectExec("UPDATE blog_posts").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	svc.publishBlogPostsJob()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupOTPsJob(t *testing.T) {
	svc, mock := setupCronTest(t, config.CronConfig{Timezone: "UTC"})

	mock.ExpectExec("DELETE FROM otp_verifications").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	svc.cleanupOTPsJob()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaleApartmentsJob(t *testing.T) {
	svc, mock := setupCronTest(t, config.CronConfig{
		Timezone:               "UTC",
		ApartmentIdleThreshold: 90 * 24 * time.Hour,
	})
	apartmentID := uuid.New()

	staleRows := sqlmock.NewRows([]string{"id", "name", "address", "status", "subscription_status", "logo_url", "last_activity_at", "created_at", "updated_at"}).
		AddRow(apartmentID, "Crescent Heights", "12 Marine Drive", models.ApartmentActive, models.SubscriptionPaid, nil, time.Now().AddDate(0, -4, 0), time.Now().AddDate(-1, 0, 0), time.Now())

	mock.ExpectQuery("SELECT (.+) FROM apartments WHERE status").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(staleRows)
	mock.ExpectExec("UPDATE apartments SET status").
		WithArgs(models.ApartmentInactive, sqlmock.AnyArg(), apartmentID).
		WillReturnResult(sqlmock.NewResult(0, 1))
	// the admin warning email looks up the apartment's admins
	mock.ExpectQuery("SELECT (.+) FROM admin_users WHERE apartment_id").
		WithArgs(apartmentID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	svc.staleApartmentsJob()

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStaleApartmentsJob_NothingStale(t *testing.T) {
	svc, mock := setupCronTest(t, config.CronConfig{
		Timezone:               "UTC",
		ApartmentIdleThreshold: 90 * 24 * time.Hour,
	})

	mock.ExpectQuery("SELECT (.+) FROM apartments WHERE status").
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "address", "status", "subscription_status", "logo_url", "last_activity_at", "created_at", "updated_at"}))

	svc.staleApartmentsJob()

	assert.NoError(t, mock.ExpectationsWereMet())
}
