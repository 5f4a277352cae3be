package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRateLimitTest(t *testing.T) (*RateLimitService, sqlmock.Sqlmock) {
	db, mock := newTestDB(t)
	return NewRateLimitService(db, DefaultRateLimitConfig()), mock
}

func rateLimitCountRows(count int, lastRequest time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"count", "last_request"}).AddRow(count, lastRequest)
}

func TestCheckOTPRateLimit_NoRequests(t *testing.T) {
	service, mock := setupRateLimitTest(t)

	phone := "+94771234567"
	ip := "192.168.1.1"

	mock.ExpectQuery("SELECT COUNT(.+) FROM otp_rate_limits").
		WithArgs(phone, "phone", sqlmock.AnyArg()).
		WillReturnRows(rateLimitCountRows(0, time.Now()))

	mock.ExpectQuery("SELECT COUNT(.+) FROM otp_rate_limits").
		WithArgs(ip, "ip", sqlmock.AnyArg()).
		WillReturnRows(rateLimitCountRows(0, time.Now()))

	err := service.CheckOTPRateLimit(phone, ip)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckOTPRateLimit_PhoneExceeded(t *testing.T) {
	service, mock := setupRateLimitTest(t)

	phone := "+94771234567"
	lastRequest := time.Now().Add(-5 * time.Minute)

	mock.ExpectQuery("SELECT COUNT(.+) FROM otp_rate_limits").
		WithArgs(phone, "phone", sqlmock.AnyArg()).
		WillReturnRows(rateLimitCountRows(3, lastRequest))

	err := service.CheckOTPRateLimit(phone, "192.168.1.1")
	assert.Error(t, err)

	rateLimitErr, ok := err.(*RateLimitError)
	require.True(t, ok, "Error should be RateLimitError")
	assert.Equal(t, "phone", rateLimitErr.Type)
	assert.Contains(t, rateLimitErr.Message, "Too many OTP requests for this phone number")
	assert.True(t, rateLimitErr.RetryAfter.After(time.Now()))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckOTPRateLimit_IPExceeded(t *testing.T) {
	service, mock := setupRateLimitTest(t)

	phone := "+94771234567"
	ip := "192.168.1.1"
	lastRequest := time.Now().Add(-30 * time.Minute)

	mock.ExpectQuery("SELECT COUNT(.+) FROM otp_rate_limits").
		WithArgs(phone, "phone", sqlmock.AnyArg()).
		WillReturnRows(rateLimitCountRows(2, lastRequest))

	mock.ExpectQuery("SELECT COUNT(.+) FROM otp_rate_limits").
		WithArgs(ip, "ip", sqlmock.AnyArg()).
		WillReturnRows(rateLimitCountRows(10, lastRequest))

	err := service.CheckOTPRateLimit(phone, ip)
	assert.Error(t, err)

	rateLimitErr, ok := err.(*RateLimitError)
	require.True(t, ok, "Error should be RateLimitError")
	assert.Equal(t, "ip", rateLimitErr.Type)
	assert.Contains(t, rateLimitErr.Message, "Too many OTP requests from this IP address")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckOTPRateLimit_BelowLimit(t *testing.T) {
	service, mock := setupRateLimitTest(t)

	phone := "+94771234567"
	ip := "192.168.1.1"
	lastRequest := time.Now().Add(-2 * time.Minute)

	mock.ExpectQuery("SELECT COUNT(.+) FROM otp_rate_limits").
		WithArgs(phone, "phone", sqlmock.AnyArg()).
		WillReturnRows(rateLimitCountRows(2, lastRequest))

	mock.ExpectQuery("SELECT COUNT(.+) FROM otp_rate_limits").
		WithArgs(ip, "ip", sqlmock.AnyArg()).
		WillReturnRows(rateLimitCountRows(5, lastRequest))

	err := service.CheckOTPRateLimit(phone, ip)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordOTPRequest_Success(t *testing.T) {
	service, mock := setupRateLimitTest(t)

	phone := "+94771234567"
	ip := "192.168.1.1"

	mock.ExpectExec("INSERT INTO otp_rate_limits").
		WithArgs(phone, "phone").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec("INSERT INTO otp_rate_limits").
		WithArgs(ip, "ip").
		WillReturnResult(sqlmock.NewResult(2, 1))

	err := service.RecordOTPRequest(phone, ip)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordOTPRequest_PhoneOnly(t *testing.T) {
	service, mock := setupRateLimitTest(t)

	phone := "+94771234567"

	mock.ExpectExec("INSERT INTO otp_rate_limits").
		WithArgs(phone, "phone").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := service.RecordOTPRequest(phone, "")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordOTPRequest_IPOnly(t *testing.T) {
	service, mock := setupRateLimitTest(t)

	ip := "192.168.1.1"

	mock.ExpectExec("INSERT INTO otp_rate_limits").
		WithArgs(ip, "ip").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := service.RecordOTPRequest("", ip)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupExpiredRateLimits(t *testing.T) {
	service, mock := setupRateLimitTest(t)

	mock.ExpectExec("DELETE FROM otp_rate_limits").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 10))

	rowsAffected, err := service.CleanupExpiredRateLimits()
	assert.NoError(t, err)
	assert.Equal(t, int64(10), rowsAffected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRateLimited_NotLimited(t *testing.T) {
	service, mock := setupRateLimitTest(t)

	phone := "+94771234567"
	lastRequest := time.Now().Add(-2 * time.Minute)

	mock.ExpectQuery("SELECT COUNT(.+) FROM otp_rate_limits").
		WithArgs(phone, "phone", sqlmock.AnyArg()).
		WillReturnRows(rateLimitCountRows(2, lastRequest))

	isLimited, retryAfter, err := service.IsRateLimited(phone, "phone")
	assert.NoError(t, err)
	assert.False(t, isLimited)
	assert.True(t, retryAfter.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestIsRateLimited_Limited(t *testing.T) {
	service, mock := setupRateLimitTest(t)

	phone := "+94771234567"
	lastRequest := time.Now().Add(-5 * time.Minute)

	mock.ExpectQuery("SELECT COUNT(.+) FROM otp_rate_limits").
		WithArgs(phone, "phone", sqlmock.AnyArg()).
		WillReturnRows(rateLimitCountRows(3, lastRequest))

	isLimited, retryAfter, err := service.IsRateLimited(phone, "phone")
	assert.NoError(t, err)
	assert.True(t, isLimited)
	assert.True(t, retryAfter.After(time.Now()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCheckOTPRateLimit_DatabaseError(t *testing.T) {
	service, mock := setupRateLimitTest(t)

	phone := "+94771234567"

	mock.ExpectQuery("SELECT COUNT(.+) FROM otp_rate_limits").
		WithArgs(phone, "phone", sqlmock.AnyArg()).
		WillReturnError(sql.ErrConnDone)

	err := service.CheckOTPRateLimit(phone, "")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to check phone rate limit")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDefaultRateLimitConfig(t *testing.T) {
	config := DefaultRateLimitConfig()

	assert.Equal(t, 3, config.MaxPhoneRequests)
	assert.Equal(t, 10*time.Minute, config.PhoneWindow)
	assert.Equal(t, 10, config.MaxIPRequests)
	assert.Equal(t, 1*time.Hour, config.IPWindow)
}
