package services

import (
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/smartresidence/resident-backend/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupOTPTest(t *testing.T) (*OTPService, sqlmock.Sqlmock) {
	t.Helper()

	db, mock := newTestDB(t)
	cfg := config.AuthConfig{
		OTPLength:        6,
		OTPExpiryMinutes: 5,
		OTPMaxAttempts:   3,
	}

	return NewOTPService(db, nil, cfg, "dev", testLogger()), mock
}

const otpColumns = "id, phone, otp_code, created_at, expires_at, verified, verified_at, attempts, ip_address, user_agent"

func otpRow(phone, code string, expiresAt time.Time, verified bool, attempts int) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "phone", "otp_code", "created_at", "expires_at", "verified", "verified_at", "attempts", "ip_address", "user_agent"}).
		AddRow(1, phone, code, time.Now(), expiresAt, verified, nil, attempts, nil, nil)
}

func TestNewOTPService(t *testing.T) {
	service, _ := setupOTPTest(t)
	assert.NotNil(t, service)
	assert.True(t, service.DevMode())
}

func TestGenerateOTP(t *testing.T) {
	service, mock := setupOTPTest(t)
	phone := "+94771234567"

	// Expect invalidate query
	mock.ExpectExec("UPDATE otp_verifications").
		WithArgs(phone).
		WillReturnResult(sqlmock.NewResult(0, 0))

	// Expect insert query
	mock.ExpectExec("INSERT INTO otp_verifications").
		WithArgs(phone, sqlmock.AnyArg(), sqlmock.AnyArg(), "1.2.3.4", "test-agent").
		WillReturnResult(sqlmock.NewResult(1, 1))

	otp, err := service.GenerateOTP(phone, "1.2.3.4", "test-agent")
	require.NoError(t, err)
	assert.Len(t, otp, 6)
	assert.Regexp(t, "^[0-9]{6}$", otp)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateOTP_Uniqueness(t *testing.T) {
	service, mock := setupOTPTest(t)
	phone := "+94771234567"

	otps := make(map[string]bool)

	for i := 0; i < 100; i++ {
		mock.ExpectExec("UPDATE otp_verifications").
			WithArgs(phone).
			WillReturnResult(sqlmock.NewResult(0, 0))

		mock.ExpectExec("INSERT INTO otp_verifications").
			WithArgs(phone, sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
			WillReturnResult(sqlmock.NewResult(1, 1))

		otp, err := service.GenerateOTP(phone, "1.2.3.4", "test-agent")
		require.NoError(t, err)
		otps[otp] = true
	}

	// Should generate different OTPs (at least 80% unique)
	assert.Greater(t, len(otps), 80)
}

func TestValidateOTP_Success(t *testing.T) {
	service, mock := setupOTPTest(t)
	phone := "+94771234567"
	otp := "123456"
	expiresAt := time.Now().Add(5 * time.Minute)

	mock.ExpectQuery("SELECT (.+) FROM otp_verifications").
		WithArgs(phone).
		WillReturnRows(otpRow(phone, otp, expiresAt, false, 0))

	mock.ExpectExec("UPDATE otp_verifications SET attempts").
		WithArgs(phone).
		WillReturnResult(sqlmock.NewResult(0, 1))

	mock.ExpectExec("UPDATE otp_verifications SET verified").
		WithArgs(sqlmock.AnyArg(), phone).
		WillReturnResult(sqlmock.NewResult(0, 1))

	valid, err := service.ValidateOTP(phone, otp)
	require.NoError(t, err)
	assert.True(t, valid)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateOTP_InvalidCode(t *testing.T) {
	service, mock := setupOTPTest(t)
	phone := "+94771234567"
	expiresAt := time.Now().Add(5 * time.Minute)

	mock.ExpectQuery("SELECT (.+) FROM otp_verifications").
		WithArgs(phone).
		WillReturnRows(otpRow(phone, "123456", expiresAt, false, 0))

	mock.ExpectExec("UPDATE otp_verifications SET attempts").
		WithArgs(phone).
		WillReturnResult(sqlmock.NewResult(0, 1))

	valid, err := service.ValidateOTP(phone, "654321")
	assert.Error(t, err)
	assert.False(t, valid)
	assert.Equal(t, ErrOTPInvalid, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateOTP_Expired(t *testing.T) {
	service, mock := setupOTPTest(t)
	phone := "+94771234567"
	otp := "123456"
	expiresAt := time.Now().Add(-1 * time.Minute) // Expired 1 minute ago

	mock.ExpectQuery("SELECT (.+) FROM otp_verifications").
		WithArgs(phone).
		WillReturnRows(otpRow(phone, otp, expiresAt, false, 0))

	valid, err := service.ValidateOTP(phone, otp)
	assert.Error(t, err)
	assert.False(t, valid)
	assert.Equal(t, ErrOTPExpired, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateOTP_MaxAttemptsExceeded(t *testing.T) {
	service, mock := setupOTPTest(t)
	phone := "+94771234567"
	otp := "123456"
	expiresAt := time.Now().Add(5 * time.Minute)

	mock.ExpectQuery("SELECT (.+) FROM otp_verifications").
		WithArgs(phone).
		WillReturnRows(otpRow(phone, otp, expiresAt, false, 3))

	valid, err := service.ValidateOTP(phone, otp)
	assert.Error(t, err)
	assert.False(t, valid)
	assert.Equal(t, ErrMaxAttemptsExceeded, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateOTP_AlreadyUsed(t *testing.T) {
	service, mock := setupOTPTest(t)
	phone := "+94771234567"
	otp := "123456"
	expiresAt := time.Now().Add(5 * time.Minute)

	mock.ExpectQuery("SELECT (.+) FROM otp_verifications").
		WithArgs(phone).
		WillReturnRows(otpRow(phone, otp, expiresAt, true, 1))

	valid, err := service.ValidateOTP(phone, otp)
	assert.Error(t, err)
	assert.False(t, valid)
	assert.Equal(t, ErrOTPAlreadyUsed, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestValidateOTP_NoOTPFound(t *testing.T) {
	service, mock := setupOTPTest(t)
	phone := "+94771234567"

	mock.ExpectQuery("SELECT (.+) FROM otp_verifications").
		WithArgs(phone).
		WillReturnError(sql.ErrNoRows)

	valid, err := service.ValidateOTP(phone, "123456")
	assert.Error(t, err)
	assert.False(t, valid)
	assert.Equal(t, ErrNoOTPFound, err)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRemainingAttempts(t *testing.T) {
	service, mock := setupOTPTest(t)
	phone := "+94771234567"
	expiresAt := time.Now().Add(5 * time.Minute)

	tests := []struct {
		name           string
		attempts       int
		expectedRemain int
	}{
		{"No attempts yet", 0, 3},
		{"One attempt", 1, 2},
		{"Two attempts", 2, 1},
		{"Max attempts", 3, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			mock.ExpectQuery("SELECT (.+) FROM otp_verifications").
				WithArgs(phone).
				WillReturnRows(otpRow(phone, "123456", expiresAt, false, tc.attempts))

			remaining, err := service.GetRemainingAttempts(phone)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedRemain, remaining)
		})
	}

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCleanupExpiredOTPs(t *testing.T) {
	service, mock := setupOTPTest(t)

	mock.ExpectExec("DELETE FROM otp_verifications").
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 5))

	rowsAffected, err := service.CleanupExpiredOTPs()
	require.NoError(t, err)
	assert.Equal(t, int64(5), rowsAffected)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGenerateRandomOTP(t *testing.T) {
	for i := 0; i < 100; i++ {
		otp, err := generateRandomOTP(6)
		require.NoError(t, err)
		assert.Len(t, otp, 6)
		assert.Regexp(t, "^[0-9]{6}$", otp)
	}

	// Short lengths fall back to 6 digits
	otp, err := generateRandomOTP(2)
	require.NoError(t, err)
	assert.Len(t, otp, 6)
}

func TestNormalizeOTP(t *testing.T) {
	assert.Equal(t, "123456", NormalizeOTP(" 123 456 "))
	assert.Equal(t, "123456", NormalizeOTP("123456"))
}
