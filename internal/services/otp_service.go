package services

import (
	"crypto/rand"
	"database/sql"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/config"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/internal/models"
	"github.com/smartresidence/resident-backend/pkg/sms"
)

var (
	// ErrOTPExpired indicates the OTP has expired
	ErrOTPExpired = fmt.Errorf("OTP has expired")

	// ErrOTPInvalid indicates the OTP is incorrect
	ErrOTPInvalid = fmt.Errorf("invalid OTP code")

	// ErrMaxAttemptsExceeded indicates too many failed validation attempts
	ErrMaxAttemptsExceeded = fmt.Errorf("maximum OTP validation attempts exceeded")

	// ErrNoOTPFound indicates no OTP exists for the phone number
	ErrNoOTPFound = fmt.Errorf("no OTP found for this phone number")

	// ErrOTPAlreadyUsed indicates the OTP has already been successfully validated
	ErrOTPAlreadyUsed = fmt.Errorf("OTP has already been used")
)

// OTPService handles OTP generation, validation and delivery for resident
// phone login.
type OTPService struct {
	db      database.DB
	gateway sms.Gateway
	cfg     config.AuthConfig
	mode    string
	logger  *logrus.Logger
}

// NewOTPService creates a new OTP service. gateway may be nil in dev mode,
// where codes are logged instead of sent.
func NewOTPService(db database.DB, gateway sms.Gateway, cfg config.AuthConfig, mode string, logger *logrus.Logger) *OTPService {
	return &OTPService{
		db:      db,
		gateway: gateway,
		cfg:     cfg,
		mode:    mode,
		logger:  logger,
	}
}

// GenerateOTP generates a new OTP for the given phone number. It invalidates
// any existing OTPs for the phone and stores IP/User-Agent for security
// tracking.
func (s *OTPService) GenerateOTP(phone, ipAddress, userAgent string) (string, error) {
	// Invalidate any existing OTPs for this phone
	if err := s.InvalidateOTP(phone); err != nil {
		return "", fmt.Errorf("failed to invalidate existing OTP: %w", err)
	}

	otp, err := generateRandomOTP(s.cfg.OTPLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate OTP: %w", err)
	}

	expiresAt := time.Now().Add(time.Duration(s.cfg.OTPExpiryMinutes) * time.Minute)

	query := `
		INSERT INTO otp_verifications (phone, otp_code, expires_at, attempts, ip_address, user_agent)
		VALUES ($1, $2, $3, 0, $4, $5)
	`

	_, err = s.db.Exec(query, phone, otp, expiresAt, ipAddress, userAgent)
	if err != nil {
		return "", fmt.Errorf("failed to store OTP: %w", err)
	}

	return otp, nil
}

// DeliverOTP sends the code to the phone. In dev mode the code is logged and
// returned to the caller instead of being sent.
func (s *OTPService) DeliverOTP(phone, otp string) error {
	if s.mode != "production" || s.gateway == nil {
		s.logger.WithFields(logrus.Fields{
			"phone": phone,
			"otp":   otp,
		}).Info("Dev mode: OTP not sent via SMS")
		return nil
	}

	body := fmt.Sprintf("Your SmartResidence login code is %s. Valid for %d minutes. Do not share this code with anyone.",
		otp, s.cfg.OTPExpiryMinutes)

	if err := s.gateway.Send(phone, body); err != nil {
		return fmt.Errorf("failed to deliver OTP: %w", err)
	}

	return nil
}

// DevMode reports whether the service runs without a real SMS gateway
func (s *OTPService) DevMode() bool {
	return s.mode != "production"
}

// ValidateOTP validates an OTP for the given phone number
func (s *OTPService) ValidateOTP(phone, otp string) (bool, error) {
	otpRecord, err := s.getOTPRecord(phone)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, ErrNoOTPFound
		}
		return false, fmt.Errorf("failed to get OTP record: %w", err)
	}

	// Check if already verified
	if otpRecord.Verified {
		return false, ErrOTPAlreadyUsed
	}

	// Check if expired
	if time.Now().After(otpRecord.ExpiresAt) {
		return false, ErrOTPExpired
	}

	// Check if max attempts exceeded
	if otpRecord.Attempts >= s.cfg.OTPMaxAttempts {
		return false, ErrMaxAttemptsExceeded
	}

	// Increment attempts
	if err := s.incrementAttempts(phone); err != nil {
		return false, fmt.Errorf("failed to increment attempts: %w", err)
	}

	if subtleCompare(otpRecord.OTPCode, otp) != 1 {
		return false, ErrOTPInvalid
	}

	// Mark as verified
	if err := s.markAsVerified(phone); err != nil {
		return false, fmt.Errorf("failed to mark OTP as verified: %w", err)
	}

	return true, nil
}

// InvalidateOTP invalidates any existing OTPs for the given phone number
func (s *OTPService) InvalidateOTP(phone string) error {
	query := `
		UPDATE otp_verifications
		SET verified = true
		WHERE phone = $1 AND verified = false
	`

	_, err := s.db.Exec(query, phone)
	if err != nil {
		return fmt.Errorf("failed to invalidate OTP: %w", err)
	}

	return nil
}

// GetRemainingAttempts returns the number of remaining validation attempts
func (s *OTPService) GetRemainingAttempts(phone string) (int, error) {
	otpRecord, err := s.getOTPRecord(phone)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, ErrNoOTPFound
		}
		return 0, fmt.Errorf("failed to get OTP record: %w", err)
	}

	remaining := s.cfg.OTPMaxAttempts - otpRecord.Attempts
	if remaining < 0 {
		remaining = 0
	}

	return remaining, nil
}

// CleanupExpiredOTPs removes all expired OTP records from the database
func (s *OTPService) CleanupExpiredOTPs() (int64, error) {
	query := `
		DELETE FROM otp_verifications
		WHERE expires_at < $1
	`

	result, err := s.db.Exec(query, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup expired OTPs: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return rowsAffected, nil
}

// getOTPRecord retrieves the active OTP record for the given phone number
func (s *OTPService) getOTPRecord(phone string) (*models.OTPVerification, error) {
	query := `
		SELECT id, phone, otp_code, created_at, expires_at, verified, verified_at, attempts, ip_address, user_agent
		FROM otp_verifications
		WHERE phone = $1 AND verified = false
		ORDER BY created_at DESC
		LIMIT 1
	`

	var otp models.OTPVerification
	err := s.db.QueryRow(query, phone).Scan(
		&otp.ID,
		&otp.Phone,
		&otp.OTPCode,
		&otp.CreatedAt,
		&otp.ExpiresAt,
		&otp.Verified,
		&otp.VerifiedAt,
		&otp.Attempts,
		&otp.IPAddress,
		&otp.UserAgent,
	)

	if err != nil {
		return nil, err
	}

	return &otp, nil
}

// incrementAttempts increments the validation attempts counter
func (s *OTPService) incrementAttempts(phone string) error {
	query := `
		UPDATE otp_verifications
		SET attempts = attempts + 1
		WHERE phone = $1 AND verified = false
	`

	_, err := s.db.Exec(query, phone)
	if err != nil {
		return fmt.Errorf("failed to increment attempts: %w", err)
	}

	return nil
}

// markAsVerified marks the OTP as verified
func (s *OTPService) markAsVerified(phone string) error {
	query := `
		UPDATE otp_verifications
		SET verified = true, verified_at = $1
		WHERE phone = $2 AND verified = false
	`

	_, err := s.db.Exec(query, time.Now(), phone)
	if err != nil {
		return fmt.Errorf("failed to mark OTP as verified: %w", err)
	}

	return nil
}

// generateRandomOTP generates a cryptographically secure random numeric OTP
func generateRandomOTP(length int) (string, error) {
	if length < 4 {
		length = 6
	}

	max := big.NewInt(1)
	for i := 0; i < length; i++ {
		max.Mul(max, big.NewInt(10))
	}

	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%0*d", length, n.Int64()), nil
}

// subtleCompare is a constant-time string comparison returning 1 on equality
func subtleCompare(a, b string) int {
	if len(a) != len(b) {
		return 0
	}

	var v byte
	for i := 0; i < len(a); i++ {
		v |= a[i] ^ b[i]
	}

	if v == 0 {
		return 1
	}
	return 0
}

// NormalizeOTP strips whitespace that mobile keyboards sneak into pasted codes
func NormalizeOTP(otp string) string {
	return strings.TrimSpace(strings.ReplaceAll(otp, " ", ""))
}
