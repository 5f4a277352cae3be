package services

import (
	"fmt"
	"time"

	"github.com/smartresidence/resident-backend/internal/database"
)

// RateLimitService throttles OTP requests with a sliding window per phone
// number and per source IP, backed by the otp_rate_limits table.
type RateLimitService struct {
	db  database.DB
	cfg RateLimitConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	MaxPhoneRequests int           // Max OTP requests per phone
	PhoneWindow      time.Duration // Time window for phone rate limit
	MaxIPRequests    int           // Max OTP requests per IP
	IPWindow         time.Duration // Time window for IP rate limit
}

// DefaultRateLimitConfig returns the default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxPhoneRequests: 3,
		PhoneWindow:      10 * time.Minute,
		MaxIPRequests:    10,
		IPWindow:         1 * time.Hour,
	}
}

// NewRateLimitService creates a new rate limit service
func NewRateLimitService(db database.DB, cfg RateLimitConfig) *RateLimitService {
	return &RateLimitService{db: db, cfg: cfg}
}

// RateLimitError represents a rate limit exceeded error
type RateLimitError struct {
	Message    string
	RetryAfter time.Time
	Type       string // "phone" or "ip"
}

func (e *RateLimitError) Error() string {
	return e.Message
}

// CheckOTPRateLimit checks if a phone number or IP has exceeded rate limits
func (s *RateLimitService) CheckOTPRateLimit(phone, ip string) error {
	if phone != "" {
		count, lastRequest, err := s.getRequestCount(phone, "phone", s.cfg.PhoneWindow)
		if err != nil {
			return fmt.Errorf("failed to check phone rate limit: %w", err)
		}

		if count >= s.cfg.MaxPhoneRequests {
			retryAfter := lastRequest.Add(s.cfg.PhoneWindow)
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many OTP requests for this phone number. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       "phone",
			}
		}
	}

	if ip != "" {
		count, lastRequest, err := s.getRequestCount(ip, "ip", s.cfg.IPWindow)
		if err != nil {
			return fmt.Errorf("failed to check IP rate limit: %w", err)
		}

		if count >= s.cfg.MaxIPRequests {
			retryAfter := lastRequest.Add(s.cfg.IPWindow)
			return &RateLimitError{
				Message:    fmt.Sprintf("Too many OTP requests from this IP address. Please try again after %s", retryAfter.Format("15:04:05")),
				RetryAfter: retryAfter,
				Type:       "ip",
			}
		}
	}

	return nil
}

// getRequestCount gets the number of requests within the time window
func (s *RateLimitService) getRequestCount(identifier, identifierType string, window time.Duration) (int, time.Time, error) {
	windowStart := time.Now().Add(-window)

	row := struct {
		Count       int       `db:"count"`
		LastRequest time.Time `db:"last_request"`
	}{}

	err := s.db.Get(&row, `
		SELECT COUNT(*) AS count, COALESCE(MAX(created_at), NOW()) AS last_request
		FROM otp_rate_limits
		WHERE identifier = $1
		  AND identifier_type = $2
		  AND created_at > $3`,
		identifier, identifierType, windowStart)
	if err != nil {
		return 0, time.Time{}, err
	}

	return row.Count, row.LastRequest, nil
}

// RecordOTPRequest records an OTP request against both windows
func (s *RateLimitService) RecordOTPRequest(phone, ip string) error {
	if phone != "" {
		if err := s.recordRequest(phone, "phone"); err != nil {
			return fmt.Errorf("failed to record phone request: %w", err)
		}
	}

	if ip != "" {
		if err := s.recordRequest(ip, "ip"); err != nil {
			return fmt.Errorf("failed to record IP request: %w", err)
		}
	}

	return nil
}

func (s *RateLimitService) recordRequest(identifier, identifierType string) error {
	_, err := s.db.Exec(`
		INSERT INTO otp_rate_limits (identifier, identifier_type, created_at)
		VALUES ($1, $2, NOW())`,
		identifier, identifierType)
	return err
}

// CleanupExpiredRateLimits removes records older than the longest window
func (s *RateLimitService) CleanupExpiredRateLimits() (int64, error) {
	maxWindow := s.cfg.IPWindow
	if s.cfg.PhoneWindow > maxWindow {
		maxWindow = s.cfg.PhoneWindow
	}

	result, err := s.db.Exec(`DELETE FROM otp_rate_limits WHERE created_at < $1`, time.Now().Add(-maxWindow))
	if err != nil {
		return 0, fmt.Errorf("failed to cleanup rate limits: %w", err)
	}

	return result.RowsAffected()
}

// IsRateLimited checks if an identifier is currently rate limited
func (s *RateLimitService) IsRateLimited(identifier, identifierType string) (bool, time.Time, error) {
	window := s.cfg.PhoneWindow
	maxRequests := s.cfg.MaxPhoneRequests
	if identifierType == "ip" {
		window = s.cfg.IPWindow
		maxRequests = s.cfg.MaxIPRequests
	}

	count, lastRequest, err := s.getRequestCount(identifier, identifierType, window)
	if err != nil {
		return false, time.Time{}, err
	}

	if count >= maxRequests {
		return true, lastRequest.Add(window), nil
	}

	return false, time.Time{}, nil
}
