package validator

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrEmptyPhone indicates phone number is empty
	ErrEmptyPhone = errors.New("phone number cannot be empty")

	// ErrInvalidFormat indicates phone number contains invalid characters
	ErrInvalidFormat = errors.New("phone number can only contain digits after the country code")

	// ErrInvalidNumber indicates phone number does not normalize to E.164
	ErrInvalidNumber = errors.New("phone number must be a valid mobile number")
)

// e164Regex matches ITU-T E.164: + followed by 8 to 15 digits
var e164Regex = regexp.MustCompile(`^\+[1-9]\d{7,14}$`)

// digitsRegex matches digits only
var digitsRegex = regexp.MustCompile(`^\d+$`)

// PhoneValidator normalizes phone numbers to E.164. Local numbers without a
// country code default to the configured one, so "0771234567" becomes
// "+94771234567" with the default country code "94".
type PhoneValidator struct {
	defaultCountryCode string
}

// NewPhoneValidator creates a new phone validator instance
func NewPhoneValidator(defaultCountryCode string) *PhoneValidator {
	if defaultCountryCode == "" {
		defaultCountryCode = "94"
	}
	return &PhoneValidator{defaultCountryCode: defaultCountryCode}
}

// Validate validates a phone number and returns its E.164 form.
// Accepts "+94771234567", "94771234567", "0771234567", "077 123 4567"
// and the dashed/parenthesized variants of each.
func (v *PhoneValidator) Validate(phone string) (string, error) {
	if phone == "" {
		return "", ErrEmptyPhone
	}

	sanitized := v.Sanitize(phone)

	digits := strings.TrimPrefix(sanitized, "+")
	if !digitsRegex.MatchString(digits) {
		return "", ErrInvalidFormat
	}

	if !e164Regex.MatchString(sanitized) {
		return "", ErrInvalidNumber
	}

	return sanitized, nil
}

// Sanitize strips separators and normalizes the prefix toward E.164 without
// validating the result.
func (v *PhoneValidator) Sanitize(phone string) string {
	// Remove spaces, dashes, parentheses, and other common separators
	phone = strings.ReplaceAll(phone, " ", "")
	phone = strings.ReplaceAll(phone, "-", "")
	phone = strings.ReplaceAll(phone, "(", "")
	phone = strings.ReplaceAll(phone, ")", "")
	phone = strings.ReplaceAll(phone, ".", "")

	if strings.HasPrefix(phone, "+") {
		return phone
	}

	// "00" international prefix
	if strings.HasPrefix(phone, "00") && len(phone) > 2 {
		return "+" + phone[2:]
	}

	// Local format: replace the leading 0 with the default country code
	if strings.HasPrefix(phone, "0") {
		return "+" + v.defaultCountryCode + phone[1:]
	}

	// Bare digits already starting with the country code
	if strings.HasPrefix(phone, v.defaultCountryCode) {
		return "+" + phone
	}

	return "+" + phone
}

// IsValid is a convenience method that returns true if phone is valid
func (v *PhoneValidator) IsValid(phone string) bool {
	_, err := v.Validate(phone)
	return err == nil
}

// MustValidate validates and panics if invalid (use for testing only)
func (v *PhoneValidator) MustValidate(phone string) string {
	sanitized, err := v.Validate(phone)
	if err != nil {
		panic(fmt.Sprintf("invalid phone number %s: %v", phone, err))
	}
	return sanitized
}
