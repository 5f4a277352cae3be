package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/smartresidence/resident-backend/internal/config"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/internal/models"
	"github.com/smartresidence/resident-backend/internal/services"
	"github.com/smartresidence/resident-backend/internal/utils"
	"github.com/smartresidence/resident-backend/pkg/jwt"
	"github.com/smartresidence/resident-backend/pkg/validator"
	"golang.org/x/crypto/bcrypt"
)

// AuthHandler handles authentication for all four panels: resident phone OTP,
// admin/superadmin email+password, guard phone+password, plus refresh
// rotation and logout shared by everyone.
type AuthHandler struct {
	jwtService       *jwt.Service
	otpService       *services.OTPService
	rateLimitService *services.RateLimitService
	phoneValidator   *validator.PhoneValidator
	clientRepo       *database.ClientUserRepository
	adminRepo        *database.AdminUserRepository
	guardRepo        *database.GuardRepository
	config           *config.Config
	logger           *logrus.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(
	jwtService *jwt.Service,
	otpService *services.OTPService,
	rateLimitService *services.RateLimitService,
	phoneValidator *validator.PhoneValidator,
	clientRepo *database.ClientUserRepository,
	adminRepo *database.AdminUserRepository,
	guardRepo *database.GuardRepository,
	cfg *config.Config,
	logger *logrus.Logger,
) *AuthHandler {
	return &AuthHandler{
		jwtService:       jwtService,
		otpService:       otpService,
		rateLimitService: rateLimitService,
		phoneValidator:   phoneValidator,
		clientRepo:       clientRepo,
		adminRepo:        adminRepo,
		guardRepo:        guardRepo,
		config:           cfg,
		logger:           logger,
	}
}

// TokenPairResponse is the common success shape for every login and refresh
type TokenPairResponse struct {
	Message      string `json:"message"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in_seconds"`
	Panel        string `json:"panel"`
}

// SendOTPRequest represents the request to send a login OTP
type SendOTPRequest struct {
	Phone string `json:"phone" binding:"required"`
}

// SendOTP handles POST /api/v1/auth/client/send-otp
func (h *AuthHandler) SendOTP(c *gin.Context) {
	var req SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	phone, err := h.phoneValidator.Validate(req.Phone)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Status:  "invalid_phone",
			Message: err.Error(),
		})
		return
	}

	clientIP := utils.GetRealIP(c)
	userAgent := utils.GetUserAgent(c)

	if err := h.rateLimitService.CheckOTPRateLimit(phone, clientIP); err != nil {
		if rateLimitErr, ok := err.(*services.RateLimitError); ok {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"status":      "rate_limit_exceeded",
				"message":     rateLimitErr.Message,
				"retry_after": rateLimitErr.RetryAfter,
				"type":        rateLimitErr.Type,
			})
			return
		}
		respondError(c, h.logger, err)
		return
	}

	otp, err := h.otpService.GenerateOTP(phone, clientIP, userAgent)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.rateLimitService.RecordOTPRequest(phone, clientIP); err != nil {
		// The OTP is already stored; log and keep going
		h.logger.WithError(err).Warn("Failed to record rate limit entry")
	}

	if err := h.otpService.DeliverOTP(phone, otp); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Status:  "sms_send_failed",
			Message: "Failed to send OTP via SMS. Please try again.",
		})
		return
	}

	expiresIn := h.config.Auth.OTPExpiryMinutes * 60

	if h.otpService.DevMode() {
		c.JSON(http.StatusOK, gin.H{
			"message":    "OTP generated (dev mode - no SMS sent)",
			"phone":      phone,
			"expires_in": expiresIn,
			"otp":        otp,
			"mode":       "dev",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":    "OTP sent to your phone",
		"phone":      phone,
		"expires_in": expiresIn,
	})
}

// VerifyOTPRequest represents the request to verify a login OTP. New
// residents provide apartment_id and name so the account can be created on
// first verification.
type VerifyOTPRequest struct {
	Phone       string     `json:"phone" binding:"required"`
	OTP         string     `json:"otp" binding:"required"`
	ApartmentID *uuid.UUID `json:"apartment_id,omitempty"`
	Name        string     `json:"name,omitempty"`
}

// VerifyOTP handles POST /api/v1/auth/client/verify-otp
func (h *AuthHandler) VerifyOTP(c *gin.Context) {
	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	phone, err := h.phoneValidator.Validate(req.Phone)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Status:  "invalid_phone",
			Message: err.Error(),
		})
		return
	}

	valid, err := h.otpService.ValidateOTP(phone, services.NormalizeOTP(req.OTP))
	if err != nil || !valid {
		remaining, _ := h.otpService.GetRemainingAttempts(phone)
		c.JSON(http.StatusUnauthorized, gin.H{
			"status":             "invalid_otp",
			"message":            "The code is incorrect or has expired",
			"remaining_attempts": remaining,
		})
		return
	}

	client, err := h.clientRepo.GetClientUserByPhone(phone)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	isNewUser := false
	if client == nil {
		if req.ApartmentID == nil || req.Name == "" {
			c.JSON(http.StatusNotFound, ErrorResponse{
				Status:  "no_account",
				Message: "No account exists for this phone. Provide apartment_id and name to register.",
				Code:    "REGISTRATION_REQUIRED",
			})
			return
		}

		client, err = h.clientRepo.CreateClientUser(*req.ApartmentID, req.Name, phone)
		if err != nil {
			respondError(c, h.logger, err)
			return
		}
		isNewUser = true
	}

	if !client.Verified {
		if err := h.clientRepo.SetVerified(client.ID, true); err != nil {
			respondError(c, h.logger, err)
			return
		}
	}

	apartmentID := client.ApartmentID
	identity := jwt.Identity{
		UserID:      client.ID,
		ApartmentID: &apartmentID,
		Panel:       jwt.PanelClient,
		Name:        client.Name,
	}

	access, refresh, err := h.issueTokens(c, identity, func(hash string) error {
		return h.clientRepo.AppendRefreshToken(client.ID, hash, h.config.Auth.RefreshTokenCap)
	})
	if err != nil {
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":       "Login successful",
		"access_token":  access,
		"refresh_token": refresh,
		"expires_in":    int(h.config.JWT.AccessTokenExpiry.Seconds()),
		"panel":         jwt.PanelClient,
		"is_new_user":   isNewUser,
		"client":        client,
	})
}

// AdminLoginRequest represents an email+password login
type AdminLoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AdminLogin handles POST /api/v1/auth/admin/login. Superadmins and apartment
// admins share the endpoint; the issued panel follows the account role.
func (h *AuthHandler) AdminLogin(c *gin.Context) {
	var req AdminLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	admin, err := h.adminRepo.GetAdminUserByEmail(req.Email)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if admin == nil || bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Status:  "invalid_credentials",
			Message: "Email or password is incorrect",
		})
		return
	}

	panel := jwt.PanelAdmin
	if admin.Role == models.RoleSuperAdmin {
		panel = jwt.PanelSuperadmin
	}

	identity := jwt.Identity{
		UserID:      admin.ID,
		ApartmentID: admin.ApartmentID,
		Panel:       panel,
		Name:        admin.Name,
	}

	access, refresh, err := h.issueTokens(c, identity, func(hash string) error {
		return h.adminRepo.AppendRefreshToken(admin.ID, hash, h.config.Auth.RefreshTokenCap)
	})
	if err != nil {
		return
	}

	c.JSON(http.StatusOK, TokenPairResponse{
		Message:      "Login successful",
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(h.config.JWT.AccessTokenExpiry.Seconds()),
		Panel:        string(panel),
	})
}

// GuardLoginRequest represents a guard phone+password login, scoped to one
// apartment since guard phones are only unique per apartment.
type GuardLoginRequest struct {
	ApartmentID uuid.UUID `json:"apartment_id" binding:"required"`
	Phone       string    `json:"phone" binding:"required"`
	Password    string    `json:"password" binding:"required"`
}

// GuardLogin handles POST /api/v1/auth/guard/login
func (h *AuthHandler) GuardLogin(c *gin.Context) {
	var req GuardLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	phone, err := h.phoneValidator.Validate(req.Phone)
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Status:  "invalid_phone",
			Message: err.Error(),
		})
		return
	}

	guard, err := h.guardRepo.GetGuardByPhone(req.ApartmentID, phone)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if guard == nil || bcrypt.CompareHashAndPassword([]byte(guard.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Status:  "invalid_credentials",
			Message: "Phone or password is incorrect",
		})
		return
	}

	apartmentID := guard.ApartmentID
	identity := jwt.Identity{
		UserID:      guard.ID,
		ApartmentID: &apartmentID,
		Panel:       jwt.PanelGuard,
		Name:        guard.Name,
	}

	access, refresh, err := h.issueTokens(c, identity, func(hash string) error {
		return h.guardRepo.AppendRefreshToken(guard.ID, hash, h.config.Auth.RefreshTokenCap)
	})
	if err != nil {
		return
	}

	c.JSON(http.StatusOK, TokenPairResponse{
		Message:      "Login successful",
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(h.config.JWT.AccessTokenExpiry.Seconds()),
		Panel:        string(jwt.PanelGuard),
	})
}

// RefreshRequest carries the refresh token being rotated or revoked
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Refresh handles POST /api/v1/auth/refresh. The presented token must still
// be on the account's list; rotation evicts it and appends the replacement,
// so a stolen-then-rotated token dies on its next use.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Status:  "invalid_token",
			Message: "Refresh token is invalid or expired",
		})
		return
	}

	hash := database.HashToken(req.RefreshToken)

	known, err := h.hasRefreshToken(claims.Panel, claims.UserID, hash)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	if !known {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Status:  "invalid_token",
			Message: "Refresh token has been revoked",
			Code:    "TOKEN_REVOKED",
		})
		return
	}

	identity := jwt.Identity{
		UserID:      claims.UserID,
		ApartmentID: claims.ApartmentID,
		Panel:       claims.Panel,
		Name:        claims.Name,
	}

	access, refresh, err := h.jwtService.GeneratePair(identity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if err := h.removeRefreshToken(claims.Panel, claims.UserID, hash); err != nil {
		respondError(c, h.logger, err)
		return
	}
	if err := h.appendRefreshToken(claims.Panel, claims.UserID, database.HashToken(refresh)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, TokenPairResponse{
		Message:      "Token refreshed",
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int(h.config.JWT.AccessTokenExpiry.Seconds()),
		Panel:        string(claims.Panel),
	})
}

// Logout handles POST /api/v1/auth/logout. Only the presented refresh token
// is revoked; other devices stay signed in.
func (h *AuthHandler) Logout(c *gin.Context) {
	var req RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "Invalid request body")
		return
	}

	claims, err := h.jwtService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		// Already unusable; treat as logged out
		c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
		return
	}

	if err := h.removeRefreshToken(claims.Panel, claims.UserID, database.HashToken(req.RefreshToken)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// issueTokens mints a pair, persists the refresh hash and logs the device.
// On failure it writes the error response and returns a non-nil error so the
// caller can just return.
func (h *AuthHandler) issueTokens(c *gin.Context, identity jwt.Identity, persist func(hash string) error) (string, string, error) {
	access, refresh, err := h.jwtService.GeneratePair(identity)
	if err != nil {
		respondError(c, h.logger, err)
		return "", "", err
	}

	if err := persist(database.HashToken(refresh)); err != nil {
		respondError(c, h.logger, err)
		return "", "", err
	}

	device := utils.ParseUserAgent(utils.GetUserAgent(c))
	h.logger.WithFields(logrus.Fields{
		"user_id": identity.UserID,
		"panel":   identity.Panel,
		"device":  device.Label(),
		"ip":      utils.GetRealIP(c),
		"at":      time.Now().Format(time.RFC3339),
	}).Info("Login session created")

	return access, refresh, nil
}

func (h *AuthHandler) hasRefreshToken(panel jwt.Panel, userID uuid.UUID, hash string) (bool, error) {
	switch panel {
	case jwt.PanelClient:
		return h.clientRepo.HasRefreshToken(userID, hash)
	case jwt.PanelGuard:
		return h.guardRepo.HasRefreshToken(userID, hash)
	default:
		return h.adminRepo.HasRefreshToken(userID, hash)
	}
}

func (h *AuthHandler) removeRefreshToken(panel jwt.Panel, userID uuid.UUID, hash string) error {
	switch panel {
	case jwt.PanelClient:
		return h.clientRepo.RemoveRefreshToken(userID, hash)
	case jwt.PanelGuard:
		return h.guardRepo.RemoveRefreshToken(userID, hash)
	default:
		return h.adminRepo.RemoveRefreshToken(userID, hash)
	}
}

func (h *AuthHandler) appendRefreshToken(panel jwt.Panel, userID uuid.UUID, hash string) error {
	switch panel {
	case jwt.PanelClient:
		return h.clientRepo.AppendRefreshToken(userID, hash, h.config.Auth.RefreshTokenCap)
	case jwt.PanelGuard:
		return h.guardRepo.AppendRefreshToken(userID, hash, h.config.Auth.RefreshTokenCap)
	default:
		return h.adminRepo.AppendRefreshToken(userID, hash, h.config.Auth.RefreshTokenCap)
	}
}
