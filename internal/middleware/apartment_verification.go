package middleware

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smartresidence/resident-backend/internal/database"
	"github.com/smartresidence/resident-backend/internal/models"
)

// RequireActiveApartment rejects requests whose token points at a deactivated
// apartment. Must be used after AuthMiddleware and RequireApartmentScope.
func RequireActiveApartment(apartmentRepo *database.ApartmentRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, exists := GetIdentity(c)
		if !exists || identity.ApartmentID == nil {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "unauthorized",
				"message": "Apartment scope not found",
			})
			c.Abort()
			return
		}

		apartment, err := apartmentRepo.GetApartmentByID(*identity.ApartmentID)
		if err != nil {
			log.Printf("ERROR: Failed to load apartment for status check: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  "database_error",
				"message": "Failed to verify apartment status",
			})
			c.Abort()
			return
		}

		if apartment == nil || apartment.Status != models.ApartmentActive {
			c.JSON(http.StatusForbidden, gin.H{
				"status":  "apartment_inactive",
				"message": "This apartment has been deactivated. Contact support to reactivate it.",
				"code":    "APARTMENT_INACTIVE",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireVerifiedClient rejects client tokens whose account has not completed
// phone verification. Must be used after AuthMiddleware on client routes.
func RequireVerifiedClient(clientRepo *database.ClientUserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, exists := GetIdentity(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "unauthorized",
				"message": "Identity not found",
			})
			c.Abort()
			return
		}

		client, err := clientRepo.GetClientUserByID(identity.UserID)
		if err != nil {
			log.Printf("ERROR: Failed to load client for verification check: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"status":  "database_error",
				"message": "Failed to verify client status",
			})
			c.Abort()
			return
		}

		if client == nil {
			c.JSON(http.StatusForbidden, gin.H{
				"status":  "not_client",
				"message": "Client account not found",
			})
			c.Abort()
			return
		}

		if !client.Verified {
			c.JSON(http.StatusForbidden, gin.H{
				"status":  "not_verified",
				"message": "Your account has not completed phone verification yet.",
				"code":    "ACCOUNT_NOT_VERIFIED",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
