package middleware

import (
	"log"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/smartresidence/resident-backend/pkg/jwt"
)

// IdentityContextKey is the key used to store the authenticated identity in Gin context
const IdentityContextKey = "identity"

// AuthMiddleware creates a middleware that validates JWT access tokens and
// stores the resulting identity in the Gin context.
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			log.Printf("AUTH FAILED: Missing authorization header - Path: %s, IP: %s", c.Request.URL.Path, c.ClientIP())
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "unauthorized",
				"message": "Authorization header is required",
				"code":    "MISSING_AUTH_HEADER",
			})
			c.Abort()
			return
		}

		// Check Bearer token format
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "unauthorized",
				"message": "Invalid authorization header format. Expected: Bearer <token>",
				"code":    "INVALID_AUTH_FORMAT",
			})
			c.Abort()
			return
		}

		tokenString := strings.TrimSpace(parts[1])
		if tokenString == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "unauthorized",
				"message": "Token cannot be empty",
				"code":    "INVALID_AUTH_FORMAT",
			})
			c.Abort()
			return
		}

		claims, err := jwtService.ValidateAccessToken(tokenString)
		if err != nil {
			if jwtService.IsTokenExpired(tokenString) {
				log.Printf("AUTH FAILED: Token expired - Path: %s, IP: %s", c.Request.URL.Path, c.ClientIP())
				c.JSON(http.StatusUnauthorized, gin.H{
					"status":  "token_expired",
					"message": "Access token has expired. Please refresh your token.",
					"code":    "TOKEN_EXPIRED",
				})
			} else {
				log.Printf("AUTH FAILED: Invalid token - Path: %s, IP: %s, Error: %v", c.Request.URL.Path, c.ClientIP(), err)
				c.JSON(http.StatusUnauthorized, gin.H{
					"status":  "invalid_token",
					"message": "Invalid access token",
					"code":    "INVALID_TOKEN",
				})
			}
			c.Abort()
			return
		}

		c.Set(IdentityContextKey, jwt.Identity{
			UserID:      claims.UserID,
			ApartmentID: claims.ApartmentID,
			Panel:       claims.Panel,
			Name:        claims.Name,
		})

		c.Next()
	}
}

// RequirePanel creates a middleware that only lets tokens minted for one of
// the given panels through. Panels never overlap: a guard token is useless on
// the admin panel even when both belong to the same apartment.
func RequirePanel(panels ...jwt.Panel) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, exists := GetIdentity(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "unauthorized",
				"message": "Identity not found. Auth middleware may not be applied.",
				"code":    "MISSING_IDENTITY",
			})
			c.Abort()
			return
		}

		allowed := false
		for _, panel := range panels {
			if identity.Panel == panel {
				allowed = true
				break
			}
		}

		if !allowed {
			c.JSON(http.StatusForbidden, gin.H{
				"status":  "forbidden",
				"message": "This token is not valid for this panel",
				"code":    "WRONG_PANEL",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RequireApartmentScope rejects tokens that carry no apartment — superadmin
// tokens on apartment-scoped routes, primarily.
func RequireApartmentScope() gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, exists := GetIdentity(c)
		if !exists {
			c.JSON(http.StatusUnauthorized, gin.H{
				"status":  "unauthorized",
				"message": "Identity not found",
				"code":    "MISSING_IDENTITY",
			})
			c.Abort()
			return
		}

		if identity.ApartmentID == nil {
			c.JSON(http.StatusForbidden, gin.H{
				"status":  "forbidden",
				"message": "This endpoint requires an apartment-scoped token",
				"code":    "MISSING_APARTMENT_SCOPE",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// GetIdentity retrieves the authenticated identity from the Gin context
func GetIdentity(c *gin.Context) (jwt.Identity, bool) {
	value, exists := c.Get(IdentityContextKey)
	if !exists {
		return jwt.Identity{}, false
	}

	identity, ok := value.(jwt.Identity)
	if !ok {
		return jwt.Identity{}, false
	}

	return identity, true
}

// MustGetIdentity retrieves the identity or panics (use only after AuthMiddleware)
func MustGetIdentity(c *gin.Context) jwt.Identity {
	identity, exists := GetIdentity(c)
	if !exists {
		panic("identity not found - ensure AuthMiddleware is applied")
	}
	return identity
}

// ApartmentID returns the apartment the token is scoped to. Call only behind
// RequireApartmentScope.
func ApartmentID(c *gin.Context) uuid.UUID {
	identity := MustGetIdentity(c)
	if identity.ApartmentID == nil {
		panic("apartment scope not found - ensure RequireApartmentScope is applied")
	}
	return *identity.ApartmentID
}
