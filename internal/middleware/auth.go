package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/pkg/utils"
)

// Context keys set by AuthMiddleware.
const (
	UserIDKey = "userId"
	RoleKey   = "role"
)

func AuthMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var tokenString string

		authHeader := c.GetHeader("Authorization")
		if authHeader != "" {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 && parts[0] == "Bearer" {
				tokenString = parts[1]
			}
		}

		// Browsers cannot set headers on a WebSocket handshake.
		if tokenString == "" {
			tokenString = c.Query("token")
		}

		if tokenString == "" {
			abort(c, http.StatusUnauthorized, "Authorization header or token query parameter required")
			return
		}

		claims, err := utils.ValidateToken(tokenString, secret)
		if err != nil {
			abort(c, http.StatusUnauthorized, "Invalid token")
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Set(RoleKey, claims.Role)
		c.Next()
	}
}

// RequireRole lets the request through only for the given roles.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := Role(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": gin.H{
			"kind":    "FORBIDDEN",
			"code":    "FORBIDDEN",
			"message": "insufficient role",
		}})
	}
}

func UserID(c *gin.Context) uuid.UUID {
	id, _ := c.Get(UserIDKey)
	uid, _ := id.(uuid.UUID)
	return uid
}

func Role(c *gin.Context) models.Role {
	r, _ := c.Get(RoleKey)
	role, _ := r.(models.Role)
	return role
}

func abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{
		"kind":    "UNAUTHORIZED",
		"code":    "UNAUTHORIZED",
		"message": message,
	}})
}
