package handlers

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/config"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/store"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
	"github.com/chachabrian/mooveit-fleet/pkg/utils"
)

// RegistrationKeyHeader carries the admin registration key.
const RegistrationKeyHeader = "X-Registration-Key"

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RegisterInput struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Phone    string `json:"phone"`
}

// Register creates an admin account. Drivers are created by admins through
// the fleet endpoints, so self-registration needs the configured key.
func Register(st store.Store, sec *config.SecurityConfig, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader(RegistrationKeyHeader)
		if sec.AdminRegistrationKey == "" ||
			subtle.ConstantTimeCompare([]byte(key), []byte(sec.AdminRegistrationKey)) != 1 {
			respondError(c, log, apperrors.Forbidden(apperrors.CodeForbidden, "registration is closed"))
			return
		}

		var input RegisterInput
		if !bindJSON(c, log, &input) {
			return
		}

		user := &models.User{
			Email:       strings.ToLower(strings.TrimSpace(input.Email)),
			Password:    input.Password,
			Name:        input.Name,
			PhoneNumber: input.Phone,
			Role:        models.RoleAdmin,
		}
		if err := user.HashPassword(); err != nil {
			respondError(c, log, err)
			return
		}
		if err := st.CreateUser(c.Request.Context(), user); err != nil {
			if errors.Is(err, store.ErrConflict) {
				err = apperrors.Conflict(apperrors.CodeAlreadyExists, "email is already registered", nil)
			}
			respondError(c, log, err)
			return
		}

		token, err := utils.GenerateToken(user.ID, user.Role, sec.JWTSecret, sec.JWTTTL)
		if err != nil {
			respondError(c, log, err)
			return
		}

		log.WithField("user_id", user.ID.String()).Info("admin account registered")
		c.JSON(http.StatusCreated, gin.H{"token": token, "user": user})
	}
}

func Login(st store.Store, sec *config.SecurityConfig, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input LoginInput
		if !bindJSON(c, log, &input) {
			return
		}

		user, err := st.GetUserByEmail(c.Request.Context(), strings.TrimSpace(input.Email))
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			respondError(c, log, err)
			return
		}
		if user == nil || user.CheckPassword(input.Password) != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{
				"kind":    "UNAUTHORIZED",
				"code":    "INVALID_CREDENTIALS",
				"message": "Invalid credentials",
			}})
			return
		}

		if user.Role == models.RoleDriver {
			driver, err := st.GetDriver(c.Request.Context(), user.ID)
			if err == nil && !driver.IsActive {
				respondError(c, log, apperrors.Forbidden(apperrors.CodeForbidden, "driver is deactivated"))
				return
			}
		}

		token, err := utils.GenerateToken(user.ID, user.Role, sec.JWTSecret, sec.JWTTTL)
		if err != nil {
			respondError(c, log, err)
			return
		}

		c.JSON(http.StatusOK, gin.H{"token": token, "user": user})
	}
}
