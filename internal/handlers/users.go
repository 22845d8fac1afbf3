package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/middleware"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/internal/store"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

// GetProfile returns the caller's account and, for drivers, the driver profile.
func GetProfile(st store.Store, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := middleware.UserID(c)

		user, err := st.GetUser(c.Request.Context(), userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				err = apperrors.NotFound("user", userID)
			}
			respondError(c, log, err)
			return
		}

		resp := gin.H{"user": user}
		if user.Role == models.RoleDriver {
			driver, err := st.GetDriver(c.Request.Context(), userID)
			if err != nil && !errors.Is(err, store.ErrNotFound) {
				respondError(c, log, err)
				return
			}
			resp["driver"] = driver
		}
		c.JSON(http.StatusOK, resp)
	}
}

// UpdateFCMToken stores the device token used for push notifications. An
// empty token removes it.
func UpdateFCMToken(st store.Store, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input struct {
			Token string `json:"token"`
		}
		if !bindJSON(c, log, &input) {
			return
		}

		userID := middleware.UserID(c)
		if err := st.UpdateUserFCMToken(c.Request.Context(), userID, input.Token); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				err = apperrors.NotFound("user", userID)
			}
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "FCM token updated"})
	}
}
