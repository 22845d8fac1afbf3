package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/chachabrian/mooveit-fleet/internal/apperrors"
	"github.com/chachabrian/mooveit-fleet/internal/lifecycle"
	"github.com/chachabrian/mooveit-fleet/internal/middleware"
	"github.com/chachabrian/mooveit-fleet/internal/models"
	"github.com/chachabrian/mooveit-fleet/pkg/logger"
)

// CreateShift opens a shift. Drivers open their own; admins name the driver.
func CreateShift(engine *lifecycle.Engine, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		actorID := middleware.UserID(c)
		driverID := actorID

		if middleware.Role(c) == models.RoleAdmin {
			var input struct {
				DriverID uuid.UUID `json:"driverId"`
			}
			if !bindJSON(c, log, &input) {
				return
			}
			if input.DriverID == uuid.Nil {
				respondError(c, log, apperrors.Validation("driverId is required", nil))
				return
			}
			driverID = input.DriverID
		}

		shift, err := engine.Shifts.Create(c.Request.Context(), driverID, actorID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusCreated, shift)
	}
}

// RecordVerification stores the biometric outcome for a pending shift.
func RecordVerification(engine *lifecycle.Engine, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		shiftID, ok := paramID(c, log, "id")
		if !ok {
			return
		}
		var input struct {
			Status models.VerificationStatus `json:"status" binding:"required"`
		}
		if !bindJSON(c, log, &input) {
			return
		}

		shift, err := engine.Shifts.RecordVerification(c.Request.Context(), shiftID, input.Status, middleware.UserID(c))
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, shift)
	}
}

func ActivateShift(engine *lifecycle.Engine, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		shiftID, ok := paramID(c, log, "id")
		if !ok {
			return
		}
		userID := middleware.UserID(c)

		shift, err := engine.Shifts.Activate(c.Request.Context(), shiftID, userID, userID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, shift)
	}
}

func CloseShift(engine *lifecycle.Engine, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		shiftID, ok := paramID(c, log, "id")
		if !ok {
			return
		}
		userID := middleware.UserID(c)

		shift, err := engine.Shifts.Close(c.Request.Context(), shiftID, userID, userID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, shift)
	}
}

func AdminCloseShift(engine *lifecycle.Engine, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		shiftID, ok := paramID(c, log, "id")
		if !ok {
			return
		}
		var input struct {
			Reason string `json:"reason" binding:"required"`
		}
		if !bindJSON(c, log, &input) {
			return
		}

		shift, err := engine.Shifts.AdminClose(c.Request.Context(), shiftID, middleware.UserID(c), input.Reason)
		if err != nil {
			respondError(c, log, err)
			return
		}
		c.JSON(http.StatusOK, shift)
	}
}

// GetShift returns a shift to its driver or to an admin.
func GetShift(engine *lifecycle.Engine, log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		shiftID, ok := paramID(c, log, "id")
		if !ok {
			return
		}

		shift, err := engine.Shifts.Get(c.Request.Context(), shiftID)
		if err != nil {
			respondError(c, log, err)
			return
		}
		if !canSee(c, shift.DriverID) {
			respondError(c, log, apperrors.Forbidden(apperrors.CodeForbidden, "shift belongs to another driver"))
			return
		}
		c.JSON(http.StatusOK, shift)
	}
}

// canSee reports whether the caller is an admin or the given driver.
func canSee(c *gin.Context, driverID uuid.UUID) bool {
	return middleware.Role(c) == models.RoleAdmin || middleware.UserID(c) == driverID
}
